// Package store persists field placements and PDF replacement tables per
// template set.
//
// A template set is the group of placements that belong to one spreadsheet,
// keyed by the spreadsheet's file name. Switching to a spreadsheet that has no
// placements yet copies the previous set forward, so settings for identically
// named assets are inherited instead of re-entered.
package store

import (
	"context"

	"github.com/lvillar/tplmerge"
)

// Settings is the persisted state of the placement editor.
type Settings struct {
	ActiveTemplateSet string                                  `json:"activeTemplateSet"`
	Placements        tplmerge.TemplateSets                   `json:"imagePositions"`
	PdfReplacements   map[string]tplmerge.PdfReplacementTable `json:"pdfReplacements"`
}

// Store loads and saves Settings. Implementations are not required to be safe
// for concurrent Save calls; a batch only reads before it starts.
type Store interface {
	Load(ctx context.Context) (*Settings, error)
	Save(ctx context.Context, s *Settings) error
}

// NewSettings returns empty, ready to use Settings.
func NewSettings() *Settings {
	return &Settings{
		Placements:      make(tplmerge.TemplateSets),
		PdfReplacements: make(map[string]tplmerge.PdfReplacementTable),
	}
}

func (s *Settings) normalize() {
	if s.Placements == nil {
		s.Placements = make(tplmerge.TemplateSets)
	}
	if s.PdfReplacements == nil {
		s.PdfReplacements = make(map[string]tplmerge.PdfReplacementTable)
	}
}

// TemplatePlacements returns a deep copy of the placements of template set id.
// The result is never nil.
func (s *Settings) TemplatePlacements(id string) tplmerge.Placements {
	p := s.Placements[id].Clone()
	if p == nil {
		p = make(tplmerge.Placements)
	}
	return p
}

// SetTemplatePlacements replaces the placements of template set id with a
// copy of p.
func (s *Settings) SetTemplatePlacements(id string, p tplmerge.Placements) {
	s.normalize()
	s.Placements[id] = p.Clone()
}

// Replacements returns a deep copy of the PDF replacement table of template
// set id. The result is never nil.
func (s *Settings) Replacements(id string) tplmerge.PdfReplacementTable {
	t := s.PdfReplacements[id].Clone()
	if t == nil {
		t = make(tplmerge.PdfReplacementTable)
	}
	return t
}

// SetReplacements replaces the PDF replacement table of template set id with
// a copy of t.
func (s *Settings) SetReplacements(id string, t tplmerge.PdfReplacementTable) {
	s.normalize()
	s.PdfReplacements[id] = t.Clone()
}

// SwitchTemplateSet makes next the active template set. When next has no
// placements yet, the active set's placements and replacement tables are
// deep-copied into it; without an active set an empty entry is created.
func (s *Settings) SwitchTemplateSet(next string) {
	s.normalize()
	prev := s.ActiveTemplateSet
	if _, ok := s.Placements[next]; !ok {
		if old, ok := s.Placements[prev]; ok && prev != "" {
			s.Placements[next] = old.Clone()
		} else {
			s.Placements[next] = make(tplmerge.Placements)
		}
	}
	if _, ok := s.PdfReplacements[next]; !ok {
		if old, ok := s.PdfReplacements[prev]; ok && prev != "" {
			s.PdfReplacements[next] = old.Clone()
		}
	}
	s.ActiveTemplateSet = next
}

// Clone returns a deep copy of s.
func (s *Settings) Clone() *Settings {
	out := &Settings{
		ActiveTemplateSet: s.ActiveTemplateSet,
		Placements:        make(tplmerge.TemplateSets, len(s.Placements)),
		PdfReplacements:   make(map[string]tplmerge.PdfReplacementTable, len(s.PdfReplacements)),
	}
	for id, p := range s.Placements {
		out.Placements[id] = p.Clone()
	}
	for id, t := range s.PdfReplacements {
		out.PdfReplacements[id] = t.Clone()
	}
	return out
}
