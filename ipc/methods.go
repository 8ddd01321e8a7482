package ipc

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/lvillar/tplmerge"
	"github.com/lvillar/tplmerge/assets"
	"github.com/lvillar/tplmerge/batch"
	"github.com/lvillar/tplmerge/internal/app"
	"github.com/lvillar/tplmerge/sheet"
)

// ProgressMethod is the notification sent after every batch row.
const ProgressMethod = "batch.progress"

// Paths is the directory selection exchanged with the host.
type Paths struct {
	SpreadsheetDir    string   `json:"spreadsheetDir"`
	ImageDir          string   `json:"imageDir"`
	OutputDir         string   `json:"outputDir"`
	FontDir           string   `json:"fontDir"`
	ActiveSpreadsheet string   `json:"activeSpreadsheet"`
	ImageScale        *float64 `json:"imageScale,omitempty"`
}

// Progress is the payload of a batch.progress notification.
type Progress struct {
	Current int                        `json:"current"`
	Total   int                        `json:"total"`
	Counts  map[tplmerge.AssetKind]int `json:"counts"`
}

type templateSetParams struct {
	TemplateSet string `json:"templateSet"`
}

type methods struct {
	app    *app.App
	runner *batch.Runner
}

// RegisterMethods adds the workspace methods of a to s.
func RegisterMethods(s *Server, a *app.App) {
	m := &methods{app: a}
	m.runner = a.NewRunner(batch.WithProgress(func(current, total int, counts map[tplmerge.AssetKind]int) {
		s.Notify(ProgressMethod, Progress{Current: current, Total: total, Counts: counts})
	}))

	s.Handle("paths.get", m.pathsGet)
	s.Handle("paths.set", m.pathsSet)
	s.Handle("paths.reset", m.pathsReset)
	s.Handle("templateSet.activate", m.templateSetActivate)
	s.Handle("spreadsheet.list", m.spreadsheetList)
	s.Handle("spreadsheet.columns", m.spreadsheetColumns)
	s.Handle("spreadsheet.rows", m.spreadsheetRows)
	s.Handle("placements.get", m.placementsGet)
	s.Handle("placements.save", m.placementsSave)
	s.Handle("placements.default", m.placementsDefault)
	s.Handle("replacements.get", m.replacementsGet)
	s.Handle("replacements.save", m.replacementsSave)
	s.Handle("assets.images", m.list(func() string { return a.Config.Paths.ImageDir }, assets.ListImages))
	s.Handle("assets.documents", m.list(func() string { return a.Config.Paths.ImageDir }, assets.ListDocuments))
	s.Handle("assets.fonts", m.list(func() string { return a.Config.Paths.FontDir }, assets.ListFonts))
	s.Handle("outputs.list", m.list(func() string { return a.Config.Paths.OutputDir }, assets.ListOutputs))
	s.Handle("fonts.family", m.fontsFamily)
	s.Handle("pdf.formFields", m.pdfFormFields)
	s.Handle("batch.run", m.batchRun)
	s.Handle("batch.state", m.batchState)
}

func (m *methods) paths() Paths {
	cfg := m.app.Config
	scale := cfg.ImageScale
	return Paths{
		SpreadsheetDir:    cfg.Paths.SpreadsheetDir,
		ImageDir:          cfg.Paths.ImageDir,
		OutputDir:         cfg.Paths.OutputDir,
		FontDir:           cfg.Paths.FontDir,
		ActiveSpreadsheet: cfg.ActiveSpreadsheet,
		ImageScale:        &scale,
	}
}

func (m *methods) pathsGet(context.Context, json.RawMessage) (any, error) {
	return m.paths(), nil
}

// pathsSet updates the non-empty members of the parameters.
func (m *methods) pathsSet(_ context.Context, params json.RawMessage) (any, error) {
	var p Paths
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	cfg := m.app.Config
	prev := *cfg
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Paths.SpreadsheetDir, p.SpreadsheetDir)
	set(&cfg.Paths.ImageDir, p.ImageDir)
	set(&cfg.Paths.OutputDir, p.OutputDir)
	set(&cfg.Paths.FontDir, p.FontDir)
	set(&cfg.ActiveSpreadsheet, p.ActiveSpreadsheet)
	if p.ImageScale != nil {
		cfg.ImageScale = *p.ImageScale
	}
	if err := m.app.SaveConfig(); err != nil {
		*cfg = prev
		return nil, InvalidParams(err)
	}
	return m.paths(), nil
}

func (m *methods) pathsReset(context.Context, json.RawMessage) (any, error) {
	m.app.Config.ResetPaths()
	if err := m.app.SaveConfig(); err != nil {
		return nil, err
	}
	return m.paths(), nil
}

func (m *methods) templateSetActivate(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		Spreadsheet string `json:"spreadsheet"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if p.Spreadsheet == "" {
		return nil, InvalidParams(errors.New("spreadsheet is required"))
	}
	id, err := m.app.Activate(ctx, p.Spreadsheet)
	if err != nil {
		return nil, err
	}
	return templateSetParams{TemplateSet: id}, nil
}

func (m *methods) spreadsheetList(context.Context, json.RawMessage) (any, error) {
	return sheet.ListSpreadsheets(m.app.Config.Paths.SpreadsheetDir)
}

func (m *methods) spreadsheetColumns(context.Context, json.RawMessage) (any, error) {
	sh, err := m.app.Spreadsheet()
	if err != nil {
		return nil, err
	}
	return sh.Columns, nil
}

func (m *methods) spreadsheetRows(context.Context, json.RawMessage) (any, error) {
	sh, err := m.app.Spreadsheet()
	if err != nil {
		return nil, err
	}
	return sh.Rows, nil
}

func (m *methods) templateSet(params json.RawMessage) (string, error) {
	var p templateSetParams
	if err := decode(params, &p); err != nil {
		return "", err
	}
	if p.TemplateSet != "" {
		return p.TemplateSet, nil
	}
	if id := m.app.TemplateSetID(); id != "" {
		return id, nil
	}
	return "", &tplmerge.ConfigError{Field: "spreadsheet"}
}

func (m *methods) placementsGet(ctx context.Context, params json.RawMessage) (any, error) {
	id, err := m.templateSet(params)
	if err != nil {
		return nil, err
	}
	s, err := m.app.Settings(ctx)
	if err != nil {
		return nil, err
	}
	return s.TemplatePlacements(id), nil
}

func (m *methods) placementsSave(ctx context.Context, params json.RawMessage) (any, error) {
	id, err := m.templateSet(params)
	if err != nil {
		return nil, err
	}
	var p struct {
		Placements tplmerge.Placements `json:"placements"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return true, m.app.SavePlacements(ctx, id, p.Placements)
}

func (m *methods) placementsDefault(context.Context, json.RawMessage) (any, error) {
	return tplmerge.DefaultPlacement(), nil
}

func (m *methods) replacementsGet(ctx context.Context, params json.RawMessage) (any, error) {
	id, err := m.templateSet(params)
	if err != nil {
		return nil, err
	}
	s, err := m.app.Settings(ctx)
	if err != nil {
		return nil, err
	}
	return s.Replacements(id), nil
}

func (m *methods) replacementsSave(ctx context.Context, params json.RawMessage) (any, error) {
	id, err := m.templateSet(params)
	if err != nil {
		return nil, err
	}
	var p struct {
		Replacements tplmerge.PdfReplacementTable `json:"replacements"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return true, m.app.SaveReplacements(ctx, id, p.Replacements)
}

func (m *methods) list(dir func() string, fn func(string) ([]string, error)) Handler {
	return func(context.Context, json.RawMessage) (any, error) {
		d := dir()
		if d == "" {
			return []string{}, nil
		}
		return fn(d)
	}
}

func (m *methods) fontsFamily(_ context.Context, params json.RawMessage) (any, error) {
	var p struct {
		File string `json:"file"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return map[string]string{"family": assets.FontFamily(p.File)}, nil
}

func (m *methods) pdfFormFields(_ context.Context, params json.RawMessage) (any, error) {
	var p struct {
		Asset string `json:"asset"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return m.app.FormFields(p.Asset)
}

func (m *methods) batchRun(ctx context.Context, _ json.RawMessage) (any, error) {
	job, err := m.app.Job(ctx)
	if err != nil {
		return nil, err
	}
	return m.runner.Run(ctx, job)
}

func (m *methods) batchState(context.Context, json.RawMessage) (any, error) {
	return map[string]batch.State{"state": m.runner.State()}, nil
}
