// Package pdffill fills the interactive form fields of existing PDF
// documents with spreadsheet values.
//
// Values are written as an incremental update: the original bytes are kept
// and the changed field and widget objects, fresh appearance streams and a
// new cross-reference section are appended.
package pdffill

import (
	"log/slog"
)

// Engine fills PDF forms. An Engine is safe for concurrent use.
type Engine struct {
	logger        *slog.Logger
	transliterate bool
	flatten       bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for skipped fields.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTransliteration turns the replacement of Turkish letters by their
// ASCII base letters on or off. It is on by default.
func WithTransliteration(on bool) Option {
	return func(e *Engine) {
		e.transliterate = on
	}
}

// WithFlatten paints the filled fields into the page content and removes
// the form, leaving a document that can no longer be edited.
func WithFlatten(on bool) Option {
	return func(e *Engine) {
		e.flatten = on
	}
}

// New returns an Engine configured by opts.
func New(opts ...Option) *Engine {
	e := &Engine{logger: slog.Default(), transliterate: true}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
