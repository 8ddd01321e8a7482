package raster

import (
	"fmt"
	"log/slog"
	"strings"
)

// Format selects the encoding of rendered images.
type Format string

const (
	// FormatAuto encodes in the format the template was decoded from.
	FormatAuto Format = "auto"
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatGIF  Format = "gif"
)

// ParseFormat parses a format name; "" and "auto" are FormatAuto and "jpg"
// is accepted for FormatJPEG.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "gif":
		return FormatGIF, nil
	}
	return "", fmt.Errorf("raster: unknown output format %q", s)
}

// Ext returns the file extension of f, or "" for FormatAuto.
func (f Format) Ext() string {
	switch f {
	case FormatPNG:
		return ".png"
	case FormatJPEG:
		return ".jpg"
	case FormatGIF:
		return ".gif"
	}
	return ""
}

// OutputExt returns the extension of files rendered from a template with
// extension srcExt.
func (e *Engine) OutputExt(srcExt string) string {
	if ext := e.format.Ext(); ext != "" {
		return ext
	}
	return srcExt
}

// DefaultJPEGQuality is the JPEG quality used unless configured.
const DefaultJPEGQuality = 92

// Option configures an Engine.
type Option func(*Engine)

// WithFonts sets the resolver for placement font names.
func WithFonts(r FontResolver) Option {
	return func(e *Engine) {
		e.fonts = r
	}
}

// WithFormat sets the output encoding.
func WithFormat(f Format) Option {
	return func(e *Engine) {
		e.format = f
	}
}

// WithJPEGQuality sets the JPEG quality, clamped to 1..100.
func WithJPEGQuality(q int) Option {
	return func(e *Engine) {
		e.jpegQuality = min(max(q, 1), 100)
	}
}

// WithLogger sets the logger for font and barcode fallbacks.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}
