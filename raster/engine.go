// Package raster composites row values onto image templates.
//
// Each enabled placement draws its column's value as styled text, or as a
// barcode, at the placement's coordinates. Coordinates and font sizes are
// given in template pixels; the output canvas is the template scaled by the
// render scale, and everything drawn is scaled with it.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"math"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/lvillar/tplmerge"
)

const (
	fontErrorMarker    = "Font Error: "
	barcodeErrorMarker = "Barcode Error: "
	defaultFontSize    = 12
)

// Engine renders image templates. An Engine is safe for concurrent use when
// its FontResolver is.
type Engine struct {
	fonts       FontResolver
	format      Format
	jpegQuality int
	logger      *slog.Logger
}

// New returns an Engine configured by opts.
func New(opts ...Option) *Engine {
	e := &Engine{
		fonts:       StaticFonts{},
		format:      FormatAuto,
		jpegQuality: DefaultJPEGQuality,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Render draws the values of row onto the template src and returns the
// encoded result. Columns are drawn in row order; the asset column and
// columns without an enabled placement are skipped. A scale of zero or less
// renders at template size.
func (e *Engine) Render(src []byte, placements tplmerge.AssetPlacements, row tplmerge.Row, scale float64) ([]byte, error) {
	img, format, err := decode(src)
	if err != nil {
		return nil, err
	}
	if scale <= 0 {
		scale = 1
	}

	canvas := e.canvas(img, scale)
	for _, col := range row.Columns() {
		if col == tplmerge.AssetColumn {
			continue
		}
		p, ok := placements[col]
		if !ok || !p.IsEnabled {
			continue
		}
		e.drawPlacement(canvas, p, row.String(col), scale)
	}
	return e.encode(canvas, format)
}

// Size reports the canvas size Render would produce for src.
func Size(src []byte, scale float64) (image.Point, error) {
	img, _, err := decode(src)
	if err != nil {
		return image.Point{}, err
	}
	if scale <= 0 {
		scale = 1
	}
	w, h := scaledSize(img.Bounds(), scale)
	return image.Pt(w, h), nil
}

func decode(src []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, "", fmt.Errorf("raster: decode template: %w", err)
	}
	if format == "jpeg" {
		img = orient(src, img)
	}
	return img, format, nil
}

// orient applies the EXIF orientation of a JPEG the way browsers do when
// drawing it.
func orient(src []byte, img image.Image) image.Image {
	x, err := exif.Decode(bytes.NewReader(src))
	if err != nil {
		return img
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return img
	}
	o, err := tag.Int(0)
	if err != nil {
		return img
	}
	switch o {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	}
	return img
}

func scaledSize(b image.Rectangle, scale float64) (int, int) {
	w := max(int(math.Round(float64(b.Dx())*scale)), 1)
	h := max(int(math.Round(float64(b.Dy())*scale)), 1)
	return w, h
}

func (e *Engine) canvas(img image.Image, scale float64) *image.NRGBA {
	w, h := scaledSize(img.Bounds(), scale)
	if w != img.Bounds().Dx() || h != img.Bounds().Dy() {
		img = imaging.Resize(img, w, h, imaging.Lanczos)
	}
	canvas := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), img, img.Bounds().Min, draw.Src)
	return canvas
}

func (e *Engine) drawPlacement(canvas *image.NRGBA, p tplmerge.FieldPlacement, text string, scale float64) {
	if p.Barcode != tplmerge.BarcodeNone {
		if text == "" {
			return
		}
		w := int(math.Round(float64(p.Width) * scale))
		h := int(math.Round(float64(p.Height) * scale))
		symbol, err := encodeBarcode(p.Barcode, text, w, h, scale)
		if err == nil {
			x := int(math.Round(float64(p.X) * scale))
			y := int(math.Round(float64(p.Y) * scale))
			drawBarcode(canvas, symbol, x, y, p.Color, p.BackgroundColor)
			return
		}
		e.logger.Warn("barcode fallback to text", "kind", p.Barcode, "error", err)
		text = barcodeErrorMarker + text
	}
	e.drawText(canvas, p, text, scale)
}

func (e *Engine) resolveFont(p tplmerge.FieldPlacement) (*Font, string) {
	if p.UsesDefaultFont() {
		return DefaultFont(), ""
	}
	f, err := e.fonts.Resolve(p.FontFamily)
	if err != nil {
		e.logger.Warn("font fallback to default", "font", p.FontFamily, "error", err)
		return DefaultFont(), fontErrorMarker
	}
	return f, ""
}

func toFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}

func (e *Engine) drawText(canvas *image.NRGBA, p tplmerge.FieldPlacement, text string, scale float64) {
	f, marker := e.resolveFont(p)
	text = marker + text

	size := float64(p.FontSize)
	if size <= 0 {
		size = defaultFontSize
	}
	size *= scale
	face, err := f.Face(size)
	if err != nil {
		e.logger.Warn("skipping field", "font", f.Name, "error", err)
		return
	}
	defer face.Close()

	x := toFixed(float64(p.X) * scale)
	y := toFixed(float64(p.Y) * scale)

	runes := []rune(text)
	var widths []fixed.Int26_6
	var spacing, total fixed.Int26_6
	if p.LetterSpacing != 0 {
		spacing = toFixed(p.LetterSpacing * scale)
		widths = make([]fixed.Int26_6, len(runes))
		for i, r := range runes {
			widths[i] = font.MeasureString(face, string(r))
			total += widths[i]
		}
		if len(runes) > 1 {
			total += spacing * fixed.Int26_6(len(runes)-1)
		}
	} else {
		total = font.MeasureString(face, text)
	}

	startX := x
	if p.Alignment == tplmerge.AlignRight {
		startX = x - total
	}

	if !p.BackgroundColor.Transparent() {
		bg := image.Rect(startX.Round(), y.Round(), (startX + total).Round(), (y + toFixed(size)).Round())
		draw.Draw(canvas, bg, image.NewUniform(p.BackgroundColor.NRGBA()), image.Point{}, draw.Over)
	}
	if p.Color.Transparent() || text == "" {
		return
	}

	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(p.Color.NRGBA()),
		Face: face,
	}
	// Text hangs from y: the baseline sits one ascent below it.
	baseline := y + face.Metrics().Ascent
	if widths == nil {
		d.Dot = fixed.Point26_6{X: startX, Y: baseline}
		d.DrawString(text)
		return
	}
	dot := startX
	for i, r := range runes {
		d.Dot = fixed.Point26_6{X: dot, Y: baseline}
		d.DrawString(string(r))
		dot += widths[i] + spacing
	}
}

func (e *Engine) encode(img image.Image, srcFormat string) ([]byte, error) {
	format := e.format
	if format == FormatAuto || format == "" {
		format = Format(srcFormat)
	}
	var f imaging.Format
	switch format {
	case FormatJPEG:
		f = imaging.JPEG
	case FormatGIF:
		f = imaging.GIF
	case FormatPNG:
		f = imaging.PNG
	default:
		return nil, fmt.Errorf("raster: encode %q: %w", format, tplmerge.ErrUnsupported)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, f, imaging.JPEGQuality(e.jpegQuality)); err != nil {
		return nil, fmt.Errorf("raster: encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}
