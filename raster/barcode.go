package raster

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/qr"
	"github.com/disintegration/imaging"
	pdf417 "github.com/ruudk/golang-pdf417"

	"github.com/lvillar/tplmerge"
)

const (
	pdf417Columns  = 4
	pdf417Security = 2
)

// encodeBarcode renders value as a black on white symbol of the given kind,
// sized w×h pixels. A zero size keeps the symbol's natural size times scale.
func encodeBarcode(kind tplmerge.BarcodeKind, value string, w, h int, scale float64) (img image.Image, err error) {
	var code barcode.Barcode
	switch kind {
	case tplmerge.BarcodeQR:
		code, err = qr.Encode(value, qr.M, qr.Auto)
	case tplmerge.BarcodeCode128:
		code, err = code128.Encode(value)
	case tplmerge.BarcodePDF417:
		img, err = encodePDF417(value)
	default:
		return nil, fmt.Errorf("raster: barcode kind %q: %w", kind, tplmerge.ErrUnsupported)
	}
	if err != nil {
		return nil, fmt.Errorf("raster: %s barcode: %w", kind, err)
	}
	if code != nil {
		img = code
	}

	b := img.Bounds()
	tw, th := w, h
	if tw <= 0 {
		tw = int(math.Round(float64(b.Dx()) * scale))
	}
	if th <= 0 {
		th = int(math.Round(float64(b.Dy()) * scale))
	}
	if tw == b.Dx() && th == b.Dy() {
		return img, nil
	}
	if code != nil {
		scaled, err := barcode.Scale(code, tw, th)
		if err != nil {
			return nil, fmt.Errorf("raster: %s barcode: %w", kind, err)
		}
		return scaled, nil
	}
	if tw < b.Dx() || th < b.Dy() {
		return nil, fmt.Errorf("raster: %s barcode needs at least %dx%d, got %dx%d", kind, b.Dx(), b.Dy(), tw, th)
	}
	return imaging.Resize(img, tw, th, imaging.NearestNeighbor), nil
}

func encodePDF417(value string) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("encode: %v", r)
		}
	}()
	return pdf417.Encode(value, pdf417Columns, pdf417Security), nil
}

// drawBarcode paints symbol at (x, y): bars in fg over a bg rectangle.
func drawBarcode(dst draw.Image, symbol image.Image, x, y int, fg, bg tplmerge.Color) {
	b := symbol.Bounds()
	r := image.Rect(x, y, x+b.Dx(), y+b.Dy())
	if !bg.Transparent() {
		draw.Draw(dst, r, image.NewUniform(bg.NRGBA()), image.Point{}, draw.Over)
	}
	if fg.Transparent() {
		return
	}
	mask := image.NewAlpha(image.Rect(0, 0, b.Dx(), b.Dy()))
	for py := 0; py < b.Dy(); py++ {
		for px := 0; px < b.Dx(); px++ {
			g := color.GrayModel.Convert(symbol.At(b.Min.X+px, b.Min.Y+py)).(color.Gray)
			mask.SetAlpha(px, py, color.Alpha{A: 255 - g.Y})
		}
	}
	draw.DrawMask(dst, r, image.NewUniform(fg.NRGBA()), image.Point{}, mask, image.Point{}, draw.Over)
}
