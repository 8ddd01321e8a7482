package batch_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lvillar/tplmerge"
	"github.com/lvillar/tplmerge/assets"
	"github.com/lvillar/tplmerge/batch"
	"github.com/lvillar/tplmerge/internal/pdftest"
	"github.com/lvillar/tplmerge/pdffill"
	"github.com/lvillar/tplmerge/raster"
)

func whitePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func write(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func namePlacement() tplmerge.AssetPlacements {
	p := tplmerge.DefaultPlacement()
	p.IsEnabled = true
	p.X, p.Y = 10, 10
	p.FontSize = 20
	p.Color = tplmerge.RGBA(255, 0, 0, 1)
	return tplmerge.AssetPlacements{"name": p}
}

// fixture lays out an asset directory with an image and a PDF form.
func fixture(t *testing.T) batch.Job {
	t.Helper()
	assetDir := t.TempDir()
	write(t, assetDir, "a.png", whitePNG(t, 120, 60))

	f := pdftest.NewForm()
	f.Text("fullname", "")
	write(t, assetDir, "form.pdf", f.Bytes())

	return batch.Job{
		TemplateSetID: "people.xlsx",
		AssetDir:      assetDir,
		OutputDir:     filepath.Join(t.TempDir(), "out"),
		Placements:    tplmerge.Placements{"a.png": namePlacement()},
		PdfReplacements: tplmerge.PdfReplacementTable{
			"form.pdf": {"name": "fullname"},
		},
	}
}

func countNotWhite(img image.Image) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r != 0xffff || g != 0xffff || bl != 0xffff {
				n++
			}
		}
	}
	return n
}

func TestRunImage(t *testing.T) {
	job := fixture(t)
	job.Rows = []tplmerge.Row{tplmerge.RowOf("img_path", "a.png", "name", "Ann")}

	r := batch.NewRunner()
	assert.Equal(t, batch.Idle, r.State())
	sum, err := r.Run(context.Background(), job)
	require.NoError(t, err)

	want := filepath.Join(job.OutputDir, "people-1-a.png")
	assert.Equal(t, []string{want}, sum.Results)
	assert.Empty(t, sum.Errors)
	assert.Equal(t, batch.Completed, sum.State)
	assert.Equal(t, batch.Completed, r.State())
	assert.Equal(t, job.OutputDir, sum.OutputDir)
	assert.Equal(t, 1, sum.Counts[tplmerge.KindImage])
	assert.NotEmpty(t, sum.RunID)

	data, err := os.ReadFile(want)
	require.NoError(t, err)
	img, format, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, image.Pt(120, 60), img.Bounds().Size())
	assert.Positive(t, countNotWhite(img))
}

func TestRunDisabledPlacementLeavesTemplate(t *testing.T) {
	job := fixture(t)
	p := namePlacement()
	disabled := p["name"]
	disabled.IsEnabled = false
	job.Placements = tplmerge.Placements{"a.png": {"name": disabled}}
	job.Rows = []tplmerge.Row{tplmerge.RowOf("img_path", "a.png", "name", "Ann")}

	sum, err := batch.NewRunner().Run(context.Background(), job)
	require.NoError(t, err)
	require.Len(t, sum.Results, 1)

	data, err := os.ReadFile(sum.Results[0])
	require.NoError(t, err)
	img, _, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Zero(t, countNotWhite(img))
}

func TestRunPDF(t *testing.T) {
	job := fixture(t)
	job.Rows = []tplmerge.Row{
		tplmerge.RowOf("img_path", "a.png", "name", "Ann"),
		tplmerge.RowOf("img_path", "form.pdf", "name", "Ön Gül"),
	}

	sum, err := batch.NewRunner().Run(context.Background(), job)
	require.NoError(t, err)
	require.Len(t, sum.Results, 2)
	assert.Equal(t, filepath.Join(job.OutputDir, "people-2-form.pdf"), sum.Results[1])
	assert.Equal(t, map[tplmerge.AssetKind]int{tplmerge.KindImage: 1, tplmerge.KindDocument: 1}, sum.Counts)

	data, err := os.ReadFile(sum.Results[1])
	require.NoError(t, err)
	fields, err := pdffill.FormFields(data)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "On Gul", fields[0].Value)
}

func TestRunMissingAssetIsSkipped(t *testing.T) {
	job := fixture(t)
	job.Rows = []tplmerge.Row{
		tplmerge.RowOf("img_path", "missing.png", "name", "Bob"),
		tplmerge.RowOf("name", "no asset column"),
		tplmerge.RowOf("img_path", "a.png", "name", "Ann"),
	}

	sum, err := batch.NewRunner().Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(job.OutputDir, "people-3-a.png")}, sum.Results)
	assert.Empty(t, sum.Errors)
	assert.Equal(t, 2, sum.Skipped)
	require.Len(t, sum.Rows, 3)
	assert.True(t, sum.Rows[0].Skipped)
	assert.True(t, sum.Rows[1].Skipped)
}

func TestRunRowErrors(t *testing.T) {
	job := fixture(t)
	write(t, job.AssetDir, "broken.png", []byte("not an image"))
	job.PdfReplacements["form.pdf"]["city"] = "nope"
	job.Rows = []tplmerge.Row{
		tplmerge.RowOf("img_path", "broken.png", "name", "Ann"),
		tplmerge.RowOf("img_path", "form.pdf", "name", "Ann", "city", "Izmir"),
		tplmerge.RowOf("img_path", "a.png", "name", "Ann"),
	}

	sum, err := batch.NewRunner().Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, batch.Completed, sum.State)
	assert.Equal(t, []string{
		filepath.Join(job.OutputDir, "people-2-form.pdf"),
		filepath.Join(job.OutputDir, "people-3-a.png"),
	}, sum.Results)

	require.Len(t, sum.Errors, 2)
	assert.Contains(t, sum.Errors[0], "row 1 (broken.png): raster: decode template")
	assert.Equal(t, "row 2 (form.pdf): city -> nope: field not found", sum.Errors[1])

	var me *tplmerge.MergeError
	require.ErrorAs(t, sum.Rows[0].Err, &me)
	assert.Equal(t, "Render", me.Op)
}

type explodingFonts struct{}

func (explodingFonts) Resolve(string) (*raster.Font, error) { panic("font table exploded") }

func TestRunRowPanic(t *testing.T) {
	job := fixture(t)
	placements := namePlacement()
	p := placements["name"]
	p.FontFamily = "Exploding"
	placements["name"] = p
	job.Placements["a.png"] = placements
	job.Rows = []tplmerge.Row{
		tplmerge.RowOf("img_path", "a.png", "name", "Ann"),
		tplmerge.RowOf("img_path", "form.pdf", "name", "Bob"),
	}

	r := batch.NewRunner(batch.WithRaster(raster.New(raster.WithFonts(explodingFonts{}))))
	sum, err := r.Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, batch.Completed, sum.State)
	assert.Equal(t, batch.Completed, r.State())
	assert.Equal(t, []string{filepath.Join(job.OutputDir, "people-2-form.pdf")}, sum.Results)
	require.Len(t, sum.Errors, 1)
	assert.Contains(t, sum.Errors[0], "row 1 (a.png)")
	assert.Contains(t, sum.Errors[0], "font table exploded")

	var me *tplmerge.MergeError
	require.ErrorAs(t, sum.Rows[0].Err, &me)
	assert.Equal(t, "Render", me.Op)
	assert.Empty(t, sum.Rows[0].OutputPath)

	_, err = r.Run(context.Background(), job)
	require.NoError(t, err)
}

func TestRunUsesCatalogListing(t *testing.T) {
	job := fixture(t)
	catalog, err := assets.LoadCatalog(job.AssetDir)
	require.NoError(t, err)
	job.Catalog = catalog
	require.NoError(t, os.Remove(filepath.Join(job.AssetDir, "a.png")))
	job.Rows = []tplmerge.Row{tplmerge.RowOf("img_path", "a.png", "name", "Ann")}

	sum, err := batch.NewRunner().Run(context.Background(), job)
	require.NoError(t, err)
	require.Len(t, sum.Errors, 1)
	var me *tplmerge.MergeError
	require.ErrorAs(t, sum.Rows[0].Err, &me)
	assert.Equal(t, "Read", me.Op)
}

func TestRunZeroEligibleRows(t *testing.T) {
	job := fixture(t)
	job.Rows = []tplmerge.Row{tplmerge.RowOf("img_path", "elsewhere.png")}

	sum, err := batch.NewRunner().Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, batch.Completed, sum.State)
	assert.Empty(t, sum.Results)
	assert.Empty(t, sum.Errors)

	sum, err = batch.NewRunner().Run(context.Background(), batch.Job{
		TemplateSetID: "people.xlsx",
		AssetDir:      job.AssetDir,
		OutputDir:     job.OutputDir,
	})
	require.NoError(t, err)
	assert.Equal(t, batch.Completed, sum.State)
}

func TestRunConfigErrors(t *testing.T) {
	valid := fixture(t)
	tests := []struct {
		name  string
		edit  func(*batch.Job)
		field string
	}{
		{"output", func(j *batch.Job) { j.OutputDir = "" }, "output directory"},
		{"template set", func(j *batch.Job) { j.TemplateSetID = "" }, "template set"},
		{"assets", func(j *batch.Job) { j.AssetDir = "" }, "asset directory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := valid
			job.Rows = []tplmerge.Row{tplmerge.RowOf("img_path", "a.png", "name", "Ann")}
			tt.edit(&job)

			r := batch.NewRunner()
			sum, err := r.Run(context.Background(), job)
			require.Error(t, err)
			assert.Nil(t, sum)
			assert.True(t, errors.Is(err, tplmerge.ErrConfig))
			var ce *tplmerge.ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
			assert.Equal(t, batch.Failed, r.State())
		})
	}
	_, err := os.Stat(valid.OutputDir)
	assert.True(t, errors.Is(err, os.ErrNotExist), "no output directory for a rejected job")
}

func TestRunCreatesOutputDirectory(t *testing.T) {
	job := fixture(t)
	job.OutputDir = filepath.Join(job.OutputDir, "nested", "deeper")
	job.Rows = []tplmerge.Row{tplmerge.RowOf("img_path", "a.png", "name", "Ann")}

	sum, err := batch.NewRunner().Run(context.Background(), job)
	require.NoError(t, err)
	assert.FileExists(t, sum.Results[0])
}

func TestRunRejectsReentry(t *testing.T) {
	job := fixture(t)
	job.Rows = []tplmerge.Row{tplmerge.RowOf("img_path", "a.png", "name", "Ann")}

	var r *batch.Runner
	var inner error
	r = batch.NewRunner(batch.WithProgress(func(current, total int, counts map[tplmerge.AssetKind]int) {
		assert.Equal(t, batch.Processing, r.State())
		_, inner = r.Run(context.Background(), job)
	}))
	_, err := r.Run(context.Background(), job)
	require.NoError(t, err)
	assert.ErrorIs(t, inner, tplmerge.ErrBusy)

	// A finished runner accepts the next job.
	_, err = r.Run(context.Background(), job)
	require.NoError(t, err)
}

func TestRunProgress(t *testing.T) {
	job := fixture(t)
	job.Rows = []tplmerge.Row{
		tplmerge.RowOf("img_path", "a.png", "name", "Ann"),
		tplmerge.RowOf("img_path", "missing.png"),
		tplmerge.RowOf("img_path", "form.pdf", "name", "Bob"),
	}

	type call struct {
		current, total, images, documents int
	}
	var calls []call
	r := batch.NewRunner(batch.WithProgress(func(current, total int, counts map[tplmerge.AssetKind]int) {
		calls = append(calls, call{current, total, counts[tplmerge.KindImage], counts[tplmerge.KindDocument]})
	}))
	_, err := r.Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, []call{{1, 3, 1, 0}, {2, 3, 1, 0}, {3, 3, 1, 1}}, calls)
}

func TestRunCancelled(t *testing.T) {
	job := fixture(t)
	job.Rows = []tplmerge.Row{
		tplmerge.RowOf("img_path", "a.png", "name", "Ann"),
		tplmerge.RowOf("img_path", "a.png", "name", "Bob"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := batch.NewRunner(batch.WithProgress(func(int, int, map[tplmerge.AssetKind]int) { cancel() }))
	sum, err := r.Run(ctx, job)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, sum)
	assert.Len(t, sum.Results, 1)
	assert.Equal(t, batch.Failed, sum.State)
	assert.Equal(t, batch.Failed, r.State())
}

func TestRunForcedFormat(t *testing.T) {
	job := fixture(t)
	job.Rows = []tplmerge.Row{tplmerge.RowOf("img_path", "a.png", "name", "Ann")}

	r := batch.NewRunner(batch.WithRaster(raster.New(raster.WithFormat(raster.FormatJPEG))))
	sum, err := r.Run(context.Background(), job)
	require.NoError(t, err)
	require.Len(t, sum.Results, 1)
	assert.Equal(t, "people-1-a.jpg", filepath.Base(sum.Results[0]))

	data, err := os.ReadFile(sum.Results[0])
	require.NoError(t, err)
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestRunDeterministic(t *testing.T) {
	job := fixture(t)
	job.Scale = 1.5
	job.Rows = []tplmerge.Row{
		tplmerge.RowOf("img_path", "a.png", "name", "Ann"),
		tplmerge.RowOf("img_path", "form.pdf", "name", "Ann"),
	}

	first, err := batch.NewRunner().Run(context.Background(), job)
	require.NoError(t, err)
	job.OutputDir = t.TempDir()
	second, err := batch.NewRunner().Run(context.Background(), job)
	require.NoError(t, err)

	require.Len(t, second.Results, len(first.Results))
	for i := range first.Results {
		a, err := os.ReadFile(first.Results[i])
		require.NoError(t, err)
		b, err := os.ReadFile(second.Results[i])
		require.NoError(t, err)
		assert.True(t, bytes.Equal(a, b), "%s differs", filepath.Base(first.Results[i]))
	}
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		set     string
		ordinal int
		asset   string
		ext     string
		want    string
	}{
		{"people.xlsx", 1, "a.png", "", "people-1-a.png"},
		{"people.xlsx", 12, "form.pdf", "", "people-12-form.pdf"},
		{"team.v2.xlsx", 3, "card.front.png", "", "teamv2-3-cardfront.png"},
		{"people.xlsx", 1, "a.png", ".jpg", "people-1-a.jpg"},
		{"people", 2, "noext", "", "people-2-noext"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, batch.OutputName(tt.set, tt.ordinal, tt.asset, tt.ext))
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "processing", batch.Processing.String())
	assert.Equal(t, "unknown", batch.State(9).String())
	text, err := batch.Failed.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "failed", string(text))

	var s batch.State
	require.NoError(t, s.UnmarshalText([]byte("completed")))
	assert.Equal(t, batch.Completed, s)
	assert.Error(t, s.UnmarshalText([]byte("done")))
}
