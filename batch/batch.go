// Package batch runs a spreadsheet through the template engines.
//
// A run validates its Job, then takes the rows in order: the asset named
// by each row's img_path column is looked up in the asset catalog, rendered
// by the raster engine (images) or filled by the pdffill engine (PDF
// forms), and written to the output directory. Rows whose asset is not in
// the catalog are skipped without an error. A failing row is recorded in
// the Summary and the run continues.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/lvillar/tplmerge"
	"github.com/lvillar/tplmerge/assets"
	"github.com/lvillar/tplmerge/pdffill"
	"github.com/lvillar/tplmerge/raster"
)

// Job is the input of one run.
type Job struct {
	Rows []tplmerge.Row
	// TemplateSetID names the template set, the base name of the
	// spreadsheet the rows come from. It prefixes every output name.
	TemplateSetID   string
	AssetDir        string
	OutputDir       string
	Placements      tplmerge.Placements
	PdfReplacements tplmerge.PdfReplacementTable
	// Scale is the image render scale; zero renders at template size.
	Scale float64
	// Catalog overrides the catalog listed from AssetDir.
	Catalog *assets.Catalog
}

// RowResult is the outcome of one row.
type RowResult struct {
	Ordinal    int                `json:"ordinal"`
	Asset      string             `json:"asset"`
	Kind       tplmerge.AssetKind `json:"kind"`
	OutputPath string             `json:"outputPath,omitempty"`
	Skipped    bool               `json:"skipped,omitempty"`
	// Notes lists form fields that were not written.
	Notes []string `json:"notes,omitempty"`
	Err   error    `json:"-" yaml:"-"`
}

// Summary is the outcome of a run.
type Summary struct {
	RunID     string                     `json:"runId"`
	State     State                      `json:"state"`
	OutputDir string                     `json:"outputDir"`
	Results   []string                   `json:"results"`
	Errors    []string                   `json:"errors"`
	Counts    map[tplmerge.AssetKind]int `json:"counts"`
	Skipped   int                        `json:"skipped"`
	Rows      []RowResult                `json:"rows"`
}

// ProgressFunc receives the 1-based ordinal of the row just processed, the
// row count, and the number of outputs written so far per asset kind.
type ProgressFunc func(current, total int, counts map[tplmerge.AssetKind]int)

// Runner executes jobs, one at a time.
type Runner struct {
	raster   *raster.Engine
	pdf      *pdffill.Engine
	logger   *slog.Logger
	progress ProgressFunc
	state    atomic.Int32
}

// Option configures a Runner.
type Option func(*Runner)

// WithRaster sets the engine used for image templates.
func WithRaster(e *raster.Engine) Option {
	return func(r *Runner) {
		if e != nil {
			r.raster = e
		}
	}
}

// WithPDF sets the engine used for PDF templates.
func WithPDF(e *pdffill.Engine) Option {
	return func(r *Runner) {
		if e != nil {
			r.pdf = e
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithProgress sets the function called after every row.
func WithProgress(fn ProgressFunc) Option {
	return func(r *Runner) {
		r.progress = fn
	}
}

// NewRunner returns an idle Runner configured by opts.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	if r.raster == nil {
		r.raster = raster.New(raster.WithLogger(r.logger))
	}
	if r.pdf == nil {
		r.pdf = pdffill.New(pdffill.WithLogger(r.logger))
	}
	return r
}

// State returns the phase of the current or last run.
func (r *Runner) State() State {
	return State(r.state.Load())
}

func (r *Runner) setState(s State) {
	r.state.Store(int32(s))
}

// begin moves the Runner to Validating unless a run is in flight.
func (r *Runner) begin() bool {
	for {
		s := r.State()
		if s.Running() {
			return false
		}
		if r.state.CompareAndSwap(int32(s), int32(Validating)) {
			return true
		}
	}
}

// Run executes job. It fails with tplmerge.ErrBusy while another run is in
// flight, and with a *tplmerge.ConfigError when a required directory or the
// template set is missing; no row is processed in either case.
//
// Row failures do not fail the run: they are listed in Summary.Errors as
// "row N (asset): message". When ctx is cancelled the run stops before the
// next row and returns the Summary so far along with the context error.
func (r *Runner) Run(ctx context.Context, job Job) (*Summary, error) {
	if !r.begin() {
		return nil, tplmerge.ErrBusy
	}
	catalog, err := r.validate(job)
	if err != nil {
		r.setState(Failed)
		r.logger.Error("batch not started", "error", err)
		return nil, err
	}

	sum := &Summary{
		RunID:     uuid.NewString(),
		State:     Processing,
		OutputDir: job.OutputDir,
		Results:   []string{},
		Errors:    []string{},
		Counts:    map[tplmerge.AssetKind]int{},
		Rows:      make([]RowResult, 0, len(job.Rows)),
	}
	r.setState(Processing)
	log := r.logger.With("run", sum.RunID)
	log.Info("batch started", "rows", len(job.Rows), "templateSet", job.TemplateSetID)

	for i, row := range job.Rows {
		if err := ctx.Err(); err != nil {
			sum.State = Failed
			r.setState(Failed)
			log.Warn("batch cancelled", "done", i, "rows", len(job.Rows))
			return sum, fmt.Errorf("batch: %w", err)
		}

		res := r.processRow(job, catalog, i+1, row)
		switch {
		case res.Skipped:
			sum.Skipped++
			log.Debug("row skipped", "row", res.Ordinal, "asset", res.Asset)
		case res.Err != nil:
			sum.Errors = append(sum.Errors, rowMessage(res, res.Err))
			log.Warn("row failed", "row", res.Ordinal, "asset", res.Asset, "error", res.Err)
		default:
			sum.Results = append(sum.Results, res.OutputPath)
			sum.Counts[res.Kind]++
		}
		for _, note := range res.Notes {
			sum.Errors = append(sum.Errors, fmt.Sprintf("row %d (%s): %s", res.Ordinal, res.Asset, note))
		}
		sum.Rows = append(sum.Rows, res)

		if r.progress != nil {
			r.progress(res.Ordinal, len(job.Rows), maps.Clone(sum.Counts))
		}
	}

	sum.State = Completed
	r.setState(Completed)
	log.Info("batch completed", "results", len(sum.Results), "errors", len(sum.Errors), "skipped", sum.Skipped)
	return sum, nil
}

func rowMessage(res RowResult, err error) string {
	if me, ok := err.(*tplmerge.MergeError); ok && me.Err != nil {
		err = me.Err
	}
	return fmt.Sprintf("row %d (%s): %v", res.Ordinal, res.Asset, err)
}

// validate checks the job settings, creates the output directory and
// returns the asset catalog.
func (r *Runner) validate(job Job) (*assets.Catalog, error) {
	switch {
	case job.OutputDir == "":
		return nil, &tplmerge.ConfigError{Field: "output directory"}
	case job.TemplateSetID == "":
		return nil, &tplmerge.ConfigError{Field: "template set"}
	case job.AssetDir == "" && job.Catalog == nil:
		return nil, &tplmerge.ConfigError{Field: "asset directory"}
	}
	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("batch: create output directory: %w", err)
	}
	if job.Catalog != nil {
		return job.Catalog, nil
	}
	catalog, err := assets.LoadCatalog(job.AssetDir)
	if err != nil {
		return nil, fmt.Errorf("batch: list assets: %w", err)
	}
	return catalog, nil
}

// processRow merges one row. A panic in an engine fails the row, not the
// batch.
func (r *Runner) processRow(job Job, catalog *assets.Catalog, ordinal int, row tplmerge.Row) (res RowResult) {
	asset := row.Asset()
	res = RowResult{Ordinal: ordinal, Asset: asset, Kind: catalog.KindOf(asset)}
	path, ok := catalog.Path(asset)
	if !ok {
		res.Skipped = true
		return res
	}

	op := "Read"
	defer func() {
		if p := recover(); p != nil {
			res.Err = tplmerge.NewMergeError(op, fmt.Errorf("%s: panic: %v", asset, p))
			res.OutputPath = ""
			res.Notes = nil
		}
	}()

	src, err := os.ReadFile(path)
	if err != nil {
		res.Err = tplmerge.NewMergeError("Read", err)
		return res
	}

	var out []byte
	ext := filepath.Ext(asset)
	switch res.Kind {
	case tplmerge.KindImage:
		op = "Render"
		out, err = r.raster.Render(src, job.Placements[asset], row, job.Scale)
		if err != nil {
			res.Err = tplmerge.NewMergeError("Render", err)
			return res
		}
		ext = r.raster.OutputExt(ext)
	case tplmerge.KindDocument:
		op = "Fill"
		var report *pdffill.Report
		out, report, err = r.pdf.Fill(src, job.PdfReplacements[asset], row)
		if err != nil {
			res.Err = tplmerge.NewMergeError("Fill", err)
			return res
		}
		for _, s := range report.Skipped {
			res.Notes = append(res.Notes, s.String())
		}
	default:
		res.Err = tplmerge.NewMergeError("Dispatch", fmt.Errorf("%s: %w", asset, tplmerge.ErrUnsupported))
		return res
	}

	op = "Write"
	res.OutputPath = filepath.Join(job.OutputDir, OutputName(job.TemplateSetID, ordinal, asset, ext))
	if err := os.WriteFile(res.OutputPath, out, 0o644); err != nil {
		res.Err = tplmerge.NewMergeError("Write", err)
		res.OutputPath = ""
	}
	return res
}
