// Package app ties the settings file, the placement store and the engines
// together for the command line and the host interface.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lvillar/tplmerge"
	"github.com/lvillar/tplmerge/assets"
	"github.com/lvillar/tplmerge/batch"
	"github.com/lvillar/tplmerge/config"
	"github.com/lvillar/tplmerge/pdffill"
	"github.com/lvillar/tplmerge/raster"
	"github.com/lvillar/tplmerge/sheet"
	"github.com/lvillar/tplmerge/store"
)

// DefaultStoreFile is the placement file kept next to the settings file
// unless store.path says otherwise.
const DefaultStoreFile = "placements.json"

// App is an opened workspace.
type App struct {
	ConfigPath string
	Config     *config.Config
	Store      store.Store
	Logger     *slog.Logger

	closeStore func() error
}

// Open loads the settings at configPath, or the defaults when the file does
// not exist, and opens the configured placement store.
func Open(ctx context.Context, configPath string, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{ConfigPath: configPath, Config: cfg, Logger: logger, closeStore: func() error { return nil }}

	switch cfg.Store.Kind {
	case config.StoreRedis:
		rs, err := store.DialRedis(ctx, cfg.Store.RedisAddr, cfg.Store.RedisKey)
		if err != nil {
			return nil, err
		}
		a.Store, a.closeStore = rs, rs.Close
	default:
		path := cfg.Store.Path
		if path == "" {
			path = filepath.Join(filepath.Dir(configPath), DefaultStoreFile)
		}
		a.Store = store.NewFileStore(path)
	}
	logger.Debug("workspace opened", "config", configPath, "store", cfg.Store.Kind)
	return a, nil
}

// Close releases the placement store.
func (a *App) Close() error {
	return a.closeStore()
}

// SaveConfig writes the settings file.
func (a *App) SaveConfig() error {
	if err := a.Config.Validate(); err != nil {
		return err
	}
	return a.Config.Save(a.ConfigPath)
}

// TemplateSetID returns the identifier of the active template set.
func (a *App) TemplateSetID() string {
	return tplmerge.TemplateSetID(a.Config.SpreadsheetPath())
}

// Spreadsheet reads the active spreadsheet.
func (a *App) Spreadsheet() (*sheet.Sheet, error) {
	path := a.Config.SpreadsheetPath()
	if path == "" {
		return nil, &tplmerge.ConfigError{Field: "spreadsheet"}
	}
	return sheet.Read(path)
}

// Activate selects a spreadsheet and makes its template set active,
// inheriting the placements of the previous set when it has none.
func (a *App) Activate(ctx context.Context, spreadsheet string) (string, error) {
	a.Config.ActiveSpreadsheet = spreadsheet
	if err := a.SaveConfig(); err != nil {
		return "", err
	}
	s, err := a.Store.Load(ctx)
	if err != nil {
		return "", err
	}
	id := a.TemplateSetID()
	s.SwitchTemplateSet(id)
	if err := a.Store.Save(ctx, s); err != nil {
		return "", err
	}
	a.Logger.Info("template set activated", "templateSet", id)
	return id, nil
}

// Settings loads the stored placements. When a spreadsheet is active,
// settings for columns it no longer has are collected first.
func (a *App) Settings(ctx context.Context) (*store.Settings, error) {
	s, err := a.Store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if a.Config.SpreadsheetPath() == "" {
		return s, nil
	}
	sh, err := a.Spreadsheet()
	if err != nil {
		a.Logger.Warn("spreadsheet unreadable, placements kept", "error", err)
		return s, nil
	}
	if s.CollectGarbage(sh.Columns) {
		a.Logger.Info("removed placements of missing columns", "templateSet", a.TemplateSetID())
		if err := a.Store.Save(ctx, s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// CollectGarbage prunes the stored settings against columns and reports
// whether anything was removed.
func (a *App) CollectGarbage(ctx context.Context, columns []string) (bool, error) {
	s, err := a.Store.Load(ctx)
	if err != nil {
		return false, err
	}
	if !s.CollectGarbage(columns) {
		return false, nil
	}
	return true, a.Store.Save(ctx, s)
}

// SavePlacements replaces the placements of template set id; "" is the
// active set.
func (a *App) SavePlacements(ctx context.Context, id string, p tplmerge.Placements) error {
	return a.update(ctx, func(s *store.Settings) {
		s.SetTemplatePlacements(a.orActive(id), p)
	})
}

// SaveReplacements replaces the PDF replacement table of template set id;
// "" is the active set.
func (a *App) SaveReplacements(ctx context.Context, id string, t tplmerge.PdfReplacementTable) error {
	return a.update(ctx, func(s *store.Settings) {
		s.SetReplacements(a.orActive(id), t)
	})
}

func (a *App) orActive(id string) string {
	if id == "" {
		return a.TemplateSetID()
	}
	return id
}

func (a *App) update(ctx context.Context, fn func(*store.Settings)) error {
	s, err := a.Store.Load(ctx)
	if err != nil {
		return err
	}
	fn(s)
	return a.Store.Save(ctx, s)
}

// Job assembles the batch input from the settings, the store and the
// active spreadsheet. Missing settings are left empty for the runner to
// report.
func (a *App) Job(ctx context.Context) (batch.Job, error) {
	cfg := a.Config
	job := batch.Job{
		TemplateSetID: a.TemplateSetID(),
		AssetDir:      cfg.Paths.ImageDir,
		OutputDir:     cfg.Paths.OutputDir,
		Scale:         cfg.ImageScale,
	}
	if job.TemplateSetID == "" {
		return job, nil
	}
	sh, err := a.Spreadsheet()
	if err != nil {
		return job, err
	}
	s, err := a.Store.Load(ctx)
	if err != nil {
		return job, err
	}
	job.Rows = sh.Rows
	job.Placements = s.TemplatePlacements(job.TemplateSetID)
	job.PdfReplacements = s.Replacements(job.TemplateSetID)
	return job, nil
}

// NewRunner returns a batch runner with engines configured from the
// settings file.
func (a *App) NewRunner(opts ...batch.Option) *batch.Runner {
	cfg := a.Config
	rasterOpts := []raster.Option{
		raster.WithFormat(cfg.RasterFormat()),
		raster.WithLogger(a.Logger),
	}
	if cfg.Output.JPEGQuality > 0 {
		rasterOpts = append(rasterOpts, raster.WithJPEGQuality(cfg.Output.JPEGQuality))
	}
	if cfg.Paths.FontDir != "" {
		rasterOpts = append(rasterOpts, raster.WithFonts(raster.NewDirFontResolver(cfg.Paths.FontDir)))
	}
	base := []batch.Option{
		batch.WithLogger(a.Logger),
		batch.WithRaster(raster.New(rasterOpts...)),
		batch.WithPDF(pdffill.New(
			pdffill.WithLogger(a.Logger),
			pdffill.WithFlatten(cfg.Output.FlattenPDF),
		)),
	}
	return batch.NewRunner(append(base, opts...)...)
}

// AssetPath resolves a template asset in the image directory.
func (a *App) AssetPath(name string) (string, error) {
	if a.Config.Paths.ImageDir == "" {
		return "", &tplmerge.ConfigError{Field: "image directory"}
	}
	return assets.Resolve(a.Config.Paths.ImageDir, name)
}

// FormFields lists the form fields of a PDF template.
func (a *App) FormFields(name string) ([]pdffill.FieldInfo, error) {
	path, err := a.AssetPath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return pdffill.FormFields(data)
}
