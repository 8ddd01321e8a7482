// Package config handles the tplmerge application settings file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/lvillar/tplmerge/raster"
)

// MaxImageScale bounds Config.ImageScale.
const MaxImageScale = 4

// Store kinds.
const (
	StoreFile  = "file"
	StoreRedis = "redis"
)

// Config represents the tplmerge.yaml settings file.
type Config struct {
	Paths             Paths   `yaml:"paths"`
	ActiveSpreadsheet string  `yaml:"activeSpreadsheet,omitempty"`
	ImageScale        float64 `yaml:"imageScale"`
	Output            Output  `yaml:"output"`
	Store             Store   `yaml:"store"`
}

// Paths are the directories chosen by the user.
type Paths struct {
	SpreadsheetDir string `yaml:"spreadsheetDir,omitempty"`
	ImageDir       string `yaml:"imageDir,omitempty"`
	OutputDir      string `yaml:"outputDir,omitempty"`
	FontDir        string `yaml:"fontDir,omitempty"`
}

// Output configures rendered images and filled documents.
type Output struct {
	Format      string `yaml:"format,omitempty"`
	JPEGQuality int    `yaml:"jpegQuality,omitempty"`
	// FlattenPDF makes filled form fields part of the page content.
	FlattenPDF bool `yaml:"flattenPdf,omitempty"`
}

// Store selects where placements are persisted.
type Store struct {
	Kind      string `yaml:"kind,omitempty"`
	Path      string `yaml:"path,omitempty"`
	RedisAddr string `yaml:"redisAddr,omitempty"`
	RedisKey  string `yaml:"redisKey,omitempty"`
}

// Default returns the settings of a fresh installation.
func Default() *Config {
	return &Config{
		Output: Output{Format: string(raster.FormatAuto), JPEGQuality: raster.DefaultJPEGQuality},
		Store:  Store{Kind: StoreFile},
	}
}

// Load reads a Config from a file path. Keys missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := Default()
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, returning the defaults when the file does not
// exist yet.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes the Config to a file path, creating its directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}

// Validate checks the configuration for valid values. Unset paths are not
// an error here; a batch reports them when it starts.
func (c *Config) Validate() error {
	var errs []error
	if c.ImageScale < 0 || c.ImageScale > MaxImageScale {
		errs = append(errs, fmt.Errorf("imageScale %v is outside 0..%d", c.ImageScale, MaxImageScale))
	}
	if _, err := raster.ParseFormat(c.Output.Format); err != nil {
		errs = append(errs, err)
	}
	if q := c.Output.JPEGQuality; q < 0 || q > 100 {
		errs = append(errs, fmt.Errorf("output.jpegQuality %d is outside 1..100", q))
	}
	switch c.Store.Kind {
	case "", StoreFile:
	case StoreRedis:
		if c.Store.RedisAddr == "" {
			errs = append(errs, errors.New("store.redisAddr is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.kind %q", c.Store.Kind))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ResetPaths clears the chosen directories and the active spreadsheet.
func (c *Config) ResetPaths() {
	c.Paths = Paths{}
	c.ActiveSpreadsheet = ""
}

// SpreadsheetPath returns the path of the active spreadsheet, or "" when
// none is selected. A relative name is taken from the spreadsheet
// directory.
func (c *Config) SpreadsheetPath() string {
	if c.ActiveSpreadsheet == "" {
		return ""
	}
	if filepath.IsAbs(c.ActiveSpreadsheet) || c.Paths.SpreadsheetDir == "" {
		return c.ActiveSpreadsheet
	}
	return filepath.Join(c.Paths.SpreadsheetDir, c.ActiveSpreadsheet)
}

// RasterFormat returns the configured output format.
func (c *Config) RasterFormat() raster.Format {
	f, err := raster.ParseFormat(c.Output.Format)
	if err != nil {
		return raster.FormatAuto
	}
	return f
}

// DefaultPath returns the settings file location: $TPLMERGE_CONFIG when set,
// else tplmerge/config.yaml in the user configuration directory.
func DefaultPath(getenv func(string) string) (string, error) {
	if p := getenv("TPLMERGE_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: %w", err)
	}
	return filepath.Join(dir, "tplmerge", "config.yaml"), nil
}
