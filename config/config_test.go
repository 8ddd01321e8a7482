package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lvillar/tplmerge/raster"
)

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Paths = Paths{SpreadsheetDir: "/data/sheets", ImageDir: "/data/img", OutputDir: "/data/out", FontDir: "/data/fonts"}
	cfg.ActiveSpreadsheet = "people.xlsx"
	cfg.ImageScale = 2
	cfg.Output.Format = "png"
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "spreadsheetDir: /data/sheets")
	assert.Contains(t, string(data), "imageScale: 2")
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("imageScale: 1.5\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1.5, cfg.ImageScale)
	assert.Equal(t, raster.DefaultJPEGQuality, cfg.Output.JPEGQuality)
	assert.Equal(t, StoreFile, cfg.Store.Kind)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	cfg, err := LoadOrDefault(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("paths: [1, 2\n"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		edit    func(*Config)
		wantErr string
	}{
		{"default", func(*Config) {}, ""},
		{"max scale", func(c *Config) { c.ImageScale = 4 }, ""},
		{"negative scale", func(c *Config) { c.ImageScale = -1 }, "imageScale"},
		{"large scale", func(c *Config) { c.ImageScale = 4.5 }, "imageScale"},
		{"format", func(c *Config) { c.Output.Format = "bmp" }, "unknown output format"},
		{"jpg alias", func(c *Config) { c.Output.Format = "jpg" }, ""},
		{"quality", func(c *Config) { c.Output.JPEGQuality = 101 }, "jpegQuality"},
		{"store kind", func(c *Config) { c.Store.Kind = "s3" }, "store.kind"},
		{"redis addr", func(c *Config) { c.Store.Kind = StoreRedis }, "redisAddr"},
		{"redis", func(c *Config) { c.Store = Store{Kind: StoreRedis, RedisAddr: "localhost:6379"} }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.edit(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSpreadsheetPath(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "", cfg.SpreadsheetPath())

	cfg.ActiveSpreadsheet = "people.xlsx"
	assert.Equal(t, "people.xlsx", cfg.SpreadsheetPath())

	cfg.Paths.SpreadsheetDir = filepath.Join("data", "sheets")
	assert.Equal(t, filepath.Join("data", "sheets", "people.xlsx"), cfg.SpreadsheetPath())

	abs := filepath.Join(t.TempDir(), "other.xlsx")
	cfg.ActiveSpreadsheet = abs
	assert.Equal(t, abs, cfg.SpreadsheetPath())

	cfg.ResetPaths()
	assert.Equal(t, Paths{}, cfg.Paths)
	assert.Equal(t, "", cfg.SpreadsheetPath())
}

func TestRasterFormat(t *testing.T) {
	cfg := Default()
	assert.Equal(t, raster.FormatAuto, cfg.RasterFormat())
	cfg.Output.Format = "JPG"
	assert.Equal(t, raster.FormatJPEG, cfg.RasterFormat())
	cfg.Output.Format = "tiff"
	assert.Equal(t, raster.FormatAuto, cfg.RasterFormat())
}

func TestDefaultPath(t *testing.T) {
	path, err := DefaultPath(func(key string) string {
		if key == "TPLMERGE_CONFIG" {
			return "/etc/tplmerge.yaml"
		}
		return ""
	})
	require.NoError(t, err)
	assert.Equal(t, "/etc/tplmerge.yaml", path)
}
