package raster

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"

	"github.com/lvillar/tplmerge"
	"github.com/lvillar/tplmerge/assets"
)

// DefaultFontName is the family used when a placement has no font set.
const DefaultFontName = "Go Regular"

// Font is a parsed TrueType or OpenType font.
type Font struct {
	Name string
	sfnt *sfnt.Font
}

// ParseFont parses TTF or OTF data.
func ParseFont(name string, data []byte) (*Font, error) {
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("raster: font %s: %w", name, err)
	}
	return &Font{Name: name, sfnt: f}, nil
}

// Face returns a face of f at size pixels. Faces are not safe for
// concurrent use; callers close them when done.
func (f *Font) Face(size float64) (font.Face, error) {
	face, err := opentype.NewFace(f.sfnt, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("raster: font %s at %gpx: %w", f.Name, size, err)
	}
	return face, nil
}

var defaultFont = sync.OnceValue(func() *Font {
	f, err := ParseFont(DefaultFontName, goregular.TTF)
	if err != nil {
		panic(err)
	}
	return f
})

// DefaultFont returns the built-in font.
func DefaultFont() *Font { return defaultFont() }

// FontResolver maps the fontFamily stored in a placement to a font.
type FontResolver interface {
	Resolve(name string) (*Font, error)
}

// DirFontResolver resolves fonts from the files of one directory. A name
// is matched against file names first, then against the family name derived
// from each file. Parsed fonts are cached.
type DirFontResolver struct {
	dir string

	mu    sync.Mutex
	cache map[string]*Font
}

// NewDirFontResolver returns a resolver over dir.
func NewDirFontResolver(dir string) *DirFontResolver {
	return &DirFontResolver{dir: dir, cache: make(map[string]*Font)}
}

// Resolve implements FontResolver.
func (r *DirFontResolver) Resolve(name string) (*Font, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.cache[name]; ok {
		return f, nil
	}
	file, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(file)) {
	case ".woff", ".woff2":
		return nil, fmt.Errorf("raster: font %s: web fonts are %w", file, tplmerge.ErrUnsupported)
	}
	data, err := os.ReadFile(filepath.Join(r.dir, file))
	if err != nil {
		return nil, fmt.Errorf("raster: font %s: %w", file, err)
	}
	f, err := ParseFont(assets.FontFamily(file), data)
	if err != nil {
		return nil, err
	}
	r.cache[name] = f
	return f, nil
}

func (r *DirFontResolver) lookup(name string) (string, error) {
	if r.dir == "" {
		return "", fmt.Errorf("raster: font %s: no font directory: %w", name, tplmerge.ErrNotFound)
	}
	if path, err := assets.Resolve(r.dir, name); err == nil {
		return filepath.Base(path), nil
	} else if !errors.Is(err, tplmerge.ErrNotFound) && !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	files, err := assets.ListFonts(r.dir)
	if err != nil {
		return "", err
	}
	for _, file := range files {
		if assets.FontFamily(file) == name {
			return file, nil
		}
	}
	return "", fmt.Errorf("raster: font %s: %w", name, tplmerge.ErrNotFound)
}

// StaticFonts resolves from a fixed set of fonts keyed by name.
type StaticFonts map[string]*Font

// Resolve implements FontResolver.
func (s StaticFonts) Resolve(name string) (*Font, error) {
	if f, ok := s[name]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("raster: font %s: %w", name, tplmerge.ErrNotFound)
}
