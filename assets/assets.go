// Package assets locates template assets and fonts in configured directories.
//
// Asset names are plain file names: resolution is an exact match in the
// asset directory, never fuzzy and never extension-insensitive. Listing
// matches extensions case-insensitively and returns names only.
package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/lvillar/tplmerge"
)

var (
	imageExt  = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif)$`)
	docExt    = regexp.MustCompile(`(?i)\.pdf$`)
	fontExt   = regexp.MustCompile(`(?i)\.(ttf|otf|woff|woff2)$`)
	outputExt = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|pdf)$`)
)

// Resolve returns the path of asset name inside baseDir. It fails with an
// error matching tplmerge.ErrNotFound when no regular file of exactly that
// name exists, or when name is not a plain file name.
func Resolve(baseDir, name string) (string, error) {
	if !plainName(name) {
		return "", fmt.Errorf("assets: %q is not a file name: %w", name, tplmerge.ErrNotFound)
	}
	path := filepath.Join(baseDir, name)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("assets: %s: %w", path, tplmerge.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("assets: %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("assets: %s is not a regular file: %w", path, tplmerge.ErrNotFound)
	}
	// Case-insensitive file systems would accept "A.PNG" for "a.png".
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return "", fmt.Errorf("assets: reading %s: %w", baseDir, err)
	}
	for _, e := range entries {
		if e.Name() == name {
			return path, nil
		}
	}
	return "", fmt.Errorf("assets: %s: %w", path, tplmerge.ErrNotFound)
}

func plainName(name string) bool {
	return name != "" && name == filepath.Base(name) && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`)
}

// ListImages returns the image assets (jpg, jpeg, png, gif) in dir.
func ListImages(dir string) ([]string, error) {
	return list(dir, imageExt)
}

// ListDocuments returns the PDF assets in dir.
func ListDocuments(dir string) ([]string, error) {
	return list(dir, docExt)
}

// ListFonts returns the font files (ttf, otf, woff, woff2) in dir.
func ListFonts(dir string) ([]string, error) {
	return list(dir, fontExt)
}

// ListOutputs returns the rendered files in an output directory.
func ListOutputs(dir string) ([]string, error) {
	return list(dir, outputExt)
}

// list returns sorted regular file names in dir matching re.
// A missing or unset directory lists as empty.
func list(dir string, re *regexp.Regexp) ([]string, error) {
	if dir == "" {
		return []string{}, nil
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("assets: reading %s: %w", dir, err)
	}
	names := []string{}
	for _, e := range entries {
		if e.IsDir() || !re.MatchString(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return names, nil
}

// Catalog is the set of template assets available in one directory,
// partitioned by kind.
type Catalog struct {
	Dir       string
	Images    []string
	Documents []string
	index     map[string]tplmerge.AssetKind
}

// LoadCatalog lists dir and builds its catalog.
func LoadCatalog(dir string) (*Catalog, error) {
	images, err := ListImages(dir)
	if err != nil {
		return nil, err
	}
	docs, err := ListDocuments(dir)
	if err != nil {
		return nil, err
	}
	return NewCatalog(dir, images, docs), nil
}

// NewCatalog builds a catalog from already listed names.
func NewCatalog(dir string, images, documents []string) *Catalog {
	c := &Catalog{
		Dir:       dir,
		Images:    images,
		Documents: documents,
		index:     make(map[string]tplmerge.AssetKind, len(images)+len(documents)),
	}
	for _, n := range images {
		c.index[n] = tplmerge.KindImage
	}
	for _, n := range documents {
		c.index[n] = tplmerge.KindDocument
	}
	return c
}

// Contains reports whether name is in the catalog.
func (c *Catalog) Contains(name string) bool {
	_, ok := c.index[name]
	return ok
}

// KindOf returns the kind of a catalogued asset, or KindUnknown.
func (c *Catalog) KindOf(name string) tplmerge.AssetKind {
	return c.index[name]
}

// Path returns the file path of a catalogued asset. The catalog was built
// from an exact listing of Dir, so no further lookup is done; a file removed
// since then fails when it is read.
func (c *Catalog) Path(name string) (string, bool) {
	if !plainName(name) || !c.Contains(name) {
		return "", false
	}
	return filepath.Join(c.Dir, name), true
}

// Len returns the number of catalogued assets.
func (c *Catalog) Len() int { return len(c.index) }

var familyStrip = regexp.MustCompile(`[\s-]+`)

// FontFamily derives the family name the editor shows for a font file:
// the extension is dropped along with spaces and dashes.
func FontFamily(fileName string) string {
	base := fontExt.ReplaceAllString(fileName, "")
	return familyStrip.ReplaceAllString(base, "")
}
