// Package sheet reads spreadsheet rows for a batch.
//
// The first row of the first worksheet holds the column names; every later
// row becomes a tplmerge.Row holding the non-empty cells under their column
// names. Fully empty rows are dropped.
package sheet

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/lvillar/tplmerge"
)

// Sheet is the content of a spreadsheet.
type Sheet struct {
	Name    string
	Columns []string
	Rows    []tplmerge.Row
}

// cell is one parsed cell; the zero cell is empty.
type cell struct {
	value tplmerge.Value
	set   bool
}

func text(s string) cell {
	if s == "" {
		return cell{}
	}
	return cell{value: tplmerge.StringValue(s), set: true}
}

func number(f float64) cell {
	return cell{value: tplmerge.NumberValue(f), set: true}
}

// Read reads the spreadsheet at path, choosing the format by extension.
func Read(path string) (*Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sheet: %w", err)
	}
	defer f.Close()

	var s *Sheet
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		s, err = ReadXLSX(f)
	case ".xls":
		s, err = ReadXLS(f)
	case ".csv":
		s, err = ReadCSV(f)
	default:
		return nil, fmt.Errorf("sheet: %s: %w", filepath.Base(path), tplmerge.ErrUnsupported)
	}
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, filepath.Base(path))
	}
	return s, nil
}

// Columns returns the column names of the spreadsheet at path.
func Columns(path string) ([]string, error) {
	s, err := Read(path)
	if err != nil {
		return nil, err
	}
	return s.Columns, nil
}

// build turns a grid into a Sheet. Header cells are named by their text;
// empty or repeated names are made unique with a numeric suffix.
func build(name string, grid [][]cell) *Sheet {
	s := &Sheet{Name: name, Columns: []string{}, Rows: []tplmerge.Row{}}
	if len(grid) == 0 {
		return s
	}
	seen := map[string]int{}
	for _, c := range grid[0] {
		col := strings.TrimSpace(c.value.String())
		if col == "" {
			col = "__EMPTY"
		}
		if n := seen[col]; n > 0 {
			seen[col] = n + 1
			col = col + "_" + strconv.Itoa(n)
		} else {
			seen[col] = 1
		}
		s.Columns = append(s.Columns, col)
	}

	for _, cells := range grid[1:] {
		var cols []string
		var vals []tplmerge.Value
		for i, c := range cells {
			if !c.set || i >= len(s.Columns) {
				continue
			}
			cols = append(cols, s.Columns[i])
			vals = append(vals, c.value)
		}
		if len(cols) == 0 {
			continue
		}
		s.Rows = append(s.Rows, tplmerge.NewRow(cols, vals))
	}
	return s
}

var spreadsheetExt = regexp.MustCompile(`(?i)\.(xlsx|xlsm|xls|csv)$`)

// ListSpreadsheets returns the spreadsheet file names in dir, sorted.
// Office lock files are left out. A missing directory has none.
func ListSpreadsheets(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sheet: %w", err)
	}
	names := []string{}
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || strings.HasPrefix(n, "~$") || !spreadsheetExt.MatchString(n) {
			continue
		}
		names = append(names, n)
	}
	slices.Sort(names)
	return names, nil
}
