package sheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
)

// ReadXLSX reads the first worksheet of an Office Open XML workbook.
func ReadXLSX(r io.Reader) (*Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("sheet: open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return build("", nil), nil
	}
	name := sheets[0]
	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("sheet: read %s: %w", name, err)
	}

	grid := make([][]cell, len(rows))
	for y, row := range rows {
		grid[y] = make([]cell, len(row))
		for x, raw := range row {
			if raw == "" {
				continue
			}
			ref, err := excelize.CoordinatesToCellName(x+1, y+1)
			if err != nil {
				return nil, fmt.Errorf("sheet: %w", err)
			}
			typ, err := f.GetCellType(name, ref)
			if err != nil {
				return nil, fmt.Errorf("sheet: cell %s: %w", ref, err)
			}
			grid[y][x] = xlsxCell(typ, raw)
		}
	}
	return build(name, grid), nil
}

func xlsxCell(typ excelize.CellType, raw string) cell {
	switch typ {
	case excelize.CellTypeBool:
		return text(strconv.FormatBool(raw == "1" || strings.EqualFold(raw, "true")))
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return number(f)
		}
	}
	return text(raw)
}

// ReadXLS reads the first worksheet of a legacy BIFF workbook.
func ReadXLS(r io.ReadSeeker) (s *Sheet, err error) {
	// The BIFF decoder panics on some malformed records.
	defer func() {
		if p := recover(); p != nil {
			s, err = nil, fmt.Errorf("sheet: read xls: %v", p)
		}
	}()

	wb, err := xls.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("sheet: open xls: %w", err)
	}
	if wb.GetNumberSheets() == 0 {
		return build("", nil), nil
	}
	ws, err := wb.GetSheet(0)
	if err != nil {
		return nil, fmt.Errorf("sheet: read xls: %w", err)
	}

	var grid [][]cell
	for y := 0; y < ws.GetNumberRows(); y++ {
		row, err := ws.GetRow(y)
		if err != nil || row == nil {
			grid = append(grid, nil)
			continue
		}
		cols := row.GetCols()
		cells := make([]cell, len(cols))
		for x, c := range cols {
			raw := c.GetString()
			if raw == "" {
				continue
			}
			cells[x] = text(raw)
			if !strings.Contains(c.GetType(), "Label") {
				if f, err := strconv.ParseFloat(raw, 64); err == nil {
					cells[x] = number(f)
				}
			}
		}
		grid = append(grid, cells)
	}
	return build(ws.GetName(), grid), nil
}

// ReadCSV reads comma separated values. Cells are kept as text.
func ReadCSV(r io.Reader) (*Sheet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("sheet: read csv: %w", err)
	}
	grid := make([][]cell, len(records))
	for y, rec := range records {
		grid[y] = make([]cell, len(rec))
		for x, v := range rec {
			if y == 0 && x == 0 {
				v = strings.TrimPrefix(v, "\ufeff")
			}
			grid[y][x] = text(v)
		}
	}
	return build("", grid), nil
}
