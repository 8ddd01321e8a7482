package store

import "github.com/lvillar/tplmerge"

// CollectGarbage prunes settings that refer to columns no longer present in
// the active spreadsheet. Fields missing from columns are removed from every
// asset of every template set, assets left without fields are removed, and
// template sets left without assets are removed. The same cascade is applied
// to PDF replacement tables. It reports whether anything was removed.
//
// Running it twice with the same columns yields the same result as once.
func (s *Settings) CollectGarbage(columns []string) bool {
	s.normalize()
	keep := make(map[string]bool, len(columns))
	for _, c := range columns {
		keep[c] = true
	}

	changed := false
	for id, sets := range s.Placements {
		for asset, fields := range sets {
			for field := range fields {
				if !keep[field] {
					delete(fields, field)
					changed = true
				}
			}
			if len(fields) == 0 {
				delete(sets, asset)
				changed = true
			}
		}
		if len(sets) == 0 {
			delete(s.Placements, id)
			changed = true
		}
	}

	for id, table := range s.PdfReplacements {
		if pruneReplacements(table, keep) {
			changed = true
		}
		if len(table) == 0 {
			delete(s.PdfReplacements, id)
			changed = true
		}
	}
	return changed
}

func pruneReplacements(table tplmerge.PdfReplacementTable, keep map[string]bool) bool {
	changed := false
	for asset, m := range table {
		for column := range m {
			if !keep[column] {
				delete(m, column)
				changed = true
			}
		}
		if len(m) == 0 {
			delete(table, asset)
			changed = true
		}
	}
	return changed
}
