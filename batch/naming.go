package batch

import (
	"path/filepath"
	"strconv"
	"strings"
)

// OutputName returns the file name written for the row at the 1-based
// ordinal: "{set}-{ordinal}-{asset}{ext}". Dots are removed from the base
// names of the template set and the asset; ext replaces the asset's own
// extension when non-empty.
func OutputName(templateSetID string, ordinal int, asset, ext string) string {
	assetExt := filepath.Ext(asset)
	if ext == "" {
		ext = assetExt
	}
	set := strings.TrimSuffix(templateSetID, filepath.Ext(templateSetID))
	base := strings.TrimSuffix(asset, assetExt)
	return stripDots(set) + "-" + strconv.Itoa(ordinal) + "-" + stripDots(base) + ext
}

func stripDots(s string) string {
	return strings.ReplaceAll(s, ".", "")
}
