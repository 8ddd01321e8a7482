// Package tplmerge merges spreadsheet rows into image and PDF templates.
//
// For each row, the asset named by the img_path column is located in an
// asset directory and the row's values are composited onto it: image assets
// get styled text (or barcodes) drawn at configured placements, PDF assets get
// their AcroForm fields filled. This package holds the shared data model;
// the engines live in the raster, pdffill and batch packages.
//
// Example placement, as stored by the editor:
//
//	{
//	  "isEnabled": true,
//	  "x": 10, "y": 10,
//	  "fontSize": 12,
//	  "fontFamily": "",
//	  "alignment": "left",
//	  "color": {"r": 0, "g": 0, "b": 0, "a": 1},
//	  "backgroundColor": {"r": 255, "g": 255, "b": 255, "a": 0}
//	}
package tplmerge
