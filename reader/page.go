package reader

import "fmt"

// Page is a leaf of the page tree.
type Page struct {
	Number   int
	Ref      Reference
	MediaBox Rectangle
	Rotate   int
	// Annots lists the page's annotation references, widgets included.
	Annots []Reference

	dict Dict
}

// Dict returns the page dictionary.
func (p *Page) Dict() Dict { return p.dict }

// inheritable page attributes.
var inheritable = []Name{"MediaBox", "CropBox", "Resources", "Rotate"}

func (d *Document) loadPages() error {
	cat, err := d.Catalog()
	if err != nil {
		return err
	}
	root, ok := cat["Pages"].(Reference)
	if !ok {
		return fmt.Errorf("reader: catalog /Pages is not a reference")
	}
	d.pages = nil
	return d.walkPages(root, Dict{}, map[int]bool{}, 0)
}

func (d *Document) walkPages(ref Reference, inherited Dict, seen map[int]bool, depth int) error {
	if seen[ref.Number] || depth > maxRefChain {
		return fmt.Errorf("reader: page tree loops at %s", ref)
	}
	seen[ref.Number] = true

	node, err := d.ResolveDict(ref)
	if err != nil {
		return err
	}
	if node == nil {
		return nil
	}
	attrs := inherited.Clone()
	for _, k := range inheritable {
		if v, ok := node[k]; ok {
			attrs[k] = v
		}
	}

	if node.Name("Type") == "Page" || (node.Name("Type") == "" && node["Kids"] == nil) {
		page := &Page{Number: len(d.pages) + 1, Ref: ref, dict: node}
		if box, err := d.Resolve(attrs["MediaBox"]); err == nil {
			page.MediaBox, _ = RectangleOf(box)
		}
		if rot, err := d.Resolve(attrs["Rotate"]); err == nil {
			if n, ok := rot.(Integer); ok {
				page.Rotate = int(n)
			}
		}
		annots, err := d.ResolveArray(node["Annots"])
		if err != nil {
			return err
		}
		for _, a := range annots {
			if r, ok := a.(Reference); ok {
				page.Annots = append(page.Annots, r)
			}
		}
		d.pages = append(d.pages, page)
		return nil
	}

	kids, err := d.ResolveArray(node["Kids"])
	if err != nil {
		return err
	}
	for _, kid := range kids {
		r, ok := kid.(Reference)
		if !ok {
			continue
		}
		if err := d.walkPages(r, attrs, seen, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// PageOf returns the number of the page whose annotations include the
// object ref, or 0.
func (d *Document) PageOf(ref Reference) int {
	for _, p := range d.pages {
		for _, a := range p.Annots {
			if a.Number == ref.Number {
				return p.Number
			}
		}
	}
	return 0
}

// pageNumber resolves a /P entry to a page number, or 0.
func (d *Document) pageNumber(obj Object) int {
	ref, ok := obj.(Reference)
	if !ok {
		return 0
	}
	for _, p := range d.pages {
		if p.Ref.Number == ref.Number {
			return p.Number
		}
	}
	return 0
}
