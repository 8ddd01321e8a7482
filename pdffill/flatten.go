package pdffill

import (
	"bytes"
	"fmt"

	"github.com/lvillar/tplmerge/reader"
)

// Annotation flags that keep a widget off the page.
const (
	annotHidden = 1 << 1
	annotNoView = 1 << 5
)

// flatten paints the normal appearance of every widget into its page and
// removes the widgets and the AcroForm entry, so the filled values can no
// longer be edited. Hidden widgets and widgets without an appearance are
// removed without being painted.
func (f *filler) flatten() error {
	doc := f.u.doc
	byPage := map[int][]reader.Widget{}
	for _, field := range f.form.Terminal() {
		for _, w := range field.Widgets {
			if w.Ref.Number == 0 || w.Page == 0 {
				continue
			}
			byPage[w.Page] = append(byPage[w.Page], w)
		}
	}
	for n, p := range doc.Pages() {
		if len(byPage[n]) == 0 {
			continue
		}
		if err := f.flattenPage(p, byPage[n]); err != nil {
			return fmt.Errorf("page %d: %w", n, err)
		}
	}

	root, ok := doc.Trailer()["Root"].(reader.Reference)
	if !ok {
		return fmt.Errorf("catalog is not an indirect object")
	}
	cat, err := doc.Catalog()
	if err != nil {
		return err
	}
	delete(f.u.dict(root, cat), "AcroForm")
	return nil
}

func (f *filler) flattenPage(p *reader.Page, widgets []reader.Widget) error {
	res, err := f.u.pageResources(p)
	if err != nil {
		return err
	}
	xobjects, err := f.u.resolveDict(res["XObject"])
	if err != nil {
		return err
	}
	xobjects = cloneDict(xobjects)

	var content bytes.Buffer
	content.WriteString("Q\n")
	drop := map[int]bool{}
	next := 0
	for _, w := range widgets {
		drop[w.Ref.Number] = true
		cur := w.Dict
		if d, ok := f.u.objects[w.Ref.Number].(reader.Dict); ok {
			cur = d
		}
		if flags, _ := cur.Int("F"); flags&(annotHidden|annotNoView) != 0 {
			continue
		}
		ap, bbox, ok := f.u.normalAppearance(cur)
		if !ok {
			continue
		}

		var name reader.Name
		for {
			name = reader.Name(fmt.Sprintf("Fw%d", next))
			next++
			if _, taken := xobjects[name]; !taken {
				break
			}
		}
		xobjects[name] = ap

		rect := w.Rect
		sx, sy := 1.0, 1.0
		if bbox.Width() != 0 {
			sx = rect.Width() / bbox.Width()
		}
		if bbox.Height() != 0 {
			sy = rect.Height() / bbox.Height()
		}
		fmt.Fprintf(&content, "q %s 0 0 %s %s %s cm /%s Do Q\n",
			formatReal(sx), formatReal(sy),
			formatReal(rect.LLX-bbox.LLX*sx), formatReal(rect.LLY-bbox.LLY*sy), name)
	}

	res = cloneDict(res)
	res["XObject"] = xobjects

	page := f.u.dict(p.Ref, p.Dict())
	page["Resources"] = res

	contents := reader.Array{f.u.add(reader.Stream{Data: []byte("q\n")})}
	switch c := p.Dict()["Contents"].(type) {
	case reader.Reference:
		if arr, err := f.u.doc.ResolveArray(c); err == nil && arr != nil {
			contents = append(contents, arr...)
		} else {
			contents = append(contents, c)
		}
	case reader.Array:
		contents = append(contents, c...)
	}
	page["Contents"] = append(contents, f.u.add(reader.Stream{Data: content.Bytes()}))

	annots, err := f.u.doc.ResolveArray(p.Dict()["Annots"])
	if err != nil {
		return err
	}
	keep := reader.Array{}
	for _, a := range annots {
		if ref, ok := a.(reader.Reference); ok && drop[ref.Number] {
			continue
		}
		keep = append(keep, a)
	}
	if len(keep) == 0 {
		delete(page, "Annots")
	} else {
		page["Annots"] = keep
	}
	return nil
}

// normalAppearance returns the normal appearance stream of a widget for
// its current state, together with the stream's bounding box.
func (u *update) normalAppearance(widget reader.Dict) (reader.Reference, reader.Rectangle, bool) {
	ap, err := u.resolveDict(widget["AP"])
	if err != nil || ap == nil {
		return reader.Reference{}, reader.Rectangle{}, false
	}
	n := ap["N"]
	if states, err := u.resolve(n); err == nil {
		if d, ok := states.(reader.Dict); ok {
			n = d[widget.Name("AS")]
		}
	}
	ref, ok := n.(reader.Reference)
	if !ok {
		return reader.Reference{}, reader.Rectangle{}, false
	}
	obj, err := u.resolve(ref)
	if err != nil {
		return reader.Reference{}, reader.Rectangle{}, false
	}
	s, ok := obj.(reader.Stream)
	if !ok {
		return reader.Reference{}, reader.Rectangle{}, false
	}
	box, err := u.resolve(s.Dict["BBox"])
	if err != nil {
		return reader.Reference{}, reader.Rectangle{}, false
	}
	bbox, err := reader.RectangleOf(box)
	if err != nil {
		return reader.Reference{}, reader.Rectangle{}, false
	}
	return ref, bbox, true
}

// pageResources returns the resources of p, inherited from the page tree
// when the page has none of its own.
func (u *update) pageResources(p *reader.Page) (reader.Dict, error) {
	node := p.Dict()
	for range 32 {
		if res, ok := node["Resources"]; ok {
			d, err := u.resolveDict(res)
			if err != nil || d != nil {
				return d, err
			}
			return reader.Dict{}, nil
		}
		parent, err := u.doc.ResolveDict(node["Parent"])
		if err != nil {
			return nil, err
		}
		if parent == nil {
			break
		}
		node = parent
	}
	return reader.Dict{}, nil
}

// resolve follows a reference, preferring objects already changed by the
// update.
func (u *update) resolve(obj reader.Object) (reader.Object, error) {
	if ref, ok := obj.(reader.Reference); ok {
		if pending, ok := u.objects[ref.Number]; ok {
			return pending, nil
		}
	}
	return u.doc.Resolve(obj)
}

func (u *update) resolveDict(obj reader.Object) (reader.Dict, error) {
	v, err := u.resolve(obj)
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case reader.Dict:
		return t, nil
	case reader.Stream:
		return t.Dict, nil
	}
	return nil, nil
}

func cloneDict(d reader.Dict) reader.Dict {
	if d == nil {
		return reader.Dict{}
	}
	return d.Clone()
}
