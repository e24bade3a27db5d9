package pdfstamp

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/harrington-free-press/cropped/pkg/pdfgraph"
)

// Compose builds a new document where every manuscript page, converted to
// a Form XObject, is drawn on top of a copy of the template's first page.
//
// The template page supplies the sheet: its size, content and resources
// repeat once per manuscript page. The manuscript page is placed centered
// on the sheet, optionally mirrored vertically when cfg.FlipY is set.
// Manuscript resources are transplanted with Resources precedence going to
// the template on name collisions.
func Compose(manuscript, template *model.Context, cfg Config) (*model.Context, error) {
	for _, c := range []*model.Context{manuscript, template} {
		if c.PageCount == 0 {
			if err := c.EnsurePageCount(); err != nil {
				return nil, fmt.Errorf("failed to determine page count: %w", err)
			}
		}
	}
	if manuscript.PageCount == 0 {
		return nil, ErrNoPages
	}
	if template.PageCount == 0 {
		return nil, fmt.Errorf("template: %w", ErrNoPages)
	}

	out, err := pdfcpu.CreateContextWithXRefTable(model.NewDefaultConfiguration(),
		types.PaperSize["A4"])
	if err != nil {
		return nil, fmt.Errorf("failed to create output document: %w", err)
	}

	sheet, err := templateUnderlay(out, template, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to copy template page: %w", err)
	}

	// One cache for the whole manuscript so resources shared across pages
	// are transplanted once.
	cache := pdfgraph.NewCopyCache()
	for p := 1; p <= manuscript.PageCount; p++ {
		if cfg.Debug {
			fmt.Fprintf(getLogger(cfg), "composing page %d/%d\n", p, manuscript.PageCount)
		}
		if err := composePage(out, manuscript, p, sheet, cache, cfg); err != nil {
			return nil, fmt.Errorf("page %d: %w", p, err)
		}
	}

	if err := copyInfo(out, manuscript); err != nil {
		fmt.Fprintf(getLogger(cfg), "warning: failed to carry over document metadata: %v\n", err)
	}

	return out, nil
}

// underlay is the template's first page, flattened for reuse on every
// output page.
type underlay struct {
	contents      types.Array
	resources     types.Dict
	mediaBox      types.Array
	width, height float64
}

// templateUnderlay transplants the template's first page content and
// resources into out. A template page without Contents or Resources yields
// a blank sheet with a warning rather than an error.
func templateUnderlay(out, template *model.Context, cfg Config) (*underlay, error) {
	pageDict, _, inhPAttrs, err := template.PageDict(1, false)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve template page dict: %w", err)
	}
	if pageDict == nil {
		return nil, &StructuralError{Page: 1, Missing: "page dictionary"}
	}
	if inhPAttrs == nil || inhPAttrs.MediaBox == nil {
		return nil, &StructuralError{Page: 1, Missing: "MediaBox"}
	}
	mb := inhPAttrs.MediaBox

	u := &underlay{
		mediaBox: types.NewNumberArray(0, 0, mb.Width(), mb.Height()),
		width:    mb.Width(),
		height:   mb.Height(),
	}

	cache := pdfgraph.NewCopyCache()

	if c := pageDict["Contents"]; c != nil {
		copied, err := pdfgraph.Transplant(template, out, c, cache)
		if err != nil {
			return nil, fmt.Errorf("failed to transplant template contents: %w", err)
		}
		switch cc := copied.(type) {
		case types.IndirectRef:
			u.contents = types.Array{cc}
		case types.Array:
			u.contents = cc
		case types.StreamDict:
			ref, err := out.IndRefForNewObject(cc)
			if err != nil {
				return nil, err
			}
			u.contents = types.Array{*ref}
		}
	}
	if u.contents == nil {
		fmt.Fprintf(getLogger(cfg), "warning: template page has no usable Contents; composing onto a blank sheet\n")
	} else {
		// Bracket the template streams so an unbalanced q or lingering
		// fill/stroke state cannot leak into the manuscript form.
		save, err := newContentStream(out, []pdfgraph.Operation{op("q")})
		if err != nil {
			return nil, err
		}
		restore, err := newContentStream(out, []pdfgraph.Operation{op("Q")})
		if err != nil {
			return nil, err
		}
		u.contents = append(types.Array{*save}, append(u.contents, *restore)...)
	}

	if r, ok := pageDict["Resources"]; ok && r != nil {
		copied, err := pdfgraph.Transplant(template, out, r, cache)
		if err != nil {
			return nil, fmt.Errorf("failed to transplant template resources: %w", err)
		}
		d, err := out.DereferenceDict(copied)
		if err == nil && d != nil {
			u.resources = d
		}
	} else if inhPAttrs.Resources != nil {
		copied, err := pdfgraph.Transplant(template, out, inhPAttrs.Resources, cache)
		if err != nil {
			return nil, fmt.Errorf("failed to transplant template resources: %w", err)
		}
		if d, ok := copied.(types.Dict); ok {
			u.resources = d
		}
	}
	if u.resources == nil {
		fmt.Fprintf(getLogger(cfg), "warning: template page has no Resources; composing without a template namespace\n")
		u.resources = types.Dict{}
	}

	// Class tables the template stored behind references survive the
	// transplant as references, which would make the merge defer the class
	// and lose the per-page form entry. The copies are private to the
	// output document, so they can be resolved inline and stay mergeable.
	for class, v := range u.resources {
		if ref, ok := v.(types.IndirectRef); ok {
			if d, err := out.DereferenceDict(ref); err == nil && d != nil {
				u.resources[class] = d
			}
		}
	}

	return u, nil
}

// composePage appends one output page drawing the sheet underlay and the
// manuscript page form on top of it.
func composePage(out, manuscript *model.Context, pageNr int, sheet *underlay, cache pdfgraph.CopyCache, cfg Config) error {
	formName := fmt.Sprintf("M%d", pageNr)

	formRef, formW, formH, err := manuscriptForm(out, manuscript, pageNr, cache, cfg)
	if err != nil {
		return err
	}

	contentX := centerOffset(sheet.width, formW)
	contentY := centerOffset(sheet.height, formH)

	var ops []pdfgraph.Operation
	ops = append(ops, op("q"))
	if cfg.FlipY {
		// Mirror vertically about the centered content box.
		ops = append(ops, op("cm",
			types.Integer(1), types.Integer(0), types.Integer(0), types.Integer(-1),
			types.Float(contentX), types.Float(contentY+formH)))
	} else {
		ops = append(ops, op("cm",
			types.Integer(1), types.Integer(0), types.Integer(0), types.Integer(1),
			types.Float(contentX), types.Float(contentY)))
	}
	ops = append(ops, op("Do", types.Name(formName)), op("Q"))
	drawRef, err := newContentStream(out, ops)
	if err != nil {
		return err
	}

	contents := append(types.Array{}, sheet.contents...)
	contents = append(contents, *drawRef)

	formRefObj, err := out.IndRefForNewObject(types.Dict{formName: *formRef})
	if err != nil {
		return err
	}
	resources := pdfgraph.MergeResources(out, sheet.resources,
		types.Dict{"XObject": *formRefObj}, getLogger(cfg))

	return appendPage(out, types.Dict{
		"Type":      types.Name("Page"),
		"MediaBox":  sheet.mediaBox,
		"Contents":  contents,
		"Resources": resources,
	})
}

// manuscriptForm converts manuscript page pageNr into a Form XObject in
// out and returns its reference together with the page's size.
func manuscriptForm(out, manuscript *model.Context, pageNr int, cache pdfgraph.CopyCache, cfg Config) (*types.IndirectRef, float64, float64, error) {
	pageDict, _, inhPAttrs, err := manuscript.PageDict(pageNr, false)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to resolve page dict: %w", err)
	}
	if pageDict == nil {
		return nil, 0, 0, &StructuralError{Page: pageNr, Missing: "page dictionary"}
	}
	if inhPAttrs == nil || inhPAttrs.MediaBox == nil {
		return nil, 0, 0, &StructuralError{Page: pageNr, Missing: "MediaBox"}
	}
	mb := inhPAttrs.MediaBox

	// Flatten the page's content streams into one buffer. The streams are
	// concatenated decoded since a Form XObject holds a single stream.
	var buf []byte
	if c := pageDict["Contents"]; c != nil {
		ops := pdfgraph.ReadOperations(manuscript, c, getLogger(cfg))
		buf = pdfgraph.EncodeOperations(ops)
	} else {
		fmt.Fprintf(getLogger(cfg), "warning: page %d has no Contents; composing an empty form\n", pageNr)
	}

	sd, err := out.NewStreamDictForBuf(buf)
	if err != nil {
		return nil, 0, 0, err
	}
	sd.Dict["Type"] = types.Name("XObject")
	sd.Dict["Subtype"] = types.Name("Form")
	sd.Dict["BBox"] = types.NewNumberArray(mb.LL.X, mb.LL.Y, mb.UR.X, mb.UR.Y)

	formResources := types.Dict{}
	if r, ok := pageDict["Resources"]; ok && r != nil {
		copied, err := pdfgraph.Transplant(manuscript, out, r, cache)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("failed to transplant page resources: %w", err)
		}
		switch rc := copied.(type) {
		case types.Dict:
			formResources = rc
		case types.IndirectRef:
			if d, err := out.DereferenceDict(rc); err == nil && d != nil {
				formResources = d
			}
		}
	} else if inhPAttrs.Resources != nil {
		copied, err := pdfgraph.Transplant(manuscript, out, inhPAttrs.Resources, cache)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("failed to transplant inherited resources: %w", err)
		}
		if d, ok := copied.(types.Dict); ok {
			formResources = d
		}
	}
	sd.Dict["Resources"] = formResources

	if err := sd.Encode(); err != nil {
		return nil, 0, 0, err
	}
	ref, err := out.IndRefForNewObject(*sd)
	if err != nil {
		return nil, 0, 0, err
	}
	return ref, mb.Width(), mb.Height(), nil
}

// appendPage links pageDict into out's page tree.
func appendPage(out *model.Context, pageDict types.Dict) error {
	rootDict, err := out.Catalog()
	if err != nil {
		return fmt.Errorf("failed to resolve catalog: %w", err)
	}
	pagesRef := rootDict.IndirectRefEntry("Pages")
	if pagesRef == nil {
		return fmt.Errorf("catalog has no Pages entry")
	}
	pagesDict, err := out.DereferenceDict(*pagesRef)
	if err != nil || pagesDict == nil {
		return fmt.Errorf("failed to resolve page tree root: %w", err)
	}

	pageDict["Parent"] = *pagesRef
	pageRef, err := out.IndRefForNewObject(pageDict)
	if err != nil {
		return err
	}

	kids, _ := pagesDict["Kids"].(types.Array)
	pagesDict["Kids"] = append(kids, *pageRef)
	count, _ := pagesDict["Count"].(types.Integer)
	pagesDict["Count"] = count + 1
	out.PageCount++

	return nil
}

// copyInfo transplants the manuscript's Info dictionary into out so
// title, author and friends survive composition.
func copyInfo(out, manuscript *model.Context) error {
	if manuscript.Info == nil {
		return nil
	}
	copied, err := pdfgraph.Transplant(manuscript, out, *manuscript.Info, pdfgraph.NewCopyCache())
	if err != nil {
		return err
	}
	ref, ok := copied.(types.IndirectRef)
	if !ok {
		return fmt.Errorf("unexpected transplanted Info type %T", copied)
	}
	out.Info = &ref
	return nil
}
