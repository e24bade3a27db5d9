package pdfstamp

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/harrington-free-press/cropped/pkg/fontmetrics"
	"github.com/harrington-free-press/cropped/pkg/pdfgraph"
)

// overlayName is the resource name the crop-mark Form XObject is invoked
// under. It is also what DetectStamp and HasStamp look for.
const overlayName = "CropOverlay"

// Stamp composites crop marks (and optional annotations) onto every page of
// ctx in place, expanding each page to the configured canvas.
//
// The manuscript stays the primary document: its structure, metadata and
// page tree are preserved, and its content streams are wrapped between
// generated start/end streams rather than decoded, so the original content
// bytes cannot be corrupted by a re-encode.
func Stamp(ctx *model.Context, cfg Config) error {
	if cfg.CanvasWidth <= 0 || cfg.CanvasHeight <= 0 {
		return fmt.Errorf("canvas dimensions must be positive")
	}
	if ctx.PageCount == 0 {
		if err := ctx.EnsurePageCount(); err != nil {
			return fmt.Errorf("failed to determine page count: %w", err)
		}
	}
	if ctx.PageCount == 0 {
		return ErrNoPages
	}

	// Font and timestamp are prepared once for the whole run.
	var fontRef *types.IndirectRef
	charWidth := 0.0
	if cfg.FontPath != "" {
		m, data, err := fontmetrics.Load(cfg.FontPath)
		if err != nil {
			return fmt.Errorf("failed to load annotation font: %w", err)
		}
		fontRef, err = fontmetrics.Embed(ctx, m, data, baseFontName(cfg.FontPath))
		if err != nil {
			return fmt.Errorf("failed to embed annotation font: %w", err)
		}
		charWidth = m.CharWidth
	}

	timestamp := cfg.Timestamp
	if fontRef != nil && timestamp == "" {
		timestamp = time.Now().Format("2006-01-02 15:04:05 MST")
	}

	for p := 1; p <= ctx.PageCount; p++ {
		if cfg.Debug {
			fmt.Fprintf(getLogger(cfg), "stamping page %d/%d\n", p, ctx.PageCount)
		}
		if err := stampPage(ctx, p, cfg, fontRef, charWidth, timestamp); err != nil {
			return fmt.Errorf("page %d: %w", p, err)
		}
	}
	return nil
}

// stampPage adds the overlay to one manuscript page.
//
// The page's Contents become a three-part array
//
//	[start, original..., end]
//
// where start invokes the overlay XObject at absolute canvas coordinates
// and then opens the centering transform, the original reference or array
// elements are carried over untouched, and end restores the graphics
// state. The overlay is invoked before the transform so the crop marks and
// footers stay at sheet coordinates while only the manuscript content
// moves.
func stampPage(ctx *model.Context, pageNr int, cfg Config, fontRef *types.IndirectRef, charWidth float64, timestamp string) error {
	pageDict, _, inhPAttrs, err := ctx.PageDict(pageNr, false)
	if err != nil {
		return fmt.Errorf("failed to resolve page dict: %w", err)
	}
	if pageDict == nil {
		return &StructuralError{Page: pageNr, Missing: "page dictionary"}
	}
	if inhPAttrs == nil || inhPAttrs.MediaBox == nil {
		return &StructuralError{Page: pageNr, Missing: "MediaBox"}
	}
	contentW := inhPAttrs.MediaBox.Width()
	contentH := inhPAttrs.MediaBox.Height()

	// The page grows to the canvas; the content keeps its size and is
	// centered inside it, bleed and all.
	pageDict["MediaBox"] = types.NewNumberArray(0, 0, cfg.CanvasWidth, cfg.CanvasHeight)

	trimX := centerOffset(cfg.CanvasWidth, cfg.TrimWidth)
	trimY := centerOffset(cfg.CanvasHeight, cfg.TrimHeight)
	contentX := centerOffset(cfg.CanvasWidth, contentW)
	contentY := centerOffset(cfg.CanvasHeight, contentH)

	overlayRef, err := newOverlayXObject(ctx, overlayParams{
		cfg:       cfg,
		pageNum:   pageNr,
		trimX:     trimX,
		trimY:     trimY,
		fontRef:   fontRef,
		charWidth: charWidth,
		timestamp: timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to build overlay: %w", err)
	}
	if err := attachOverlayResource(ctx, pageDict, inhPAttrs.Resources, *overlayRef, getLogger(cfg)); err != nil {
		return err
	}

	startOps := []pdfgraph.Operation{
		op("Do", types.Name(overlayName)),
		op("q"),
		op("cm",
			types.Integer(1), types.Integer(0), types.Integer(0), types.Integer(1),
			types.Float(contentX), types.Float(contentY)),
	}
	startRef, err := newContentStream(ctx, startOps)
	if err != nil {
		return err
	}
	endRef, err := newContentStream(ctx, []pdfgraph.Operation{op("Q")})
	if err != nil {
		return err
	}

	contents := types.Array{*startRef}
	switch orig := pageDict["Contents"].(type) {
	case types.IndirectRef:
		contents = append(contents, orig)
	case types.Array:
		contents = append(contents, orig...)
	default:
		// No usable Contents: stamp onto a blank page rather than abort
		// the batch.
		fmt.Fprintf(getLogger(cfg), "warning: page %d has no usable Contents entry (%T); stamping a blank page\n", pageNr, orig)
	}
	contents = append(contents, *endRef)
	pageDict["Contents"] = contents

	return nil
}

type overlayParams struct {
	cfg          Config
	pageNum      int
	trimX, trimY float64
	fontRef      *types.IndirectRef
	charWidth    float64
	timestamp    string
}

// newOverlayXObject builds a Form XObject holding the crop marks and the
// optional footers, with a self-contained Resources dictionary so the
// page's own font namespace is never touched.
func newOverlayXObject(ctx *model.Context, p overlayParams) (*types.IndirectRef, error) {
	ops := generateCropMarks(p.trimX, p.trimY, p.cfg.TrimWidth, p.cfg.TrimHeight)

	resources := types.Dict{}
	if p.fontRef != nil {
		const fontName = "F1"
		ops = append(ops, generateTimestamp(p.timestamp, fontName)...)
		ops = append(ops, generatePageNumber(p.pageNum, p.cfg.CanvasWidth, fontName, p.charWidth)...)

		fontDictRef, err := ctx.IndRefForNewObject(types.Dict{fontName: *p.fontRef})
		if err != nil {
			return nil, err
		}
		resources["Font"] = *fontDictRef
	}

	sd, err := ctx.NewStreamDictForBuf(pdfgraph.EncodeOperations(ops))
	if err != nil {
		return nil, err
	}
	sd.Dict["Type"] = types.Name("XObject")
	sd.Dict["Subtype"] = types.Name("Form")
	// BBox spans the whole canvas so marks and footers can sit anywhere.
	sd.Dict["BBox"] = types.NewNumberArray(0, 0, p.cfg.CanvasWidth, p.cfg.CanvasHeight)
	sd.Dict["Resources"] = resources
	if err := sd.Encode(); err != nil {
		return nil, err
	}
	return ctx.IndRefForNewObject(*sd)
}

// attachOverlayResource registers the overlay XObject in the page's
// Resources, preserving every existing entry. The XObject sub-table is
// rebuilt with the existing names carried over so the overlay slots in
// beside them; inherited Resources are consulted when the page has none of
// its own. An absent or unresolvable Resources entry degrades to a fresh
// dictionary.
func attachOverlayResource(ctx *model.Context, pageDict types.Dict, inherited types.Dict, overlayRef types.IndirectRef, warn io.Writer) error {
	resDict := types.Dict{}
	resObj := pageDict["Resources"]
	if resObj == nil && inherited != nil {
		resObj = inherited
	}
	if resObj != nil {
		d, err := ctx.DereferenceDict(resObj)
		if err != nil || d == nil {
			fmt.Fprintf(warn, "warning: page Resources did not resolve (%v); continuing with an empty dictionary\n", err)
		} else {
			resDict = d
		}
	}

	xobjects := types.Dict{}
	if xo := resDict["XObject"]; xo != nil {
		existing, err := ctx.DereferenceDict(xo)
		if err != nil || existing == nil {
			fmt.Fprintf(warn, "warning: XObject resource table did not resolve (%v); rebuilding it\n", err)
		} else {
			for name, entry := range existing {
				xobjects[name] = entry
			}
		}
	}
	xobjects[overlayName] = overlayRef

	newResources := types.Dict{}
	for k, v := range resDict {
		newResources[k] = v
	}
	xobjRef, err := ctx.IndRefForNewObject(xobjects)
	if err != nil {
		return err
	}
	newResources["XObject"] = *xobjRef
	pageDict["Resources"] = newResources

	return nil
}

// newContentStream writes ops as a new compressed stream object.
func newContentStream(ctx *model.Context, ops []pdfgraph.Operation) (*types.IndirectRef, error) {
	sd, err := ctx.NewStreamDictForBuf(pdfgraph.EncodeOperations(ops))
	if err != nil {
		return nil, err
	}
	if err := sd.Encode(); err != nil {
		return nil, err
	}
	return ctx.IndRefForNewObject(*sd)
}

// baseFontName derives the BaseFont name from the font file name.
func baseFontName(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if name == "" {
		return "Embedded"
	}
	return name
}
