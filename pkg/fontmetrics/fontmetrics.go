// Package fontmetrics loads TrueType font metrics and embeds fonts into PDF
// documents.
//
// Only the handful of scalar metrics needed by the stamping annotations is
// extracted: global bounding box, ascent, descent, cap height, units per em
// and the advance width of a representative digit glyph. The font program
// itself is embedded verbatim as a FontFile2 stream; no subsetting is done.
package fontmetrics

import (
	"fmt"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// defaultCharWidth is the fallback advance for a monospaced digit at a 1pt
// font size, used when the font does not expose a '0' glyph.
const defaultCharWidth = 0.6

// Metrics holds the scalar font measurements needed to build a PDF font
// descriptor and to right-align annotation text. All values except
// CharWidth are in font units with a y-up axis; Descent is negative.
type Metrics struct {
	BBox       [4]int
	Ascent     int
	Descent    int
	CapHeight  int
	UnitsPerEm int
	CharWidth  float64
}

// Load reads the TrueType font at path once and returns its metrics
// together with the raw font program bytes. The path is an explicit
// argument; there is no process-wide font location.
func Load(path string) (Metrics, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metrics{}, nil, fmt.Errorf("failed to read font file: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return Metrics{}, nil, err
	}
	return m, data, nil
}

// Parse extracts metrics from raw TrueType data.
func Parse(data []byte) (Metrics, error) {
	f, err := sfnt.Parse(data)
	if err != nil {
		return Metrics{}, fmt.Errorf("failed to parse font: %w", err)
	}

	var buf sfnt.Buffer
	upem := int(f.UnitsPerEm())
	// One pixel per font unit, so every fixed-point value comes back in
	// font units.
	ppem := fixed.I(upem)

	fm, err := f.Metrics(&buf, ppem, font.HintingNone)
	if err != nil {
		return Metrics{}, fmt.Errorf("failed to read font metrics: %w", err)
	}

	m := Metrics{
		Ascent:     fm.Ascent.Round(),
		Descent:    -fm.Descent.Round(),
		CapHeight:  fm.CapHeight.Round(),
		UnitsPerEm: upem,
		CharWidth:  defaultCharWidth,
	}
	if m.CapHeight == 0 {
		m.CapHeight = 700
	}

	if b, err := f.Bounds(&buf, ppem, font.HintingNone); err == nil {
		// sfnt bounds use a y-down axis; FontBBox wants y up.
		m.BBox = [4]int{b.Min.X.Round(), -b.Max.Y.Round(), b.Max.X.Round(), -b.Min.Y.Round()}
	}

	if gi, err := f.GlyphIndex(&buf, '0'); err == nil && gi != 0 {
		if adv, err := f.GlyphAdvance(&buf, gi, ppem, font.HintingNone); err == nil {
			m.CharWidth = float64(adv.Round()) / float64(upem)
		}
	}

	return m, nil
}

// Embed writes the font program and its descriptor into ctx and returns a
// reference to the resulting TrueType font dictionary, registered under
// baseFont with WinAnsiEncoding. The object layout is FontFile2 stream →
// FontDescriptor → Font.
func Embed(ctx *model.Context, m Metrics, data []byte, baseFont string) (*types.IndirectRef, error) {
	sd, err := ctx.NewStreamDictForBuf(data)
	if err != nil {
		return nil, fmt.Errorf("failed to build font stream: %w", err)
	}
	sd.Dict["Length1"] = types.Integer(len(data))
	if err := sd.Encode(); err != nil {
		return nil, fmt.Errorf("failed to encode font stream: %w", err)
	}
	fontFileRef, err := ctx.IndRefForNewObject(*sd)
	if err != nil {
		return nil, err
	}

	descriptor := types.Dict{
		"Type":     types.Name("FontDescriptor"),
		"FontName": types.Name(baseFont),
		"Flags":    types.Integer(32), // nonsymbolic
		"FontBBox": types.Array{
			types.Integer(m.BBox[0]),
			types.Integer(m.BBox[1]),
			types.Integer(m.BBox[2]),
			types.Integer(m.BBox[3]),
		},
		"ItalicAngle": types.Integer(0),
		"Ascent":      types.Integer(m.Ascent),
		"Descent":     types.Integer(m.Descent),
		"CapHeight":   types.Integer(m.CapHeight),
		"StemV":       types.Integer(80),
		"FontFile2":   *fontFileRef,
	}
	descriptorRef, err := ctx.IndRefForNewObject(descriptor)
	if err != nil {
		return nil, err
	}

	fontDict := types.Dict{
		"Type":           types.Name("Font"),
		"Subtype":        types.Name("TrueType"),
		"BaseFont":       types.Name(baseFont),
		"FontDescriptor": *descriptorRef,
		"Encoding":       types.Name("WinAnsiEncoding"),
	}
	return ctx.IndRefForNewObject(fontDict)
}
