package pdfstamp

import (
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/text/encoding/charmap"

	"github.com/harrington-free-press/cropped/pkg/pdfgraph"
)

// Crop mark and footer geometry, in points.
const (
	markLength    = 20.0
	markOffset    = 5.0 // gap between trim edge and mark
	cropLineWidth = 0.5
	footerMargin  = 28.35 // 1cm
	footerSize    = 10
)

func op(operator string, operands ...types.Object) pdfgraph.Operation {
	return pdfgraph.Operation{Operator: operator, Operands: operands}
}

// generateCropMarks draws the four corner crop marks around the trim
// rectangle at (x, y) with the given size. The marks sit outside the
// rectangle, separated from each edge by markOffset.
func generateCropMarks(x, y, w, h float64) []pdfgraph.Operation {
	left, right := x, x+w
	bottom, top := y, y+h

	ops := []pdfgraph.Operation{
		op("w", types.Float(cropLineWidth)),
		op("G", types.Integer(0)),
	}
	stroke := func(x1, y1, x2, y2 float64) {
		ops = append(ops,
			op("m", types.Float(x1), types.Float(y1)),
			op("l", types.Float(x2), types.Float(y2)),
			op("S"),
		)
	}

	// Bottom-left corner
	stroke(left-markOffset-markLength, bottom, left-markOffset, bottom)
	stroke(left, bottom-markOffset-markLength, left, bottom-markOffset)

	// Bottom-right corner
	stroke(right+markOffset, bottom, right+markOffset+markLength, bottom)
	stroke(right, bottom-markOffset-markLength, right, bottom-markOffset)

	// Top-left corner
	stroke(left-markOffset-markLength, top, left-markOffset, top)
	stroke(left, top+markOffset, left, top+markOffset+markLength)

	// Top-right corner
	stroke(right+markOffset, top, right+markOffset+markLength, top)
	stroke(right, top+markOffset, right, top+markOffset+markLength)

	return ops
}

// generateTimestamp draws the run timestamp bottom-left, one footerMargin
// in from both edges.
func generateTimestamp(timestamp, fontName string) []pdfgraph.Operation {
	return []pdfgraph.Operation{
		op("BT"),
		op("Tf", types.Name(fontName), types.Integer(footerSize)),
		op("Td", types.Float(footerMargin), types.Float(footerMargin)),
		op("Tj", winAnsiText(timestamp)),
		op("ET"),
	}
}

// generatePageNumber draws the page number bottom-right, right-aligned
// using the font's digit advance.
func generatePageNumber(pageNum int, canvasWidth float64, fontName string, charWidth float64) []pdfgraph.Operation {
	text := strconv.Itoa(pageNum)
	textWidth := float64(len(text)) * charWidth * footerSize
	x := canvasWidth - footerMargin - textWidth

	return []pdfgraph.Operation{
		op("BT"),
		op("Tf", types.Name(fontName), types.Integer(footerSize)),
		op("Td", types.Float(x), types.Float(footerMargin)),
		op("Tj", winAnsiText(text)),
		op("ET"),
	}
}

// winAnsiText encodes s for a WinAnsiEncoding font and escapes it for a
// literal string operand.
func winAnsiText(s string) types.StringLiteral {
	encoded, err := charmap.Windows1252.NewEncoder().String(s)
	if err != nil {
		encoded = s // fall back to the raw text
	}
	return types.StringLiteral(escapeString(encoded))
}

func escapeString(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '(', ')', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// centerOffset returns the translation that centers content of the given
// extent inside the canvas extent. Both composition strategies derive
// their transform from this one place.
func centerOffset(canvas, content float64) float64 {
	return (canvas - content) / 2
}
