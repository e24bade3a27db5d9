package fontmetrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/image/font/gofont/goregular"
)

func TestParse(t *testing.T) {
	m, err := Parse(goregular.TTF)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if m.UnitsPerEm <= 0 {
		t.Errorf("UnitsPerEm = %d", m.UnitsPerEm)
	}
	if m.Ascent <= 0 {
		t.Errorf("Ascent = %d, want positive", m.Ascent)
	}
	if m.Descent >= 0 {
		t.Errorf("Descent = %d, want negative", m.Descent)
	}
	if m.CapHeight <= 0 {
		t.Errorf("CapHeight = %d, want positive", m.CapHeight)
	}
	if m.CharWidth < 0.2 || m.CharWidth > 1.0 {
		t.Errorf("CharWidth = %v, want a plausible digit advance", m.CharWidth)
	}
	if m.BBox[1] >= m.BBox[3] {
		t.Errorf("BBox = %v, want y-up ordering", m.BBox)
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse([]byte("not a font")); err == nil {
		t.Error("expected error for invalid font data")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "font.ttf")
	if err := os.WriteFile(path, goregular.TTF, 0644); err != nil {
		t.Fatal(err)
	}

	m, data, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(data) != len(goregular.TTF) {
		t.Errorf("font program truncated: %d bytes, want %d", len(data), len(goregular.TTF))
	}
	if m.UnitsPerEm <= 0 {
		t.Errorf("UnitsPerEm = %d", m.UnitsPerEm)
	}

	if _, _, err := Load(filepath.Join(t.TempDir(), "missing.ttf")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestEmbed(t *testing.T) {
	ctx, err := pdfcpu.CreateContextWithXRefTable(model.NewDefaultConfiguration(), types.PaperSize["A4"])
	if err != nil {
		t.Fatalf("failed to create context: %v", err)
	}

	m := Metrics{
		BBox:       [4]int{-100, -200, 1000, 900},
		Ascent:     800,
		Descent:    -200,
		CapHeight:  700,
		UnitsPerEm: 1000,
		CharWidth:  0.5,
	}
	data := []byte("glyf data stand-in")

	ref, err := Embed(ctx, m, data, "TestSans")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}

	fontDict, err := ctx.DereferenceDict(*ref)
	if err != nil || fontDict == nil {
		t.Fatalf("font dict does not resolve: %v", err)
	}
	if fontDict["Subtype"] != types.Name("TrueType") {
		t.Errorf("Subtype = %v", fontDict["Subtype"])
	}
	if fontDict["BaseFont"] != types.Name("TestSans") {
		t.Errorf("BaseFont = %v", fontDict["BaseFont"])
	}
	if fontDict["Encoding"] != types.Name("WinAnsiEncoding") {
		t.Errorf("Encoding = %v", fontDict["Encoding"])
	}

	descriptor, err := ctx.DereferenceDict(fontDict["FontDescriptor"])
	if err != nil || descriptor == nil {
		t.Fatalf("descriptor does not resolve: %v", err)
	}
	if descriptor["Ascent"] != types.Integer(800) {
		t.Errorf("Ascent = %v", descriptor["Ascent"])
	}
	if descriptor["Descent"] != types.Integer(-200) {
		t.Errorf("Descent = %v", descriptor["Descent"])
	}
	bbox, ok := descriptor["FontBBox"].(types.Array)
	if !ok || len(bbox) != 4 || bbox[0] != types.Integer(-100) {
		t.Errorf("FontBBox = %v", descriptor["FontBBox"])
	}

	resolved, err := ctx.Dereference(descriptor["FontFile2"])
	if err != nil {
		t.Fatalf("font program does not resolve: %v", err)
	}
	var sd types.StreamDict
	switch s := resolved.(type) {
	case types.StreamDict:
		sd = s
	case *types.StreamDict:
		sd = *s
	default:
		t.Fatalf("font program resolved to %T", resolved)
	}
	if sd.Dict["Length1"] != types.Integer(len(data)) {
		t.Errorf("Length1 = %v, want %d", sd.Dict["Length1"], len(data))
	}
	if err := sd.Decode(); err != nil {
		t.Fatalf("font program does not decode: %v", err)
	}
	if string(sd.Content) != string(data) {
		t.Error("font program bytes changed during embedding")
	}
}
