package pdfstamp

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadSizesBuiltins(t *testing.T) {
	sizes, err := LoadSizes("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	for _, name := range []string{"trade", "digest", "novella"} {
		if _, ok := sizes[name]; !ok {
			t.Errorf("builtin size %q missing", name)
		}
	}

	w, h, err := ResolveSize("trade", sizes)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if w != 432 || h != 648 {
		t.Errorf("trade = %gx%g, want 432x648", w, h)
	}
}

func TestLoadSizesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sizes.yaml")
	data := "pocket:\n  width: 300\n  height: 480\ntrade:\n  width: 100\n  height: 200\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	sizes, err := LoadSizes(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if w, h, _ := ResolveSize("pocket", sizes); w != 300 || h != 480 {
		t.Errorf("pocket = %gx%g, want 300x480", w, h)
	}
	// File entries override builtins of the same name.
	if w, h, _ := ResolveSize("trade", sizes); w != 100 || h != 200 {
		t.Errorf("overridden trade = %gx%g, want 100x200", w, h)
	}
	if _, _, err := ResolveSize("digest", sizes); err != nil {
		t.Errorf("builtin digest lost: %v", err)
	}
}

func TestLoadSizesInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sizes.yaml")
	if err := os.WriteFile(path, []byte("bad:\n  width: -5\n  height: 100\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSizes(path); err == nil {
		t.Error("expected error for non-positive size")
	}

	if _, err := LoadSizes(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestResolveSizeUnknown(t *testing.T) {
	sizes, err := LoadSizes("")
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = ResolveSize("tabloid", sizes)
	if err == nil {
		t.Fatal("expected error for unknown size")
	}
	for _, name := range []string{"digest", "novella", "trade"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error does not list %q: %v", name, err)
		}
	}
}
