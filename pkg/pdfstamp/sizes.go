package pdfstamp

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Built-in trim size presets, width × height in points.
var builtinSizes = map[string][2]float64{
	"trade":   {432, 648}, // 6" × 9"
	"digest":  {396, 612}, // 5.5" × 8.5"
	"novella": {360, 576}, // 5" × 8"
}

// SizeEntry is one trim-size preset in a sizes file.
type SizeEntry struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// LoadSizes returns the built-in presets, extended by the YAML file at
// path when one is given. The file maps preset names to width/height in
// points; entries override built-ins of the same name.
func LoadSizes(path string) (map[string][2]float64, error) {
	sizes := make(map[string][2]float64, len(builtinSizes))
	for name, wh := range builtinSizes {
		sizes[name] = wh
	}
	if path == "" {
		return sizes, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sizes file: %w", err)
	}
	var entries map[string]SizeEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse sizes file: %w", err)
	}
	for name, e := range entries {
		if e.Width <= 0 || e.Height <= 0 {
			return nil, fmt.Errorf("size %q must have positive width and height", name)
		}
		sizes[name] = [2]float64{e.Width, e.Height}
	}
	return sizes, nil
}

// ResolveSize looks up a named preset and returns its width and height in
// points.
func ResolveSize(name string, sizes map[string][2]float64) (float64, float64, error) {
	wh, ok := sizes[name]
	if !ok {
		known := make([]string, 0, len(sizes))
		for k := range sizes {
			known = append(known, k)
		}
		sort.Strings(known)
		return 0, 0, fmt.Errorf("unknown paper size %q (supported: %s)", name, strings.Join(known, ", "))
	}
	return wh[0], wh[1], nil
}
