package pdfstamp

import (
	"io"
	"os"
)

// A4 sheet in points, the default output canvas.
const (
	defaultCanvasWidth  = 595.0
	defaultCanvasHeight = 842.0
)

// Config holds the user options for one composition run.
type Config struct {
	TrimWidth  float64 // trim rectangle where crop marks are drawn, points
	TrimHeight float64

	CanvasWidth  float64 // output page size, points
	CanvasHeight float64

	// FontPath names a TrueType font used to stamp a timestamp and page
	// numbers onto each sheet. Empty disables the annotations; only the
	// crop marks are drawn.
	FontPath string

	// Timestamp is the pre-formatted text stamped bottom-left. When empty
	// it is derived once per run from the local clock.
	Timestamp string

	// FlipY flips the manuscript vertically when composing onto a
	// template, for sources produced with a top-left origin convention.
	// Nothing is assumed about the source axis; this must be set
	// explicitly.
	FlipY bool

	Force  bool      // re-stamp even if an overlay from a previous run is detected
	Debug  bool      // verbose diagnostics
	Logger io.Writer // destination for warnings; nil = stderr
}

// DefaultConfig returns a config for a 6"×9" trade book centered on an A4
// sheet.
func DefaultConfig() Config {
	return Config{
		TrimWidth:    432,
		TrimHeight:   648,
		CanvasWidth:  defaultCanvasWidth,
		CanvasHeight: defaultCanvasHeight,
	}
}

// getLogger returns the writer warnings go to, defaulting to stderr.
func getLogger(cfg Config) io.Writer {
	if cfg.Logger == nil {
		return os.Stderr
	}
	return cfg.Logger
}
