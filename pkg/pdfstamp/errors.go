package pdfstamp

import (
	"errors"
	"fmt"
)

// ErrNoPages is returned when the manuscript contributes no pages. A
// zero-page input almost always means a mis-parsed document, so the run
// fails instead of emitting a plausible-looking empty file.
var ErrNoPages = errors.New("manuscript has no pages")

// StructuralError reports a page missing a required entry, fatal for the
// batch: no output is written once one is encountered.
type StructuralError struct {
	Page    int
	Missing string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("page %d is missing required entry %s", e.Page, e.Missing)
}
