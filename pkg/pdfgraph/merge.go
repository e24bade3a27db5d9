package pdfgraph

import (
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// MergeResources combines two resource dictionaries, each mapping a
// resource class (Font, XObject, ColorSpace, ...) to a table of local
// names. The result starts as a full copy of base; classes present only in
// overlay are added; classes present in both are merged name by name with
// base winning every collision, so the base document's own resource
// bindings are never displaced. Nothing is ever deleted.
//
// Local names are only unique within one resource scope, which is why a
// colliding name must keep the base binding rather than be overwritten: the
// overlay's name of the same spelling may denote an unrelated object.
//
// A base class stored as an indirect reference is left untouched and the
// class is skipped with a line on warn: other pages may alias the
// referenced table, and rewriting it here would fork shared state. Overlay
// entries behind references are resolved in ctx before merging.
func MergeResources(ctx *model.Context, base, overlay types.Dict, warn io.Writer) types.Dict {
	if warn == nil {
		warn = io.Discard
	}

	out := types.Dict{}
	for k, v := range base {
		out[k] = v
	}

	for class, ov := range overlay {
		bv, ok := out[class]
		if !ok || bv == nil {
			out[class] = ov
			continue
		}

		if _, isRef := bv.(types.IndirectRef); isRef {
			fmt.Fprintf(warn, "warning: resource class %s is indirect in the base dictionary; leaving it unmerged\n", class)
			continue
		}
		baseTbl, ok := bv.(types.Dict)
		if !ok {
			fmt.Fprintf(warn, "warning: resource class %s has unexpected shape %T; leaving it unmerged\n", class, bv)
			continue
		}

		ovTbl, err := ctx.DereferenceDict(ov)
		if err != nil || ovTbl == nil {
			fmt.Fprintf(warn, "warning: overlay resource class %s does not resolve; skipping\n", class)
			continue
		}

		merged := types.Dict{}
		for name, entry := range baseTbl {
			merged[name] = entry
		}
		for name, entry := range ovTbl {
			if _, exists := merged[name]; !exists {
				merged[name] = entry
			}
		}
		out[class] = merged
	}

	return out
}
