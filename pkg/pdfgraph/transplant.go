// Package pdfgraph implements the object-graph engine underneath the page
// compositor: deep-copying ("transplanting") object subgraphs between PDF
// documents, decoding and encoding content stream operations, and merging
// resource dictionaries.
//
// All structured values are pdfcpu objects (types.Object and friends), so
// everything produced here can be handed straight back to the document layer
// for serialization. A reference is only meaningful relative to the document
// that minted it; the transplanter is the one place where references cross a
// document boundary, and it rewrites every one of them.
package pdfgraph

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// DanglingRefError reports a reference that does not resolve in the source
// document. Encountering one during transplantation means the source object
// graph is broken, which is fatal for the batch.
type DanglingRefError struct {
	Ref types.IndirectRef
	Err error
}

func (e *DanglingRefError) Error() string {
	return fmt.Sprintf("dangling reference %s: %v", e.Ref, e.Err)
}

func (e *DanglingRefError) Unwrap() error { return e.Err }

// CopyCache maps source object ids to their destination counterparts for one
// transplantation scope. Reusing one cache across calls is what keeps a font
// shared by many pages from being copied once per page: once a source id is
// present, every later encounter yields the same destination id.
//
// The map is not synchronized. Pages are processed sequentially; a caller
// that ever parallelizes per-page work must give each page its own cache.
type CopyCache map[types.IndirectRef]types.IndirectRef

// NewCopyCache returns an empty cache for one transplantation scope.
func NewCopyCache() CopyCache { return make(CopyCache) }

// Transplant deep-copies obj and everything it transitively references from
// src into dst, rewriting references so the copy resolves entirely within
// dst. No reference into src's id space escapes into the returned value.
//
// Indirect objects are deduplicated through cache. The (source id →
// destination id) pair is recorded before the referenced value's children
// are copied, so reference cycles (for example a Resources dictionary that
// indirectly points back at its own page) terminate.
//
// Inline dictionaries and arrays are rebuilt without allocating new ids;
// stream payloads are carried verbatim and never decoded here.
func Transplant(src, dst *model.Context, obj types.Object, cache CopyCache) (types.Object, error) {
	switch o := obj.(type) {
	case types.IndirectRef:
		return transplantRef(src, dst, o, cache)
	case types.Dict:
		d, err := transplantDict(src, dst, o, cache)
		if err != nil {
			return nil, err
		}
		return d, nil
	case types.Array:
		return transplantArray(src, dst, o, cache)
	case types.StreamDict:
		return transplantStream(src, dst, o, cache)
	case *types.StreamDict:
		return transplantStream(src, dst, *o, cache)
	default:
		// Scalars carry no references; a structural copy is enough.
		if obj == nil {
			return nil, nil
		}
		return obj.Clone(), nil
	}
}

func transplantRef(src, dst *model.Context, ref types.IndirectRef, cache CopyCache) (types.Object, error) {
	if dstRef, ok := cache[ref]; ok {
		return dstRef, nil
	}

	val, err := src.Dereference(ref)
	if err != nil {
		return nil, &DanglingRefError{Ref: ref, Err: err}
	}
	if val == nil {
		return nil, &DanglingRefError{Ref: ref, Err: fmt.Errorf("object not found")}
	}

	// Reserve the destination id and record the mapping before copying the
	// children, so a child that refers back to ref reuses the reserved id
	// instead of recursing forever.
	dstRef, err := dst.IndRefForNewObject(types.Dict{})
	if err != nil {
		return nil, err
	}
	cache[ref] = *dstRef

	copied, err := Transplant(src, dst, val, cache)
	if err != nil {
		return nil, err
	}
	dst.Table[dstRef.ObjectNumber.Value()].Object = copied

	return *dstRef, nil
}

func transplantDict(src, dst *model.Context, d types.Dict, cache CopyCache) (types.Dict, error) {
	out := types.Dict{}
	for k, v := range d {
		repl, err := Transplant(src, dst, v, cache)
		if err != nil {
			return nil, err
		}
		out[k] = repl
	}
	return out, nil
}

func transplantArray(src, dst *model.Context, a types.Array, cache CopyCache) (types.Object, error) {
	out := make(types.Array, 0, len(a))
	for _, v := range a {
		repl, err := Transplant(src, dst, v, cache)
		if err != nil {
			return nil, err
		}
		out = append(out, repl)
	}
	return out, nil
}

func transplantStream(src, dst *model.Context, sd types.StreamDict, cache CopyCache) (types.Object, error) {
	d, err := transplantDict(src, dst, sd.Dict, cache)
	if err != nil {
		return nil, err
	}
	// The payload is opaque at this layer: Raw bytes and the filter
	// pipeline travel verbatim, so the copy stays byte-identical.
	return types.StreamDict{
		Dict:           d,
		Raw:            append([]byte(nil), sd.Raw...),
		FilterPipeline: sd.FilterPipeline,
	}, nil
}
