package pdfgraph

import (
	"bytes"
	"errors"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

func newTestContext(t *testing.T) *model.Context {
	t.Helper()
	ctx, err := pdfcpu.CreateContextWithXRefTable(model.NewDefaultConfiguration(), types.PaperSize["A4"])
	if err != nil {
		t.Fatalf("failed to create context: %v", err)
	}
	return ctx
}

func mustRef(t *testing.T, ctx *model.Context, obj types.Object) types.IndirectRef {
	t.Helper()
	ref, err := ctx.IndRefForNewObject(obj)
	if err != nil {
		t.Fatalf("failed to register object: %v", err)
	}
	return *ref
}

func mustDeref(t *testing.T, ctx *model.Context, obj types.Object) types.Object {
	t.Helper()
	resolved, err := ctx.Dereference(obj)
	if err != nil {
		t.Fatalf("failed to dereference %v: %v", obj, err)
	}
	return resolved
}

func TestTransplantSharedReference(t *testing.T) {
	src := newTestContext(t)
	dst := newTestContext(t)

	leaf := mustRef(t, src, types.Dict{"Kind": types.Name("Leaf")})
	a := mustRef(t, src, types.Dict{"Leaf": leaf})
	b := mustRef(t, src, types.Dict{"Leaf": leaf})

	cache := NewCopyCache()
	copied, err := Transplant(src, dst, types.Array{a, b}, cache)
	if err != nil {
		t.Fatalf("transplant failed: %v", err)
	}

	arr, ok := copied.(types.Array)
	if !ok || len(arr) != 2 {
		t.Fatalf("expected 2-element array, got %T %v", copied, copied)
	}

	da := mustDeref(t, dst, arr[0]).(types.Dict)
	db := mustDeref(t, dst, arr[1]).(types.Dict)
	if da["Leaf"] != db["Leaf"] {
		t.Errorf("shared leaf copied twice: %v vs %v", da["Leaf"], db["Leaf"])
	}
	if len(cache) != 3 {
		t.Errorf("expected 3 cached ids, got %d", len(cache))
	}

	dl := mustDeref(t, dst, da["Leaf"]).(types.Dict)
	if dl["Kind"] != types.Name("Leaf") {
		t.Errorf("leaf content lost: %v", dl)
	}
}

func TestTransplantCycle(t *testing.T) {
	src := newTestContext(t)
	dst := newTestContext(t)

	// a.Next -> b, b.Prev -> a
	a := mustRef(t, src, types.Dict{})
	b := mustRef(t, src, types.Dict{"Prev": a})
	src.Table[a.ObjectNumber.Value()].Object = types.Dict{"Next": b}

	copied, err := Transplant(src, dst, a, NewCopyCache())
	if err != nil {
		t.Fatalf("transplant failed: %v", err)
	}
	refA, ok := copied.(types.IndirectRef)
	if !ok {
		t.Fatalf("expected reference, got %T", copied)
	}

	da := mustDeref(t, dst, refA).(types.Dict)
	db := mustDeref(t, dst, da["Next"]).(types.Dict)
	back, ok := db["Prev"].(types.IndirectRef)
	if !ok {
		t.Fatalf("expected back reference, got %T", db["Prev"])
	}
	if back != refA {
		t.Errorf("cycle not preserved: back reference %v, want %v", back, refA)
	}
}

func TestTransplantDanglingReference(t *testing.T) {
	src := newTestContext(t)
	dst := newTestContext(t)

	ref := *types.NewIndirectRef(9999, 0)
	_, err := Transplant(src, dst, types.Dict{"Broken": ref}, NewCopyCache())
	if err == nil {
		t.Fatal("expected error for dangling reference")
	}
	var dangling *DanglingRefError
	if !errors.As(err, &dangling) {
		t.Fatalf("expected DanglingRefError, got %v", err)
	}
	if dangling.Ref != ref {
		t.Errorf("error reports %v, want %v", dangling.Ref, ref)
	}
}

func TestTransplantStreamVerbatim(t *testing.T) {
	src := newTestContext(t)
	dst := newTestContext(t)

	payload := []byte("0 0 m 100 100 l S\n")
	sd, err := src.NewStreamDictForBuf(payload)
	if err != nil {
		t.Fatalf("failed to build stream: %v", err)
	}
	if err := sd.Encode(); err != nil {
		t.Fatalf("failed to encode stream: %v", err)
	}
	ref := mustRef(t, src, *sd)

	copied, err := Transplant(src, dst, ref, NewCopyCache())
	if err != nil {
		t.Fatalf("transplant failed: %v", err)
	}

	resolved := mustDeref(t, dst, copied)
	var got types.StreamDict
	switch s := resolved.(type) {
	case types.StreamDict:
		got = s
	case *types.StreamDict:
		got = *s
	default:
		t.Fatalf("expected stream dict, got %T", resolved)
	}

	if !bytes.Equal(got.Raw, sd.Raw) {
		t.Error("stream payload changed during transplant")
	}
	if err := got.Decode(); err != nil {
		t.Fatalf("copied stream does not decode: %v", err)
	}
	if !bytes.Equal(got.Content, payload) {
		t.Errorf("decoded payload = %q, want %q", got.Content, payload)
	}
}

func TestTransplantCacheReuse(t *testing.T) {
	src := newTestContext(t)
	dst := newTestContext(t)

	ref := mustRef(t, src, types.Dict{"Kind": types.Name("Shared")})
	cache := NewCopyCache()

	first, err := Transplant(src, dst, ref, cache)
	if err != nil {
		t.Fatalf("first transplant failed: %v", err)
	}
	size := len(dst.Table)

	second, err := Transplant(src, dst, ref, cache)
	if err != nil {
		t.Fatalf("second transplant failed: %v", err)
	}
	if first != second {
		t.Errorf("cache returned a fresh id: %v vs %v", first, second)
	}
	if len(dst.Table) != size {
		t.Errorf("second transplant allocated %d new objects", len(dst.Table)-size)
	}
}

func TestTransplantScalars(t *testing.T) {
	src := newTestContext(t)
	dst := newTestContext(t)

	for _, obj := range []types.Object{
		types.Integer(42),
		types.Float(1.5),
		types.Name("Foo"),
		types.StringLiteral("bar"),
		types.Boolean(true),
	} {
		copied, err := Transplant(src, dst, obj, NewCopyCache())
		if err != nil {
			t.Fatalf("transplant of %v failed: %v", obj, err)
		}
		if copied != obj {
			t.Errorf("scalar %v changed to %v", obj, copied)
		}
	}

	copied, err := Transplant(src, dst, nil, NewCopyCache())
	if err != nil {
		t.Fatalf("transplant of nil failed: %v", err)
	}
	if copied != nil {
		t.Errorf("nil changed to %v", copied)
	}
}
