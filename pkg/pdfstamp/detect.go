package pdfstamp

import (
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// HasStamp reports whether any page of ctx already carries the crop-mark
// overlay, by looking for the overlay's XObject resource name. Pages that
// fail to resolve are skipped so a partially damaged document can still be
// inspected.
func HasStamp(ctx *model.Context) bool {
	if ctx.PageCount == 0 {
		if err := ctx.EnsurePageCount(); err != nil {
			return false
		}
	}
	for p := 1; p <= ctx.PageCount; p++ {
		pageDict, _, _, err := ctx.PageDict(p, false)
		if err != nil || pageDict == nil {
			continue
		}
		res, err := ctx.DereferenceDict(pageDict["Resources"])
		if err != nil || res == nil {
			continue
		}
		xo, err := ctx.DereferenceDict(res["XObject"])
		if err != nil || xo == nil {
			continue
		}
		if _, ok := xo[overlayName]; ok {
			return true
		}
	}
	return false
}
