// Package pdfstamp prepares manuscript PDFs for print production. It
// stamps crop marks, a timestamp and page numbers onto manuscript pages
// expanded to a printing canvas, and composites manuscript pages onto
// template sheets for imposition workflows.
package pdfstamp

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// StampFile reads the manuscript at inputPath, stamps it and writes the
// result to outputPath. A document that already carries the overlay is
// refused unless cfg.Force is set.
func StampFile(inputPath, outputPath string, cfg Config) error {
	logger := getLogger(cfg)

	ctx, err := readContext(inputPath)
	if err != nil {
		return err
	}
	if HasStamp(ctx) {
		if !cfg.Force {
			return fmt.Errorf("%s already carries crop marks (use force to re-stamp)", inputPath)
		}
		fmt.Fprintf(logger, "warning: %s already carries crop marks; stamping again\n", inputPath)
	}

	if err := Stamp(ctx, cfg); err != nil {
		return fmt.Errorf("failed to stamp %s: %w", inputPath, err)
	}
	return writeContext(ctx, outputPath, cfg)
}

// ComposeFile reads the manuscript and template, composites them and
// writes the result to outputPath.
func ComposeFile(manuscriptPath, templatePath, outputPath string, cfg Config) error {
	manuscript, err := readContext(manuscriptPath)
	if err != nil {
		return err
	}
	template, err := readContext(templatePath)
	if err != nil {
		return err
	}

	out, err := Compose(manuscript, template, cfg)
	if err != nil {
		return fmt.Errorf("failed to compose %s onto %s: %w", manuscriptPath, templatePath, err)
	}
	return writeContext(out, outputPath, cfg)
}

func readContext(path string) (*model.Context, error) {
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ctx, nil
}

func writeContext(ctx *model.Context, path string, cfg Config) error {
	if err := pdfcpu.OptimizeXRefTable(ctx); err != nil {
		return fmt.Errorf("failed to optimize output: %w", err)
	}
	if err := api.WriteContextFile(ctx, path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(getLogger(cfg), "Wrote %s\n", path)
	return nil
}
