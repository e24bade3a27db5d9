// cropped is a command-line tool for preparing manuscript PDFs for print
// production.
//
// It stamps crop marks onto manuscript pages expanded to a printing canvas,
// optionally annotating each page with a timestamp and page number footer,
// or composites manuscript pages onto the first page of a template PDF.
//
// Usage:
//
//	cropped [options] manuscript.pdf
//
// Required flags:
//
//	-output string   Output PDF path
//
// Processing options:
//
//	-size string     Trim size name, e.g. trade, digest, novella (default "trade")
//	-sizes string    Path to a YAML file with extra trim sizes
//	-template string Composite onto the first page of this template PDF
//	-font string     TrueType font for timestamp and page number footers
//	-flip-y          Mirror manuscript pages vertically (template mode)
//	-force           Re-stamp even if crop marks are already present
//	-debug           Enable debug logging
//
// Examples:
//
// Stamp crop marks at trade size:
//
//	cropped -output proof.pdf -font fonts/NotoSans.ttf manuscript.pdf
//
// Composite onto a template sheet:
//
//	cropped -output proof.pdf -template sheet.pdf manuscript.pdf
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/harrington-free-press/cropped/pkg/pdfstamp"
)

func main() {
	outputPath := flag.String("output", "", "Output PDF path")
	sizeName := flag.String("size", "trade", "Trim size name")
	sizesPath := flag.String("sizes", "", "Path to a YAML file with extra trim sizes")
	templatePath := flag.String("template", "", "Composite onto the first page of this template PDF")
	fontPath := flag.String("font", "", "TrueType font for timestamp and page number footers")
	flipY := flag.Bool("flip-y", false, "Mirror manuscript pages vertically (template mode)")
	force := flag.Bool("force", false, "Re-stamp even if crop marks are already present")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if flag.NArg() != 1 {
		fatal("Error: Must provide exactly one manuscript PDF")
	}
	manuscriptPath := flag.Arg(0)
	if *outputPath == "" {
		fatal("Error: Must provide -output path")
	}

	sizes, err := pdfstamp.LoadSizes(*sizesPath)
	if err != nil {
		fatalf("Failed to load trim sizes: %v", err)
	}
	trimW, trimH, err := pdfstamp.ResolveSize(*sizeName, sizes)
	if err != nil {
		fatalf("%v", err)
	}

	config := pdfstamp.DefaultConfig()
	config.TrimWidth = trimW
	config.TrimHeight = trimH
	config.FontPath = *fontPath
	config.FlipY = *flipY
	config.Force = *force
	config.Debug = *debug

	if *templatePath != "" {
		err = pdfstamp.ComposeFile(manuscriptPath, *templatePath, *outputPath, config)
	} else {
		err = pdfstamp.StampFile(manuscriptPath, *outputPath, config)
	}
	if err != nil {
		fatalf("%v", err)
	}
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

func fatalf(format string, args ...any) {
	fatal(fmt.Sprintf(format, args...))
}
