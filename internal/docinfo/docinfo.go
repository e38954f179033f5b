// Package docinfo probes scanned documents for cheap metadata recorded at
// ingest: page counts for PDFs and pixel dimensions for images.
package docinfo

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	_ "golang.org/x/image/webp"

	"coworker/internal/document"
)

// Probe inspects path and returns whatever metadata its format exposes.
// Unsupported extensions return a zero Info and no error.
func Probe(path string) (document.Info, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		pages, err := PDFPages(path)
		if err != nil {
			return document.Info{}, err
		}
		return document.Info{Pages: pages}, nil
	case ".jpg", ".jpeg", ".png", ".webp":
		width, height, err := ImageSize(path)
		if err != nil {
			return document.Info{}, err
		}
		return document.Info{Width: width, Height: height}, nil
	default:
		return document.Info{}, nil
	}
}

// PDFPages returns the page count from the document's page tree.
func PDFPages(path string) (pages int, err error) {
	defer func() {
		// the parser panics on some malformed cross-reference tables
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf %s: %v", filepath.Base(path), r)
		}
	}()
	file, reader, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf %s: %w", filepath.Base(path), err)
	}
	defer file.Close()
	return reader.NumPage(), nil
}

// ImageSize decodes only the image header.
func ImageSize(path string) (int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer file.Close()
	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, fmt.Errorf("decode image header %s: %w", filepath.Base(path), err)
	}
	return cfg.Width, cfg.Height, nil
}
