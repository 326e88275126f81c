// Package pdfutil assembles captured pages into a PDF and reads PDFs back for
// verification and text extraction.
package pdfutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"runtime"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/sync/errgroup"

	"github.com/dharsanguruparan/DocDesk/internal/model"
)

// ErrNoPages is returned when there is nothing to assemble.
var ErrNoPages = errors.New("no pages to assemble")

const (
	pageWidthMM  = 210.0
	pageHeightMM = 297.0
	marginMM     = 5.0
)

type pageImage struct {
	data   []byte
	kind   string
	width  int
	height int
}

// Assemble writes one A4 page per captured page to dst, in sequence order.
// Page payloads are read concurrently; placement into the document is
// sequential, so the PDF order always equals the slice order.
func Assemble(ctx context.Context, pages []*model.CapturedPage, dst string) error {
	if len(pages) == 0 {
		return ErrNoPages
	}
	images := make([]pageImage, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, p := range pages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := p.Payload()
			if err != nil {
				return err
			}
			cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
			if err != nil {
				return fmt.Errorf("decode page %d: %w", i+1, err)
			}
			images[i] = pageImage{data: data, kind: imageType(format), width: cfg.Width, height: cfg.Height}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := fmt.Sprintf("page-%d", i+1)
		opts := gofpdf.ImageOptions{ImageType: img.kind}
		doc.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.data))
		doc.AddPage()
		x, y, w, h := fit(float64(img.width), float64(img.height))
		doc.ImageOptions(name, x, y, w, h, false, opts, 0, "")
		if err := doc.Error(); err != nil {
			return fmt.Errorf("render page %d: %w", i+1, err)
		}
	}
	if err := doc.OutputFileAndClose(dst); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// fit scales an image into the printable area keeping its aspect ratio and
// centres it on the page.
func fit(w, h float64) (x, y, outW, outH float64) {
	maxW := pageWidthMM - 2*marginMM
	maxH := pageHeightMM - 2*marginMM
	scale := maxW / w
	if h*scale > maxH {
		scale = maxH / h
	}
	outW, outH = w*scale, h*scale
	return (pageWidthMM - outW) / 2, (pageHeightMM - outH) / 2, outW, outH
}

func imageType(format string) string {
	switch format {
	case "png":
		return "PNG"
	case "gif":
		return "GIF"
	}
	return "JPG"
}

// Exists reports whether path is a non-empty regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}
