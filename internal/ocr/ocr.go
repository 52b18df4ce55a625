// Package ocr recognises text on rasterised statement pages.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/dates"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/logger"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/metrics"
)

// ErrUnavailable means a required OCR tool is not installed or configured.
var ErrUnavailable = errors.New("OCR not available")

// DefaultDPI is the rasterisation resolution used for recognition.
const DefaultDPI = 300

// Mode is a page segmentation mode in Tesseract numbering.
type Mode int

const (
	ModeAuto        Mode = 3  // fully automatic page segmentation
	ModeColumn      Mode = 4  // single column of variable-size text
	ModeSingleBlock Mode = 6  // one uniform block of text
	ModeSparse      Mode = 11 // as much text as possible, in no order
)

// DefaultModes are tried in order on every page: automatic layout, then
// one uniform block, then sparse text. ModeColumn is there for callers
// that know the page is a single column.
var DefaultModes = []Mode{ModeAuto, ModeSingleBlock, ModeSparse}

// Engine recognises the text in one page image.
type Engine interface {
	Recognize(ctx context.Context, image []byte, mode Mode) (string, error)
}

// PageImage is a rendered page on disk.
type PageImage struct {
	Number int
	Path   string
}

// Rasterizer renders PDF pages to PNG files inside dir. A nil pages slice
// means every page.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdf []byte, dir string, dpi int, pages []int) ([]PageImage, error)
}

// Pipeline renders pages, cleans the images up and runs the engine under
// several segmentation modes, keeping the best reading of each page.
type Pipeline struct {
	Rasterizer Rasterizer
	Engine     Engine
	DPI        int
	Modes      []Mode
	Enhance    bool
	Metrics    *metrics.Metrics
}

// NewPipeline returns a pipeline with default resolution and modes.
func NewPipeline(r Rasterizer, e Engine) *Pipeline {
	return &Pipeline{Rasterizer: r, Engine: e, DPI: DefaultDPI, Modes: DefaultModes, Enhance: true}
}

// RecognizePages renders and recognises pages of pdf. Rendered images live
// in a temporary directory that is removed before returning. A page whose
// every mode fails is left out of the result.
func (p *Pipeline) RecognizePages(ctx context.Context, pdf []byte, pages []int) (map[int]string, error) {
	if p.Rasterizer == nil || p.Engine == nil {
		return nil, ErrUnavailable
	}
	log := logger.FromContext(ctx)
	dpi := p.DPI
	if dpi <= 0 {
		dpi = DefaultDPI
	}

	dir, err := os.MkdirTemp("", "stmt-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	images, err := p.Rasterizer.Rasterize(ctx, pdf, dir, dpi, pages)
	if err != nil {
		return nil, fmt.Errorf("rasterize: %w", err)
	}

	out := make(map[int]string, len(images))
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		data, err := os.ReadFile(img.Path)
		if err != nil {
			p.Metrics.OCRPage("failed")
			continue
		}
		if p.Enhance {
			if clean, err := Enhance(data); err == nil {
				data = clean
			} else {
				log.Debug().Err(err).Int("page", img.Number).Msg("image enhancement skipped")
			}
		}
		text, err := p.best(ctx, data)
		if err != nil {
			log.Warn().Err(err).Int("page", img.Number).Msg("page OCR failed")
			p.Metrics.OCRPage("failed")
			continue
		}
		p.Metrics.OCRPage("ok")
		out[img.Number] = text
	}
	if len(out) == 0 && len(images) > 0 {
		return out, fmt.Errorf("OCR produced no text from %d page images", len(images))
	}
	return out, nil
}

// best runs every mode and keeps the longest reading that contains a date;
// without any dated reading the longest one wins.
func (p *Pipeline) best(ctx context.Context, image []byte) (string, error) {
	modes := p.Modes
	if len(modes) == 0 {
		modes = DefaultModes
	}
	var bestDated, bestAny string
	var lastErr error
	for _, m := range modes {
		text, err := p.Engine.Recognize(ctx, image, m)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = err
			continue
		}
		text = strings.TrimSpace(text)
		n := charCount(text)
		if n > charCount(bestAny) {
			bestAny = text
		}
		if n > charCount(bestDated) && dates.HasDate(text) {
			bestDated = text
		}
	}
	if bestDated != "" {
		return bestDated, nil
	}
	if bestAny != "" {
		return bestAny, nil
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", errors.New("no text recognised")
}

func charCount(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
