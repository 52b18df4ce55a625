package extractor

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
)

// Back-end names recorded on models.Page.Source.
const (
	SourceLibrary = "pdf"
	SourcePoppler = "pdftotext"
	SourceRaw     = "raw"
	SourceOCR     = "ocr"
)

const (
	letterWidth  = 612.0
	letterHeight = 792.0
)

// positionalPages reads every page's glyph stream with ledongthuc/pdf.
// The library panics on some malformed files; a panic on one page leaves
// that page empty, a panic while opening fails the back-end.
func positionalPages(data []byte) (pages []models.Page, meta map[string]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("PDF library crashed: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, err
	}
	numPages := r.NumPage()
	if numPages == 0 {
		return nil, nil, fmt.Errorf("PDF has no pages")
	}
	meta = docInfo(r)
	for i := 1; i <= numPages; i++ {
		pages = append(pages, positionalPage(r, i))
	}
	return pages, meta, nil
}

func positionalPage(r *pdf.Reader, num int) (page models.Page) {
	page = models.Page{Number: num, Width: letterWidth, Height: letterHeight, Source: SourceLibrary}
	defer func() {
		if rec := recover(); rec != nil {
			page.Lines = nil
		}
	}()

	p := r.Page(num)
	if p.V.IsNull() {
		return page
	}
	page.Width, page.Height = mediaBox(p)

	content := p.Content()
	glyphs := make([]glyph, 0, len(content.Text))
	for _, t := range content.Text {
		if t.S == "" {
			continue
		}
		// PDF user space grows upwards; flip so y grows down the page.
		glyphs = append(glyphs, glyph{s: t.S, x: t.X, y: page.Height - t.Y, w: t.W, size: t.FontSize})
	}
	page.Lines = lineUp(glyphs, true)
	return page
}

func mediaBox(p pdf.Page) (float64, float64) {
	box := p.V.Key("MediaBox")
	if box.Len() != 4 {
		box = p.V.Key("Parent").Key("MediaBox")
	}
	if box.Len() != 4 {
		return letterWidth, letterHeight
	}
	w := box.Index(2).Float64() - box.Index(0).Float64()
	h := box.Index(3).Float64() - box.Index(1).Float64()
	if w <= 0 || h <= 0 {
		return letterWidth, letterHeight
	}
	return w, h
}

// docInfo returns the string entries of the document information dictionary.
func docInfo(r *pdf.Reader) map[string]string {
	info := r.Trailer().Key("Info")
	if info.IsNull() {
		return nil
	}
	out := map[string]string{}
	for _, k := range info.Keys() {
		if v := info.Key(k); v.Kind() == pdf.String {
			if s := v.Text(); s != "" {
				out[k] = s
			}
		}
	}
	return out
}
