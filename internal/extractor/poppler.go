package extractor

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
)

// popplerAvailable reports whether pdftotext is on PATH.
func popplerAvailable() bool {
	_, err := exec.LookPath("pdftotext")
	return err == nil
}

// popplerPages runs `pdftotext -bbox-layout` inside dir and reads the word
// boxes from its XHTML output.
func popplerPages(ctx context.Context, data []byte, dir string) ([]models.Page, error) {
	bin, err := exec.LookPath("pdftotext")
	if err != nil {
		return nil, fmt.Errorf("pdftotext not available: %w", err)
	}
	in := filepath.Join(dir, "statement.pdf")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, fmt.Errorf("write pdftotext input: %w", err)
	}
	out := filepath.Join(dir, "bbox.html")
	if msg, err := exec.CommandContext(ctx, bin, "-bbox-layout", in, out).CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftotext failed: %w (output: %s)", err, strings.TrimSpace(string(msg)))
	}
	f, err := os.Open(out)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseBBox(f)
}

// parseBBox converts pdftotext's bbox XHTML into pages. The HTML parser
// lower-cases attribute names, so xMin arrives as xmin.
func parseBBox(r io.Reader) ([]models.Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse pdftotext output: %w", err)
	}
	var pages []models.Page
	doc.Find("page").Each(func(i int, s *goquery.Selection) {
		page := models.Page{
			Number: i + 1,
			Width:  attrFloat(s, "width", letterWidth),
			Height: attrFloat(s, "height", letterHeight),
			Source: SourcePoppler,
		}
		var glyphs []glyph
		s.Find("word").Each(func(_ int, w *goquery.Selection) {
			text := strings.TrimSpace(w.Text())
			if text == "" {
				return
			}
			x0, x1 := attrFloat(w, "xmin", 0), attrFloat(w, "xmax", 0)
			y0, y1 := attrFloat(w, "ymin", 0), attrFloat(w, "ymax", 0)
			glyphs = append(glyphs, glyph{s: text, x: x0, y: y1, w: x1 - x0, size: y1 - y0})
		})
		page.Lines = lineUp(glyphs, false)
		pages = append(pages, page)
	})
	if len(pages) == 0 {
		return nil, fmt.Errorf("pdftotext output has no pages")
	}
	return pages, nil
}

func attrFloat(s *goquery.Selection, name string, def float64) float64 {
	v, ok := s.Attr(name)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}
