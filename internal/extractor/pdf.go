// Package extractor turns PDF bytes into positioned text: pages of lines
// of tokens, table candidates, and OCR text for pages without a usable
// text layer.
package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/amount"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/logger"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
)

var (
	// ErrUnreadablePDF means no back-end could open the document.
	ErrUnreadablePDF = errors.New("unreadable PDF")
	// ErrEmptyText means the document opened but produced no tokens.
	ErrEmptyText = errors.New("no text could be extracted")
)

// DefaultMinTokens is the alphanumeric token count below which a page is
// treated as scanned.
const DefaultMinTokens = 20

// OCR recognises pages that lack a usable text layer. A nil pages slice
// asks for every page. Pages missing from the result failed recognition.
type OCR interface {
	RecognizePages(ctx context.Context, pdf []byte, pages []int) (map[int]string, error)
}

// Layer extracts the positional text layer of a statement.
type Layer struct {
	OCR       OCR
	MinTokens int
	// Poppler enables the pdftotext back-end when the binary is installed.
	Poppler bool
}

// New returns a layer with every text back-end enabled.
func New(ocr OCR, minTokens int) *Layer {
	if minTokens <= 0 {
		minTokens = DefaultMinTokens
	}
	return &Layer{OCR: ocr, MinTokens: minTokens, Poppler: true}
}

// Extract returns the text layer of data. The library back-end is tried
// first; if it fails or returns unreadable text the poppler and raw-stream
// back-ends are tried in turn. Pages with too few tokens, or every page
// when forceOCR is set, go through OCR when an engine is configured.
func (l *Layer) Extract(ctx context.Context, data []byte, forceOCR bool) (models.PageSet, error) {
	log := logger.FromContext(ctx)
	if !LooksLikePDF(data) {
		return models.PageSet{}, fmt.Errorf("%w: missing %%PDF header", ErrUnreadablePDF)
	}
	minTokens := l.MinTokens
	if minTokens <= 0 {
		minTokens = DefaultMinTokens
	}

	pages, meta, libErr := positionalPages(data)
	if libErr != nil {
		log.Debug().Err(libErr).Msg("pdf library back-end failed")
	}
	if !readable(pages) {
		pages = l.fallback(ctx, data, pages)
	}
	if len(pages) == 0 && l.OCR == nil {
		if libErr != nil {
			return models.PageSet{}, fmt.Errorf("%w: %v", ErrUnreadablePDF, libErr)
		}
		return models.PageSet{}, ErrEmptyText
	}

	ps := models.PageSet{Pages: pages, Metadata: meta}
	var scanned []int
	for i := range ps.Pages {
		p := &ps.Pages[i]
		if forceOCR || p.TokenCount() < minTokens {
			p.IsScanned = true
			scanned = append(scanned, p.Number)
		}
	}
	if l.OCR != nil && (len(scanned) > 0 || len(ps.Pages) == 0) {
		if len(ps.Pages) == 0 {
			scanned = nil
		}
		texts, err := l.OCR.RecognizePages(ctx, data, scanned)
		if err != nil {
			if ctx.Err() != nil {
				return ps, ctx.Err()
			}
			log.Warn().Err(err).Ints("pages", scanned).Msg("OCR failed")
		}
		ps.Pages = mergeOCR(ps.Pages, texts)
	}
	if len(ps.Pages) == 0 && libErr != nil {
		return ps, fmt.Errorf("%w: %v", ErrUnreadablePDF, libErr)
	}

	tokens := 0
	for i := range ps.Pages {
		p := &ps.Pages[i]
		tokens += p.TokenCount()
		if p.Source != SourceOCR && len(p.Tables) == 0 {
			p.Tables = DetectTables(p.Lines)
		}
		for _, tb := range p.Tables {
			if len(tb.Rows) > 0 {
				log.Debug().Int("page", p.Number).Int("rows", len(tb.Rows)).Str("first_row", RowText(tb.Rows[0])).Msg("table candidate")
			}
		}
	}
	if tokens == 0 {
		return ps, ErrEmptyText
	}
	return ps, nil
}

// fallback tries the poppler and raw back-ends and keeps the first readable
// result, or whichever back-end found the most tokens.
func (l *Layer) fallback(ctx context.Context, data []byte, best []models.Page) []models.Page {
	log := logger.FromContext(ctx)
	if l.Poppler && popplerAvailable() {
		dir, err := os.MkdirTemp("", "stmt-pdftotext-*")
		if err == nil {
			defer os.RemoveAll(dir)
			pp, err := popplerPages(ctx, data, dir)
			switch {
			case err != nil:
				log.Debug().Err(err).Msg("pdftotext back-end failed")
			case readable(pp):
				return pp
			case tokenCount(pp) > tokenCount(best):
				best = pp
			}
		}
	}
	var rp []models.Page
	for i, text := range rawPages(data) {
		rp = append(rp, PageFromText(i+1, text))
	}
	if readable(rp) {
		return rp
	}
	if tokenCount(rp) > tokenCount(best) {
		best = rp
	}
	return best
}

// mergeOCR replaces or adds pages with recognised text.
func mergeOCR(pages []models.Page, texts map[int]string) []models.Page {
	byNumber := map[int]int{}
	for i, p := range pages {
		byNumber[p.Number] = i
	}
	for num, text := range texts {
		page := models.Page{
			Number:    num,
			Width:     letterWidth,
			Height:    letterHeight,
			Lines:     linesFromText(amount.Sanitize(text)),
			IsScanned: true,
			Source:    SourceOCR,
		}
		if i, ok := byNumber[num]; ok {
			page.Width, page.Height = pages[i].Width, pages[i].Height
			pages[i] = page
			continue
		}
		pages = append(pages, page)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })
	return pages
}

// LooksLikePDF reports whether the %PDF header appears in the first KiB.
func LooksLikePDF(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(head, []byte("%PDF-"))
}

func tokenCount(pages []models.Page) int {
	n := 0
	for _, p := range pages {
		n += p.TokenCount()
	}
	return n
}

func readable(pages []models.Page) bool {
	texts := make([]string, len(pages))
	for i, p := range pages {
		texts[i] = p.Text()
	}
	return IsReadableText(texts)
}

// textQuality returns the ratio of plain readable characters to all
// characters. Identity-encoded fonts decode into accented garbage, so
// letters are checked as ASCII rather than with unicode.IsLetter.
func textQuality(pages []string) float64 {
	total, good := 0, 0
	for _, page := range pages {
		for _, r := range page {
			total++
			if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || unicode.IsPunct(r)) ||
				strings.ContainsRune("£$€+=<>|^`~", r) {
				good++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(good) / float64(total)
}

// commonWords appear in virtually every statement; text with none of them
// is almost certainly mis-decoded.
var commonWords = []string{
	"bank", "account", "balance", "date", "payment", "statement",
	"total", "amount", "credit", "debit", "transaction", "deposit",
	"money", "paid", "opening", "closing", "transfer", "withdrawal",
	"number", "page", "period", "saldo", "datum",
}

func containsCommonWords(pages []string) bool {
	combined := strings.ToLower(strings.Join(pages, " "))
	for _, word := range commonWords {
		if strings.Contains(combined, word) {
			return true
		}
	}
	return false
}

// IsReadableText requires more than 50 characters, more than 60% readable
// characters, and at least one common statement word.
func IsReadableText(pages []string) bool {
	n := 0
	for _, p := range pages {
		n += len(strings.TrimSpace(p))
	}
	if n <= 50 || textQuality(pages) <= 0.6 {
		return false
	}
	return containsCommonWords(pages)
}
