// Package pdftest builds small, well-formed PDF documents for tests: a
// real xref table, one WinAnsi Courier font and text drawn at fixed
// positions, so the ledongthuc/pdf back-end can read them.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

// Text is a run drawn with its baseline at (X, Y) in PDF user space,
// where y grows up the page.
type Text struct {
	X, Y float64
	S    string
}

// Page is one page of a document. A zero size means US Letter. A page
// without text has no content stream, like a scanned image page with the
// image left out.
type Page struct {
	Width, Height float64
	Text          []Text
}

// FontSize is the size every run is drawn at. Courier advances 600/1000
// of it per character.
const FontSize = 10

// Producer is written to the document information dictionary.
const Producer = "pdftest"

// Build renders pages into a PDF file.
func Build(pages ...Page) []byte {
	var b bytes.Buffer
	var offsets []int
	obj := func(body string) int {
		offsets = append(offsets, b.Len())
		n := len(offsets)
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", n, body)
		return n
	}
	b.WriteString("%PDF-1.4\n")

	// Objects 1-4 are fixed; page objects and their streams follow, so
	// the page of index i is object 5+2i and its content 6+2i.
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 5+2*i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	obj("<< /Type /Font /Subtype /Type1 /BaseFont /Courier /Encoding /WinAnsiEncoding" +
		" /FirstChar 32 /LastChar 126 /Widths [" + strings.TrimSpace(strings.Repeat("600 ", 95)) + "] >>")
	obj("<< /Producer (" + Producer + ") >>")

	for i, p := range pages {
		w, h := p.Width, p.Height
		if w <= 0 || h <= 0 {
			w, h = 612, 792
		}
		dict := fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %g %g] /Resources << /Font << /F1 3 0 R >> >>", w, h)
		if len(p.Text) > 0 {
			dict += fmt.Sprintf(" /Contents %d 0 R", 6+2*i)
		}
		obj(dict + " >>")

		var content strings.Builder
		for _, t := range p.Text {
			fmt.Fprintf(&content, "BT\n/F1 %d Tf\n%g %g Td\n(%s) Tj\nET\n", FontSize, t.X, t.Y, escape(t.S))
		}
		// Keep object numbering fixed even for pages without content.
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()))
	}

	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R /Info 4 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return b.Bytes()
}

// Lines stacks runs down a page from the top margin, one per line, all
// starting at the left margin.
func Lines(lines ...string) []Text {
	out := make([]Text, len(lines))
	for i, s := range lines {
		out[i] = Text{X: 50, Y: 740 - float64(i)*14, S: s}
	}
	return out
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)
	return r.Replace(s)
}
