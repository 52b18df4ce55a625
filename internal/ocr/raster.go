package ocr

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// Fitz renders pages in-process with MuPDF.
type Fitz struct{}

// Rasterize implements Rasterizer.
func (Fitz) Rasterize(ctx context.Context, pdf []byte, dir string, dpi int, pages []int) (images []PageImage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mupdf crashed: %v", r)
		}
	}()
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF from memory: %w", err)
	}
	defer doc.Close()

	if pages == nil {
		pages = allPages(doc.NumPage())
	}
	for _, num := range pages {
		if err := ctx.Err(); err != nil {
			return images, err
		}
		if num < 1 || num > doc.NumPage() {
			continue
		}
		img, err := doc.ImageDPI(num-1, float64(dpi))
		if err != nil {
			return images, fmt.Errorf("render page %d: %w", num, err)
		}
		path := pagePath(dir, num)
		f, err := os.Create(path)
		if err != nil {
			return images, err
		}
		err = png.Encode(f, img)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return images, fmt.Errorf("encode page %d: %w", num, err)
		}
		images = append(images, PageImage{Number: num, Path: path})
	}
	return images, nil
}

// Pdftoppm renders pages with poppler's pdftoppm.
type Pdftoppm struct{}

// Available reports whether pdftoppm is installed.
func (Pdftoppm) Available() bool {
	_, err := exec.LookPath("pdftoppm")
	return err == nil
}

// Rasterize implements Rasterizer.
func (Pdftoppm) Rasterize(ctx context.Context, pdf []byte, dir string, dpi int, pages []int) ([]PageImage, error) {
	bin, err := exec.LookPath("pdftoppm")
	if err != nil {
		return nil, fmt.Errorf("%w: pdftoppm not available (install poppler-utils): %v", ErrUnavailable, err)
	}
	in := filepath.Join(dir, "statement.pdf")
	if err := os.WriteFile(in, pdf, 0o600); err != nil {
		return nil, err
	}
	if pages == nil {
		n := pageCount(ctx, in)
		if n == 0 {
			return nil, fmt.Errorf("could not determine page count")
		}
		pages = allPages(n)
	}
	var images []PageImage
	for _, num := range pages {
		prefix := strings.TrimSuffix(pagePath(dir, num), ".png")
		page := strconv.Itoa(num)
		cmd := exec.CommandContext(ctx, bin, "-r", strconv.Itoa(dpi), "-png", "-singlefile", "-f", page, "-l", page, in, prefix)
		if out, err := cmd.CombinedOutput(); err != nil {
			if ctx.Err() != nil {
				return images, ctx.Err()
			}
			return images, fmt.Errorf("pdftoppm failed on page %d: %w (output: %s)", num, err, strings.TrimSpace(string(out)))
		}
		images = append(images, PageImage{Number: num, Path: prefix + ".png"})
	}
	return images, nil
}

// pageCount asks pdfinfo for the number of pages; zero when unknown.
func pageCount(ctx context.Context, path string) int {
	out, err := exec.CommandContext(ctx, "pdfinfo", path).Output()
	if err != nil {
		return 0
	}
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "Pages:") {
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Pages:")))
			if err == nil {
				return n
			}
		}
	}
	return 0
}

func pagePath(dir string, num int) string {
	return filepath.Join(dir, fmt.Sprintf("page-%03d.png", num))
}

func allPages(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}
