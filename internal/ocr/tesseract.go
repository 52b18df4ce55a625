package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Tesseract runs the tesseract binary, feeding the image on stdin.
type Tesseract struct {
	Bin  string
	Lang string
	DPI  int
}

// NewTesseract returns an engine for bin (default "tesseract") and lang
// (default "eng").
func NewTesseract(bin, lang string) *Tesseract {
	if bin == "" {
		bin = "tesseract"
	}
	if lang == "" {
		lang = "eng"
	}
	return &Tesseract{Bin: bin, Lang: lang, DPI: DefaultDPI}
}

// Available reports whether the binary can be found.
func (t *Tesseract) Available() bool {
	_, err := exec.LookPath(t.Bin)
	return err == nil
}

// Recognize implements Engine.
func (t *Tesseract) Recognize(ctx context.Context, image []byte, mode Mode) (string, error) {
	bin, err := exec.LookPath(t.Bin)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnavailable, t.Bin, err)
	}
	args := []string{"stdin", "stdout", "--psm", strconv.Itoa(int(mode)), "-l", t.Lang}
	if t.DPI > 0 {
		args = append(args, "--dpi", strconv.Itoa(t.DPI))
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdin = bytes.NewReader(image)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract --psm %d failed: %w (output: %s)", mode, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
