package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// defaultHTTPTimeout applies when the context carries no deadline.
const defaultHTTPTimeout = 30 * time.Second

// HTTPEngine posts page images to an OCR service. The service receives a
// multipart form with an "image" file plus "psm" and "lang" fields and
// answers with {"text": "..."} or a plain-text body.
type HTTPEngine struct {
	URL  string
	Lang string
}

// NewHTTPEngine returns an engine for the service at url.
func NewHTTPEngine(url, lang string) *HTTPEngine {
	if lang == "" {
		lang = "eng"
	}
	return &HTTPEngine{URL: url, Lang: lang}
}

type httpResult struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

// Recognize implements Engine.
func (h *HTTPEngine) Recognize(ctx context.Context, image []byte, mode Mode) (string, error) {
	if h.URL == "" {
		return "", fmt.Errorf("%w: no OCR service URL", ErrUnavailable)
	}
	timeout := defaultHTTPTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return "", context.DeadlineExceeded
		}
	}

	args := fiber.AcquireArgs()
	defer fiber.ReleaseArgs(args)
	args.Set("psm", strconv.Itoa(int(mode)))
	args.Set("lang", h.Lang)

	agent := fiber.Post(h.URL).
		Timeout(timeout).
		FileData(&fiber.FormFile{Fieldname: "image", Name: "page.png", Content: image}).
		MultipartForm(args)

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return "", fmt.Errorf("OCR service request failed: %w", errs[0])
	}
	if code != fiber.StatusOK {
		return "", fmt.Errorf("OCR service returned %d: %s", code, strings.TrimSpace(string(body)))
	}
	var res httpResult
	if err := json.Unmarshal(body, &res); err != nil {
		return string(body), nil
	}
	if res.Error != "" {
		return "", fmt.Errorf("OCR service: %s", res.Error)
	}
	return res.Text, nil
}
