// Package sandbox runs one extraction strategy under supervision so that a
// strategy stuck inside a PDF or OCR library can be abandoned when its
// time slice runs out.
package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime/debug"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/parser"
)

var (
	// ErrStrategyTimeout means the strategy did not finish inside its slice.
	ErrStrategyTimeout = errors.New("strategy timed out")
	// ErrWorkerCrashed means the strategy died without answering.
	ErrWorkerCrashed = errors.New("strategy worker crashed")
)

// WorkerArg is the hidden first argument that turns the binary into a
// strategy worker reading one Request on stdin.
const WorkerArg = "__strategy-worker"

// Request is one unit of work for a worker.
type Request struct {
	Strategy string           `json:"strategy"`
	PDF      []byte           `json:"pdf,omitempty"`
	Document *parser.Document `json:"document,omitempty"`
	Options  models.Options   `json:"options"`
	RunID    string           `json:"run_id,omitempty"`
}

// Response is what a worker answers. Error and ErrorKind are set when the
// strategy failed; the kind lets the caller map the failure back onto its
// own error values.
type Response struct {
	Attempt   models.Attempt        `json:"attempt"`
	Pages     *models.PageSet       `json:"pages,omitempty"`
	Meta      *models.StatementMeta `json:"meta,omitempty"`
	Error     string                `json:"error,omitempty"`
	ErrorKind string                `json:"error_kind,omitempty"`
}

// Handler serves one request. It is the code that runs inside the sandbox.
type Handler func(ctx context.Context, req Request) Response

// Runner executes a request under supervision. When ctx ends before the
// strategy does, Run returns an error wrapping ErrStrategyTimeout.
type Runner interface {
	Run(ctx context.Context, req Request) (Response, error)
}

// Serve reads one request from r, runs h and writes the response to w.
// A panic in h is reported as a response error.
func Serve(ctx context.Context, r io.Reader, w io.Writer, h Handler) error {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	resp := safely(ctx, req, h)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return nil
}

func safely(ctx context.Context, req Request, h Handler) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			resp = Response{
				Attempt: models.Attempt{Strategy: req.Strategy},
				Error:   fmt.Sprintf("strategy %s panicked: %v\n%s", req.Strategy, r, debug.Stack()),
			}
		}
	}()
	return h(ctx, req)
}

func timeout(ctx context.Context, strategy string) error {
	return fmt.Errorf("%w: %s: %v", ErrStrategyTimeout, strategy, context.Cause(ctx))
}

func emptyAttempt(req Request) models.Attempt {
	return models.Attempt{Strategy: req.Strategy}
}
