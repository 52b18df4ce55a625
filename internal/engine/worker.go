package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/extractor"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/logger"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/ocr"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/parser"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/sandbox"
)

// Step names besides the parser strategies.
const (
	StepTextLayer = "text-layer"
	StrategyOCR   = "ocr+generic"
)

// Error kinds carried across the worker boundary.
const (
	kindUnreadable  = "unreadable"
	kindEmptyText   = "empty-text"
	kindUnavailable = "ocr-unavailable"
	kindFailed      = "failed"
)

// Handle serves one step. It runs inside the sandbox: in a worker process
// started with sandbox.WorkerArg, or on a goroutine for the in-process
// runner.
func (e *Engine) Handle(ctx context.Context, req sandbox.Request) sandbox.Response {
	log := logger.WithFields(logger.FromContext(ctx), map[string]interface{}{
		"run_id":   req.RunID,
		"strategy": req.Strategy,
	})
	ctx = logger.WithContext(ctx, log)
	resp := sandbox.Response{Attempt: models.Attempt{Strategy: req.Strategy}}

	switch req.Strategy {
	case StepTextLayer:
		ps, err := e.Text.Extract(ctx, req.PDF, false)
		resp.Pages = &ps
		return withError(resp, err)

	case StrategyOCR:
		if e.OCR == nil {
			return withError(resp, ocr.ErrUnavailable)
		}
		ps, err := extractor.New(e.OCR, e.MinTokens).Extract(ctx, req.PDF, req.Options.ForceOCR)
		resp.Pages = &ps
		if err != nil {
			return withError(resp, err)
		}
		doc := e.document(ps, req.Options)
		a, err := parser.Run(parser.Generic{Bias: parser.BiasText}, doc)
		a.Strategy = StrategyOCR
		resp.Attempt, resp.Meta = a, &doc.Meta
		return withError(resp, err)
	}

	if req.Document == nil {
		return withError(resp, fmt.Errorf("strategy %s needs a document", req.Strategy))
	}
	p, err := e.parserFor(req.Strategy)
	if err != nil {
		return withError(resp, err)
	}
	a, err := parser.Run(p, *req.Document)
	resp.Attempt = a
	return withError(resp, err)
}

// parserFor resolves a strategy name to its parser.
func (e *Engine) parserFor(strategy string) (parser.Parser, error) {
	switch strategy {
	case parser.Generic{Bias: parser.BiasTable}.Strategy():
		return parser.Generic{Bias: parser.BiasTable}, nil
	case parser.Generic{Bias: parser.BiasText}.Strategy():
		return parser.Generic{Bias: parser.BiasText}, nil
	}
	name, ok := strings.CutPrefix(strategy, "issuer/")
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", strategy)
	}
	tag, ok := parser.LookupTag(name)
	if !ok {
		return nil, fmt.Errorf("unknown issuer %q", name)
	}
	p, ok := e.Registry.Get(tag)
	if !ok {
		return nil, fmt.Errorf("issuer %s is not registered", tag)
	}
	return p, nil
}

func withError(resp sandbox.Response, err error) sandbox.Response {
	if err == nil {
		return resp
	}
	resp.Error = err.Error()
	switch {
	case errors.Is(err, extractor.ErrUnreadablePDF):
		resp.ErrorKind = kindUnreadable
	case errors.Is(err, extractor.ErrEmptyText):
		resp.ErrorKind = kindEmptyText
	case errors.Is(err, ocr.ErrUnavailable):
		resp.ErrorKind = kindUnavailable
	default:
		resp.ErrorKind = kindFailed
	}
	return resp
}

// remoteError is a worker's error as the caller sees it: the worker's
// message, matching the sentinel it started from.
type remoteError struct {
	msg  string
	kind error
}

func (r remoteError) Error() string { return r.msg }
func (r remoteError) Unwrap() error { return r.kind }

func responseError(resp sandbox.Response) error {
	if resp.Error == "" {
		return nil
	}
	err := remoteError{msg: resp.Error}
	switch resp.ErrorKind {
	case kindUnreadable:
		err.kind = extractor.ErrUnreadablePDF
	case kindEmptyText:
		err.kind = extractor.ErrEmptyText
	case kindUnavailable:
		err.kind = ocr.ErrUnavailable
	}
	return err
}
