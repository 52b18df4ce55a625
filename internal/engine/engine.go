// Package engine extracts the transactions of a statement by running an
// ordered chain of strategies, each under supervision and inside its own
// slice of the time budget, and keeping the best scoring reading.
package engine

import (
	"context"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/extractor"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/issuer"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/logger"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/metrics"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/parser"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/sandbox"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/statement"
)

// DefaultEarlyExitMedian is the median line score at which a clean issuer
// reading ends the chain.
const DefaultEarlyExitMedian = 9

var tracer = otel.Tracer("github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/engine")

// TextLayer reads the positional text of a PDF.
type TextLayer interface {
	Extract(ctx context.Context, data []byte, forceOCR bool) (models.PageSet, error)
}

// Engine holds the collaborators of an extraction. It keeps no state
// between calls and is safe for concurrent use.
type Engine struct {
	// Text reads the text layer. It is run without OCR; OCR is a strategy
	// of its own.
	Text TextLayer
	// OCR recognises page images. Nil disables the OCR strategy.
	OCR       extractor.OCR
	MinTokens int

	Classifier *issuer.Classifier
	Registry   *parser.Registry
	// Runner supervises each step. The default runs in-process.
	Runner  sandbox.Runner
	Metrics *metrics.Metrics

	IssuerFloor     float64
	EarlyExitMedian float64
	// Workers bounds ExtractAll; zero means one per CPU.
	Workers int
}

// New returns an engine with the built-in issuers, the default text layer
// and an in-process runner.
func New(ocr extractor.OCR) *Engine {
	e := &Engine{
		Text:            extractor.New(nil, extractor.DefaultMinTokens),
		OCR:             ocr,
		MinTokens:       extractor.DefaultMinTokens,
		Classifier:      issuer.Default(),
		Registry:        parser.Default(),
		IssuerFloor:     issuer.DefaultFloor,
		EarlyExitMedian: DefaultEarlyExitMedian,
	}
	e.Runner = sandbox.InProcess{Handler: e.Handle}
	return e
}

// Extract reads the transactions of one PDF. Problems with the input never
// come back as errors: an unreadable or empty document gives status empty
// and a running out of budget gives partial, with diagnostics saying why.
func (e *Engine) Extract(ctx context.Context, pdf []byte, opts models.Options) models.Result {
	opts = opts.WithDefaults()
	started := time.Now()
	runID := uuid.NewString()

	log := logger.WithFields(logger.FromContext(ctx), map[string]interface{}{"run_id": runID})
	ctx = logger.WithContext(ctx, log)
	ctx, span := tracer.Start(ctx, "engine.Extract", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.Int("pdf_bytes", len(pdf)),
		attribute.Bool("force_ocr", opts.ForceOCR),
	))
	defer span.End()

	budget, cancel := context.WithTimeout(ctx, opts.Budget)
	defer cancel()

	r := &run{engine: e, opts: opts, id: runID}
	res := r.execute(budget, pdf)
	res.Diagnostics.RunID = runID
	res.Diagnostics.Elapsed = time.Since(started).Round(time.Millisecond).String()

	e.Metrics.Extraction(string(res.Status))
	if res.Diagnostics.Integrity == models.IntegritySuspect {
		log.Warn().Strs("notes", res.Diagnostics.Notes).Msg("balance integrity suspect")
	}
	span.SetAttributes(
		attribute.String("status", string(res.Status)),
		attribute.String("strategy", res.Diagnostics.Strategy),
		attribute.Int("transactions", len(res.Transactions)),
	)
	log.Info().
		Str("status", string(res.Status)).
		Str("strategy", res.Diagnostics.Strategy).
		Int("transactions", len(res.Transactions)).
		Str("integrity", string(res.Diagnostics.Integrity)).
		Str("elapsed", res.Diagnostics.Elapsed).
		Msg("extraction finished")
	return res
}

// ExtractAll extracts several PDFs in parallel, one worker per CPU unless
// Workers says otherwise. Results are in input order.
func (e *Engine) ExtractAll(ctx context.Context, pdfs [][]byte, opts models.Options) []models.Result {
	workers := e.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	results := make([]models.Result, len(pdfs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, pdf := range pdfs {
		g.Go(func() error {
			results[i] = e.Extract(ctx, pdf, opts)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// document classifies and inspects a page set. A forced issuer wins over
// the classifier and its settings steer inspection.
func (e *Engine) document(ps models.PageSet, opts models.Options) parser.Document {
	var first string
	if len(ps.Pages) > 0 {
		first = ps.Pages[0].Text()
	}
	cls := e.Classifier.Classify(first, ps.Metadata)
	hints := statement.Hints{Issuer: cls.Issuer, Confidence: cls.Confidence, Locale: opts.ExpectedLocale}
	if opts.Issuer != "" {
		hints.Issuer, hints.Confidence = opts.Issuer, 1
	}
	if p, ok := e.Registry.Get(hints.Issuer); ok {
		if is, ok := p.(*parser.Issuer); ok {
			hints = is.Spec().Hints(hints.Confidence)
			if opts.ExpectedLocale != "" {
				hints.Locale = opts.ExpectedLocale
			}
		}
	}
	return parser.Document{Pages: ps.Pages, Meta: statement.Inspect(ps, hints)}
}
