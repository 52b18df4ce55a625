package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/extractor"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/interpret"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/logger"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/normalize"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/parser"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/sandbox"
)

// Attempt score weights.
const (
	chainWeight    = 5
	rejectedWeight = 2
)

// textLayerShare is the part of the budget the text layer may use: it
// competes with up to four strategies.
const textLayerShare = 5

// Score rates an attempt: the sum of its line scores, plus chainWeight for
// every verified balance link, minus rejectedWeight for every rejected
// line. It also returns the number of chain breaks.
func Score(a models.Attempt, opening decimal.NullDecimal) (float64, int) {
	rows := append([]models.Row(nil), a.Rows...)
	normalize.Sort(rows)
	links, breaks := normalize.Chain(rows, opening)
	total := 0.0
	for _, r := range rows {
		total += r.Score
	}
	total += float64(chainWeight * (links - breaks))
	total -= float64(rejectedWeight * a.Rejected)
	return total, breaks
}

type step struct {
	name   string
	issuer bool
	ocr    bool
}

type candidate struct {
	attempt models.Attempt
	meta    models.StatementMeta
	score   float64
	breaks  int
}

// run is the state of one extraction.
type run struct {
	engine *Engine
	opts   models.Options
	id     string
	pdf    []byte

	diag        models.Diagnostics
	doc         *parser.Document
	best        *candidate
	interrupted bool
}

func (r *run) execute(ctx context.Context, pdf []byte) models.Result {
	log := logger.FromContext(ctx)
	r.pdf = pdf
	if !extractor.LooksLikePDF(pdf) {
		r.diag.Note(fmt.Sprintf("%v: missing %%PDF header", extractor.ErrUnreadablePDF))
		return r.result()
	}

	if !r.opts.ForceOCR {
		r.textLayer(ctx, pdf)
	}
	steps := r.plan()
	for i, s := range steps {
		if ctx.Err() != nil {
			r.stop(ctx, s.name)
			break
		}
		if s.ocr && !r.needOCR() {
			log.Debug().Msg("text strategies found rows, OCR skipped")
			continue
		}
		slice := time.Until(deadline(ctx)) / time.Duration(len(steps)-i)
		c, ok := r.attempt(ctx, s, slice)
		if !ok {
			continue
		}
		if r.best == nil || c.score > r.best.score {
			r.best = c
		}
		if s.issuer && c.breaks == 0 && interpret.Median(c.attempt.Rows) >= r.engine.EarlyExitMedian {
			log.Debug().Str("strategy", s.name).Msg("issuer reading is clean, chain ends early")
			break
		}
	}
	return r.result()
}

// textLayer reads the text layer inside its share of the budget.
func (r *run) textLayer(ctx context.Context, pdf []byte) {
	log := logger.FromContext(ctx)
	slice := time.Until(deadline(ctx)) / textLayerShare
	sctx, cancel := context.WithTimeout(ctx, slice)
	defer cancel()

	resp, err := r.engine.Runner.Run(sctx, sandbox.Request{Strategy: StepTextLayer, PDF: pdf, Options: r.opts, RunID: r.id})
	if err == nil {
		err = responseError(resp)
	}
	if err != nil {
		log.Warn().Err(err).Msg("text layer failed")
		r.diag.Note(fmt.Sprintf("text layer: %v", err))
	}
	if resp.Pages == nil || len(resp.Pages.Pages) == 0 {
		return
	}
	doc := r.engine.document(*resp.Pages, r.opts)
	r.doc = &doc
}

// plan lists the strategies worth trying: the issuer parser when one is
// forced or recognised, the two generic parsers when there is text, and
// OCR when an engine is configured.
func (r *run) plan() []step {
	var steps []step
	if r.doc != nil && hasTokens(r.doc.Pages) {
		if p, ok := r.issuerParser(); ok {
			steps = append(steps, step{name: parser.Strategy(p), issuer: true})
		}
		steps = append(steps,
			step{name: parser.Generic{Bias: parser.BiasTable}.Strategy()},
			step{name: parser.Generic{Bias: parser.BiasText}.Strategy()},
		)
	}
	if r.engine.OCR != nil {
		steps = append(steps, step{name: StrategyOCR, ocr: true})
	} else if r.doc == nil || r.doc.Meta.IsScanned {
		r.diag.Note("OCR is not configured; scanned pages were not read")
	}
	return steps
}

func (r *run) issuerParser() (parser.Parser, bool) {
	if r.opts.Issuer != "" {
		p, ok := r.engine.Registry.Get(r.opts.Issuer)
		if !ok {
			r.diag.Note(fmt.Sprintf("issuer %s is not registered", r.opts.Issuer))
		}
		return p, ok
	}
	p, _, ok := r.engine.Registry.Best(*r.doc, r.engine.IssuerFloor)
	return p, ok
}

// needOCR reports whether the OCR strategy can still add anything.
func (r *run) needOCR() bool {
	return r.opts.ForceOCR || r.doc == nil || r.doc.Meta.IsScanned || r.best == nil
}

// attempt runs one strategy inside its slice and scores what it found.
func (r *run) attempt(ctx context.Context, s step, slice time.Duration) (*candidate, bool) {
	e := r.engine
	log := logger.FromContext(ctx).With().Str("strategy", s.name).Logger()
	ctx, span := tracer.Start(ctx, "engine.strategy", trace.WithAttributes(
		attribute.String("strategy", s.name),
		attribute.Int64("slice_ms", slice.Milliseconds()),
	))
	defer span.End()

	r.diag.StrategyTried = append(r.diag.StrategyTried, s.name)
	req := sandbox.Request{Strategy: s.name, Options: r.opts, RunID: r.id}
	if s.ocr {
		req.PDF = r.pdf
	} else {
		req.Document = r.doc
	}

	// The last step runs on the budget itself, so running out of it is
	// told apart from a slice timeout.
	var sctx context.Context
	var cancel context.CancelFunc
	if time.Until(deadline(ctx)) > slice {
		sctx, cancel = context.WithTimeout(ctx, slice)
	} else {
		sctx, cancel = context.WithCancel(ctx)
	}
	started := time.Now()
	resp, err := e.Runner.Run(sctx, req)
	cancel()
	elapsed := time.Since(started)

	if err != nil {
		outcome := "crashed"
		if errors.Is(err, sandbox.ErrStrategyTimeout) {
			outcome = "timeout"
			if ctx.Err() != nil {
				r.stop(ctx, s.name)
			} else {
				r.diag.Note(fmt.Sprintf("%s timed out after %s", s.name, slice.Round(time.Millisecond)))
			}
		} else {
			r.diag.Note(fmt.Sprintf("%s: %v", s.name, err))
		}
		log.Warn().Err(err).Dur("elapsed", elapsed).Msg("strategy failed")
		span.SetStatus(codes.Error, outcome)
		e.Metrics.Attempt(s.name, outcome, elapsed)
		return nil, false
	}
	if rerr := responseError(resp); rerr != nil {
		log.Warn().Err(rerr).Msg("strategy reported an error")
		r.diag.Note(fmt.Sprintf("%s: %v", s.name, rerr))
		span.RecordError(rerr)
	}

	meta := models.StatementMeta{}
	if r.doc != nil {
		meta = r.doc.Meta
	}
	if resp.Meta != nil {
		meta = *resp.Meta
	}
	a := resp.Attempt
	a.Strategy = s.name
	if len(a.Rows) == 0 {
		log.Debug().Dur("elapsed", elapsed).Int("rejected", a.Rejected).Msg("strategy found no rows")
		e.Metrics.Attempt(s.name, "empty", elapsed)
		if r.best == nil && s.ocr {
			r.emptyMeta(meta)
		}
		return nil, false
	}

	score, breaks := Score(a, meta.OpeningBalance)
	log.Debug().
		Dur("elapsed", elapsed).
		Int("rows", len(a.Rows)).
		Int("rejected", a.Rejected).
		Float64("score", score).
		Int("breaks", breaks).
		Msg("strategy finished")
	span.SetAttributes(attribute.Int("rows", len(a.Rows)), attribute.Float64("score", score))
	e.Metrics.Attempt(s.name, "ok", elapsed)
	return &candidate{attempt: a, meta: meta, score: score, breaks: breaks}, true
}

// emptyMeta keeps the OCR meta for an empty result when the text layer
// gave none.
func (r *run) emptyMeta(meta models.StatementMeta) {
	if r.doc == nil {
		r.doc = &parser.Document{Meta: meta}
	}
}

// stop records that the budget ran out or the caller cancelled.
func (r *run) stop(ctx context.Context, at string) {
	if r.interrupted {
		return
	}
	r.interrupted = true
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		r.diag.Note(fmt.Sprintf("budget of %s exhausted at %s", r.opts.Budget, at))
		return
	}
	r.diag.Note(fmt.Sprintf("cancelled at %s", at))
}

// result normalises the best attempt into the engine's answer.
func (r *run) result() models.Result {
	res := models.Result{Status: models.StatusEmpty, Transactions: []models.Transaction{}}
	if r.doc != nil {
		res.Meta = r.doc.Meta
	}
	if r.best == nil {
		res.Diagnostics = r.diag
		res.Diagnostics.Integrity = models.IntegrityUnverified
		return res
	}

	b := r.best
	rows, rep := normalize.Normalize(b.attempt.Rows, b.meta)
	res.Meta = b.meta
	res.Transactions = normalize.Transactions(rows)
	switch {
	case len(res.Transactions) == 0:
		res.Status = models.StatusEmpty
	case r.interrupted:
		res.Status = models.StatusPartial
	default:
		res.Status = models.StatusOK
	}

	d := r.diag
	d.Strategy = b.attempt.Strategy
	d.Score = int(b.score)
	d.BalanceChainBreaks = rep.Breaks
	d.RejectedRows = b.attempt.Rejected
	d.AmbiguousDates = b.attempt.AmbiguousDates
	d.Integrity = rep.Integrity
	if rep.Duplicates > 0 {
		d.Note(fmt.Sprintf("%d duplicate row(s) dropped", rep.Duplicates))
	}
	d.Notes = append(d.Notes, rep.Notes...)
	res.Diagnostics = d
	if r.opts.Debug {
		res.Debug = b.attempt.Debug
	}
	return res
}

func deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(models.DefaultBudget)
}

func hasTokens(pages []models.Page) bool {
	for _, p := range pages {
		if p.TokenCount() > 0 {
			return true
		}
	}
	return false
}
