package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/amount"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/config"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/engine"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/extractor"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/issuer"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/logger"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/metrics"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/ocr"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/parser"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/sandbox"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/writer"
)

const version = "2.0.0"

// exitError is the exit code for anything that is not an extraction status.
const exitError = 1

func main() {
	if len(os.Args) > 1 && os.Args[1] == sandbox.WorkerArg {
		os.Exit(serveWorker())
	}

	cfg, err := config.Load()
	if err != nil {
		fatalf("Configuration error: %v\n", err)
	}

	// CLI flags
	bankFlag := flag.String("bank", "", "Force an issuer parser, e.g. metro, hsbc, suntrust (auto-detected if omitted)")
	budgetFlag := flag.Duration("budget", cfg.Engine.Budget, "Time budget per statement")
	forceOCRFlag := flag.Bool("force-ocr", false, "OCR every page even when a text layer exists")
	localeFlag := flag.String("locale", "", "Expected locale: US, EU, UK or AU")
	debugFlag := flag.Bool("debug", false, "Include the per-line parser trace in the JSON")
	csvFlag := flag.Bool("csv", false, "Also write <input>.csv in the canonical layout")
	xlsxFlag := flag.Bool("xlsx", false, "Also write <input>.xlsx")
	workersFlag := flag.Int("workers", cfg.Engine.Workers, "Statements extracted in parallel")
	isolationFlag := flag.String("isolation", cfg.Engine.Isolation, "Strategy isolation: process or inprocess")
	metricsFlag := flag.String("metrics-file", "", "Write Prometheus metrics in textfile format to this path")
	logLevelFlag := flag.String("log-level", cfg.Log.Level, "Log level: debug, info, warn, error")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	helpFlag := flag.Bool("help", false, "Show usage help")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Bank Statement Extractor

Reads bank statement PDFs and prints their transactions as JSON, one
document per input line. Scanned statements are read through OCR.

Usage:
  bank-statement-converter [flags] <input.pdf> [input2.pdf ...]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Auto-detect the issuer and print JSON
  bank-statement-converter statement.pdf

  # Force an issuer parser and write a CSV next to the PDF
  bank-statement-converter --bank=hsbc --csv statement.pdf

  # Several statements, four at a time
  bank-statement-converter --workers=4 jan.pdf feb.pdf mar.pdf

Exit codes:
  0  every statement ok
  2  a statement ran out of budget (partial)
  3  a statement gave no transactions (empty)
  1  unexpected error

Environment:
  STMT_* variables, optionally from a .env file, set the defaults above
  and the OCR engine (STMT_OCR_ENGINE=tesseract|http|none).
`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("bank-statement-converter v%s\n", version)
		os.Exit(0)
	}

	if *helpFlag || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}

	cfg.Log.Level = *logLevelFlag
	cfg.Engine.Workers = *workersFlag
	cfg.Engine.Isolation = strings.ToLower(*isolationFlag)
	cfg.Engine.Budget = *budgetFlag
	if err := cfg.Validate(); err != nil {
		fatalf("Invalid flags: %v\n", err)
	}

	opts := models.Options{Budget: cfg.Engine.Budget, ForceOCR: *forceOCRFlag, Debug: *debugFlag}
	if *bankFlag != "" {
		p, err := parser.New(*bankFlag)
		if err != nil {
			fatalf("%v. Supported: %s\n", err, supportedBanks())
		}
		opts.Issuer = p.Tag()
	}
	if *localeFlag != "" {
		locale, ok := parseLocale(*localeFlag)
		if !ok {
			fatalf("Unknown locale %q. Supported: US, EU, UK, AU\n", *localeFlag)
		}
		opts.ExpectedLocale = locale
	}

	log := logger.New(cfg.Log.Level)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	reg := prometheus.NewRegistry()
	e, err := newEngine(cfg, log, metrics.New(reg), false)
	if err != nil {
		fatalf("Engine setup failed: %v\n", err)
	}

	code := run(ctx, e, flag.Args(), opts, outputs{csv: *csvFlag, xlsx: *xlsxFlag})

	if *metricsFlag != "" {
		if err := metrics.WriteTextfile(*metricsFlag, reg); err != nil {
			log.Error().Err(err).Str("path", *metricsFlag).Msg("metrics export failed")
			code = exitError
		}
	}
	stop()
	os.Exit(code)
}

type outputs struct {
	csv  bool
	xlsx bool
}

// run extracts every input and prints one JSON result per line. The exit
// code is the most severe status seen, or exitError when a file could not
// be read or written.
func run(ctx context.Context, e *engine.Engine, paths []string, opts models.Options, out outputs) int {
	log := logger.FromContext(ctx)
	code := 0

	var (
		inputs []string
		pdfs   [][]byte
	)
	for _, path := range paths {
		data, err := readInput(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error processing %s: %v\n", path, err)
			code = exitError
			continue
		}
		inputs = append(inputs, path)
		pdfs = append(pdfs, data)
	}

	results := e.ExtractAll(ctx, pdfs, opts)
	enc := json.NewEncoder(os.Stdout)
	for i, res := range results {
		path := inputs[i]
		if err := enc.Encode(fileResult{File: path, Result: res}); err != nil {
			log.Error().Err(err).Msg("failed to write result")
			return exitError
		}
		summarize(log, path, res)

		if err := writeExports(path, res.Transactions, out); err != nil {
			fmt.Fprintf(os.Stderr, "Error processing %s: %v\n", path, err)
			code = exitError
			continue
		}
		if code != exitError && res.Status.ExitCode() > code {
			code = res.Status.ExitCode()
		}
	}
	return code
}

// fileResult is the JSON line printed per input.
type fileResult struct {
	File string `json:"file"`
	models.Result
}

func readInput(path string) ([]byte, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("input file not found: %s", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".pdf" {
		return nil, fmt.Errorf("expected .pdf file, got %q", ext)
	}

	return os.ReadFile(path)
}

func writeExports(path string, txns []models.Transaction, out outputs) error {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	if out.csv {
		if err := (&writer.CSVWriter{}).WriteToFile(base+".csv", txns); err != nil {
			return fmt.Errorf("CSV write failed: %w", err)
		}
	}
	if out.xlsx {
		if err := (&writer.XLSXWriter{}).WriteToFile(base+".xlsx", txns); err != nil {
			return fmt.Errorf("XLSX write failed: %w", err)
		}
	}
	return nil
}

// summarize logs a human-readable line per statement on stderr.
func summarize(log zerolog.Logger, path string, res models.Result) {
	ev := log.Info().
		Str("file", path).
		Str("status", string(res.Status)).
		Str("issuer", string(res.Meta.Issuer)).
		Int("transactions", len(res.Transactions))
	if res.Meta.OpeningBalance.Valid {
		ev = ev.Str("opening", amount.Format(res.Meta.OpeningBalance.Decimal, res.Meta.PrimaryCurrency))
	}
	if res.Meta.ClosingBalance.Valid {
		ev = ev.Str("closing", amount.Format(res.Meta.ClosingBalance.Decimal, res.Meta.PrimaryCurrency))
	}
	ev.Msg("statement processed")

	if len(res.Transactions) == 0 {
		log.Warn().Str("file", path).Strs("notes", res.Diagnostics.Notes).
			Msg("no transactions found; try --bank if the issuer was not recognised")
	}
}

// serveWorker answers one strategy request on stdin. The parent process
// starts it through the sandbox and reads the response from stdout.
func serveWorker() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return exitError
	}
	log := logger.NewWithWriter(os.Stderr, cfg.Log.Level)
	e, err := newEngine(cfg, log, nil, true)
	if err != nil {
		log.Error().Err(err).Msg("engine setup failed")
		return exitError
	}
	ctx := logger.WithContext(context.Background(), log)
	if err := sandbox.Serve(ctx, os.Stdin, os.Stdout, e.Handle); err != nil {
		log.Error().Err(err).Msg("worker failed")
		return exitError
	}
	return 0
}

// newEngine wires the engine from configuration. Inside a worker every
// step runs in-process: the worker already is the sandbox.
func newEngine(cfg *config.Config, log zerolog.Logger, m *metrics.Metrics, worker bool) (*engine.Engine, error) {
	e := engine.New(newOCR(cfg.OCR, log, m))
	e.Text = extractor.New(nil, cfg.Engine.ScannedMinTokens)
	e.MinTokens = cfg.Engine.ScannedMinTokens
	e.Classifier = issuer.New(issuer.Profiles, cfg.Engine.IssuerFloor)
	e.IssuerFloor = cfg.Engine.IssuerFloor
	e.EarlyExitMedian = cfg.Engine.EarlyExitMedian
	e.Workers = cfg.Engine.Workers
	e.Metrics = m

	if worker || cfg.Engine.Isolation == config.IsolationInProcess {
		return e, nil
	}
	p, err := sandbox.NewProcess()
	if err != nil {
		return nil, err
	}
	p.Env = []string{"STMT_LOG_LEVEL=" + cfg.Log.Level}
	e.Runner = p
	return e, nil
}

// newOCR builds the OCR pipeline, or returns nil when OCR is switched off
// or its tools are missing.
func newOCR(cfg config.OCRConfig, log zerolog.Logger, m *metrics.Metrics) extractor.OCR {
	var eng ocr.Engine
	switch cfg.Engine {
	case config.OCRNone:
		return nil
	case config.OCRHTTP:
		eng = ocr.NewHTTPEngine(cfg.URL, cfg.Lang)
	default:
		t := ocr.NewTesseract(cfg.TesseractBin, cfg.Lang)
		if !t.Available() {
			log.Warn().Str("bin", cfg.TesseractBin).Msg("tesseract not found, OCR disabled")
			return nil
		}
		t.DPI = cfg.DPI
		eng = t
	}

	var r ocr.Rasterizer = ocr.Fitz{}
	if cfg.Rasterizer == config.RasterPdftoppm {
		p := ocr.Pdftoppm{}
		if !p.Available() {
			log.Warn().Msg("pdftoppm not found, OCR disabled")
			return nil
		}
		r = p
	}

	pipe := ocr.NewPipeline(r, eng)
	pipe.DPI = cfg.DPI
	pipe.Enhance = cfg.Enhance
	pipe.Metrics = m
	return pipe
}

func parseLocale(s string) (models.Locale, bool) {
	switch l := models.Locale(strings.ToUpper(s)); l {
	case models.LocaleUS, models.LocaleEU, models.LocaleUK, models.LocaleAU:
		return l, true
	}
	return "", false
}

func supportedBanks() string {
	var names []string
	for _, s := range parser.Specs {
		names = append(names, strings.ToLower(string(s.Tag)))
	}
	return strings.Join(names, ", ")
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(exitError)
}
