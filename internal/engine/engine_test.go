package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/extractor"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/extractor/pdftest"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/metrics"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/parser"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/sandbox"
)

const sunTrustJanuary = `SunTrust Bank
Account Statement
Statement Period 01/01/2023 - 01/31/2023
Beginning Balance $1,000.00
Total Deposits/Credits $4,625.50
Total Withdrawals/Debits $726.93
Ending Balance $4,898.57
Deposits/Credits
01/03 PAYROLL ACME CORP 2,150.00
01/17 PAYROLL ACME CORP 2,150.00
01/20 MOBILE DEPOSIT 325.50
Withdrawals/Debits
01/05 ELECTRIC COMPANY 142.37
01/09 CHECK 1045 250.00
01/12 GROCERY OUTLET 87.56
01/18 ATM WITHDRAWAL 100.00
01/24 CABLE SERVICE 79.99
01/27 GAS STATION 67.01`

// scannedMarch is what OCR reads off the image-only dummy statement:
// 21 rows, credits 1,876.28, debits 1,289.57, closing 586.71.
const scannedMarch = `DUMMY BANK
Account Statement
Statement Period 03/01/2024 - 03/31/2024
Opening Balance 0.00
03/01/2024 PAYROLL DEPOSIT 650.00 650.00
03/02/2024 GROCERY STORE -45.20 604.80
03/03/2024 ELECTRIC BILL -120.00 484.80
03/04/2024 PHONE BILL -89.99 394.81
03/05/2024 COFFEE SHOP -15.75 379.06
03/06/2024 GAS STATION -60.00 319.06
03/07/2024 RENT PAYMENT -250.00 69.06
03/08/2024 REFUND ONLINE STORE 76.28 145.34
03/09/2024 RESTAURANT -33.40 111.94
03/10/2024 STREAMING SERVICE -12.99 98.95
03/11/2024 TRANSFER FROM SAVINGS 300.00 398.95
03/12/2024 PHARMACY -98.76 300.19
03/13/2024 CAR INSURANCE -140.00 160.19
03/15/2024 PAYROLL DEPOSIT 650.00 810.19
03/16/2024 BOOK STORE -25.50 784.69
03/18/2024 HARDWARE STORE -71.23 713.46
03/20/2024 INTERNET SERVICE -64.10 649.36
03/22/2024 CLOTHING STORE -38.65 610.71
03/24/2024 ATM WITHDRAWAL -100.00 510.71
03/26/2024 MOBILE DEPOSIT 200.00 710.71
03/28/2024 WATER UTILITY -124.00 586.71
Total Credits 1,876.28
Total Debits 1,289.57
Closing Balance 586.71`

var (
	pdfSunTrust = []byte("%PDF-1.4 suntrust")
	pdfMetro    = []byte("%PDF-1.4 metro")
	pdfScanned  = []byte("%PDF-1.4 scanned")
)

func metroJanuary() string {
	return "Metro Bank PLC\nStatement period: 01/01/2024 to 31/01/2024\nOpening balance   £1,260.55\n" + columns(
		[]string{"Date", "Description", "Money out", "Money in", "Balance"},
		[]string{"15/01/2024", "CARD PAYMENT TESCO", "25.99", "", "1,234.56"},
		[]string{"16/01/2024", "DIRECT DEBIT SKY", "45.00", "", "1,189.56"},
		[]string{"17/01/2024", "BANK CREDIT SALARY", "", "2,500.00", "3,689.56"},
		[]string{"18/01/2024", "CARD PAYMENT AMAZON UK", "15.49", "", "3,674.07"},
	)
}

func columns(rows ...[]string) string {
	widths := []int{12, 25, 13, 13}
	var lines []string
	for _, cells := range rows {
		var sb strings.Builder
		for i, c := range cells {
			if i < len(widths) && i < len(cells)-1 {
				fmt.Fprintf(&sb, "%-*s", widths[i], c)
				continue
			}
			sb.WriteString(c)
		}
		lines = append(lines, strings.TrimRight(sb.String(), " "))
	}
	return strings.Join(lines, "\n")
}

// fakeText serves page text by PDF bytes. Unknown documents have no text.
type fakeText map[string]string

func (f fakeText) Extract(ctx context.Context, data []byte, forceOCR bool) (models.PageSet, error) {
	text, ok := f[string(data)]
	if !ok {
		return models.PageSet{}, extractor.ErrEmptyText
	}
	var ps models.PageSet
	for i, p := range strings.Split(text, "\f") {
		ps.Pages = append(ps.Pages, extractor.PageFromText(i+1, p))
	}
	return ps, nil
}

type fakeOCR struct {
	text string
}

func (f fakeOCR) RecognizePages(ctx context.Context, pdf []byte, pages []int) (map[int]string, error) {
	return map[int]string{1: f.text}, nil
}

func testEngine() *Engine {
	e := New(fakeOCR{text: scannedMarch})
	e.Text = fakeText{
		string(pdfSunTrust): sunTrustJanuary,
		string(pdfMetro):    metroJanuary(),
	}
	return e
}

// The test binary doubles as the strategy worker.
func TestMain(m *testing.M) {
	if len(os.Args) > 1 && os.Args[1] == sandbox.WorkerArg {
		if err := sandbox.Serve(context.Background(), os.Stdin, os.Stdout, testEngine().Handle); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func sum(txns []models.Transaction, positive bool) string {
	total := decimal.Zero
	for _, t := range txns {
		if t.Amount.IsPositive() == positive {
			total = total.Add(t.Amount)
		}
	}
	return total.StringFixed(2)
}

func TestExtractSunTrust(t *testing.T) {
	res := testEngine().Extract(context.Background(), pdfSunTrust, models.Options{})

	assert.Equal(t, models.StatusOK, res.Status)
	require.Len(t, res.Transactions, 9)
	total := decimal.Zero
	for _, txn := range res.Transactions {
		total = total.Add(txn.Amount)
	}
	assert.Equal(t, "3898.57", total.StringFixed(2))
	assert.Equal(t, models.IssuerSunTrust, res.Meta.Issuer)
	assert.Equal(t, "issuer/suntrust", res.Diagnostics.Strategy)
	assert.Equal(t, []string{"issuer/suntrust", "generic-table", "generic-text"}, res.Diagnostics.StrategyTried)
	assert.Equal(t, models.IntegrityOK, res.Diagnostics.Integrity)
	assert.NotEmpty(t, res.Diagnostics.RunID)
	assert.Nil(t, res.Debug)
}

func TestExtractEarlyExit(t *testing.T) {
	res := testEngine().Extract(context.Background(), pdfMetro, models.Options{Debug: true})

	assert.Equal(t, models.StatusOK, res.Status)
	require.Len(t, res.Transactions, 4)
	assert.Equal(t, []string{"issuer/metro"}, res.Diagnostics.StrategyTried)
	assert.Zero(t, res.Diagnostics.BalanceChainBreaks)
	assert.Equal(t, "3674.07", res.Transactions[3].Balance.Decimal.StringFixed(2))
	assert.NotEmpty(t, res.Debug)
}

func TestExtractScanned(t *testing.T) {
	res := testEngine().Extract(context.Background(), pdfScanned, models.Options{})

	assert.Equal(t, models.StatusOK, res.Status)
	require.Len(t, res.Transactions, 21)
	assert.Equal(t, "1876.28", sum(res.Transactions, true))
	assert.Equal(t, "-1289.57", sum(res.Transactions, false))
	assert.Equal(t, "586.71", res.Meta.ClosingBalance.Decimal.StringFixed(2))
	assert.True(t, res.Meta.IsScanned)
	assert.Equal(t, StrategyOCR, res.Diagnostics.Strategy)
	assert.Equal(t, []string{StrategyOCR}, res.Diagnostics.StrategyTried)
	assert.Equal(t, models.IntegrityOK, res.Diagnostics.Integrity)
	assert.Equal(t, "PAYROLL DEPOSIT", res.Transactions[0].Description)
}

func TestExtractForceOCR(t *testing.T) {
	e := testEngine()
	e.OCR = fakeOCR{text: sunTrustJanuary}
	text := e.Extract(context.Background(), pdfSunTrust, models.Options{})
	forced := e.Extract(context.Background(), pdfSunTrust, models.Options{ForceOCR: true})

	assert.Equal(t, []string{StrategyOCR}, forced.Diagnostics.StrategyTried)
	assert.Equal(t, len(text.Transactions), len(forced.Transactions))
	assert.Equal(t, sum(text.Transactions, false), sum(forced.Transactions, false))
}

// recordingOCR remembers which pages it was asked to read.
type recordingOCR struct {
	texts map[int]string
	asked [][]int
}

func (r *recordingOCR) RecognizePages(ctx context.Context, pdf []byte, pages []int) (map[int]string, error) {
	r.asked = append(r.asked, pages)
	out := map[int]string{}
	for _, p := range pages {
		if text, ok := r.texts[p]; ok {
			out[p] = text
		}
	}
	return out, nil
}

func TestOCRStrategyReadsOnlyThinPages(t *testing.T) {
	mixed := pdftest.Build(
		pdftest.Page{Text: pdftest.Lines(strings.Split(sunTrustJanuary, "\n")...)},
		pdftest.Page{},
	)
	tests := []struct {
		name       string
		forceOCR   bool
		wantAsked  []int
		wantSource string
	}{
		{name: "thin page only", wantAsked: []int{2}, wantSource: extractor.SourceLibrary},
		{name: "forced", forceOCR: true, wantAsked: []int{1, 2}, wantSource: extractor.SourceOCR},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingOCR{texts: map[int]string{
				1: sunTrustJanuary,
				2: "01/30 MONTHLY SERVICE FEE 12.00",
			}}
			e := testEngine()
			e.OCR = rec
			resp := e.Handle(context.Background(), sandbox.Request{
				Strategy: StrategyOCR,
				PDF:      mixed,
				Options:  models.Options{ForceOCR: tt.forceOCR},
			})

			assert.Equal(t, [][]int{tt.wantAsked}, rec.asked)
			require.NotNil(t, resp.Pages)
			require.Len(t, resp.Pages.Pages, 2)
			first := resp.Pages.Pages[0]
			assert.Equal(t, tt.wantSource, first.Source)
			assert.Equal(t, tt.forceOCR, first.IsScanned)
			assert.Contains(t, first.Text(), "PAYROLL ACME CORP")
			assert.Equal(t, extractor.SourceOCR, resp.Pages.Pages[1].Source)
			assert.Contains(t, resp.Pages.Pages[1].Text(), "MONTHLY SERVICE FEE")
			assert.Equal(t, StrategyOCR, resp.Attempt.Strategy)
		})
	}
}

func TestExtractIsRepeatable(t *testing.T) {
	e := testEngine()
	first := e.Extract(context.Background(), pdfSunTrust, models.Options{})
	second := e.Extract(context.Background(), pdfSunTrust, models.Options{})
	assert.Equal(t, first.Transactions, second.Transactions)
	assert.NotEqual(t, first.Diagnostics.RunID, second.Diagnostics.RunID)
}

func TestExtractUnreadable(t *testing.T) {
	tests := []struct {
		name string
		pdf  []byte
		ocr  bool
		note string
	}{
		{name: "not a PDF", pdf: []byte("hello"), ocr: true, note: "unreadable PDF"},
		{name: "no text and no OCR", pdf: []byte("%PDF-1.4 blank"), note: "OCR is not configured"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := testEngine()
			if !tt.ocr {
				e.OCR = nil
			}
			res := e.Extract(context.Background(), tt.pdf, models.Options{})
			assert.Equal(t, models.StatusEmpty, res.Status)
			assert.Equal(t, 3, res.Status.ExitCode())
			assert.NotNil(t, res.Transactions)
			assert.Empty(t, res.Transactions)
			assert.Contains(t, strings.Join(res.Diagnostics.Notes, "\n"), tt.note)
		})
	}
}

// slowRunner never finishes the named strategy.
type slowRunner struct {
	inner sandbox.Runner
	slow  string
}

func (s slowRunner) Run(ctx context.Context, req sandbox.Request) (sandbox.Response, error) {
	if req.Strategy != s.slow {
		return s.inner.Run(ctx, req)
	}
	<-ctx.Done()
	return sandbox.Response{}, fmt.Errorf("%w: %s", sandbox.ErrStrategyTimeout, req.Strategy)
}

func TestStrategyTimeoutFallsThrough(t *testing.T) {
	e := testEngine()
	e.Runner = slowRunner{inner: e.Runner, slow: "issuer/suntrust"}
	res := e.Extract(context.Background(), pdfSunTrust, models.Options{Budget: 2 * time.Second})

	assert.Equal(t, models.StatusOK, res.Status, "one timed out strategy does not make the result partial")
	assert.Len(t, res.Transactions, 9)
	assert.Equal(t, "generic-table", res.Diagnostics.Strategy)
	assert.Contains(t, strings.Join(res.Diagnostics.Notes, "\n"), "issuer/suntrust timed out")
}

func TestBudgetExhaustedIsPartial(t *testing.T) {
	e := testEngine()
	e.OCR = nil
	e.Runner = slowRunner{inner: e.Runner, slow: "generic-text"}
	started := time.Now()
	res := e.Extract(context.Background(), pdfSunTrust, models.Options{Budget: time.Second})

	assert.Less(t, time.Since(started), 5*time.Second)
	assert.Equal(t, models.StatusPartial, res.Status)
	assert.Equal(t, 2, res.Status.ExitCode())
	assert.Len(t, res.Transactions, 9)
	assert.Contains(t, strings.Join(res.Diagnostics.Notes, "\n"), "budget of 1s exhausted")
}

func TestExtractInWorkerProcess(t *testing.T) {
	e := testEngine()
	e.Runner = &sandbox.Process{Path: os.Args[0]}
	reg := prometheus.NewRegistry()
	e.Metrics = metrics.New(reg)

	res := e.Extract(context.Background(), pdfSunTrust, models.Options{})
	inProcess := testEngine().Extract(context.Background(), pdfSunTrust, models.Options{})

	assert.Equal(t, models.StatusOK, res.Status)
	assert.Equal(t, inProcess.Transactions, res.Transactions)
	n, err := testutil.GatherAndCount(reg, "statement_extractions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestExtractAll(t *testing.T) {
	e := testEngine()
	e.Workers = 2
	results := e.ExtractAll(context.Background(), [][]byte{pdfSunTrust, pdfMetro, []byte("hello")}, models.Options{})

	require.Len(t, results, 3)
	assert.Len(t, results[0].Transactions, 9)
	assert.Len(t, results[1].Transactions, 4)
	assert.Equal(t, models.StatusEmpty, results[2].Status)
}

func TestScore(t *testing.T) {
	row := func(line int, amount, balance string, score float64) models.Row {
		return models.Row{
			Transaction: models.Transaction{
				Date:      time.Date(2024, time.March, line, 0, 0, 0, 0, time.UTC),
				Amount:    decimal.RequireFromString(amount),
				Balance:   decimal.NewNullDecimal(decimal.RequireFromString(balance)),
				SourceRow: models.SourceRow(1, line),
			},
			Score: score,
		}
	}
	a := models.Attempt{
		Rows: []models.Row{
			row(2, "-5.00", "90.00", 8),
			row(1, "-5.00", "95.00", 9),
			row(3, "-5.00", "80.00", 8),
		},
		Rejected: 1,
	}
	score, breaks := Score(a, decimal.NewNullDecimal(decimal.RequireFromString("100.00")))
	assert.Equal(t, 1, breaks)
	// 25 for the lines, two verified links, one rejected line.
	assert.Equal(t, float64(25+2*chainWeight-rejectedWeight), score)
}

func TestHandleUnknownStrategy(t *testing.T) {
	resp := testEngine().Handle(context.Background(), sandbox.Request{Strategy: "issuer/nobank", Document: &parser.Document{}})
	assert.Contains(t, resp.Error, "unknown issuer")
	assert.Equal(t, kindFailed, resp.ErrorKind)
	assert.Nil(t, responseError(sandbox.Response{}))
	assert.True(t, errors.Is(responseError(sandbox.Response{Error: "x", ErrorKind: kindEmptyText}), extractor.ErrEmptyText))
}
