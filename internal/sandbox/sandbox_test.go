package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
)

// The test binary doubles as the worker.
func TestMain(m *testing.M) {
	if len(os.Args) > 1 && os.Args[1] == WorkerArg {
		if err := Serve(context.Background(), os.Stdin, os.Stdout, testHandler); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func testHandler(ctx context.Context, req Request) Response {
	switch req.Strategy {
	case "sleep":
		time.Sleep(time.Minute)
	case "crash":
		os.Exit(3)
	case "panic":
		panic("boom")
	case "tempdir":
		return Response{Attempt: models.Attempt{Strategy: req.Strategy}, Error: os.TempDir()}
	case "fail":
		return Response{Attempt: models.Attempt{Strategy: req.Strategy}, Error: "no text", ErrorKind: "empty"}
	}
	row := models.Row{
		Transaction: models.Transaction{
			Date:        time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC),
			Description: "COFFEE",
			Amount:      decimal.RequireFromString("-3.50"),
			SourceRow:   models.SourceRow(1, 7),
		},
		Score:      9,
		SignSource: models.SignExplicit,
	}
	return Response{Attempt: models.Attempt{Strategy: req.Strategy, Rows: []models.Row{row}, Rejected: len(req.PDF)}}
}

func runners() map[string]Runner {
	return map[string]Runner{
		"process":    &Process{Path: os.Args[0]},
		"in-process": InProcess{Handler: testHandler},
	}
}

func TestRunAnswers(t *testing.T) {
	for name, r := range runners() {
		t.Run(name, func(t *testing.T) {
			resp, err := r.Run(context.Background(), Request{Strategy: "generic-text", PDF: []byte("%PDF-")})
			require.NoError(t, err)
			require.Len(t, resp.Attempt.Rows, 1)
			assert.Equal(t, "generic-text", resp.Attempt.Strategy)
			assert.Equal(t, "-3.50", resp.Attempt.Rows[0].Amount.StringFixed(2))
			assert.Equal(t, "2024-03-04", resp.Attempt.Rows[0].Date.Format(models.DateLayout))
			assert.Equal(t, 5, resp.Attempt.Rejected, "request bytes reach the handler")
		})
	}
}

func TestRunTimeout(t *testing.T) {
	for name, r := range runners() {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
			defer cancel()
			started := time.Now()
			resp, err := r.Run(ctx, Request{Strategy: "sleep"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrStrategyTimeout), err)
			assert.Empty(t, resp.Attempt.Rows)
			assert.Less(t, time.Since(started), 10*time.Second)
		})
	}
}

func TestRunPanicBecomesError(t *testing.T) {
	for name, r := range runners() {
		t.Run(name, func(t *testing.T) {
			resp, err := r.Run(context.Background(), Request{Strategy: "panic"})
			require.NoError(t, err)
			assert.Contains(t, resp.Error, "boom")
			assert.Equal(t, "panic", resp.Attempt.Strategy)
		})
	}
}

func TestProcessCrash(t *testing.T) {
	r := &Process{Path: os.Args[0]}
	_, err := r.Run(context.Background(), Request{Strategy: "crash"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWorkerCrashed), err)
}

func TestProcessScratchDirRemoved(t *testing.T) {
	r := &Process{Path: os.Args[0]}
	resp, err := r.Run(context.Background(), Request{Strategy: "tempdir"})
	require.NoError(t, err)
	dir := resp.Error
	assert.True(t, strings.HasPrefix(filepath.Base(dir), "stmt-worker-"), dir)
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr), "scratch dir %s still exists", dir)
}

func TestServe(t *testing.T) {
	req, err := json.Marshal(Request{Strategy: "fail"})
	require.NoError(t, err)
	var out bytes.Buffer
	require.NoError(t, Serve(context.Background(), bytes.NewReader(req), &out, testHandler))

	var resp Response
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "empty", resp.ErrorKind)
	assert.Equal(t, "no text", resp.Error)

	assert.Error(t, Serve(context.Background(), strings.NewReader("not json"), &out, testHandler))
}
