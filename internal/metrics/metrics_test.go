package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Extraction("ok")
	m.Attempt("generic-text", "ok", time.Second)
	m.OCRPage("ok")
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Extraction("ok")
	m.Extraction("ok")
	m.Attempt("issuer/westpac", "ok", 20*time.Millisecond)
	m.OCRPage("failed")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.extractions.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attempts.WithLabelValues("issuer/westpac", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ocrPages.WithLabelValues("failed")))
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg).Extraction("empty")

	path := filepath.Join(t.TempDir(), "statement.prom")
	require.NoError(t, WriteTextfile(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `statement_extractions_total{status="empty"} 1`))
}
