package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/lumen/internal/audit"
	"github.com/raysh454/lumen/internal/contrast"
	"github.com/raysh454/lumen/internal/report"
	"github.com/raysh454/lumen/internal/scanner"
)

func sampleReport() *report.Report {
	t0 := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	return report.Aggregate("run-1", t0, t0.Add(90*time.Second), []audit.PageResult{
		{
			Name: "home", Status: audit.PageAudited,
			Violations:         []scanner.Violation{{ID: "color-contrast"}, {ID: "label"}},
			ContrastViolations: []scanner.Violation{{ID: "color-contrast"}},
			Checks: []contrast.Check{
				{Selector: "h1", Passes: true},
				{Selector: "p"},
			},
		},
		{Name: "down", Status: audit.PageNavigationFailed},
	})
}

func TestRecorder_Observe(t *testing.T) {
	r := NewRecorder()
	r.Observe(sampleReport())

	assert.Equal(t, 2.0, promtest.ToFloat64(r.pages))
	assert.Equal(t, 1.0, promtest.ToFloat64(r.pagesFailed))
	assert.Equal(t, 2.0, promtest.ToFloat64(r.violations.WithLabelValues("home")))
	assert.Equal(t, 1.0, promtest.ToFloat64(r.contrastViolations.WithLabelValues("home")))
	assert.Equal(t, 1.0, promtest.ToFloat64(r.checks.WithLabelValues("home", "fail")))
	assert.Equal(t, 90.0, promtest.ToFloat64(r.runDuration))

	// A second run without "down" drops its series.
	rep := sampleReport()
	rep.Pages = rep.Pages[:1]
	r.Observe(rep)
	assert.Equal(t, 1, promtest.CollectAndCount(r.violations))
	assert.Equal(t, 2.0, promtest.ToFloat64(r.runsRecorded))
}

func TestRecorder_PersistWritesTextfile(t *testing.T) {
	r := NewRecorder()
	r.Textfile = filepath.Join(t.TempDir(), "out", TextfileName)
	require.NoError(t, r.Persist(context.Background(), sampleReport()))

	data, err := os.ReadFile(r.Textfile)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `a11y_audit_violations{page="home"} 2`)
	assert.Contains(t, out, `a11y_audit_contrast_checks{page="home",result="pass"} 1`)
	assert.Contains(t, out, "a11y_audit_pages_failed 1")
}

func TestRecorder_PersistNil(t *testing.T) {
	assert.ErrorIs(t, NewRecorder().Persist(context.Background(), nil), report.ErrPersistence)
}

func TestMiddlewareAndHandler(t *testing.T) {
	r := NewRecorder()
	m := NewHTTPMetrics(r.Registry)
	r.Observe(sampleReport())

	mux := http.NewServeMux()
	mux.HandleFunc("/runs/", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) })
	mux.Handle("/metrics", r.Handler())
	srv := httptest.NewServer(m.Middleware(mux))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/runs/0b2c6f1e-8a33-4c8e-9d51-0a9f4f1c2e77")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.True(t, strings.Contains(string(body), `a11y_audit_http_requests_total{method="GET",path="/runs/{id}",status_code="404"} 1`), string(body))
	assert.Contains(t, string(body), "a11y_audit_pages 2")
}
