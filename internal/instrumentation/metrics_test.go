package instrumentation

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsIndependentRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()
	a.RecordScan("success", 0.5)
	if testutil.ToFloat64(a.ScansTotal.WithLabelValues("success")) != 1 {
		t.Fatal("expected one scan recorded")
	}
	if testutil.ToFloat64(b.ScansTotal.WithLabelValues("success")) != 0 {
		t.Fatal("registries must not share state")
	}
}

func TestNilMetricsSafe(t *testing.T) {
	var m *Metrics
	m.RecordScan("success", 1)
	m.RecordOpportunity("margin")
	m.SetBestMargin(2)
	m.RecordAlert()
	m.RecordEvaluation(1, 1)
	m.RecordSourceFailure("x")
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewMetrics()
	m.RecordOpportunity("pairwise")
	m.SetBestMargin(3.6)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `arbscanner_opportunities_total{mode="pairwise"} 1`) {
		t.Fatalf("missing opportunity counter:\n%s", body)
	}
	if !strings.Contains(string(body), "arbscanner_best_margin_pct 3.6") {
		t.Fatalf("missing best margin gauge:\n%s", body)
	}
}
