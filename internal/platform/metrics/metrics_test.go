package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPayrollRunCounters(t *testing.T) {
	c := New()
	c.PayrollRun("completed", 12)
	c.PayrollRun("completed", 3)
	c.PayrollRun("failed", 0)

	if got := testutil.ToFloat64(c.payrollRuns.WithLabelValues("completed")); got != 2 {
		t.Fatalf("expected 2 completed runs, got %v", got)
	}
	if got := testutil.ToFloat64(c.staffProcessed); got != 15 {
		t.Fatalf("expected 15 staff processed, got %v", got)
	}
}

func TestRecordCountsRateLimited(t *testing.T) {
	c := New()
	c.Record(http.MethodPost, "/api/v1/payroll/deductions/calculate", http.StatusTooManyRequests, 2*time.Millisecond)
	c.Record(http.MethodPost, "/api/v1/payroll/deductions/calculate", http.StatusOK, 2*time.Millisecond)

	if got := testutil.ToFloat64(c.rateLimited); got != 1 {
		t.Fatalf("expected 1 rate limited request, got %v", got)
	}

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "bursar_http_requests_total") {
		t.Fatal("expected request counter in exposition")
	}
}
