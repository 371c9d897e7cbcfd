package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCollector_RecordAndExpose(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLoginSuccess(true)
	c.RecordLoginSuccess(false)
	c.RecordLoginFailure("exchange")
	c.RecordPaymentPrepared()
	c.RecordPaymentApproved()
	c.RecordPaymentFailure("approve")
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(401)

	handler := SetupMetricsRoute(reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	for _, want := range []string{
		`name2sign_logins_total{kind="new"} 1`,
		`name2sign_logins_total{kind="existing"} 1`,
		`name2sign_login_failures_total{reason="exchange"} 1`,
		"name2sign_payments_prepared_total 1",
		"name2sign_payments_approved_total 1",
		`name2sign_payment_failures_total{reason="approve"} 1`,
		`name2sign_http_status_total{status_code="200"} 1`,
		`name2sign_http_status_total{status_code="401"} 1`,
	} {
		if !strings.Contains(bodyStr, want) {
			t.Errorf("metrics output should contain %q", want)
		}
	}
}

func TestSetupMetricsRoute_ReturnsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewCollector(reg)

	if SetupMetricsRoute(reg) == nil {
		t.Fatal("expected non-nil handler")
	}
}
