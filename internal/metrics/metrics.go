// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// auth.MetricsRecorder、payment.MetricsRecorder、
// middleware.StatusRecorderをすべて満たす。
type Collector struct {
	loginSuccess     *prometheus.CounterVec
	loginFail        *prometheus.CounterVec
	paymentsPrepared prometheus.Counter
	paymentsApproved prometheus.Counter
	paymentFail      *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "name2sign_logins_total",
			Help: "ログイン成功の合計数（新規/既存別）",
		}, []string{"kind"}),
		loginFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "name2sign_login_failures_total",
			Help: "ログイン失敗の合計数（段階別）",
		}, []string{"reason"}),
		paymentsPrepared: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "name2sign_payments_prepared_total",
			Help: "決済準備（ready）成功の合計数",
		}),
		paymentsApproved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "name2sign_payments_approved_total",
			Help: "決済承認（approve）成功の合計数",
		}),
		paymentFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "name2sign_payment_failures_total",
			Help: "決済失敗の合計数（段階別）",
		}, []string{"reason"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "name2sign_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFail,
		c.paymentsPrepared,
		c.paymentsApproved,
		c.paymentFail,
		c.httpStatus,
	)

	return c
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess(created bool) {
	kind := "existing"
	if created {
		kind = "new"
	}
	c.loginSuccess.WithLabelValues(kind).Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure(reason string) {
	c.loginFail.WithLabelValues(reason).Inc()
}

// RecordPaymentPrepared は決済準備成功を記録する。
func (c *Collector) RecordPaymentPrepared() {
	c.paymentsPrepared.Inc()
}

// RecordPaymentApproved は決済承認成功を記録する。
func (c *Collector) RecordPaymentApproved() {
	c.paymentsApproved.Inc()
}

// RecordPaymentFailure は決済失敗を記録する。
func (c *Collector) RecordPaymentFailure(reason string) {
	c.paymentFail.WithLabelValues(reason).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// SetupMetricsRoute は/metricsエンドポイントのハンドラーを返す。
func SetupMetricsRoute(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
