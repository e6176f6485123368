// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証サービスとHTTPミドルウェアから利用する。
type MetricsCollector interface {
	// RecordLogin はログイン試行の終端状態を記録する。
	RecordLogin(provider, outcome string)
	// RecordLoginLatency はログイン試行の所要時間を記録する。
	RecordLoginLatency(provider string, duration time.Duration)
	// RecordUserCreated は初回ログインによるユーザー作成を記録する。
	RecordUserCreated(provider string)
	// RecordTokenVerification はトークン検証結果（valid, invalid, expired）を記録する。
	RecordTokenVerification(result string)
	// RecordHTTPStatus はHTTPステータスコードを記録する。
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins        *prometheus.CounterVec
	loginLatency  *prometheus.HistogramVec
	usersCreated  *prometheus.CounterVec
	tokenVerified *prometheus.CounterVec
	httpStatus    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "launchboard_login_attempts_total",
			Help: "プロバイダー・終端状態別のログイン試行数",
		}, []string{"provider", "outcome"}),
		loginLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "launchboard_login_duration_seconds",
			Help:    "ログイン試行の所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		usersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "launchboard_users_created_total",
			Help: "初回ログインで作成されたユーザー数",
		}, []string{"provider"}),
		tokenVerified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "launchboard_token_verifications_total",
			Help: "結果別のトークン検証数",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "launchboard_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.logins,
		c.loginLatency,
		c.usersCreated,
		c.tokenVerified,
		c.httpStatus,
	)

	return c
}

// RecordLogin はログイン試行の終端状態を記録する。
func (c *Collector) RecordLogin(provider, outcome string) {
	c.logins.WithLabelValues(provider, outcome).Inc()
}

// RecordLoginLatency はログイン試行の所要時間を記録する。
func (c *Collector) RecordLoginLatency(provider string, duration time.Duration) {
	c.loginLatency.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordUserCreated はユーザー作成を記録する。
func (c *Collector) RecordUserCreated(provider string) {
	c.usersCreated.WithLabelValues(provider).Inc()
}

// RecordTokenVerification はトークン検証結果を記録する。
func (c *Collector) RecordTokenVerification(result string) {
	c.tokenVerified.WithLabelValues(result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordLogin(string, string)               {}
func (Nop) RecordLoginLatency(string, time.Duration) {}
func (Nop) RecordUserCreated(string)                 {}
func (Nop) RecordTokenVerification(string)           {}
func (Nop) RecordHTTPStatus(int)                     {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
