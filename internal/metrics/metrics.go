// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// unmatchedRoute はルーティングされなかったリクエストのrouteラベル。
const unmatchedRoute = "unmatched"

// Collector はPrometheusメトリクスを収集する実装。
// post.Recorder、auth.Recorder、cleanup.Recorderを満たす。
type Collector struct {
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	postWrites     *prometheus.CounterVec
	loginAttempts  *prometheus.CounterVec
	sessionsPurged prometheus.Counter

	reg prometheus.Registerer
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "korvad_http_requests_total",
			Help: "ルート・ステータス別のHTTPリクエスト数",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "korvad_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		postWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "korvad_post_writes_total",
			Help: "記事の作成・更新・削除の結果別件数",
		}, []string{"op", "result"}),
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "korvad_login_attempts_total",
			Help: "管理者ログイン試行の結果別件数",
		}, []string{"result"}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "korvad_sessions_purged_total",
			Help: "削除された期限切れセッションの合計数",
		}),
		reg: reg,
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.postWrites,
		c.loginAttempts,
		c.sessionsPurged,
	)

	return c
}

// LimiterStats はレートリミッターが保持しているエントリ数を返す。
type LimiterStats interface {
	LoginLimiterCount() int
	AdminLimiterCount() int
}

// ObserveRateLimiter はリミッターのエントリ数を
// korvad_rate_limiter_entries{kind="login"|"admin"} として公開する。
// 値はスクレイプのたびに取得する。
func (c *Collector) ObserveRateLimiter(stats LimiterStats) {
	gauge := func(kind string, count func() int) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "korvad_rate_limiter_entries",
			Help:        "レートリミッターが保持しているキー数",
			ConstLabels: prometheus.Labels{"kind": kind},
		}, func() float64 { return float64(count()) })
	}
	c.reg.MustRegister(
		gauge("login", stats.LoginLimiterCount),
		gauge("admin", stats.AdminLimiterCount),
	)
}

// RecordHTTPRequest はHTTPリクエストの処理結果を記録する。
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordPostWrite は記事の書き込み結果を記録する。
func (c *Collector) RecordPostWrite(op string, ok bool) {
	c.postWrites.WithLabelValues(op, result(ok)).Inc()
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(ok bool) {
	c.loginAttempts.WithLabelValues(result(ok)).Inc()
}

// RecordSessionsPurged は削除した期限切れセッション数を記録する。
func (c *Collector) RecordSessionsPurged(count int64) {
	c.sessionsPurged.Add(float64(count))
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// statusWriter はレスポンスのステータスコードを記録する。
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Middleware はリクエスト数と処理時間を記録するミドルウェアを返す。
// routeラベルにはchiのルートパターン（例: /blog/{id}）を使う。
func (c *Collector) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}

			next.ServeHTTP(sw, r)

			route := unmatchedRoute
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			status := sw.status
			if status == 0 {
				status = http.StatusOK
			}
			c.RecordHTTPRequest(r.Method, route, status, time.Since(start))
		})
	}
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
