// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 予約拒否の理由ラベル
const (
	RejectPast      = "past"
	RejectTooFar    = "too_far"
	RejectFull      = "full"
	RejectDuplicate = "duplicate"
)

// Recorder はメトリクス収集のインターフェース。
// サービス層、ワーカー、ミドルウェアから利用する。
type Recorder interface {
	RecordBookingCreated()
	RecordBookingRejected(reason string)
	RecordStatusChange(status string)
	RecordRequestSubmitted()
	RecordMailFailure(kind string)
	RecordHTTPStatus(statusCode int)
	RecordHTTPLatency(duration time.Duration)
	RecordJobRun(job string, err error)
	SetStreamClients(n int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	bookingsCreated  prometheus.Counter
	bookingsRejected *prometheus.CounterVec
	statusChanges    *prometheus.CounterVec
	requests         prometheus.Counter
	mailFailures     *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
	httpLatency      prometheus.Histogram
	jobRuns          *prometheus.CounterVec
	streamClients    prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		bookingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "waterbar_bookings_created_total",
			Help: "作成された予約の合計数",
		}),
		bookingsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "waterbar_bookings_rejected_total",
			Help: "理由別の予約拒否数",
		}, []string{"reason"}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "waterbar_booking_status_changes_total",
			Help: "変更後ステータス別の予約ステータス変更数",
		}, []string{"status"}),
		requests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "waterbar_wellness_requests_total",
			Help: "受け付けたウェルネスリクエストの合計数",
		}),
		mailFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "waterbar_mail_failures_total",
			Help: "種類別のメール送信失敗数",
		}, []string{"kind"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "waterbar_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "waterbar_http_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "waterbar_job_runs_total",
			Help: "ジョブ・結果別のバックグラウンドジョブ実行数",
		}, []string{"job", "result"}),
		streamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "waterbar_stream_clients",
			Help: "接続中の管理画面ストリームクライアント数",
		}),
	}

	reg.MustRegister(
		c.bookingsCreated,
		c.bookingsRejected,
		c.statusChanges,
		c.requests,
		c.mailFailures,
		c.httpStatus,
		c.httpLatency,
		c.jobRuns,
		c.streamClients,
	)

	return c
}

// RecordBookingCreated は予約作成を記録する。
func (c *Collector) RecordBookingCreated() {
	c.bookingsCreated.Inc()
}

// RecordBookingRejected は予約拒否を記録する。
func (c *Collector) RecordBookingRejected(reason string) {
	c.bookingsRejected.WithLabelValues(reason).Inc()
}

// RecordStatusChange は予約ステータス変更を記録する。
func (c *Collector) RecordStatusChange(status string) {
	c.statusChanges.WithLabelValues(status).Inc()
}

// RecordRequestSubmitted はウェルネスリクエストの受付を記録する。
func (c *Collector) RecordRequestSubmitted() {
	c.requests.Inc()
}

// RecordMailFailure はメール送信失敗を記録する。
func (c *Collector) RecordMailFailure(kind string) {
	c.mailFailures.WithLabelValues(kind).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordHTTPLatency はHTTPリクエストのレイテンシを記録する。
func (c *Collector) RecordHTTPLatency(duration time.Duration) {
	c.httpLatency.Observe(duration.Seconds())
}

// RecordJobRun はジョブの実行結果を記録する。
func (c *Collector) RecordJobRun(job string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	c.jobRuns.WithLabelValues(job, result).Inc()
}

// SetStreamClients は接続中のストリームクライアント数を設定する。
func (c *Collector) SetStreamClients(n int) {
	c.streamClients.Set(float64(n))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ Recorder = (*Collector)(nil)
