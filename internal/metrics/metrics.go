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
// サービス層やワーカーから利用する。
type MetricsCollector interface {
	RecordVoteCast(anonymous bool)
	RecordVotesMigrated(count int)
	RecordRecomputeSuccess()
	RecordRecomputeFailure()
	RecordRecomputeLatency(duration time.Duration)
	RecordSnapshotsWritten(count int)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	votesCast        *prometheus.CounterVec
	votesMigrated    prometheus.Counter
	recomputeSuccess prometheus.Counter
	recomputeFail    prometheus.Counter
	recomputeLatency prometheus.Histogram
	snapshotsWritten prometheus.Counter
	httpStatus       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		votesCast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gfrate_votes_cast_total",
			Help: "投稿された投票の合計数（匿名/登録別）",
		}, []string{"identity"}),
		votesMigrated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gfrate_votes_migrated_total",
			Help: "登録ユーザーに引き継がれた匿名投票の合計数",
		}),
		recomputeSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gfrate_recompute_success_total",
			Help: "商品スコア再計算成功の合計数",
		}),
		recomputeFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gfrate_recompute_fail_total",
			Help: "商品スコア再計算失敗の合計数",
		}),
		recomputeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gfrate_recompute_latency_seconds",
			Help:    "商品スコア再計算のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		snapshotsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gfrate_price_snapshots_written_total",
			Help: "書き込まれた価格スナップショットの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gfrate_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.votesCast,
		c.votesMigrated,
		c.recomputeSuccess,
		c.recomputeFail,
		c.recomputeLatency,
		c.snapshotsWritten,
		c.httpStatus,
	)

	return c
}

// RecordVoteCast は投票の投稿を記録する。
func (c *Collector) RecordVoteCast(anonymous bool) {
	identity := "registered"
	if anonymous {
		identity = "anonymous"
	}
	c.votesCast.WithLabelValues(identity).Inc()
}

// RecordVotesMigrated は引き継がれた匿名投票数を記録する。
func (c *Collector) RecordVotesMigrated(count int) {
	c.votesMigrated.Add(float64(count))
}

// RecordRecomputeSuccess は再計算成功を記録する。
func (c *Collector) RecordRecomputeSuccess() {
	c.recomputeSuccess.Inc()
}

// RecordRecomputeFailure は再計算失敗を記録する。
func (c *Collector) RecordRecomputeFailure() {
	c.recomputeFail.Inc()
}

// RecordRecomputeLatency は再計算のレイテンシを記録する。
func (c *Collector) RecordRecomputeLatency(duration time.Duration) {
	c.recomputeLatency.Observe(duration.Seconds())
}

// RecordSnapshotsWritten は書き込まれたスナップショット数を記録する。
func (c *Collector) RecordSnapshotsWritten(count int) {
	c.snapshotsWritten.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
