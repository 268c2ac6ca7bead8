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
// サービス層・ワーカー・HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordAnswer(kind, label string)
	RecordMark(kind, mark string)
	RecordCacheLookup(hit bool)
	RecordWebhookEvent(event, result string)
	RecordImportRows(kind string, rows int)
	RecordMail(result string)
	RecordHTTPStatus(statusCode int)
	RecordJobDuration(job string, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	answers      *prometheus.CounterVec
	marks        *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	webhooks     *prometheus.CounterVec
	importRows   *prometheus.CounterVec
	mails        *prometheus.CounterVec
	httpStatus   *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jusmemoriza_answers_total",
			Help: "回答ラベル別の回答数",
		}, []string{"kind", "label"}),
		marks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jusmemoriza_marks_total",
			Help: "お気に入り・除外マークの操作数",
		}, []string{"kind", "mark"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jusmemoriza_deck_cache_lookups_total",
			Help: "デッキキャッシュの参照結果",
		}, []string{"result"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jusmemoriza_webhook_events_total",
			Help: "購入Webhookのイベント種別・結果別の受信数",
		}, []string{"event", "result"}),
		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jusmemoriza_import_rows_total",
			Help: "CSVインポートで登録した行数",
		}, []string{"kind"}),
		mails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jusmemoriza_mail_deliveries_total",
			Help: "通知メールの送信結果",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jusmemoriza_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jusmemoriza_job_duration_seconds",
			Help:    "バックグラウンドジョブ1サイクルの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}

	reg.MustRegister(
		c.answers,
		c.marks,
		c.cacheLookups,
		c.webhooks,
		c.importRows,
		c.mails,
		c.httpStatus,
		c.jobDuration,
	)

	return c
}

// RecordAnswer は回答を記録する。
func (c *Collector) RecordAnswer(kind, label string) {
	c.answers.WithLabelValues(kind, label).Inc()
}

// RecordMark はマーク操作を記録する。markは favorite_on / favorite_off / ignore。
func (c *Collector) RecordMark(kind, mark string) {
	c.marks.WithLabelValues(kind, mark).Inc()
}

// RecordCacheLookup はデッキキャッシュのヒット・ミスを記録する。
func (c *Collector) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

// RecordWebhookEvent はWebhook受信結果を記録する。
func (c *Collector) RecordWebhookEvent(event, result string) {
	c.webhooks.WithLabelValues(event, result).Inc()
}

// RecordImportRows はインポートした行数を記録する。
func (c *Collector) RecordImportRows(kind string, rows int) {
	c.importRows.WithLabelValues(kind).Add(float64(rows))
}

// RecordMail はメール送信結果を記録する。resultは sent / failed。
func (c *Collector) RecordMail(result string) {
	c.mails.WithLabelValues(result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordJobDuration はジョブ1サイクルの所要時間を記録する。
func (c *Collector) RecordJobDuration(job string, duration time.Duration) {
	c.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordAnswer(string, string)             {}
func (Nop) RecordMark(string, string)               {}
func (Nop) RecordCacheLookup(bool)                  {}
func (Nop) RecordWebhookEvent(string, string)       {}
func (Nop) RecordImportRows(string, int)            {}
func (Nop) RecordMail(string)                       {}
func (Nop) RecordHTTPStatus(int)                    {}
func (Nop) RecordJobDuration(string, time.Duration) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
