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
// ルーター・スケジューラ・Telegramクライアントから利用する。
type MetricsCollector interface {
	RecordUpdateProcessed()
	RecordUpdateFailure()
	RecordFlowCompleted(flow string)
	RecordReminderSent(kind string)
	RecordSendFailure()
	RecordSendLatency(duration time.Duration)
	RecordTelegramStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	updatesProcessed prometheus.Counter
	updatesFailed    prometheus.Counter
	flowsCompleted   *prometheus.CounterVec
	remindersSent    *prometheus.CounterVec
	sendFail         prometheus.Counter
	sendLatency      prometheus.Histogram
	telegramStatus   *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		updatesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kansha_updates_processed_total",
			Help: "処理したTelegram更新の合計数",
		}),
		updatesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kansha_updates_failed_total",
			Help: "処理に失敗したTelegram更新の合計数",
		}),
		flowsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kansha_flows_completed_total",
			Help: "フロー種別ごとの完了数",
		}, []string{"flow"}),
		remindersSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kansha_reminders_sent_total",
			Help: "リマインダー種別ごとの送信数",
		}, []string{"kind"}),
		sendFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kansha_send_fail_total",
			Help: "メッセージ送信失敗の合計数",
		}),
		sendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kansha_send_latency_seconds",
			Help:    "メッセージ送信のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		telegramStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kansha_telegram_status_total",
			Help: "Telegram APIのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.updatesProcessed,
		c.updatesFailed,
		c.flowsCompleted,
		c.remindersSent,
		c.sendFail,
		c.sendLatency,
		c.telegramStatus,
	)

	return c
}

// RecordUpdateProcessed は更新処理の完了を記録する。
func (c *Collector) RecordUpdateProcessed() {
	c.updatesProcessed.Inc()
}

// RecordUpdateFailure は更新処理の失敗を記録する。
func (c *Collector) RecordUpdateFailure() {
	c.updatesFailed.Inc()
}

// RecordFlowCompleted はフローの完了を記録する。
func (c *Collector) RecordFlowCompleted(flow string) {
	c.flowsCompleted.WithLabelValues(flow).Inc()
}

// RecordReminderSent はリマインダー送信を記録する。
func (c *Collector) RecordReminderSent(kind string) {
	c.remindersSent.WithLabelValues(kind).Inc()
}

// RecordSendFailure はメッセージ送信失敗を記録する。
func (c *Collector) RecordSendFailure() {
	c.sendFail.Inc()
}

// RecordSendLatency はメッセージ送信のレイテンシを記録する。
func (c *Collector) RecordSendLatency(duration time.Duration) {
	c.sendLatency.Observe(duration.Seconds())
}

// RecordTelegramStatus はTelegram APIのHTTPステータスコードを記録する。
func (c *Collector) RecordTelegramStatus(statusCode int) {
	c.telegramStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Noop は何も記録しないMetricsCollector。テストと省略時のデフォルト用。
type Noop struct{}

func (Noop) RecordUpdateProcessed()              {}
func (Noop) RecordUpdateFailure()                {}
func (Noop) RecordFlowCompleted(flow string)     {}
func (Noop) RecordReminderSent(kind string)      {}
func (Noop) RecordSendFailure()                  {}
func (Noop) RecordSendLatency(time.Duration)     {}
func (Noop) RecordTelegramStatus(statusCode int) {}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Noop{}
)
