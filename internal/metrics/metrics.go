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
// ハンドラーやサービス層から利用する。
type MetricsCollector interface {
	RecordCartMutation(operation string)
	RecordCheckout(courseCount int)
	RecordEnrollment()
	RecordPersistenceFailure()
	RecordHTTPStatus(statusCode int)
	RecordCheckoutLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	cartMutations       *prometheus.CounterVec
	checkouts           prometheus.Counter
	checkoutCourses     prometheus.Counter
	enrollments         prometheus.Counter
	persistenceFailures prometheus.Counter
	httpStatus          *prometheus.CounterVec
	checkoutLatency     prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cart_mutations_total",
			Help: "カート操作の合計数（操作種別ラベル付き）",
		}, []string{"operation"}),
		checkouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_checkouts_total",
			Help: "完了したチェックアウトの合計数",
		}),
		checkoutCourses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_checkout_courses_total",
			Help: "チェックアウトで処理されたコースの合計数",
		}),
		enrollments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_enrollments_total",
			Help: "受講確定の合計数",
		}),
		persistenceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_persistence_failures_total",
			Help: "永続化ストアへの保存失敗の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		checkoutLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_checkout_latency_seconds",
			Help:    "チェックアウト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.cartMutations,
		c.checkouts,
		c.checkoutCourses,
		c.enrollments,
		c.persistenceFailures,
		c.httpStatus,
		c.checkoutLatency,
	)

	return c
}

// RecordCartMutation はカート操作を記録する。
// operation: add, remove, update_quantity, clear
func (c *Collector) RecordCartMutation(operation string) {
	c.cartMutations.WithLabelValues(operation).Inc()
}

// RecordCheckout はチェックアウト完了を記録する。
func (c *Collector) RecordCheckout(courseCount int) {
	c.checkouts.Inc()
	c.checkoutCourses.Add(float64(courseCount))
}

// RecordEnrollment は受講確定を記録する。
func (c *Collector) RecordEnrollment() {
	c.enrollments.Inc()
}

// RecordPersistenceFailure は永続化保存失敗を記録する。
func (c *Collector) RecordPersistenceFailure() {
	c.persistenceFailures.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordCheckoutLatency はチェックアウトのレイテンシを記録する。
func (c *Collector) RecordCheckoutLatency(duration time.Duration) {
	c.checkoutLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
