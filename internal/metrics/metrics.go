package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus 指标
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskhub_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "riskhub_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// IngestTotal kind: order/voucher，result: ok/validation/storage/...
	IngestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskhub_ingest_total",
			Help: "Total number of ingested orders and vouchers by result",
		},
		[]string{"kind", "result"},
	)

	IngestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "riskhub_ingest_duration_seconds",
			Help:    "Duration of ingestion transactions",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	AuthFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskhub_auth_failures_total",
			Help: "Total number of rejected webhook signatures",
		},
		[]string{"reason"},
	)

	RecomputeTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "riskhub_stats_recompute_total",
			Help: "Total number of customer stat recomputes",
		},
	)

	RiskLevelTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskhub_risk_level_total",
			Help: "Risk levels produced by recomputes",
		},
		[]string{"level"},
	)

	CourierPollTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskhub_courier_poll_total",
			Help: "Total number of courier status polls",
		},
		[]string{"courier", "result"},
	)

	CourierEventsAppended = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "riskhub_courier_events_appended_total",
			Help: "Total number of new courier events stored",
		},
	)
)

var registerOnce sync.Once

// Register 注册全部指标（可重复调用）
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			IngestTotal,
			IngestDuration,
			AuthFailuresTotal,
			RecomputeTotal,
			RiskLevelTotal,
			CourierPollTotal,
			CourierEventsAppended,
		)
	})
}

// Instrument gin 中间件：按路由模板记录请求数与耗时
func Instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
		HTTPRequestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
