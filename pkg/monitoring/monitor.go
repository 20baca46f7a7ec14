package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// EvaluationsTotal 按结果统计评测次数：ok / invalid / not_found / error
	EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evaluations_total",
			Help: "Total number of evaluation requests by outcome",
		},
		[]string{"outcome"},
	)

	// ScoredAnswers 按评分方式统计单题数量
	ScoredAnswers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evaluation_answers_scored_total",
			Help: "Number of scored answers by method",
		},
		[]string{"method"},
	)

	EmbeddingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "embedding_batch_duration_seconds",
			Help:    "Duration of embedding batch calls",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 50},
		},
		[]string{"provider"},
	)

	EmbeddingFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedding_batch_failures_total",
			Help: "Number of failed embedding batch calls",
		},
		[]string{"provider", "reason"},
	)

	PersistFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "evaluation_persist_failures_total",
			Help: "Evaluation records that could not be saved after retries",
		},
	)
)

var registerOnce sync.Once

// Init 注册到默认 registry，可重复调用
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			EvaluationsTotal,
			ScoredAnswers,
			EmbeddingDuration,
			EmbeddingFailures,
			PersistFailures,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
