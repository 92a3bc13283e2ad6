package metrics

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
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	AttemptsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exam_attempts_started_total",
			Help: "Attempts created by start",
		},
	)

	AttemptsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_attempts_finished_total",
			Help: "Attempts reaching a terminal status",
		},
		[]string{"status", "trigger"},
	)

	ScoringWarnings = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exam_scoring_warnings_total",
			Help: "Responses scored as incorrect because the payload was malformed",
		},
	)

	RankingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "exam_ranking_duration_seconds",
			Help:    "Time spent recomputing an exam ranking",
			Buckets: prometheus.DefBuckets,
		},
	)

	TeacherGrades = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exam_teacher_grades_total",
			Help: "Teacher marks recorded on responses",
		},
	)

	PaperSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_paper_submissions_total",
			Help: "Paper attempts finally submitted",
		},
		[]string{"auto_submitted"},
	)
)

var registerOnce sync.Once

// Init registers all collectors with the default registry
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			AttemptsStarted,
			AttemptsFinished,
			ScoringWarnings,
			RankingDuration,
			TeacherGrades,
			PaperSubmissions,
		)
	})
}

// ObserveRanking records how long a ranking recompute took
func ObserveRanking(start time.Time) {
	RankingDuration.Observe(time.Since(start).Seconds())
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
