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

	PointsAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamification_points_awarded_total",
			Help: "Total points credited, by source",
		},
		[]string{"source"},
	)

	BadgesAwarded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gamification_badges_awarded_total",
			Help: "Total badges awarded",
		},
	)

	LeaderboardRecomputeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gamification_leaderboard_recompute_seconds",
			Help:    "Duration of leaderboard recompute runs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"scope"},
	)

	ChatOnlineUsers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_online_users",
			Help: "Websocket clients connected to this instance",
		},
	)

	ChatMessageCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Chat messages by type and direction",
		},
		[]string{"type", "direction"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			PointsAwarded,
			BadgesAwarded,
			LeaderboardRecomputeDuration,
			ChatOnlineUsers,
			ChatMessageCounter,
		)
	})
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
