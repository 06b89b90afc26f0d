package security

import (
	"learning_platform/internal/config"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// CORS 中间件 仅允许白名单中的Origin，"*" 表示放行全部
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	allowAll := false
	originSet := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			allowAll = true
		}
		originSet[o] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if origin != "" && (allowAll || originSet[origin]) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Add("Vary", "Origin")
		}

		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Secure 中间件
func Secure() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		}

		c.Next()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter 按IP限流，过期条目由 Sweep 清理
type RateLimiter struct {
	mu      sync.Mutex
	store   map[string]*visitor
	limit   rate.Limit
	burst   int
	expiry  time.Duration
	nowFunc func() time.Time
}

func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	maxRequests := cfg.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 100
	}
	window := time.Duration(cfg.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	expiry := window * 3
	if expiry < time.Minute {
		expiry = time.Minute
	}
	return &RateLimiter{
		store:   make(map[string]*visitor),
		limit:   rate.Every(window / time.Duration(maxRequests)),
		burst:   maxRequests,
		expiry:  expiry,
		nowFunc: time.Now,
	}
}

func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	v, exists := l.store[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.store[key] = v
	}
	v.lastSeen = l.nowFunc()
	l.mu.Unlock()
	return v.limiter.Allow()
}

// Sweep 删除长时间未活跃的条目
func (l *RateLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	now := l.nowFunc()
	for ip, v := range l.store {
		if now.Sub(v.lastSeen) > l.expiry {
			delete(l.store, ip)
			removed++
		}
	}
	return removed
}

// Run 周期性清理，直到 stop 关闭
func (l *RateLimiter) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.Sweep()
		case <-stop:
			return
		}
	}
}

func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"code": http.StatusTooManyRequests, "message": "too many requests"})
			return
		}
		c.Next()
	}
}
