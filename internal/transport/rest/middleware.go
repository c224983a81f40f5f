package rest

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		args := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", status),
			slog.Duration("took", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("request failed", args...)
		case status >= http.StatusBadRequest:
			log.Info("request rejected", args...)
		default:
			log.Debug("request served", args...)
		}
	}
}

// idleLimiterTTL is how long a client must stay quiet before its limiter is
// dropped. It exceeds the one minute a bucket needs to refill, so a dropped
// limiter and a fresh one behave the same.
const idleLimiterTTL = 3 * time.Minute

type visitor struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type ipRateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	now       func() time.Time
	lastSweep time.Time
	log       *slog.Logger
}

func newIPRateLimiter(perMinute int, log *slog.Logger) *ipRateLimiter {
	return &ipRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		now:      time.Now,
		log:      log,
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= idleLimiterTTL {
		l.sweep(now)
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{lim: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.lim.AllowN(now, 1)
}

// sweep drops visitors idle for longer than idleLimiterTTL. Callers hold mu.
func (l *ipRateLimiter) sweep(now time.Time) {
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > idleLimiterTTL {
			delete(l.visitors, ip)
		}
	}
	l.lastSweep = now
}

func (l *ipRateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !l.allow(ip) {
			l.log.Warn("rate limit exceeded", slog.String("client_ip", ip))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded, try again later"})
			return
		}
		c.Next()
	}
}
