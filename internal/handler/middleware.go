package handler

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"courtmaster/internal/auth"
	"courtmaster/internal/domain"
	"courtmaster/internal/infrastructure/vnpay"
	"courtmaster/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	ContextUserID   = "userId"
	ContextUserRole = "userRole"
)

// RequestID tags every request with an id, reusing X-Request-ID when the proxy set one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(logger.RequestIDKey, rid)
		c.Header("X-Request-ID", rid)
		c.Next()
	}
}

// RequestLogger emits one structured line per request, leveled by status class.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
		}
		if rid := c.GetString(logger.RequestIDKey); rid != "" {
			fields = append(fields, zap.String("request_id", rid))
		}

		switch {
		case status >= 500:
			log.Error("http_request", fields...)
		case status >= 400:
			log.Warn("http_request", fields...)
		default:
			log.Info("http_request", fields...)
		}
	}
}

// Auth requires a valid bearer token and stores the caller in the context.
func Auth(tokens *auth.Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header missing"})
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid Authorization header"})
			return
		}

		actor, err := tokens.Validate(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		c.Set(ContextUserID, actor.UserID)
		c.Set(ContextUserRole, actor.Role)
		c.Next()
	}
}

// StaffOnly must run after Auth.
func StaffOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !actorFrom(c).Role.IsStaff() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Staff only"})
			return
		}
		c.Next()
	}
}

func actorFrom(c *gin.Context) domain.Actor {
	var a domain.Actor
	if v, ok := c.Get(ContextUserID); ok {
		a.UserID, _ = v.(uuid.UUID)
	}
	if v, ok := c.Get(ContextUserRole); ok {
		a.Role, _ = v.(domain.Role)
	}
	return a
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPLimiter keeps one token bucket per client IP.
type IPLimiter struct {
	mu    sync.Mutex
	ips   map[string]*limiterEntry
	rate  rate.Limit
	burst int
	ttl   time.Duration
}

func NewIPLimiter(r rate.Limit, burst int, ttl time.Duration) *IPLimiter {
	return &IPLimiter{ips: make(map[string]*limiterEntry), rate: r, burst: burst, ttl: ttl}
}

func (l *IPLimiter) Allow(ip string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	for k, e := range l.ips {
		if now.Sub(e.lastSeen) > l.ttl {
			delete(l.ips, k)
		}
	}
	e, ok := l.ips[ip]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.ips[ip] = e
	}
	e.lastSeen = now
	return e.limiter.Allow()
}

// IPNRateLimit throttles gateway notifications without leaving the IPN
// vocabulary: a rejected call gets HTTP 200 with RspCode 99 so the gateway
// retries it later.
func IPNRateLimit(l *IPLimiter, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			log.Warn("ipn_rate_limited", zap.String("client_ip", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusOK, vnpay.AckUnknownError)
			return
		}
		c.Next()
	}
}
