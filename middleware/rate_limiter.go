package middleware

import (
	"context"
	"sync"
	"time"

	"license-service/apperrors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const MetricCheckoutRateLimited = "CheckoutRateLimited"

// Admitter decides whether a client may make another request.
type Admitter interface {
	Admit(clientKey string) bool
}

// SlidingWindowLimiter admits at most limit requests per client within any trailing window.
// Keys are never evicted.
type SlidingWindowLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	limit   int
	window  time.Duration
	now     func() time.Time
}

func NewSlidingWindowLimiter(limit int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		windows: make(map[string][]time.Time),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// WithClock replaces the limiter's time source.
func (l *SlidingWindowLimiter) WithClock(now func() time.Time) *SlidingWindowLimiter {
	l.now = now
	return l
}

// Admit evicts expired timestamps for clientKey and records now if the client is under the limit.
// A rejected attempt is not recorded.
func (l *SlidingWindowLimiter) Admit(clientKey string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	stamps := l.windows[clientKey]
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	stamps = stamps[i:]

	if len(stamps) >= l.limit {
		l.windows[clientKey] = stamps
		return false
	}
	l.windows[clientKey] = append(stamps, now)
	return true
}

// MetricsRecorder is the subset of the CloudWatch client used by middleware.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
}

// CheckoutRateLimit rejects clients over the limit with 429.
func CheckoutRateLimit(limiter Admitter, metrics MetricsRecorder, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if limiter.Admit(ip) {
			c.Next()
			return
		}

		logger.Warn("Checkout rate limit exceeded",
			zap.String("client_ip", ip),
			zap.String("path", c.Request.URL.Path),
		)
		if metrics != nil {
			_ = metrics.RecordCount(c.Request.Context(), MetricCheckoutRateLimited, map[string]string{
				"Service": "license-service",
			})
		}
		appErr := apperrors.RateLimited()
		c.AbortWithStatusJSON(appErr.Code, appErr)
	}
}
