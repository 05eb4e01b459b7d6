package middleware

import (
	"context"
	"time"

	awspkg "license-service/pkg/aws"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestRecorder receives one sample per served request.
type RequestRecorder interface {
	RecordRequest(ctx context.Context, s awspkg.RequestSample) error
}

// RequestMetrics reports every request to rec after the handler chain finishes.
// Recording runs off the request path and is bounded by timeout. A nil rec disables it.
func RequestMetrics(rec RequestRecorder, service string, timeout time.Duration, logger *zap.Logger) gin.HandlerFunc {
	if rec == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		sample := awspkg.RequestSample{
			Service: service,
			Method:  c.Request.Method,
			Route:   c.FullPath(),
			Status:  c.Writer.Status(),
			Latency: time.Since(start),
		}
		if sample.Route == "" {
			sample.Route = "unmatched"
		}
		ctx := context.WithoutCancel(c.Request.Context())
		go func() {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			if err := rec.RecordRequest(ctx, sample); err != nil {
				logger.Debug("request metrics not recorded", zap.String("route", sample.Route), zap.Error(err))
			}
		}()
	}
}
