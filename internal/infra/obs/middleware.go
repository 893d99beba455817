package obs

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Middleware struct {
	Logger  *slog.Logger
	Metrics *Metrics
}

func (m Middleware) RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		ctx := context.WithValue(c.Request.Context(), requestIDKey{}, id)
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Set("request_id", id)
		c.Next()
	}
}

// LoggerMiddleware writes one access-log line per request and counts it.
func (m Middleware) LoggerMiddleware() gin.HandlerFunc {
	log := m.Logger
	metrics := m.Metrics
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		if metrics != nil {
			metrics.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status/100)+"xx").Inc()
		}
		if log == nil {
			return
		}
		attrs := []any{
			"method", c.Request.Method,
			"path", route,
			"status", status,
			"duration", time.Since(start),
			"request_id", c.GetString("request_id"),
		}
		if user := c.GetString("user_id"); user != "" {
			attrs = append(attrs, "user_id", user)
		}
		if status >= 500 {
			log.Error("http", attrs...)
			return
		}
		log.Info("http", attrs...)
	}
}

type requestIDKey struct{}

func RequestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDKey{}); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
