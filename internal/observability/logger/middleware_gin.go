package logger

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	obscontext "github.com/smallbiznis/crewbill/internal/observability/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const HeaderRequestID = "X-Request-Id"

// MiddlewareConfig controls request logging behavior.
type MiddlewareConfig struct {
	Debug           bool
	ErrorClassifier func(err error) (string, string)
	// SessionRoutes are route prefixes whose :id param is a bulk session id.
	SessionRoutes []string
	// QuietRoutes are logged at debug.
	QuietRoutes []string
}

// GinMiddleware assigns a request id, tags bulk session routes and writes
// one http_request line per request.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		route := c.FullPath()

		ctx := obscontext.WithRequestID(c.Request.Context(), requestID(c))
		if id := sessionParam(c, route, cfg.SessionRoutes); id != "" {
			ctx = obscontext.WithSessionID(ctx, id)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.Int64("bytes_in", max(c.Request.ContentLength, 0)),
			zap.Int("bytes_out", max(c.Writer.Size(), 0)),
		}
		if last := c.Errors.Last(); last != nil {
			fields = append(fields, errorFields(cfg, last.Err)...)
		}

		FromContext(c.Request.Context()).Log(requestLevel(cfg, route, status), "http_request", fields...)
	}
}

func requestID(c *gin.Context) string {
	id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
	if id == "" {
		id = uuid.NewString()
	}
	c.Set("request_id", id)
	c.Header(HeaderRequestID, id)
	return id
}

func sessionParam(c *gin.Context, route string, prefixes []string) string {
	for _, prefix := range prefixes {
		if strings.HasPrefix(route, prefix) {
			return strings.TrimSpace(c.Param("id"))
		}
	}
	return ""
}

func errorFields(cfg MiddlewareConfig, err error) []zap.Field {
	var errType, errCode string
	if cfg.ErrorClassifier != nil {
		errType, errCode = cfg.ErrorClassifier(err)
	}
	fields := []zap.Field{
		zap.String("error_type", errType),
		zap.String("error_code", errCode),
	}
	if cfg.Debug {
		fields = append(fields, zap.String("error", err.Error()))
	}
	return fields
}

func requestLevel(cfg MiddlewareConfig, route string, status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case slices.Contains(cfg.QuietRoutes, route):
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}
