package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tiz36/ztask/internal/datasource"
	"github.com/tiz36/ztask/internal/log"
)

// TraceIDHeader 请求追踪头
const TraceIDHeader = "traceId"

// AccessLog 访问日志，透传或生成追踪ID并写入请求上下文
func AccessLog(logger log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		c.Request = c.Request.WithContext(datasource.WithTraceID(c.Request.Context(), traceID))
		c.Header(TraceIDHeader, traceID)

		start := time.Now()
		c.Next()

		fields := []interface{}{
			"trace_id", traceID,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			logger.Warn("request failed", append(fields, "error", c.Errors.String())...)
			return
		}
		logger.Info("request", fields...)
	}
}
