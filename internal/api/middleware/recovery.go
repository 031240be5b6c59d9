package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/tiz36/ztask/internal/api/dto"
	"github.com/tiz36/ztask/internal/log"
)

// Recovery panic恢复中间件
func Recovery(logger log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered", "panic", err, "path", c.Request.URL.Path, "stack", string(debug.Stack()))

				c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(
					http.StatusInternalServerError,
					"Internal Server Error",
				))
				c.Abort()
			}
		}()
		c.Next()
	}
}
