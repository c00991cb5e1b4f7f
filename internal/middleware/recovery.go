package middleware

import (
	"fmt"
	"io"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/BarkinBalci/capi-relay-service/internal/dto"
)

// Recovery turns a handler panic into a 500 on top of gin's recovery. The
// panic value and stack are only echoed to the client when exposeDetails is set.
func Recovery(log *zap.Logger, exposeDetails bool) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		stack := debug.Stack()
		log.Error("Recovered from panic",
			zap.Any("panic", recovered),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.ByteString("stack", stack))

		resp := dto.ErrorResponse{Error: "internal_error", Message: "internal server error"}
		if exposeDetails {
			resp.Message = fmt.Sprintf("panic: %v\n%s", recovered, stack)
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, resp)
	})
}

// Logger writes one access log line per request
func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			log.Error("Request completed", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			log.Warn("Request completed", fields...)
		default:
			log.Debug("Request completed", fields...)
		}
	}
}
