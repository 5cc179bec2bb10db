package middleware

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strings"

	apperrors "ort-ai-api/pkg/errors"
	"ort-ai-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Recovery Panic 恢复中间件。
// 客户端断连导致的写失败只记日志不响应，其余 panic 转 500。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("%v", r)
			}

			if isBrokenPipe(err) {
				logger.Warn(c.Request.Context(), "客户端断连",
					"path", c.Request.URL.Path, "error", err)
				c.Abort()
				return
			}

			logger.Error(c.Request.Context(), "panic recovered", err,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"stack", string(debug.Stack()),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"code":    http.StatusInternalServerError,
				"message": "internal server error",
				"error": gin.H{
					"error_code": string(apperrors.CodeInternalError),
				},
				"trace_id": c.GetString("trace_id"),
			})
		}()

		c.Next()
	}
}

func isBrokenPipe(err error) bool {
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return false
	}
	msg := strings.ToLower(opErr.Err.Error())
	return strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset by peer")
}
