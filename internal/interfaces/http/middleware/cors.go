package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"ort-ai-api/internal/config"
)

// CORS 跨域中间件。
// 接口只有读取与生成两类操作，方法集收敛到 GET/POST/OPTIONS。
// 放行任意来源时不能同时允许凭据，否则 gin-contrib/cors 会 panic。
func CORS(cfg *config.CORSConfig) gin.HandlerFunc {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	methods := cfg.AllowedMethods
	if len(methods) == 0 {
		methods = []string{"GET", "POST", "OPTIONS"}
	}
	headers := cfg.AllowedHeaders
	if len(headers) == 0 {
		headers = []string{"Origin", "Content-Type", "Authorization", RequestIDHeader}
	}

	allowAll := len(origins) == 1 && origins[0] == "*"

	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     methods,
		AllowHeaders:     headers,
		ExposeHeaders:    []string{RequestIDHeader, "X-Trace-ID"},
		AllowCredentials: !allowAll,
		MaxAge:           12 * time.Hour,
	})
}
