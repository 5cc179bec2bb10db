// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(v1 *gin.RouterGroup, h Handlers) {
	// 行程摘要
	summaries := v1.Group("/summaries")
	{
		summaries.POST("/generate", h.Summary.Generate)
	}

	// 行程链接解析
	itineraries := v1.Group("/itineraries")
	{
		itineraries.POST("/parse-url", h.Itinerary.ParseURL)
	}

	// 配额用量
	quota := v1.Group("/quota")
	{
		quota.GET("/usage", h.Quota.Usage)
	}
}
