package handler

import (
	"github.com/gin-gonic/gin"

	"ort-ai-api/internal/application/generation"
	"ort-ai-api/internal/interfaces/http/dto"
	"ort-ai-api/pkg/logger"
)

// ItineraryHandler 外部行程链接解析
type ItineraryHandler struct {
	orchestrator *generation.Orchestrator
}

// NewItineraryHandler 创建行程处理器
func NewItineraryHandler(orchestrator *generation.Orchestrator) *ItineraryHandler {
	return &ItineraryHandler{orchestrator: orchestrator}
}

// ParseURL 抓取外部行程页面并解析为结构化行程
// @Summary 解析行程链接
// @Description 抓取页面正文，经供应商链抽取为结构化行程对象
// @Tags Itinerary
// @Accept json
// @Produce json
// @Param request body dto.ParseURLRequest true "解析请求"
// @Success 200 {object} dto.Response[dto.ParseURLResponse]
// @Router /v1/itineraries/parse-url [post]
func (h *ItineraryHandler) ParseURL(c *gin.Context) {
	var req dto.ParseURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	userID := c.GetString("user_id")
	email := c.GetString("email")

	out, err := h.orchestrator.ParseURL(c.Request.Context(), userID, email, generation.ParseURLInput{
		URL:       req.URL,
		Language:  req.Language,
		CacheOnly: req.CacheOnly,
	})
	if err != nil {
		logger.Warn(c.Request.Context(), "链接解析失败", "url", req.URL, "error", err)
		var usage *dto.QuotaUsageResponse
		if out != nil {
			usage = dto.NewQuotaUsageResponse(out.Usage)
		}
		dto.AppErrorWithUsage(c, err, usage)
		return
	}

	dto.Success(c, dto.NewParseURLResponse(out))
}
