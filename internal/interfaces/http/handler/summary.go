package handler

import (
	"github.com/gin-gonic/gin"

	"ort-ai-api/internal/application/generation"
	"ort-ai-api/internal/interfaces/http/dto"
	"ort-ai-api/pkg/logger"
)

// SummaryHandler 行程摘要生成
type SummaryHandler struct {
	orchestrator *generation.Orchestrator
}

// NewSummaryHandler 创建摘要处理器
func NewSummaryHandler(orchestrator *generation.Orchestrator) *SummaryHandler {
	return &SummaryHandler{orchestrator: orchestrator}
}

// Generate 生成或返回缓存的行程摘要
// @Summary 生成行程摘要
// @Description 缓存级联优先，未命中走配额与供应商链
// @Tags Summary
// @Accept json
// @Produce json
// @Param request body dto.GenerateSummaryRequest true "摘要请求"
// @Success 200 {object} dto.Response[dto.GenerateSummaryResponse]
// @Router /v1/summaries/generate [post]
func (h *SummaryHandler) Generate(c *gin.Context) {
	var req dto.GenerateSummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.CatalogID == "" && req.TripID == "" {
		dto.BadRequest(c, "catalog_id or trip_id required")
		return
	}

	userID := c.GetString("user_id")
	email := c.GetString("email")

	out, err := h.orchestrator.GenerateSummary(c.Request.Context(), userID, email, req.ToInput())
	if err != nil {
		logger.Warn(c.Request.Context(), "摘要生成失败", "catalog_id", req.CatalogID, "error", err)
		var usage *dto.QuotaUsageResponse
		if out != nil {
			usage = dto.NewQuotaUsageResponse(out.Usage)
		}
		dto.AppErrorWithUsage(c, err, usage)
		return
	}

	dto.Success(c, dto.NewGenerateSummaryResponse(out))
}
