package handler

import (
	"github.com/gin-gonic/gin"

	"ort-ai-api/internal/application/quota"
	"ort-ai-api/internal/domain/entity"
	"ort-ai-api/internal/interfaces/http/dto"
)

// QuotaHandler 配额用量查询
type QuotaHandler struct {
	ledger *quota.Ledger
}

// NewQuotaHandler 创建配额处理器
func NewQuotaHandler(ledger *quota.Ledger) *QuotaHandler {
	return &QuotaHandler{ledger: ledger}
}

// UsageResponse 配额用量响应
type UsageResponse struct {
	VIP     bool                `json:"vip"`
	Classes []entity.QuotaUsage `json:"classes"`
}

// Usage 查询当前用户各类别配额用量
// @Summary 查询配额用量
// @Tags Quota
// @Produce json
// @Success 200 {object} dto.Response[UsageResponse]
// @Router /v1/quota/usage [get]
func (h *QuotaHandler) Usage(c *gin.Context) {
	userID := c.GetString("user_id")
	email := c.GetString("email")

	var usages []entity.QuotaUsage
	for _, class := range []entity.QuotaClass{entity.ClassSummary, entity.ClassURLParse} {
		u, err := h.ledger.Usage(c.Request.Context(), userID, class)
		if err != nil {
			dto.InternalError(c, "read quota usage failed")
			return
		}
		usages = append(usages, u...)
	}

	dto.Success(c, UsageResponse{
		VIP:     h.ledger.IsVIP(email),
		Classes: usages,
	})
}
