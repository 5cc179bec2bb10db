package dto

import (
	"ort-ai-api/internal/application/generation"
	"ort-ai-api/internal/domain/entity"
)

// ParseURLRequest 链接解析请求
type ParseURLRequest struct {
	URL       string `json:"url" binding:"required"`
	Language  string `json:"language"`
	CacheOnly bool   `json:"cache_only"`
}

// ParseURLMeta 链接解析元信息
type ParseURLMeta struct {
	Model     string `json:"model,omitempty"`
	SourceURL string `json:"source_url"`
}

// ParseURLResponse 链接解析响应
type ParseURLResponse struct {
	Itinerary *entity.ItineraryArtifact `json:"itinerary"`
	Places    []entity.Place            `json:"places"`
	FromCache bool                      `json:"from_cache"`
	Usage     *QuotaUsageResponse       `json:"usage,omitempty"`
	Meta      *ParseURLMeta             `json:"meta,omitempty"`
}

// NewParseURLResponse 从编排器输出构建响应
func NewParseURLResponse(out *generation.ParseURLOutput) *ParseURLResponse {
	return &ParseURLResponse{
		Itinerary: out.Itinerary,
		Places:    out.Places,
		FromCache: out.FromCache,
		Usage:     NewQuotaUsageResponse(out.Usage),
		Meta: &ParseURLMeta{
			Model:     out.Model,
			SourceURL: out.Itinerary.SourceURL,
		},
	}
}
