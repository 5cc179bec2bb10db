package dto

import (
	"encoding/json"

	"ort-ai-api/internal/application/generation"
	"ort-ai-api/internal/application/quota"
	"ort-ai-api/internal/domain/entity"
	"ort-ai-api/internal/workflow/prompt"
)

// StepItem 前端途经点中的条目，兼容纯字符串与 {text} 对象两种形态
type StepItem struct {
	Text string `json:"text"`
}

// UnmarshalJSON 同时接受 "..." 与 {"text":"..."}
func (s *StepItem) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		s.Text = str
		return nil
	}
	type alias StepItem
	var obj alias
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	s.Text = obj.Text
	return nil
}

// SummaryStepRequest 待摘要的途经点
type SummaryStepRequest struct {
	Name        string     `json:"name"`
	Nights      int        `json:"nights"`
	Description string     `json:"description"`
	Visits      []StepItem `json:"visits"`
	Activities  []StepItem `json:"activities"`
}

// GenerateSummaryRequest 摘要生成请求
type GenerateSummaryRequest struct {
	CatalogID string               `json:"catalog_id"`
	TripID    string               `json:"trip_id"`
	Title     string               `json:"title"`
	Language  string               `json:"language"`
	CacheOnly bool                 `json:"cache_only"`
	Steps     []SummaryStepRequest `json:"steps" binding:"required,min=1"`
}

// ToInput 转换为编排器输入
func (r *GenerateSummaryRequest) ToInput() generation.SummaryInput {
	steps := make([]prompt.StepSource, 0, len(r.Steps))
	for _, s := range r.Steps {
		steps = append(steps, prompt.StepSource{
			Name:        s.Name,
			Nights:      s.Nights,
			Description: s.Description,
			Visits:      itemTexts(s.Visits),
			Activities:  itemTexts(s.Activities),
		})
	}
	return generation.SummaryInput{
		CatalogID: r.CatalogID,
		TripID:    r.TripID,
		Title:     r.Title,
		Language:  r.Language,
		CacheOnly: r.CacheOnly,
		Steps:     steps,
	}
}

func itemTexts(items []StepItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it.Text != "" {
			out = append(out, it.Text)
		}
	}
	return out
}

// QuotaUsageResponse 配额用量
type QuotaUsageResponse struct {
	Class     string           `json:"class"`
	Limits    map[string]int64 `json:"limits"`
	Used      map[string]int64 `json:"used"`
	VIPBypass bool             `json:"vip_bypass,omitempty"`
}

// NewQuotaUsageResponse 从预扣结果构建用量响应
func NewQuotaUsageResponse(res *quota.Reservation) *QuotaUsageResponse {
	if res == nil {
		return nil
	}
	limits := make(map[string]int64, len(res.Limits))
	for period, limit := range res.Limits {
		limits[string(period)] = limit
	}
	used := make(map[string]int64, len(res.Used))
	for period, count := range res.Used {
		used[string(period)] = count
	}
	return &QuotaUsageResponse{
		Class:     string(res.Class),
		Limits:    limits,
		Used:      used,
		VIPBypass: res.VIPBypass,
	}
}

// GenerateSummaryResponse 摘要生成响应
type GenerateSummaryResponse struct {
	Review    []string             `json:"review"`
	Steps     []entity.SummaryStep `json:"steps"`
	FromCache bool                 `json:"from_cache"`
	Model     string               `json:"model,omitempty"`
	Usage     *QuotaUsageResponse  `json:"usage,omitempty"`
}

// NewGenerateSummaryResponse 从编排器输出构建响应
func NewGenerateSummaryResponse(out *generation.SummaryOutput) *GenerateSummaryResponse {
	return &GenerateSummaryResponse{
		Review:    out.Summary.Review,
		Steps:     out.Summary.Steps,
		FromCache: out.FromCache,
		Model:     out.Model,
		Usage:     NewQuotaUsageResponse(out.Usage),
	}
}
