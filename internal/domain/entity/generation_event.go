package entity

import "time"

// GenerationOutcome 生成请求的最终结果
type GenerationOutcome string

const (
	OutcomeCacheHit    GenerationOutcome = "cache_hit"
	OutcomeGenerated   GenerationOutcome = "generated"
	OutcomeNoCache     GenerationOutcome = "no_cache"
	OutcomeQuotaDenied GenerationOutcome = "quota_denied"
	OutcomeUnavailable GenerationOutcome = "unavailable"
	OutcomeError       GenerationOutcome = "error"
)

// GenerationEvent 生成请求的审计记录
type GenerationEvent struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Kind      ArtifactKind      `json:"kind"`
	CacheKey  string            `json:"cache_key"`
	Language  string            `json:"language"`
	Outcome   GenerationOutcome `json:"outcome"`
	Provider  string            `json:"provider,omitempty"`
	Model     string            `json:"model,omitempty"`
	Attempts  int               `json:"attempts"`
	DurationMs int64            `json:"duration_ms"`
	CreatedAt time.Time         `json:"created_at"`
}
