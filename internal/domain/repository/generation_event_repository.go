package repository

import (
	"context"

	"ort-ai-api/internal/domain/entity"
)

// GenerationEventRepository 生成审计事件存储
type GenerationEventRepository interface {
	Record(ctx context.Context, event *entity.GenerationEvent) error
}
