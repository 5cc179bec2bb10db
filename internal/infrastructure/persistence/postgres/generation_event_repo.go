package postgres

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"ort-ai-api/internal/domain/entity"
	"ort-ai-api/internal/domain/repository"
)

// GenerationEventRepo 生成审计事件的 PostgreSQL 实现
type GenerationEventRepo struct {
	client *Client
}

// NewGenerationEventRepo 创建审计事件存储
func NewGenerationEventRepo(client *Client) repository.GenerationEventRepository {
	return &GenerationEventRepo{client: client}
}

// Record 写入一条审计事件
func (r *GenerationEventRepo) Record(ctx context.Context, event *entity.GenerationEvent) error {
	ctx, span := tracer.Start(ctx, "postgres.RecordGenerationEvent")
	span.SetAttributes(
		attribute.String("event.kind", string(event.Kind)),
		attribute.String("event.outcome", string(event.Outcome)),
	)
	defer span.End()

	const query = `
		INSERT INTO generation_events
			(id, user_id, kind, cache_key, language, outcome, provider, model, attempts, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.client.db.ExecContext(ctx, query,
		event.ID, event.UserID, string(event.Kind), event.CacheKey, event.Language,
		string(event.Outcome), event.Provider, event.Model, event.Attempts,
		event.DurationMs, event.CreatedAt,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("insert generation event: %w", err)
	}
	return nil
}

// EnsureSchema 创建审计表（幂等）
func (r *GenerationEventRepo) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS generation_events (
			id          UUID PRIMARY KEY,
			user_id     TEXT NOT NULL,
			kind        TEXT NOT NULL,
			cache_key   TEXT NOT NULL,
			language    TEXT NOT NULL DEFAULT '',
			outcome     TEXT NOT NULL,
			provider    TEXT NOT NULL DEFAULT '',
			model       TEXT NOT NULL DEFAULT '',
			attempts    INT NOT NULL DEFAULT 0,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_generation_events_user_created
			ON generation_events (user_id, created_at DESC);`

	if _, err := r.client.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure generation_events schema: %w", err)
	}
	return nil
}
