// Package wire 提供依赖装配
package wire

import (
	"context"
	"fmt"

	appcache "ort-ai-api/internal/application/cache"
	"ort-ai-api/internal/application/generation"
	"ort-ai-api/internal/application/quota"
	"ort-ai-api/internal/config"
	"ort-ai-api/internal/domain/repository"
	"ort-ai-api/internal/infrastructure/fetcher"
	"ort-ai-api/internal/infrastructure/llm"
	"ort-ai-api/internal/infrastructure/persistence/postgres"
	"ort-ai-api/internal/infrastructure/persistence/redis"
	"ort-ai-api/internal/interfaces/http/handler"
	"ort-ai-api/internal/interfaces/http/router"
	"ort-ai-api/internal/workflow/prompt"
	"ort-ai-api/pkg/logger"
)

// App 装配完成的应用
type App struct {
	Router *router.Router

	RedisClient *redis.Client
	PgClient    *postgres.Client
}

// InitializeApp 装配整个应用。
// Postgres 不可用时降级运行：审计事件丢弃，核心链路不受影响。
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	redisClient, err := redis.NewClient(&cfg.Store.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("init redis: %w", err)
	}

	cleanup := func() {
		_ = redisClient.Close()
	}

	var pgClient *postgres.Client
	var eventRepo repository.GenerationEventRepository
	if cfg.Store.Postgres.Host != "" {
		pgClient, err = postgres.NewClient(&cfg.Store.Postgres)
		if err != nil {
			logger.Warn(ctx, "postgres 初始化失败，审计事件停用", "error", err)
		} else {
			eventRepo = postgres.NewGenerationEventRepo(pgClient)
			prev := cleanup
			cleanup = func() {
				_ = pgClient.Close()
				prev()
			}
		}
	}

	// 供应商链
	primary, err := llm.NewGeminiProvider(&cfg.LLM.Gemini)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("init gemini: %w", err)
	}
	pool, err := llm.NewOpenRouterProvider(&cfg.LLM.OpenRouter)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("init openrouter: %w", err)
	}

	validator := generation.NewValidator()
	chain := generation.NewChain(primary, pool, validator, cfg.LLM.RetryBackoff)

	// 应用层
	ledger := quota.NewLedger(redis.NewQuotaCounter(redisClient), &cfg.Quota)
	cascade := appcache.NewCascade(redis.NewDocumentStore(redisClient), &cfg.Cache)
	orchestrator := generation.NewOrchestrator(
		ledger,
		cascade,
		chain,
		fetcher.New(&cfg.Fetcher),
		prompt.NewRegistry(),
		eventRepo,
	)

	// HTTP 层
	handlers := router.Handlers{
		Health:    handler.NewHealthHandler(pgClient, redisClient),
		Summary:   handler.NewSummaryHandler(orchestrator),
		Itinerary: handler.NewItineraryHandler(orchestrator),
		Quota:     handler.NewQuotaHandler(ledger),
	}

	r := router.New(cfg, handlers, redis.NewRateLimiter(redisClient))

	return &App{
		Router:      r,
		RedisClient: redisClient,
		PgClient:    pgClient,
	}, cleanup, nil
}
