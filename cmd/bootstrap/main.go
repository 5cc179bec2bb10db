// Package main 数据库初始化工具：创建审计事件表
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"ort-ai-api/internal/config"
	"ort-ai-api/internal/infrastructure/persistence/postgres"
	"ort-ai-api/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
		cfg.App.Name+"-bootstrap",
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := postgres.NewClient(&cfg.Store.Postgres)
	if err != nil {
		logger.Fatal(ctx, "failed to connect postgres", err)
	}
	defer client.Close()

	repo := postgres.NewGenerationEventRepo(client).(*postgres.GenerationEventRepo)
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Fatal(ctx, "failed to ensure schema", err)
	}

	logger.Info(ctx, "bootstrap completed")
}
