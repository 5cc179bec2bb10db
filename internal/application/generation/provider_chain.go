package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ort-ai-api/internal/domain/entity"
	"ort-ai-api/internal/infrastructure/llm"
	"ort-ai-api/pkg/logger"
)

// Attempt 链上一次失败的调用记录
type Attempt struct {
	Provider string
	Model    string
	Err      error
}

// ExhaustedError 表示链上所有候选全部失败
type ExhaustedError struct {
	Attempts []Attempt
}

func (e ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s/%s: %v", a.Provider, a.Model, a.Err))
	}
	return "all providers exhausted: " + strings.Join(parts, "; ")
}

// Result 链上一次成功生成的结果
type Result struct {
	Artifact *entity.StructuredArtifact
	Provider string
	Model    string
	Attempts int
}

// Chain 供应商链：主供应商优先，瞬时错误退避后重试一次，
// 仍失败则遍历候选池逐个尝试。响应校验失败与调用失败同等对待。
type Chain struct {
	primary   llm.Provider
	pool      llm.PoolProvider
	validator *Validator
	backoff   time.Duration

	// 测试注入
	sleep func(ctx context.Context, d time.Duration) error
}

// NewChain 创建供应商链
func NewChain(primary llm.Provider, pool llm.PoolProvider, validator *Validator, backoff time.Duration) *Chain {
	return &Chain{
		primary:   primary,
		pool:      pool,
		validator: validator,
		backoff:   backoff,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Generate 沿链生成并校验，返回第一个结构合法的生成物。
func (c *Chain) Generate(ctx context.Context, kind entity.ArtifactKind, req llm.CompletionRequest) (*Result, error) {
	var attempts []Attempt

	tryOne := func(provider, model string, call func() (string, error)) (*entity.StructuredArtifact, error) {
		raw, err := call()
		if err != nil {
			return nil, err
		}
		artifact, err := c.validator.Validate(kind, raw)
		if err != nil {
			return nil, err
		}
		return artifact, nil
	}

	// 主供应商，瞬时错误重试一次
	if c.primary != nil {
		for attempt := 0; attempt < 2; attempt++ {
			artifact, err := tryOne(c.primary.Name(), c.primary.Model(), func() (string, error) {
				return c.primary.Complete(ctx, req)
			})
			if err == nil {
				return &Result{
					Artifact: artifact,
					Provider: c.primary.Name(),
					Model:    c.primary.Model(),
					Attempts: len(attempts) + 1,
				}, nil
			}

			attempts = append(attempts, Attempt{Provider: c.primary.Name(), Model: c.primary.Model(), Err: err})
			logger.Warn(ctx, "主供应商调用失败", "provider", c.primary.Name(), "attempt", attempt+1, "error", err)

			if attempt == 0 && llm.IsTransient(err) {
				if serr := c.sleep(ctx, c.backoff); serr != nil {
					return nil, serr
				}
				continue
			}
			break
		}
	}

	// 候选池兜底
	if c.pool != nil {
		models, err := c.pool.ListModels(ctx)
		if err != nil {
			logger.Warn(ctx, "候选池模型发现失败", "provider", c.pool.Name(), "error", err)
			attempts = append(attempts, Attempt{Provider: c.pool.Name(), Err: err})
		}
		for _, model := range models {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			artifact, err := tryOne(c.pool.Name(), model, func() (string, error) {
				return c.pool.CompleteWithModel(ctx, model, req)
			})
			if err == nil {
				return &Result{
					Artifact: artifact,
					Provider: c.pool.Name(),
					Model:    model,
					Attempts: len(attempts) + 1,
				}, nil
			}
			attempts = append(attempts, Attempt{Provider: c.pool.Name(), Model: model, Err: err})
			logger.Warn(ctx, "候选模型调用失败", "provider", c.pool.Name(), "model", model, "error", err)
		}
	}

	return nil, ExhaustedError{Attempts: attempts}
}
