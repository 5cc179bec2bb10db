package llm

import "context"

// CompletionRequest 一次补全请求
type CompletionRequest struct {
	System string
	Prompt string
}

// Provider 大模型供应商：固定模型，单条提示进、文本出
type Provider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ModelLister 支持动态发现可用模型的供应商
type ModelLister interface {
	// ListModels 返回按优先级排序的候选模型 ID
	ListModels(ctx context.Context) ([]string, error)
}

// PoolProvider 支持指定模型调用的供应商（用于候选池遍历）
type PoolProvider interface {
	Provider
	ModelLister
	CompleteWithModel(ctx context.Context, model string, req CompletionRequest) (string, error)
}
