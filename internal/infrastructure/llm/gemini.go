package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	"ort-ai-api/internal/config"
	"ort-ai-api/pkg/metrics"
)

// GeminiProvider Gemini 主供应商
type GeminiProvider struct {
	client *genai.Client
	cfg    *config.GeminiConfig
}

// NewGeminiProvider 创建 Gemini 供应商
func NewGeminiProvider(cfg *config.GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		cfg:    cfg,
	}, nil
}

// Name 供应商标识
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Model 固定模型 ID
func (p *GeminiProvider) Model() string {
	return p.cfg.Model
}

// Complete 发送提示并返回合并后的文本
func (p *GeminiProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	genCfg := &genai.GenerateContentConfig{
		MaxOutputTokens: p.cfg.MaxOutputTokens,
		Temperature:     genai.Ptr(p.cfg.Temperature),
	}
	if req.System != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	start := time.Now()
	resp, err := p.client.Models.GenerateContent(ctx, p.cfg.Model, genai.Text(req.Prompt), genCfg)
	metrics.LLMCallDuration.WithLabelValues(p.Name(), p.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMCallTotal.WithLabelValues(p.Name(), p.cfg.Model, "error").Inc()
		return "", p.wrapError(err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		metrics.LLMCallTotal.WithLabelValues(p.Name(), p.cfg.Model, "empty").Inc()
		return "", &ProviderError{Provider: p.Name(), Err: errors.New("no candidates returned")}
	}

	var content string
	if resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text != "" {
				content += part.Text
			}
		}
	}
	if content == "" {
		metrics.LLMCallTotal.WithLabelValues(p.Name(), p.cfg.Model, "empty").Inc()
		return "", &ProviderError{Provider: p.Name(), Err: errors.New("empty response text")}
	}

	metrics.LLMCallTotal.WithLabelValues(p.Name(), p.cfg.Model, "ok").Inc()
	return content, nil
}

func (p *GeminiProvider) wrapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{Provider: p.Name(), Status: apiErr.Code, Err: err}
	}
	return &ProviderError{Provider: p.Name(), Err: err}
}
