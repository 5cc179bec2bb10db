package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"ort-ai-api/internal/config"
	"ort-ai-api/pkg/logger"
	"ort-ai-api/pkg/metrics"
)

// OpenRouterProvider OpenRouter 备选供应商（OpenAI 兼容接口）
type OpenRouterProvider struct {
	client  openai.Client
	httpcli *http.Client
	cfg     *config.OpenRouterConfig
}

// NewOpenRouterProvider 创建 OpenRouter 供应商
func NewOpenRouterProvider(cfg *config.OpenRouterConfig) (*OpenRouterProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter API key is required")
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHeader("HTTP-Referer", cfg.Referer),
		option.WithHeader("X-Title", "OneRoadTrip"),
	)

	return &OpenRouterProvider{
		client:  client,
		httpcli: &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
	}, nil
}

// Name 供应商标识
func (p *OpenRouterProvider) Name() string {
	return "openrouter"
}

// Model 默认模型（候选池首个优先模型）
func (p *OpenRouterProvider) Model() string {
	if len(p.cfg.PreferredModels) > 0 {
		return p.cfg.PreferredModels[0]
	}
	return ""
}

// Complete 使用默认模型补全
func (p *OpenRouterProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return p.CompleteWithModel(ctx, p.Model(), req)
}

// CompleteWithModel 使用指定模型补全
func (p *OpenRouterProvider) CompleteWithModel(ctx context.Context, model string, req CompletionRequest) (string, error) {
	if model == "" {
		return "", &ProviderError{Provider: p.Name(), Err: errors.New("no model specified")}
	}
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(p.cfg.MaxTokens),
		Temperature:         openai.Float(p.cfg.Temperature),
	})
	metrics.LLMCallDuration.WithLabelValues(p.Name(), model).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMCallTotal.WithLabelValues(p.Name(), model, "error").Inc()
		return "", p.wrapError(err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		metrics.LLMCallTotal.WithLabelValues(p.Name(), model, "empty").Inc()
		return "", &ProviderError{Provider: p.Name(), Err: errors.New("empty response")}
	}

	metrics.LLMCallTotal.WithLabelValues(p.Name(), model, "ok").Inc()
	return resp.Choices[0].Message.Content, nil
}

// openRouter 的模型目录响应带 context_length 与 pricing 扩展字段，
// openai-go 的模型类型不含这些字段，这里直接走 HTTP 读取
type modelCatalog struct {
	Data []modelEntry `json:"data"`
}

type modelEntry struct {
	ID            string `json:"id"`
	ContextLength int64  `json:"context_length"`
	Pricing       struct {
		Prompt     string `json:"prompt"`
		Completion string `json:"completion"`
	} `json:"pricing"`
}

func (m *modelEntry) free() bool {
	if strings.HasSuffix(m.ID, ":free") {
		return true
	}
	return m.Pricing.Prompt == "0" && m.Pricing.Completion == "0"
}

// ListModels 发现可用的免费候选模型：
// 优先模型排前，其余按目录顺序补足，上下文长度不足的剔除。
func (p *OpenRouterProvider) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimSuffix(p.cfg.BaseURL, "/")+"/models", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.httpcli.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Temporary: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &ProviderError{
			Provider: p.Name(),
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("list models: %s", strings.TrimSpace(string(body))),
		}
	}

	var catalog modelCatalog
	if err := json.NewDecoder(resp.Body).Decode(&catalog); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("decode model catalog: %w", err)}
	}

	eligible := make(map[string]bool, len(catalog.Data))
	var rest []string
	for i := range catalog.Data {
		m := &catalog.Data[i]
		if !m.free() || m.ContextLength < int64(p.cfg.MinContextLength) {
			continue
		}
		eligible[m.ID] = true
		rest = append(rest, m.ID)
	}

	var models []string
	seen := make(map[string]bool)
	for _, id := range p.cfg.PreferredModels {
		if eligible[id] && !seen[id] {
			models = append(models, id)
			seen[id] = true
		}
	}
	for _, id := range rest {
		if len(models) >= p.cfg.MaxModels {
			break
		}
		if !seen[id] {
			models = append(models, id)
			seen[id] = true
		}
	}

	logger.Debug(ctx, "openrouter 模型发现完成", "eligible", len(eligible), "selected", len(models))
	return models, nil
}

func (p *OpenRouterProvider) wrapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &ProviderError{Provider: p.Name(), Status: apiErr.StatusCode, Err: err}
	}
	return &ProviderError{Provider: p.Name(), Err: err}
}
