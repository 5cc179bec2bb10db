package generation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	appcache "ort-ai-api/internal/application/cache"
	"ort-ai-api/internal/application/quota"
	"ort-ai-api/internal/domain/entity"
	"ort-ai-api/internal/domain/repository"
	"ort-ai-api/internal/infrastructure/fetcher"
	"ort-ai-api/internal/infrastructure/llm"
	"ort-ai-api/internal/workflow/prompt"
	apperrors "ort-ai-api/pkg/errors"
	"ort-ai-api/pkg/logger"
	"ort-ai-api/pkg/metrics"
)

// Orchestrator 生成编排器：缓存级联 → 配额账本 → 供应商链 → 落库
type Orchestrator struct {
	ledger  *quota.Ledger
	cache   *appcache.Cascade
	chain   *Chain
	fetcher *fetcher.Fetcher
	prompts *prompt.Registry
	events  repository.GenerationEventRepository
	now     func() time.Time
}

// NewOrchestrator 创建编排器
func NewOrchestrator(
	ledger *quota.Ledger,
	cascade *appcache.Cascade,
	chain *Chain,
	f *fetcher.Fetcher,
	prompts *prompt.Registry,
	events repository.GenerationEventRepository,
) *Orchestrator {
	return &Orchestrator{
		ledger:  ledger,
		cache:   cascade,
		chain:   chain,
		fetcher: f,
		prompts: prompts,
		events:  events,
		now:     time.Now,
	}
}

// SummaryInput 摘要生成请求
type SummaryInput struct {
	CatalogID string
	TripID    string
	Title     string
	Language  string
	CacheOnly bool
	Steps     []prompt.StepSource
}

// SummaryOutput 摘要生成结果
type SummaryOutput struct {
	Summary   *entity.SummaryArtifact
	FromCache bool
	Model     string
	Usage     *quota.Reservation
}

// GenerateSummary 生成或返回缓存的行程摘要。
// 流程：缓存级联探测 → (cacheOnly 短路) → 配额预扣 → 供应商链 → 双层落库。
func (o *Orchestrator) GenerateSummary(ctx context.Context, userID, email string, in SummaryInput) (*SummaryOutput, error) {
	start := o.now()

	lang := in.Language
	if lang == "" {
		lang = "fr"
	}

	var sharedKey, privateKey string
	if in.CatalogID != "" {
		sharedKey = appcache.NormalizeCatalogKey(in.CatalogID)
	}
	if in.TripID != "" {
		privateKey = appcache.SanitizeKey(in.TripID)
	}

	// 1) 缓存级联
	if entry, ok := o.cache.Lookup(ctx, sharedKey, privateKey); ok {
		o.finish(ctx, userID, entity.KindSummary, sharedKey, lang, entity.OutcomeCacheHit, "", entry.ProducedByModel, 0, start)
		return &SummaryOutput{
			Summary:   entry.Artifact.Summary,
			FromCache: true,
			Model:     entry.ProducedByModel,
		}, nil
	}

	// 2) 仅探测模式：未命中即返回否定结果
	if in.CacheOnly {
		o.finish(ctx, userID, entity.KindSummary, sharedKey, lang, entity.OutcomeNoCache, "", "", 0, start)
		return nil, apperrors.ErrNoCachedResult
	}

	// 3) 配额预扣（生成失败不回滚）
	usage, err := o.ledger.CheckAndReserve(ctx, userID, email, entity.ClassSummary)
	if err != nil {
		var exceeded quota.ExceededError
		if errors.As(err, &exceeded) {
			o.finish(ctx, userID, entity.KindSummary, sharedKey, lang, entity.OutcomeQuotaDenied, "", "", 0, start)
			return &SummaryOutput{Usage: exceeded.Reservation()}, apperrors.ErrQuotaExceeded.WithDetail(exceeded.Error())
		}
		return nil, apperrors.Wrap(err, apperrors.CodeStoreError, "quota check failed")
	}

	// 4) 供应商链
	title := in.Title
	if title == "" {
		title = "Road Trip"
	}
	userPrompt, err := o.prompts.BuildSummaryPrompt(title, prompt.StepsText(in.Steps), lang)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternalError, "build prompt failed")
	}

	result, err := o.chain.Generate(ctx, entity.KindSummary, llm.CompletionRequest{Prompt: userPrompt})
	if err != nil {
		var exhausted ExhaustedError
		if errors.As(err, &exhausted) {
			o.finish(ctx, userID, entity.KindSummary, sharedKey, lang, entity.OutcomeUnavailable, "", "", len(exhausted.Attempts), start)
			// 配额已扣，回传用量供前端提示
			return &SummaryOutput{Usage: usage}, apperrors.ErrGenerationUnavailable.WithError(err)
		}
		o.finish(ctx, userID, entity.KindSummary, sharedKey, lang, entity.OutcomeError, "", "", 0, start)
		return nil, err
	}

	// 5) 双层落库，尽力而为
	o.cache.Store(ctx, sharedKey, privateKey, result.Artifact, result.Model, lang)

	o.finish(ctx, userID, entity.KindSummary, sharedKey, lang, entity.OutcomeGenerated, result.Provider, result.Model, result.Attempts, start)
	return &SummaryOutput{
		Summary: result.Artifact.Summary,
		Model:   result.Model,
		Usage:   usage,
	}, nil
}

// ParseURLInput 链接解析请求
type ParseURLInput struct {
	URL       string
	Language  string
	CacheOnly bool
}

// ParseURLOutput 链接解析结果
type ParseURLOutput struct {
	Itinerary *entity.ItineraryArtifact
	Places    []entity.Place
	FromCache bool
	Model     string
	Usage     *quota.Reservation
}

// urlCacheKey 链接解析结果的私有层键：URL 哈希 + 语言
func urlCacheKey(rawURL, lang string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return fmt.Sprintf("url_%s_%s", hex.EncodeToString(sum[:])[:40], lang)
}

// ParseURL 抓取外部行程页面并解析为结构化行程。
// 同一 URL 同一语言的结果走私有层缓存，不占配额。
func (o *Orchestrator) ParseURL(ctx context.Context, userID, email string, in ParseURLInput) (*ParseURLOutput, error) {
	start := o.now()

	if in.URL == "" {
		return nil, apperrors.ErrInvalidRequest.WithDetail("url required")
	}
	parsed, err := url.Parse(in.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, apperrors.ErrInvalidRequest.WithDetail("invalid url format")
	}

	lang := in.Language
	if lang == "" {
		lang = "en"
	}
	privateKey := urlCacheKey(in.URL, lang)

	// 1) 私有层缓存
	if entry, ok := o.cache.Lookup(ctx, "", privateKey); ok {
		o.finish(ctx, userID, entity.KindItinerary, privateKey, lang, entity.OutcomeCacheHit, "", entry.ProducedByModel, 0, start)
		return &ParseURLOutput{
			Itinerary: entry.Artifact.Itinerary,
			Places:    PlacesFromItinerary(entry.Artifact.Itinerary),
			FromCache: true,
			Model:     entry.ProducedByModel,
		}, nil
	}

	// 2) 仅探测模式：未命中即返回否定结果
	if in.CacheOnly {
		o.finish(ctx, userID, entity.KindItinerary, privateKey, lang, entity.OutcomeNoCache, "", "", 0, start)
		return nil, apperrors.ErrNoCachedResult
	}

	// 3) 配额预扣
	usage, err := o.ledger.CheckAndReserve(ctx, userID, email, entity.ClassURLParse)
	if err != nil {
		var exceeded quota.ExceededError
		if errors.As(err, &exceeded) {
			o.finish(ctx, userID, entity.KindItinerary, privateKey, lang, entity.OutcomeQuotaDenied, "", "", 0, start)
			return &ParseURLOutput{Usage: exceeded.Reservation()}, apperrors.ErrQuotaExceeded.WithDetail(exceeded.Error())
		}
		return nil, apperrors.Wrap(err, apperrors.CodeStoreError, "quota check failed")
	}

	// 4) 抓取源页面
	content, err := o.fetcher.Fetch(ctx, in.URL)
	if err != nil {
		o.finish(ctx, userID, entity.KindItinerary, privateKey, lang, entity.OutcomeError, "", "", 0, start)
		return nil, err
	}

	// 5) 供应商链
	head, err := o.prompts.BuildItineraryPrompt(lang, o.now().UTC().Format("2006-01-02"))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternalError, "build prompt failed")
	}

	result, err := o.chain.Generate(ctx, entity.KindItinerary, llm.CompletionRequest{Prompt: head + "\n" + content})
	if err != nil {
		var exhausted ExhaustedError
		if errors.As(err, &exhausted) {
			o.finish(ctx, userID, entity.KindItinerary, privateKey, lang, entity.OutcomeUnavailable, "", "", len(exhausted.Attempts), start)
			return &ParseURLOutput{Usage: usage}, apperrors.ErrGenerationUnavailable.WithError(err)
		}
		o.finish(ctx, userID, entity.KindItinerary, privateKey, lang, entity.OutcomeError, "", "", 0, start)
		return nil, err
	}

	itin := result.Artifact.Itinerary
	itin.SourceURL = in.URL
	if itin.Language == "" {
		itin.Language = lang
	}

	// 6) 私有层落库
	o.cache.Store(ctx, "", privateKey, result.Artifact, result.Model, lang)

	o.finish(ctx, userID, entity.KindItinerary, privateKey, lang, entity.OutcomeGenerated, result.Provider, result.Model, result.Attempts, start)
	return &ParseURLOutput{
		Itinerary: itin,
		Places:    PlacesFromItinerary(itin),
		Model:     result.Model,
		Usage:     usage,
	}, nil
}

// finish 上报指标并异步写审计事件
func (o *Orchestrator) finish(ctx context.Context, userID string, kind entity.ArtifactKind, cacheKey, lang string, outcome entity.GenerationOutcome, provider, model string, attempts int, start time.Time) {
	duration := o.now().Sub(start)
	metrics.GenerationTotal.WithLabelValues(string(kind), string(outcome)).Inc()
	metrics.GenerationDuration.WithLabelValues(string(kind)).Observe(duration.Seconds())

	if o.events == nil {
		return
	}
	event := &entity.GenerationEvent{
		ID:         uuid.NewString(),
		UserID:     userID,
		Kind:       kind,
		CacheKey:   cacheKey,
		Language:   lang,
		Outcome:    outcome,
		Provider:   provider,
		Model:      model,
		Attempts:   attempts,
		DurationMs: duration.Milliseconds(),
		CreatedAt:  o.now().UTC(),
	}

	// 审计写入不阻塞请求
	go func() {
		recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := o.events.Record(recordCtx, event); err != nil {
			logger.Warn(recordCtx, "审计事件写入失败", "event_id", event.ID, "error", err)
		}
	}()
}
