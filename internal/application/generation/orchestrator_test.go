package generation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appcache "ort-ai-api/internal/application/cache"
	"ort-ai-api/internal/application/quota"
	"ort-ai-api/internal/config"
	"ort-ai-api/internal/infrastructure/fetcher"
	"ort-ai-api/internal/workflow/prompt"
	apperrors "ort-ai-api/pkg/errors"
)

type memCounter struct {
	counts map[string]int64
}

func (m *memCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	m.counts[key]++
	return m.counts[key], nil
}

func (m *memCounter) Get(ctx context.Context, key string) (int64, error) {
	return m.counts[key], nil
}

type memStore struct {
	data map[string][]byte
}

func (m *memStore) Get(ctx context.Context, key string, out any) (bool, error) {
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (m *memStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

type orchestratorFixture struct {
	orch    *Orchestrator
	counter *memCounter
	store   *memStore
	primary *fakePrimary
}

func newOrchestratorFixture(t *testing.T, primary *fakePrimary, f *fetcher.Fetcher) *orchestratorFixture {
	t.Helper()
	counter := &memCounter{counts: make(map[string]int64)}
	store := &memStore{data: make(map[string][]byte)}

	ledger := quota.NewLedger(counter, &config.QuotaConfig{
		Summary:  config.SummaryQuotaConfig{MonthlyLimit: 1},
		URLParse: config.URLParseQuotaConfig{DailyLimit: 5, MonthlyLimit: 30},
	})
	cascade := appcache.NewCascade(store, &config.CacheConfig{TripTTL: time.Hour})
	chain := NewChain(primary, nil, NewValidator(), 0)
	chain.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	return &orchestratorFixture{
		orch:    NewOrchestrator(ledger, cascade, chain, f, prompt.NewRegistry(), nil),
		counter: counter,
		store:   store,
		primary: primary,
	}
}

func summaryInput() SummaryInput {
	return SummaryInput{
		CatalogID: "corse-sud-7j-fr",
		TripID:    "trip-42",
		Title:     "Corse du Sud",
		Language:  "fr",
		Steps:     []prompt.StepSource{{Name: "Ajaccio", Nights: 2}},
	}
}

func TestGenerateSummaryFull(t *testing.T) {
	fx := newOrchestratorFixture(t, &fakePrimary{responses: []string{validSummaryJSON}}, nil)
	ctx := context.Background()

	out, err := fx.orch.GenerateSummary(ctx, "u1", "", summaryInput())
	if err != nil {
		t.Fatal(err)
	}
	if out.FromCache {
		t.Error("first call must generate")
	}
	if out.Model != "gemini-2.0-flash" {
		t.Errorf("model = %q", out.Model)
	}
	if out.Usage == nil {
		t.Fatal("usage missing on generated result")
	}
	// 语言后缀归一化后的共享层键 + 行程私有键双写
	if _, ok := fx.store.data["cache:catalog:corse-sud-7j"]; !ok {
		t.Error("shared tier entry missing")
	}
	if _, ok := fx.store.data["cache:trip:trip-42"]; !ok {
		t.Error("private tier entry missing")
	}

	// 第二次走缓存：不调模型也不扣配额
	out2, err := fx.orch.GenerateSummary(ctx, "u2", "", summaryInput())
	if err != nil {
		t.Fatal(err)
	}
	if !out2.FromCache {
		t.Error("second call must hit cache")
	}
	if fx.primary.calls != 1 {
		t.Errorf("provider calls = %d, want 1", fx.primary.calls)
	}
	if len(fx.counter.counts) != 1 {
		t.Errorf("cache hit must not charge quota: %v", fx.counter.counts)
	}
}

func TestGenerateSummaryCacheOnlyMiss(t *testing.T) {
	fx := newOrchestratorFixture(t, &fakePrimary{}, nil)

	in := summaryInput()
	in.CacheOnly = true
	_, err := fx.orch.GenerateSummary(context.Background(), "u1", "", in)

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeNoCachedResult {
		t.Fatalf("expected no-cached-result, got %v", err)
	}
	if fx.primary.calls != 0 {
		t.Error("cache-only probe must not call providers")
	}
	if len(fx.counter.counts) != 0 {
		t.Error("cache-only probe must not charge quota")
	}
}

func TestGenerateSummaryQuotaDenied(t *testing.T) {
	fx := newOrchestratorFixture(t, &fakePrimary{responses: []string{validSummaryJSON}}, nil)
	ctx := context.Background()

	monthKey := "quota:u1:summary:" + time.Now().UTC().Format("2006-01")
	fx.counter.counts[monthKey] = 1

	out, err := fx.orch.GenerateSummary(ctx, "u1", "", summaryInput())
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeQuotaExceeded {
		t.Fatalf("expected quota exceeded, got %v", err)
	}
	if fx.primary.calls != 0 {
		t.Error("denied request must not call providers")
	}
	// 拒绝响应回传用量
	if out == nil || out.Usage == nil || out.Usage.Used["monthly"] != 1 {
		t.Errorf("denial must carry current usage, got %+v", out)
	}
}

func TestGenerateSummaryProvidersExhausted(t *testing.T) {
	fx := newOrchestratorFixture(t, &fakePrimary{errs: []error{errors.New("down")}}, nil)
	ctx := context.Background()

	out, err := fx.orch.GenerateSummary(ctx, "u1", "", summaryInput())
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeGenerationUnavailable {
		t.Fatalf("expected generation unavailable, got %v", err)
	}
	if out == nil || out.Usage == nil {
		t.Error("exhaustion must carry the already-reserved usage")
	}
	// 配额在尝试前落账，失败不回滚
	monthKey := "quota:u1:summary:" + time.Now().UTC().Format("2006-01")
	if fx.counter.counts[monthKey] != 1 {
		t.Errorf("quota must stay charged after failure, got %d", fx.counter.counts[monthKey])
	}
}

const validItineraryJSON = `{"itins": [{
	"title": "Corse",
	"days_plan": [{"night": {"place_id": "FR::ajaccio"}}]
}]}`

func TestParseURLFull(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><p>Sept jours en Corse du Sud, d'Ajaccio à Bonifacio par la montagne.</p></body></html>"))
	}))
	defer srv.Close()

	f := fetcher.New(&config.FetcherConfig{
		Timeout:         5 * time.Second,
		MaxContentChars: 30000,
		MinContentChars: 20,
		UserAgent:       "test-agent",
	})
	fx := newOrchestratorFixture(t, &fakePrimary{responses: []string{validItineraryJSON}}, f)
	ctx := context.Background()

	out, err := fx.orch.ParseURL(ctx, "u1", "", ParseURLInput{URL: srv.URL, Language: "fr"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Itinerary.SourceURL != srv.URL {
		t.Errorf("source_url = %q", out.Itinerary.SourceURL)
	}
	if out.Itinerary.Language != "fr" {
		t.Errorf("language = %q", out.Itinerary.Language)
	}
	if len(out.Places) != 1 || out.Places[0].Name != "Ajaccio" {
		t.Errorf("places = %+v", out.Places)
	}
	// 结果只进私有层
	for key := range fx.store.data {
		if key[:len("cache:trip:")] != "cache:trip:" {
			t.Errorf("unexpected cache key %q", key)
		}
	}

	// 同一 URL 同一语言第二次走缓存
	out2, err := fx.orch.ParseURL(ctx, "u1", "", ParseURLInput{URL: srv.URL, Language: "fr"})
	if err != nil {
		t.Fatal(err)
	}
	if !out2.FromCache {
		t.Error("second parse must hit cache")
	}
	if fx.primary.calls != 1 {
		t.Errorf("provider calls = %d, want 1", fx.primary.calls)
	}
}

func TestParseURLCacheOnlyMiss(t *testing.T) {
	fx := newOrchestratorFixture(t, &fakePrimary{}, nil)

	_, err := fx.orch.ParseURL(context.Background(), "u1", "", ParseURLInput{
		URL:       "https://example.com/trip",
		Language:  "fr",
		CacheOnly: true,
	})
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeNoCachedResult {
		t.Fatalf("expected no-cached-result, got %v", err)
	}
	if len(fx.counter.counts) != 0 {
		t.Error("cache-only probe must not charge quota")
	}
}

func TestParseURLInvalid(t *testing.T) {
	fx := newOrchestratorFixture(t, &fakePrimary{}, nil)

	for _, raw := range []string{"", "notaurl", "ftp://example.com/x", "http://"} {
		_, err := fx.orch.ParseURL(context.Background(), "u1", "", ParseURLInput{URL: raw})
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeInvalidRequest {
			t.Errorf("url %q: expected invalid request, got %v", raw, err)
		}
	}
}
