package generation

import (
	"context"
	"errors"
	"testing"
	"time"

	"ort-ai-api/internal/domain/entity"
	"ort-ai-api/internal/infrastructure/llm"
)

const validSummaryJSON = `{"review": ["p", "m", "v"], "steps": [{"day": 1, "city": "Nice"}]}`

type fakePrimary struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakePrimary) Name() string  { return "gemini" }
func (f *fakePrimary) Model() string { return "gemini-2.0-flash" }

func (f *fakePrimary) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", errors.New("no scripted response")
}

type fakePool struct {
	models    []string
	listErr   error
	responses map[string]string
	errs      map[string]error
	called    []string
}

func (f *fakePool) Name() string  { return "openrouter" }
func (f *fakePool) Model() string { return "" }

func (f *fakePool) ListModels(ctx context.Context) ([]string, error) {
	return f.models, f.listErr
}

func (f *fakePool) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	return "", errors.New("pool requires explicit model")
}

func (f *fakePool) CompleteWithModel(ctx context.Context, model string, req llm.CompletionRequest) (string, error) {
	f.called = append(f.called, model)
	if err, ok := f.errs[model]; ok {
		return "", err
	}
	if resp, ok := f.responses[model]; ok {
		return resp, nil
	}
	return "", errors.New("model unavailable")
}

func newTestChain(primary llm.Provider, pool llm.PoolProvider) (*Chain, *[]time.Duration) {
	c := NewChain(primary, pool, NewValidator(), 3*time.Second)
	var slept []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return c, &slept
}

func transientErr() error {
	return &llm.ProviderError{Provider: "gemini", Status: 503}
}

func TestGeneratePrimarySucceeds(t *testing.T) {
	primary := &fakePrimary{responses: []string{validSummaryJSON}}
	c, slept := newTestChain(primary, nil)

	res, err := c.Generate(context.Background(), entity.KindSummary, llm.CompletionRequest{Prompt: "p"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Provider != "gemini" || res.Attempts != 1 {
		t.Errorf("provider=%s attempts=%d", res.Provider, res.Attempts)
	}
	if len(*slept) != 0 {
		t.Error("no backoff expected on first success")
	}
}

func TestGeneratePrimaryRetriesOnceOnTransient(t *testing.T) {
	primary := &fakePrimary{
		errs:      []error{transientErr(), nil},
		responses: []string{"", validSummaryJSON},
	}
	c, slept := newTestChain(primary, nil)

	res, err := c.Generate(context.Background(), entity.KindSummary, llm.CompletionRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if primary.calls != 2 {
		t.Errorf("calls = %d, want 2", primary.calls)
	}
	if len(*slept) != 1 || (*slept)[0] != 3*time.Second {
		t.Errorf("expected one 3s backoff, got %v", *slept)
	}
	if res.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", res.Attempts)
	}
}

func TestGenerateNoRetryOnPermanentError(t *testing.T) {
	primary := &fakePrimary{
		errs: []error{&llm.ProviderError{Provider: "gemini", Status: 401}},
	}
	c, slept := newTestChain(primary, nil)

	_, err := c.Generate(context.Background(), entity.KindSummary, llm.CompletionRequest{})
	var exhausted ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if primary.calls != 1 {
		t.Errorf("permanent error must not retry, calls = %d", primary.calls)
	}
	if len(*slept) != 0 {
		t.Error("no backoff on permanent error")
	}
}

func TestGenerateFallsBackToPool(t *testing.T) {
	primary := &fakePrimary{
		errs: []error{transientErr(), transientErr()},
	}
	pool := &fakePool{
		models: []string{"m1", "m2", "m3"},
		errs:   map[string]error{"m1": errors.New("boom")},
		responses: map[string]string{
			"m2": validSummaryJSON,
		},
	}
	c, _ := newTestChain(primary, pool)

	res, err := c.Generate(context.Background(), entity.KindSummary, llm.CompletionRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Provider != "openrouter" || res.Model != "m2" {
		t.Errorf("provider=%s model=%s", res.Provider, res.Model)
	}
	// 主供应商 2 次 + m1 失败 = 第 4 次尝试成功
	if res.Attempts != 4 {
		t.Errorf("attempts = %d, want 4", res.Attempts)
	}
	if len(pool.called) != 2 {
		t.Errorf("pool must stop after first success, called %v", pool.called)
	}
}

func TestGenerateMalformedResponseAdvancesChain(t *testing.T) {
	primary := &fakePrimary{responses: []string{"pas du json"}}
	pool := &fakePool{
		models:    []string{"m1"},
		responses: map[string]string{"m1": validSummaryJSON},
	}
	c, _ := newTestChain(primary, pool)

	res, err := c.Generate(context.Background(), entity.KindSummary, llm.CompletionRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Model != "m1" {
		t.Errorf("expected pool fallback after malformed primary output, got %s", res.Model)
	}
}

func TestGenerateExhausted(t *testing.T) {
	primary := &fakePrimary{errs: []error{errors.New("down")}}
	pool := &fakePool{
		models: []string{"m1", "m2"},
		errs: map[string]error{
			"m1": errors.New("a"),
			"m2": errors.New("b"),
		},
	}
	c, _ := newTestChain(primary, pool)

	_, err := c.Generate(context.Background(), entity.KindSummary, llm.CompletionRequest{})
	var exhausted ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if len(exhausted.Attempts) != 3 {
		t.Errorf("attempts recorded = %d, want 3", len(exhausted.Attempts))
	}
}

func TestGenerateListModelsFailureRecorded(t *testing.T) {
	pool := &fakePool{listErr: errors.New("discovery down")}
	c, _ := newTestChain(nil, pool)

	_, err := c.Generate(context.Background(), entity.KindSummary, llm.CompletionRequest{})
	var exhausted ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if len(exhausted.Attempts) != 1 || exhausted.Attempts[0].Provider != "openrouter" {
		t.Errorf("discovery failure must be recorded: %+v", exhausted.Attempts)
	}
}

func TestGenerateHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pool := &fakePool{models: []string{"m1"}, responses: map[string]string{"m1": validSummaryJSON}}
	c, _ := newTestChain(nil, pool)

	if _, err := c.Generate(ctx, entity.KindSummary, llm.CompletionRequest{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(pool.called) != 0 {
		t.Error("cancelled context must short-circuit pool iteration")
	}
}
