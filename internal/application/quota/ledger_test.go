package quota

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ort-ai-api/internal/config"
	"ort-ai-api/internal/domain/entity"
)

type fakeCounter struct {
	counts map[string]int64
	err    error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: make(map[string]int64)}
}

func (f *fakeCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeCounter) Get(ctx context.Context, key string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[key], nil
}

func testConfig() *config.QuotaConfig {
	return &config.QuotaConfig{
		Summary:  config.SummaryQuotaConfig{MonthlyLimit: 1},
		URLParse: config.URLParseQuotaConfig{DailyLimit: 5, MonthlyLimit: 30},
	}
}

func newTestLedger(counter *fakeCounter, cfg *config.QuotaConfig) *Ledger {
	l := NewLedger(counter, cfg)
	l.now = func() time.Time {
		return time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	}
	return l
}

func TestCheckAndReserveSummary(t *testing.T) {
	counter := newFakeCounter()
	l := newTestLedger(counter, testConfig())
	ctx := context.Background()

	res, err := l.CheckAndReserve(ctx, "u1", "u1@example.com", entity.ClassSummary)
	if err != nil {
		t.Fatal(err)
	}
	if res.Used[entity.PeriodMonthly] != 1 {
		t.Errorf("expected used=1, got %d", res.Used[entity.PeriodMonthly])
	}
	if got := counter.counts["quota:u1:summary:2026-03"]; got != 1 {
		t.Errorf("expected monthly counter charged, got %d", got)
	}

	// 月度上限为 1，第二次必须拒绝
	_, err = l.CheckAndReserve(ctx, "u1", "u1@example.com", entity.ClassSummary)
	var exceeded ExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected ExceededError, got %v", err)
	}
	if exceeded.Period != entity.PeriodMonthly || exceeded.Limit != 1 {
		t.Errorf("unexpected exceeded detail: %+v", exceeded)
	}
}

func TestCheckAndReserveURLParseDualPeriod(t *testing.T) {
	counter := newFakeCounter()
	l := newTestLedger(counter, testConfig())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := l.CheckAndReserve(ctx, "u1", "", entity.ClassURLParse); err != nil {
			t.Fatalf("reservation %d failed: %v", i+1, err)
		}
	}
	if got := counter.counts["quota:u1:url_parse:2026-03-15"]; got != 5 {
		t.Errorf("daily counter = %d, want 5", got)
	}
	if got := counter.counts["quota:u1:url_parse:2026-03"]; got != 5 {
		t.Errorf("monthly counter = %d, want 5", got)
	}

	_, err := l.CheckAndReserve(ctx, "u1", "", entity.ClassURLParse)
	var exceeded ExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected ExceededError after daily limit, got %v", err)
	}
	if exceeded.Period != entity.PeriodDaily {
		t.Errorf("expected daily period denial, got %s", exceeded.Period)
	}
	// 拒绝时不得落账
	if got := counter.counts["quota:u1:url_parse:2026-03-15"]; got != 5 {
		t.Errorf("denied request must not charge, counter = %d", got)
	}
}

func TestCheckAndReserveMonthlyDenialURLParse(t *testing.T) {
	counter := newFakeCounter()
	l := newTestLedger(counter, testConfig())
	ctx := context.Background()

	// 月度已耗尽但当日为零：仍需拒绝
	counter.counts["quota:u1:url_parse:2026-03"] = 30

	_, err := l.CheckAndReserve(ctx, "u1", "", entity.ClassURLParse)
	var exceeded ExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected ExceededError, got %v", err)
	}
	if exceeded.Period != entity.PeriodMonthly {
		t.Errorf("expected monthly period denial, got %s", exceeded.Period)
	}
}

func TestCheckAndReserveBothPeriodsExhausted(t *testing.T) {
	counter := newFakeCounter()
	l := newTestLedger(counter, testConfig())
	ctx := context.Background()

	// 两个周期同时耗尽：月度先检查，拒绝必须稳定报月度
	counter.counts["quota:u1:url_parse:2026-03"] = 30
	counter.counts["quota:u1:url_parse:2026-03-15"] = 5

	for i := 0; i < 50; i++ {
		_, err := l.CheckAndReserve(ctx, "u1", "", entity.ClassURLParse)
		var exceeded ExceededError
		if !errors.As(err, &exceeded) {
			t.Fatalf("expected ExceededError, got %v", err)
		}
		if exceeded.Period != entity.PeriodMonthly {
			t.Fatalf("run %d: expected monthly denial, got %s", i, exceeded.Period)
		}
		if exceeded.Limit != 30 || exceeded.Used != 30 {
			t.Fatalf("unexpected exceeded detail: %+v", exceeded)
		}
	}
}

func TestVIPBypass(t *testing.T) {
	cfg := testConfig()
	cfg.VIPEmailHashes = []string{HashEmail("Vip@Example.COM")}
	counter := newFakeCounter()
	l := newTestLedger(counter, cfg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.CheckAndReserve(ctx, "vip1", "vip@example.com", entity.ClassSummary)
		if err != nil {
			t.Fatal(err)
		}
		if !res.VIPBypass {
			t.Fatal("expected VIPBypass")
		}
	}
	// 豁免用户不落账
	if len(counter.counts) != 0 {
		t.Errorf("VIP must not charge counters, got %v", counter.counts)
	}
}

func TestHashEmailNormalizes(t *testing.T) {
	a := HashEmail("  User@Example.com ")
	b := HashEmail("user@example.com")
	if a != b {
		t.Errorf("hash not normalized: %s != %s", a, b)
	}
	if len(a) != 64 || strings.ToLower(a) != a {
		t.Errorf("expected lowercase hex sha256, got %s", a)
	}
}

func TestCounterErrorPropagates(t *testing.T) {
	counter := newFakeCounter()
	counter.err = errors.New("redis down")
	l := newTestLedger(counter, testConfig())

	_, err := l.CheckAndReserve(context.Background(), "u1", "", entity.ClassSummary)
	if err == nil {
		t.Fatal("expected error")
	}
	var exceeded ExceededError
	if errors.As(err, &exceeded) {
		t.Fatal("store error must not surface as quota denial")
	}
}

func TestUsage(t *testing.T) {
	counter := newFakeCounter()
	counter.counts["quota:u1:url_parse:2026-03-15"] = 2
	counter.counts["quota:u1:url_parse:2026-03"] = 7
	l := newTestLedger(counter, testConfig())

	usages, err := l.Usage(context.Background(), "u1", entity.ClassURLParse)
	if err != nil {
		t.Fatal(err)
	}
	if len(usages) != 2 {
		t.Fatalf("expected 2 periods, got %d", len(usages))
	}
	byPeriod := make(map[entity.QuotaPeriod]int64)
	for _, u := range usages {
		byPeriod[u.Period] = u.Count
	}
	if byPeriod[entity.PeriodDaily] != 2 || byPeriod[entity.PeriodMonthly] != 7 {
		t.Errorf("unexpected usage: %v", byPeriod)
	}
}
