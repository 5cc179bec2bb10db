package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"ort-ai-api/internal/config"
	"ort-ai-api/internal/domain/entity"
)

type fakeStore struct {
	data   map[string][]byte
	getErr error
	setErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]byte)}
}

func (f *fakeStore) Get(ctx context.Context, key string, out any) (bool, error) {
	if f.getErr != nil {
		return false, f.getErr
	}
	raw, ok := f.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (f *fakeStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.data[key] = raw
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	delete(f.data, key)
	return nil
}

func completeSummary() *entity.StructuredArtifact {
	return &entity.StructuredArtifact{
		Kind: entity.KindSummary,
		Summary: &entity.SummaryArtifact{
			Review: []string{"plus", "minus", "verdict"},
			Steps:  []entity.SummaryStep{{Day: 1, City: "Nice"}},
		},
	}
}

func newTestCascade(store *fakeStore) *Cascade {
	return NewCascade(store, &config.CacheConfig{TripTTL: time.Hour})
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"corse-sud-7j-fr", "corse-sud-7j-fr"},
		{"trip 42/été!", "trip_42_t_"},
		{"a..b__c", "a..b__c"},
		{"", ""},
		{strings.Repeat("x", 300), strings.Repeat("x", 200)},
	}
	for _, tt := range tests {
		if got := SanitizeKey(tt.in); got != tt.want {
			t.Errorf("SanitizeKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	// 幂等
	if SanitizeKey(SanitizeKey("a b c")) != SanitizeKey("a b c") {
		t.Error("SanitizeKey not idempotent")
	}
}

func TestNormalizeCatalogKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"corse-sud-7j-fr", "corse-sud-7j"},
		{"corse-sud-7j-en", "corse-sud-7j"},
		{"corse-sud-7j-ar", "corse-sud-7j"},
		{"corse-sud-7j-FR", "corse-sud-7j"},
		{"corse-sud-7j-En", "corse-sud-7j"},
		{"corse-sud-7j", "corse-sud-7j"},
		{"corse-sud-7j-de", "corse-sud-7j-de"},
		{"provence-fr-fr", "provence-fr"},
	}
	for _, tt := range tests {
		if got := NormalizeCatalogKey(tt.in); got != tt.want {
			t.Errorf("NormalizeCatalogKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLookupSharedBeforePrivate(t *testing.T) {
	store := newFakeStore()
	c := newTestCascade(store)
	ctx := context.Background()

	c.Store(ctx, "catalog-key", "trip-key", completeSummary(), "model-a", "fr")

	entry, ok := c.Lookup(ctx, "catalog-key", "trip-key")
	if !ok {
		t.Fatal("expected hit")
	}
	if entry.Tier != entity.TierShared {
		t.Errorf("expected shared tier hit first, got %s", entry.Tier)
	}
	if entry.ProducedByModel != "model-a" {
		t.Errorf("model = %q", entry.ProducedByModel)
	}
}

func TestLookupFallsBackToPrivate(t *testing.T) {
	store := newFakeStore()
	c := newTestCascade(store)
	ctx := context.Background()

	c.Store(ctx, "", "trip-key", completeSummary(), "model-a", "fr")

	entry, ok := c.Lookup(ctx, "other-catalog", "trip-key")
	if !ok {
		t.Fatal("expected private tier hit")
	}
	if entry.Tier != entity.TierPrivate {
		t.Errorf("tier = %s", entry.Tier)
	}
}

func TestLookupIncompleteEntryIsMiss(t *testing.T) {
	store := newFakeStore()
	c := newTestCascade(store)
	ctx := context.Background()

	bad := entity.CacheEntry{
		Tier:     entity.TierShared,
		Key:      "k",
		Artifact: entity.StructuredArtifact{Kind: entity.KindSummary, Summary: &entity.SummaryArtifact{}},
	}
	raw, _ := json.Marshal(&bad)
	store.data["cache:catalog:k"] = raw

	if _, ok := c.Lookup(ctx, "k", ""); ok {
		t.Fatal("incomplete entry must be treated as a miss")
	}
}

func TestLookupReadErrorIsMiss(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("redis down")
	c := newTestCascade(store)

	if _, ok := c.Lookup(context.Background(), "k", "p"); ok {
		t.Fatal("read error must degrade to a miss")
	}
}

func TestStoreSkipsIncompleteArtifact(t *testing.T) {
	store := newFakeStore()
	c := newTestCascade(store)

	c.Store(context.Background(), "k", "p", &entity.StructuredArtifact{Kind: entity.KindSummary}, "m", "fr")
	if len(store.data) != 0 {
		t.Errorf("incomplete artifact must not be cached, got %v", store.data)
	}
}

func TestStoreSameKeyWritesSharedOnly(t *testing.T) {
	store := newFakeStore()
	c := newTestCascade(store)

	c.Store(context.Background(), "same", "same", completeSummary(), "m", "fr")
	if _, ok := store.data["cache:catalog:same"]; !ok {
		t.Error("expected shared write")
	}
	if _, ok := store.data["cache:trip:same"]; ok {
		t.Error("identical private key must not duplicate the entry")
	}
}

func TestStoreWriteErrorIsSwallowed(t *testing.T) {
	store := newFakeStore()
	store.setErr = errors.New("redis down")
	c := newTestCascade(store)

	// 写失败只记日志，不应 panic 也不应阻断调用方
	c.Store(context.Background(), "k", "p", completeSummary(), "m", "fr")
}
