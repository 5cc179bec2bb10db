// Package cache 提供两级结果缓存级联
package cache

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"golang.org/x/sync/errgroup"

	"ort-ai-api/internal/config"
	"ort-ai-api/internal/domain/entity"
	"ort-ai-api/internal/domain/repository"
	"ort-ai-api/pkg/logger"
	"ort-ai-api/pkg/metrics"
)

const maxKeyLen = 200

var (
	unsafeRunRe  = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	langSuffixRe = regexp.MustCompile(`(?i)-(fr|en|es|it|pt|ar)$`)
)

// SanitizeKey 把任意标识压成安全的存储键：
// 非法字符连续段折叠为单个下划线，长度上限 200。幂等。
func SanitizeKey(id string) string {
	key := unsafeRunRe.ReplaceAllString(id, "_")
	if len(key) > maxKeyLen {
		key = key[:maxKeyLen]
	}
	return key
}

// NormalizeCatalogKey 去掉目录标识尾部的语言后缀，
// 同一目录条目的各语言版本共享一个共享层键。
func NormalizeCatalogKey(id string) string {
	return SanitizeKey(langSuffixRe.ReplaceAllString(id, ""))
}

func storageKey(tier entity.CacheTier, key string) string {
	return fmt.Sprintf("cache:%s:%s", tier, key)
}

// Cascade 两级缓存级联：共享层（目录）优先，私有层（行程）兜底
type Cascade struct {
	store repository.DocumentStore
	cfg   *config.CacheConfig
}

// NewCascade 创建缓存级联
func NewCascade(store repository.DocumentStore, cfg *config.CacheConfig) *Cascade {
	return &Cascade{store: store, cfg: cfg}
}

// Lookup 依次探测共享层与私有层。
// 命中但结构不完整的条目按未命中处理；读错误降级为未命中。
func (c *Cascade) Lookup(ctx context.Context, sharedKey, privateKey string) (*entity.CacheEntry, bool) {
	if sharedKey != "" {
		if entry, ok := c.lookupTier(ctx, entity.TierShared, sharedKey); ok {
			return entry, true
		}
	}
	if privateKey != "" {
		if entry, ok := c.lookupTier(ctx, entity.TierPrivate, privateKey); ok {
			return entry, true
		}
	}
	return nil, false
}

func (c *Cascade) lookupTier(ctx context.Context, tier entity.CacheTier, key string) (*entity.CacheEntry, bool) {
	var entry entity.CacheEntry
	found, err := c.store.Get(ctx, storageKey(tier, key), &entry)
	if err != nil {
		logger.Warn(ctx, "缓存读取失败，按未命中处理", "tier", tier, "key", key, "error", err)
		metrics.CacheLookupTotal.WithLabelValues(string(tier), "error").Inc()
		return nil, false
	}
	if !found {
		metrics.CacheLookupTotal.WithLabelValues(string(tier), "miss").Inc()
		return nil, false
	}
	if !entry.Artifact.Complete() {
		metrics.CacheLookupTotal.WithLabelValues(string(tier), "incomplete").Inc()
		return nil, false
	}
	metrics.CacheLookupTotal.WithLabelValues(string(tier), "hit").Inc()
	logger.Info(ctx, "缓存命中", "tier", tier, "key", key)
	return &entry, true
}

func (c *Cascade) ttlFor(tier entity.CacheTier) time.Duration {
	if tier == entity.TierShared {
		return c.cfg.CatalogTTL
	}
	return c.cfg.TripTTL
}

// Store 把校验后的生成物写入两级缓存。
// 两层并发写、尽力而为：单层失败只记日志，不影响请求结果。
// 私有键与共享键相同则只写共享层。
func (c *Cascade) Store(ctx context.Context, sharedKey, privateKey string, artifact *entity.StructuredArtifact, model, language string) {
	if !artifact.Complete() {
		return
	}

	now := time.Now().UTC()
	write := func(tier entity.CacheTier, key string) func() error {
		return func() error {
			entry := entity.CacheEntry{
				Tier:            tier,
				Key:             key,
				Artifact:        *artifact,
				ProducedByModel: model,
				Language:        language,
				CreatedAt:       now,
			}
			if err := c.store.Set(ctx, storageKey(tier, key), &entry, c.ttlFor(tier)); err != nil {
				logger.Warn(ctx, "缓存写入失败", "tier", tier, "key", key, "error", err)
				metrics.CacheStoreTotal.WithLabelValues(string(tier), "error").Inc()
				return nil
			}
			metrics.CacheStoreTotal.WithLabelValues(string(tier), "ok").Inc()
			return nil
		}
	}

	var g errgroup.Group
	if sharedKey != "" {
		g.Go(write(entity.TierShared, sharedKey))
	}
	if privateKey != "" && privateKey != sharedKey {
		g.Go(write(entity.TierPrivate, privateKey))
	}
	_ = g.Wait()
}
