package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ort-ai-api/internal/domain/repository"
)

// DocumentStore 基于 Redis 的 JSON 文档存储
type DocumentStore struct {
	client *Client
}

// NewDocumentStore 创建文档存储
func NewDocumentStore(client *Client) repository.DocumentStore {
	return &DocumentStore{client: client}
}

// Get 读取并反序列化文档，未命中返回 (false, nil)
func (s *DocumentStore) Get(ctx context.Context, key string, out any) (bool, error) {
	raw, err := s.client.Get(ctx, key)
	if err != nil {
		if IsNil(err) {
			return false, nil
		}
		return false, fmt.Errorf("get document %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("decode document %s: %w", key, err)
	}
	return true, nil
}

// Set 序列化并写入文档，ttl 为 0 表示不过期
func (s *DocumentStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("set document %s: %w", key, err)
	}
	return nil
}

// Delete 删除文档
func (s *DocumentStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key)
}

// QuotaCounter 基于 Redis 的配额计数器
type QuotaCounter struct {
	client *Client
}

// NewQuotaCounter 创建配额计数器
func NewQuotaCounter(client *Client) repository.Counter {
	return &QuotaCounter{client: client}
}

// Incr 原子自增，首次创建时设置过期
func (c *QuotaCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return c.client.IncrWithTTL(ctx, key, ttl)
}

// Get 读取计数，不存在返回 0
func (c *QuotaCounter) Get(ctx context.Context, key string) (int64, error) {
	raw, err := c.client.Get(ctx, key)
	if err != nil {
		if IsNil(err) {
			return 0, nil
		}
		return 0, err
	}
	var n int64
	if _, err := fmt.Sscanf(raw, "%d", &n); err != nil {
		return 0, fmt.Errorf("parse counter %s: %w", key, err)
	}
	return n, nil
}
