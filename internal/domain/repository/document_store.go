// Package repository 定义存储层接口，由 infrastructure 实现
package repository

import (
	"context"
	"time"
)

// DocumentStore 文档存储：按键存取 JSON 文档。
// Get 未命中时返回 (nil, nil)。
type DocumentStore interface {
	Get(ctx context.Context, key string, out any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Counter 计数存储：配额累加与读取。
type Counter interface {
	// Incr 原子自增并设置过期（仅首次设置），返回自增后的值
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Get 读取当前计数，键不存在时返回 0
	Get(ctx context.Context, key string) (int64, error)
}
