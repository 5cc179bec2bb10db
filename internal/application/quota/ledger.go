// Package quota 提供用户生成配额相关能力
package quota

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"ort-ai-api/internal/config"
	"ort-ai-api/internal/domain/entity"
	"ort-ai-api/internal/domain/repository"
	"ort-ai-api/pkg/logger"
	"ort-ai-api/pkg/metrics"
)

// ExceededError 表示用户在某周期的配额已耗尽
type ExceededError struct {
	UserID string
	Class  entity.QuotaClass
	Period entity.QuotaPeriod
	Limit  int64
	Used   int64
}

func (e ExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: user=%s class=%s period=%s used=%d limit=%d",
		e.UserID, e.Class, e.Period, e.Used, e.Limit)
}

// Reservation 把拒绝信息转成用量快照，供错误响应回传
func (e ExceededError) Reservation() *Reservation {
	return &Reservation{
		Class:  e.Class,
		Limits: map[entity.QuotaPeriod]int64{e.Period: e.Limit},
		Used:   map[entity.QuotaPeriod]int64{e.Period: e.Used},
	}
}

// Reservation 预扣结果，便于客户端展示剩余量
type Reservation struct {
	Class     entity.QuotaClass
	Limits    map[entity.QuotaPeriod]int64
	Used      map[entity.QuotaPeriod]int64
	VIPBypass bool
}

// Ledger 配额账本：检查并预扣。
// 预扣在生成尝试前落账，生成失败不回滚。
type Ledger struct {
	counter repository.Counter
	cfg     *config.QuotaConfig
	now     func() time.Time

	vipHashes map[string]bool
}

// NewLedger 创建配额账本
func NewLedger(counter repository.Counter, cfg *config.QuotaConfig) *Ledger {
	vip := make(map[string]bool, len(cfg.VIPEmailHashes))
	for _, h := range cfg.VIPEmailHashes {
		vip[strings.ToLower(h)] = true
	}
	return &Ledger{
		counter:   counter,
		cfg:       cfg,
		now:       time.Now,
		vipHashes: vip,
	}
}

// HashEmail 计算邮箱的归一化哈希（小写后 SHA-256 十六进制）
func HashEmail(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

// IsVIP 检查邮箱是否在豁免名单中
func (l *Ledger) IsVIP(email string) bool {
	if email == "" {
		return false
	}
	return l.vipHashes[HashEmail(email)]
}

type periodLimit struct {
	Period entity.QuotaPeriod
	Limit  int64
}

// limitsFor 返回按检查顺序排列的周期上限，月度先于日度
func (l *Ledger) limitsFor(class entity.QuotaClass) []periodLimit {
	switch class {
	case entity.ClassSummary:
		return []periodLimit{
			{entity.PeriodMonthly, l.cfg.Summary.MonthlyLimit},
		}
	case entity.ClassURLParse:
		return []periodLimit{
			{entity.PeriodMonthly, l.cfg.URLParse.MonthlyLimit},
			{entity.PeriodDaily, l.cfg.URLParse.DailyLimit},
		}
	default:
		return nil
	}
}

func limitMap(limits []periodLimit) map[entity.QuotaPeriod]int64 {
	m := make(map[entity.QuotaPeriod]int64, len(limits))
	for _, pl := range limits {
		m[pl.Period] = pl.Limit
	}
	return m
}

func counterKey(userID string, class entity.QuotaClass, period entity.QuotaPeriod, now time.Time) string {
	return fmt.Sprintf("quota:%s:%s:%s", userID, class, period.Key(now))
}

func counterTTL(period entity.QuotaPeriod) time.Duration {
	// 过期只需覆盖周期本身，留一天余量
	if period == entity.PeriodDaily {
		return 48 * time.Hour
	}
	return 32 * 24 * time.Hour
}

// CheckAndReserve 检查各周期余量并预扣一次。
// 任一周期耗尽返回 ExceededError，豁免用户直接放行不落账。
func (l *Ledger) CheckAndReserve(ctx context.Context, userID, email string, class entity.QuotaClass) (*Reservation, error) {
	limits := l.limitsFor(class)
	if limits == nil {
		return nil, fmt.Errorf("unknown quota class: %s", class)
	}

	if l.IsVIP(email) {
		logger.Debug(ctx, "配额豁免用户放行", "user_id", userID, "class", class)
		return &Reservation{Class: class, Limits: limitMap(limits), Used: map[entity.QuotaPeriod]int64{}, VIPBypass: true}, nil
	}

	now := l.now()
	used := make(map[entity.QuotaPeriod]int64, len(limits))

	for _, pl := range limits {
		if pl.Limit <= 0 {
			continue
		}
		count, err := l.counter.Get(ctx, counterKey(userID, class, pl.Period, now))
		if err != nil {
			return nil, fmt.Errorf("read quota counter: %w", err)
		}
		used[pl.Period] = count
		if count >= pl.Limit {
			metrics.QuotaDeniedTotal.WithLabelValues(string(class)).Inc()
			return nil, ExceededError{
				UserID: userID,
				Class:  class,
				Period: pl.Period,
				Limit:  pl.Limit,
				Used:   count,
			}
		}
	}

	for _, pl := range limits {
		if pl.Limit <= 0 {
			continue
		}
		count, err := l.counter.Incr(ctx, counterKey(userID, class, pl.Period, now), counterTTL(pl.Period))
		if err != nil {
			return nil, fmt.Errorf("reserve quota: %w", err)
		}
		used[pl.Period] = count
	}

	metrics.QuotaReservedTotal.WithLabelValues(string(class)).Inc()
	return &Reservation{Class: class, Limits: limitMap(limits), Used: used}, nil
}

// Usage 查询用户当前周期用量（不扣减）
func (l *Ledger) Usage(ctx context.Context, userID string, class entity.QuotaClass) ([]entity.QuotaUsage, error) {
	limits := l.limitsFor(class)
	if limits == nil {
		return nil, fmt.Errorf("unknown quota class: %s", class)
	}

	now := l.now()
	usages := make([]entity.QuotaUsage, 0, len(limits))
	for _, pl := range limits {
		count, err := l.counter.Get(ctx, counterKey(userID, class, pl.Period, now))
		if err != nil {
			return nil, err
		}
		usages = append(usages, entity.QuotaUsage{
			UserID:    userID,
			Class:     class,
			Period:    pl.Period,
			PeriodKey: pl.Period.Key(now),
			Count:     count,
			UpdatedAt: now.UTC(),
		})
	}
	return usages, nil
}
