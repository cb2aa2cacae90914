package permission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"akwa/internal/pkg/metrics"
	"akwa/internal/service/inventory/domain"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// LedgerQuerier 是权限真值来源（外部账本）的出站端口
type LedgerQuerier interface {
	QueryPermission(ctx context.Context, actor, capability string) (bool, error)
}

// Store 是授权结果的缓存存储。生产环境用 Redis（跨副本共享），
// 测试用内存实现。
type Store interface {
	// Get 返回缓存的授权结果。第二个返回值表示是否命中。
	Get(ctx context.Context, key string) (granted bool, ok bool, err error)
	Set(ctx context.Context, key string, granted bool, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Cache 是 (actor, capability) -> bool 的权限缓存。
// 读路径必须快且可用: 命中走缓存；未命中同步回源账本一次并缓存
// 正/负两种结果；账本不可用且无缓存时默认拒绝（fail closed）。
// 缓存不是权威数据，账本事件到达时立即失效对应条目。
type Cache struct {
	store   Store
	ledger  LedgerQuerier
	ttl     time.Duration
	timeout time.Duration
	group   singleflight.Group
}

// NewCache 创建权限缓存。timeout 是单次账本回源的时间上限。
func NewCache(store Store, ledger LedgerQuerier, ttl, timeout time.Duration) *Cache {
	return &Cache{store: store, ledger: ledger, ttl: ttl, timeout: timeout}
}

func cacheKey(actor, capability string) string {
	return fmt.Sprintf("perm:%s:%s", actor, capability)
}

// IsPermitted 实现 port.PermissionChecker。调用方只会看到
// granted / denied 两种结论: 回源超时返回 ErrPermissionCheckTimeout
// （按拒绝处理），其余账本错误一律静默降级为拒绝。
func (c *Cache) IsPermitted(ctx context.Context, actor, capability string) (bool, error) {
	if !Known(capability) {
		return false, domain.ErrPermissionDenied
	}

	key := cacheKey(actor, capability)
	if granted, ok, err := c.store.Get(ctx, key); err == nil && ok {
		metrics.PermissionCacheHits.Inc()
		return granted, nil
	} else if err != nil {
		// 缓存层故障只记日志，继续走回源
		log.Warn().Err(err).Str("key", key).Msg("permission store read failed")
	}

	metrics.PermissionCacheMisses.Inc()

	// 并发的同 key 回源合并为一次账本查询
	v, err, _ := c.group.Do(key, func() (any, error) {
		queryCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			queryCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		granted, err := c.ledger.QueryPermission(queryCtx, actor, capability)
		if err != nil {
			return false, err
		}
		// 正负结果都缓存，避免反复打穿到账本
		if err := c.store.Set(ctx, key, granted, c.ttl); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("permission store write failed")
		}
		return granted, nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return false, domain.ErrPermissionCheckTimeout
		}
		// 账本不可用: 无缓存值时默认拒绝，绝不默认放行
		log.Warn().Err(err).Str("actor", actor).Str("capability", capability).
			Msg("ledger permission query failed, denying by default")
		return false, nil
	}
	return v.(bool), nil
}

// Invalidate 立即移除缓存条目，无视 TTL。
// 由同步 Worker 在观察到账本权限变更事件时调用。
func (c *Cache) Invalidate(ctx context.Context, actor, capability string) error {
	metrics.PermissionInvalidations.Inc()
	return c.store.Del(ctx, cacheKey(actor, capability))
}
