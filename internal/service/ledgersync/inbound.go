package ledgersync

import (
	"context"
	"time"

	"akwa/internal/service/ledger"

	"github.com/rs/zerolog/log"
)

// Invalidator 权限缓存的失效端口
type Invalidator interface {
	Invalidate(ctx context.Context, actor, capability string) error
}

// AuditRecorder 权限事件的审计端口，可为 nil
type AuditRecorder interface {
	Record(ctx context.Context, actor, capability string, granted bool, at time.Time) error
}

// Inbound 消费账本的权限变更事件: 先失效缓存条目，
// 再落一条审计记录。失效失败只记日志，事件不重放，
// 缓存条目最迟在 TTL 到期后收敛。
type Inbound struct {
	events <-chan ledger.PermissionEvent
	cache  Invalidator
	audit  AuditRecorder
}

// NewInbound 创建入站事件消费循环
func NewInbound(events <-chan ledger.PermissionEvent, cache Invalidator, audit AuditRecorder) *Inbound {
	return &Inbound{events: events, cache: cache, audit: audit}
}

// Run 阻塞消费事件，直到 ctx 取消或事件流关闭
func (i *Inbound) Run(ctx context.Context) {
	log.Info().Msg("permission event consumer started")
	for {
		select {
		case event, ok := <-i.events:
			if !ok {
				log.Info().Msg("permission event stream closed")
				return
			}
			i.handle(ctx, event)
		case <-ctx.Done():
			log.Info().Msg("permission event consumer shutting down")
			return
		}
	}
}

func (i *Inbound) handle(ctx context.Context, event ledger.PermissionEvent) {
	if err := i.cache.Invalidate(ctx, event.Actor, event.Capability); err != nil {
		log.Warn().Err(err).Str("actor", event.Actor).Str("capability", event.Capability).
			Msg("failed to invalidate permission cache entry")
	} else {
		log.Info().Str("actor", event.Actor).Str("capability", event.Capability).
			Bool("granted", event.Granted).Msg("permission cache entry invalidated")
	}

	if i.audit != nil {
		if err := i.audit.Record(ctx, event.Actor, event.Capability, event.Granted, time.Now()); err != nil {
			log.Warn().Err(err).Str("actor", event.Actor).Msg("failed to record permission audit")
		}
	}
}
