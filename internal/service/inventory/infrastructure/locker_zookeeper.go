package infrastructure

import (
	"context"

	"akwa/internal/zookeeper"

	"github.com/rs/zerolog/log"
)

// ZkItemLocker 基于 ZooKeeper 的跨副本 per-item 锁，
// 多副本部署时替换进程内实现。
type ZkItemLocker struct {
	conn *zookeeper.Conn
}

// NewZkItemLocker 创建 ZooKeeper 锁
func NewZkItemLocker(conn *zookeeper.Conn) *ZkItemLocker {
	return &ZkItemLocker{conn: conn}
}

// Lock 在 ZooKeeper 上获取 itemID 的排他锁
func (z *ZkItemLocker) Lock(ctx context.Context, itemID string) (func(), error) {
	lock, err := zookeeper.NewItemLock(z.conn, itemID)
	if err != nil {
		return nil, err
	}
	if err := lock.Lock(ctx); err != nil {
		return nil, err
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			log.Error().Err(err).Str("item_id", itemID).Msg("failed to release item lock")
		}
	}, nil
}
