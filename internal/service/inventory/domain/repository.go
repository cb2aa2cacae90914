package domain

import (
	"context"
	"time"
)

// ItemSummary 租户级数量聚合
type ItemSummary struct {
	ProfileID      string
	ItemCount      int64
	TotalQuantity  int64
	TotalAvailable int64
	TotalReserved  int64
}

// ItemRepository 库存项持久化端口。FindByID 按租户 scoping，
// 查不到返回 ErrItemNotFound。
type ItemRepository interface {
	Save(ctx context.Context, item *Item) error
	FindByID(ctx context.Context, profileID, itemID string) (*Item, error)
	Summary(ctx context.Context, profileID string) (*ItemSummary, error)
}

// ReservationRepository 预订持久化端口
type ReservationRepository interface {
	Save(ctx context.Context, res *Reservation) error
	FindByID(ctx context.Context, id string) (*Reservation, error)
	// FindExpiredPending 返回在 now 之前到期的 Pending 预订 ID，
	// 清扫器据此逐个取锁处理
	FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]string, error)
	FindExpiringSoon(ctx context.Context, profileID string, within time.Duration) ([]*Reservation, error)
	CountOpenByItem(ctx context.Context, itemID string) (int64, error)
}

// ActionLogRepository 动作日志持久化端口。
// ListUnsynced 的排序保证同一库存项内按写入序出队。
type ActionLogRepository interface {
	Append(ctx context.Context, entry *ActionLogEntry) error
	ListUnsynced(ctx context.Context, limit int) ([]*ActionLogEntry, error)
	ListFailed(ctx context.Context, profileID string, limit int) ([]*ActionLogEntry, error)
	MarkSynced(ctx context.Context, id string) error
	MarkAttempt(ctx context.Context, id string, attempt int, at time.Time) error
	MarkFailed(ctx context.Context, id string) error
}

// AlertRepository 告警持久化端口
type AlertRepository interface {
	Save(ctx context.Context, alert *Alert) error
	ListUnresolved(ctx context.Context, profileID string) ([]*Alert, error)
}

// Repos 同一事务内可用的仓储集合
type Repos interface {
	Items() ItemRepository
	Reservations() ReservationRepository
	ActionLog() ActionLogRepository
}

// TxRunner 把 fn 放进单个数据库事务执行。
// fn 返回错误时整个事务回滚，数量变更与日志追加要么同落要么同滚。
type TxRunner interface {
	InTx(ctx context.Context, fn func(r Repos) error) error
}
