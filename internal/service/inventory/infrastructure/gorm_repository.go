package infrastructure

import (
	"context"
	"errors"
	"time"

	"akwa/internal/service/inventory/domain"

	gomysql "github.com/go-sql-driver/mysql"
	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
)

const mysqlDuplicateEntry = 1062

// GormRepos 基于 GORM 的仓储集合，同时实现 domain.Repos 和
// domain.TxRunner。InTx 返回的集合绑定事务连接。
type GormRepos struct {
	db *gorm.DB
}

// NewGormRepos 创建仓储集合
func NewGormRepos(db *gorm.DB) *GormRepos {
	return &GormRepos{db: db}
}

func (g *GormRepos) Items() domain.ItemRepository           { return &gormItemRepo{db: g.db} }
func (g *GormRepos) Reservations() domain.ReservationRepository { return &gormReservationRepo{db: g.db} }
func (g *GormRepos) ActionLog() domain.ActionLogRepository  { return &gormActionLogRepo{db: g.db} }
func (g *GormRepos) Alerts() domain.AlertRepository         { return &gormAlertRepo{db: g.db} }

// InTx 在单个数据库事务中执行 fn
func (g *GormRepos) InTx(ctx context.Context, fn func(r domain.Repos) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepos{db: tx})
	})
}

type gormItemRepo struct {
	db *gorm.DB
}

func (r *gormItemRepo) Save(ctx context.Context, item *domain.Item) error {
	if err := r.db.WithContext(ctx).Save(itemToModel(item)).Error; err != nil {
		return pkgerrors.Wrap(err, "failed to save inventory item")
	}
	return nil
}

func (r *gormItemRepo) FindByID(ctx context.Context, profileID, itemID string) (*domain.Item, error) {
	var m ItemModel
	err := r.db.WithContext(ctx).
		Where("id = ? AND profile_id = ?", itemID, profileID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrItemNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to query inventory item")
	}
	return itemToDomain(&m), nil
}

func (r *gormItemRepo) Summary(ctx context.Context, profileID string) (*domain.ItemSummary, error) {
	var row struct {
		ItemCount      int64
		TotalQuantity  int64
		TotalAvailable int64
		TotalReserved  int64
	}
	err := r.db.WithContext(ctx).Model(&ItemModel{}).
		Select("COUNT(*) AS item_count, "+
			"COALESCE(SUM(total_quantity),0) AS total_quantity, "+
			"COALESCE(SUM(available_quantity),0) AS total_available, "+
			"COALESCE(SUM(reserved_quantity),0) AS total_reserved").
		Where("profile_id = ? AND is_active = ?", profileID, true).
		Scan(&row).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to aggregate inventory summary")
	}
	return &domain.ItemSummary{
		ProfileID:      profileID,
		ItemCount:      row.ItemCount,
		TotalQuantity:  row.TotalQuantity,
		TotalAvailable: row.TotalAvailable,
		TotalReserved:  row.TotalReserved,
	}, nil
}

type gormReservationRepo struct {
	db *gorm.DB
}

func (r *gormReservationRepo) Save(ctx context.Context, res *domain.Reservation) error {
	if err := r.db.WithContext(ctx).Save(reservationToModel(res)).Error; err != nil {
		return pkgerrors.Wrap(err, "failed to save reservation")
	}
	return nil
}

func (r *gormReservationRepo) FindByID(ctx context.Context, id string) (*domain.Reservation, error) {
	var m ReservationModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrReservationNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to query reservation")
	}
	return reservationToDomain(&m), nil
}

func (r *gormReservationRepo) FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&ReservationModel{}).
		Where("state = ? AND expires_at IS NOT NULL AND expires_at <= ?", string(domain.StatePending), now).
		Order("expires_at").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list expired reservations")
	}
	return ids, nil
}

func (r *gormReservationRepo) FindExpiringSoon(ctx context.Context, profileID string, within time.Duration) ([]*domain.Reservation, error) {
	now := time.Now()
	var models []ReservationModel
	err := r.db.WithContext(ctx).
		Where("profile_id = ? AND state = ? AND expires_at IS NOT NULL AND expires_at > ? AND expires_at <= ?",
			profileID, string(domain.StatePending), now, now.Add(within)).
		Order("expires_at").
		Find(&models).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list expiring reservations")
	}
	out := make([]*domain.Reservation, 0, len(models))
	for i := range models {
		out = append(out, reservationToDomain(&models[i]))
	}
	return out, nil
}

func (r *gormReservationRepo) CountOpenByItem(ctx context.Context, itemID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&ReservationModel{}).
		Where("item_id = ? AND state IN ?", itemID,
			[]string{string(domain.StatePending), string(domain.StateConfirmed)}).
		Count(&count).Error
	if err != nil {
		return 0, pkgerrors.Wrap(err, "failed to count open reservations")
	}
	return count, nil
}

type gormActionLogRepo struct {
	db *gorm.DB
}

// Append 插入日志条目。主键冲突说明同一条目已落过盘，
// 按幂等成功处理。
func (r *gormActionLogRepo) Append(ctx context.Context, entry *domain.ActionLogEntry) error {
	err := r.db.WithContext(ctx).Create(actionLogToModel(entry)).Error
	if err != nil {
		var mysqlErr *gomysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return nil
		}
		return pkgerrors.Wrap(err, "failed to append action log")
	}
	return nil
}

// ListUnsynced 按 (item_id, created_at) 排序返回待同步条目，
// 同一库存项内保持写入序。
func (r *gormActionLogRepo) ListUnsynced(ctx context.Context, limit int) ([]*domain.ActionLogEntry, error) {
	var models []ActionLogModel
	err := r.db.WithContext(ctx).
		Where("sync_state = ?", string(domain.SyncPending)).
		Order("item_id, created_at").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list unsynced action logs")
	}
	out := make([]*domain.ActionLogEntry, 0, len(models))
	for i := range models {
		out = append(out, actionLogToDomain(&models[i]))
	}
	return out, nil
}

func (r *gormActionLogRepo) ListFailed(ctx context.Context, profileID string, limit int) ([]*domain.ActionLogEntry, error) {
	var models []ActionLogModel
	err := r.db.WithContext(ctx).
		Where("profile_id = ? AND sync_state = ?", profileID, string(domain.SyncFailed)).
		Order("created_at").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list failed action logs")
	}
	out := make([]*domain.ActionLogEntry, 0, len(models))
	for i := range models {
		out = append(out, actionLogToDomain(&models[i]))
	}
	return out, nil
}

func (r *gormActionLogRepo) MarkSynced(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Model(&ActionLogModel{}).
		Where("id = ?", id).
		Update("sync_state", string(domain.SyncSynced)).Error
	return pkgerrors.Wrap(err, "failed to mark action log synced")
}

func (r *gormActionLogRepo) MarkAttempt(ctx context.Context, id string, attempt int, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&ActionLogModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempt_count":   attempt,
			"last_attempt_at": at,
		}).Error
	return pkgerrors.Wrap(err, "failed to record sync attempt")
}

func (r *gormActionLogRepo) MarkFailed(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Model(&ActionLogModel{}).
		Where("id = ?", id).
		Update("sync_state", string(domain.SyncFailed)).Error
	return pkgerrors.Wrap(err, "failed to mark action log failed")
}

type gormAlertRepo struct {
	db *gorm.DB
}

func (r *gormAlertRepo) Save(ctx context.Context, alert *domain.Alert) error {
	if err := r.db.WithContext(ctx).Save(alertToModel(alert)).Error; err != nil {
		return pkgerrors.Wrap(err, "failed to save alert")
	}
	return nil
}

func (r *gormAlertRepo) ListUnresolved(ctx context.Context, profileID string) ([]*domain.Alert, error) {
	var models []AlertModel
	err := r.db.WithContext(ctx).
		Where("profile_id = ? AND resolved = ?", profileID, false).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list unresolved alerts")
	}
	out := make([]*domain.Alert, 0, len(models))
	for i := range models {
		out = append(out, alertToDomain(&models[i]))
	}
	return out, nil
}

// PermissionAuditStore 记录账本侧权限事件的审计轨迹
type PermissionAuditStore struct {
	db *gorm.DB
}

// NewPermissionAuditStore 创建审计存储
func NewPermissionAuditStore(db *gorm.DB) *PermissionAuditStore {
	return &PermissionAuditStore{db: db}
}

// Record 追加一条权限事件审计记录
func (s *PermissionAuditStore) Record(ctx context.Context, actor, capability string, granted bool, at time.Time) error {
	err := s.db.WithContext(ctx).Create(&PermissionAuditModel{
		Actor:      actor,
		Capability: capability,
		Granted:    granted,
		ObservedAt: at,
	}).Error
	return pkgerrors.Wrap(err, "failed to record permission audit")
}
