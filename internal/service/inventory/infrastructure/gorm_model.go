package infrastructure

import (
	"time"
)

// ItemModel 对应数据库中的 inventory_item 表
type ItemModel struct {
	ID                string `gorm:"primaryKey;size:36"`
	ProfileID         string `gorm:"size:50;index:idx_item_profile"`
	Name              string `gorm:"size:255"`
	Kind              string `gorm:"size:20;index:idx_item_profile"`
	TotalQuantity     int64
	AvailableQuantity int64 `gorm:"index"`
	ReservedQuantity  int64
	IsActive          bool `gorm:"default:true"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName 指定 GORM 应该使用的表名
func (ItemModel) TableName() string {
	return "inventory_item"
}

// ReservationModel 对应数据库中的 inventory_reservation 表
type ReservationModel struct {
	ID         string `gorm:"primaryKey;size:36"`
	ItemID     string `gorm:"size:36;index"`
	ProfileID  string `gorm:"size:50;index:idx_res_profile_state"`
	CustomerID string `gorm:"size:50"`
	Quantity   int64
	State      string `gorm:"size:20;index:idx_res_profile_state"`
	CreatedAt  time.Time
	ExpiresAt  *time.Time `gorm:"index"`
}

func (ReservationModel) TableName() string {
	return "inventory_reservation"
}

// ActionLogModel 对应数据库中的 inventory_action_log 表。
// 主键就是幂等键，重复 Append 会撞唯一约束。
type ActionLogModel struct {
	ID            string `gorm:"primaryKey;size:36"`
	ItemID        string `gorm:"size:36;index:idx_log_item_created"`
	ProfileID     string `gorm:"size:50;index"`
	Kind          string `gorm:"size:20"`
	Payload       []byte `gorm:"type:json"`
	SyncState     string `gorm:"size:20;index"`
	AttemptCount  int
	LastAttemptAt *time.Time
	CreatedAt     time.Time `gorm:"index:idx_log_item_created"`
}

func (ActionLogModel) TableName() string {
	return "inventory_action_log"
}

// AlertModel 对应数据库中的 inventory_alert 表
type AlertModel struct {
	ID        string `gorm:"primaryKey;size:36"`
	ProfileID string `gorm:"size:50;index"`
	ItemID    string `gorm:"size:36"`
	Kind      string `gorm:"size:50"`
	Severity  string `gorm:"size:20"`
	Message   string `gorm:"type:text"`
	Resolved  bool   `gorm:"default:false;index"`
	CreatedAt time.Time
}

func (AlertModel) TableName() string {
	return "inventory_alert"
}

// PermissionAuditModel 记录账本侧权限变更事件的审计轨迹
type PermissionAuditModel struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	Actor      string `gorm:"size:66;index"`
	Capability string `gorm:"size:50"`
	Granted    bool
	ObservedAt time.Time
}

func (PermissionAuditModel) TableName() string {
	return "permission_audit"
}
