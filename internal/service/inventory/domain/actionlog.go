package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActionKind 动作日志类别
type ActionKind string

const (
	ActionCreate  ActionKind = "create"
	ActionReserve ActionKind = "reserve"
	ActionRelease ActionKind = "release"
	ActionUpdate  ActionKind = "update"
)

// SyncState 账本同步状态
type SyncState string

const (
	// SyncPending 等待同步 Worker 提交
	SyncPending SyncState = "PENDING"
	// SyncSynced 已被账本接受
	SyncSynced SyncState = "SYNCED"
	// SyncFailed 重试用尽，需要人工介入
	SyncFailed SyncState = "FAILED"
)

// ActionLogEntry 追加写的动作日志。与触发它的数量变更在
// 同一事务内落盘，ID 同时充当对外提交的幂等键。
type ActionLogEntry struct {
	ID            string
	ItemID        string
	ProfileID     string
	Kind          ActionKind
	Payload       json.RawMessage
	SyncState     SyncState
	AttemptCount  int
	LastAttemptAt *time.Time
	CreatedAt     time.Time
}

// NewActionLogEntry 创建待同步日志条目，payload 序列化失败即报错
func NewActionLogEntry(itemID, profileID string, kind ActionKind, payload any) (*ActionLogEntry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode action payload: %w", err)
	}
	return &ActionLogEntry{
		ID:        uuid.New().String(),
		ItemID:    itemID,
		ProfileID: profileID,
		Kind:      kind,
		Payload:   raw,
		SyncState: SyncPending,
		CreatedAt: time.Now(),
	}, nil
}

// ReservePayload reserve/release 动作的载荷
type ReservePayload struct {
	ReservationID string `json:"reservation_id"`
	CustomerID    string `json:"customer_id"`
	Quantity      int64  `json:"quantity"`
	Timestamp     string `json:"timestamp"`
}

// ItemPayload create/update 动作的载荷
type ItemPayload struct {
	Name          string `json:"name"`
	Kind          string `json:"kind"`
	TotalQuantity int64  `json:"total_quantity"`
	Timestamp     string `json:"timestamp"`
}
