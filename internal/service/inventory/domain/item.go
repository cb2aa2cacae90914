package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ItemKind 库存项类别
type ItemKind string

const (
	KindRoom        ItemKind = "room"
	KindVehicle     ItemKind = "vehicle"
	KindTicket      ItemKind = "ticket"
	KindAppointment ItemKind = "appointment"
	KindWorkspace   ItemKind = "workspace"
	KindService     ItemKind = "service"
	KindProduct     ItemKind = "product"
	KindTable       ItemKind = "table"
)

// Item 是数量记账的聚合根。
// 不变式: TotalQuantity == AvailableQuantity + ReservedQuantity，
// 且三者均非负。所有数量变更都经由本类型的方法，
// 方法失败时聚合保持原状。
type Item struct {
	ID                string
	ProfileID         string
	Name              string
	Kind              ItemKind
	TotalQuantity     int64
	AvailableQuantity int64
	ReservedQuantity  int64
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewItem 创建库存项，初始全部可用
func NewItem(profileID, name string, kind ItemKind, total int64) (*Item, error) {
	if total < 0 {
		return nil, fmt.Errorf("total quantity must be non-negative, got %d", total)
	}
	now := time.Now()
	return &Item{
		ID:                uuid.New().String(),
		ProfileID:         profileID,
		Name:              name,
		Kind:              kind,
		TotalQuantity:     total,
		AvailableQuantity: total,
		ReservedQuantity:  0,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// Reserve 将 qty 从可用划转到已预留
func (i *Item) Reserve(qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("reserve quantity must be positive, got %d", qty)
	}
	if !i.IsActive {
		return ErrItemInactive
	}
	if qty > i.AvailableQuantity {
		return ErrInsufficientCapacity
	}
	i.AvailableQuantity -= qty
	i.ReservedQuantity += qty
	i.UpdatedAt = time.Now()
	return nil
}

// Release 将 qty 从已预留归还到可用
func (i *Item) Release(qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("release quantity must be positive, got %d", qty)
	}
	if qty > i.ReservedQuantity {
		return ErrOverRelease
	}
	i.ReservedQuantity -= qty
	i.AvailableQuantity += qty
	i.UpdatedAt = time.Now()
	return nil
}

// AdjustTotal 调整总量。新总量不能小于已预留数量，
// 已占用的容量不会被抽走。
func (i *Item) AdjustTotal(newTotal int64) error {
	if newTotal < 0 {
		return fmt.Errorf("total quantity must be non-negative, got %d", newTotal)
	}
	if newTotal < i.ReservedQuantity {
		return fmt.Errorf("new total %d is below reserved quantity %d: %w",
			newTotal, i.ReservedQuantity, ErrInsufficientCapacity)
	}
	i.TotalQuantity = newTotal
	i.AvailableQuantity = newTotal - i.ReservedQuantity
	i.UpdatedAt = time.Now()
	return nil
}

// Deactivate 软停用。历史预订与动作日志保留
func (i *Item) Deactivate() {
	i.IsActive = false
	i.UpdatedAt = time.Now()
}

// Invariant 校验数量恒等式
func (i *Item) Invariant() bool {
	return i.TotalQuantity >= 0 &&
		i.AvailableQuantity >= 0 &&
		i.ReservedQuantity >= 0 &&
		i.TotalQuantity == i.AvailableQuantity+i.ReservedQuantity
}
