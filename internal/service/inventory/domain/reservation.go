package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReservationState 预订生命周期状态
type ReservationState string

const (
	// StatePending 已占用数量，等待确认，到期会被清扫
	StatePending ReservationState = "PENDING"
	// StateConfirmed 已确认，不再过期，只能显式释放
	StateConfirmed ReservationState = "CONFIRMED"
	// StateReleased 终态，数量已归还
	StateReleased ReservationState = "RELEASED"
	// StateExpired 终态，清扫器归还了数量
	StateExpired ReservationState = "EXPIRED"
)

// Reservation 一次数量占用。状态机:
// PENDING -> CONFIRMED | RELEASED | EXPIRED
// CONFIRMED -> RELEASED
// 终态不再流转。
type Reservation struct {
	ID         string
	ItemID     string
	ProfileID  string
	CustomerID string
	Quantity   int64
	State      ReservationState
	CreatedAt  time.Time
	// ExpiresAt 为 nil 表示永不过期
	ExpiresAt *time.Time
}

// NewReservation 创建 Pending 预订。ttl 为零表示不设过期。
func NewReservation(itemID, profileID, customerID string, qty int64, ttl time.Duration) *Reservation {
	now := time.Now()
	r := &Reservation{
		ID:         uuid.New().String(),
		ItemID:     itemID,
		ProfileID:  profileID,
		CustomerID: customerID,
		Quantity:   qty,
		State:      StatePending,
		CreatedAt:  now,
	}
	if ttl > 0 {
		exp := now.Add(ttl)
		r.ExpiresAt = &exp
	}
	return r
}

// Confirm 确认预订。重复确认是 no-op。
func (r *Reservation) Confirm() error {
	if r.State == StateConfirmed {
		return nil
	}
	if r.State != StatePending {
		return ErrInvalidState
	}
	r.State = StateConfirmed
	return nil
}

// Release 释放预订，仅允许从 Pending/Confirmed 流转
func (r *Reservation) Release() error {
	if r.State != StatePending && r.State != StateConfirmed {
		return ErrInvalidState
	}
	r.State = StateReleased
	return nil
}

// Expire 过期流转，仅允许从 Pending
func (r *Reservation) Expire() error {
	if r.State != StatePending {
		return ErrInvalidState
	}
	r.State = StateExpired
	return nil
}

// IsOpen 预订是否仍占用数量
func (r *Reservation) IsOpen() bool {
	return r.State == StatePending || r.State == StateConfirmed
}

// IsExpiredAt 在给定时刻是否应被清扫
func (r *Reservation) IsExpiredAt(now time.Time) bool {
	return r.State == StatePending && r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}
