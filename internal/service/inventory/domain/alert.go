package domain

import (
	"time"

	"github.com/google/uuid"
)

// AlertKind 告警类别
type AlertKind string

const (
	AlertLowStock      AlertKind = "low_stock"
	AlertSoldOut       AlertKind = "sold_out"
	AlertSyncExhausted AlertKind = "sync_exhausted"
)

// AlertSeverity 告警级别
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// Alert 一条库存告警，先落库再投递
type Alert struct {
	ID        string
	ProfileID string
	ItemID    string
	Kind      AlertKind
	Severity  AlertSeverity
	Message   string
	Resolved  bool
	CreatedAt time.Time
}

// NewAlert 创建未解决的告警
func NewAlert(profileID, itemID string, kind AlertKind, severity AlertSeverity, message string) *Alert {
	return &Alert{
		ID:        uuid.New().String(),
		ProfileID: profileID,
		ItemID:    itemID,
		Kind:      kind,
		Severity:  severity,
		Message:   message,
		CreatedAt: time.Now(),
	}
}

// QuantityFact 规则引擎的输入快照
type QuantityFact struct {
	ItemID    string `json:"itemId"`
	ProfileID string `json:"profileId"`
	Total     int64  `json:"total"`
	Available int64  `json:"available"`
	Reserved  int64  `json:"reserved"`
}
