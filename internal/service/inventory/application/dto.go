package application

import "time"

// CreateReservationRequest 是创建预订的入参。
// Actor 是调用方在账本上的地址，权限检查用；
// ProfileID 由上游租户解析器注入，核心假定 ItemID 已 scoping。
type CreateReservationRequest struct {
	ProfileID  string
	ItemID     string
	CustomerID string
	Actor      string
	Quantity   int64
	// TTL 覆盖默认的 Pending 保留时长，零值使用服务配置
	TTL time.Duration
}

// RegisterItemRequest 是登记库存项的入参
type RegisterItemRequest struct {
	ProfileID string
	Actor     string
	Name      string
	Kind      string
	Total     int64
}

// AlertRule 是一条注入到服务的告警规则（来自配置）
type AlertRule struct {
	Name     string
	Kind     string
	Severity string
	Expr     string
	Message  string
}
