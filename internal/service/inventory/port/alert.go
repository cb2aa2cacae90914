package port

import (
	"context"

	"akwa/internal/service/inventory/domain"
)

// AlertNotifier 告警出站端口，生产环境投递到 Kafka
type AlertNotifier interface {
	Notify(ctx context.Context, alert *domain.Alert) error
}

// RuleEngine 告警规则求值端口。表达式来自配置，
// 对数量快照求布尔值。
type RuleEngine interface {
	Evaluate(expr string, fact domain.QuantityFact) (bool, error)
}
