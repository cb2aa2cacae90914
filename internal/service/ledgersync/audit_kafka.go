package ledgersync

import (
	"context"
	"encoding/json"
	"time"

	"akwa/internal/pkg/mq"

	"github.com/segmentio/kafka-go"
)

// KafkaAuditRecorder 把权限变更事件发布到审计 topic，
// 供下游风控和合规系统消费。key 取 actor，同一主体的事件保序。
type KafkaAuditRecorder struct {
	writer *kafka.Writer
}

// NewKafkaAuditRecorder 创建审计事件发布器
func NewKafkaAuditRecorder(brokers []string, topic string) *KafkaAuditRecorder {
	return &KafkaAuditRecorder{writer: mq.NewKafkaWriter(brokers, topic)}
}

type auditMessage struct {
	Actor      string `json:"actor"`
	Capability string `json:"capability"`
	Granted    bool   `json:"granted"`
	ObservedAt int64  `json:"observed_at"`
}

// Record 实现 AuditRecorder
func (r *KafkaAuditRecorder) Record(ctx context.Context, actor, capability string, granted bool, at time.Time) error {
	payload, err := json.Marshal(auditMessage{
		Actor:      actor,
		Capability: capability,
		Granted:    granted,
		ObservedAt: at.Unix(),
	})
	if err != nil {
		return err
	}
	return mq.ProduceMessage(ctx, r.writer, []byte(actor), payload)
}

// Close 关闭底层 writer
func (r *KafkaAuditRecorder) Close() error {
	return r.writer.Close()
}

// MultiRecorder 把同一事件写到多个审计后端（数据库 + Kafka）
type MultiRecorder []AuditRecorder

// Record 逐个调用，返回最后一个失败
func (m MultiRecorder) Record(ctx context.Context, actor, capability string, granted bool, at time.Time) error {
	var last error
	for _, r := range m {
		if err := r.Record(ctx, actor, capability, granted, at); err != nil {
			last = err
		}
	}
	return last
}
