package infrastructure

import (
	"context"
	"encoding/json"

	"akwa/internal/pkg/mq"
	"akwa/internal/service/inventory/domain"

	"github.com/segmentio/kafka-go"
)

// KafkaAlertNotifier 把告警投递到 Kafka。
// 以 itemID 为 key，同一库存项的告警落在同一分区。
type KafkaAlertNotifier struct {
	writer *kafka.Writer
}

// NewKafkaAlertNotifier 创建告警投递器
func NewKafkaAlertNotifier(brokers []string, topic string) *KafkaAlertNotifier {
	return &KafkaAlertNotifier{writer: mq.NewKafkaWriter(brokers, topic)}
}

type alertMessage struct {
	ID        string `json:"id"`
	ProfileID string `json:"profile_id"`
	ItemID    string `json:"item_id"`
	Kind      string `json:"kind"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
	CreatedAt int64  `json:"created_at"`
}

// Notify 实现 port.AlertNotifier
func (n *KafkaAlertNotifier) Notify(ctx context.Context, alert *domain.Alert) error {
	payload, err := json.Marshal(alertMessage{
		ID:        alert.ID,
		ProfileID: alert.ProfileID,
		ItemID:    alert.ItemID,
		Kind:      string(alert.Kind),
		Severity:  string(alert.Severity),
		Message:   alert.Message,
		CreatedAt: alert.CreatedAt.Unix(),
	})
	if err != nil {
		return err
	}
	return mq.ProduceMessage(ctx, n.writer, []byte(alert.ItemID), payload)
}

// Close 关闭底层 writer
func (n *KafkaAlertNotifier) Close() error {
	return n.writer.Close()
}
