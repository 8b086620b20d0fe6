package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/billing-service/internal/events"
	"github.com/Dhoini/billing-service/pkg/logger"

	kafkaGo "github.com/segmentio/kafka-go"
)

// messageWriter часть kafka.Writer, нужная нотификатору
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkaGo.Message) error
	Close() error
}

// notificationMessage тело сообщения уведомления
type notificationMessage struct {
	Kind         string    `json:"kind"`
	SubscriberID string    `json:"subscriber_id"`
	OccurredAt   time.Time `json:"occurred_at"`
	Data         any       `json:"data,omitempty"`
}

// Notifier отправляет уведомления подписчикам в топик уведомлений
type Notifier struct {
	writer messageWriter
	topic  string
	log    *logger.Logger
}

// NewNotifier создает и настраивает Kafka Writer для уведомлений.
func NewNotifier(cfg *Config, log *logger.Logger) (*Notifier, error) {
	if len(cfg.Brokers) == 0 {
		log.Errorw("Kafka brokers list is empty in config, cannot create notifier")
		return nil, errors.New("kafka brokers are not configured")
	}

	// Ключ - ID подписчика, уведомления одного подписчика попадают в одну партицию
	writer := &kafkaGo.Writer{
		Addr:         kafkaGo.TCP(cfg.Brokers...),
		Balancer:     &kafkaGo.Hash{},
		RequiredAcks: kafkaGo.RequireOne,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	log.Infow("Kafka notification writer initialized", "brokers", cfg.Brokers, "topic", cfg.NotificationsTopic)
	return newNotifier(writer, cfg.NotificationsTopic, log), nil
}

func newNotifier(writer messageWriter, topic string, log *logger.Logger) *Notifier {
	if topic == "" {
		topic = NotificationsTopic
	}
	return &Notifier{writer: writer, topic: topic, log: log}
}

// Notify реализует events.Notifier
func (n *Notifier) Notify(ctx context.Context, notification events.Notification) error {
	messageValue, err := json.Marshal(notificationMessage{
		Kind:         string(notification.Kind),
		SubscriberID: notification.SubscriberID,
		OccurredAt:   notification.OccurredAt,
		Data:         notification.Payload,
	})
	if err != nil {
		return fmt.Errorf("kafka: failed to marshal notification: %w", err)
	}

	message := kafkaGo.Message{
		Topic: n.topic,
		Key:   []byte(notification.SubscriberID),
		Value: messageValue,
		Time:  notification.OccurredAt,
	}

	if err := n.writer.WriteMessages(ctx, message); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			n.log.Errorw("Kafka write timeout exceeded", "error", err, "topic", n.topic, "kind", notification.Kind)
			return fmt.Errorf("kafka: write timeout: %w", err)
		}
		n.log.Errorw("Failed to write notification to Kafka", "error", err, "topic", n.topic, "kind", notification.Kind)
		return fmt.Errorf("kafka: failed to write message: %w", err)
	}

	n.log.Debugw("Notification written to Kafka", "topic", n.topic, "kind", notification.Kind, "subscriberID", notification.SubscriberID)
	return nil
}

// Close закрывает соединение Kafka Writer.
func (n *Notifier) Close() error {
	n.log.Infow("Closing Kafka notification writer...")
	if err := n.writer.Close(); err != nil {
		n.log.Errorw("Failed to close Kafka writer", "error", err)
		return fmt.Errorf("kafka: failed to close writer: %w", err)
	}
	n.log.Infow("Kafka notification writer closed successfully")
	return nil
}
