package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Dhoini/billing-service/internal/events"
	"github.com/Dhoini/billing-service/pkg/logger"
	"github.com/IBM/sarama"
)

const eventTypeHeader = "event_type"

// eventEnvelope тело сообщения доменного события
type eventEnvelope struct {
	Event      string    `json:"event"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// EventPublisher публикует доменные события в топик с именем события
type EventPublisher struct {
	producer sarama.SyncProducer
	log      *logger.Logger
}

// NewSyncProducer создает синхронный продюсер Sarama
func NewSyncProducer(cfg *Config, log *logger.Logger) (sarama.SyncProducer, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewSaramaConfig(cfg, log))
	if err != nil {
		log.Errorw("Failed to create Kafka sync producer", "brokers", cfg.Brokers, "error", err)
		return nil, fmt.Errorf("kafka: failed to create producer: %w", err)
	}
	log.Infow("Kafka sync producer initialized", "brokers", cfg.Brokers)
	return producer, nil
}

// NewEventPublisher создает публикатор доменных событий
func NewEventPublisher(producer sarama.SyncProducer, log *logger.Logger) *EventPublisher {
	return &EventPublisher{
		producer: producer,
		log:      log,
	}
}

// Publish реализует events.Publisher
func (p *EventPublisher) Publish(ctx context.Context, event events.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	messageValue, err := json.Marshal(eventEnvelope{
		Event:      event.Name,
		OccurredAt: event.OccurredAt,
		Data:       event.Payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.Name, err)
	}

	message := &sarama.ProducerMessage{
		Topic: event.Name,
		Key:   sarama.StringEncoder(event.Key),
		Value: sarama.ByteEncoder(messageValue),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte(eventTypeHeader),
				Value: []byte(event.Name),
			},
		},
		Timestamp: event.OccurredAt,
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.Name, err)
	}

	p.log.Debug("Published event %s key=%s: partition=%d offset=%d", event.Name, event.Key, partition, offset)
	return nil
}

// Close закрывает продюсер
func (p *EventPublisher) Close() error {
	return p.producer.Close()
}
