package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/Dhoini/billing-service/internal/domain"
	"github.com/Dhoini/billing-service/pkg/logger"
	"github.com/samber/lo"

	kafkaGo "github.com/segmentio/kafka-go"
)

// RequiredTopics топики доменных событий и уведомлений
func RequiredTopics(cfg *Config) []string {
	return append(append([]string{}, domain.AllEventNames...), cfg.NotificationsTopic)
}

// EnsureTopics проверяет и создает необходимые топики Kafka.
func EnsureTopics(ctx context.Context, cfg *Config, log *logger.Logger) error {
	requiredTopics := RequiredTopics(cfg)
	log.Infow("Ensuring Kafka topics exist...", "topics", requiredTopics)

	if len(cfg.Brokers) == 0 || strings.TrimSpace(cfg.Brokers[0]) == "" {
		log.Errorw("Kafka broker address is empty")
		return errors.New("kafka broker address is empty")
	}
	broker := strings.TrimSpace(cfg.Brokers[0])
	if err := validateBrokerAddress(broker); err != nil {
		log.Errorw("Invalid Kafka broker address", "broker", broker, "error", err)
		return err
	}

	connCtx, cancelConn := context.WithTimeout(ctx, 15*time.Second)
	defer cancelConn()

	conn, err := kafkaGo.DialContext(connCtx, "tcp", broker)
	if err != nil {
		log.Errorw("Failed to connect to Kafka broker for topic creation", "broker", broker, "error", err)
		return fmt.Errorf("kafka connection failed: %w", err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions()
	if err != nil {
		log.Errorw("Failed to read partitions from Kafka", "error", err)
		return fmt.Errorf("kafka read partitions failed: %w", err)
	}
	existing := lo.SliceToMap(partitions, func(p kafkaGo.Partition) (string, bool) { return p.Topic, true })
	log.Debugw("Found existing topics", "count", len(existing))

	missing := lo.Filter(requiredTopics, func(topic string, _ int) bool { return !existing[topic] })
	if len(missing) == 0 {
		log.Infow("All required topics already exist.")
		return nil
	}

	// Топики создаются только через контроллер кластера
	controller, err := conn.Controller()
	if err != nil {
		log.Errorw("Failed to find Kafka controller", "error", err)
		return fmt.Errorf("kafka controller lookup failed: %w", err)
	}
	controllerConn, err := kafkaGo.DialContext(connCtx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		log.Errorw("Failed to connect to Kafka controller", "controller", controller.Host, "error", err)
		return fmt.Errorf("kafka controller connection failed: %w", err)
	}
	defer controllerConn.Close()

	configs := lo.Map(missing, func(topic string, _ int) kafkaGo.TopicConfig {
		return kafkaGo.TopicConfig{
			Topic:             topic,
			NumPartitions:     cfg.Topics.NumPartitions,
			ReplicationFactor: cfg.Topics.ReplicationFactor,
		}
	})

	log.Infow("Attempting to create topics...", "topics", missing)
	if err := controllerConn.CreateTopics(configs...); err != nil {
		if errors.Is(err, kafkaGo.TopicAlreadyExists) {
			log.Warnw("One or more topics already existed during creation attempt", "topics", missing)
			return nil
		}
		log.Errorw("Failed to create topics", "error", err, "topics", missing)
		return fmt.Errorf("kafka create topics failed: %w", err)
	}

	log.Infow("Successfully created topics", "topics", missing)
	return nil
}

func validateBrokerAddress(broker string) error {
	_, portStr, err := net.SplitHostPort(broker)
	if err != nil {
		return fmt.Errorf("invalid broker address %s: %w", broker, err)
	}
	if _, err := strconv.Atoi(portStr); err != nil {
		return fmt.Errorf("invalid broker port %s: %w", broker, err)
	}
	return nil
}
