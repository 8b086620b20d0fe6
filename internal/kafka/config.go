package kafka

import (
	"time"

	"github.com/Dhoini/billing-service/pkg/logger"
	"github.com/IBM/sarama"
)

// NotificationsTopic топик уведомлений подписчикам
const NotificationsTopic = "notifications"

// Config конфигурация для Kafka
type Config struct {
	Brokers            []string
	ClientID           string
	NotificationsTopic string
	Producer           ProducerConfig
	Topics             TopicConfig
}

// ProducerConfig конфигурация для продюсера
type ProducerConfig struct {
	MaxMessageBytes  int
	Compression      sarama.CompressionCodec
	RequiredAcks     sarama.RequiredAcks
	FlushMaxMessages int
	RetryMax         int
	Timeout          time.Duration
}

// TopicConfig параметры создаваемых топиков
type TopicConfig struct {
	NumPartitions     int
	ReplicationFactor int
}

// NewConfig создает новую конфигурацию Kafka
func NewConfig(brokers []string) *Config {
	return &Config{
		Brokers:            brokers,
		ClientID:           "billing-service",
		NotificationsTopic: NotificationsTopic,
		Producer: ProducerConfig{
			MaxMessageBytes:  1000000,
			Compression:      sarama.CompressionSnappy,
			RequiredAcks:     sarama.WaitForAll,
			FlushMaxMessages: 100,
			RetryMax:         3,
			Timeout:          10 * time.Second,
		},
		Topics: TopicConfig{
			NumPartitions:     3,
			ReplicationFactor: 1,
		},
	}
}

// NewSaramaConfig создает новую конфигурацию Sarama
func NewSaramaConfig(cfg *Config, log *logger.Logger) *sarama.Config {
	saramaConfig := sarama.NewConfig()

	// Версия Kafka
	saramaConfig.Version = sarama.V3_3_0_0
	saramaConfig.ClientID = cfg.ClientID

	// Настройки продюсера
	saramaConfig.Producer.MaxMessageBytes = cfg.Producer.MaxMessageBytes
	saramaConfig.Producer.Compression = cfg.Producer.Compression
	saramaConfig.Producer.RequiredAcks = cfg.Producer.RequiredAcks
	saramaConfig.Producer.Flush.MaxMessages = cfg.Producer.FlushMaxMessages
	saramaConfig.Producer.Retry.Max = cfg.Producer.RetryMax
	saramaConfig.Producer.Timeout = cfg.Producer.Timeout
	// Ключ агрегата определяет партицию, события одной подписки остаются упорядоченными
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner
	saramaConfig.Producer.Idempotent = cfg.Producer.RequiredAcks == sarama.WaitForAll
	if saramaConfig.Producer.Idempotent {
		saramaConfig.Net.MaxOpenRequests = 1
	}
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true

	log.Debugw("Sarama config prepared", "clientID", cfg.ClientID, "idempotent", saramaConfig.Producer.Idempotent)
	return saramaConfig
}
