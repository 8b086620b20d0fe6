package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "BILLING"

// Config представляет структуру конфигурации для приложения.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Log      LogConfig      `mapstructure:"log"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Billing  BillingConfig  `mapstructure:"billing"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type HTTPConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"readTimeout"`
	WriteTimeout    time.Duration `mapstructure:"writeTimeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// StorageConfig выбор хранилища: memory или postgres
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"maxConns"`
	MinConns        int32         `mapstructure:"minConns"`
	MaxConnLifetime time.Duration `mapstructure:"maxConnLifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"maxConnIdleTime"`
	ConnectTimeout  time.Duration `mapstructure:"connectTimeout"`
	Migrate         bool          `mapstructure:"migrate"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type KafkaConfig struct {
	Enabled            bool     `mapstructure:"enabled"`
	Brokers            []string `mapstructure:"brokers"`
	ClientID           string   `mapstructure:"clientId"`
	NotificationsTopic string   `mapstructure:"notificationsTopic"`
	EnsureTopics       bool     `mapstructure:"ensureTopics"`
}

type GatewayConfig struct {
	// Mode sandbox или live
	Mode    string        `mapstructure:"mode"`
	Timeout time.Duration `mapstructure:"timeout"`
	Stripe  StripeConfig  `mapstructure:"stripe"`
}

// StripeConfig при заданном APIKey шлюзом в режиме live служит Stripe
type StripeConfig struct {
	APIKey        string `mapstructure:"apiKey"`
	Currency      string `mapstructure:"currency"`
	PaymentMethod string `mapstructure:"paymentMethod"`
}

type BillingConfig struct {
	SchedulerEnabled bool          `mapstructure:"schedulerEnabled"`
	RenewalSchedule  string        `mapstructure:"renewalSchedule"`
	SweepTimeout     time.Duration `mapstructure:"sweepTimeout"`
	NotifierBuffer   int           `mapstructure:"notifierBuffer"`
	PublishRetries   uint64        `mapstructure:"publishRetries"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwtSecret"`
}

// CatalogConfig начальные планы и подписчики для хранилища в памяти
type CatalogConfig struct {
	Plans       []PlanConfig       `mapstructure:"plans"`
	Subscribers []SubscriberConfig `mapstructure:"subscribers"`
}

type PlanConfig struct {
	ID       string `mapstructure:"id"`
	Name     string `mapstructure:"name"`
	Price    string `mapstructure:"price"`
	Duration string `mapstructure:"duration"`
	Status   string `mapstructure:"status"`
}

type SubscriberConfig struct {
	ID    string `mapstructure:"id"`
	Email string `mapstructure:"email"`
	Name  string `mapstructure:"name"`
	Phone string `mapstructure:"phone"`
}

// LoadConfig загружает конфигурацию из yaml файла, .env и переменных окружения BILLING_*.
// Отсутствующий файл конфигурации не считается ошибкой.
func LoadConfig(path string) (*Config, error) {
	// .env нужен только для локальной разработки
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "billing-service")
	v.SetDefault("app.env", "development")

	v.SetDefault("http.port", "8080")
	v.SetDefault("http.readTimeout", 15*time.Second)
	v.SetDefault("http.writeTimeout", 15*time.Second)
	v.SetDefault("http.shutdownTimeout", 30*time.Second)

	v.SetDefault("log.level", "info")

	v.SetDefault("storage.driver", "memory")

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.maxConns", 10)
	v.SetDefault("database.minConns", 2)
	v.SetDefault("database.maxConnLifetime", time.Hour)
	v.SetDefault("database.maxConnIdleTime", 30*time.Minute)
	v.SetDefault("database.connectTimeout", 30*time.Second)
	v.SetDefault("database.migrate", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 15*time.Minute)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.clientId", "billing-service")
	v.SetDefault("kafka.notificationsTopic", "notifications")
	v.SetDefault("kafka.ensureTopics", true)

	v.SetDefault("gateway.mode", "sandbox")
	v.SetDefault("gateway.timeout", 30*time.Second)
	v.SetDefault("gateway.stripe.apiKey", "")
	v.SetDefault("gateway.stripe.currency", "usd")
	v.SetDefault("gateway.stripe.paymentMethod", "")

	v.SetDefault("billing.schedulerEnabled", true)
	v.SetDefault("billing.renewalSchedule", "0 0 * * *")
	v.SetDefault("billing.sweepTimeout", time.Hour)
	v.SetDefault("billing.notifierBuffer", 256)
	v.SetDefault("billing.publishRetries", 3)

	v.SetDefault("auth.jwtSecret", "")
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("config: database.dsn is required for postgres storage")
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}

	if c.Gateway.Mode != "sandbox" && c.Gateway.Mode != "live" {
		return fmt.Errorf("config: unknown gateway mode %q", c.Gateway.Mode)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("config: kafka.brokers is required when kafka is enabled")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("config: redis.addr is required when redis is enabled")
	}
	return nil
}

// IsProduction true для окружения production
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
