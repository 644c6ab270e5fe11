package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config описывает настройки запуска сервиса. Значения читаются из
// переменных окружения и, если он есть, из .env файла.
type Config struct {
	Environment string
	HTTPAddr    string
	// OpsAddr — адрес служебного листенера: /metrics и health-пробы.
	OpsAddr  string
	LogLevel string

	// Storage выбирает бэкенд: memory или postgres.
	Storage     string
	DatabaseDSN string

	KafkaBrokers []string

	// PaymentSealSecret — секрет для шифрования учётных данных провайдеров.
	PaymentSealSecret string

	FulfillmentStrategy string
	ShipmentCostMinor   int64

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
}

// LoadConfig собирает конфигурацию через viper.
func LoadConfig() (Config, error) {
	v := viper.New()
	v.SetConfigType("env")
	v.SetConfigName(".env")
	v.AddConfigPath(".")

	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("OPS_ADDR", ":9090")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORAGE", "memory")
	v.SetDefault("DATABASE_DSN", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("PAYMENT_SEAL_SECRET", "dev-seal-secret")
	v.SetDefault("FULFILLMENT_STRATEGY", "highest_stock_first")
	v.SetDefault("SHIPMENT_COST_MINOR", 500)
	v.SetDefault("OUTBOX_POLL_INTERVAL", "1s")
	v.SetDefault("OUTBOX_BATCH_SIZE", 100)

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		Environment:         v.GetString("ENVIRONMENT"),
		HTTPAddr:            v.GetString("HTTP_ADDR"),
		OpsAddr:             v.GetString("OPS_ADDR"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		Storage:             v.GetString("STORAGE"),
		DatabaseDSN:         v.GetString("DATABASE_DSN"),
		PaymentSealSecret:   v.GetString("PAYMENT_SEAL_SECRET"),
		FulfillmentStrategy: v.GetString("FULFILLMENT_STRATEGY"),
		ShipmentCostMinor:   v.GetInt64("SHIPMENT_COST_MINOR"),
		OutboxPollInterval:  v.GetDuration("OUTBOX_POLL_INTERVAL"),
		OutboxBatchSize:     v.GetInt("OUTBOX_BATCH_SIZE"),
	}
	if brokers := v.GetString("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность конфигурации.
func (c Config) Validate() error {
	switch c.Storage {
	case "memory":
	case "postgres":
		if c.DatabaseDSN == "" {
			return fmt.Errorf("DATABASE_DSN is required for postgres storage")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage)
	}
	if c.PaymentSealSecret == "" {
		return fmt.Errorf("PAYMENT_SEAL_SECRET must not be empty")
	}
	if c.ShipmentCostMinor < 0 {
		return fmt.Errorf("SHIPMENT_COST_MINOR must not be negative")
	}
	return nil
}
