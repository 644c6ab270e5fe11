package app

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("expected default http addr :8080, got %s", cfg.HTTPAddr)
	}
	if cfg.OpsAddr != ":9090" {
		t.Errorf("expected default ops addr :9090, got %s", cfg.OpsAddr)
	}
	if cfg.Storage != "memory" {
		t.Errorf("expected default storage memory, got %s", cfg.Storage)
	}
	if cfg.ShipmentCostMinor != 500 {
		t.Errorf("expected default shipment cost 500, got %d", cfg.ShipmentCostMinor)
	}
	if cfg.OutboxPollInterval != time.Second {
		t.Errorf("expected default poll interval 1s, got %s", cfg.OutboxPollInterval)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":3000")
	t.Setenv("STORAGE", "postgres")
	t.Setenv("DATABASE_DSN", "postgres://localhost/checkout")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092,broker-2:9092")
	t.Setenv("FULFILLMENT_STRATEGY", "nearest_location")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPAddr != ":3000" {
		t.Errorf("expected http addr :3000, got %s", cfg.HTTPAddr)
	}
	if cfg.Storage != "postgres" {
		t.Errorf("expected postgres storage, got %s", cfg.Storage)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[0] != "broker-1:9092" {
		t.Errorf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.FulfillmentStrategy != "nearest_location" {
		t.Errorf("unexpected strategy %s", cfg.FulfillmentStrategy)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory ok", Config{Storage: "memory", PaymentSealSecret: "s"}, false},
		{"postgres without dsn", Config{Storage: "postgres", PaymentSealSecret: "s"}, true},
		{"postgres with dsn", Config{Storage: "postgres", DatabaseDSN: "dsn", PaymentSealSecret: "s"}, false},
		{"unknown backend", Config{Storage: "etcd", PaymentSealSecret: "s"}, true},
		{"empty seal secret", Config{Storage: "memory"}, true},
		{"negative shipment cost", Config{Storage: "memory", PaymentSealSecret: "s", ShipmentCostMinor: -1}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
