package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"HTTP_ADDR", "KAFKA_BROKERS", "SERVICE_NAME",
		"PAYMENT_MIN_AMOUNT_CENTS", "SWEEP_INTERVAL", "SWEEP_BATCH",
	} {
		t.Setenv(k, "")
	}

	cfg := Load()
	if cfg.HTTPAddr != ":8082" {
		t.Fatalf("unexpected default addr %q", cfg.HTTPAddr)
	}
	if cfg.ServiceName != "checkout-api" {
		t.Fatalf("unexpected default service name %q", cfg.ServiceName)
	}
	if cfg.PaymentMinAmountCents != 150000 {
		t.Fatalf("unexpected default min amount %d", cfg.PaymentMinAmountCents)
	}
	if cfg.SweepInterval != time.Minute {
		t.Fatalf("unexpected default sweep interval %v", cfg.SweepInterval)
	}
	if cfg.SweepBatchSize != 500 {
		t.Fatalf("unexpected default sweep batch %d", cfg.SweepBatchSize)
	}
}

func TestLoadKafkaBrokersCSV(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092 ,")
	cfg := Load()
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[0] != "kafka-1:9092" || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
}

func TestValidateRequiresPaymentCredentials(t *testing.T) {
	base := Config{
		PaymentBaseURL:        "https://sandbox.wompi.co/v1",
		PaymentPublicKey:      "pub_test",
		PaymentPrivateKey:     "prv_test",
		PaymentEventsSecret:   "events_secret",
		PaymentMinAmountCents: 150000,
		SweepBatchSize:        500,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("complete config must validate, got %v", err)
	}

	cases := []func(*Config){
		func(c *Config) { c.PaymentBaseURL = "" },
		func(c *Config) { c.PaymentPublicKey = "" },
		func(c *Config) { c.PaymentPrivateKey = "" },
		func(c *Config) { c.PaymentEventsSecret = "" },
		func(c *Config) { c.PaymentMinAmountCents = 0 },
		func(c *Config) { c.SweepBatchSize = 0 },
	}
	for i, mutate := range cases {
		c := base
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestAtoiAndDurationFallbacks(t *testing.T) {
	if got := atoiDefault("not-a-number", 42); got != 42 {
		t.Fatalf("expected fallback 42, got %d", got)
	}
	if got := durationDefault("garbage", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback 1m, got %v", got)
	}
	if got := durationDefault("30s", time.Minute); got != 30*time.Second {
		t.Fatalf("expected parsed 30s, got %v", got)
	}
}
