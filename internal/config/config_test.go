package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_ADDR", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("SITECMS_REORDER_TIMEOUT_MS", "")
	t.Setenv("MINIO_USE_SSL", "")
	t.Setenv("REDIS_LEASE_TTL_SECONDS", "")
	t.Setenv("KAFKA_PUBLISH_TIMEOUT_MS", "")

	cfg := Load()
	if cfg.Addr != ":8787" {
		t.Fatalf("expected default addr, got %q", cfg.Addr)
	}
	if cfg.KafkaBrokers != nil {
		t.Fatalf("expected no brokers, got %v", cfg.KafkaBrokers)
	}
	if cfg.ReorderTimeout != 10*time.Second {
		t.Fatalf("expected 10s reorder timeout, got %s", cfg.ReorderTimeout)
	}
	if cfg.MinioUseSSL {
		t.Fatal("expected MinioUseSSL false by default")
	}
	if cfg.LeaseTTL != 30*time.Second {
		t.Fatalf("expected 30s lease ttl, got %s", cfg.LeaseTTL)
	}
	if cfg.EventsTimeout != 5*time.Second {
		t.Fatalf("expected 5s publish timeout, got %s", cfg.EventsTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")
	t.Setenv("SITECMS_REORDER_RETRIES", "5")
	t.Setenv("SITECMS_REORDER_BACKOFF_MS", "250")
	t.Setenv("SITECMS_REORDER_CONCURRENCY", "not-a-number")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg := Load()
	if want := []string{"k1:9092", "k2:9092"}; !reflect.DeepEqual(cfg.KafkaBrokers, want) {
		t.Fatalf("brokers = %v, want %v", cfg.KafkaBrokers, want)
	}
	if cfg.ReorderRetries != 5 {
		t.Fatalf("retries = %d", cfg.ReorderRetries)
	}
	if cfg.ReorderBackoff != 250*time.Millisecond {
		t.Fatalf("backoff = %s", cfg.ReorderBackoff)
	}
	if cfg.ReorderConcurrency != 8 {
		t.Fatalf("invalid concurrency should fall back to 8, got %d", cfg.ReorderConcurrency)
	}
	if !cfg.MinioUseSSL {
		t.Fatal("expected MinioUseSSL true")
	}
}
