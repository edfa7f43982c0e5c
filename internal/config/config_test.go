package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.ServerPort == "" {
		t.Fatalf("expected default server port")
	}
	if cfg.PostgresURL == "" {
		t.Fatalf("expected default postgres url")
	}
	if cfg.MinMoveMeters != 10.0 {
		t.Fatalf("expected 10m movement gate, got %v", cfg.MinMoveMeters)
	}
	if cfg.MinWriteInterval != 5*time.Second {
		t.Fatalf("expected 5s write interval, got %v", cfg.MinWriteInterval)
	}
	if cfg.SnapBelowMeters != 5.0 || cfg.SnapAboveMeters != 200.0 {
		t.Fatalf("unexpected snap thresholds")
	}
	if cfg.AnimateDuration != 2*time.Second {
		t.Fatalf("unexpected animate duration")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9000")
	t.Setenv("POSTGRES_URL", "postgres://example")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("MIN_MOVE_METERS", "25")
	t.Setenv("MIN_WRITE_INTERVAL", "10s")

	cfg := Load()
	if cfg.ServerPort != ":9000" {
		t.Fatalf("expected override port")
	}
	if cfg.PostgresURL != "postgres://example" {
		t.Fatalf("expected override postgres")
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Fatalf("expected override redis")
	}
	if cfg.JWTSecret != "secret" {
		t.Fatalf("expected override secret")
	}
	if cfg.MinMoveMeters != 25 {
		t.Fatalf("expected override movement gate")
	}
	if cfg.MinWriteInterval != 10*time.Second {
		t.Fatalf("expected override write interval")
	}
}
