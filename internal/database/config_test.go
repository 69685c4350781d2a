package database

import (
	"context"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	if config.MaxOpenConns != 25 {
		t.Errorf("expected MaxOpenConns=25, got %d", config.MaxOpenConns)
	}
	if config.RetryAttempts != 3 {
		t.Errorf("expected RetryAttempts=3, got %d", config.RetryAttempts)
	}
}

func TestConfigValidateEmptyDSN(t *testing.T) {
	config := &Config{}
	if err := config.Validate(); err != ErrInvalidDSN {
		t.Errorf("expected ErrInvalidDSN, got %v", err)
	}
}

func TestConfigValidateAppliesDefaults(t *testing.T) {
	config := &Config{DSN: "postgres://localhost:5432/test"}
	if err := config.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.MaxOpenConns <= 0 {
		t.Error("expected MaxOpenConns to be filled in with a default")
	}
	if config.MaxIdleConns > config.MaxOpenConns {
		t.Errorf("MaxIdleConns (%d) must not exceed MaxOpenConns (%d)", config.MaxIdleConns, config.MaxOpenConns)
	}
}

func TestConnectInvalidDSN(t *testing.T) {
	config := &Config{DSN: "postgres://nonexistent:5432/test", RetryAttempts: 0}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := Connect(ctx, config); err == nil {
		t.Error("expected a connection error for an unreachable host, got nil")
	}
}
