package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Env != "development" {
		t.Errorf("expected env=development, got %s", cfg.Env)
	}
	if cfg.Transport.SocketPath != "/var/run/ccm/ccm.sock" {
		t.Errorf("unexpected socket path: %s", cfg.Transport.SocketPath)
	}
	if cfg.Enclave.MaxConcurrentLocks != 100 {
		t.Errorf("expected max concurrent locks 100, got %d", cfg.Enclave.MaxConcurrentLocks)
	}
	if cfg.Enclave.MinLockDurationSec != 30 {
		t.Errorf("expected min lock duration 30, got %d", cfg.Enclave.MinLockDurationSec)
	}

	domain := cfg.Enclave.ToDomain()
	if _, ok := domain.SupportedChains[1]; !ok {
		t.Error("expected chain 1 to be supported by default")
	}
	if _, ok := domain.SupportedChains[42161]; !ok {
		t.Error("expected chain 42161 to be supported by default")
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("CCM_ENV", "production")
	os.Setenv("CCM_TRANSPORT_HTTP_ADDR", "0.0.0.0:9090")
	defer os.Unsetenv("CCM_ENV")
	defer os.Unsetenv("CCM_TRANSPORT_HTTP_ADDR")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Env != "production" {
		t.Errorf("expected env=production, got %s", cfg.Env)
	}
	if cfg.Transport.HTTPAddr != "0.0.0.0:9090" {
		t.Errorf("unexpected http addr: %s", cfg.Transport.HTTPAddr)
	}
}

func TestEnclaveConfigToDomainFallsBackOnUnparsableAmount(t *testing.T) {
	cfg := EnclaveConfig{
		MinLockDurationSec:      30,
		MaxLockDurationSec:      3600,
		MaxTotalLockedPerAccount: "not-a-number",
		MaxConcurrentLocks:      7,
	}
	domain := cfg.ToDomain()
	if domain.RiskLimits.MaxTotalLockedPerAccount.Sign() <= 0 {
		t.Error("expected a positive fallback default when the configured amount fails to parse")
	}
	if domain.RiskLimits.MaxConcurrentLocks != 7 {
		t.Errorf("expected max concurrent locks 7, got %d", domain.RiskLimits.MaxConcurrentLocks)
	}
}
