// Package config loads the commitment machine's runtime configuration from
// environment variables, using an env-prefixed viper.Load() shape.
package config

import (
	"math/big"
	"strings"

	"github.com/spf13/viper"

	"github.com/credible-commitment/ccm-core/internal/ccmtype"
)

// Config holds all application configuration.
type Config struct {
	Env       string `mapstructure:"env"`
	Enclave   EnclaveConfig
	Transport TransportConfig
}

// EnclaveConfig mirrors ccmtype.EnclaveConfig's shape as env-loadable scalars;
// Load returns it as loaded, and callers convert it into a
// ccmtype.EnclaveConfig via ToDomain.
type EnclaveConfig struct {
	MinLockDurationSec  uint64  `mapstructure:"min_lock_duration_sec"`
	MaxLockDurationSec  uint64  `mapstructure:"max_lock_duration_sec"`
	SettlementBufferSec uint64  `mapstructure:"settlement_buffer_sec"`
	SupportedChains     []int64 `mapstructure:"supported_chains"`

	MaxTotalLockedPerAccount string `mapstructure:"max_total_locked_per_account"`
	MaxSingleLockAmount      string `mapstructure:"max_single_lock_amount"`
	MaxDailyVolume           string `mapstructure:"max_daily_volume"`
	MaxConcurrentLocks       int    `mapstructure:"max_concurrent_locks"`
}

// TransportConfig holds the RPC shim's listener settings.
type TransportConfig struct {
	SocketPath string `mapstructure:"socket_path"`
	HTTPAddr   string `mapstructure:"http_addr"`
}

// ToDomain converts the env-loaded scalars into a ccmtype.EnclaveConfig,
// falling back to built-in defaults for any amount string that fails to parse.
func (c EnclaveConfig) ToDomain() ccmtype.EnclaveConfig {
	defaults := ccmtype.DefaultRiskLimits()
	limits := ccmtype.RiskLimits{
		MaxTotalLockedPerAccount: parseOrDefault(c.MaxTotalLockedPerAccount, defaults.MaxTotalLockedPerAccount),
		MaxSingleLockAmount:      parseOrDefault(c.MaxSingleLockAmount, defaults.MaxSingleLockAmount),
		MaxDailyVolume:           parseOrDefault(c.MaxDailyVolume, defaults.MaxDailyVolume),
		MaxConcurrentLocks:       c.MaxConcurrentLocks,
	}

	chains := make(map[uint64]struct{}, len(c.SupportedChains))
	for _, id := range c.SupportedChains {
		chains[uint64(id)] = struct{}{}
	}
	if len(chains) == 0 {
		chains = map[uint64]struct{}{1: {}, 42161: {}}
	}

	return ccmtype.EnclaveConfig{
		MinLockDuration:  c.MinLockDurationSec,
		MaxLockDuration:  c.MaxLockDurationSec,
		SettlementBuffer: c.SettlementBufferSec,
		SupportedChains:  chains,
		RiskLimits:       limits,
	}
}

// Load reads configuration from environment variables prefixed with CCM_.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CCM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("env", "development")

	v.SetDefault("enclave.min_lock_duration_sec", 30)
	v.SetDefault("enclave.max_lock_duration_sec", 3600)
	v.SetDefault("enclave.settlement_buffer_sec", 300)
	v.SetDefault("enclave.supported_chains", []int64{1, 42161})
	v.SetDefault("enclave.max_total_locked_per_account", "1000000000000000000000000")
	v.SetDefault("enclave.max_single_lock_amount", "100000000000000000000000")
	v.SetDefault("enclave.max_daily_volume", "10000000000000000000000000")
	v.SetDefault("enclave.max_concurrent_locks", 100)

	v.SetDefault("transport.socket_path", "/var/run/ccm/ccm.sock")
	v.SetDefault("transport.http_addr", "127.0.0.1:8090")

	cfg := &Config{
		Env: v.GetString("env"),
		Enclave: EnclaveConfig{
			MinLockDurationSec:       v.GetUint64("enclave.min_lock_duration_sec"),
			MaxLockDurationSec:       v.GetUint64("enclave.max_lock_duration_sec"),
			SettlementBufferSec:      v.GetUint64("enclave.settlement_buffer_sec"),
			SupportedChains:          v.GetInt64Slice("enclave.supported_chains"),
			MaxTotalLockedPerAccount: v.GetString("enclave.max_total_locked_per_account"),
			MaxSingleLockAmount:      v.GetString("enclave.max_single_lock_amount"),
			MaxDailyVolume:           v.GetString("enclave.max_daily_volume"),
			MaxConcurrentLocks:       v.GetInt("enclave.max_concurrent_locks"),
		},
		Transport: TransportConfig{
			SocketPath: v.GetString("transport.socket_path"),
			HTTPAddr:   v.GetString("transport.http_addr"),
		},
	}

	return cfg, nil
}

func parseOrDefault(s string, fallback *big.Int) *big.Int {
	if s == "" {
		return fallback
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fallback
	}
	return v
}
