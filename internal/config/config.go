package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Network      string `envconfig:"KASPAX_NETWORK" default:"testnet10"`
	Port         int    `envconfig:"KASPAX_PORT" default:"8080"`
	LogLevel     string `envconfig:"KASPAX_LOG_LEVEL" default:"info"`
	LogDir       string `envconfig:"KASPAX_LOG_DIR" default:"./logs"`
	DBPath       string `envconfig:"KASPAX_DB_PATH" default:"./data/txkernel-audit.sqlite"`
	KVPath       string `envconfig:"KASPAX_KV_PATH" default:"./data/txkernel.kv"`
	MnemonicFile string `envconfig:"KASPAX_MNEMONIC_FILE"`

	TreasuryAddress string `envconfig:"KASPAX_TREASURY_ADDRESS"`

	CustomRPCURL    string `envconfig:"KASPAX_CUSTOM_RPC_URL"`
	LocalRPCURL     string `envconfig:"KASPAX_LOCAL_RPC_URL"`
	LocalRPCEnabled bool   `envconfig:"KASPAX_LOCAL_RPC_ENABLED" default:"false"`

	// Tunables, loaded from the environment and checked by Validate; see
	// constants.go for documented defaults. The packages read the constants in
	// constants.go, not these fields, so an override here does not change
	// their behaviour.
	RequestTimeoutMS   int  `envconfig:"KASPAX_REQUEST_TIMEOUT_MS" default:"12000"`
	MaxRetries         int  `envconfig:"KASPAX_MAX_RETRIES" default:"2"`
	RetryDelayBaseMS   int  `envconfig:"KASPAX_RETRY_DELAY_BASE_MS" default:"600"`
	CBTripThreshold    int  `envconfig:"KASPAX_CB_TRIP_THRESHOLD" default:"4"`
	CBRecoverMS        int  `envconfig:"KASPAX_CB_RECOVER_MS" default:"30000"`
	PoolCacheTTLMS     int  `envconfig:"KASPAX_POOL_CACHE_TTL_MS" default:"5000"`
	UtxoCacheTTLMS     int  `envconfig:"KASPAX_UTXO_CACHE_TTL_MS" default:"5000"`
	TxFeeSafetyBPS     int  `envconfig:"KASPAX_TX_FEE_SAFETY_BPS" default:"11500"`
	TxFeeMinSompi      int64 `envconfig:"KASPAX_TX_FEE_MIN_SOMPI" default:"1000"`
	TxFeeMaxSompi      int64 `envconfig:"KASPAX_TX_FEE_MAX_SOMPI" default:"200000000"`
	PlatformFeeBPS     int  `envconfig:"KASPAX_PLATFORM_FEE_BPS" default:"30"`
	MinPlatformFee     int64 `envconfig:"KASPAX_MIN_PLATFORM_FEE" default:"100000"`
	MaxPlatformFee     int64 `envconfig:"KASPAX_MAX_PLATFORM_FEE" default:"100000000"`
	ConfirmPollMS      int  `envconfig:"KASPAX_CONFIRM_POLL_MS" default:"1000"`
	ConfirmTimeoutMS   int  `envconfig:"KASPAX_CONFIRM_TIMEOUT_MS" default:"300000"`
	RequireLocalSynced bool `envconfig:"KASPAX_REQUIRE_LOCAL_SYNCED" default:"true"`
	AuditMaxEvents     int  `envconfig:"KASPAX_AUDIT_MAX_EVENTS" default:"600"`
}

// Load reads configuration from .env file (if present) then from environment variables.
// Environment variables override .env values.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			slog.Warn("failed to load .env file", "file", ".env", "error", err)
		} else {
			slog.Info("loaded .env file", "file", ".env")
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	switch c.Network {
	case "mainnet", "testnet10", "testnet11", "testnet12":
	default:
		return fmt.Errorf("%w: network must be one of mainnet|testnet10|testnet11|testnet12, got %q", ErrInvalidConfig, c.Network)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be 1-65535, got %d", ErrInvalidConfig, c.Port)
	}
	if c.CBTripThreshold < 1 {
		return fmt.Errorf("%w: cb trip threshold must be >= 1, got %d", ErrInvalidConfig, c.CBTripThreshold)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must be >= 0, got %d", ErrInvalidConfig, c.MaxRetries)
	}
	if c.TxFeeMinSompi < 0 || c.TxFeeMaxSompi < c.TxFeeMinSompi {
		return fmt.Errorf("%w: fee floor/ceiling invalid", ErrInvalidConfig)
	}
	return nil
}
