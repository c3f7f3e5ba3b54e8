package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"baseQuestAPI/internal/wallet"
)

type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL string

	LaunchTime  time.Time
	EntryFeeEth string
	EntryFeeWei *big.Int

	Curators []common.Address
	Attester common.Address
	Treasury common.Address

	RPCURL             string
	ChainID            int64
	TreasuryPrivateKey string
	DevTrustedPayments bool

	FCMServiceAccount string
	FCMTopic          string

	MetricsUser    string
	MetricsPass    string
	PprofSecret    string
	AllowedOrigins []string

	AuthMaxAge   time.Duration
	EventWorkers int
}

func (c *Config) IsDev() bool {
	return c.Env != "production"
}

// HasAttester reports whether an attester address is configured.
func (c *Config) HasAttester() bool {
	return c.Attester != (common.Address{})
}

func defaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LAUNCH_TIME", "2025-01-06T00:00:00Z")
	v.SetDefault("ENTRY_FEE_ETH", "0.00001")
	v.SetDefault("CHAIN_ID", 8453)
	v.SetDefault("FCM_TOPIC", "base-quest")
	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("AUTH_MAX_AGE", "5m")
	v.SetDefault("EVENT_WORKERS", 4)
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	defaults(v)
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:               v.GetString("PORT"),
		Env:                v.GetString("APP_ENV"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		DatabaseURL:        v.GetString("DATABASE_URL"),
		EntryFeeEth:        v.GetString("ENTRY_FEE_ETH"),
		RPCURL:             v.GetString("RPC_URL"),
		ChainID:            v.GetInt64("CHAIN_ID"),
		TreasuryPrivateKey: strings.TrimPrefix(v.GetString("TREASURY_PRIVATE_KEY"), "0x"),
		DevTrustedPayments: v.GetBool("DEV_TRUSTED_PAYMENTS"),
		FCMServiceAccount:  v.GetString("FCM_SERVICE_ACCOUNT_JSON"),
		FCMTopic:           v.GetString("FCM_TOPIC"),
		MetricsUser:        v.GetString("METRICS_USER"),
		MetricsPass:        v.GetString("METRICS_PASS"),
		PprofSecret:        v.GetString("PPROF_SECRET"),
		AuthMaxAge:         v.GetDuration("AUTH_MAX_AGE"),
		EventWorkers:       v.GetInt("EVENT_WORKERS"),
	}

	launch, err := time.Parse(time.RFC3339, v.GetString("LAUNCH_TIME"))
	if err != nil {
		return nil, fmt.Errorf("invalid LAUNCH_TIME: %w", err)
	}
	cfg.LaunchTime = launch.UTC()

	if cfg.EntryFeeWei, err = wallet.ParseEther(cfg.EntryFeeEth); err != nil {
		return nil, fmt.Errorf("invalid ENTRY_FEE_ETH: %w", err)
	}

	if cfg.Curators, err = wallet.ParseAddressList(v.GetString("CURATOR_ADDRESSES")); err != nil {
		return nil, fmt.Errorf("invalid CURATOR_ADDRESSES: %w", err)
	}

	if raw := v.GetString("ATTESTER_ADDRESS"); raw != "" {
		if cfg.Attester, err = wallet.UnifyAddress(raw); err != nil {
			return nil, fmt.Errorf("invalid ATTESTER_ADDRESS: %w", err)
		}
	}
	if raw := v.GetString("TREASURY_ADDRESS"); raw != "" {
		if cfg.Treasury, err = wallet.UnifyAddress(raw); err != nil {
			return nil, fmt.Errorf("invalid TREASURY_ADDRESS: %w", err)
		}
	}

	for _, o := range strings.Split(v.GetString("ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	if cfg.EventWorkers <= 0 {
		cfg.EventWorkers = 1
	}
	if cfg.AuthMaxAge <= 0 {
		cfg.AuthMaxAge = 5 * time.Minute
	}
	if !cfg.DevTrustedPayments && cfg.RPCURL == "" && !cfg.IsDev() {
		return nil, fmt.Errorf("RPC_URL is required in production unless DEV_TRUSTED_PAYMENTS is set")
	}
	return cfg, nil
}
