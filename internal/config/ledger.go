package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// LedgerConfig holds the tunables that operators may change without a redeploy.
type LedgerConfig struct {
	Satsang SatsangConfig `mapstructure:"satsang"`
	History HistoryConfig `mapstructure:"history"`
	Balance BalanceConfig `mapstructure:"balance"`
}

type SatsangConfig struct {
	RatePerMinute int64 `mapstructure:"rate_per_minute"`
	MinimumCharge int64 `mapstructure:"minimum_charge"`
}

type HistoryConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"`
}

type BalanceConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	MaxCASAttempts  int           `mapstructure:"max_cas_attempts"`
}

func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		Satsang: SatsangConfig{RatePerMinute: 2, MinimumCharge: 2},
		History: HistoryConfig{DefaultLimit: 50, MaxLimit: 1000},
		Balance: BalanceConfig{RefreshInterval: 0, MaxCASAttempts: 5},
	}
}

type LedgerConfigHolder struct {
	current atomic.Value // holds LedgerConfig
}

// NewStaticLedgerConfigHolder returns a holder that never reloads.
func NewStaticLedgerConfigHolder(cfg LedgerConfig) *LedgerConfigHolder {
	holder := &LedgerConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewLedgerConfigHolder(log *zap.Logger) (*LedgerConfigHolder, error) {
	log = log.Named("ledger-config")
	v := viper.New()

	v.SetConfigName("ledger")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/rraasi/config") // Volume-mounted config
	v.AddConfigPath("/etc/rraasi")            // System config
	v.AddConfigPath(".")                      // Current directory (dev mode)

	v.SetEnvPrefix("RRAASI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultLedgerConfig()
	v.SetDefault("ledger.satsang.rate_per_minute", defaults.Satsang.RatePerMinute)
	v.SetDefault("ledger.satsang.minimum_charge", defaults.Satsang.MinimumCharge)
	v.SetDefault("ledger.history.default_limit", defaults.History.DefaultLimit)
	v.SetDefault("ledger.history.max_limit", defaults.History.MaxLimit)
	v.SetDefault("ledger.balance.refresh_interval", defaults.Balance.RefreshInterval)
	v.SetDefault("ledger.balance.max_cas_attempts", defaults.Balance.MaxCASAttempts)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var cfg LedgerConfig
	if err := v.UnmarshalKey("ledger", &cfg); err != nil {
		return nil, err
	}
	if err := validateLedgerConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticLedgerConfigHolder(cfg)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated LedgerConfig
		if err := v.UnmarshalKey("ledger", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := validateLedgerConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *LedgerConfigHolder) Get() LedgerConfig {
	return h.current.Load().(LedgerConfig)
}

func validateLedgerConfig(cfg LedgerConfig) error {
	if cfg.Satsang.RatePerMinute <= 0 {
		return errors.New("ledger.satsang.rate_per_minute must be positive")
	}
	if cfg.Satsang.MinimumCharge < 0 {
		return errors.New("ledger.satsang.minimum_charge cannot be negative")
	}
	if cfg.History.MaxLimit < 1 || cfg.History.DefaultLimit < 1 {
		return errors.New("ledger.history limits must be at least 1")
	}
	if cfg.History.DefaultLimit > cfg.History.MaxLimit {
		return errors.New("ledger.history.default_limit exceeds max_limit")
	}
	if cfg.Balance.MaxCASAttempts < 1 {
		return errors.New("ledger.balance.max_cas_attempts must be at least 1")
	}
	return nil
}
