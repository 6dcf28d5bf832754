package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// LedgerConfig carries operator-tunable ledger policy. It lives in a
// separate hot-reloadable file because these knobs get adjusted in
// response to load, not at deploys.
type LedgerConfig struct {
	// MaxUpdateRetries bounds optimistic compare-and-update retries
	// before an operation surfaces contention to the caller.
	MaxUpdateRetries int `mapstructure:"maxUpdateRetries"`
	// MinDonation is the smallest accepted donation, as a decimal string.
	MinDonation string `mapstructure:"minDonation"`
	// MaxCampaignDurationDays caps how far in the future a deadline may be.
	MaxCampaignDurationDays int `mapstructure:"maxCampaignDurationDays"`
	// DonateRatePerMinute / DonateBurst shape the per-donor token bucket.
	DonateRatePerMinute int `mapstructure:"donateRatePerMinute"`
	DonateBurst         int `mapstructure:"donateBurst"`
}

func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		MaxUpdateRetries:        5,
		MinDonation:             "0.000001",
		MaxCampaignDurationDays: 365,
		DonateRatePerMinute:     60,
		DonateBurst:             10,
	}
}

type LedgerConfigHolder struct {
	current atomic.Value // holds LedgerConfig
}

// NewLedgerConfigHolder reads ledger.yml when present and watches it for
// changes; otherwise the defaults apply.
func NewLedgerConfigHolder() (*LedgerConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("ledger")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/crowdvault/config")
	v.AddConfigPath("/etc/crowdvault")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CROWDVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultLedgerConfig()
		v.SetDefault("ledger.maxUpdateRetries", defaults.MaxUpdateRetries)
		v.SetDefault("ledger.minDonation", defaults.MinDonation)
		v.SetDefault("ledger.maxCampaignDurationDays", defaults.MaxCampaignDurationDays)
		v.SetDefault("ledger.donateRatePerMinute", defaults.DonateRatePerMinute)
		v.SetDefault("ledger.donateBurst", defaults.DonateBurst)
	}

	var cfg LedgerConfig
	if err := v.UnmarshalKey("ledger", &cfg); err != nil {
		return nil, err
	}
	if err := validateLedgerConfig(cfg); err != nil {
		return nil, err
	}

	holder := &LedgerConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated LedgerConfig
		if err := v.UnmarshalKey("ledger", &updated); err != nil {
			log.Printf("[ledger-config] reload failed: %v", err)
			return
		}
		if err := validateLedgerConfig(updated); err != nil {
			log.Printf("[ledger-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[ledger-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticLedgerConfigHolder wraps a fixed config; used by tests.
func NewStaticLedgerConfigHolder(cfg LedgerConfig) *LedgerConfigHolder {
	holder := &LedgerConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *LedgerConfigHolder) Get() LedgerConfig {
	return h.current.Load().(LedgerConfig)
}

func validateLedgerConfig(cfg LedgerConfig) error {
	if cfg.MaxUpdateRetries < 1 {
		return errors.New("ledger.maxUpdateRetries must be at least 1")
	}
	if cfg.MaxCampaignDurationDays < 1 {
		return errors.New("ledger.maxCampaignDurationDays must be at least 1")
	}
	return nil
}
