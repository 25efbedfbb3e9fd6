package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every setting the marketmaker binary needs to wire up its
// actors. It is loaded from a YAML file and then overlaid with environment
// variables, the credentials coming from a separate secrets file loaded by
// LoadSecrets.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Trading struct {
		Mode string `yaml:"mode"` // "paper", "demo" or "real"
	} `yaml:"trading"`

	Exchange struct {
		RestURL         string `yaml:"rest_url"`
		RequestsPerSec  int    `yaml:"requests_per_sec"`
		Burst           int    `yaml:"burst"`
		BreakerFailures int    `yaml:"breaker_failures"`
	} `yaml:"exchange"`

	Pairs []PairConfig `yaml:"pairs"`

	Maker struct {
		RoundIntervalMS  int     `yaml:"round_interval_ms"`
		MaxOrders        int     `yaml:"max_orders"`
		ResilienceFactor float64 `yaml:"resilience_factor"`
		FundFactor       float64 `yaml:"fund_factor"`
		TargetingFactor  float64 `yaml:"targeting_factor"`
		// SizingStrategy selects the targeting-factor source: "static"
		// (the configured TargetingFactor, unchanged every round) or
		// "volatility" (narrows toward 0.5 as realized VWAP volatility
		// rises).
		SizingStrategy   string `yaml:"sizing_strategy"`
		VolatilityWindow int    `yaml:"volatility_window"`
		// PlaceEqualPriceBeforeCancel resolves §9 open question (b):
		// whether a desired order at the same price as a stale live
		// order gets a placement attempt before the live order is
		// cancelled. Nil defaults to true.
		PlaceEqualPriceBeforeCancel *bool `yaml:"place_equal_price_before_cancel"`
	} `yaml:"maker"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	// Paper seeds the PaperClient used when trading.mode is "paper": the
	// dry-run exchange has no independent price feed of its own, so main
	// needs an initial balance per asset and an initial mid per pair to
	// give the Maker round something to quote against.
	Paper struct {
		InitialBalances map[string]float64 `yaml:"initial_balances"`
		InitialMids     map[string]string  `yaml:"initial_mids"`
	} `yaml:"paper"`
}

// PairConfig is one market the Maker round quotes.
type PairConfig struct {
	Symbol        string  `yaml:"symbol"`
	PriceDecimals int     `yaml:"price_decimals"`
	BaseAsset     string  `yaml:"base_asset"`
	QuoteAsset    string  `yaml:"quote_asset"`
	FeePct        float64 `yaml:"fee_pct"`
}

// Load reads path as YAML, applies an env overlay (loading a .env file
// from the working directory first if one exists, in the teacher's
// style), and validates the result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	overrideWithEnv(&cfg)
	applyMakerDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the loaded config is internally consistent enough
// to bootstrap the actor mesh.
func (c *Config) Validate() error {
	if c.Exchange.RestURL == "" {
		return fmt.Errorf("exchange.rest_url is required")
	}
	if len(c.Pairs) == 0 {
		return fmt.Errorf("at least one pair is required")
	}
	for _, p := range c.Pairs {
		if p.Symbol == "" {
			return fmt.Errorf("pair with empty symbol")
		}
		if p.PriceDecimals < 0 {
			return fmt.Errorf("pair %s: negative price_decimals", p.Symbol)
		}
	}
	if c.Maker.RoundIntervalMS <= 0 {
		return fmt.Errorf("maker.round_interval_ms must be positive")
	}
	if c.Maker.MaxOrders <= 0 {
		return fmt.Errorf("maker.max_orders must be positive")
	}
	return nil
}

// applyMakerDefaults fills in the maker.* settings a config.yaml is
// allowed to omit, matching the values spec.md's §9 open questions and
// the default sizing strategy resolve to.
func applyMakerDefaults(cfg *Config) {
	if cfg.Maker.ResilienceFactor == 0 {
		cfg.Maker.ResilienceFactor = 1.0
	}
	if cfg.Maker.FundFactor == 0 {
		cfg.Maker.FundFactor = 0.5
	}
	if cfg.Maker.TargetingFactor == 0 {
		cfg.Maker.TargetingFactor = 0.5
	}
	if cfg.Maker.SizingStrategy == "" {
		cfg.Maker.SizingStrategy = "static"
	}
	if cfg.Maker.VolatilityWindow == 0 {
		cfg.Maker.VolatilityWindow = 20
	}
	if cfg.Maker.PlaceEqualPriceBeforeCancel == nil {
		v := true
		cfg.Maker.PlaceEqualPriceBeforeCancel = &v
	}
}

func overrideWithEnv(cfg *Config) {
	if url := os.Getenv("SPOTMAKER_EXCHANGE_URL"); url != "" {
		cfg.Exchange.RestURL = url
	}
	if mode := os.Getenv("SPOTMAKER_MODE"); mode != "" {
		cfg.Trading.Mode = strings.ToLower(mode)
	}
	if lvl := os.Getenv("SPOTMAKER_LOG_LEVEL"); lvl != "" {
		cfg.Logging.Level = lvl
	}
}
