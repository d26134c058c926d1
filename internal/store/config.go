package store

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// PolicyConfig overrides one acquisition retry policy. Zero fields keep the
// built-in value.
type PolicyConfig struct {
	MaxAttempts           int   `yaml:"max_attempts"`
	BackoffSeconds        []int `yaml:"backoff_seconds"`
	RateLimitDelaySeconds int   `yaml:"rate_limit_delay_seconds"`
	WindowsDays           []int `yaml:"windows_days"`
}

type Config struct {
	Mode           string `yaml:"mode"`
	PriceSource    string `yaml:"price_source"`
	ExchangeSuffix string `yaml:"exchange_suffix"`
	FallbackSuffix string `yaml:"fallback_suffix"`
	Fundamentals   struct {
		BaseURL        string `yaml:"base_url"`
		TokenEnv       string `yaml:"token_env"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"fundamentals"`
	Prices struct {
		YahooBaseURL       string `yaml:"yahoo_base_url"`
		KiteAPIKeyEnv      string `yaml:"kite_api_key_env"`
		KiteAccessTokenEnv string `yaml:"kite_access_token_env"`
		KiteExchange       string `yaml:"kite_exchange"`
	} `yaml:"prices"`
	Revenue struct {
		MOPSFallback bool   `yaml:"mops_fallback"`
		MOPSBaseURL  string `yaml:"mops_base_url"`
	} `yaml:"revenue"`
	Acquisition struct {
		FreeTierMinDelayMS       int          `yaml:"free_tier_min_delay_ms"`
		PriceCacheTTLMinutes     int          `yaml:"price_cache_ttl_minutes"`
		FundamentalsCacheTTLHrs  int          `yaml:"fundamentals_cache_ttl_hours"`
		Cold                     PolicyConfig `yaml:"cold"`
		Hot                      PolicyConfig `yaml:"hot"`
		Price                    PolicyConfig `yaml:"price"`
		DisableCache             bool         `yaml:"disable_cache"`
		ConcurrentDatasetFetches int          `yaml:"concurrent_dataset_fetches"`
	} `yaml:"acquisition"`
	Analysis struct {
		PriorYearToleranceDays   int      `yaml:"prior_year_tolerance_days"`
		FieldsFile               string   `yaml:"fields_file"`
		ExcludedSectors          []string `yaml:"excluded_sectors"`
		ExcludedIndustryPrefixes []string `yaml:"excluded_industry_prefixes"`
		ParValue                 float64  `yaml:"par_value"`
		EPSPeriods               int      `yaml:"eps_periods"`
		MarginLookback           int      `yaml:"margin_lookback"`
		RevenueYoYToleranceDays  int      `yaml:"revenue_yoy_tolerance_days"`
		AverageVolumeSessions    int      `yaml:"average_volume_sessions"`
	} `yaml:"analysis"`
	Composer struct {
		HealthyCurrentRatio  float64 `yaml:"healthy_current_ratio"`
		CapitalEfficiencyMin float64 `yaml:"capital_efficiency_min"`
		EarningsYieldMin     float64 `yaml:"earnings_yield_min"`
		MinAverageVolume     float64 `yaml:"min_average_volume"`
		SmallCapThreshold    float64 `yaml:"small_cap_threshold"`
	} `yaml:"composer"`
	Journal struct {
		Enabled       bool   `yaml:"enabled"`
		Dir           string `yaml:"dir"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"journal"`
}

func (c *Config) Validate() error {
	if c.Mode != "LIVE" && c.Mode != "MOCK" {
		return fmt.Errorf("invalid mode '%s': must be 'LIVE' or 'MOCK'", c.Mode)
	}
	if c.PriceSource != "YAHOO" && c.PriceSource != "KITE" {
		return fmt.Errorf("invalid price_source '%s': must be 'YAHOO' or 'KITE'", c.PriceSource)
	}
	if c.Analysis.PriorYearToleranceDays < 0 || c.Analysis.PriorYearToleranceDays > 180 {
		return fmt.Errorf("analysis.prior_year_tolerance_days must be between 0-180, got %d", c.Analysis.PriorYearToleranceDays)
	}
	if c.Analysis.ParValue <= 0 {
		return fmt.Errorf("analysis.par_value must be positive, got %.2f", c.Analysis.ParValue)
	}
	if c.Composer.MinAverageVolume < 0 || c.Composer.SmallCapThreshold < 0 {
		return errors.New("composer thresholds cannot be negative")
	}
	for name, p := range map[string]PolicyConfig{"cold": c.Acquisition.Cold, "hot": c.Acquisition.Hot, "price": c.Acquisition.Price} {
		for _, d := range p.WindowsDays {
			if d <= 0 {
				return fmt.Errorf("acquisition.%s.windows_days must be positive, got %d", name, d)
			}
		}
	}
	if c.Journal.Enabled && c.Journal.Dir == "" {
		return errors.New("journal.dir cannot be empty when the journal is enabled")
	}
	return nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

func (c *Config) applyDefaults() {
	c.Mode = strings.ToUpper(c.Mode)
	if c.Mode == "" {
		c.Mode = "LIVE"
	}
	c.PriceSource = strings.ToUpper(c.PriceSource)
	if c.PriceSource == "" {
		c.PriceSource = "YAHOO"
	}
	if c.ExchangeSuffix == "" {
		c.ExchangeSuffix = ".TW"
	}
	if c.FallbackSuffix == "" {
		c.FallbackSuffix = ".TWO"
	}

	if c.Fundamentals.BaseURL == "" {
		c.Fundamentals.BaseURL = "https://api.finmindtrade.com/api/v4"
	}
	if c.Fundamentals.TokenEnv == "" {
		c.Fundamentals.TokenEnv = "FINMIND_TOKEN"
	}
	if c.Fundamentals.TimeoutSeconds == 0 {
		c.Fundamentals.TimeoutSeconds = 30
	}
	if c.Prices.YahooBaseURL == "" {
		c.Prices.YahooBaseURL = "https://query1.finance.yahoo.com"
	}
	if c.Prices.KiteAPIKeyEnv == "" {
		c.Prices.KiteAPIKeyEnv = "KITE_API_KEY"
	}
	if c.Prices.KiteAccessTokenEnv == "" {
		c.Prices.KiteAccessTokenEnv = "KITE_ACCESS_TOKEN"
	}
	if c.Prices.KiteExchange == "" {
		c.Prices.KiteExchange = "NSE"
	}
	if c.Revenue.MOPSBaseURL == "" {
		c.Revenue.MOPSBaseURL = "https://mops.twse.com.tw"
	}

	if c.Acquisition.FreeTierMinDelayMS == 0 {
		c.Acquisition.FreeTierMinDelayMS = 2000
	}
	if c.Acquisition.PriceCacheTTLMinutes == 0 {
		c.Acquisition.PriceCacheTTLMinutes = 60
	}
	if c.Acquisition.FundamentalsCacheTTLHrs == 0 {
		c.Acquisition.FundamentalsCacheTTLHrs = 24
	}
	if c.Acquisition.ConcurrentDatasetFetches == 0 {
		c.Acquisition.ConcurrentDatasetFetches = 4
	}

	if c.Analysis.PriorYearToleranceDays == 0 {
		c.Analysis.PriorYearToleranceDays = 45
	}
	if len(c.Analysis.ExcludedSectors) == 0 {
		c.Analysis.ExcludedSectors = []string{"Financial", "Bank", "Insurance"}
	}
	if len(c.Analysis.ExcludedIndustryPrefixes) == 0 {
		c.Analysis.ExcludedIndustryPrefixes = []string{"28"}
	}
	if c.Analysis.ParValue == 0 {
		c.Analysis.ParValue = 10
	}
	if c.Analysis.EPSPeriods == 0 {
		c.Analysis.EPSPeriods = 20
	}
	if c.Analysis.MarginLookback == 0 {
		c.Analysis.MarginLookback = 5
	}
	if c.Analysis.RevenueYoYToleranceDays == 0 {
		c.Analysis.RevenueYoYToleranceDays = 5
	}
	if c.Analysis.AverageVolumeSessions == 0 {
		c.Analysis.AverageVolumeSessions = 20
	}

	if c.Composer.HealthyCurrentRatio == 0 {
		c.Composer.HealthyCurrentRatio = 1.5
	}
	if c.Composer.CapitalEfficiencyMin == 0 {
		c.Composer.CapitalEfficiencyMin = 0.25
	}
	if c.Composer.EarningsYieldMin == 0 {
		c.Composer.EarningsYieldMin = 0.10
	}
	if c.Composer.MinAverageVolume == 0 {
		c.Composer.MinAverageVolume = 500_000
	}
	if c.Composer.SmallCapThreshold == 0 {
		c.Composer.SmallCapThreshold = 50_000_000_000
	}

	if c.Journal.Dir == "" {
		c.Journal.Dir = "journal"
	}
	if c.Journal.RetentionDays == 0 {
		c.Journal.RetentionDays = 30
	}
}

// LoadConfig reads path, fills unset fields with defaults and validates.
// An empty path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		c := Default()
		return c, c.Validate()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
