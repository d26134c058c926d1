package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"equity-advisor/internal/acquire"
	"equity-advisor/internal/advisor"
	"equity-advisor/internal/advisor/advisorobs"
	"equity-advisor/internal/api"
	"equity-advisor/internal/datasource/finmind"
	"equity-advisor/internal/datasource/kite"
	"equity-advisor/internal/datasource/mock"
	"equity-advisor/internal/datasource/mops"
	"equity-advisor/internal/datasource/yahoo"
	"equity-advisor/internal/fieldmap"
	"equity-advisor/internal/interfaces"
	"equity-advisor/internal/journal"
	"equity-advisor/internal/logger"
	"equity-advisor/internal/metrics"
	"equity-advisor/internal/signal"
	"equity-advisor/internal/store"
)

type app struct {
	cfg     *store.Config
	fields  fieldmap.Map
	advisor interfaces.Advisor
	journal *journal.Journal
}

// initializeSystem loads .env and starts the logger and tracer.
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = logger.Shutdown(ctx)
}

// loadConfig reads the config file. A missing default config.yaml is not an
// error; the built-in defaults apply.
func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	if path == "config.yaml" {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			logger.Info(ctx, "No config.yaml found, using defaults")
			path = ""
		}
	}
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

func loadFields(ctx context.Context, cfg *store.Config) (fieldmap.Map, error) {
	fields, err := fieldmap.Load(cfg.Analysis.FieldsFile)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load field map", err, "path", cfg.Analysis.FieldsFile)
		return nil, err
	}
	return fields, nil
}

// initializeSources picks the providers for the configured mode. The second
// return reports whether fundamentals are fetched without a token and so
// must be throttled.
func initializeSources(ctx context.Context, cfg *store.Config) (advisor.Sources, bool, error) {
	if cfg.Mode == "MOCK" {
		logger.Warn(ctx, "Running in MOCK mode - all data is synthetic")
		m := mock.New()
		return advisor.Sources{Fundamentals: m, Prices: m, Flows: m}, false, nil
	}

	timeout := time.Duration(cfg.Fundamentals.TimeoutSeconds) * time.Second
	httpOpts := []api.ClientOption{api.WithTimeout(timeout), api.WithLogging(logger.IsDebugEnabled())}
	fm := finmind.New(cfg.Fundamentals.BaseURL, os.Getenv(cfg.Fundamentals.TokenEnv), httpOpts...)
	if fm.Free() {
		logger.Warn(ctx, "No fundamentals token set - using free tier with request spacing",
			"token_env", cfg.Fundamentals.TokenEnv,
			"min_delay_ms", cfg.Acquisition.FreeTierMinDelayMS)
	}
	src := advisor.Sources{Fundamentals: fm, Flows: fm}

	switch cfg.PriceSource {
	case "KITE":
		kp, err := kite.New(kite.Params{
			APIKey:      os.Getenv(cfg.Prices.KiteAPIKeyEnv),
			AccessToken: os.Getenv(cfg.Prices.KiteAccessTokenEnv),
			Exchange:    cfg.Prices.KiteExchange,
		})
		if err != nil {
			return advisor.Sources{}, false, err
		}
		logger.Info(ctx, "Using Kite price data", "exchange", cfg.Prices.KiteExchange)
		src.Prices = kp
	default:
		src.Prices = yahoo.New(cfg.Prices.YahooBaseURL, cfg.ExchangeSuffix, cfg.FallbackSuffix, httpOpts...)
	}

	if cfg.Revenue.MOPSFallback {
		src.Revenue = mops.New(cfg.Revenue.MOPSBaseURL, mops.WithTimeout(timeout))
	}
	return src, fm.Free(), nil
}

// policy applies config overrides on top of a built-in policy.
func policy(base acquire.Policy, pc store.PolicyConfig) acquire.Policy {
	if pc.MaxAttempts > 0 {
		base.MaxAttempts = pc.MaxAttempts
	}
	if len(pc.BackoffSeconds) > 0 {
		base.Backoff = make([]time.Duration, len(pc.BackoffSeconds))
		for i, s := range pc.BackoffSeconds {
			base.Backoff[i] = time.Duration(s) * time.Second
		}
	}
	if pc.RateLimitDelaySeconds > 0 {
		base.RateLimitDelay = time.Duration(pc.RateLimitDelaySeconds) * time.Second
	}
	if len(pc.WindowsDays) > 0 {
		base.Windows = acquire.DaysToWindows(pc.WindowsDays)
	}
	return base
}

func policies(cfg *store.Config) advisor.Policies {
	acq := cfg.Acquisition
	fundamentalsTTL := time.Duration(acq.FundamentalsCacheTTLHrs) * time.Hour
	priceTTL := time.Duration(acq.PriceCacheTTLMinutes) * time.Minute

	p := advisor.Policies{
		Fundamentals: policy(acquire.Cold(), acq.Cold),
		Flows:        policy(acquire.Hot(), acq.Hot),
		Prices:       policy(acquire.Price(), acq.Price),
		Snapshot:     acquire.Snapshot(),
	}
	p.Fundamentals.CacheTTL = fundamentalsTTL
	p.Prices.CacheTTL = priceTTL
	p.Snapshot.CacheTTL = priceTTL
	return p
}

func initializeAcquirer(cfg *store.Config, free bool) *acquire.Acquirer {
	var opts []acquire.Option
	if free {
		opts = append(opts, acquire.WithMinInterval(time.Duration(cfg.Acquisition.FreeTierMinDelayMS)*time.Millisecond))
	}
	if !cfg.Acquisition.DisableCache {
		opts = append(opts, acquire.WithCache(time.Duration(cfg.Acquisition.PriceCacheTTLMinutes)*time.Minute))
	}
	return acquire.New(opts...)
}

func advisorConfig(cfg *store.Config, fields fieldmap.Map) advisor.Config {
	a := cfg.Analysis
	c := cfg.Composer
	return advisor.Config{
		Fields:             fields,
		PriorYearTolerance: time.Duration(a.PriorYearToleranceDays) * 24 * time.Hour,
		Metrics: metrics.Config{
			ExcludedSectors:          a.ExcludedSectors,
			ExcludedIndustryPrefixes: a.ExcludedIndustryPrefixes,
			SmallCapThreshold:        c.SmallCapThreshold,
			ParValue:                 a.ParValue,
			EPSPeriods:               a.EPSPeriods,
			MarginLookback:           a.MarginLookback,
			RevenueYoYTolerance:      time.Duration(a.RevenueYoYToleranceDays) * 24 * time.Hour,
		},
		Thresholds: signal.Thresholds{
			HealthyCurrentRatio:  c.HealthyCurrentRatio,
			CapitalEfficiencyMin: c.CapitalEfficiencyMin,
			EarningsYieldMin:     c.EarningsYieldMin,
			MinAverageVolume:     c.MinAverageVolume,
		},
		Policies:              policies(cfg),
		AverageVolumeSessions: a.AverageVolumeSessions,
		Concurrency:           cfg.Acquisition.ConcurrentDatasetFetches,
	}
}

// compressOldJournals gzips journal files past the retention period.
func compressOldJournals(ctx context.Context, j *journal.Journal, retentionDays int) {
	n, err := j.CompressOlder(retentionDays)
	if err != nil {
		logger.Warn(ctx, "Failed to compress old journal files", "error", err)
		return
	}
	if n > 0 {
		logger.Info(ctx, "Compressed old journal files", "count", n, "retention_days", retentionDays)
	}
}

func initializeApp(ctx context.Context, path string) (*app, error) {
	cfg, err := loadConfig(ctx, path)
	if err != nil {
		return nil, err
	}
	fields, err := loadFields(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, fields: fields}

	src, free, err := initializeSources(ctx, cfg)
	if err != nil {
		return nil, err
	}
	adv, err := advisor.New(src, initializeAcquirer(cfg, free), advisorConfig(cfg, fields))
	if err != nil {
		return nil, err
	}
	a.advisor = advisorobs.Wrap(adv)

	if cfg.Journal.Enabled {
		a.journal = journal.New(cfg.Journal.Dir)
		compressOldJournals(ctx, a.journal, cfg.Journal.RetentionDays)
	}
	return a, nil
}
