package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	c, err := LoadConfig(writeConfig(t, "mode: mock\n"))
	require.NoError(t, err)

	assert.Equal(t, "MOCK", c.Mode)
	assert.Equal(t, "YAHOO", c.PriceSource)
	assert.Equal(t, ".TW", c.ExchangeSuffix)
	assert.Equal(t, ".TWO", c.FallbackSuffix)
	assert.Equal(t, 45, c.Analysis.PriorYearToleranceDays)
	assert.Equal(t, []string{"Financial", "Bank", "Insurance"}, c.Analysis.ExcludedSectors)
	assert.Equal(t, 1.5, c.Composer.HealthyCurrentRatio)
	assert.Equal(t, 500_000.0, c.Composer.MinAverageVolume)
	assert.Equal(t, 2000, c.Acquisition.FreeTierMinDelayMS)
	assert.Equal(t, 24, c.Acquisition.FundamentalsCacheTTLHrs)
	assert.Equal(t, "FINMIND_TOKEN", c.Fundamentals.TokenEnv)
}

func TestLoadConfigOverrides(t *testing.T) {
	c, err := LoadConfig(writeConfig(t, `
mode: LIVE
price_source: KITE
analysis:
  prior_year_tolerance_days: 30
  excluded_sectors: [Utilities]
composer:
  small_cap_threshold: 1000000
acquisition:
  cold:
    max_attempts: 5
    windows_days: [1825, 365]
`))
	require.NoError(t, err)

	assert.Equal(t, "KITE", c.PriceSource)
	assert.Equal(t, 30, c.Analysis.PriorYearToleranceDays)
	assert.Equal(t, []string{"Utilities"}, c.Analysis.ExcludedSectors)
	assert.Equal(t, 1_000_000.0, c.Composer.SmallCapThreshold)
	assert.Equal(t, 5, c.Acquisition.Cold.MaxAttempts)
	assert.Equal(t, []int{1825, 365}, c.Acquisition.Cold.WindowsDays)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"mode":         "mode: PAPER\n",
		"price source": "price_source: BLOOMBERG\n",
		"tolerance":    "analysis:\n  prior_year_tolerance_days: 400\n",
		"window":       "acquisition:\n  hot:\n    windows_days: [30, -1]\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	c, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "LIVE", c.Mode)

	c.Journal.Enabled = true
	c.Journal.Dir = ""
	assert.Error(t, c.Validate())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
