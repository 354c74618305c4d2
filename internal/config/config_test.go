package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "AutoFinance", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, Version, cfg.App.Version)

	// Risk policy defaults
	assert.Equal(t, 0.15, cfg.Risk.MaxPositionFraction)
	assert.Equal(t, 0.50, cfg.Risk.MaxVolatility)
	assert.Equal(t, 0.60, cfg.Risk.MinConfidence)
	assert.Equal(t, 20000.0, cfg.Risk.MaxSingleTradeValue)
	assert.Equal(t, 0.80, cfg.Risk.MaxPortfolioInvestedFrac)
	assert.Equal(t, 0.30, cfg.Risk.MaxRebalanceTurnoverFrac)

	assert.Equal(t, 100000.0, cfg.Portfolio.InitialCash)
	assert.Equal(t, 60, cfg.Market.CacheTTLSeconds)
	assert.Equal(t, "localhost:6379", cfg.Redis.GetRedisAddr())
}

func TestLoadRawEnvBindings(t *testing.T) {
	t.Setenv("DISCORD_WEBHOOK_URL", "https://discord.test/hook")
	t.Setenv("SLACK_CHANNEL", "#alerts")
	t.Setenv("SMTP_PORT", "2525")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://discord.test/hook", cfg.Notify.DiscordWebhookURL)
	assert.Equal(t, "#alerts", cfg.Notify.SlackChannel)
	assert.Equal(t, 2525, cfg.Notify.SMTPPort)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "bad environment",
			mutate:  func(c *Config) { c.App.Environment = "prod" },
			wantErr: "invalid environment",
		},
		{
			name:    "position fraction over 1",
			mutate:  func(c *Config) { c.Risk.MaxPositionFraction = 1.5 },
			wantErr: "max_position_fraction",
		},
		{
			name:    "negative confidence",
			mutate:  func(c *Config) { c.Risk.MinConfidence = -0.1 },
			wantErr: "min_confidence",
		},
		{
			name:    "zero trade cap",
			mutate:  func(c *Config) { c.Risk.MaxSingleTradeValue = 0 },
			wantErr: "max_single_trade_value",
		},
		{
			name:    "zero initial cash",
			mutate:  func(c *Config) { c.Portfolio.InitialCash = 0 },
			wantErr: "initial_cash",
		},
		{
			name:    "bad version",
			mutate:  func(c *Config) { c.App.Version = "not-a-version" },
			wantErr: "invalid app version",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateMonitorIntervalFloor(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Alerts.IntervalSeconds = 3
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.Alerts.IntervalSeconds)
}

func TestVersionAtLeast(t *testing.T) {
	ok, err := VersionAtLeast("1.2.0", "1.0.0")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VersionAtLeast("0.9.0", "1.0.0")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = VersionAtLeast("garbage", "1.0.0")
	assert.Error(t, err)
}
