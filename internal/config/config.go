package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	NATS       NATSConfig       `mapstructure:"nats"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Market     MarketConfig     `mapstructure:"market"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Portfolio  PortfolioConfig  `mapstructure:"portfolio"`
	Peers      PeersConfig      `mapstructure:"peers"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Alerts     AlertsConfig     `mapstructure:"alerts"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // "json" or "console"
}

// DatabaseConfig contains PostgreSQL settings for the audit write-behind.
// The compliance service runs in-memory when Host is empty.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	PoolSize int    `mapstructure:"pool_size"`
}

// RedisConfig contains Redis settings for the market quote cache
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NATSConfig contains NATS messaging settings
type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

// LLMConfig contains settings for the sentiment LLM client (news service).
// Any OpenAI-compatible chat completions endpoint works; when APIKey is
// empty the news service falls back to keyword scoring.
type LLMConfig struct {
	Endpoint      string  `mapstructure:"endpoint"`
	APIKey        string  `mapstructure:"api_key"`
	PrimaryModel  string  `mapstructure:"primary_model"`
	FallbackModel string  `mapstructure:"fallback_model"`
	Temperature   float64 `mapstructure:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens"`
	Timeout       int     `mapstructure:"timeout"` // ms
}

// MarketConfig contains market data provider settings
type MarketConfig struct {
	ChartBaseURL      string `mapstructure:"chart_base_url"` // Yahoo-compatible chart API
	BinanceAPIKey     string `mapstructure:"binance_api_key"`
	BinanceSecretKey  string `mapstructure:"binance_secret_key"`
	CacheTTLSeconds   int    `mapstructure:"cache_ttl_seconds"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
}

// RiskConfig contains the risk policy constants
type RiskConfig struct {
	MaxPositionFraction      float64 `mapstructure:"max_position_fraction"`           // 0.15
	MaxVolatility            float64 `mapstructure:"max_volatility"`                  // 0.50
	MinConfidence            float64 `mapstructure:"min_confidence"`                  // 0.60
	MaxSingleTradeValue      float64 `mapstructure:"max_single_trade_value"`          // 20000
	MaxPortfolioInvestedFrac float64 `mapstructure:"max_portfolio_invested_fraction"` // 0.80
	MaxRebalanceTurnoverFrac float64 `mapstructure:"max_rebalance_turnover_fraction"` // 0.30
}

// PortfolioConfig contains portfolio engine settings
type PortfolioConfig struct {
	InitialCash float64 `mapstructure:"initial_cash"`
}

// PeersConfig tells supervisors and the alert monitor where to find peers
type PeersConfig struct {
	Host string `mapstructure:"host"`
}

// NotifyConfig contains notification channel settings. Each channel is
// available iff its required fields are non-empty; most are bound to the raw
// env vars the deployment already uses (DISCORD_WEBHOOK_URL etc.).
type NotifyConfig struct {
	LogDir             string `mapstructure:"log_dir"`
	DiscordWebhookURL  string `mapstructure:"discord_webhook_url"`
	SlackWebhookURL    string `mapstructure:"slack_webhook_url"`
	SlackBotToken      string `mapstructure:"slack_bot_token"`
	SlackChannel       string `mapstructure:"slack_channel"`
	WebhookURL         string `mapstructure:"webhook_url"`
	SMTPHost           string `mapstructure:"smtp_host"`
	SMTPPort           int    `mapstructure:"smtp_port"`
	SMTPUser           string `mapstructure:"smtp_user"`
	SMTPPassword       string `mapstructure:"smtp_password"`
	EmailFrom          string `mapstructure:"email_from"`
	EmailTo            string `mapstructure:"email_to"`
	TelegramBotToken   string `mapstructure:"telegram_bot_token"`
	TelegramChatID     int64  `mapstructure:"telegram_chat_id"`
	FCMCredentialsFile string `mapstructure:"fcm_credentials_file"`
	FCMTopic           string `mapstructure:"fcm_topic"`
}

// AlertsConfig contains alert persistence settings
type AlertsConfig struct {
	StorePath       string `mapstructure:"store_path"`
	MonitorStore    string `mapstructure:"monitor_store"`
	IntervalSeconds int    `mapstructure:"interval_seconds"`
}

// MonitoringConfig contains monitoring settings
type MonitoringConfig struct {
	EnableMetrics bool `mapstructure:"enable_metrics"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("autofinance")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("AUTOFINANCE")

	// Channel and provider settings keep their conventional env var names so
	// existing deployments do not need AUTOFINANCE_ prefixed duplicates.
	bindRawEnv(v)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// bindRawEnv binds unprefixed environment variables to their config keys
func bindRawEnv(v *viper.Viper) {
	_ = v.BindEnv("notify.discord_webhook_url", "DISCORD_WEBHOOK_URL")
	_ = v.BindEnv("notify.slack_webhook_url", "SLACK_WEBHOOK_URL")
	_ = v.BindEnv("notify.slack_bot_token", "SLACK_BOT_TOKEN")
	_ = v.BindEnv("notify.slack_channel", "SLACK_CHANNEL")
	_ = v.BindEnv("notify.webhook_url", "ALERT_WEBHOOK_URL")
	_ = v.BindEnv("notify.smtp_host", "SMTP_HOST")
	_ = v.BindEnv("notify.smtp_port", "SMTP_PORT")
	_ = v.BindEnv("notify.smtp_user", "SMTP_USER")
	_ = v.BindEnv("notify.smtp_password", "SMTP_PASSWORD")
	_ = v.BindEnv("notify.email_from", "EMAIL_FROM")
	_ = v.BindEnv("notify.email_to", "EMAIL_TO")
	_ = v.BindEnv("notify.telegram_bot_token", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("notify.telegram_chat_id", "TELEGRAM_CHAT_ID")
	_ = v.BindEnv("notify.fcm_credentials_file", "FCM_CREDENTIALS_FILE")
	_ = v.BindEnv("notify.fcm_topic", "FCM_TOPIC")
	_ = v.BindEnv("llm.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("market.binance_api_key", "BINANCE_API_KEY")
	_ = v.BindEnv("market.binance_secret_key", "BINANCE_SECRET_KEY")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "AutoFinance")
	v.SetDefault("app.version", Version)
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	// Database defaults (audit write-behind stays disabled without a host)
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", PostgresPort)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "autofinance")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.pool_size", 5)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", RedisPort)
	v.SetDefault("redis.db", 0)

	// NATS defaults
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", false)

	// LLM defaults
	v.SetDefault("llm.endpoint", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("llm.primary_model", "gpt-4o-mini")
	v.SetDefault("llm.fallback_model", "gpt-3.5-turbo")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 500)
	v.SetDefault("llm.timeout", 30000)

	// Market defaults
	v.SetDefault("market.chart_base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("market.cache_ttl_seconds", 60)
	v.SetDefault("market.requests_per_minute", 120)

	// Risk policy defaults
	v.SetDefault("risk.max_position_fraction", 0.15)
	v.SetDefault("risk.max_volatility", 0.50)
	v.SetDefault("risk.min_confidence", 0.60)
	v.SetDefault("risk.max_single_trade_value", 20000.0)
	v.SetDefault("risk.max_portfolio_invested_fraction", 0.80)
	v.SetDefault("risk.max_rebalance_turnover_fraction", 0.30)

	// Portfolio defaults
	v.SetDefault("portfolio.initial_cash", 100000.0)

	// Peer defaults
	v.SetDefault("peers.host", "localhost")

	// Notification defaults
	v.SetDefault("notify.log_dir", "./logs")
	v.SetDefault("notify.smtp_port", 587)
	v.SetDefault("notify.fcm_topic", "autofinance-alerts")

	// Alert defaults
	v.SetDefault("alerts.store_path", "./data/alerts.json")
	v.SetDefault("alerts.monitor_store", "./data/price_alerts.json")
	v.SetDefault("alerts.interval_seconds", 60)

	// Monitoring defaults
	v.SetDefault("monitoring.enable_metrics", true)
}

// Validate checks the configuration for inconsistent values
func (c *Config) Validate() error {
	switch c.App.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("invalid environment %q (want development, staging or production)", c.App.Environment)
	}

	if c.Risk.MaxPositionFraction <= 0 || c.Risk.MaxPositionFraction > 1 {
		return fmt.Errorf("risk.max_position_fraction must be in (0, 1], got %v", c.Risk.MaxPositionFraction)
	}
	if c.Risk.MinConfidence < 0 || c.Risk.MinConfidence > 1 {
		return fmt.Errorf("risk.min_confidence must be in [0, 1], got %v", c.Risk.MinConfidence)
	}
	if c.Risk.MaxPortfolioInvestedFrac <= 0 || c.Risk.MaxPortfolioInvestedFrac > 1 {
		return fmt.Errorf("risk.max_portfolio_invested_fraction must be in (0, 1], got %v", c.Risk.MaxPortfolioInvestedFrac)
	}
	if c.Risk.MaxSingleTradeValue <= 0 {
		return fmt.Errorf("risk.max_single_trade_value must be positive, got %v", c.Risk.MaxSingleTradeValue)
	}
	if c.Portfolio.InitialCash <= 0 {
		return fmt.Errorf("portfolio.initial_cash must be positive, got %v", c.Portfolio.InitialCash)
	}
	if c.Alerts.IntervalSeconds < 10 {
		c.Alerts.IntervalSeconds = 10
	}
	if err := ValidateVersion(c.App.Version); err != nil {
		return err
	}
	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetTimeout returns the LLM timeout as time.Duration
func (c *LLMConfig) GetTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// Interval returns the alert monitor interval as time.Duration
func (c *AlertsConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}
