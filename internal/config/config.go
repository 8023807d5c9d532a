package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"sports-arb-scanner/internal/arbitrage"
	"sports-arb-scanner/internal/logging"
	"sports-arb-scanner/internal/odds"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	OddsAPI   OddsAPIConfig   `mapstructure:"oddsapi"`
	Scan      ScanConfig      `mapstructure:"scan"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Publish   PublishConfig   `mapstructure:"publish"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs scan cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// OddsAPIConfig covers the external pricing service.
type OddsAPIConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Regions        []string      `mapstructure:"regions"`
	OddsFormat     string        `mapstructure:"odds_format"`
	Sports         []string      `mapstructure:"sports"`
	Concurrency    int           `mapstructure:"concurrency"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// ScanConfig is the evaluator input.
type ScanConfig struct {
	MinProfitPct  float64       `mapstructure:"min_profit_pct"`
	Market        string        `mapstructure:"market"`
	MinBookmakers int           `mapstructure:"min_bookmakers"`
	Horizon       time.Duration `mapstructure:"horizon"`
	Mode          string        `mapstructure:"mode"`
}

// CacheConfig points at the Redis instance used for response caching and alert dedup.
type CacheConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	Prefix    string        `mapstructure:"prefix"`
	OddsTTL   time.Duration `mapstructure:"odds_ttl"`
	SportsTTL time.Duration `mapstructure:"sports_ttl"`
}

// PublishConfig selects an opportunity sink.
type PublishConfig struct {
	Driver       string   `mapstructure:"driver"`
	Stream       string   `mapstructure:"stream"`
	StreamMaxLen int64    `mapstructure:"stream_max_len"`
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`
}

// MetricsConfig controls the Prometheus endpoint served by `run`.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
	Path       string `mapstructure:"path"`
}

// AlertingConfig defines alert thresholds and routing.
type AlertingConfig struct {
	Enabled      bool           `mapstructure:"enabled"`
	ThresholdPct float64        `mapstructure:"threshold_pct"`
	Cooldown     time.Duration  `mapstructure:"cooldown"`
	Channels     []string       `mapstructure:"channels"`
	Telegram     TelegramConfig `mapstructure:"telegram"`
	Slack        SlackConfig    `mapstructure:"slack"`
}

// TelegramConfig describes Telegram bot delivery.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// SlackConfig describes Slack webhook delivery.
type SlackConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("ARBSCANNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "arbscanner")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "5m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x61726273))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("oddsapi.base_url", "https://api.the-odds-api.com/v4")
	v.SetDefault("oddsapi.regions", []string{"au", "us", "uk"})
	v.SetDefault("oddsapi.odds_format", "decimal")
	v.SetDefault("oddsapi.sports", []string{"soccer_epl", "basketball_nba", "tennis_atp", "aussie_rules_afl", "mma_mixed_martial_arts", "cricket_international_t20"})
	v.SetDefault("oddsapi.concurrency", 4)
	v.SetDefault("oddsapi.request_timeout", "10s")
	v.SetDefault("oddsapi.user_agent", "arbscanner/1.0")

	v.SetDefault("scan.min_profit_pct", 1.0)
	v.SetDefault("scan.market", odds.HeadToHead)
	v.SetDefault("scan.min_bookmakers", 1)
	v.SetDefault("scan.horizon", "0s")
	v.SetDefault("scan.mode", string(arbitrage.ModeMargin))

	v.SetDefault("cache.prefix", "arbscanner")
	v.SetDefault("cache.odds_ttl", "60s")
	v.SetDefault("cache.sports_ttl", "10m")

	v.SetDefault("publish.driver", "none")
	v.SetDefault("publish.stream", "opportunities.detected")
	v.SetDefault("publish.stream_max_len", int64(10000))
	v.SetDefault("publish.kafka_topic", "arb.opportunities")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_addr", ":9102")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.threshold_pct", 2.0)
	v.SetDefault("alerting.cooldown", "30m")
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.slack.enabled", false)

	v.SetDefault("export.max_data_points", 500)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.OddsAPI.Concurrency <= 0 {
		return fmt.Errorf("oddsapi.concurrency must be greater than zero")
	}
	if err := c.Scan.Validate(); err != nil {
		return err
	}
	if c.Alerting.ThresholdPct < 0 {
		return fmt.Errorf("alerting.threshold_pct cannot be negative")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	if c.Alerting.Slack.Enabled && c.Alerting.Slack.WebhookURL == "" {
		return fmt.Errorf("alerting.slack.webhook_url is required")
	}
	switch c.Publish.Driver {
	case "", "none", "redis":
	case "kafka":
		if len(c.Publish.KafkaBrokers) == 0 {
			return fmt.Errorf("publish.kafka_brokers is required for the kafka driver")
		}
	default:
		return fmt.Errorf("publish.driver %q is not supported", c.Publish.Driver)
	}
	return nil
}

// Validate checks the evaluator settings.
func (s ScanConfig) Validate() error {
	if s.MinProfitPct < 0 {
		return fmt.Errorf("scan.min_profit_pct cannot be negative")
	}
	if s.Market != odds.HeadToHead {
		return fmt.Errorf("scan.market must be %q, got %q", odds.HeadToHead, s.Market)
	}
	if s.Horizon < 0 {
		return fmt.Errorf("scan.horizon cannot be negative")
	}
	if _, err := arbitrage.ParseMode(s.Mode); err != nil {
		return fmt.Errorf("scan.mode: %w", err)
	}
	return nil
}

// Evaluator converts the scan section into an evaluator configuration.
func (s ScanConfig) Evaluator() arbitrage.Config {
	mode, _ := arbitrage.ParseMode(s.Mode)
	return arbitrage.Config{
		MinProfitPct:  s.MinProfitPct,
		Market:        s.Market,
		MinBookmakers: s.MinBookmakers,
		Horizon:       s.Horizon,
		Mode:          mode,
	}
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
