package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"odds-arb-watcher/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Filters   FiltersConfig   `mapstructure:"filters"`
	Arbitrage ArbitrageConfig `mapstructure:"arbitrage"`
	Server    ServerConfig    `mapstructure:"server"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity. An empty DSN runs
// without persistence.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// RedisConfig controls snapshot fan-out. An empty Addr disables it.
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	SnapshotKey string        `mapstructure:"snapshot_key"`
	Channel     string        `mapstructure:"channel"`
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"`
}

// SchedulerConfig governs refresh cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	SkipFirstRun    bool          `mapstructure:"skip_first_run"`
}

// SourcesConfig covers the three upstream feeds.
type SourcesConfig struct {
	OddsURL       string        `mapstructure:"odds_url"`
	CatalogURL    string        `mapstructure:"catalog_url"`
	ScheduleURL   string        `mapstructure:"schedule_url"`
	Sports        []string      `mapstructure:"sports"`
	StreamBooks   []string      `mapstructure:"stream_books"`
	Timeout       time.Duration `mapstructure:"timeout"`
	UserAgent     string        `mapstructure:"user_agent"`
	ScheduleRate  float64       `mapstructure:"schedule_rate"`
	ScheduleBurst int           `mapstructure:"schedule_burst"`
	StreamMarker  string        `mapstructure:"stream_marker"`
}

// FiltersConfig holds the display allow-list of books.
type FiltersConfig struct {
	Books []string `mapstructure:"books"`
}

// ArbitrageConfig tunes the analyzer.
type ArbitrageConfig struct {
	TotalWager float64 `mapstructure:"total_wager"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Addr            string        `mapstructure:"addr"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AlertingConfig defines alert thresholds and routing.
type AlertingConfig struct {
	Enabled      bool           `mapstructure:"enabled"`
	ThresholdPct float64        `mapstructure:"threshold_pct"`
	Cooldown     time.Duration  `mapstructure:"cooldown"`
	Channels     []string       `mapstructure:"channels"`
	Telegram     TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ARBWATCHER")
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
	v.SetDefault("app.name", "arbwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "12s")
	v.SetDefault("scheduler.advisory_lock_key", int64(0x61726277))
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.skip_first_run", false)

	v.SetDefault("sources.odds_url", "https://api.openodds.gg/getData")
	v.SetDefault("sources.catalog_url", "https://d6ailk8q6o27n.cloudfront.net/livegames")
	v.SetDefault("sources.schedule_url", "https://49pzwry2rc.execute-api.us-east-1.amazonaws.com/prod/getLiveGames")
	v.SetDefault("sources.sports", []string{"basketball", "baseball", "football", "soccer", "hockey", "tennis"})
	v.SetDefault("sources.stream_books", []string{
		"DRAFTKINGS", "FANDUEL", "BETMGM", "CAESARS", "ESPN", "HARDROCK",
		"BALLYBET", "BETONLINE", "BET365", "FANATICS", "FLIFF", "NONE",
	})
	v.SetDefault("sources.timeout", "10s")
	v.SetDefault("sources.schedule_rate", 5.0)
	v.SetDefault("sources.schedule_burst", 2)
	v.SetDefault("sources.stream_marker", "ev_stream")

	v.SetDefault("filters.books", []string{
		"DRAFTKINGS", "FANDUEL", "BETMGM", "CAESARS", "ESPN",
		"HARDROCK", "BALLYBET", "BET365", "FANATICS", "NONE",
	})

	v.SetDefault("arbitrage.total_wager", 100.0)

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", "5s")

	v.SetDefault("redis.snapshot_key", "arbwatcher:snapshot")
	v.SetDefault("redis.channel", "arbwatcher:cycles")
	v.SetDefault("redis.snapshot_ttl", "2m")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.threshold_pct", 1.0)
	v.SetDefault("alerting.cooldown", "15m")
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
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
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Sources.Timeout <= 0 {
		return fmt.Errorf("sources.timeout must be greater than zero")
	}
	if strings.TrimSpace(c.Sources.OddsURL) == "" || strings.TrimSpace(c.Sources.CatalogURL) == "" || strings.TrimSpace(c.Sources.ScheduleURL) == "" {
		return fmt.Errorf("sources.odds_url, sources.catalog_url and sources.schedule_url are required")
	}
	if len(c.Sources.Sports) == 0 {
		return fmt.Errorf("sources.sports must list at least one sport")
	}
	if c.Sources.ScheduleRate < 0 {
		return fmt.Errorf("sources.schedule_rate cannot be negative")
	}
	if c.Arbitrage.TotalWager <= 0 {
		return fmt.Errorf("arbitrage.total_wager must be greater than zero")
	}
	if c.Alerting.ThresholdPct < 0 {
		return fmt.Errorf("alerting.threshold_pct cannot be negative")
	}
	if c.Alerting.Cooldown < 0 {
		return fmt.Errorf("alerting.cooldown cannot be negative")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}
