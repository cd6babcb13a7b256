package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/hamidbarzin/cryptobarzin/internal/logger"
	"github.com/hamidbarzin/cryptobarzin/internal/models"
	"github.com/hamidbarzin/cryptobarzin/internal/scheduler"
)

// Config represents the complete application configuration
type Config struct {
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Market    MarketConfig    `mapstructure:"market"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	News      NewsConfig      `mapstructure:"news"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
	Commands       bool          `mapstructure:"commands"`
}

// Configured reports whether Telegram is enabled and has credentials.
func (t TelegramConfig) Configured() bool {
	return t.Enabled && t.BotToken != "" && t.ChatID != ""
}

// MarketConfig holds the price provider configuration. Providers are tried
// in the listed order.
type MarketConfig struct {
	Providers           []string      `mapstructure:"providers"`
	QuoteCurrency       string        `mapstructure:"quote_currency"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	MaxRetries          int           `mapstructure:"max_retries"`
	RateLimit           float64       `mapstructure:"rate_limit"` // requests per second, 0 = unlimited
	CoinGeckoURL        string        `mapstructure:"coingecko_url"`
	CryptoCompareURL    string        `mapstructure:"cryptocompare_url"`
	CryptoCompareAPIKey string        `mapstructure:"cryptocompare_api_key"`
	BinanceBaseURL      string        `mapstructure:"binance_base_url"`
}

// CacheConfig holds TTLs per cache category
type CacheConfig struct {
	PriceTTL        time.Duration `mapstructure:"price_ttl"`
	NewsTTL         time.Duration `mapstructure:"news_ttl"`
	TechnicalTTL    time.Duration `mapstructure:"technical_ttl"`
	CleanupSchedule string        `mapstructure:"cleanup_schedule"`
}

// RedisConfig holds the optional shared price mirror
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AlertConfig is a price alert registered at startup
type AlertConfig struct {
	Symbol      string  `mapstructure:"symbol"`
	TargetPrice float64 `mapstructure:"target_price"`
	Direction   string  `mapstructure:"direction"`
}

// AlertsConfig holds alert evaluation configuration
type AlertsConfig struct {
	Hysteresis float64       `mapstructure:"hysteresis"`
	Timezone   string        `mapstructure:"timezone"`
	Defaults   []AlertConfig `mapstructure:"defaults"`
}

// SchedulerConfig holds the periodic worker configuration
type SchedulerConfig struct {
	Tick                  time.Duration       `mapstructure:"tick"`
	Timezone              string              `mapstructure:"timezone"`
	ActiveHoursStart      int                 `mapstructure:"active_hours_start"`
	ActiveHoursEnd        int                 `mapstructure:"active_hours_end"`
	MessageSendingEnabled bool                `mapstructure:"message_sending_enabled"`
	AutoStart             bool                `mapstructure:"auto_start"`
	SendStartup           bool                `mapstructure:"send_startup"`
	StopTimeout           time.Duration       `mapstructure:"stop_timeout"`
	TaskTimeout           time.Duration       `mapstructure:"task_timeout"`
	Coins                 []string            `mapstructure:"coins"`
	Intervals             scheduler.Intervals `mapstructure:"intervals"`
}

// AnalysisConfig holds the candle window used for indicators
type AnalysisConfig struct {
	KlineInterval string `mapstructure:"kline_interval"`
	KlineLimit    int    `mapstructure:"kline_limit"`
}

// NewsConfig holds the news feed configuration
type NewsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	APIKey  string `mapstructure:"api_key"`
	Limit   int    `mapstructure:"limit"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	DBPath         string        `mapstructure:"db_path"`
	EventRetention time.Duration `mapstructure:"event_retention"`
	PruneSchedule  string        `mapstructure:"prune_schedule"`
}

// ServerConfig holds the HTTP control surface configuration
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Load reads configuration from an optional YAML file, a .env file in the
// working directory and BARZIN_ environment variables, in increasing order
// of precedence.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BARZIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, statErr := os.Stat(path); !errors.Is(statErr, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			logger.Warn("Config file %s not found, using defaults and environment", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	// Lists set through the environment may be "a, b" or "a b".
	cfg.Market.Providers = splitList(cfg.Market.Providers)
	cfg.Scheduler.Coins = splitList(cfg.Scheduler.Coins)

	return &cfg, nil
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.FieldsFunc(item, func(r rune) bool { return r == ',' || r == ' ' }) {
			out = append(out, part)
		}
	}
	return out
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Telegram defaults
	v.SetDefault("telegram.enabled", true)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")
	v.SetDefault("telegram.commands", true)

	// Market defaults
	v.SetDefault("market.providers", []string{"binance", "coingecko", "cryptocompare"})
	v.SetDefault("market.quote_currency", "USDT")
	v.SetDefault("market.request_timeout", "10s")
	v.SetDefault("market.max_retries", 2)
	v.SetDefault("market.rate_limit", 1.0)
	v.SetDefault("market.coingecko_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("market.cryptocompare_url", "https://min-api.cryptocompare.com")
	v.SetDefault("market.cryptocompare_api_key", "")
	v.SetDefault("market.binance_base_url", "https://api.binance.com")

	// Cache defaults
	v.SetDefault("cache.price_ttl", "3m")
	v.SetDefault("cache.news_ttl", "10m")
	v.SetDefault("cache.technical_ttl", "5m")
	v.SetDefault("cache.cleanup_schedule", "0 */5 * * * *")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Alert defaults
	v.SetDefault("alerts.hysteresis", 0.01)
	v.SetDefault("alerts.timezone", "America/Toronto")
	v.SetDefault("alerts.defaults", []map[string]interface{}{
		{"symbol": "BTC/USDT", "target_price": 82000.0, "direction": "above"},
		{"symbol": "BTC/USDT", "target_price": 81500.0, "direction": "below"},
		{"symbol": "ETH/USDT", "target_price": 1650.0, "direction": "above"},
		{"symbol": "ETH/USDT", "target_price": 1580.0, "direction": "below"},
	})

	// Scheduler defaults
	intervals := scheduler.DefaultIntervals()
	v.SetDefault("scheduler.tick", "1m")
	v.SetDefault("scheduler.timezone", "America/Toronto")
	v.SetDefault("scheduler.active_hours_start", 8)
	v.SetDefault("scheduler.active_hours_end", 22)
	v.SetDefault("scheduler.message_sending_enabled", true)
	v.SetDefault("scheduler.auto_start", true)
	v.SetDefault("scheduler.send_startup", true)
	v.SetDefault("scheduler.stop_timeout", "10s")
	v.SetDefault("scheduler.task_timeout", "2m")
	v.SetDefault("scheduler.coins", scheduler.DefaultCoins)
	v.SetDefault("scheduler.intervals.price_report", intervals.PriceReport)
	v.SetDefault("scheduler.intervals.system_report", intervals.SystemReport)
	v.SetDefault("scheduler.intervals.technical_analysis", intervals.Technical)
	v.SetDefault("scheduler.intervals.trading_signals", intervals.Signals)
	v.SetDefault("scheduler.intervals.news", intervals.News)

	// Analysis defaults
	v.SetDefault("analysis.kline_interval", "1h")
	v.SetDefault("analysis.kline_limit", 100)

	// News defaults
	v.SetDefault("news.enabled", true)
	v.SetDefault("news.url", "https://min-api.cryptocompare.com")
	v.SetDefault("news.api_key", "")
	v.SetDefault("news.limit", 5)

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/barzin.db")
	v.SetDefault("storage.event_retention", "720h")
	v.SetDefault("storage.prune_schedule", "0 30 3 * * *")

	// Server defaults
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.addr", ":8080")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.file", "logs/barzin.log")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)
}

var knownProviders = map[string]bool{"coingecko": true, "cryptocompare": true, "binance": true}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Telegram config. Missing credentials are not fatal: sends
	// fail and are logged, the scheduler keeps running.
	if c.Telegram.MaxRetries < 0 {
		return fmt.Errorf("telegram.max_retries must not be negative")
	}

	// Validate Market config
	if len(c.Market.Providers) == 0 {
		return fmt.Errorf("market.providers must contain at least one provider")
	}
	for _, p := range c.Market.Providers {
		if !knownProviders[strings.ToLower(p)] {
			return fmt.Errorf("market.providers: unknown provider %q", p)
		}
	}
	if c.Market.QuoteCurrency == "" {
		return fmt.Errorf("market.quote_currency is required")
	}
	if c.Market.RequestTimeout <= 0 {
		return fmt.Errorf("market.request_timeout must be positive")
	}
	if c.Market.RateLimit < 0 {
		return fmt.Errorf("market.rate_limit must not be negative")
	}

	// Validate Cache config
	if c.Cache.PriceTTL <= 0 || c.Cache.NewsTTL <= 0 || c.Cache.TechnicalTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}

	// Validate Alerts config
	if c.Alerts.Hysteresis < 0 || c.Alerts.Hysteresis >= 1 {
		return fmt.Errorf("alerts.hysteresis must be in [0, 1)")
	}
	if _, err := time.LoadLocation(c.Alerts.Timezone); err != nil {
		return fmt.Errorf("alerts.timezone: %w", err)
	}
	for i, a := range c.Alerts.Defaults {
		if _, err := a.Alert(); err != nil {
			return fmt.Errorf("alerts.defaults[%d]: %w", i, err)
		}
	}

	// Validate Scheduler config
	settings := c.SchedulerSettings()
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("scheduler.timezone: %w", err)
	}
	if c.Scheduler.StopTimeout <= 0 {
		return fmt.Errorf("scheduler.stop_timeout must be positive")
	}

	// Validate Analysis config
	if c.Analysis.KlineLimit < 50 {
		return fmt.Errorf("analysis.kline_limit must be at least 50")
	}

	// Validate News config
	if c.News.Enabled && (c.News.Limit < 1 || c.News.Limit > 50) {
		return fmt.Errorf("news.limit must be between 1 and 50")
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.EventRetention < time.Hour {
		return fmt.Errorf("storage.event_retention must be at least 1 hour")
	}

	// Validate Server config
	if c.Server.Enabled && c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required when the server is enabled")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}
	validOutputs := map[string]bool{"stdout": true, "stderr": true, "file": true}
	if !validOutputs[c.Logging.Output] {
		return fmt.Errorf("logging.output must be one of: stdout, stderr, file")
	}

	return nil
}

// Alert converts the entry into a PriceAlert.
func (a AlertConfig) Alert() (models.PriceAlert, error) {
	dir, err := models.ParseDirection(a.Direction)
	if err != nil {
		return models.PriceAlert{}, err
	}
	alert := models.PriceAlert{Symbol: a.Symbol, TargetPrice: a.TargetPrice, Direction: dir}
	return alert, alert.Validate()
}

// DefaultAlerts returns the configured startup alerts. Invalid entries are
// skipped; Validate reports them.
func (c *Config) DefaultAlerts() []models.PriceAlert {
	out := make([]models.PriceAlert, 0, len(c.Alerts.Defaults))
	for _, a := range c.Alerts.Defaults {
		if alert, err := a.Alert(); err == nil {
			out = append(out, alert)
		}
	}
	return out
}

// SchedulerSettings returns the initial runtime settings of the scheduler.
func (c *Config) SchedulerSettings() models.SchedulerSettings {
	return models.SchedulerSettings{
		ActiveHoursStart:      c.Scheduler.ActiveHoursStart,
		ActiveHoursEnd:        c.Scheduler.ActiveHoursEnd,
		MessageSendingEnabled: c.Scheduler.MessageSendingEnabled,
		Interval:              c.Scheduler.Tick,
		AutoStart:             c.Scheduler.AutoStart,
	}
}

// LoggerOptions maps the logging section onto logger.Options.
func (c *Config) LoggerOptions() logger.Options {
	return logger.Options{
		Level:      c.Logging.Level,
		Format:     c.Logging.Format,
		Output:     c.Logging.Output,
		File:       c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAgeDays: c.Logging.MaxAgeDays,
		Compress:   c.Logging.Compress,
	}
}
