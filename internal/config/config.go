// Package config provides configuration loading, validation, and management
// for the giftwatch application. It handles reading from a YAML file,
// environment variables, default values, and validating the result.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config defines the application configuration parameters for all components
// of the giftwatch system: logging, the Telegram bot UI, the MTProto userbot
// account, the availability feed, the purchase engine, the channel promotion
// workflow, the database, scheduled tasks, and metrics.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Userbot   UserbotConfig   `mapstructure:"userbot"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Promo     PromoConfig     `mapstructure:"promo"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

// LogConfig controls log verbosity and output format.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds the Bot API credentials for the UI layer.
type TelegramConfig struct {
	Token   string `mapstructure:"token"    validate:"required"`
	AdminID int64  `mapstructure:"admin_id" validate:"required,gt=0"`

	// SubscriptionPrice is the monthly subscription cost in stars (XTR).
	SubscriptionPrice int64 `mapstructure:"subscription_price" validate:"gt=0"`
}

// UserbotConfig holds the MTProto account credentials used for purchases
// and channel management. The session file must already be authorized;
// giftwatch never performs an interactive login.
type UserbotConfig struct {
	APIID       int    `mapstructure:"api_id"       validate:"required,gt=0"`
	APIHash     string `mapstructure:"api_hash"     validate:"required"`
	SessionFile string `mapstructure:"session_file" validate:"required"`
}

// FeedConfig points at the external gift-availability feed.
type FeedConfig struct {
	URL     string        `mapstructure:"url"     validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"min=1s,max=1m"`
}

// EngineConfig controls the poll/match/purchase loop cadence.
type EngineConfig struct {
	// CycleInterval is the pause between two full purchase cycles.
	CycleInterval time.Duration `mapstructure:"cycle_interval" validate:"min=100ms,max=1m"`
	// IdleInterval is the pause after a cycle where the feed listed nothing.
	IdleInterval time.Duration `mapstructure:"idle_interval" validate:"min=100ms,max=5m"`
	// ErrorBackoff is the pause after a failed feed poll.
	ErrorBackoff time.Duration `mapstructure:"error_backoff" validate:"min=1s,max=10m"`
}

// PromoConfig controls the channel join-check promotion workflow.
type PromoConfig struct {
	// JoinCheckDelay is the wait before each of the two membership checks.
	JoinCheckDelay time.Duration `mapstructure:"join_check_delay" validate:"min=1s,max=10m"`
}

// DatabaseConfig holds persistence settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// TaskConfig enables and schedules a single background task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// SchedulerConfig maps task names to their schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// MetricsConfig controls the Prometheus listener. An empty address
// disables the listener entirely.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// MessagesConfig holds every user-facing message template. Placeholders
// are fmt verbs, documented per field where present.
type MessagesConfig struct {
	Welcome        string `mapstructure:"welcome"` // %s = subscription status, %d = balance
	StatusActive   string `mapstructure:"status_active"`
	StatusInactive string `mapstructure:"status_inactive"`

	MinPricePrompt   string `mapstructure:"min_price_prompt"`
	MaxPricePrompt   string `mapstructure:"max_price_prompt"`
	MaxRepeatsPrompt string `mapstructure:"max_repeats_prompt"`
	MaxPriceError    string `mapstructure:"max_price_error"`
	InvalidNumber    string `mapstructure:"invalid_number"`
	FilterAdded      string `mapstructure:"filter_added"`
	FiltersCleared   string `mapstructure:"filters_cleared"`
	NoFiltersSet     string `mapstructure:"no_filters_set"`

	DepositPrompt       string `mapstructure:"deposit_prompt"`
	SubscribeFirst      string `mapstructure:"subscribe_first"`
	SubscriptionSuccess string `mapstructure:"subscription_success"`
	ChannelCreated      string `mapstructure:"channel_created"` // %s = invite link
	DepositSuccess      string `mapstructure:"deposit_success"` // %d = amount, %d = new balance

	PurchaseConfirmation string `mapstructure:"purchase_confirmation"` // %s = gift id, %d = price, %d = balance
	JoinWarning          string `mapstructure:"join_warning"`
	JoinFailed           string `mapstructure:"join_failed"`
	Promoted             string `mapstructure:"promoted"`

	NotAuthorized string `mapstructure:"not_authorized"`
	GeneralError  string `mapstructure:"general_error"`
	BuysStopped   string `mapstructure:"buys_stopped"`
	BuysStarted   string `mapstructure:"buys_started"`
}

// Load reads configuration from:
//  1. Default values
//  2. the YAML file at path (optional)
//  3. BOT_* environment variables
//
// and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
		}
		slog.Info("configuration file not found, using defaults and environment", "path", path)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	slog.Info("configuration loaded",
		"log_level", cfg.Log.Level,
		"feed_url", cfg.Feed.URL,
		"db_path", cfg.Database.Path)
	return cfg, nil
}
