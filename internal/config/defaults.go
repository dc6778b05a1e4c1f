package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default values for configuration
const (
	// Log defaults
	DefaultLogLevel = "info"
	DefaultLogJSON  = true

	// Database defaults
	DefaultDBPath = "giftwatch.db"

	// Feed defaults
	DefaultFeedTimeout = 10 * time.Second

	// Engine defaults
	DefaultCycleInterval = 1 * time.Second
	DefaultIdleInterval  = 5 * time.Second
	DefaultErrorBackoff  = 10 * time.Second

	// Promo defaults
	DefaultJoinCheckDelay = 15 * time.Second

	// Payment defaults
	DefaultSubscriptionPrice = 500

	// Userbot defaults
	DefaultSessionFile = "userbot.session"
)

// Default user-facing messages
var defaultMessages = MessagesConfig{
	Welcome:        "🎁 Gift watcher is running.\n\nSubscription: %s\nBalance: %d ⭐",
	StatusActive:   "active",
	StatusInactive: "inactive",

	MinPricePrompt:   "Enter the minimum gift price in stars:",
	MaxPricePrompt:   "Enter the maximum gift price in stars:",
	MaxRepeatsPrompt: "How many times may this filter buy?",
	MaxPriceError:    "Maximum price must not be lower than the minimum.",
	InvalidNumber:    "Please send a whole non-negative number.",
	FilterAdded:      "✅ Filter saved.",
	FiltersCleared:   "🗑 All filters removed.",
	NoFiltersSet:     "You have no filters yet.",

	DepositPrompt:       "Send the number of stars you want to deposit.",
	SubscribeFirst:      "You need an active subscription first.",
	SubscriptionSuccess: "✅ Subscription active for one month.",
	ChannelCreated:      "Your delivery channel is ready. Join here: %s",
	DepositSuccess:      "✅ Deposited %d ⭐. New balance: %d ⭐.",

	PurchaseConfirmation: "🎁 Bought gift %s for %d ⭐. Remaining balance: %d ⭐.",
	JoinWarning:          "⚠️ You have not joined your delivery channel yet. Please join so I can hand it over to you.",
	JoinFailed:           "❌ You never joined your delivery channel. Ownership was not transferred.",
	Promoted:             "👑 Channel handed over. You are now the owner.",

	NotAuthorized: "🚫 Access denied.",
	GeneralError:  "❌ Something went wrong. Please try again later.",
	BuysStopped:   "⏸ Purchases paused.",
	BuysStarted:   "▶️ Purchases resumed.",
}

// setDefaults registers every default on the given viper instance so that
// a minimal config file only needs credentials.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.json", DefaultLogJSON)

	// Credentials default to empty. Registering the keys lets viper see
	// environment-only values during Unmarshal; validation rejects the
	// empty values afterwards.
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_id", 0)
	v.SetDefault("userbot.api_id", 0)
	v.SetDefault("userbot.api_hash", "")
	v.SetDefault("feed.url", "")

	v.SetDefault("telegram.subscription_price", DefaultSubscriptionPrice)

	v.SetDefault("userbot.session_file", DefaultSessionFile)

	v.SetDefault("feed.timeout", DefaultFeedTimeout)

	v.SetDefault("engine.cycle_interval", DefaultCycleInterval)
	v.SetDefault("engine.idle_interval", DefaultIdleInterval)
	v.SetDefault("engine.error_backoff", DefaultErrorBackoff)

	v.SetDefault("promo.join_check_delay", DefaultJoinCheckDelay)

	v.SetDefault("database.path", DefaultDBPath)

	v.SetDefault("scheduler.tasks.subscription_expiry.enabled", true)
	v.SetDefault("scheduler.tasks.subscription_expiry.schedule", "0 * * * *")
	v.SetDefault("scheduler.tasks.sql_maintenance.enabled", true)
	v.SetDefault("scheduler.tasks.sql_maintenance.schedule", "0 4 * * *")

	v.SetDefault("metrics.addr", "")

	v.SetDefault("messages.welcome", defaultMessages.Welcome)
	v.SetDefault("messages.status_active", defaultMessages.StatusActive)
	v.SetDefault("messages.status_inactive", defaultMessages.StatusInactive)
	v.SetDefault("messages.min_price_prompt", defaultMessages.MinPricePrompt)
	v.SetDefault("messages.max_price_prompt", defaultMessages.MaxPricePrompt)
	v.SetDefault("messages.max_repeats_prompt", defaultMessages.MaxRepeatsPrompt)
	v.SetDefault("messages.max_price_error", defaultMessages.MaxPriceError)
	v.SetDefault("messages.invalid_number", defaultMessages.InvalidNumber)
	v.SetDefault("messages.filter_added", defaultMessages.FilterAdded)
	v.SetDefault("messages.filters_cleared", defaultMessages.FiltersCleared)
	v.SetDefault("messages.no_filters_set", defaultMessages.NoFiltersSet)
	v.SetDefault("messages.deposit_prompt", defaultMessages.DepositPrompt)
	v.SetDefault("messages.subscribe_first", defaultMessages.SubscribeFirst)
	v.SetDefault("messages.subscription_success", defaultMessages.SubscriptionSuccess)
	v.SetDefault("messages.channel_created", defaultMessages.ChannelCreated)
	v.SetDefault("messages.deposit_success", defaultMessages.DepositSuccess)
	v.SetDefault("messages.purchase_confirmation", defaultMessages.PurchaseConfirmation)
	v.SetDefault("messages.join_warning", defaultMessages.JoinWarning)
	v.SetDefault("messages.join_failed", defaultMessages.JoinFailed)
	v.SetDefault("messages.promoted", defaultMessages.Promoted)
	v.SetDefault("messages.not_authorized", defaultMessages.NotAuthorized)
	v.SetDefault("messages.general_error", defaultMessages.GeneralError)
	v.SetDefault("messages.buys_stopped", defaultMessages.BuysStopped)
	v.SetDefault("messages.buys_started", defaultMessages.BuysStarted)
}
