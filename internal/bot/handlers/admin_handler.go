package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/giftwatch/internal/database"
)

// NewAddSubHandler returns the handler for /addsub <user_id>. It grants
// one month of subscription, provisions the delivery channel, and starts
// the promotion workflow, mirroring what a paid subscription does.
func NewAddSubHandler(deps HandlerDeps) bot.HandlerFunc {
	return addSubHandler{deps}.Handle
}

// NewAddStarsHandler returns the handler for /addstars <user_id> <amount>.
func NewAddStarsHandler(deps HandlerDeps) bot.HandlerFunc {
	return addStarsHandler{deps}.Handle
}

// NewStatsHandler returns the handler for /stats.
func NewStatsHandler(deps HandlerDeps) bot.HandlerFunc {
	return statsHandler{deps}.Handle
}

// NewUserInfoHandler returns the handler for /userinfo <user_id>.
func NewUserInfoHandler(deps HandlerDeps) bot.HandlerFunc {
	return userInfoHandler{deps}.Handle
}

type addSubHandler struct{ deps HandlerDeps }
type addStarsHandler struct{ deps HandlerDeps }
type statsHandler struct{ deps HandlerDeps }
type userInfoHandler struct{ deps HandlerDeps }

// commandArgs splits the text after the command itself.
func commandArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) <= 1 {
		return nil
	}
	return fields[1:]
}

func reply(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	_, _ = b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text})
}

func (h addSubHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "addsub")
	chatID := update.Message.Chat.ID

	args := commandArgs(update.Message.Text)
	if len(args) != 1 {
		reply(ctx, b, chatID, "Usage: /addsub <user_id>")
		return
	}
	targetID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || targetID <= 0 {
		reply(ctx, b, chatID, "Usage: /addsub <user_id>")
		return
	}

	active := true
	expires := time.Now().UTC().AddDate(0, 1, 0)
	user, err := h.deps.Store.UpdateUser(ctx, targetID, database.UserPatch{
		SubscriptionActive:    &active,
		SubscriptionExpiresAt: &expires,
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to grant subscription", "error", err, "target_id", targetID)
		reply(ctx, b, chatID, h.deps.Config.Messages.GeneralError)
		return
	}

	log.InfoContext(ctx, "Subscription granted", "target_id", targetID, "expires_at", expires)

	if user.ChannelProvisioned() {
		reply(ctx, b, chatID, fmt.Sprintf("Subscription extended for %d until %s.",
			targetID, expires.Format("2006-01-02")))
		return
	}

	link, ok := h.deps.Promo.Provision(ctx, targetID)
	if !ok {
		reply(ctx, b, chatID, h.deps.Config.Messages.GeneralError)
		return
	}

	reply(ctx, b, chatID, fmt.Sprintf("Subscription granted for %d. Invite link: %s", targetID, link))
	h.deps.Promo.Spawn(ctx, targetID)
}

func (h addStarsHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "addstars")
	chatID := update.Message.Chat.ID

	args := commandArgs(update.Message.Text)
	if len(args) != 2 {
		reply(ctx, b, chatID, "Usage: /addstars <user_id> <amount>")
		return
	}
	targetID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || targetID <= 0 {
		reply(ctx, b, chatID, "Usage: /addstars <user_id> <amount>")
		return
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		reply(ctx, b, chatID, "Usage: /addstars <user_id> <amount>")
		return
	}

	user, err := h.deps.Store.AddBalance(ctx, targetID, amount)
	if err != nil {
		log.ErrorContext(ctx, "Failed to adjust balance", "error", err, "target_id", targetID)
		reply(ctx, b, chatID, h.deps.Config.Messages.GeneralError)
		return
	}

	log.InfoContext(ctx, "Balance adjusted by admin", "target_id", targetID, "delta", amount, "balance", user.Balance)
	reply(ctx, b, chatID, fmt.Sprintf("Balance of %d is now %d ⭐.", targetID, user.Balance))
}

func (h statsHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "stats")
	chatID := update.Message.Chat.ID

	stats, err := h.deps.Store.Stats(ctx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to collect stats", "error", err)
		reply(ctx, b, chatID, h.deps.Config.Messages.GeneralError)
		return
	}

	engineState := "running"
	if h.deps.Engine.Paused() {
		engineState = "paused"
	}

	reply(ctx, b, chatID, fmt.Sprintf(
		"Users: %d\nActive subscriptions: %d\nTotal balance: %d ⭐\nEngine: %s",
		stats.TotalUsers, stats.ActiveSubscriptions, stats.TotalBalance, engineState))
}

func (h userInfoHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "userinfo")
	chatID := update.Message.Chat.ID

	args := commandArgs(update.Message.Text)
	if len(args) != 1 {
		reply(ctx, b, chatID, "Usage: /userinfo <user_id>")
		return
	}
	targetID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || targetID <= 0 {
		reply(ctx, b, chatID, "Usage: /userinfo <user_id>")
		return
	}

	user, err := h.deps.Store.GetUser(ctx, targetID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load user", "error", err, "target_id", targetID)
		reply(ctx, b, chatID, h.deps.Config.Messages.GeneralError)
		return
	}
	if user == nil {
		reply(ctx, b, chatID, fmt.Sprintf("User %d is not registered.", targetID))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "User %d\n", user.UserID)
	fmt.Fprintf(&sb, "Language: %s\n", user.Language)
	if user.SubscriptionCurrent(time.Now().UTC()) {
		fmt.Fprintf(&sb, "Subscription: active until %s\n", user.SubscriptionExpiresAt.Time.Format("2006-01-02"))
	} else {
		sb.WriteString("Subscription: inactive\n")
	}
	fmt.Fprintf(&sb, "Balance: %d ⭐\n", user.Balance)
	if user.ChannelProvisioned() {
		fmt.Fprintf(&sb, "Channel: %s\n", user.ChannelID.String)
	} else {
		sb.WriteString("Channel: none\n")
	}
	fmt.Fprintf(&sb, "Filters: %d\n", len(user.Filters))
	for i, f := range user.Filters {
		fmt.Fprintf(&sb, "  %d. %d–%d ⭐, bought %d/%d\n",
			i+1, f.MinPrice, f.MaxPrice, f.PurchasedCount, f.MaxRepeats)
	}

	reply(ctx, b, chatID, sb.String())
}
