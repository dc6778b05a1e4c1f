package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/giftwatch/internal/database"
)

// sendSubscriptionInvoice sends the monthly subscription invoice in stars.
func sendSubscriptionInvoice(ctx context.Context, b *bot.Bot, deps HandlerDeps, chatID int64, log *slog.Logger) {
	price := deps.Config.Telegram.SubscriptionPrice
	_, err := b.SendInvoice(ctx, &bot.SendInvoiceParams{
		ChatID:      chatID,
		Title:       "Gift watcher subscription",
		Description: "One month of automatic gift purchases.",
		Payload:     payloadSubscribe,
		Currency:    "XTR",
		Prices: []models.LabeledPrice{
			{Label: "1 month", Amount: int(price)},
		},
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send subscription invoice", "error", err, "chat_id", chatID)
	}
}

// sendDepositInvoice sends a star invoice for a balance top-up.
func sendDepositInvoice(ctx context.Context, b *bot.Bot, deps HandlerDeps, chatID, amount int64, log *slog.Logger) {
	_, err := b.SendInvoice(ctx, &bot.SendInvoiceParams{
		ChatID:      chatID,
		Title:       "Balance deposit",
		Description: fmt.Sprintf("Add %d ⭐ to your gift balance.", amount),
		Payload:     payloadDepositPrefix + strconv.FormatInt(amount, 10),
		Currency:    "XTR",
		Prices: []models.LabeledPrice{
			{Label: "Deposit", Amount: int(amount)},
		},
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send deposit invoice", "error", err, "chat_id", chatID)
	}
}

// handlePreCheckout approves every pre-checkout query. Validation happened
// when the invoice was built; Telegram requires an answer within 10s.
func handlePreCheckout(ctx context.Context, b *bot.Bot, deps HandlerDeps, update *models.Update) {
	log := deps.Logger.With("handler", "pre_checkout")

	ok, err := b.AnswerPreCheckoutQuery(ctx, &bot.AnswerPreCheckoutQueryParams{
		PreCheckoutQueryID: update.PreCheckoutQuery.ID,
		OK:                 true,
	})
	if err != nil || !ok {
		log.ErrorContext(ctx, "Failed to answer pre-checkout query",
			"error", err, "user_id", update.PreCheckoutQuery.From.ID)
		return
	}
	log.InfoContext(ctx, "Pre-checkout approved",
		"user_id", update.PreCheckoutQuery.From.ID,
		"amount", update.PreCheckoutQuery.TotalAmount,
		"payload", update.PreCheckoutQuery.InvoicePayload)
}

// handleSuccessfulPayment routes a completed star payment by its payload:
// subscription activation or balance deposit.
func handleSuccessfulPayment(ctx context.Context, b *bot.Bot, deps HandlerDeps, update *models.Update) {
	log := deps.Logger.With("handler", "successful_payment")

	payment := update.Message.SuccessfulPayment
	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID
	log = log.With("user_id", userID, "payload", payment.InvoicePayload, "amount", payment.TotalAmount)

	switch {
	case payment.InvoicePayload == payloadSubscribe:
		activateSubscription(ctx, b, deps, userID, chatID, log)

	case strings.HasPrefix(payment.InvoicePayload, payloadDepositPrefix):
		amount, err := strconv.ParseInt(strings.TrimPrefix(payment.InvoicePayload, payloadDepositPrefix), 10, 64)
		if err != nil || amount <= 0 {
			log.ErrorContext(ctx, "Deposit payload is not a valid amount", "error", err)
			return
		}
		creditDeposit(ctx, b, deps, userID, chatID, amount, log)

	default:
		log.WarnContext(ctx, "Payment with unknown payload")
	}
}

// activateSubscription grants one month, provisions the delivery channel,
// and kicks off the join-check promotion workflow.
func activateSubscription(ctx context.Context, b *bot.Bot, deps HandlerDeps, userID, chatID int64, log *slog.Logger) {
	active := true
	expires := time.Now().UTC().AddDate(0, 1, 0)

	user, err := deps.Store.UpdateUser(ctx, userID, database.UserPatch{
		SubscriptionActive:    &active,
		SubscriptionExpiresAt: &expires,
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to activate subscription", "error", err)
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: deps.Config.Messages.GeneralError})
		return
	}

	log.InfoContext(ctx, "Subscription activated", "expires_at", expires)
	_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   deps.Config.Messages.SubscriptionSuccess,
	})

	if user.ChannelProvisioned() {
		// Renewal; the existing channel keeps serving deliveries.
		return
	}

	link, ok := deps.Promo.Provision(ctx, userID)
	if !ok {
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: deps.Config.Messages.GeneralError})
		return
	}

	_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   fmt.Sprintf(deps.Config.Messages.ChannelCreated, link),
	})
	deps.Promo.Spawn(ctx, userID)
}

// creditDeposit adds the paid stars to the user's balance.
func creditDeposit(ctx context.Context, b *bot.Bot, deps HandlerDeps, userID, chatID, amount int64, log *slog.Logger) {
	user, err := deps.Store.AddBalance(ctx, userID, amount)
	if err != nil {
		log.ErrorContext(ctx, "Failed to credit deposit", "error", err)
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: deps.Config.Messages.GeneralError})
		return
	}

	log.InfoContext(ctx, "Deposit credited", "balance", user.Balance)
	_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   fmt.Sprintf(deps.Config.Messages.DepositSuccess, amount, user.Balance),
	})
}
