package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/giftwatch/internal/database"
)

// NewDefaultHandler returns the catch-all handler for updates no command
// or callback pattern claimed: pre-checkout queries, successful payments,
// and plain text messages feeding the multi-step input flows.
func NewDefaultHandler(deps HandlerDeps) bot.HandlerFunc {
	return defaultHandler{deps}.Handle
}

type defaultHandler struct {
	deps HandlerDeps
}

func (h defaultHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	switch {
	case update.PreCheckoutQuery != nil:
		handlePreCheckout(ctx, b, h.deps, update)

	case update.Message != nil && update.Message.SuccessfulPayment != nil:
		handleSuccessfulPayment(ctx, b, h.deps, update)

	case update.Message != nil && update.Message.From != nil && update.Message.Text != "":
		h.handleText(ctx, b, update)
	}
}

// handleText feeds a plain text message into the sender's in-flight input
// flow. Text outside any flow is ignored.
func (h defaultHandler) handleText(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "text_input")

	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	state, ok := h.deps.Steps.Current(userID)
	if !ok {
		return
	}

	value, err := strconv.ParseInt(strings.TrimSpace(update.Message.Text), 10, 64)
	if err != nil || value < 0 {
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   h.deps.Config.Messages.InvalidNumber,
		})
		return
	}

	switch state.Stage {
	case stageFilterMin:
		state.MinPrice = value
		state.Stage = stageFilterMax
		h.deps.Steps.Set(userID, state)
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   h.deps.Config.Messages.MaxPricePrompt,
		})

	case stageFilterMax:
		if value < state.MinPrice {
			_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
				ChatID: chatID,
				Text:   h.deps.Config.Messages.MaxPriceError,
			})
			return
		}
		state.MaxPrice = value
		state.Stage = stageFilterRepeats
		h.deps.Steps.Set(userID, state)
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   h.deps.Config.Messages.MaxRepeatsPrompt,
		})

	case stageFilterRepeats:
		h.deps.Steps.Clear(userID)
		user, err := h.deps.Store.AppendFilter(ctx, userID, database.Filter{
			MinPrice:   state.MinPrice,
			MaxPrice:   state.MaxPrice,
			MaxRepeats: value,
		})
		if err != nil {
			log.ErrorContext(ctx, "Failed to save filter", "error", err, "user_id", userID)
			_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
				ChatID: chatID,
				Text:   h.deps.Config.Messages.GeneralError,
			})
			return
		}
		log.InfoContext(ctx, "Filter added", "user_id", userID,
			"min_price", state.MinPrice, "max_price", state.MaxPrice, "max_repeats", value)
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   h.deps.Config.Messages.FilterAdded,
		})
		renderSettings(ctx, b, h.deps, chatID, user)

	case stageDepositAmount:
		if value == 0 {
			_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
				ChatID: chatID,
				Text:   h.deps.Config.Messages.InvalidNumber,
			})
			return
		}
		h.deps.Steps.Clear(userID)
		sendDepositInvoice(ctx, b, h.deps, chatID, value, log)
	}
}
