package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/giftwatch/internal/database"
)

// Callback data values used by the inline keyboards.
const (
	cbSettings      = "settings"
	cbDeposit       = "deposit"
	cbSubscribe     = "subscribe"
	cbLanguage      = "language"
	cbSetLangPrefix = "set_lang_"
	cbAddFilter     = "add_filter_start"
	cbClearFilters  = "clear_filters"
	cbMainMenu      = "main_menu"
)

// Invoice payload values routed by the payment handlers.
const (
	payloadSubscribe     = "subscribe"
	payloadDepositPrefix = "deposit:"
)

func mainMenuKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "⚙️ Settings", CallbackData: cbSettings},
				{Text: "💰 Deposit", CallbackData: cbDeposit},
			},
			{
				{Text: "⭐ Subscribe", CallbackData: cbSubscribe},
				{Text: "🌐 Language", CallbackData: cbLanguage},
			},
		},
	}
}

func settingsKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "➕ Add filter", CallbackData: cbAddFilter},
				{Text: "🗑 Clear filters", CallbackData: cbClearFilters},
			},
			{
				{Text: "⬅️ Back", CallbackData: cbMainMenu},
			},
		},
	}
}

func languageKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "English", CallbackData: cbSetLangPrefix + "en"},
				{Text: "فارسی", CallbackData: cbSetLangPrefix + "fa"},
				{Text: "Русский", CallbackData: cbSetLangPrefix + "ru"},
			},
			{
				{Text: "⬅️ Back", CallbackData: cbMainMenu},
			},
		},
	}
}

// renderMainMenu sends the main menu with the user's subscription status
// and balance. Called from /start and from every back-navigation, so it
// also clears any in-flight input flow.
func renderMainMenu(ctx context.Context, b *bot.Bot, deps HandlerDeps, chatID int64, user *database.User) {
	deps.Steps.Clear(user.UserID)

	status := deps.Config.Messages.StatusInactive
	if user.SubscriptionCurrent(time.Now().UTC()) {
		status = deps.Config.Messages.StatusActive
	}

	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        fmt.Sprintf(deps.Config.Messages.Welcome, status, user.Balance),
		ReplyMarkup: mainMenuKeyboard(),
	})
	if err != nil {
		deps.Logger.ErrorContext(ctx, "Failed to send main menu", "error", err, "chat_id", chatID)
	}
}

// renderSettings sends the filter list with the settings keyboard.
func renderSettings(ctx context.Context, b *bot.Bot, deps HandlerDeps, chatID int64, user *database.User) {
	deps.Steps.Clear(user.UserID)

	var sb strings.Builder
	if len(user.Filters) == 0 {
		sb.WriteString(deps.Config.Messages.NoFiltersSet)
	} else {
		sb.WriteString("Your filters:\n")
		for i, f := range user.Filters {
			fmt.Fprintf(&sb, "%d. %d–%d ⭐, bought %d/%d\n",
				i+1, f.MinPrice, f.MaxPrice, f.PurchasedCount, f.MaxRepeats)
		}
	}

	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        sb.String(),
		ReplyMarkup: settingsKeyboard(),
	})
	if err != nil {
		deps.Logger.ErrorContext(ctx, "Failed to send settings menu", "error", err, "chat_id", chatID)
	}
}
