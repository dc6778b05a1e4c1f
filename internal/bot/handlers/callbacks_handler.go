package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/giftwatch/internal/database"
)

// NewMenuCallbackHandler returns the handler for all fixed menu buttons.
func NewMenuCallbackHandler(deps HandlerDeps) bot.HandlerFunc {
	return menuCallbackHandler{deps}.Handle
}

// NewSetLanguageHandler returns the handler for the set_lang_* buttons.
func NewSetLanguageHandler(deps HandlerDeps) bot.HandlerFunc {
	return setLanguageHandler{deps}.Handle
}

type menuCallbackHandler struct {
	deps HandlerDeps
}

type setLanguageHandler struct {
	deps HandlerDeps
}

// callbackChat extracts the chat ID behind a callback query.
func callbackChat(update *models.Update) (int64, bool) {
	if update.CallbackQuery == nil {
		return 0, false
	}
	if update.CallbackQuery.Message.Message.Date != 0 {
		return update.CallbackQuery.Message.Message.Chat.ID, true
	}
	return update.CallbackQuery.Message.InaccessibleMessage.Chat.ID, true
}

// answerCallback closes the client-side loading spinner.
func answerCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	_, _ = b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: update.CallbackQuery.ID,
	})
}

// loadUser fetches the user, registering them when unknown. Callbacks can
// arrive from users whose /start predates the current database.
func loadUser(ctx context.Context, deps HandlerDeps, userID int64) (*database.User, error) {
	user, err := deps.Store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return deps.Store.UpdateUser(ctx, userID, database.UserPatch{})
	}
	return user, nil
}

func (h menuCallbackHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "menu_callback")

	chatID, ok := callbackChat(update)
	if !ok {
		return
	}
	answerCallback(ctx, b, update)

	userID := update.CallbackQuery.From.ID
	data := update.CallbackQuery.Data
	log = log.With("user_id", userID, "data", data)

	user, err := loadUser(ctx, h.deps, userID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load user for callback", "error", err)
		return
	}

	switch data {
	case cbMainMenu:
		renderMainMenu(ctx, b, h.deps, chatID, user)

	case cbSettings:
		renderSettings(ctx, b, h.deps, chatID, user)

	case cbLanguage:
		h.deps.Steps.Clear(userID)
		_, err := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:      chatID,
			Text:        "Choose your language:",
			ReplyMarkup: languageKeyboard(),
		})
		if err != nil {
			log.ErrorContext(ctx, "Failed to send language menu", "error", err)
		}

	case cbAddFilter:
		h.deps.Steps.Start(userID, stageFilterMin)
		_, err := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   h.deps.Config.Messages.MinPricePrompt,
		})
		if err != nil {
			log.ErrorContext(ctx, "Failed to send filter prompt", "error", err)
		}

	case cbClearFilters:
		empty := []database.Filter{}
		updated, err := h.deps.Store.UpdateUser(ctx, userID, database.UserPatch{Filters: &empty})
		if err != nil {
			log.ErrorContext(ctx, "Failed to clear filters", "error", err)
			return
		}
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   h.deps.Config.Messages.FiltersCleared,
		})
		renderSettings(ctx, b, h.deps, chatID, updated)

	case cbDeposit:
		h.deps.Steps.Start(userID, stageDepositAmount)
		_, err := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   h.deps.Config.Messages.DepositPrompt,
		})
		if err != nil {
			log.ErrorContext(ctx, "Failed to send deposit prompt", "error", err)
		}

	case cbSubscribe:
		h.deps.Steps.Clear(userID)
		sendSubscriptionInvoice(ctx, b, h.deps, chatID, log)

	default:
		log.WarnContext(ctx, "Unknown callback data")
	}
}

func (h setLanguageHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "set_language")

	chatID, ok := callbackChat(update)
	if !ok {
		return
	}
	answerCallback(ctx, b, update)

	userID := update.CallbackQuery.From.ID
	lang := strings.TrimPrefix(update.CallbackQuery.Data, cbSetLangPrefix)
	switch lang {
	case "en", "fa", "ru":
	default:
		log.WarnContext(ctx, "Unknown language code", "lang", lang)
		return
	}

	user, err := h.deps.Store.UpdateUser(ctx, userID, database.UserPatch{Language: &lang})
	if err != nil {
		log.ErrorContext(ctx, "Failed to persist language", "error", err, "user_id", userID)
		return
	}

	log.InfoContext(ctx, "Language updated", "user_id", userID, "lang", lang)
	renderMainMenu(ctx, b, h.deps, chatID, user)
}
