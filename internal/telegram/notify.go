package telegram

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-telegram/bot"
)

// UserNotifier sends direct messages to users through the bot. It exists
// as its own type because the promotion workflow needs to message users
// but is constructed before the bot instance; Bind closes the loop once
// the bot exists.
type UserNotifier struct {
	bot    *bot.Bot
	logger *slog.Logger
}

// NewUserNotifier creates an unbound notifier.
func NewUserNotifier(logger *slog.Logger) *UserNotifier {
	return &UserNotifier{logger: logger.With("component", "notifier")}
}

// Bind attaches the bot instance. Must be called before the first
// NotifyUser; notifications sent earlier fail with an error.
func (n *UserNotifier) Bind(b *bot.Bot) {
	n.bot = b
}

// NotifyUser sends a plain text direct message to the user.
func (n *UserNotifier) NotifyUser(ctx context.Context, userID int64, text string) error {
	if n.bot == nil {
		return errors.New("notifier is not bound to a bot yet")
	}
	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: userID,
		Text:   text,
	})
	if err != nil {
		n.logger.WarnContext(ctx, "Failed to notify user", "user_id", userID, "error", err)
	}
	return err
}
