package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewStopBuysHandler returns the handler for /stopbuys, which suspends
// the purchase phase of the engine. Polling keeps running.
func NewStopBuysHandler(deps HandlerDeps) bot.HandlerFunc {
	return stopBuysHandler{deps}.Handle
}

// NewStartBuysHandler returns the handler for /startbuys.
func NewStartBuysHandler(deps HandlerDeps) bot.HandlerFunc {
	return startBuysHandler{deps}.Handle
}

type stopBuysHandler struct{ deps HandlerDeps }
type startBuysHandler struct{ deps HandlerDeps }

func (h stopBuysHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.deps.Engine.Pause()
	h.deps.Logger.InfoContext(ctx, "Purchases paused by admin", "user_id", update.Message.From.ID)
	reply(ctx, b, update.Message.Chat.ID, h.deps.Config.Messages.BuysStopped)
}

func (h startBuysHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.deps.Engine.Resume()
	h.deps.Logger.InfoContext(ctx, "Purchases resumed by admin", "user_id", update.Message.From.ID)
	reply(ctx, b, update.Message.Chat.ID, h.deps.Config.Messages.BuysStarted)
}
