package handlers

import (
	"context"
	"log/slog"

	"github.com/edgard/giftwatch/internal/config"
	"github.com/edgard/giftwatch/internal/database"
)

// EngineControl is the stop/start surface of the purchase engine used by
// the admin toggle commands.
type EngineControl interface {
	Pause()
	Resume()
	Paused() bool
}

// Provisioner creates delivery channels and runs promotions.
// Implemented by promo.Manager.
type Provisioner interface {
	Provision(ctx context.Context, userID int64) (inviteLink string, ok bool)
	Spawn(ctx context.Context, userID int64)
}

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger *slog.Logger
	Config *config.Config
	Store  database.Store
	Engine EngineControl
	Promo  Provisioner
	Steps  *StepTracker
}
