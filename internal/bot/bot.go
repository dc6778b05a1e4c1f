// Package bot implements lifecycle management and component
// orchestration for the giftwatch service.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbot "github.com/go-telegram/bot"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/edgard/giftwatch/internal/config"
	"github.com/edgard/giftwatch/internal/database"
	"github.com/edgard/giftwatch/internal/engine"
	"github.com/edgard/giftwatch/internal/metrics"
	"github.com/edgard/giftwatch/internal/userbot"
)

// Bot represents the main application and manages its components'
// lifecycle: the Telegram listener, the MTProto userbot, the purchase
// engine, the scheduler, and the metrics listener.
type Bot struct {
	logger    *slog.Logger
	cfg       *config.Config
	db        *sqlx.DB
	store     database.Store
	userbot   *userbot.Client
	engine    *engine.Engine
	tgBot     *tgbot.Bot
	scheduler *Scheduler
}

// NewBot creates a new instance of the bot with all required dependencies.
func NewBot(
	logger *slog.Logger,
	cfg *config.Config,
	db *sqlx.DB,
	store database.Store,
	ub *userbot.Client,
	eng *engine.Engine,
	tgBot *tgbot.Bot,
	scheduler *Scheduler,
) *Bot {
	return &Bot{
		logger:    logger.With("component", "bot_orchestrator"),
		cfg:       cfg,
		db:        db,
		store:     store,
		userbot:   ub,
		engine:    eng,
		tgBot:     tgBot,
		scheduler: scheduler,
	}
}

// Run starts every component and blocks until the context is cancelled
// or one of them fails. A single failing component takes the whole
// service down through the shared errgroup context.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Starting Telegram bot listener...")

		b.tgBot.Start(gCtx)
		b.logger.Info("Telegram bot listener stopped.")

		if gCtx.Err() == nil {
			b.logger.Warn("Telegram bot listener stopped unexpectedly without context cancellation.")
			return fmt.Errorf("telegram listener stopped unexpectedly")
		}
		return nil
	})

	g.Go(func() error {
		b.logger.Info("Starting userbot connection...")
		if err := b.userbot.Run(gCtx); err != nil && gCtx.Err() == nil {
			b.logger.Error("Userbot stopped with error", "error", err)
			return fmt.Errorf("userbot stopped: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		b.logger.Info("Starting purchase engine...")
		if err := b.engine.Run(gCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("purchase engine stopped: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		b.logger.Info("Starting scheduler...")
		if err := b.scheduler.Start(); err != nil {
			b.logger.Error("Failed to start scheduler", "error", err)
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler...")

		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		return metrics.Serve(gCtx, b.cfg.Metrics.Addr, b.logger)
	})

	b.logger.Info("Bot orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}
