// Package main contains the entrypoint for the giftwatch service.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/giftwatch/internal/bot"
	"github.com/edgard/giftwatch/internal/bot/handlers"
	"github.com/edgard/giftwatch/internal/bot/tasks"
	"github.com/edgard/giftwatch/internal/config"
	"github.com/edgard/giftwatch/internal/database"
	"github.com/edgard/giftwatch/internal/engine"
	"github.com/edgard/giftwatch/internal/feed"
	"github.com/edgard/giftwatch/internal/logger"
	"github.com/edgard/giftwatch/internal/promo"
	"github.com/edgard/giftwatch/internal/telegram"
	"github.com/edgard/giftwatch/internal/userbot"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes and starts all application components, handles graceful
// shutdown, and returns an exit code (0 for success, 1 for failure).
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	log.Info("Logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to open database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	ub := userbot.NewClient(userbot.Config{
		APIID:       cfg.Userbot.APIID,
		APIHash:     cfg.Userbot.APIHash,
		SessionFile: cfg.Userbot.SessionFile,
	}, log)

	feedClient := feed.NewClient(cfg.Feed.URL, cfg.Feed.Timeout, log)

	eng := engine.New(store, feedClient, ub, engine.Intervals{
		Cycle:        cfg.Engine.CycleInterval,
		Idle:         cfg.Engine.IdleInterval,
		ErrorBackoff: cfg.Engine.ErrorBackoff,
	}, cfg.Messages.PurchaseConfirmation, log)

	notifier := telegram.NewUserNotifier(log)
	promoManager := promo.NewManager(store, ub, notifier, cfg.Promo.JoinCheckDelay, promo.Messages{
		JoinWarning: cfg.Messages.JoinWarning,
		JoinFailed:  cfg.Messages.JoinFailed,
		Promoted:    cfg.Messages.Promoted,
	}, log)

	hDeps := handlers.HandlerDeps{
		Logger: log,
		Config: cfg,
		Store:  store,
		Engine: eng,
		Promo:  promoManager,
		Steps:  handlers.NewStepTracker(),
	}
	tDeps := tasks.TaskDeps{
		Logger: log,
		Store:  store,
		Config: cfg,
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(handlers.NewDefaultHandler(hDeps)),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}
	notifier.Bind(tg)

	cmdHandlers := handlers.RegisterAllCommands(hDeps)
	if err := telegram.RegisterHandlers(tg, log, cmdHandlers); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	sched := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	app := bot.NewBot(log, cfg, db, store, ub, eng, tg, sched)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
