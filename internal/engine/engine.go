package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/edgard/giftwatch/internal/database"
	"github.com/edgard/giftwatch/internal/feed"
	"github.com/edgard/giftwatch/internal/metrics"
)

// Poller supplies the current gift listing. Implemented by feed.Client.
type Poller interface {
	Poll(ctx context.Context) ([]feed.Gift, error)
}

// Purchaser executes gift purchases and posts messages into delivery
// channels. Implemented by the MTProto userbot.
type Purchaser interface {
	// PurchaseGift attempts one purchase of the gift addressed to the
	// channel. It reports success or failure and never retries.
	PurchaseGift(ctx context.Context, channelID, accessHash string, gift feed.Gift) bool

	// SendChannelMessage posts a message into the channel.
	SendChannelMessage(ctx context.Context, channelID, accessHash, text string) error
}

// Intervals controls the loop cadence between cycles.
type Intervals struct {
	Cycle        time.Duration
	Idle         time.Duration
	ErrorBackoff time.Duration
}

// Engine runs the poll, match, purchase loop. One purchase attempt is
// made per user and gift per cycle; a failed attempt is simply retried
// on the next cycle if the feed still lists the gift.
type Engine struct {
	store     database.Store
	poller    Poller
	purchaser Purchaser
	intervals Intervals

	// confirmationTmpl formats the channel message after a purchase:
	// gift ID, price paid, remaining balance.
	confirmationTmpl string

	paused atomic.Bool
	logger *slog.Logger
}

// New creates an Engine. The confirmation template receives the gift ID,
// the price, and the remaining balance.
func New(store database.Store, poller Poller, purchaser Purchaser, intervals Intervals, confirmationTmpl string, logger *slog.Logger) *Engine {
	return &Engine{
		store:            store,
		poller:           poller,
		purchaser:        purchaser,
		intervals:        intervals,
		confirmationTmpl: confirmationTmpl,
		logger:           logger.With("component", "engine"),
	}
}

// Pause suspends the match-and-purchase phase. Polling continues so the
// loop resumes instantly on Resume.
func (e *Engine) Pause() { e.paused.Store(true) }

// Resume lifts a previous Pause.
func (e *Engine) Resume() { e.paused.Store(false) }

// Paused reports whether purchasing is currently suspended.
func (e *Engine) Paused() bool { return e.paused.Load() }

// Run executes the loop until ctx is cancelled. It always returns
// ctx.Err(); feed failures only back off, they never stop the loop.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.InfoContext(ctx, "Purchase engine started",
		"cycle_interval", e.intervals.Cycle,
		"idle_interval", e.intervals.Idle,
		"error_backoff", e.intervals.ErrorBackoff)

	for {
		gifts, err := e.poller.Poll(ctx)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()

		case err != nil:
			metrics.PollCycles.WithLabelValues(metrics.PollError).Inc()
			e.logger.WarnContext(ctx, "Feed poll failed, backing off", "error", err)
			if err := sleep(ctx, e.intervals.ErrorBackoff); err != nil {
				return err
			}
			continue

		case len(gifts) == 0:
			metrics.PollCycles.WithLabelValues(metrics.PollEmpty).Inc()
			if err := sleep(ctx, e.intervals.Idle); err != nil {
				return err
			}
			continue
		}

		metrics.PollCycles.WithLabelValues(metrics.PollOK).Inc()

		if e.paused.Load() {
			e.logger.DebugContext(ctx, "Purchasing paused, skipping cycle", "gifts", len(gifts))
		} else {
			e.runCycle(ctx, gifts)
		}

		if err := sleep(ctx, e.intervals.Cycle); err != nil {
			return err
		}
	}
}

// runCycle matches one feed listing against a fresh snapshot of all
// users and attempts the resulting purchases. Store failures for one
// user never block the remaining users.
func (e *Engine) runCycle(ctx context.Context, gifts []feed.Gift) {
	users, err := e.store.AllUsers(ctx)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to snapshot users, skipping cycle", "error", err)
		return
	}

	now := time.Now().UTC()
	for i := range users {
		user := &users[i]
		if !user.SubscriptionCurrent(now) || !user.ChannelProvisioned() {
			continue
		}
		for _, gift := range gifts {
			e.tryPurchase(ctx, user, gift)
		}
	}
}

// tryPurchase runs the match, purchase, record, notify sequence for one
// user and gift. The in-memory snapshot is mutated on success so later
// gifts in the same cycle see the reduced balance and bumped counter.
func (e *Engine) tryPurchase(ctx context.Context, user *database.User, gift feed.Gift) {
	idx, ok := Match(user, gift)
	if !ok {
		return
	}

	channelID := user.ChannelID.String
	accessHash := user.ChannelAccessHash.String

	if !e.purchaser.PurchaseGift(ctx, channelID, accessHash, gift) {
		metrics.PurchaseAttempts.WithLabelValues(metrics.PurchaseFailed).Inc()
		e.logger.WarnContext(ctx, "Purchase attempt failed",
			"user_id", user.UserID, "gift_id", gift.ID, "price", gift.Price)
		return
	}

	updated, err := e.store.RecordPurchase(ctx, user.UserID, idx, gift.Price)
	if err != nil {
		metrics.PurchaseAttempts.WithLabelValues(metrics.PurchaseFailed).Inc()
		e.logger.ErrorContext(ctx, "Purchase succeeded but could not be recorded",
			"user_id", user.UserID, "gift_id", gift.ID, "price", gift.Price, "error", err)
		return
	}

	metrics.PurchaseAttempts.WithLabelValues(metrics.PurchaseOK).Inc()
	user.Balance = updated.Balance
	user.Filters = updated.Filters

	e.logger.InfoContext(ctx, "Gift purchased",
		"user_id", user.UserID, "gift_id", gift.ID, "price", gift.Price, "balance", updated.Balance)

	text := fmt.Sprintf(e.confirmationTmpl, gift.ID, gift.Price, updated.Balance)
	if err := e.purchaser.SendChannelMessage(ctx, channelID, accessHash, text); err != nil {
		e.logger.WarnContext(ctx, "Failed to post purchase confirmation",
			"user_id", user.UserID, "gift_id", gift.ID, "error", err)
	}
}

// sleep waits for d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
