// Package promo provisions delivery channels and runs the timed
// join-check promotion workflow for newly subscribed users.
package promo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgard/giftwatch/internal/database"
	"github.com/edgard/giftwatch/internal/metrics"
)

// ChannelGateway abstracts the channel operations of the MTProto
// account. Implemented by userbot.Client.
type ChannelGateway interface {
	CreateChannel(ctx context.Context, title string) (channelID, accessHash string, err error)
	ExportInvite(ctx context.Context, channelID, accessHash string) (string, error)
	IsMember(ctx context.Context, channelID, accessHash string, userID int64) (bool, error)
	PromoteOwner(ctx context.Context, channelID, accessHash string, userID int64) error
	SendChannelMessage(ctx context.Context, channelID, accessHash, text string) error
}

// UserNotifier delivers direct messages to users through the bot.
type UserNotifier interface {
	NotifyUser(ctx context.Context, userID int64, text string) error
}

// Messages holds the user-facing texts of the workflow.
type Messages struct {
	JoinWarning string
	JoinFailed  string
	Promoted    string
}

// Manager creates delivery channels and promotes their owners once they
// join. Each promotion runs as its own goroutine and is not persisted;
// a process restart abandons in-flight promotions.
type Manager struct {
	store    database.Store
	gateway  ChannelGateway
	notifier UserNotifier
	delay    time.Duration
	messages Messages
	logger   *slog.Logger
}

// NewManager creates a Manager. delay is the wait before each of the two
// membership checks.
func NewManager(store database.Store, gateway ChannelGateway, notifier UserNotifier, delay time.Duration, messages Messages, logger *slog.Logger) *Manager {
	return &Manager{
		store:    store,
		gateway:  gateway,
		notifier: notifier,
		delay:    delay,
		messages: messages,
		logger:   logger.With("component", "promo"),
	}
}

// Provision creates a private delivery channel for the user, persists
// its credentials, and returns a single-use invite link. It does nothing
// when the user is unknown, unsubscribed, or already has a channel; the
// second case returns the reason as a plain bool because every caller
// reacts the same way, with a generic failure reply.
func (m *Manager) Provision(ctx context.Context, userID int64) (string, bool) {
	log := m.logger.With("user_id", userID)

	user, err := m.store.GetUser(ctx, userID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load user for provisioning", "error", err)
		return "", false
	}
	if user == nil || !user.SubscriptionActive {
		log.WarnContext(ctx, "Provisioning refused, no active subscription")
		return "", false
	}
	if user.ChannelProvisioned() {
		log.WarnContext(ctx, "Provisioning refused, channel already exists", "channel_id", user.ChannelID.String)
		return "", false
	}

	title := fmt.Sprintf("Gifts %d", userID)
	channelID, accessHash, err := m.gateway.CreateChannel(ctx, title)
	if err != nil {
		log.ErrorContext(ctx, "Failed to create delivery channel", "error", err)
		return "", false
	}

	if _, err := m.store.UpdateUser(ctx, userID, database.UserPatch{
		ChannelID:         &channelID,
		ChannelAccessHash: &accessHash,
	}); err != nil {
		log.ErrorContext(ctx, "Failed to persist channel credentials", "channel_id", channelID, "error", err)
		return "", false
	}

	link, err := m.gateway.ExportInvite(ctx, channelID, accessHash)
	if err != nil {
		log.ErrorContext(ctx, "Failed to export invite link", "channel_id", channelID, "error", err)
		return "", false
	}

	log.InfoContext(ctx, "Delivery channel provisioned", "channel_id", channelID)
	return link, true
}

// Spawn starts RunPromotion on its own goroutine. The workflow outlives
// the triggering update, so it runs detached from the caller's
// cancellation but still stops on process shutdown via ctx's values.
func (m *Manager) Spawn(ctx context.Context, userID int64) {
	go m.RunPromotion(context.WithoutCancel(ctx), userID)
}

// RunPromotion waits for the user to join their delivery channel and
// hands the channel over. The schedule is fixed: wait, check, on a miss
// warn the user once, wait, check again, then either promote or send the
// final failure notice. Exactly two checks, no retries beyond them.
func (m *Manager) RunPromotion(ctx context.Context, userID int64) {
	log := m.logger.With("user_id", userID)

	user, err := m.store.GetUser(ctx, userID)
	if err != nil || user == nil || !user.ChannelProvisioned() {
		log.WarnContext(ctx, "Promotion skipped, no provisioned channel", "error", err)
		return
	}
	channelID := user.ChannelID.String
	accessHash := user.ChannelAccessHash.String

	if err := sleep(ctx, m.delay); err != nil {
		return
	}

	joined, err := m.gateway.IsMember(ctx, channelID, accessHash, userID)
	if err != nil {
		log.WarnContext(ctx, "Membership check failed", "error", err)
	}
	if joined {
		m.promote(ctx, channelID, accessHash, userID)
		return
	}

	if err := m.notifier.NotifyUser(ctx, userID, m.messages.JoinWarning); err != nil {
		log.WarnContext(ctx, "Failed to send join warning", "error", err)
	}

	if err := sleep(ctx, m.delay); err != nil {
		return
	}

	joined, err = m.gateway.IsMember(ctx, channelID, accessHash, userID)
	if err != nil {
		log.WarnContext(ctx, "Membership recheck failed", "error", err)
	}
	if joined {
		m.promote(ctx, channelID, accessHash, userID)
		return
	}

	metrics.PromotionsCompleted.WithLabelValues("failed").Inc()
	log.InfoContext(ctx, "User never joined delivery channel, promotion abandoned")
	if err := m.notifier.NotifyUser(ctx, userID, m.messages.JoinFailed); err != nil {
		log.WarnContext(ctx, "Failed to send final failure notice", "error", err)
	}
}

// promote grants ownership and announces it in the channel.
func (m *Manager) promote(ctx context.Context, channelID, accessHash string, userID int64) {
	log := m.logger.With("user_id", userID, "channel_id", channelID)

	if err := m.gateway.PromoteOwner(ctx, channelID, accessHash, userID); err != nil {
		metrics.PromotionsCompleted.WithLabelValues("failed").Inc()
		log.ErrorContext(ctx, "Failed to promote user", "error", err)
		return
	}

	metrics.PromotionsCompleted.WithLabelValues("promoted").Inc()
	log.InfoContext(ctx, "User promoted to channel owner")

	if err := m.gateway.SendChannelMessage(ctx, channelID, accessHash, m.messages.Promoted); err != nil {
		log.WarnContext(ctx, "Failed to announce promotion in channel", "error", err)
	}
}

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
