// Package userbot drives a regular Telegram user account over MTProto.
// The Bot API cannot buy star gifts or create channels, so purchases and
// channel management go through this account while the bot handles the UI.
package userbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/tg"
)

// Config holds the MTProto account credentials. The session file must
// already contain an authorized session; there is no interactive login.
type Config struct {
	APIID       int
	APIHash     string
	SessionFile string
}

// Client is the MTProto gateway used for purchases, channel management,
// and channel messages. Methods block until Run has brought the
// connection up.
type Client struct {
	tg     *telegram.Client
	api    *tg.Client
	sender *message.Sender
	logger *slog.Logger

	ready chan struct{}
}

// NewClient creates an MTProto client from stored session credentials.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	tgClient := telegram.NewClient(cfg.APIID, cfg.APIHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: cfg.SessionFile},
	})
	return &Client{
		tg:     tgClient,
		logger: logger.With("component", "userbot"),
		ready:  make(chan struct{}),
	}
}

// Run connects the MTProto client and keeps it alive until ctx is
// cancelled. It fails fast when the stored session is not authorized.
func (c *Client) Run(ctx context.Context) error {
	return c.tg.Run(ctx, func(ctx context.Context) error {
		status, err := c.tg.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to check userbot auth status: %w", err)
		}
		if !status.Authorized {
			return errors.New("userbot session is not authorized, run a login tool first")
		}

		c.api = c.tg.API()
		c.sender = message.NewSender(c.api)
		close(c.ready)

		c.logger.InfoContext(ctx, "Userbot connected", "user_id", status.User.GetID())
		<-ctx.Done()
		return ctx.Err()
	})
}

// waitReady blocks until the connection is up or ctx is cancelled.
func (c *Client) waitReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// parseChannelRef converts the stored channel credentials into the
// numeric ID and access hash MTProto wants. Channel IDs are stored in
// the "-<id>" form users see; the leading minus is stripped here.
func parseChannelRef(channelID, accessHash string) (int64, int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(channelID, "-"), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid channel id %q: %w", channelID, err)
	}
	hash, err := strconv.ParseInt(accessHash, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid channel access hash: %w", err)
	}
	return id, hash, nil
}

// inputPeer builds the channel peer from stored credentials.
func inputPeer(channelID, accessHash string) (*tg.InputPeerChannel, error) {
	id, hash, err := parseChannelRef(channelID, accessHash)
	if err != nil {
		return nil, err
	}
	return &tg.InputPeerChannel{ChannelID: id, AccessHash: hash}, nil
}

// inputChannel builds the channel reference from stored credentials.
func inputChannel(channelID, accessHash string) (*tg.InputChannel, error) {
	id, hash, err := parseChannelRef(channelID, accessHash)
	if err != nil {
		return nil, err
	}
	return &tg.InputChannel{ChannelID: id, AccessHash: hash}, nil
}

// SendChannelMessage posts a plain text message into the channel.
func (c *Client) SendChannelMessage(ctx context.Context, channelID, accessHash, text string) error {
	if err := c.waitReady(ctx); err != nil {
		return err
	}
	peer, err := inputPeer(channelID, accessHash)
	if err != nil {
		return err
	}
	if _, err := c.sender.To(peer).Text(ctx, text); err != nil {
		return fmt.Errorf("failed to send channel message: %w", err)
	}
	return nil
}
