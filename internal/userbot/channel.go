package userbot

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gotd/td/tg"
)

// CreateChannel creates a private broadcast channel and returns its
// stored credential pair: the "-<id>" form of the channel ID and the
// access hash as a decimal string.
func (c *Client) CreateChannel(ctx context.Context, title string) (string, string, error) {
	if err := c.waitReady(ctx); err != nil {
		return "", "", err
	}

	updates, err := c.api.ChannelsCreateChannel(ctx, &tg.ChannelsCreateChannelRequest{
		Broadcast: true,
		Title:     title,
		About:     "Gift delivery channel",
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to create channel: %w", err)
	}

	channel, err := channelFromUpdates(updates)
	if err != nil {
		return "", "", err
	}

	c.logger.InfoContext(ctx, "Channel created", "channel_id", channel.ID, "title", title)
	return fmt.Sprintf("-%d", channel.ID), strconv.FormatInt(channel.AccessHash, 10), nil
}

// channelFromUpdates digs the created channel out of the updates the
// server returned for channels.createChannel.
func channelFromUpdates(updates tg.UpdatesClass) (*tg.Channel, error) {
	var chats []tg.ChatClass
	switch u := updates.(type) {
	case *tg.Updates:
		chats = u.Chats
	case *tg.UpdatesCombined:
		chats = u.Chats
	default:
		return nil, fmt.Errorf("unexpected updates type %s from channel creation", updates.TypeName())
	}
	for _, chat := range chats {
		if ch, ok := chat.(*tg.Channel); ok {
			return ch, nil
		}
	}
	return nil, errors.New("channel creation response contained no channel")
}

// ExportInvite creates a fresh single-use invite link for the channel.
func (c *Client) ExportInvite(ctx context.Context, channelID, accessHash string) (string, error) {
	if err := c.waitReady(ctx); err != nil {
		return "", err
	}
	peer, err := inputPeer(channelID, accessHash)
	if err != nil {
		return "", err
	}

	req := &tg.MessagesExportChatInviteRequest{Peer: peer}
	req.SetUsageLimit(1)

	exported, err := c.api.MessagesExportChatInvite(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to export invite link: %w", err)
	}

	invite, ok := exported.(*tg.ChatInviteExported)
	if !ok {
		return "", fmt.Errorf("unexpected invite type %s", exported.TypeName())
	}
	return invite.Link, nil
}

// findParticipant looks the user up among the channel's recent
// participants. Returns nil when the user has not joined.
func (c *Client) findParticipant(ctx context.Context, channelID, accessHash string, userID int64) (*tg.User, error) {
	channel, err := inputChannel(channelID, accessHash)
	if err != nil {
		return nil, err
	}

	res, err := c.api.ChannelsGetParticipants(ctx, &tg.ChannelsGetParticipantsRequest{
		Channel: channel,
		Filter:  &tg.ChannelParticipantsRecent{},
		Limit:   100,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list channel participants: %w", err)
	}

	participants, ok := res.(*tg.ChannelsChannelParticipants)
	if !ok {
		return nil, fmt.Errorf("unexpected participants type %s", res.TypeName())
	}

	for _, u := range participants.Users {
		if user, ok := u.(*tg.User); ok && user.ID == userID {
			return user, nil
		}
	}
	return nil, nil
}

// IsMember reports whether the user has joined the channel.
func (c *Client) IsMember(ctx context.Context, channelID, accessHash string, userID int64) (bool, error) {
	if err := c.waitReady(ctx); err != nil {
		return false, err
	}
	user, err := c.findParticipant(ctx, channelID, accessHash, userID)
	if err != nil {
		return false, err
	}
	return user != nil, nil
}

// PromoteOwner grants the user every admin right on the channel with the
// rank "Owner". The user must already be a member; MTProto needs the
// member's access hash, which is taken from the participant listing.
func (c *Client) PromoteOwner(ctx context.Context, channelID, accessHash string, userID int64) error {
	if err := c.waitReady(ctx); err != nil {
		return err
	}

	member, err := c.findParticipant(ctx, channelID, accessHash, userID)
	if err != nil {
		return err
	}
	if member == nil {
		return fmt.Errorf("user %d is not a member of channel %s", userID, channelID)
	}

	channel, err := inputChannel(channelID, accessHash)
	if err != nil {
		return err
	}

	_, err = c.api.ChannelsEditAdmin(ctx, &tg.ChannelsEditAdminRequest{
		Channel: channel,
		UserID:  &tg.InputUser{UserID: member.ID, AccessHash: member.AccessHash},
		AdminRights: tg.ChatAdminRights{
			ChangeInfo:     true,
			PostMessages:   true,
			EditMessages:   true,
			DeleteMessages: true,
			BanUsers:       true,
			InviteUsers:    true,
			PinMessages:    true,
			AddAdmins:      true,
			ManageCall:     true,
			Other:          true,
		},
		Rank: "Owner",
	})
	if err != nil {
		return fmt.Errorf("failed to promote user %d on channel %s: %w", userID, channelID, err)
	}

	c.logger.InfoContext(ctx, "User promoted on channel", "user_id", userID, "channel_id", channelID)
	return nil
}
