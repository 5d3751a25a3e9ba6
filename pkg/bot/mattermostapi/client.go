// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package mattermostapi implements bot.WebAPI and bot.FrameCodec for
// Mattermost servers.
package mattermostapi

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mattermost/mattermost/server/public/model"
	"github.com/rs/zerolog"

	"github.com/aiku/rtmbot/pkg/bot"
)

const usersPerPage = 200

// Client is a Mattermost account used as a bot.
type Client struct {
	client    *model.Client4
	serverURL string
	log       zerolog.Logger

	// userID is learned during Handshake.
	userID atomic.Value
}

var (
	_ bot.WebAPI        = (*Client)(nil)
	_ bot.CodecProvider = (*Client)(nil)
)

// Options configures a Client.
type Options struct {
	ServerURL string
	// Token is a personal access token or bot token.
	Token   string
	Timeout time.Duration
}

func New(opts Options, log zerolog.Logger) *Client {
	serverURL := strings.TrimSuffix(opts.ServerURL, "/")
	client := model.NewAPIv4Client(serverURL)
	client.SetToken(opts.Token)
	if opts.Timeout > 0 {
		client.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		client:    client,
		serverURL: serverURL,
		log:       log.With().Str("component", "mm_client").Logger(),
	}
}

// FrameCodec returns the codec for the Mattermost websocket protocol.
func (m *Client) FrameCodec() bot.FrameCodec {
	return Codec{}
}

// Handshake verifies the token and returns the websocket URL. The team name
// stands in for the workspace domain.
func (m *Client) Handshake(ctx context.Context) (*bot.Handshake, error) {
	me, _, err := m.client.GetMe(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to verify Mattermost session: %w", err)
	}
	m.userID.Store(me.Id)
	m.log.Info().Str("user_id", me.Id).Str("username", me.Username).Msg("Authenticated")

	var domain string
	teams, _, err := m.client.GetTeamsForUser(ctx, me.Id, "")
	if err != nil {
		return nil, fmt.Errorf("failed to get teams: %w", err)
	}
	if len(teams) > 0 {
		domain = teams[0].Name
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+m.client.AuthToken)
	return &bot.Handshake{
		Domain:  domain,
		BotID:   me.Id,
		BotName: me.Username,
		URL:     httpToWS(m.serverURL) + "/api/v4/websocket",
		Header:  header,
	}, nil
}

// httpToWS converts an HTTP(S) URL to a WS(S) URL.
func httpToWS(url string) string {
	if strings.HasPrefix(url, "https://") {
		return "wss://" + strings.TrimPrefix(url, "https://")
	}
	if strings.HasPrefix(url, "http://") {
		return "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url
}

// self returns the bot's own user id, or "" before the first handshake.
func (m *Client) self() string {
	id, _ := m.userID.Load().(string)
	return id
}

func (m *Client) ListUsers(ctx context.Context) ([]bot.User, error) {
	var users []bot.User
	for page := 0; ; page++ {
		batch, _, err := m.client.GetUsers(ctx, page, usersPerPage, "")
		if err != nil {
			return nil, fmt.Errorf("failed to get users page %d: %w", page, err)
		}
		for _, u := range batch {
			users = append(users, bot.User{
				ID:       u.Id,
				Name:     u.Username,
				RealName: strings.TrimSpace(u.FirstName + " " + u.LastName),
				IsBot:    u.IsBot,
				Deleted:  u.DeleteAt > 0,
			})
		}
		if len(batch) < usersPerPage {
			return users, nil
		}
	}
}

// ListChannels returns every channel the bot belongs to across teams,
// including direct and group messages. Deleted channels are skipped.
func (m *Client) ListChannels(ctx context.Context) ([]bot.Channel, error) {
	self := m.self()
	if self == "" {
		return nil, fmt.Errorf("list channels before handshake")
	}
	channels, _, err := m.client.GetChannelsForUserWithLastDeleteAt(ctx, self, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user channels: %w", err)
	}
	out := make([]bot.Channel, 0, len(channels))
	for _, ch := range channels {
		if ch.DeleteAt > 0 {
			continue
		}
		out = append(out, convertChannel(ch, self))
	}
	return out, nil
}

func convertChannel(ch *model.Channel, self string) bot.Channel {
	switch ch.Type {
	case model.ChannelTypeDirect:
		return bot.Channel{ID: ch.Id, IsIM: true, User: otherDMUser(ch.Name, self)}
	case model.ChannelTypeGroup:
		return bot.Channel{ID: ch.Id, Name: ch.DisplayName, IsPrivate: true}
	default:
		return bot.Channel{ID: ch.Id, Name: ch.Name, IsPrivate: ch.Type == model.ChannelTypePrivate}
	}
}

// otherDMUser extracts the other party from a direct channel name, which is
// the two member ids joined by a double underscore.
func otherDMUser(name, self string) string {
	a, b, ok := strings.Cut(name, "__")
	if !ok {
		return ""
	}
	if a == self {
		return b
	}
	return a
}

func (m *Client) PostMessage(ctx context.Context, params bot.PostMessageParams) error {
	post := &model.Post{
		ChannelId: params.Channel,
		Message:   params.Text,
		RootId:    params.ThreadTS,
	}
	if len(params.Attachments) > 0 {
		post.AddProp("attachments", params.Attachments)
	}
	if !params.AsUser {
		if params.Username != "" {
			post.AddProp("override_username", params.Username)
		}
		if params.IconURL != "" {
			post.AddProp("override_icon_url", params.IconURL)
		}
	}
	if _, _, err := m.client.CreatePost(ctx, post); err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

// UploadFile uploads the file and posts it with the comment as message.
func (m *Client) UploadFile(ctx context.Context, params bot.UploadParams) error {
	data := params.Content
	if params.Path != "" {
		var err error
		data, err = os.ReadFile(params.Path)
		if err != nil {
			return fmt.Errorf("failed to read upload: %w", err)
		}
	}
	filename := params.Filename
	if filename == "" {
		filename = "upload"
	}
	resp, _, err := m.client.UploadFile(ctx, data, params.Channel, filename)
	if err != nil {
		return fmt.Errorf("failed to upload to Mattermost: %w", err)
	}
	if len(resp.FileInfos) == 0 {
		return fmt.Errorf("no file info returned from upload")
	}
	_, _, err = m.client.CreatePost(ctx, &model.Post{
		ChannelId: params.Channel,
		Message:   params.Comment,
		RootId:    params.ThreadTS,
		FileIds:   model.StringArray{resp.FileInfos[0].Id},
	})
	if err != nil {
		return fmt.Errorf("failed to create file post: %w", err)
	}
	return nil
}

// AddReaction reacts to a post. Mattermost identifies posts by id, so the
// timestamp argument carries the post id.
func (m *Client) AddReaction(ctx context.Context, emoji, _, postID string) error {
	_, _, err := m.client.SaveReaction(ctx, &model.Reaction{
		UserId:    m.self(),
		PostId:    postID,
		EmojiName: emojiName(emoji),
	})
	if err != nil {
		return fmt.Errorf("failed to save reaction: %w", err)
	}
	return nil
}

// emojiName strips the colons of a :shortcode:.
func emojiName(emoji string) string {
	if len(emoji) > 2 && emoji[0] == ':' && emoji[len(emoji)-1] == ':' {
		return emoji[1 : len(emoji)-1]
	}
	return emoji
}

func (m *Client) OpenDirectMessage(ctx context.Context, userID string) (string, error) {
	ch, _, err := m.client.CreateDirectChannel(ctx, m.self(), userID)
	if err != nil {
		return "", fmt.Errorf("failed to create direct channel: %w", err)
	}
	return ch.Id, nil
}
