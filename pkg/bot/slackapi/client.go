// Copyright 2024-2026 Aiku AI

// Package slackapi implements bot.WebAPI on top of the Slack Web API.
package slackapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/aiku/rtmbot/pkg/bot"
)

const (
	// maxAttempts bounds retries of a rate-limited call.
	maxAttempts = 100
	pageSize    = 1000
)

var conversationTypes = []string{"public_channel", "private_channel", "mpim", "im"}

// Options configures a Client.
type Options struct {
	Token string
	// APIURL overrides the Web API endpoint, mostly for tests.
	APIURL  string
	Timeout time.Duration
}

// Client talks to the Slack Web API.
type Client struct {
	api *slack.Client
	log zerolog.Logger
}

var _ bot.WebAPI = (*Client)(nil)

func New(opts Options, log zerolog.Logger) *Client {
	var slackOpts []slack.Option
	if opts.APIURL != "" {
		slackOpts = append(slackOpts, slack.OptionAPIURL(opts.APIURL))
	}
	if opts.Timeout > 0 {
		slackOpts = append(slackOpts, slack.OptionHTTPClient(&http.Client{Timeout: opts.Timeout}))
	}
	return &Client{
		api: slack.New(opts.Token, slackOpts...),
		log: log.With().Str("component", "slack_api").Logger(),
	}
}

// retry runs fn until it succeeds, fails with something other than a rate
// limit, or has been rate limited maxAttempts times.
func (c *Client) retry(ctx context.Context, method string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		var rle *slack.RateLimitedError
		if !errors.As(err, &rle) {
			return err
		}
		c.log.Warn().
			Str("method", method).
			Int("attempt", attempt).
			Dur("retry_after", rle.RetryAfter).
			Msg("Rate limited")
		timer := time.NewTimer(rle.RetryAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("%s: gave up after %d rate-limited attempts: %w", method, maxAttempts, err)
}

func (c *Client) Handshake(ctx context.Context) (*bot.Handshake, error) {
	var info *slack.Info
	var wsURL string
	err := c.retry(ctx, "rtm.connect", func() (err error) {
		info, wsURL, err = c.api.ConnectRTMContext(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rtm: %w", err)
	}
	hs := &bot.Handshake{URL: wsURL}
	if info.User != nil {
		hs.BotID = info.User.ID
		hs.BotName = info.User.Name
	}
	if info.Team != nil {
		hs.Domain = info.Team.Domain
	}
	return hs, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]bot.User, error) {
	var members []slack.User
	err := c.retry(ctx, "users.list", func() (err error) {
		members, err = c.api.GetUsersContext(ctx, slack.GetUsersOptionLimit(pageSize))
		return err
	})
	if err != nil {
		return nil, err
	}
	users := make([]bot.User, 0, len(members))
	for _, m := range members {
		users = append(users, bot.User{
			ID:       m.ID,
			Name:     m.Name,
			RealName: m.RealName,
			IsBot:    m.IsBot,
			Deleted:  m.Deleted,
		})
	}
	return users, nil
}

func (c *Client) ListChannels(ctx context.Context) ([]bot.Channel, error) {
	var out []bot.Channel
	params := &slack.GetConversationsParameters{
		ExcludeArchived: true,
		Limit:           pageSize,
		Types:           conversationTypes,
	}
	for {
		var page []slack.Channel
		var next string
		err := c.retry(ctx, "conversations.list", func() (err error) {
			page, next, err = c.api.GetConversationsContext(ctx, params)
			return err
		})
		if err != nil {
			return nil, err
		}
		for _, ch := range page {
			out = append(out, bot.Channel{
				ID:        ch.ID,
				Name:      ch.Name,
				User:      ch.User,
				IsIM:      ch.IsIM,
				IsPrivate: ch.IsPrivate,
			})
		}
		if next == "" {
			return out, nil
		}
		params.Cursor = next
	}
}

func (c *Client) PostMessage(ctx context.Context, params bot.PostMessageParams) error {
	opts := []slack.MsgOption{
		slack.MsgOptionText(params.Text, false),
		slack.MsgOptionAsUser(params.AsUser),
	}
	if len(params.Attachments) > 0 {
		attachments, err := convertAttachments(params.Attachments)
		if err != nil {
			return err
		}
		opts = append(opts, slack.MsgOptionAttachments(attachments...))
	}
	if params.ThreadTS != "" {
		opts = append(opts, slack.MsgOptionTS(params.ThreadTS))
	}
	if !params.AsUser {
		if params.Username != "" {
			opts = append(opts, slack.MsgOptionUsername(params.Username))
		}
		if params.IconURL != "" {
			opts = append(opts, slack.MsgOptionIconURL(params.IconURL))
		}
		if params.IconEmoji != "" {
			opts = append(opts, slack.MsgOptionIconEmoji(params.IconEmoji))
		}
	}
	return c.retry(ctx, "chat.postMessage", func() error {
		_, _, err := c.api.PostMessageContext(ctx, params.Channel, opts...)
		return err
	})
}

// convertAttachments maps loosely typed attachments onto slack.Attachment
// through their JSON form.
func convertAttachments(in []map[string]any) ([]slack.Attachment, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to encode attachments: %w", err)
	}
	var out []slack.Attachment
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode attachments: %w", err)
	}
	return out, nil
}

func (c *Client) UploadFile(ctx context.Context, params bot.UploadParams) error {
	upload := slack.UploadFileV2Parameters{
		Filename:        params.Filename,
		Title:           params.Filename,
		InitialComment:  params.Comment,
		Channel:         params.Channel,
		ThreadTimestamp: params.ThreadTS,
	}
	if params.Path != "" {
		st, err := os.Stat(params.Path)
		if err != nil {
			return fmt.Errorf("failed to stat upload: %w", err)
		}
		upload.File = params.Path
		upload.FileSize = int(st.Size())
	} else {
		upload.FileSize = len(params.Content)
	}
	return c.retry(ctx, "files.upload", func() error {
		if params.Path == "" {
			upload.Reader = bytes.NewReader(params.Content)
		}
		_, err := c.api.UploadFileV2Context(ctx, upload)
		return err
	})
}

func (c *Client) AddReaction(ctx context.Context, emoji, channelID, timestamp string) error {
	return c.retry(ctx, "reactions.add", func() error {
		return c.api.AddReactionContext(ctx, emoji, slack.NewRefToMessage(channelID, timestamp))
	})
}

func (c *Client) OpenDirectMessage(ctx context.Context, userID string) (string, error) {
	var ch *slack.Channel
	err := c.retry(ctx, "conversations.open", func() (err error) {
		ch, _, _, err = c.api.OpenConversationContext(ctx, &slack.OpenConversationParameters{
			Users:    []string{userID},
			ReturnIM: true,
		})
		return err
	})
	if err != nil {
		return "", err
	}
	if ch == nil {
		return "", fmt.Errorf("conversations.open returned no channel for %s", userID)
	}
	return ch.ID, nil
}
