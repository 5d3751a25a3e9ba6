// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ClientOptions configures a Client.
type ClientOptions struct {
	ReconnectDelay time.Duration
	BotIcon        string
	BotEmoji       string
	// LookupEnv reads proxy settings. Defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Client owns the connection to the chat platform: the handshake, the socket,
// the directory snapshot and reconnection.
type Client struct {
	api   WebAPI
	codec FrameCodec
	opts  ClientOptions
	log   zerolog.Logger

	state   atomic.Int32
	session atomic.Pointer[Session]
	frameID atomic.Int64

	resolver *Resolver
}

// NewClient creates a disconnected client. The frame codec comes from the
// backend when it implements CodecProvider.
func NewClient(api WebAPI, opts ClientOptions, log zerolog.Logger) *Client {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}
	var codec FrameCodec = RTMCodec{}
	if cp, ok := api.(CodecProvider); ok {
		codec = cp.FrameCodec()
	}
	c := &Client{
		api:   api,
		codec: codec,
		opts:  opts,
		log:   log.With().Str("component", "rtm_client").Logger(),
	}
	c.resolver = NewResolver(c.Directory, api, c.log)
	return c
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

func (c *Client) setState(s ConnectionState) {
	prev := ConnectionState(c.state.Swap(int32(s)))
	if prev != s {
		c.log.Debug().Stringer("from", prev).Stringer("to", s).Msg("Connection state changed")
	}
}

// Session returns the current session, or nil before the first connect.
func (c *Client) Session() *Session {
	return c.session.Load()
}

// Directory returns the current directory snapshot, or nil before the first connect.
func (c *Client) Directory() *Directory {
	if sess := c.session.Load(); sess != nil {
		return sess.Directory
	}
	return nil
}

// Connect performs the handshake, opens the socket and loads the directory.
// The new session is published only once all of that succeeded.
func (c *Client) Connect(ctx context.Context) error {
	if c.State() == StateDisconnected {
		c.setState(StateConnecting)
	}

	hs, err := c.api.Handshake(ctx)
	if err != nil {
		return fmt.Errorf("failed to perform handshake: %w", err)
	}

	proxy, err := readProxySettings(c.opts.LookupEnv)
	if err != nil {
		return err
	}
	sock, err := dialSocket(ctx, dialOptions{
		URL:    hs.URL,
		Header: hs.Header,
		Proxy:  proxy.ProxyFunc(),
	}, c.log.With().Str("component", "rtm_socket").Logger())
	if err != nil {
		return err
	}

	c.log.Debug().Msg("Getting users")
	users, err := c.api.ListUsers(ctx)
	if err != nil {
		sock.Close()
		return fmt.Errorf("failed to list users: %w", err)
	}
	c.log.Debug().Msg("Getting channels")
	channels, err := c.api.ListChannels(ctx)
	if err != nil {
		sock.Close()
		return fmt.Errorf("failed to list channels: %w", err)
	}

	sess := &Session{
		Domain:      hs.Domain,
		BotID:       hs.BotID,
		BotName:     hs.BotName,
		Directory:   NewDirectory(users, channels, &c.log),
		ConnectedAt: time.Now(),
		sock:        sock,
	}
	if old := c.session.Swap(sess); old != nil {
		old.sock.Close()
	}
	c.setState(StateConnected)

	c.log.Info().
		Str("domain", hs.Domain).
		Str("bot_id", hs.BotID).
		Str("bot_name", hs.BotName).
		Int("users", len(users)).
		Int("channels", len(channels)).
		Msg("Connected")
	return nil
}

// Reconnect closes the current socket and retries Connect with a fixed delay
// until it succeeds. It only gives up when ctx is cancelled. The previous
// directory stays readable until the new session replaces it.
func (c *Client) Reconnect(ctx context.Context) error {
	c.setState(StateReconnecting)
	if old := c.session.Load(); old != nil {
		old.sock.Close()
	}
	for attempt := 1; ; attempt++ {
		err := c.Connect(ctx)
		if err == nil {
			c.log.Warn().Int("attempt", attempt).Msg("Reconnected to websocket")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Error().Err(err).
			Int("attempt", attempt).
			Dur("retry_in", c.opts.ReconnectDelay).
			Msg("Failed to reconnect")

		timer := time.NewTimer(c.opts.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Disconnect closes the socket. The client can not be used afterwards.
func (c *Client) Disconnect() {
	if sess := c.session.Load(); sess != nil {
		sess.sock.Close()
	}
	c.setState(StateDisconnected)
}

// Ready is signalled when the current socket has frames to read.
func (c *Client) Ready() <-chan struct{} {
	if sess := c.session.Load(); sess != nil {
		return sess.sock.Ready()
	}
	return nil
}

// ReadEvents returns the events received since the previous call without
// blocking. Transport failures are handled here by reconnecting; they are
// never returned to the caller.
func (c *Client) ReadEvents(ctx context.Context) []Event {
	sess := c.session.Load()
	if sess == nil {
		return nil
	}
	frames, err := sess.sock.Read()
	if err != nil {
		var terr *TransportError
		if errors.As(err, &terr) && terr.Closed {
			c.log.Warn().Err(err).Msg("Lost websocket connection, reconnecting")
		} else {
			c.log.Warn().Err(err).Msg("Websocket exception, reconnecting")
		}
		if err := c.Reconnect(ctx); err != nil {
			c.log.Debug().Err(err).Msg("Reconnect aborted")
		}
		return nil
	}
	if len(frames) == 0 {
		return nil
	}

	events := decodeFrames(c.codec, frames, &c.log)
	for _, evt := range events {
		if evt.Type == EventGoodbye {
			c.log.Info().Msg("Server sent goodbye, reconnecting")
			if err := c.Reconnect(ctx); err != nil {
				c.log.Debug().Err(err).Msg("Reconnect aborted")
			}
			break
		}
	}
	return events
}

func (c *Client) writeFrame(encode func(id int64) ([]byte, error)) error {
	sess := c.session.Load()
	if sess == nil {
		return ErrNotConnected
	}
	data, err := encode(c.frameID.Add(1))
	if err != nil {
		return err
	}
	return sess.sock.WriteFrame(data)
}

// Ping sends a keep-alive frame.
func (c *Client) Ping() error {
	return c.writeFrame(c.codec.EncodePing)
}

// KeepAlive pings the server every interval until ctx is cancelled, whatever
// the control loop is doing.
func (c *Client) KeepAlive(ctx context.Context, interval time.Duration) {
	c.log.Info().Dur("interval", interval).Msg("Keep-alive started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Ping(); err != nil {
				c.log.Warn().Err(err).Msg("Failed to send keep-alive ping")
			}
		}
	}
}

// Resolve turns a channel or user reference into a channel id.
func (c *Client) Resolve(ctx context.Context, ref string) (string, error) {
	return c.resolver.Resolve(ctx, ref)
}

// SendMessage sends a message over the socket. Backends whose socket does not
// carry messages get it through the web API instead.
func (c *Client) SendMessage(ctx context.Context, msg OutboundMessage) error {
	channelID, err := c.Resolve(ctx, msg.Channel)
	if err != nil {
		return err
	}
	msg.Channel = channelID
	err = c.writeFrame(func(id int64) ([]byte, error) {
		return c.codec.EncodeMessage(id, msg)
	})
	if errors.Is(err, ErrSocketSendUnsupported) {
		return c.api.PostMessage(ctx, PostMessageParams{
			Channel:     channelID,
			Text:        msg.Text,
			Attachments: msg.Attachments,
			ThreadTS:    msg.ThreadTS,
			AsUser:      true,
		})
	}
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// PostMessage sends a message through the web API using the bot's identity.
func (c *Client) PostMessage(ctx context.Context, params PostMessageParams) error {
	channelID, err := c.Resolve(ctx, params.Channel)
	if err != nil {
		return err
	}
	params.Channel = channelID
	if sess := c.session.Load(); sess != nil && params.Username == "" {
		params.Username = sess.BotName
	}
	if params.IconURL == "" {
		params.IconURL = c.opts.BotIcon
	}
	if params.IconEmoji == "" {
		params.IconEmoji = c.opts.BotEmoji
	}
	if err := c.api.PostMessage(ctx, params); err != nil {
		return fmt.Errorf("failed to post message: %w", err)
	}
	return nil
}

// UploadFile uploads a file from disk or memory to a channel reference.
func (c *Client) UploadFile(ctx context.Context, params UploadParams) error {
	channelID, err := c.Resolve(ctx, params.Channel)
	if err != nil {
		return err
	}
	params.Channel = channelID
	if params.Filename == "" && params.Path != "" {
		params.Filename = filepath.Base(params.Path)
	}
	if err := c.api.UploadFile(ctx, params); err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}
	return nil
}

// React adds an emoji reaction to a message.
func (c *Client) React(ctx context.Context, emoji, channelID, timestamp string) error {
	if err := c.api.AddReaction(ctx, emoji, channelID, timestamp); err != nil {
		return fmt.Errorf("failed to add reaction: %w", err)
	}
	return nil
}
