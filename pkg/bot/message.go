// Copyright 2024-2026 Aiku AI

package bot

import (
	"context"
	"fmt"
)

// Mentioner formats a mention of a user for a platform. Frame codecs may
// implement it; the RTM form <@id> is used otherwise.
type Mentioner interface {
	Mention(userID, username string) string
}

// Message is what a handler receives: the event it matched plus helpers to
// answer it.
type Message struct {
	ctx    context.Context
	client *Client
	event  Event
	text   string
}

func newMessage(ctx context.Context, client *Client, evt Event, text string) *Message {
	return &Message{ctx: ctx, client: client, event: evt, text: text}
}

// Context carries the handler's logger, see zerolog.Ctx.
func (m *Message) Context() context.Context {
	return m.ctx
}

// Client returns the connection the message came from.
func (m *Message) Client() *Client {
	return m.client
}

// Body returns the event as received.
func (m *Message) Body() Event {
	return m.event
}

// Text returns the text the handler's pattern was matched against; for
// addressed messages the leading mention is removed.
func (m *Message) Text() string {
	return m.text
}

// Channel returns the id of the channel the message was posted in.
func (m *Message) Channel() string {
	return m.event.Channel
}

// ChannelInfo returns the directory entry for the message's channel.
func (m *Message) ChannelInfo() (Channel, bool) {
	if dir := m.client.Directory(); dir != nil {
		return dir.Channel(m.event.Channel)
	}
	return Channel{}, false
}

// User returns the directory entry for the sender.
func (m *Message) User() (User, bool) {
	if dir := m.client.Directory(); dir != nil {
		return dir.User(m.event.User)
	}
	return User{}, false
}

// ThreadTS is the timestamp replies in the message's thread use.
func (m *Message) ThreadTS() string {
	if m.event.ThreadTS != "" {
		return m.event.ThreadTS
	}
	return m.event.TS
}

func (m *Message) inThread() bool {
	return m.event.ThreadTS != ""
}

func (m *Message) genReply(text string) string {
	if m.event.IsDirect() {
		return text
	}
	username := m.event.Username
	if u, ok := m.User(); ok {
		username = u.Name
	}
	if mf, ok := m.client.codec.(Mentioner); ok {
		return fmt.Sprintf("%s: %s", mf.Mention(m.event.User, username), text)
	}
	return fmt.Sprintf("<@%s>: %s", m.event.User, text)
}

// Reply answers the sender over the socket. Inside a thread the reply stays
// in the thread; elsewhere the sender is mentioned in channels.
func (m *Message) Reply(text string) error {
	if m.inThread() {
		return m.send(text, nil, m.ThreadTS())
	}
	return m.send(m.genReply(text), nil, "")
}

// ReplyInThread answers the sender in the message's thread.
func (m *Message) ReplyInThread(text string) error {
	return m.send(text, nil, m.ThreadTS())
}

// Send posts text to the message's channel over the socket.
func (m *Message) Send(text string) error {
	return m.send(text, nil, "")
}

// SendInThread posts text to the message's thread over the socket.
func (m *Message) SendInThread(text string) error {
	return m.send(text, nil, m.ThreadTS())
}

func (m *Message) send(text string, attachments []map[string]any, threadTS string) error {
	return m.client.SendMessage(m.ctx, OutboundMessage{
		Channel:     m.event.Channel,
		Text:        text,
		Attachments: attachments,
		ThreadTS:    threadTS,
	})
}

// WebAPIOptions tunes replies sent through the web API.
type WebAPIOptions struct {
	Attachments []map[string]any
	InThread    bool
	// NotAsUser posts under the configured custom identity.
	NotAsUser bool
}

// ReplyWebAPI answers the sender through the web API.
func (m *Message) ReplyWebAPI(text string, opts WebAPIOptions) error {
	if opts.InThread || m.inThread() {
		opts.InThread = true
		return m.SendWebAPI(text, opts)
	}
	return m.SendWebAPI(m.genReply(text), opts)
}

// SendWebAPI posts text to the message's channel through the web API.
func (m *Message) SendWebAPI(text string, opts WebAPIOptions) error {
	params := PostMessageParams{
		Channel:     m.event.Channel,
		Text:        text,
		Attachments: opts.Attachments,
		AsUser:      !opts.NotAsUser,
	}
	if opts.InThread {
		params.ThreadTS = m.ThreadTS()
	}
	return m.client.PostMessage(m.ctx, params)
}

// React adds an emoji reaction to the message.
func (m *Message) React(emoji string) error {
	return m.client.React(m.ctx, emoji, m.event.Channel, m.event.TS)
}

// UploadFile uploads a file from disk to the message's channel.
func (m *Message) UploadFile(path, comment string) error {
	return m.client.UploadFile(m.ctx, UploadParams{
		Channel: m.event.Channel,
		Path:    path,
		Comment: comment,
	})
}

// UploadContent uploads in-memory content as a file to the message's channel.
func (m *Message) UploadContent(filename string, content []byte, comment string) error {
	return m.client.UploadFile(m.ctx, UploadParams{
		Channel:  m.event.Channel,
		Filename: filename,
		Content:  content,
		Comment:  comment,
	})
}
