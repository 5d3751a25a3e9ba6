// Copyright 2024-2026 Aiku AI

package bot

import (
	"context"
	"net/http"
)

// WebAPI is the request/response side of a chat platform. Every call is
// synchronous and may be made from the control goroutine or from workers.
type WebAPI interface {
	// Handshake authenticates and returns what is needed to open the socket.
	Handshake(ctx context.Context) (*Handshake, error)
	// ListUsers returns every user visible to the bot, across all pages.
	ListUsers(ctx context.Context) ([]User, error)
	// ListChannels returns every non-archived channel, group and direct
	// message visible to the bot, across all pages, in listing order.
	ListChannels(ctx context.Context) ([]Channel, error)
	PostMessage(ctx context.Context, params PostMessageParams) error
	UploadFile(ctx context.Context, params UploadParams) error
	AddReaction(ctx context.Context, emoji, channelID, timestamp string) error
	// OpenDirectMessage opens (or returns) the direct message channel with a user.
	OpenDirectMessage(ctx context.Context, userID string) (string, error)
}

// CodecProvider is implemented by backends whose socket protocol differs from
// the default RTM frame format.
type CodecProvider interface {
	FrameCodec() FrameCodec
}

// Handshake is the session metadata returned by a successful login.
type Handshake struct {
	Domain  string
	BotID   string
	BotName string
	URL     string
	// Header is sent with the websocket upgrade request.
	Header http.Header
}

// User is a directory entry for a platform user.
type User struct {
	ID       string
	Name     string
	RealName string
	IsBot    bool
	Deleted  bool
}

// Channel is a directory entry for a channel, private group or direct message.
type Channel struct {
	ID   string
	Name string
	// User is the other party of a direct message channel.
	User      string
	IsIM      bool
	IsPrivate bool
}

// PostMessageParams describes a message sent through the web API.
type PostMessageParams struct {
	Channel     string
	Text        string
	Attachments []map[string]any
	ThreadTS    string
	// AsUser posts with the bot's own identity rather than a custom one.
	AsUser    bool
	Username  string
	IconURL   string
	IconEmoji string
}

// UploadParams describes a file upload. Exactly one of Path and Content is used;
// Path wins when both are set.
type UploadParams struct {
	Channel  string
	Filename string
	Path     string
	Content  []byte
	Comment  string
	ThreadTS string
}
