// Copyright 2024-2026 Aiku AI

package bot

import "encoding/json"

// Event types the dispatcher and connection manager care about.
const (
	EventMessage = "message"
	EventHello   = "hello"
	EventGoodbye = "goodbye"

	SubtypeMessageChanged = "message_changed"
)

// Event is one parsed inbound frame. It is passed around by value and never
// modified after decoding.
type Event struct {
	Type        string
	Subtype     string
	Channel     string
	User        string
	Username    string
	BotID       string
	BotName     string
	Text        string
	TS          string
	ThreadTS    string
	ChannelType string
	Raw         json.RawMessage
}

// IsDirect reports whether the event happened in a one-to-one conversation,
// using the channel type hint when the frame carries one and the channel id
// prefix otherwise.
func (e Event) IsDirect() bool {
	switch e.ChannelType {
	case "im", "D":
		return true
	case "":
		return len(e.Channel) > 0 && e.Channel[0] == 'D'
	default:
		return false
	}
}

// rtmFrame mirrors the subset of an RTM event payload this client reads.
type rtmFrame struct {
	Type        string `json:"type"`
	Subtype     string `json:"subtype"`
	Channel     string `json:"channel"`
	User        string `json:"user"`
	Username    string `json:"username"`
	BotID       string `json:"bot_id"`
	Text        string `json:"text"`
	TS          string `json:"ts"`
	ThreadTS    string `json:"thread_ts"`
	ChannelType string `json:"channel_type"`
	BotProfile  *struct {
		Name string `json:"name"`
	} `json:"bot_profile"`
}
