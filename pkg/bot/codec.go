// Copyright 2024-2026 Aiku AI

package bot

import (
	"bytes"
	"encoding/json"

	"github.com/rs/zerolog"
)

// FrameCodec translates between socket frames and Events.
type FrameCodec interface {
	// Decode parses one frame line. It returns (nil, nil) for frames that
	// carry no event, such as acknowledgements of sent messages.
	Decode(line []byte) (*Event, error)
	EncodePing(id int64) ([]byte, error)
	// EncodeMessage returns ErrSocketSendUnsupported when the socket cannot
	// carry chat messages.
	EncodeMessage(id int64, msg OutboundMessage) ([]byte, error)
}

// OutboundMessage is a chat message sent over the socket.
type OutboundMessage struct {
	Channel     string
	Text        string
	Attachments []map[string]any
	ThreadTS    string
}

// RTMCodec implements the Slack RTM frame format.
type RTMCodec struct{}

var _ FrameCodec = RTMCodec{}

func (RTMCodec) Decode(line []byte) (*Event, error) {
	var frame rtmFrame
	if err := json.Unmarshal(line, &frame); err != nil {
		return nil, err
	}
	if frame.Type == "" {
		return nil, nil
	}
	evt := &Event{
		Type:        frame.Type,
		Subtype:     frame.Subtype,
		Channel:     frame.Channel,
		User:        frame.User,
		Username:    frame.Username,
		BotID:       frame.BotID,
		Text:        frame.Text,
		TS:          frame.TS,
		ThreadTS:    frame.ThreadTS,
		ChannelType: frame.ChannelType,
		Raw:         bytes.Clone(line),
	}
	if frame.BotProfile != nil {
		evt.BotName = frame.BotProfile.Name
	}
	return evt, nil
}

type rtmPingFrame struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

func (RTMCodec) EncodePing(id int64) ([]byte, error) {
	return json.Marshal(rtmPingFrame{ID: id, Type: "ping"})
}

type rtmMessageFrame struct {
	ID          int64            `json:"id"`
	Type        string           `json:"type"`
	Channel     string           `json:"channel"`
	Text        string           `json:"text"`
	Attachments []map[string]any `json:"attachments,omitempty"`
	ThreadTS    string           `json:"thread_ts,omitempty"`
	UnfurlLinks bool             `json:"unfurl_links"`
	UnfurlMedia bool             `json:"unfurl_media"`
}

func (RTMCodec) EncodeMessage(id int64, msg OutboundMessage) ([]byte, error) {
	return json.Marshal(rtmMessageFrame{
		ID:          id,
		Type:        EventMessage,
		Channel:     msg.Channel,
		Text:        msg.Text,
		Attachments: msg.Attachments,
		ThreadTS:    msg.ThreadTS,
	})
}

// decodeFrames splits every frame on newlines and decodes each non-blank line
// independently. Lines that fail to parse are logged and skipped.
func decodeFrames(codec FrameCodec, frames [][]byte, log *zerolog.Logger) []Event {
	var events []Event
	for _, frame := range frames {
		for _, line := range bytes.Split(frame, []byte{'\n'}) {
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			evt, err := codec.Decode(line)
			if err != nil {
				log.Warn().Err(&ParseError{Line: line, Err: err}).Msg("Skipping malformed frame")
				continue
			}
			if evt == nil {
				continue
			}
			events = append(events, *evt)
		}
	}
	return events
}
