// Copyright 2024-2026 Aiku AI

package mattermostapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mattermost/mattermost/server/public/model"

	"github.com/aiku/rtmbot/pkg/bot"
)

// Codec translates Mattermost websocket events into bot events. The
// Mattermost socket only carries notifications and a few actions, so chat
// messages are sent through the REST API instead.
type Codec struct{}

var (
	_ bot.FrameCodec = Codec{}
	_ bot.Mentioner  = Codec{}
)

func (Codec) Decode(line []byte) (*bot.Event, error) {
	evt, err := model.WebSocketEventFromJSON(bytes.NewReader(line))
	if err != nil {
		return nil, err
	}
	raw := bytes.Clone(line)
	switch evt.EventType() {
	case "":
		// Replies to our own requests carry no event.
		return nil, nil
	case model.WebsocketEventHello:
		return &bot.Event{Type: bot.EventHello, Raw: raw}, nil
	case model.WebsocketEventPosted:
		return decodePost(evt, raw, "")
	case model.WebsocketEventPostEdited:
		return decodePost(evt, raw, bot.SubtypeMessageChanged)
	default:
		return &bot.Event{Type: string(evt.EventType()), Raw: raw}, nil
	}
}

// decodePost turns a posted or post_edited event into a message event.
// System posts such as join and leave notices are dropped.
func decodePost(evt *model.WebSocketEvent, raw json.RawMessage, subtype string) (*bot.Event, error) {
	data := evt.GetData()
	postJSON, ok := data["post"].(string)
	if !ok {
		return nil, fmt.Errorf("%s event missing post data", evt.EventType())
	}
	var post model.Post
	if err := json.Unmarshal([]byte(postJSON), &post); err != nil {
		return nil, fmt.Errorf("failed to unmarshal post: %w", err)
	}
	if post.Type != "" && post.Type != model.PostTypeDefault {
		return nil, nil
	}

	senderName, _ := data["sender_name"].(string)
	channelType, _ := data["channel_type"].(string)
	return &bot.Event{
		Type:        bot.EventMessage,
		Subtype:     subtype,
		Channel:     post.ChannelId,
		User:        post.UserId,
		Username:    strings.TrimPrefix(senderName, "@"),
		Text:        post.Message,
		TS:          post.Id,
		ThreadTS:    post.RootId,
		ChannelType: channelType,
		Raw:         raw,
	}, nil
}

func (Codec) EncodePing(id int64) ([]byte, error) {
	return json.Marshal(model.WebSocketRequest{Seq: id, Action: "ping"})
}

func (Codec) EncodeMessage(int64, bot.OutboundMessage) ([]byte, error) {
	return nil, bot.ErrSocketSendUnsupported
}

// Mention formats an @-mention, which Mattermost resolves by username.
func (Codec) Mention(userID, username string) string {
	if username == "" {
		return "@" + userID
	}
	return "@" + username
}
