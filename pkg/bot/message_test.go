// Copyright 2024-2026 Aiku AI

package bot

import (
	"context"
	"testing"
)

type mentionCodec struct{ RTMCodec }

func (mentionCodec) Mention(_, username string) string { return "@" + username }

type mentionAPI struct{ *fakeAPI }

func (mentionAPI) FrameCodec() FrameCodec { return mentionCodec{} }

func TestGenReply(t *testing.T) {
	t.Parallel()
	c := offlineClient(newFakeAPI(""))
	mc := offlineClient(mentionAPI{newFakeAPI("")})
	tests := []struct {
		name   string
		client *Client
		evt    Event
		want   string
	}{
		{"channel", c, messageEvent("C1", "UALICE", "x"), "<@UALICE>: hi"},
		{"direct", c, messageEvent("D1", "UALICE", "x"), "hi"},
		{"platform mention", mc, messageEvent("C1", "UALICE", "x"), "@alice: hi"},
		{"unknown user falls back to username", mc, Event{Type: EventMessage, Channel: "C1", User: "UX", Username: "ghost"}, "@ghost: hi"},
	}
	for _, tt := range tests {
		msg := newMessage(context.Background(), tt.client, tt.evt, tt.evt.Text)
		if got := msg.genReply("hi"); got != tt.want {
			t.Errorf("%s: genReply = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestMessageAccessors(t *testing.T) {
	t.Parallel()
	c := offlineClient(newFakeAPI(""))
	evt := messageEvent("C1", "UALICE", "<@UBOT> hello")
	msg := newMessage(context.Background(), c, evt, "hello")

	if msg.Text() != "hello" || msg.Body().Text != evt.Text || msg.Channel() != "C1" || msg.Client() != c {
		t.Errorf("unexpected accessors for %+v", msg.Body())
	}
	if ch, ok := msg.ChannelInfo(); !ok || ch.Name != "general" {
		t.Errorf("ChannelInfo = %+v, %v", ch, ok)
	}
	if u, ok := msg.User(); !ok || u.Name != "alice" {
		t.Errorf("User = %+v, %v", u, ok)
	}
	if msg.ThreadTS() != evt.TS {
		t.Errorf("ThreadTS outside a thread = %q, want the message ts", msg.ThreadTS())
	}
	evt.ThreadTS = "1.0"
	if got := newMessage(context.Background(), c, evt, "").ThreadTS(); got != "1.0" {
		t.Errorf("ThreadTS inside a thread = %q", got)
	}
}

func TestReplyOverSocket(t *testing.T) {
	t.Parallel()
	rtm := newFakeRTM(t)
	c, conn := connectedClient(t, newFakeAPI(rtm.URL()), rtm)

	evt := messageEvent("C1", "UALICE", "hello")
	msg := newMessage(context.Background(), c, evt, "hello")
	if err := msg.Reply("hi"); err != nil {
		t.Fatal(err)
	}
	if frame := nextFrame(t, conn, EventMessage); frame["text"] != "<@UALICE>: hi" || frame["thread_ts"] != nil {
		t.Errorf("Reply frame %v", frame)
	}

	if err := msg.ReplyInThread("threaded"); err != nil {
		t.Fatal(err)
	}
	if frame := nextFrame(t, conn, EventMessage); frame["text"] != "threaded" || frame["thread_ts"] != evt.TS {
		t.Errorf("ReplyInThread frame %v", frame)
	}

	if err := msg.Send("plain"); err != nil {
		t.Fatal(err)
	}
	if frame := nextFrame(t, conn, EventMessage); frame["text"] != "plain" || frame["channel"] != "C1" {
		t.Errorf("Send frame %v", frame)
	}

	// Replies to a threaded message stay in the thread without a mention.
	evt.ThreadTS = "1.0"
	threaded := newMessage(context.Background(), c, evt, "hello")
	if err := threaded.Reply("in thread"); err != nil {
		t.Fatal(err)
	}
	if frame := nextFrame(t, conn, EventMessage); frame["text"] != "in thread" || frame["thread_ts"] != "1.0" {
		t.Errorf("threaded Reply frame %v", frame)
	}
	if err := threaded.SendInThread("also"); err != nil {
		t.Fatal(err)
	}
	if frame := nextFrame(t, conn, EventMessage); frame["thread_ts"] != "1.0" {
		t.Errorf("SendInThread frame %v", frame)
	}
}

func TestReplyWebAPI(t *testing.T) {
	t.Parallel()
	api := newFakeAPI("")
	c := offlineClient(api)
	msg := newMessage(context.Background(), c, messageEvent("C1", "UALICE", "hello"), "hello")

	if err := msg.ReplyWebAPI("hi", WebAPIOptions{}); err != nil {
		t.Fatal(err)
	}
	attachments := []map[string]any{{"fallback": "x", "text": "attached"}}
	if err := msg.ReplyWebAPI("custom", WebAPIOptions{NotAsUser: true, InThread: true, Attachments: attachments}); err != nil {
		t.Fatal(err)
	}
	if err := msg.SendWebAPI("plain", WebAPIOptions{}); err != nil {
		t.Fatal(err)
	}

	posted := api.postedMessages()
	if len(posted) != 3 {
		t.Fatalf("posted %d messages", len(posted))
	}
	if posted[0].Text != "<@UALICE>: hi" || !posted[0].AsUser || posted[0].ThreadTS != "" {
		t.Errorf("ReplyWebAPI posted %+v", posted[0])
	}
	if posted[1].Text != "custom" || posted[1].AsUser || posted[1].ThreadTS != "1700000000.000100" || len(posted[1].Attachments) != 1 {
		t.Errorf("threaded ReplyWebAPI posted %+v", posted[1])
	}
	if posted[2].Text != "plain" || posted[2].Channel != "C1" {
		t.Errorf("SendWebAPI posted %+v", posted[2])
	}
}

func TestReactAndUpload(t *testing.T) {
	t.Parallel()
	api := newFakeAPI("")
	c := offlineClient(api)
	msg := newMessage(context.Background(), c, messageEvent("C1", "UALICE", "hey!"), "hey!")

	if err := msg.React("eggplant"); err != nil {
		t.Fatal(err)
	}
	if len(api.reactions) != 1 || api.reactions[0] != (reaction{"eggplant", "C1", "1700000000.000100"}) {
		t.Errorf("reactions = %+v", api.reactions)
	}

	if err := msg.UploadContent("notes.txt", []byte("hello"), "here"); err != nil {
		t.Fatal(err)
	}
	if len(api.uploads) != 1 || api.uploads[0].Filename != "notes.txt" || string(api.uploads[0].Content) != "hello" {
		t.Errorf("uploads = %+v", api.uploads)
	}
}
