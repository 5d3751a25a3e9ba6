// Copyright 2024-2026 Aiku AI

// Package hello is a demonstration plugin exercising every kind of handler.
package hello

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiku/rtmbot/pkg/bot"
)

// TimerInterval is how often the timer handler runs.
const TimerInterval = 20 * time.Second

// Plugin greets people. It also arms a one-shot timer message with
// "start run at times test".
type Plugin struct {
	mu           sync.Mutex
	timerArmed   bool
	timerChannel string
}

var _ bot.Plugin = (*Plugin)(nil)

func New() *Plugin {
	return &Plugin{}
}

func (p *Plugin) Name() string {
	return "hello"
}

// Register adds the handlers in listing order.
func (p *Plugin) Register(r *bot.Registry) error {
	return errors.Join(
		r.RespondTo(`(?i)hello$`, "hello_reply", p.helloReply),
		r.RespondTo(`^reply_webapi$`, "hello_webapi", p.helloWebAPI),
		r.RespondTo(`^reply_webapi_not_as_user$`, "hello_webapi_not_as_user", p.helloWebAPINotAsUser),
		r.RespondTo(`hello_formatting`, "hello_reply_formatting", p.helloFormatting),
		r.ListenTo(`hello$`, "hello_send", p.helloSend),
		r.ListenTo(`hello_decorators`, "hello_decorators", p.helloDecorators),
		r.RespondTo(`hello_decorators`, "hello_decorators", p.helloDecorators),
		r.ListenTo(`hey!`, "hey", p.hey),
		r.RespondTo(`你好`, "hello_unicode_message", p.helloUnicode),
		r.ListenTo(`start a thread`, "start_thread", p.startThread),
		r.RespondTo(`start run at times test`, "start_run_at_times_test", p.armTimer),
		r.ListenTo(`start run at times test`, "start_run_at_times_test", p.armTimer),
		r.RunEvery(TimerInterval, "run_at_times", p.fireTimer),
	)
}

func (p *Plugin) helloReply(msg *bot.Message, _ []string) error {
	return msg.Reply("hello sender!")
}

func (p *Plugin) helloWebAPI(msg *bot.Message, _ []string) error {
	return msg.ReplyWebAPI("hello there!", bot.WebAPIOptions{
		Attachments: []map[string]any{{
			"fallback": "test attachment",
			"fields": []map[string]any{{
				"title": "test table field",
				"value": "test table value",
				"short": true,
			}},
		}},
	})
}

func (p *Plugin) helloWebAPINotAsUser(msg *bot.Message, _ []string) error {
	return msg.ReplyWebAPI("hi!", bot.WebAPIOptions{NotAsUser: true})
}

func (p *Plugin) helloFormatting(msg *bot.Message, _ []string) error {
	return msg.Reply("_hello_ sender!")
}

func (p *Plugin) helloSend(msg *bot.Message, _ []string) error {
	return msg.Send("hello channel!")
}

func (p *Plugin) helloDecorators(msg *bot.Message, _ []string) error {
	return msg.Send("hello!")
}

func (p *Plugin) hey(msg *bot.Message, _ []string) error {
	return msg.React("eggplant")
}

func (p *Plugin) helloUnicode(msg *bot.Message, _ []string) error {
	return msg.Reply("你好!")
}

func (p *Plugin) startThread(msg *bot.Message, _ []string) error {
	return msg.ReplyInThread("I started a thread")
}

func (p *Plugin) armTimer(msg *bot.Message, _ []string) error {
	zerolog.Ctx(msg.Context()).Info().Msg("Starting run at times test")
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timerArmed = true
	p.timerChannel = msg.Channel()
	return nil
}

// fireTimer sends one message to the channel that armed the timer, then
// disarms it.
func (p *Plugin) fireTimer(ctx context.Context, client *bot.Client) error {
	p.mu.Lock()
	armed, channel := p.timerArmed, p.timerChannel
	p.timerArmed = false
	p.mu.Unlock()
	if !armed {
		return nil
	}
	return client.SendMessage(ctx, bot.OutboundMessage{
		Channel: channel,
		Text:    "Run at times function works!",
	})
}
