// Copyright 2024-2026 Aiku AI

package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aiku/rtmbot/pkg/bot/workerpool"
)

// platformBotName is the platform's own notification bot, never answered.
const platformBotName = "slackbot"

// Submitter accepts jobs without blocking.
type Submitter interface {
	Submit(job workerpool.Job) bool
}

// DispatchTask pairs one matched registration with one event.
type DispatchTask struct {
	id           string
	Event        Event
	Text         string
	Registration *Registration
	Groups       []string

	client   *Client
	errorsTo string
	log      zerolog.Logger
}

var (
	_ workerpool.Job             = (*DispatchTask)(nil)
	_ workerpool.FailureReporter = (*DispatchTask)(nil)
)

func (t *DispatchTask) ID() string {
	return t.id
}

// Run invokes the handler. The handler's context carries a logger tagged with
// the task id and handler name.
func (t *DispatchTask) Run(ctx context.Context) error {
	log := t.log.With().
		Str("task_id", t.id).
		Str("handler", t.Registration.Name).
		Str("channel_id", t.Event.Channel).
		Logger()
	ctx = log.WithContext(ctx)
	log.Debug().Stringer("category", t.Registration.Category).Msg("Running handler")
	return t.Registration.Handler(newMessage(ctx, t.client, t.Event, t.Text), t.Groups)
}

// OnFailure tells the channel that the handler broke. The error details go
// to the errors channel when one is configured, to the source channel otherwise.
func (t *DispatchTask) OnFailure(ctx context.Context, err error) {
	reply := fmt.Sprintf("[%s] I had a problem handling %q\n", t.Registration.Name, t.Text)
	details := fmt.Sprintf("```\n%v\n```", err)
	send := func(channel, text string) {
		sendErr := t.client.SendMessage(ctx, OutboundMessage{Channel: channel, Text: text})
		if sendErr != nil {
			t.log.Warn().Err(sendErr).Str("channel", channel).Msg("Failed to report handler error")
		}
	}
	if t.errorsTo != "" {
		send(t.Event.Channel, reply)
		send(t.errorsTo, reply+details)
		return
	}
	send(t.Event.Channel, reply+details)
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	Aliases      []string
	ErrorsTo     string
	DefaultReply string
}

// Dispatcher turns inbound events into dispatch tasks.
type Dispatcher struct {
	client    *Client
	registry  *Registry
	pool      Submitter
	addresser Addresser
	opts      DispatcherOptions
	log       zerolog.Logger

	defaultReply *Registration
}

func NewDispatcher(client *Client, registry *Registry, pool Submitter, opts DispatcherOptions, log zerolog.Logger) *Dispatcher {
	d := &Dispatcher{
		client:    client,
		registry:  registry,
		pool:      pool,
		addresser: Addresser{Aliases: opts.Aliases},
		opts:      opts,
		log:       log.With().Str("component", "dispatcher").Logger(),
	}
	d.defaultReply = &Registration{
		Category: Fallback,
		Name:     "builtin_default_reply",
		Handler:  d.replyDefault,
	}
	return d
}

// Dispatch routes evt and submits every resulting task to the pool. It
// returns the number of tasks submitted.
func (d *Dispatcher) Dispatch(evt Event) int {
	tasks := d.Route(evt)
	submitted := 0
	for _, task := range tasks {
		if d.pool.Submit(task) {
			submitted++
		}
	}
	return submitted
}

// Route decides which registrations handle evt. Addressed registrations are
// tried only for messages directed at the bot, Passive ones for every
// message, Fallback ones only when neither produced a match. Within a
// category every matching registration yields a task, in registration order.
func (d *Dispatcher) Route(evt Event) []*DispatchTask {
	if evt.Type != EventMessage || evt.Subtype == SubtypeMessageChanged {
		return nil
	}
	sess := d.client.Session()
	if sess == nil {
		return nil
	}
	username := senderName(sess.Directory, evt)
	if username == "" {
		d.log.Debug().Str("user_id", evt.User).Msg("Ignoring message from unknown sender")
		return nil
	}
	if username == sess.BotName || username == platformBotName || (evt.User != "" && evt.User == sess.BotID) {
		return nil
	}

	addressedText, addressed := d.addresser.Address(evt, sess.BotID, sess.BotName)

	var tasks []*DispatchTask
	if addressed {
		for _, m := range d.registry.Match(Addressed, addressedText) {
			tasks = append(tasks, d.newTask(evt, addressedText, m))
		}
	}
	for _, m := range d.registry.Match(Passive, evt.Text) {
		tasks = append(tasks, d.newTask(evt, evt.Text, m))
	}
	if len(tasks) > 0 {
		return tasks
	}

	text := evt.Text
	if addressed {
		text = addressedText
	}
	for _, m := range d.registry.Match(Fallback, text) {
		tasks = append(tasks, d.newTask(evt, text, m))
	}
	if len(tasks) == 0 && addressed {
		tasks = append(tasks, d.newTask(evt, text, Match{Registration: d.defaultReply}))
	}
	return tasks
}

func (d *Dispatcher) newTask(evt Event, text string, m Match) *DispatchTask {
	return &DispatchTask{
		id:           uuid.NewString(),
		Event:        evt,
		Text:         text,
		Registration: m.Registration,
		Groups:       m.Groups,
		client:       d.client,
		errorsTo:     d.opts.ErrorsTo,
		log:          d.log,
	}
}

// replyDefault answers an addressed message nothing matched.
func (d *Dispatcher) replyDefault(msg *Message, _ []string) error {
	if d.opts.DefaultReply != "" {
		return msg.Reply(d.opts.DefaultReply)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Bad command %q, You can ask me one of the following questions:\n", msg.Text())
	for _, reg := range d.registry.Registrations(Addressed) {
		fmt.Fprintf(&sb, "\n    • `%s` %s", reg.Pattern.String(), reg.Name)
	}
	return msg.Reply(sb.String())
}

func senderName(dir *Directory, evt Event) string {
	if dir != nil {
		if u, ok := dir.User(evt.User); ok && u.Name != "" {
			return u.Name
		}
	}
	if evt.Username != "" {
		return evt.Username
	}
	return evt.BotName
}
