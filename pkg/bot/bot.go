// Copyright 2024-2026 Aiku AI

package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aiku/rtmbot/pkg/bot/workerpool"
)

// Bot wires the connection, the registry, the dispatcher, the worker pool and
// the scheduler together and runs the control loop.
type Bot struct {
	cfg        *Config
	client     *Client
	registry   *Registry
	pool       *workerpool.Pool
	dispatcher *Dispatcher
	scheduler  *Scheduler
	now        func() time.Time
	rootLog    zerolog.Logger
	log        zerolog.Logger
}

// New creates a bot. Plugins must be loaded into registry before Run.
func New(cfg *Config, api WebAPI, registry *Registry, log zerolog.Logger) *Bot {
	return newBot(cfg, api, registry, ClientOptions{
		ReconnectDelay: cfg.ReconnectDelay,
		BotIcon:        cfg.BotIcon,
		BotEmoji:       cfg.BotEmoji,
	}, log)
}

func newBot(cfg *Config, api WebAPI, registry *Registry, clientOpts ClientOptions, log zerolog.Logger) *Bot {
	client := NewClient(api, clientOpts, log)
	pool := workerpool.New(cfg.Workers, log)
	return &Bot{
		cfg:      cfg,
		client:   client,
		registry: registry,
		pool:     pool,
		dispatcher: NewDispatcher(client, registry, pool, DispatcherOptions{
			Aliases:      cfg.Aliases,
			ErrorsTo:     cfg.ErrorsTo,
			DefaultReply: cfg.DefaultReply,
		}, log),
		now:     time.Now,
		rootLog: log,
		log:     log.With().Str("component", "bot").Logger(),
	}
}

func (b *Bot) Client() *Client {
	return b.client
}

func (b *Bot) Registry() *Registry {
	return b.registry
}

func (b *Bot) Pool() *workerpool.Pool {
	return b.pool
}

// Run connects and processes events until ctx is cancelled. A failed first
// connection is retried like any other disconnection.
func (b *Bot) Run(ctx context.Context) error {
	b.registry.Seal()
	b.scheduler = NewScheduler(b.registry.Scheduled(), b.now(), b.runScheduled, b.rootLog)

	g, ctx := errgroup.WithContext(ctx)
	b.pool.Start(ctx)
	defer b.pool.Stop()

	if err := b.client.Connect(ctx); err != nil {
		b.log.Error().Err(err).Msg("Initial connection failed, retrying")
		if err := b.client.Reconnect(ctx); err != nil {
			b.client.Disconnect()
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("failed to connect: %w", err)
		}
	}
	b.log.Info().
		Strs("plugins", b.registry.Plugins()).
		Int("workers", b.pool.Size()).
		Msg("Bot is running")

	g.Go(func() error {
		b.client.KeepAlive(ctx, b.cfg.PingInterval)
		return nil
	})
	g.Go(func() error {
		return b.loop(ctx)
	})

	err := g.Wait()
	b.client.Disconnect()
	b.log.Info().Msg("Bot stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// loop alternates between reading the socket and ticking the scheduler. It
// wakes up every poll interval, or earlier when frames arrive.
func (b *Bot) loop(ctx context.Context) error {
	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()
	for {
		b.poll(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-b.client.Ready():
		}
	}
}

func (b *Bot) poll(ctx context.Context) {
	for _, evt := range b.client.ReadEvents(ctx) {
		b.dispatcher.Dispatch(evt)
	}
	b.scheduler.Tick(b.now())
}

func (b *Bot) runScheduled(task *ScheduledTask) {
	b.pool.Submit(scheduledJob{
		name:   task.Name,
		fn:     task.Handler,
		client: b.client,
	})
}
