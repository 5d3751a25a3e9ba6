// Copyright 2024-2026 Aiku AI

package bot

import (
	"context"
	"fmt"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Category decides when a registration is eligible to match.
type Category int

const (
	// Addressed registrations match messages directed at the bot.
	Addressed Category = iota
	// Passive registrations match every message.
	Passive
	// Fallback registrations match only when no Addressed or Passive
	// registration matched.
	Fallback
)

func (c Category) String() string {
	switch c {
	case Addressed:
		return "respond_to"
	case Passive:
		return "listen_to"
	case Fallback:
		return "default_reply"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// DefaultFallbackPattern matches any text.
const DefaultFallbackPattern = `^.*$`

// Handler handles a matched message. groups holds the pattern's capture groups.
type Handler func(msg *Message, groups []string) error

// ScheduledFunc is invoked by the scheduler.
type ScheduledFunc func(ctx context.Context, client *Client) error

// Registration binds a compiled pattern to a handler.
type Registration struct {
	Category Category
	Pattern  *regexp.Regexp
	Name     string
	Handler  Handler
}

// Match is a registration whose pattern matched a text.
type Match struct {
	Registration *Registration
	Groups       []string
}

// Plugin registers its handlers into a Registry.
type Plugin interface {
	Name() string
	Register(r *Registry) error
}

// Registry holds handler registrations in registration order, one ordered list
// per category. It only grows, and stops accepting registrations once sealed.
// Two registrations with the same pattern coexist and both fire.
type Registry struct {
	categories [3][]*Registration
	scheduled  []*ScheduledTask
	plugins    []string
	sealed     atomic.Bool
	log        zerolog.Logger
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		log: log.With().Str("component", "registry").Logger(),
	}
}

// Register compiles pattern and appends a registration to category.
func (r *Registry) Register(category Category, pattern, name string, handler Handler) error {
	if r.sealed.Load() {
		return ErrRegistrySealed
	}
	if category < Addressed || category > Fallback {
		return fmt.Errorf("unknown category %d", int(category))
	}
	if handler == nil {
		return fmt.Errorf("handler %q for %q is nil", name, pattern)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("failed to compile pattern %q for %s: %w", pattern, name, err)
	}
	r.categories[category] = append(r.categories[category], &Registration{
		Category: category,
		Pattern:  re,
		Name:     name,
		Handler:  handler,
	})
	r.log.Info().
		Stringer("category", category).
		Str("handler", name).
		Str("pattern", pattern).
		Msg("Registered plugin handler")
	return nil
}

// RespondTo registers an Addressed handler.
func (r *Registry) RespondTo(pattern, name string, handler Handler) error {
	return r.Register(Addressed, pattern, name, handler)
}

// ListenTo registers a Passive handler.
func (r *Registry) ListenTo(pattern, name string, handler Handler) error {
	return r.Register(Passive, pattern, name, handler)
}

// DefaultReply registers a Fallback handler. An empty pattern matches anything.
func (r *Registry) DefaultReply(pattern, name string, handler Handler) error {
	if pattern == "" {
		pattern = DefaultFallbackPattern
	}
	return r.Register(Fallback, pattern, name, handler)
}

// RunEvery registers a handler the scheduler runs once per interval.
func (r *Registry) RunEvery(interval time.Duration, name string, fn ScheduledFunc) error {
	if r.sealed.Load() {
		return ErrRegistrySealed
	}
	if interval <= 0 {
		return fmt.Errorf("interval for %s must be positive, got %s", name, interval)
	}
	if fn == nil {
		return fmt.Errorf("scheduled handler %q is nil", name)
	}
	r.scheduled = append(r.scheduled, &ScheduledTask{
		Name:     name,
		Interval: interval,
		Handler:  fn,
		Enabled:  true,
	})
	r.log.Info().Str("handler", name).Dur("interval", interval).Msg("Registered scheduled handler")
	return nil
}

// Load registers plugins in order. A failing plugin aborts loading.
func (r *Registry) Load(plugins ...Plugin) error {
	for _, p := range plugins {
		r.log.Info().Str("plugin", p.Name()).Msg("Loading plugin")
		if err := p.Register(r); err != nil {
			return fmt.Errorf("failed to load plugin %s: %w", p.Name(), err)
		}
		r.plugins = append(r.plugins, p.Name())
	}
	return nil
}

// Seal stops the registry from accepting registrations.
func (r *Registry) Seal() {
	r.sealed.Store(true)
}

// Registrations returns the registrations of a category in registration order.
func (r *Registry) Registrations(category Category) []*Registration {
	if category < Addressed || category > Fallback {
		return nil
	}
	return r.categories[category]
}

// Scheduled returns the scheduled tasks in registration order.
func (r *Registry) Scheduled() []*ScheduledTask {
	return r.scheduled
}

// Plugins returns the names of the loaded plugins.
func (r *Registry) Plugins() []string {
	return r.plugins
}

// Match returns every registration of category whose pattern matches
// somewhere in text, in registration order. Matching does not stop at the
// first hit.
func (r *Registry) Match(category Category, text string) []Match {
	var matches []Match
	for _, reg := range r.Registrations(category) {
		m := reg.Pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		matches = append(matches, Match{Registration: reg, Groups: m[1:]})
	}
	return matches
}
