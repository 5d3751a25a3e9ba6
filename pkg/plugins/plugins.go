// Copyright 2024-2026 Aiku AI

// Package plugins is the static manifest of plugins compiled into the bot.
// Config files refer to plugins by their manifest name.
package plugins

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aiku/rtmbot/pkg/bot"
	"github.com/aiku/rtmbot/pkg/plugins/hello"
)

// Manifest maps plugin names to constructors.
var Manifest = map[string]func() bot.Plugin{
	"hello": func() bot.Plugin { return hello.New() },
}

// Lookup builds the named plugins in order.
func Lookup(names []string) ([]bot.Plugin, error) {
	out := make([]bot.Plugin, 0, len(names))
	for _, name := range names {
		newPlugin, ok := Manifest[name]
		if !ok {
			return nil, fmt.Errorf("unknown plugin %q (available: %s)", name, strings.Join(Names(), ", "))
		}
		out = append(out, newPlugin())
	}
	return out, nil
}

// Names returns the manifest entries sorted by name.
func Names() []string {
	names := make([]string, 0, len(Manifest))
	for name := range Manifest {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
