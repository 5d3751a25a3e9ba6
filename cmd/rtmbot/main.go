// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command rtmbot runs a chat bot over a real-time messaging connection to
// Slack or Mattermost, with handlers provided by compiled-in plugins.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aiku/rtmbot/pkg/bot"
	"github.com/aiku/rtmbot/pkg/bot/mattermostapi"
	"github.com/aiku/rtmbot/pkg/bot/slackapi"
	"github.com/aiku/rtmbot/pkg/plugins"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "rtmbot",
	Short:         "A real-time messaging chat bot",
	Version:       fmt.Sprintf("%s (commit %s, built %s)", Tag, Commit, BuildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect and handle messages until interrupted",
	Long: `Connect to the configured platform and dispatch incoming messages to
the configured plugins. The bot reconnects on its own when the connection
drops and stops cleanly on SIGINT or SIGTERM.

Example:
  rtmbot run --config config.yaml
  RTMBOT_API_TOKEN=xoxb-... rtmbot run -c config.yaml`,
	RunE: runBot,
}

var exampleConfigCmd = &cobra.Command{
	Use:   "example-config",
	Short: "Print an example configuration file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, err := fmt.Fprint(cmd.OutOrStdout(), bot.ExampleConfig)
		return err
	},
}

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List the plugins compiled into this binary",
	Run: func(cmd *cobra.Command, _ []string) {
		for _, name := range plugins.Names() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

func init() {
	runCmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the config file")
	rootCmd.AddCommand(runCmd, exampleConfigCmd, pluginsCmd)
}

func runBot(cmd *cobra.Command, _ []string) error {
	cfg, err := bot.LoadConfig(configPath)
	if err != nil {
		return err
	}
	logPtr, err := cfg.Logging.Compile()
	if err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	log := *logPtr
	zerolog.DefaultContextLogger = logPtr

	api, err := newWebAPI(cfg, log)
	if err != nil {
		return err
	}
	loaded, err := plugins.Lookup(cfg.Plugins)
	if err != nil {
		return err
	}
	registry := bot.NewRegistry(log)
	if err := registry.Load(loaded...); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("platform", cfg.Platform).
		Str("version", Tag).
		Msg("Starting rtmbot")
	return bot.New(cfg, api, registry, log).Run(ctx)
}

func newWebAPI(cfg *bot.Config, log zerolog.Logger) (bot.WebAPI, error) {
	switch cfg.Platform {
	case "slack":
		return slackapi.New(slackapi.Options{Token: cfg.APIToken, Timeout: cfg.Timeout}, log), nil
	case "mattermost":
		return mattermostapi.New(mattermostapi.Options{
			ServerURL: cfg.ServerURL,
			Token:     cfg.APIToken,
			Timeout:   cfg.Timeout,
		}, log), nil
	default:
		return nil, fmt.Errorf("unknown platform %q", cfg.Platform)
	}
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
