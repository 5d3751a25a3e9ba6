// Copyright 2024-2026 Aiku AI

// Package bot is a real-time messaging client for chat bots.
//
// A Client keeps one websocket session open to the chat platform together
// with a snapshot of its users and channels, and reconnects on its own when
// the socket drops. Plugins register handlers on a Registry; the Dispatcher
// routes each inbound message to the matching handlers and runs them on a
// worker pool, so one slow or broken handler never stops the bot. Periodic
// plugin jobs are fired by the Scheduler from the same control loop.
//
// The platform itself is reached through the WebAPI interface. See the
// slackapi and mattermostapi packages for implementations.
package bot
