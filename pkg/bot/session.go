// Copyright 2024-2026 Aiku AI

package bot

import "time"

// ConnectionState is the state of the connection manager.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Session is everything learned from one successful handshake. A reconnect
// publishes a new Session; an existing one is never modified.
type Session struct {
	Domain      string
	BotID       string
	BotName     string
	Directory   *Directory
	ConnectedAt time.Time

	sock *socket
}
