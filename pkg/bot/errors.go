// Copyright 2024-2026 Aiku AI

package bot

import (
	"errors"
	"fmt"
)

var (
	// ErrUnresolvable is matched by every *ResolutionError.
	ErrUnresolvable = errors.New("reference does not name a known channel or user")
	// ErrRegistrySealed is returned when a registration arrives after the bot started.
	ErrRegistrySealed = errors.New("registry is sealed")
	// ErrSocketSendUnsupported is returned by frame codecs whose socket protocol
	// cannot carry outbound chat messages. Callers fall back to the web API.
	ErrSocketSendUnsupported = errors.New("socket does not accept message frames")
	// ErrNotConnected is returned by socket writes while no session is published.
	ErrNotConnected = errors.New("not connected")
)

// TransportError reports a failed socket. Closed distinguishes an explicit
// close signal from any other transport exception.
type TransportError struct {
	Closed bool
	Err    error
}

func (e *TransportError) Error() string {
	if e.Closed {
		return fmt.Sprintf("websocket closed: %v", e.Err)
	}
	return fmt.Sprintf("websocket exception: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ParseError reports a frame line that could not be decoded into an Event.
type ParseError struct {
	Line []byte
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse frame %q: %v", truncate(e.Line, 120), e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ResolutionError reports a channel reference that matched no channel or user.
type ResolutionError struct {
	Ref    string
	Reason string
}

func (e *ResolutionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("could not turn %q into a channel: %s", e.Ref, e.Reason)
	}
	return fmt.Sprintf("could not turn %q into any kind of channel name", e.Ref)
}

func (e *ResolutionError) Is(target error) bool {
	return target == ErrUnresolvable
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
