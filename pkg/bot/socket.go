// Copyright 2024-2026 Aiku AI

package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	handshakeTimeout = 30 * time.Second
	writeTimeout     = 10 * time.Second
)

// socket wraps a websocket connection with a non-blocking read side. A reader
// goroutine moves every received message into a pending buffer; Read hands
// out whatever is buffered without waiting.
type socket struct {
	conn *websocket.Conn
	log  zerolog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending [][]byte
	readErr error

	ready     chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type dialOptions struct {
	URL    string
	Header http.Header
	Proxy  func(*http.Request) (*url.URL, error)
}

func dialSocket(ctx context.Context, opts dialOptions, log zerolog.Logger) (*socket, error) {
	dialer := websocket.Dialer{
		Proxy:            opts.Proxy,
		HandshakeTimeout: handshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, opts.URL, opts.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial websocket: %w", err)
	}
	return newSocket(conn, log), nil
}

func newSocket(conn *websocket.Conn, log zerolog.Logger) *socket {
	s := &socket{
		conn:  conn,
		log:   log,
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	go s.readLoop()
	return s
}

func (s *socket) readLoop() {
	defer close(s.done)
	for {
		_, data, err := s.conn.ReadMessage()
		s.mu.Lock()
		if err != nil {
			s.readErr = err
		} else {
			s.pending = append(s.pending, data)
		}
		s.mu.Unlock()
		s.signal()
		if err != nil {
			s.log.Debug().Err(err).Msg("Websocket reader stopped")
			return
		}
	}
}

func (s *socket) signal() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// Read returns the frames received since the previous call. It never blocks:
// with nothing buffered it returns (nil, nil). Once the reader has stopped and
// the buffer is drained it returns a *TransportError.
func (s *socket) Read() ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) > 0 {
		frames := s.pending
		s.pending = nil
		return frames, nil
	}
	if s.readErr != nil {
		return nil, classifyReadError(s.readErr)
	}
	return nil, nil
}

// Ready is signalled whenever new frames or a read error become available.
func (s *socket) Ready() <-chan struct{} {
	return s.ready
}

// WriteFrame sends one text frame. Safe for concurrent use.
func (s *socket) WriteFrame(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return classifyReadError(err)
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return classifyReadError(err)
	}
	return nil
}

// Close sends a close frame when possible, closes the connection and waits for
// the reader goroutine to exit.
func (s *socket) Close() {
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
	<-s.done
}

// classifyReadError separates explicit close signals from other transport
// failures. The "no data yet" outcome never reaches here: the runtime poller
// absorbs EAGAIN, and an empty buffer is reported by Read as (nil, nil).
func classifyReadError(err error) *TransportError {
	var closeErr *websocket.CloseError
	closed := errors.As(err, &closeErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, websocket.ErrCloseSent)
	return &TransportError{Closed: closed, Err: err}
}
