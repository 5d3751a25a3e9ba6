// Copyright 2024-2026 Aiku AI

package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// testUsers and testChannels are the directory most tests run against.
var (
	testUsers = []User{
		{ID: "UBOT", Name: "rtmbot", IsBot: true},
		{ID: "UALICE", Name: "alice", RealName: "Alice Liddell"},
		{ID: "UBOB", Name: "bob"},
		{ID: "USLACKBOT", Name: "slackbot", IsBot: true},
	}
	testChannels = []Channel{
		{ID: "C1", Name: "general"},
		{ID: "C2", Name: "random"},
		{ID: "G1", Name: "secret", IsPrivate: true},
		{ID: "D1", IsIM: true, User: "UALICE"},
		{ID: "DGHOST", IsIM: true, User: "UGHOST"},
	}
)

type reaction struct {
	Emoji, Channel, Timestamp string
}

// fakeAPI is an in-memory WebAPI. Counters and recorded calls are guarded by mu.
type fakeAPI struct {
	mu sync.Mutex

	wsURL    string
	users    []User
	channels []Channel

	// failHandshakes makes the next n handshakes fail.
	failHandshakes int
	listUsersErr   error
	openErr        error
	openEmpty      bool
	openDelay      time.Duration
	postErr        error

	handshakes int
	listUsers  int
	opens      int
	posted     []PostMessageParams
	uploads    []UploadParams
	reactions  []reaction
}

var _ WebAPI = (*fakeAPI)(nil)

func newFakeAPI(wsURL string) *fakeAPI {
	return &fakeAPI{
		wsURL:    wsURL,
		users:    testUsers,
		channels: testChannels,
	}
}

func (f *fakeAPI) Handshake(context.Context) (*Handshake, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handshakes++
	if f.failHandshakes > 0 {
		f.failHandshakes--
		return nil, errors.New("invalid_auth")
	}
	return &Handshake{
		Domain:  "acme",
		BotID:   "UBOT",
		BotName: "rtmbot",
		URL:     f.wsURL,
	}, nil
}

func (f *fakeAPI) ListUsers(context.Context) ([]User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listUsers++
	if f.listUsersErr != nil {
		return nil, f.listUsersErr
	}
	return f.users, nil
}

func (f *fakeAPI) ListChannels(context.Context) ([]Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channels, nil
}

func (f *fakeAPI) PostMessage(_ context.Context, params PostMessageParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return f.postErr
	}
	f.posted = append(f.posted, params)
	return nil
}

func (f *fakeAPI) UploadFile(_ context.Context, params UploadParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, params)
	return nil
}

func (f *fakeAPI) AddReaction(_ context.Context, emoji, channelID, timestamp string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, reaction{emoji, channelID, timestamp})
	return nil
}

func (f *fakeAPI) OpenDirectMessage(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	f.opens++
	delay, err, empty := f.openDelay, f.openErr, f.openEmpty
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return "", err
	}
	if empty {
		return "", nil
	}
	return "D" + userID, nil
}

func (f *fakeAPI) counts() (handshakes, listUsers, opens int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handshakes, f.listUsers, f.opens
}

func (f *fakeAPI) postedMessages() []PostMessageParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PostMessageParams(nil), f.posted...)
}

// fakeRTM is a websocket server that hands every accepted connection to the test.
type fakeRTM struct {
	server *httptest.Server
	conns  chan *websocket.Conn
}

func newFakeRTM(t *testing.T) *fakeRTM {
	t.Helper()
	f := &fakeRTM{conns: make(chan *websocket.Conn, 16)}
	upgrader := websocket.Upgrader{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.conns <- conn
	}))
	t.Cleanup(func() {
		f.server.Close()
		for {
			select {
			case conn := <-f.conns:
				_ = conn.Close()
			default:
				return
			}
		}
	})
	return f
}

func (f *fakeRTM) URL() string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http")
}

// nextConn waits for the client to open a connection.
func (f *fakeRTM) nextConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-f.conns:
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a websocket connection")
		return nil
	}
}

// sendJSON writes one frame to the client.
func sendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("failed to write frame: %v", err)
	}
}

// nextFrame reads client frames until one of the wanted type arrives.
func nextFrame(t *testing.T, conn *websocket.Conn, wantType string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	_ = conn.SetReadDeadline(deadline)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("failed to read %s frame: %v", wantType, err)
		}
		var frame map[string]any
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("client sent invalid JSON %q: %v", data, err)
		}
		if frame["type"] == wantType {
			return frame
		}
	}
}

func nopLogger() *zerolog.Logger {
	log := zerolog.Nop()
	return &log
}

func noEnv(string) (string, bool) {
	return "", false
}

func newTestClient(api WebAPI) *Client {
	return NewClient(api, ClientOptions{
		ReconnectDelay: 10 * time.Millisecond,
		BotIcon:        "https://example.com/icon.png",
		LookupEnv:      noEnv,
	}, zerolog.Nop())
}

// connectedClient returns a client connected to rtm and the server side of
// its socket.
func connectedClient(t *testing.T, api *fakeAPI, rtm *fakeRTM) (*Client, *websocket.Conn) {
	t.Helper()
	c := newTestClient(api)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(c.Disconnect)
	return c, rtm.nextConn(t)
}

// offlineClient returns a client with a published session but no socket.
// Only routing and directory lookups may be used with it.
func offlineClient(api WebAPI) *Client {
	c := newTestClient(api)
	c.session.Store(&Session{
		Domain:    "acme",
		BotID:     "UBOT",
		BotName:   "rtmbot",
		Directory: NewDirectory(testUsers, testChannels, nopLogger()),
	})
	return c
}

// eventually polls cond until it holds or five seconds pass.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// collectEvents reads from c until n events arrived.
func collectEvents(t *testing.T, c *Client, n int) []Event {
	t.Helper()
	var events []Event
	eventually(t, fmt.Sprintf("%d events", n), func() bool {
		events = append(events, c.ReadEvents(context.Background())...)
		return len(events) >= n
	})
	return events
}

func messageEvent(channel, user, text string) Event {
	return Event{Type: EventMessage, Channel: channel, User: user, Text: text, TS: "1700000000.000100"}
}
