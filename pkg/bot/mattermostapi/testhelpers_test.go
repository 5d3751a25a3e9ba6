// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package mattermostapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/mattermost/mattermost/server/public/model"
	"github.com/rs/zerolog"
)

// endpointCall records which API endpoints were hit during a test.
type endpointCall struct {
	Method string
	Path   string
	Body   string
}

// fakeMM is a test helper that wraps an httptest.Server simulating the
// Mattermost API. It records calls and provides canned responses.
type fakeMM struct {
	Server *httptest.Server

	mu    sync.Mutex
	calls []endpointCall

	// Users maps user ID to model.User for GetMe responses.
	Users map[string]*model.User
	// UserList is paged by GetUsers.
	UserList []*model.User
	// TokenToUser maps bearer tokens to user IDs for GetMe auth.
	TokenToUser map[string]string
	// Teams maps user ID to team list.
	Teams map[string][]*model.Team
	// ChannelsForUser maps user ID to channel list (all channels including DMs).
	ChannelsForUser map[string][]*model.Channel
	// FailEndpoints causes specific path prefixes to return 500.
	FailEndpoints map[string]bool
}

func newFakeMM() *fakeMM {
	f := &fakeMM{
		Users:           make(map[string]*model.User),
		TokenToUser:     make(map[string]string),
		Teams:           make(map[string][]*model.Team),
		ChannelsForUser: make(map[string][]*model.Channel),
		FailEndpoints:   make(map[string]bool),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handler))
	return f
}

// newSeededFakeMM returns a server where "test-token" authenticates the bot
// user "bot-id" in team "acme".
func newSeededFakeMM() *fakeMM {
	f := newFakeMM()
	f.TokenToUser["test-token"] = "bot-id"
	f.Users["bot-id"] = &model.User{Id: "bot-id", Username: "rtmbot", IsBot: true}
	f.Teams["bot-id"] = []*model.Team{{Id: "team-id", Name: "acme"}}
	return f
}

func (f *fakeMM) Close() {
	f.Server.Close()
}

func (f *fakeMM) record(method, path, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, endpointCall{Method: method, Path: path, Body: body})
}

func (f *fakeMM) Calls() []endpointCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]endpointCall, len(f.calls))
	copy(cp, f.calls)
	return cp
}

// LastCall returns the most recent call to path.
func (f *fakeMM) LastCall(method, path string) (endpointCall, bool) {
	calls := f.Calls()
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Method == method && calls[i].Path == path {
			return calls[i], true
		}
	}
	return endpointCall{}, false
}

func (f *fakeMM) resolveToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	for tok, uid := range f.TokenToUser {
		if auth == "BEARER "+tok || auth == "Bearer "+tok {
			return uid
		}
	}
	return ""
}

func (f *fakeMM) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.record(r.Method, r.URL.Path, string(body))

	for prefix := range f.FailEndpoints {
		if strings.Contains(r.URL.Path, prefix) {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "fake error"})
			return
		}
	}

	path := r.URL.Path

	switch {
	// GET /api/v4/users/me
	case r.Method == "GET" && path == "/api/v4/users/me":
		uid := f.resolveToken(r)
		if uid == "" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "unauthorized"})
			return
		}
		if u, ok := f.Users[uid]; ok {
			_ = json.NewEncoder(w).Encode(u)
			return
		}
		w.WriteHeader(http.StatusNotFound)

	// GET /api/v4/users?page=&per_page=
	case r.Method == "GET" && path == "/api/v4/users":
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
		if perPage <= 0 {
			perPage = 60
		}
		start := min(page*perPage, len(f.UserList))
		end := min(start+perPage, len(f.UserList))
		_ = json.NewEncoder(w).Encode(f.UserList[start:end])

	// GET /api/v4/users/{user_id}/channels (GetChannelsForUserWithLastDeleteAt)
	case r.Method == "GET" && strings.HasPrefix(path, "/api/v4/users/") && strings.HasSuffix(path, "/channels"):
		parts := strings.Split(path, "/")
		if len(parts) >= 6 {
			if chs, ok := f.ChannelsForUser[parts[4]]; ok {
				_ = json.NewEncoder(w).Encode(chs)
				return
			}
		}
		_ = json.NewEncoder(w).Encode([]*model.Channel{})

	// GET /api/v4/users/{user_id}/teams
	case r.Method == "GET" && strings.HasSuffix(path, "/teams"):
		parts := strings.Split(path, "/")
		if len(parts) >= 5 {
			if teams, ok := f.Teams[parts[4]]; ok {
				_ = json.NewEncoder(w).Encode(teams)
				return
			}
		}
		_ = json.NewEncoder(w).Encode([]*model.Team{})

	// POST /api/v4/posts
	case r.Method == "POST" && path == "/api/v4/posts":
		var post model.Post
		_ = json.Unmarshal(body, &post)
		post.Id = "created-post-id"
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(&post)

	// POST /api/v4/reactions
	case r.Method == "POST" && path == "/api/v4/reactions":
		var reaction model.Reaction
		_ = json.Unmarshal(body, &reaction)
		_ = json.NewEncoder(w).Encode(&reaction)

	// POST /api/v4/channels/direct
	case r.Method == "POST" && path == "/api/v4/channels/direct":
		var ids []string
		_ = json.Unmarshal(body, &ids)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(&model.Channel{
			Id:   "dm-" + strings.Join(ids, "-"),
			Type: model.ChannelTypeDirect,
			Name: strings.Join(ids, "__"),
		})

	// POST /api/v4/files (upload)
	case r.Method == "POST" && path == "/api/v4/files":
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(&model.FileUploadResponse{
			FileInfos: []*model.FileInfo{{Id: "uploaded-file-id", Name: "upload"}},
		})

	default:
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "not found: " + path})
	}
}

// newTestClient returns a client for f that already completed a handshake.
func newTestClient(f *fakeMM) *Client {
	c := New(Options{ServerURL: f.Server.URL, Token: "test-token"}, zerolog.Nop())
	c.userID.Store("bot-id")
	return c
}
