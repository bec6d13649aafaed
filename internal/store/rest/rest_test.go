package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexushub/nexus/internal/errs"
	"github.com/nexushub/nexus/internal/kvstore"
	"github.com/nexushub/nexus/internal/model"
)

// stubAPI is a minimal in-memory rendition of the API server contract.
type stubAPI struct {
	t        *testing.T
	token    string
	requests atomic.Int64

	links []map[string]any
}

func (a *stubAPI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/register", func(w http.ResponseWriter, r *http.Request) {
		a.requests.Add(1)
		var creds map[string]string
		require.NoError(a.t, json.NewDecoder(r.Body).Decode(&creds))
		if creds["email"] == "taken@example.com" {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{"message": "User already exists"})
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"user":  map[string]any{"id": "u-1", "email": creds["email"], "name": creds["name"]},
			"token": a.token,
		})
	})

	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		a.requests.Add(1)
		var creds map[string]string
		require.NoError(a.t, json.NewDecoder(r.Body).Decode(&creds))
		if creds["password"] != "pw-123456" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": "Invalid credentials"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"user":  map[string]any{"id": "u-1", "email": creds["email"], "name": "Remote User"},
			"token": a.token,
		})
	})

	mux.HandleFunc("/api/links", func(w http.ResponseWriter, r *http.Request) {
		a.requests.Add(1)
		if r.Header.Get("Authorization") != "Bearer "+a.token {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": "Please authenticate"})
			return
		}
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(a.links)
		case http.MethodPost:
			var doc map[string]any
			require.NoError(a.t, json.NewDecoder(r.Body).Decode(&doc))
			require.Empty(a.t, doc["_id"], "client must not assign ids")
			doc["_id"] = "srv-1"
			doc["userId"] = "u-1"
			a.links = append(a.links, doc)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(doc)
		}
	})

	mux.HandleFunc("DELETE /api/links/", func(w http.ResponseWriter, r *http.Request) {
		a.requests.Add(1)
		id := strings.TrimPrefix(r.URL.Path, "/api/links/")
		kept := a.links[:0]
		for _, d := range a.links {
			if d["_id"] != id {
				kept = append(kept, d)
			}
		}
		a.links = kept
		json.NewEncoder(w).Encode(map[string]string{"message": "Deleted"})
	})

	mux.HandleFunc("/api/passwords", func(w http.ResponseWriter, r *http.Request) {
		a.requests.Add(1)
		json.NewEncoder(w).Encode([]any{})
	})
	mux.HandleFunc("/api/events", func(w http.ResponseWriter, r *http.Request) {
		a.requests.Add(1)
		json.NewEncoder(w).Encode([]any{})
	})

	return mux
}

func newClient(t *testing.T, api *stubAPI) (*Client, kvstore.Store) {
	t.Helper()
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)
	kv := kvstore.NewMemory(0)
	return New(srv.URL, kv, nil), kv
}

func TestRegister_PersistsTokenAndSession(t *testing.T) {
	api := &stubAPI{t: t, token: "tok-abc"}
	c, kv := newClient(t, api)
	ctx := context.Background()

	u, err := c.Register(ctx, "new@example.com", "pw-123456", "New User")
	require.NoError(t, err)
	require.Equal(t, "u-1", u.ID)
	require.Empty(t, u.Password)

	token, ok, err := kv.Get(ctx, tokenKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tok-abc", token)

	active, ok, err := c.ActiveUser(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "u-1", active.ID)
}

func TestRegister_DuplicateMapsToSentinel(t *testing.T) {
	api := &stubAPI{t: t, token: "tok-abc"}
	c, _ := newClient(t, api)

	_, err := c.Register(context.Background(), "taken@example.com", "pw", "Dup")
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
}

func TestLogin_BadPasswordMapsToSentinel(t *testing.T) {
	api := &stubAPI{t: t, token: "tok-abc"}
	c, _ := newClient(t, api)

	_, err := c.Login(context.Background(), "who@example.com", "wrong")
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestGetLinks_RemapsDocumentIDs(t *testing.T) {
	api := &stubAPI{t: t, token: "tok-abc"}
	api.links = []map[string]any{
		{"_id": "doc-9", "userId": "u-1", "url": "https://go.dev", "title": "Go", "category": "Education"},
	}
	c, _ := newClient(t, api)
	ctx := context.Background()

	_, err := c.Login(ctx, "who@example.com", "pw-123456")
	require.NoError(t, err)

	links, err := c.GetLinks(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, "doc-9", links[0].ID)
	require.Equal(t, model.CategoryEducation, links[0].Category)
}

func TestAddLink_ServerAssignsID(t *testing.T) {
	api := &stubAPI{t: t, token: "tok-abc"}
	c, _ := newClient(t, api)
	ctx := context.Background()

	_, err := c.Login(ctx, "who@example.com", "pw-123456")
	require.NoError(t, err)

	created, err := c.AddLink(ctx, model.LinkItem{
		ID: "local-should-be-ignored", URL: "https://go.dev", Title: "Go",
	})
	require.NoError(t, err)
	require.Equal(t, "srv-1", created.ID)
	require.Equal(t, "u-1", created.UserID)
}

func TestUnauthorized_ClearsTokenAndSession(t *testing.T) {
	api := &stubAPI{t: t, token: "tok-abc"}
	c, kv := newClient(t, api)
	ctx := context.Background()

	_, err := c.Login(ctx, "who@example.com", "pw-123456")
	require.NoError(t, err)

	// server-side credential rotation: the stored token is now stale
	api.token = "tok-rotated"

	_, err = c.GetLinks(ctx, "u-1")
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	_, ok, err := kv.Get(ctx, tokenKey)
	require.NoError(t, err)
	require.False(t, ok, "stale token must be cleared")

	_, ok, err = c.ActiveUser(ctx)
	require.NoError(t, err)
	require.False(t, ok, "session must be cleared")
}

func TestChats_StayOnDevice(t *testing.T) {
	api := &stubAPI{t: t, token: "tok-abc"}
	c, _ := newClient(t, api)
	ctx := context.Background()

	before := api.requests.Load()
	_, err := c.AddChat(ctx, model.ChatMessage{Role: model.RoleUser, Text: "hi", Timestamp: 10}, "u-1")
	require.NoError(t, err)
	_, err = c.AddChat(ctx, model.ChatMessage{Role: model.RoleModel, Text: "hello", Timestamp: 20}, "u-1")
	require.NoError(t, err)

	msgs, err := c.GetChats(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "hi", msgs[0].Text)
	require.Equal(t, before, api.requests.Load(), "chat traffic must not hit the network")

	removed, err := c.CleanupStorage(ctx, "u-1", true)
	require.NoError(t, err)
	require.Equal(t, 2, removed)
}

func TestLogout_ClearsTokenAndSession(t *testing.T) {
	api := &stubAPI{t: t, token: "tok-abc"}
	c, kv := newClient(t, api)
	ctx := context.Background()

	_, err := c.Login(ctx, "who@example.com", "pw-123456")
	require.NoError(t, err)
	require.NoError(t, c.Logout(ctx))

	_, ok, err := kv.Get(ctx, tokenKey)
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = c.ActiveUser(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}
