package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexushub/nexus/internal/kvstore"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return New(kvstore.NewMemory(0), nil, []byte("test-sign-key"))
}

func doJSON(t *testing.T, s *Server, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

type authResponse struct {
	User  authUser `json:"user"`
	Token string   `json:"token"`
}

func registerUser(t *testing.T, s *Server, email string) authResponse {
	t.Helper()
	resp, raw := doJSON(t, s, http.MethodPost, "/api/auth/register", "", credentials{
		Email: email, Password: "pw-123456", Name: "Test User",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var out authResponse
	require.NoError(t, json.Unmarshal(raw, &out))
	require.NotEmpty(t, out.Token)
	require.True(t, out.User.IsAuthenticated)
	return out
}

func TestRegister_DuplicateEmailConflicts(t *testing.T) {
	s := newTestServer(t)
	registerUser(t, s, "a@example.com")

	resp, raw := doJSON(t, s, http.MethodPost, "/api/auth/register", "", credentials{
		Email: "a@example.com", Password: "other", Name: "Clone",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Contains(t, string(raw), "User already exists")
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	registerUser(t, s, "b@example.com")

	resp, raw := doJSON(t, s, http.MethodPost, "/api/auth/login", "", credentials{
		Email: "b@example.com", Password: "pw-123456",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	resp, raw = doJSON(t, s, http.MethodPost, "/api/auth/login", "", credentials{
		Email: "b@example.com", Password: "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Contains(t, string(raw), "Invalid credentials")
	require.NotContains(t, string(raw), "pw-123456")
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	s := newTestServer(t)
	resp, raw := doJSON(t, s, http.MethodGet, "/api/links", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Contains(t, string(raw), "Please authenticate")
}

func TestLinks_CRUDWithServerAssignedIDs(t *testing.T) {
	s := newTestServer(t)
	auth := registerUser(t, s, "c@example.com")

	resp, raw := doJSON(t, s, http.MethodPost, "/api/links", auth.Token, map[string]any{
		"url": "https://go.dev", "title": "Go", "category": "Education", "tags": []string{"go"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var created linkDoc
	require.NoError(t, json.Unmarshal(raw, &created))
	require.NotEmpty(t, created.ID)
	require.Equal(t, auth.User.ID, created.UserID)

	resp, raw = doJSON(t, s, http.MethodGet, "/api/links", auth.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []linkDoc
	require.NoError(t, json.Unmarshal(raw, &list))
	require.Len(t, list, 1)
	require.Equal(t, created.ID, list[0].ID)

	resp, _ = doJSON(t, s, http.MethodDelete, "/api/links/"+created.ID, auth.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, raw = doJSON(t, s, http.MethodGet, "/api/links", auth.Token, nil)
	require.NoError(t, json.Unmarshal(raw, &list))
	require.Empty(t, list)
}

func TestLinks_ScopedToAuthenticatedUser(t *testing.T) {
	s := newTestServer(t)
	alice := registerUser(t, s, "alice@example.com")
	bob := registerUser(t, s, "bob@example.com")

	_, _ = doJSON(t, s, http.MethodPost, "/api/links", alice.Token, map[string]any{
		"url": "https://alice.example.com", "title": "Alice's",
	})

	_, raw := doJSON(t, s, http.MethodGet, "/api/links", bob.Token, nil)
	var list []linkDoc
	require.NoError(t, json.Unmarshal(raw, &list))
	require.Empty(t, list, "bob must not see alice's links")
}

func TestEvents_UpdateTogglesInPlace(t *testing.T) {
	s := newTestServer(t)
	auth := registerUser(t, s, "d@example.com")

	_, raw := doJSON(t, s, http.MethodPost, "/api/events", auth.Token, map[string]any{
		"title": "standup", "date": "2026-09-02T09:00:00Z", "type": "Meeting",
	})
	var created eventDoc
	require.NoError(t, json.Unmarshal(raw, &created))

	created.Completed = true
	resp, _ := doJSON(t, s, http.MethodPut, "/api/events/"+created.ID, auth.Token, created)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, raw = doJSON(t, s, http.MethodGet, "/api/events", auth.Token, nil)
	var list []eventDoc
	require.NoError(t, json.Unmarshal(raw, &list))
	require.Len(t, list, 1)
	require.True(t, list[0].Completed)
}

func TestEvents_UpdateMissingIDIsSilentNoOp(t *testing.T) {
	s := newTestServer(t)
	auth := registerUser(t, s, "e@example.com")

	resp, _ := doJSON(t, s, http.MethodPut, "/api/events/ghost", auth.Token, map[string]any{
		"title": "nothing here",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, raw := doJSON(t, s, http.MethodGet, "/api/events", auth.Token, nil)
	var list []eventDoc
	require.NoError(t, json.Unmarshal(raw, &list))
	require.Empty(t, list)
}

func TestPasswords_RoundTrip(t *testing.T) {
	s := newTestServer(t)
	auth := registerUser(t, s, "f@example.com")

	for i := 0; i < 3; i++ {
		resp, raw := doJSON(t, s, http.MethodPost, "/api/passwords", auth.Token, map[string]any{
			"site": fmt.Sprintf("site-%d.example.com", i), "username": "user", "password": "secret",
			"category": "Work", "strength": "Strong",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	}

	_, raw := doJSON(t, s, http.MethodGet, "/api/passwords", auth.Token, nil)
	var list []passwordDoc
	require.NoError(t, json.Unmarshal(raw, &list))
	require.Len(t, list, 3)
	// head-first storage: latest site first
	require.Equal(t, "site-2.example.com", list[0].Site)
}

func TestPasswordHash_RoundTrip(t *testing.T) {
	enc, err := hashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.True(t, verifyPassword("correct horse battery staple", enc))
	require.False(t, verifyPassword("wrong", enc))
	require.False(t, verifyPassword("anything", "not-an-encoded-hash"))
}
