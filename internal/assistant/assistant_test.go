package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexushub/nexus/internal/model"
)

// stubUpstream serves a single candidate text for every generateContent call.
func stubUpstream(t *testing.T, text string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Contents)

		resp := map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func failingUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
}

func TestChat(t *testing.T) {
	srv := stubUpstream(t, "You have 3 links saved.")
	defer srv.Close()

	c := New("test-key", nil, WithBaseURL(srv.URL))
	got := c.Chat(context.Background(), "how many links do I have?", "links: 3")
	require.Equal(t, "You have 3 links saved.", got)
}

func TestChat_FallbackOnUpstreamFailure(t *testing.T) {
	srv := failingUpstream(t)
	defer srv.Close()

	c := New("test-key", nil, WithBaseURL(srv.URL))
	got := c.Chat(context.Background(), "hello", "")
	require.Equal(t, fallbackChat, got)
}

func TestAnalyzeLink(t *testing.T) {
	srv := stubUpstream(t, `{"suggestedTitle":"Go Blog","category":"Education","tags":["go","blog"]}`)
	defer srv.Close()

	c := New("test-key", nil, WithBaseURL(srv.URL))
	got := c.AnalyzeLink(context.Background(), "https://go.dev/blog", "")
	require.Equal(t, "Go Blog", got.SuggestedTitle)
	require.Equal(t, model.CategoryEducation, got.Category)
	require.Equal(t, []string{"go", "blog"}, got.Tags)
}

func TestAnalyzeLink_UnknownCategoryFallsBackToOther(t *testing.T) {
	srv := stubUpstream(t, `{"suggestedTitle":"X","category":"Gaming","tags":[]}`)
	defer srv.Close()

	c := New("test-key", nil, WithBaseURL(srv.URL))
	got := c.AnalyzeLink(context.Background(), "https://example.com", "")
	require.Equal(t, model.CategoryOther, got.Category)
}

func TestAnalyzeLink_FallbackOnFailure(t *testing.T) {
	srv := failingUpstream(t)
	defer srv.Close()

	c := New("test-key", nil, WithBaseURL(srv.URL))
	got := c.AnalyzeLink(context.Background(), "https://example.com", "hint")
	require.Equal(t, "hint", got.SuggestedTitle)
	require.Equal(t, model.CategoryOther, got.Category)
	require.Equal(t, []string{"uncategorized"}, got.Tags)
}

func TestParseEvent(t *testing.T) {
	srv := stubUpstream(t, `{"title":"Dentist","date":"2026-09-02T10:00:00Z","type":"Reminder"}`)
	defer srv.Close()

	c := New("test-key", nil, WithBaseURL(srv.URL))
	draft := c.ParseEvent(context.Background(), "dentist tomorrow at 10", time.Now())
	require.NotNil(t, draft)
	require.Equal(t, "Dentist", draft.Title)
	require.Equal(t, model.EventReminder, draft.Type)
}

func TestParseEvent_NilOnFailureOrMalformed(t *testing.T) {
	srv := failingUpstream(t)
	defer srv.Close()
	c := New("test-key", nil, WithBaseURL(srv.URL))
	require.Nil(t, c.ParseEvent(context.Background(), "gibberish", time.Now()))

	srv2 := stubUpstream(t, `{"title":""}`)
	defer srv2.Close()
	c2 := New("test-key", nil, WithBaseURL(srv2.URL))
	require.Nil(t, c2.ParseEvent(context.Background(), "gibberish", time.Now()))
}

func TestProductivityTip_Fallback(t *testing.T) {
	srv := failingUpstream(t)
	defer srv.Close()

	c := New("test-key", nil, WithBaseURL(srv.URL))
	require.Equal(t, fallbackTip, c.ProductivityTip(context.Background()))
}
