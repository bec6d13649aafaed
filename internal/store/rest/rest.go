// Package rest implements the persistence facade against the network API
// server. Server-assigned "_id" document ids are remapped to the client-side
// id field, the bearer token is persisted in the same key-value medium the
// local store uses, and chat history stays on-device: the published API has
// no chat surface, so chat and cleanup calls delegate to an embedded local
// store over the same medium.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nexushub/nexus/internal/collection"
	"github.com/nexushub/nexus/internal/errs"
	"github.com/nexushub/nexus/internal/kvstore"
	"github.com/nexushub/nexus/internal/model"
	"github.com/nexushub/nexus/internal/store"
	"github.com/nexushub/nexus/internal/store/local"
)

// tokenKey persists the bearer credential between sessions; sessionKey is
// shared with the local backend so a session survives a backend switch.
var (
	tokenKey   = collection.Key("token", "")
	sessionKey = collection.Key("active_user", "")
)

// Client is the network-backed facade implementation.
type Client struct {
	baseURL string
	http    *http.Client
	kv      kvstore.Store
	log     *zap.Logger
	chats   *local.Store
}

var _ store.Store = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New constructs a REST facade against baseURL, keeping token, session and
// chat history in kv.
func New(baseURL string, kv kvstore.Store, log *zap.Logger, opts ...Option) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		kv:      kv,
		log:     log,
		chats:   local.New(kv, log, local.WithLatency(0)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// --- wire documents (server contract, "_id" ids) ---

type linkDoc struct {
	ID        string         `json:"_id,omitempty"`
	UserID    string         `json:"userId,omitempty"`
	URL       string         `json:"url"`
	Title     string         `json:"title"`
	Category  model.Category `json:"category"`
	Tags      []string       `json:"tags"`
	Clicks    int            `json:"clicks"`
	CreatedAt int64          `json:"createdAt"`
}

func (d linkDoc) toModel() model.LinkItem {
	return model.LinkItem{
		ID: d.ID, UserID: d.UserID, URL: d.URL, Title: d.Title,
		Category: d.Category, Tags: d.Tags, Clicks: d.Clicks, CreatedAt: d.CreatedAt,
	}
}

type passwordDoc struct {
	ID          string                 `json:"_id,omitempty"`
	UserID      string                 `json:"userId,omitempty"`
	Site        string                 `json:"site"`
	Username    string                 `json:"username"`
	Password    string                 `json:"password"`
	Category    model.Category         `json:"category"`
	Strength    model.PasswordStrength `json:"strength"`
	LastUpdated int64                  `json:"lastUpdated"`
}

func (d passwordDoc) toModel() model.PasswordItem {
	return model.PasswordItem{
		ID: d.ID, UserID: d.UserID, Site: d.Site, Username: d.Username,
		Password: d.Password, Category: d.Category, Strength: d.Strength,
		LastUpdated: d.LastUpdated,
	}
}

type eventDoc struct {
	ID        string          `json:"_id,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	Title     string          `json:"title"`
	Date      string          `json:"date"`
	Type      model.EventType `json:"type"`
	Completed bool            `json:"completed"`
}

func (d eventDoc) toModel() model.CalendarEvent {
	return model.CalendarEvent{
		ID: d.ID, UserID: d.UserID, Title: d.Title, Date: d.Date,
		Type: d.Type, Completed: d.Completed,
	}
}

type authResponse struct {
	User  model.User `json:"user"`
	Token string     `json:"token"`
}

type apiError struct {
	Message string `json:"message"`
}

// do performs one API call, attaching the stored bearer token when authed.
// A 401 clears the stored token and session before reporting unauthorized.
func (c *Client) do(ctx context.Context, method, path string, body, out any, authed bool) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if authed {
		token, ok, err := c.kv.Get(ctx, tokenKey)
		if err != nil {
			return err
		}
		if ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// stale or missing credential: drop the session so the caller
		// lands back on the sign-in screen
		_ = c.kv.Delete(ctx, tokenKey)
		_ = c.chats.Logout(ctx)
		return fmt.Errorf("%s %s: %w", method, path, errs.ErrUnauthorized)
	}
	if resp.StatusCode == http.StatusConflict {
		return fmt.Errorf("%s %s: %w", method, path, errs.ErrAlreadyExists)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var ae apiError
		if json.NewDecoder(resp.Body).Decode(&ae) == nil && ae.Message != "" {
			return fmt.Errorf("%s %s: %s", method, path, ae.Message)
		}
		return fmt.Errorf("%s %s: request failed: %s", method, path, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// authenticate runs one auth call and persists the returned token + session.
func (c *Client) authenticate(ctx context.Context, path string, body any) (*model.User, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, path, body, &resp, false); err != nil {
		return nil, err
	}
	if err := c.kv.Set(ctx, tokenKey, resp.Token); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(resp.User)
	if err != nil {
		return nil, err
	}
	if err := c.kv.Set(ctx, sessionKey, string(raw)); err != nil {
		return nil, err
	}
	u := resp.User
	u.Password = ""
	return &u, nil
}

// Register creates an account on the server.
func (c *Client) Register(ctx context.Context, email, password, name string) (*model.User, error) {
	return c.authenticate(ctx, "/api/auth/register",
		map[string]string{"email": email, "password": password, "name": name})
}

// Login authenticates against the server. Bad credentials come back as a
// 401, which do() maps to the unauthorized sentinel.
func (c *Client) Login(ctx context.Context, email, password string) (*model.User, error) {
	return c.authenticate(ctx, "/api/auth/login",
		map[string]string{"email": email, "password": password})
}

// Logout clears the bearer token and the session record.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.kv.Delete(ctx, tokenKey); err != nil {
		return err
	}
	return c.chats.Logout(ctx)
}

// ActiveUser returns the persisted session, if any.
func (c *Client) ActiveUser(ctx context.Context) (*model.User, bool, error) {
	return c.chats.ActiveUser(ctx)
}

// LoadUserData fetches the remote dataset, then runs the on-device chat
// cleanup pass just as the local backend does.
func (c *Client) LoadUserData(ctx context.Context, userID string) (*model.UserData, error) {
	links, err := c.GetLinks(ctx, userID)
	if err != nil {
		return nil, err
	}
	passwords, err := c.GetPasswords(ctx, userID)
	if err != nil {
		return nil, err
	}
	events, err := c.GetEvents(ctx, userID)
	if err != nil {
		return nil, err
	}
	if removed, err := c.chats.CleanupStorage(ctx, userID, false); err != nil {
		c.log.Warn("chat cleanup failed", zap.String("userID", userID), zap.Error(err))
	} else if removed > 0 {
		c.log.Info("chat history pruned", zap.String("userID", userID), zap.Int("removed", removed))
	}
	return &model.UserData{Links: links, Passwords: passwords, Events: events}, nil
}

// --- links ---

// GetLinks fetches the user's links; the server scopes by token subject.
func (c *Client) GetLinks(ctx context.Context, _ string) ([]model.LinkItem, error) {
	var docs []linkDoc
	if err := c.do(ctx, http.MethodGet, "/api/links", nil, &docs, true); err != nil {
		return nil, err
	}
	items := make([]model.LinkItem, len(docs))
	for i, d := range docs {
		items[i] = d.toModel()
	}
	return items, nil
}

// AddLink creates the link server-side; the server assigns the id.
func (c *Client) AddLink(ctx context.Context, link model.LinkItem) (*model.LinkItem, error) {
	doc := linkDoc{
		URL: link.URL, Title: link.Title, Category: link.Category,
		Tags: link.Tags, Clicks: link.Clicks, CreatedAt: link.CreatedAt,
	}
	var created linkDoc
	if err := c.do(ctx, http.MethodPost, "/api/links", doc, &created, true); err != nil {
		return nil, err
	}
	out := created.toModel()
	return &out, nil
}

// DeleteLink removes the link by id.
func (c *Client) DeleteLink(ctx context.Context, id, _ string) error {
	return c.do(ctx, http.MethodDelete, "/api/links/"+id, nil, nil, true)
}

// --- passwords ---

func (c *Client) GetPasswords(ctx context.Context, _ string) ([]model.PasswordItem, error) {
	var docs []passwordDoc
	if err := c.do(ctx, http.MethodGet, "/api/passwords", nil, &docs, true); err != nil {
		return nil, err
	}
	items := make([]model.PasswordItem, len(docs))
	for i, d := range docs {
		items[i] = d.toModel()
	}
	return items, nil
}

func (c *Client) AddPassword(ctx context.Context, item model.PasswordItem) (*model.PasswordItem, error) {
	doc := passwordDoc{
		Site: item.Site, Username: item.Username, Password: item.Password,
		Category: item.Category, Strength: item.Strength, LastUpdated: item.LastUpdated,
	}
	var created passwordDoc
	if err := c.do(ctx, http.MethodPost, "/api/passwords", doc, &created, true); err != nil {
		return nil, err
	}
	out := created.toModel()
	return &out, nil
}

func (c *Client) DeletePassword(ctx context.Context, id, _ string) error {
	return c.do(ctx, http.MethodDelete, "/api/passwords/"+id, nil, nil, true)
}

// --- events ---

func (c *Client) GetEvents(ctx context.Context, _ string) ([]model.CalendarEvent, error) {
	var docs []eventDoc
	if err := c.do(ctx, http.MethodGet, "/api/events", nil, &docs, true); err != nil {
		return nil, err
	}
	items := make([]model.CalendarEvent, len(docs))
	for i, d := range docs {
		items[i] = d.toModel()
	}
	return items, nil
}

func (c *Client) AddEvent(ctx context.Context, event model.CalendarEvent) (*model.CalendarEvent, error) {
	doc := eventDoc{Title: event.Title, Date: event.Date, Type: event.Type, Completed: event.Completed}
	var created eventDoc
	if err := c.do(ctx, http.MethodPost, "/api/events", doc, &created, true); err != nil {
		return nil, err
	}
	out := created.toModel()
	return &out, nil
}

func (c *Client) UpdateEvent(ctx context.Context, event model.CalendarEvent) error {
	doc := eventDoc{Title: event.Title, Date: event.Date, Type: event.Type, Completed: event.Completed}
	return c.do(ctx, http.MethodPut, "/api/events/"+event.ID, doc, nil, true)
}

func (c *Client) DeleteEvent(ctx context.Context, id, _ string) error {
	return c.do(ctx, http.MethodDelete, "/api/events/"+id, nil, nil, true)
}

// --- chats (on-device even with the remote backend) ---

func (c *Client) GetChats(ctx context.Context, userID string) ([]model.ChatMessage, error) {
	return c.chats.GetChats(ctx, userID)
}

func (c *Client) AddChat(ctx context.Context, msg model.ChatMessage, userID string) (*model.ChatMessage, error) {
	return c.chats.AddChat(ctx, msg, userID)
}

func (c *Client) CleanupStorage(ctx context.Context, userID string, forceAll bool) (int, error) {
	return c.chats.CleanupStorage(ctx, userID, forceAll)
}
