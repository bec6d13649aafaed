// Package local implements the persistence facade on the device-local
// key-value medium: one serialized collection per (name, user) key, an
// unscoped user directory, a persisted session record, and the chat
// retention policy wired into data loads.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/nexushub/nexus/internal/collection"
	"github.com/nexushub/nexus/internal/errs"
	"github.com/nexushub/nexus/internal/kvstore"
	"github.com/nexushub/nexus/internal/model"
	"github.com/nexushub/nexus/internal/retention"
	"github.com/nexushub/nexus/internal/store"
)

// DefaultLatency is the simulated per-operation suspension. It exists so UI
// loading states are exercised identically against local and remote backends.
const DefaultLatency = 300 * time.Millisecond

// sessionKey holds the signed-in user record; unscoped, one per device.
var sessionKey = collection.Key("active_user", "")

// Store is the local backend. It is not safe for concurrent writers to the
// same collection; the design assumes a single active session per user.
type Store struct {
	kv      kvstore.Store
	log     *zap.Logger
	latency time.Duration
	now     func() time.Time
	policy  retention.Policy

	users     *collection.Collection[model.User]
	links     *collection.Collection[model.LinkItem]
	passwords *collection.Collection[model.PasswordItem]
	events    *collection.Collection[model.CalendarEvent]
	chats     *collection.Collection[model.ChatMessage]
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLatency overrides the simulated latency; zero disables it (tests).
func WithLatency(d time.Duration) Option {
	return func(s *Store) { s.latency = d }
}

// WithClock overrides the time source used by the retention policy.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithPolicy overrides the chat retention policy.
func WithPolicy(p retention.Policy) Option {
	return func(s *Store) { s.policy = p }
}

// New constructs a local store over kv.
func New(kv kvstore.Store, log *zap.Logger, opts ...Option) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		kv:      kv,
		log:     log,
		latency: DefaultLatency,
		now:     time.Now,
		policy:  retention.Default(),

		users:     collection.New(kv, "users", func(u *model.User) *string { return &u.ID }),
		links:     collection.New(kv, "links", func(l *model.LinkItem) *string { return &l.ID }),
		passwords: collection.New(kv, "passwords", func(p *model.PasswordItem) *string { return &p.ID }),
		events:    collection.New(kv, "events", func(e *model.CalendarEvent) *string { return &e.ID }),
		chats:     collection.New(kv, "chats", func(m *model.ChatMessage) *string { return &m.ID }),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// wait suspends for the simulated latency, honoring cancellation.
func (s *Store) wait(ctx context.Context) error {
	if s.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// sanitize returns a copy of u with the password stripped.
func sanitize(u model.User) *model.User {
	u.Password = ""
	return &u
}

// --- auth shim ---

// Register creates a user in the unscoped directory, persists the session,
// and returns the record without its password.
func (s *Store) Register(ctx context.Context, email, password, name string) (*model.User, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if email == "" || password == "" {
		return nil, errors.New("validation: empty email/password")
	}

	existing, err := s.users.GetAll(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, u := range existing {
		if u.Email == email {
			return nil, fmt.Errorf("register %q: %w", email, errs.ErrAlreadyExists)
		}
	}

	created, err := s.users.Add(ctx, "", model.User{Email: email, Password: password, Name: name})
	if err != nil {
		return nil, err
	}
	s.log.Info("user registered", zap.String("userID", created.ID))

	user := sanitize(created)
	if err := s.saveSession(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login authenticates by exact email/password match and persists the session.
func (s *Store) Login(ctx context.Context, email, password string) (*model.User, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	users, err := s.users.GetAll(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Email == email && u.Password == password {
			user := sanitize(u)
			if err := s.saveSession(ctx, user); err != nil {
				return nil, err
			}
			return user, nil
		}
	}
	return nil, errs.ErrUnauthorized
}

// Logout removes the session record; the user's collections stay in place.
func (s *Store) Logout(ctx context.Context) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	return s.kv.Delete(ctx, sessionKey)
}

// ActiveUser returns the persisted session, treating a malformed record as
// absent.
func (s *Store) ActiveUser(ctx context.Context) (*model.User, bool, error) {
	raw, ok, err := s.kv.Get(ctx, sessionKey)
	if err != nil || !ok {
		return nil, false, err
	}
	var u model.User
	if json.Unmarshal([]byte(raw), &u) != nil || u.ID == "" {
		return nil, false, nil
	}
	return sanitize(u), true, nil
}

func (s *Store) saveSession(ctx context.Context, u *model.User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, sessionKey, string(raw))
}

// --- typed repositories ---

// LoadUserData fetches the user's full dataset, then runs the automatic chat
// cleanup pass. A cleanup failure is logged, not surfaced: the load itself
// succeeded and the pass will run again on the next load.
func (s *Store) LoadUserData(ctx context.Context, userID string) (*model.UserData, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	links, err := s.links.GetAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	passwords, err := s.passwords.GetAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	events, err := s.events.GetAll(ctx, userID)
	if err != nil {
		return nil, err
	}

	if removed, err := s.cleanup(ctx, userID, false); err != nil {
		s.log.Warn("chat cleanup failed", zap.String("userID", userID), zap.Error(err))
	} else if removed > 0 {
		s.log.Info("chat history pruned", zap.String("userID", userID), zap.Int("removed", removed))
	}

	return &model.UserData{Links: links, Passwords: passwords, Events: events}, nil
}

// GetLinks returns the user's links, most recent first.
func (s *Store) GetLinks(ctx context.Context, userID string) ([]model.LinkItem, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.links.GetAll(ctx, userID)
}

// AddLink stores a link under its owner and returns it with the assigned id.
func (s *Store) AddLink(ctx context.Context, link model.LinkItem) (*model.LinkItem, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if link.UserID == "" {
		return nil, errors.New("validation: empty userId")
	}
	stored, err := s.links.Add(ctx, link.UserID, link)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// DeleteLink removes the link by id; a missing id is a no-op.
func (s *Store) DeleteLink(ctx context.Context, id, userID string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	return s.links.Delete(ctx, userID, id)
}

// GetPasswords returns the user's password entries, most recent first.
func (s *Store) GetPasswords(ctx context.Context, userID string) ([]model.PasswordItem, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.passwords.GetAll(ctx, userID)
}

// AddPassword stores a password entry and returns it with the assigned id.
func (s *Store) AddPassword(ctx context.Context, item model.PasswordItem) (*model.PasswordItem, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if item.UserID == "" {
		return nil, errors.New("validation: empty userId")
	}
	stored, err := s.passwords.Add(ctx, item.UserID, item)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// DeletePassword removes the entry by id; a missing id is a no-op.
func (s *Store) DeletePassword(ctx context.Context, id, userID string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	return s.passwords.Delete(ctx, userID, id)
}

// GetEvents returns the user's events, most recent first.
func (s *Store) GetEvents(ctx context.Context, userID string) ([]model.CalendarEvent, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.events.GetAll(ctx, userID)
}

// AddEvent stores an event and returns it with the assigned id.
func (s *Store) AddEvent(ctx context.Context, event model.CalendarEvent) (*model.CalendarEvent, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if event.UserID == "" {
		return nil, errors.New("validation: empty userId")
	}
	stored, err := s.events.Add(ctx, event.UserID, event)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// UpdateEvent replaces the stored event in place; a missing id is a silent
// no-op by contract.
func (s *Store) UpdateEvent(ctx context.Context, event model.CalendarEvent) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	return s.events.Update(ctx, event.UserID, event)
}

// DeleteEvent removes the event by id; a missing id is a no-op.
func (s *Store) DeleteEvent(ctx context.Context, id, userID string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	return s.events.Delete(ctx, userID, id)
}

// GetChats returns the transcript sorted ascending by timestamp. Unlike the
// other collections, chats are displayed chronologically, not head-first.
func (s *Store) GetChats(ctx context.Context, userID string) ([]model.ChatMessage, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	msgs, err := s.chats.GetAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Timestamp < msgs[j].Timestamp })
	return msgs, nil
}

// AddChat appends a message to the user's transcript.
func (s *Store) AddChat(ctx context.Context, msg model.ChatMessage, userID string) (*model.ChatMessage, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, errors.New("validation: empty userId")
	}
	stored, err := s.chats.Add(ctx, userID, msg)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// CleanupStorage prunes the user's chat history. With forceAll the entire
// collection is wiped and a nonzero signal is returned; otherwise the
// retention policy runs and the count of removed messages is returned,
// writing nothing when nothing changed.
func (s *Store) CleanupStorage(ctx context.Context, userID string, forceAll bool) (int, error) {
	if err := s.wait(ctx); err != nil {
		return 0, err
	}
	return s.cleanup(ctx, userID, forceAll)
}

func (s *Store) cleanup(ctx context.Context, userID string, forceAll bool) (int, error) {
	msgs, err := s.chats.GetAll(ctx, userID)
	if err != nil {
		return 0, err
	}

	if forceAll {
		if err := s.chats.Replace(ctx, userID, nil); err != nil {
			return 0, err
		}
		if len(msgs) == 0 {
			return 1, nil // nonzero signal even when already empty
		}
		return len(msgs), nil
	}

	kept, removed := s.policy.Apply(msgs, s.now())
	if removed == 0 {
		return 0, nil
	}
	if err := s.chats.Replace(ctx, userID, kept); err != nil {
		return 0, err
	}
	return removed, nil
}
