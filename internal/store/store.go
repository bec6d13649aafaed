// Package store declares the persistence facade consumed by the UI layer.
// Implementations are interchangeable: a local device store and a REST client
// share this contract, so callers behave identically against either backend.
package store

import (
	"context"

	"github.com/nexushub/nexus/internal/model"
)

// Store is the typed persistence surface. All operations are blocking and
// context-aware; local implementations still suspend the caller for a fixed
// simulated latency so loading states behave the same as against a network.
type Store interface {
	// Register creates an account. Fails with errs.ErrAlreadyExists when the
	// email is taken. The returned user never carries the password.
	Register(ctx context.Context, email, password, name string) (*model.User, error)
	// Login authenticates by exact email/password match. Fails with
	// errs.ErrUnauthorized on any mismatch; the error never includes the
	// stored password.
	Login(ctx context.Context, email, password string) (*model.User, error)
	// Logout removes the session record only; collections are untouched.
	Logout(ctx context.Context) error
	// ActiveUser returns the persisted session, if any.
	ActiveUser(ctx context.Context) (*model.User, bool, error)

	// LoadUserData fetches links, passwords and events in one call and then
	// runs the automatic chat cleanup pass as a side effect.
	LoadUserData(ctx context.Context, userID string) (*model.UserData, error)

	GetLinks(ctx context.Context, userID string) ([]model.LinkItem, error)
	AddLink(ctx context.Context, link model.LinkItem) (*model.LinkItem, error)
	DeleteLink(ctx context.Context, id, userID string) error

	GetPasswords(ctx context.Context, userID string) ([]model.PasswordItem, error)
	AddPassword(ctx context.Context, item model.PasswordItem) (*model.PasswordItem, error)
	DeletePassword(ctx context.Context, id, userID string) error

	GetEvents(ctx context.Context, userID string) ([]model.CalendarEvent, error)
	AddEvent(ctx context.Context, event model.CalendarEvent) (*model.CalendarEvent, error)
	// UpdateEvent replaces the stored event with the same id in place; a
	// missing id is a silent no-op.
	UpdateEvent(ctx context.Context, event model.CalendarEvent) error
	DeleteEvent(ctx context.Context, id, userID string) error

	// GetChats returns the transcript sorted ascending by timestamp,
	// regardless of insertion order.
	GetChats(ctx context.Context, userID string) ([]model.ChatMessage, error)
	AddChat(ctx context.Context, msg model.ChatMessage, userID string) (*model.ChatMessage, error)

	// CleanupStorage prunes the chat collection and returns the number of
	// removed messages; with forceAll it wipes the collection and returns a
	// nonzero signal.
	CleanupStorage(ctx context.Context, userID string, forceAll bool) (int, error)
}
