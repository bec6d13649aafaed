package server

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/nexushub/nexus/internal/collection"
	"github.com/nexushub/nexus/internal/errs"
	"github.com/nexushub/nexus/internal/kvstore"
	"github.com/nexushub/nexus/internal/model"
)

// Wire documents. The published contract exposes server-assigned ids under
// "_id"; clients remap that to their own id field.

type userDoc struct {
	ID        string `json:"_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	PwdHash   string `json:"pwdHash"`
	CreatedAt int64  `json:"createdAt"`
}

type linkDoc struct {
	ID        string         `json:"_id"`
	UserID    string         `json:"userId"`
	URL       string         `json:"url"`
	Title     string         `json:"title"`
	Category  model.Category `json:"category"`
	Tags      []string       `json:"tags"`
	Clicks    int            `json:"clicks"`
	CreatedAt int64          `json:"createdAt"`
}

type passwordDoc struct {
	ID          string                 `json:"_id"`
	UserID      string                 `json:"userId"`
	Site        string                 `json:"site"`
	Username    string                 `json:"username"`
	Password    string                 `json:"password"`
	Category    model.Category         `json:"category"`
	Strength    model.PasswordStrength `json:"strength"`
	LastUpdated int64                  `json:"lastUpdated"`
}

type eventDoc struct {
	ID        string          `json:"_id"`
	UserID    string          `json:"userId"`
	Title     string          `json:"title"`
	Date      string          `json:"date"`
	Type      model.EventType `json:"type"`
	Completed bool            `json:"completed"`
}

// newDocID generates a server-assigned document id.
func newDocID() string {
	return uuid.Must(uuid.NewV4()).String()
}

// storage is the server-side document store, built on the same collection
// engine as the device store but with UUID ids and hashed user credentials.
type storage struct {
	users     *collection.Collection[userDoc]
	links     *collection.Collection[linkDoc]
	passwords *collection.Collection[passwordDoc]
	events    *collection.Collection[eventDoc]
}

func newStorage(kv kvstore.Store) *storage {
	return &storage{
		users: collection.New(kv, "users", func(u *userDoc) *string { return &u.ID }).
			WithIDGenerator(newDocID),
		links: collection.New(kv, "links", func(l *linkDoc) *string { return &l.ID }).
			WithIDGenerator(newDocID),
		passwords: collection.New(kv, "passwords", func(p *passwordDoc) *string { return &p.ID }).
			WithIDGenerator(newDocID),
		events: collection.New(kv, "events", func(e *eventDoc) *string { return &e.ID }).
			WithIDGenerator(newDocID),
	}
}

// createUser registers a new account, enforcing email uniqueness.
func (s *storage) createUser(ctx context.Context, email, name, pwdHash string) (userDoc, error) {
	existing, err := s.users.GetAll(ctx, "")
	if err != nil {
		return userDoc{}, err
	}
	for _, u := range existing {
		if u.Email == email {
			return userDoc{}, fmt.Errorf("user %q: %w", email, errs.ErrAlreadyExists)
		}
	}
	return s.users.Add(ctx, "", userDoc{
		Email:     email,
		Name:      name,
		PwdHash:   pwdHash,
		CreatedAt: time.Now().UnixMilli(),
	})
}

// userByEmail looks up an account by email.
func (s *storage) userByEmail(ctx context.Context, email string) (userDoc, error) {
	users, err := s.users.GetAll(ctx, "")
	if err != nil {
		return userDoc{}, err
	}
	for _, u := range users {
		if u.Email == email {
			return u, nil
		}
	}
	return userDoc{}, errs.ErrNotFound
}
