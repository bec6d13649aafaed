package collection

import (
	"context"

	"github.com/nexushub/nexus/internal/kvstore"
)

// Collection binds the generic primitives to one collection name, a record
// id accessor, and a storage medium. Every domain repository (links,
// passwords, events, chats, users) is an instance of this type.
type Collection[T any] struct {
	store kvstore.Store
	name  string
	id    func(*T) *string
	gen   func() string
}

// New constructs a collection. id must return a pointer to the record's id
// field so Add can assign and Update/Delete can match.
func New[T any](store kvstore.Store, name string, id func(*T) *string) *Collection[T] {
	return &Collection[T]{store: store, name: name, id: id, gen: NextID}
}

// WithIDGenerator replaces the id generator used by Add. The API server uses
// this to assign UUID document ids instead of timestamp-derived ones.
func (c *Collection[T]) WithIDGenerator(gen func() string) *Collection[T] {
	c.gen = gen
	return c
}

// Name returns the collection name used in storage keys.
func (c *Collection[T]) Name() string { return c.name }

// Add assigns a fresh id to rec (any caller-supplied id is overwritten),
// prepends it to the user's sequence (head = most recent), persists, and
// returns the stored record. A failed save leaves the prior blob intact.
func (c *Collection[T]) Add(ctx context.Context, userID string, rec T) (T, error) {
	var zero T
	*c.id(&rec) = c.gen()

	key := Key(c.name, userID)
	items, err := Load[T](ctx, c.store, key)
	if err != nil {
		return zero, err
	}
	items = append([]T{rec}, items...)
	if err := Save(ctx, c.store, key, items); err != nil {
		return zero, err
	}
	return rec, nil
}

// GetAll returns the user's full sequence in stored order (most recent
// first); no implicit sort.
func (c *Collection[T]) GetAll(ctx context.Context, userID string) ([]T, error) {
	return Load[T](ctx, c.store, Key(c.name, userID))
}

// Update replaces the first record whose id matches rec's id, preserving its
// position. When no record matches, nothing is written and no error is
// returned (tolerant update by contract).
func (c *Collection[T]) Update(ctx context.Context, userID string, rec T) error {
	key := Key(c.name, userID)
	items, err := Load[T](ctx, c.store, key)
	if err != nil {
		return err
	}
	want := *c.id(&rec)
	for i := range items {
		if *c.id(&items[i]) == want {
			items[i] = rec
			return Save(ctx, c.store, key, items)
		}
	}
	return nil
}

// Delete removes every record matching id (at most one in practice) and
// persists the filtered sequence. Deleting an absent id is a no-op and
// performs no write.
func (c *Collection[T]) Delete(ctx context.Context, userID, id string) error {
	key := Key(c.name, userID)
	items, err := Load[T](ctx, c.store, key)
	if err != nil {
		return err
	}
	kept := items[:0:0]
	for i := range items {
		if *c.id(&items[i]) != id {
			kept = append(kept, items[i])
		}
	}
	if len(kept) == len(items) {
		return nil
	}
	return Save(ctx, c.store, key, kept)
}

// Replace overwrites the user's entire sequence. Used by the retention
// policy, which rewrites the chat collection wholesale.
func (c *Collection[T]) Replace(ctx context.Context, userID string, items []T) error {
	return Save(ctx, c.store, Key(c.name, userID), items)
}
