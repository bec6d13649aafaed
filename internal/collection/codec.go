// Package collection implements user-scoped record collections over a
// key-value store: one serialized blob per (collection, user) pair, with
// generic add/get/update/delete primitives on top.
package collection

import (
	"context"
	"encoding/json"

	"github.com/nexushub/nexus/internal/kvstore"
)

// keyPrefix namespaces every collection key in the shared medium.
const keyPrefix = "nexus"

// codecVersion tags the stored envelope so the on-disk format can evolve
// without corrupting previously stored data.
const codecVersion = 1

// Key derives the storage key for a (collection, userID) pair. An empty
// userID yields the unscoped form used by the user directory and session
// records. Distinct pairs never collide: the prefix and name contain no
// user-controlled input, and ids never contain the separator.
func Key(name, userID string) string {
	if userID == "" {
		return keyPrefix + ":" + name
	}
	return keyPrefix + ":" + name + ":" + userID
}

// envelope is the versioned wire form of a stored collection.
type envelope struct {
	V     int             `json:"v"`
	Items json.RawMessage `json:"items"`
}

// Load reads and decodes the collection under key. An absent key or a blob
// that cannot be decoded reads as an empty sequence; only backend failures
// are errors. Blobs written before the envelope was introduced (a bare JSON
// array) are still accepted.
func Load[T any](ctx context.Context, store kvstore.Store, key string) ([]T, error) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err == nil && env.Items != nil {
		var items []T
		if err := json.Unmarshal(env.Items, &items); err == nil {
			return items, nil
		}
		return nil, nil
	}

	// legacy bare array
	var items []T
	if err := json.Unmarshal([]byte(raw), &items); err == nil {
		return items, nil
	}
	return nil, nil
}

// Save encodes items into the versioned envelope and writes it under key,
// propagating errs.ErrStorageFull from the store unchanged.
func Save[T any](ctx context.Context, store kvstore.Store, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	blob, err := json.Marshal(items)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(envelope{V: codecVersion, Items: blob})
	if err != nil {
		return err
	}
	return store.Set(ctx, key, string(raw))
}
