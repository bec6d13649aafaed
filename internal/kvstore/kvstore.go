// Package kvstore provides the key-value medium underneath the collection
// layer. Backends enforce a byte quota and report exhaustion through
// errs.ErrStorageFull; a missing key is a normal, non-error outcome on read.
package kvstore

import "context"

// DefaultQuota is the byte budget over keys and values, matching the
// classic 5 MiB browser storage allowance the layer emulates.
const DefaultQuota = 5 << 20

// Store is a persistent string-to-string medium.
type Store interface {
	// Set writes value under key. Fails with errs.ErrStorageFull (possibly
	// wrapped) when the write would exceed the quota; the previously stored
	// value must remain intact in that case.
	Set(ctx context.Context, key, value string) error

	// Get reads the value under key. ok is false when the key is absent;
	// err reports backend failures only, never absence.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Delete removes key. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error
}
