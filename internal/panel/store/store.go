// Package store is the key-value collaborator behind every panel record.
// Keys are opaque strings, values JSON blobs; consistency across related keys
// is a protocol concern of the callers, not of the store.
package store

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Get for absent keys.
var ErrKeyNotFound = errors.New("key not found")

// Store is the minimal contract the panel needs: per-key atomic get/set/delete
// plus a batch that commits multiple writes together where the backend
// supports it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Batch() Batch
}

// Batch accumulates writes and deletes and commits them in one Write call.
// Implementations without a multi-key primitive apply operations in the order
// they were queued.
type Batch interface {
	Set(key string, value []byte)
	Delete(key string)
	Write(ctx context.Context) error
}
