// Package store defines the bucketed key-value storage used under the
// content persistence slot. The default implementation is bbolt; sqlite is
// available for deployments that already back up a single .db file.
package store

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store: closed")

// Store is an abstract key-value storage interface backed by buckets.
// Get returns a nil value and nil error for a missing bucket or key.
type Store interface {
	Get(ctx context.Context, bucket, key []byte) ([]byte, error)
	Set(ctx context.Context, bucket, key, value []byte) error
	Delete(ctx context.Context, bucket, key []byte) error
	Snapshot(ctx context.Context, bucket []byte) (map[string][]byte, error)
	Close() error
}
