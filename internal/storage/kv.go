// Package storage holds the on-device key-value store and the transaction
// collection persisted in it.
package storage

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("key not found")
	ErrClosed   = errors.New("storage closed")
)

// KV is a whole-value key-value store. Put replaces the previous value.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}
