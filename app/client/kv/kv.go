package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get for a key that was never set. A missing
// key is ordinary state, not a storage fault.
var ErrNotFound = errors.New("key not found")

// Store is the key-value contract backing conversation history and the
// document registry. List pushes are atomic on the server side, so two
// concurrent appends to the same key never overwrite each other.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error

	ListPush(ctx context.Context, key string, value []byte) error
	ListRange(ctx context.Context, key string) ([][]byte, error)
	ListRem(ctx context.Context, key string, value []byte) error
}
