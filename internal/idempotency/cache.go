// Package idempotency maps client-supplied idempotency keys to the response payload
// produced by the first successful request carrying that key.
package idempotency

import (
	"context"
	"errors"
)

// ErrAlreadyExists is returned by Store when another writer already recorded the key.
// The earlier payload stands.
var ErrAlreadyExists = errors.New("idempotency key already recorded")

// Cache is a first-writer-wins key/payload store. Payloads are opaque.
type Cache interface {
	Lookup(ctx context.Context, key string) (payload []byte, found bool, err error)
	Store(ctx context.Context, key string, payload []byte) error
}
