// Package kv holds the byte-oriented persisted store behind the user directory,
// the generation history and the plan catalog.
package kv

import (
	"context"
	"errors"
)

// Fixed keys of the three persisted collections.
const (
	KeyUsers   = "lumina_users"
	KeyHistory = "lumina_history"
	KeyPlans   = "lumina_credit_plans"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("kv: key not found")

// Store is a last-write-wins string-to-bytes map. Implementations must be safe for
// concurrent use; they do not serialize read-modify-write sequences.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}
