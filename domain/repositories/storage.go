package repositories

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// KeyValueStore is the durable string store every persisted record goes
// through. Keys are namespaced by convention: "profile:<deviceId>",
// "memories:<deviceId>", "theme", "session-user". Each key's write is
// independently durable; there is no cross-key transaction.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Remove(ctx context.Context, key string) error
	Close() error
}
