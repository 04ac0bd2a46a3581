package store

import (
	"context"
	"errors"

	"github.com/goliatone/go-catalog-notifier/pkg/domain"
)

// ErrNotFound is returned when a record cannot be located.
var ErrNotFound = errors.New("store: not found")

// EntryStore persists opaque ledger entries in a storage scope private to a
// build. Keys are unique per build; Put overwrites.
type EntryStore interface {
	Put(ctx context.Context, build *domain.Build, key string, data []byte) error
	Get(ctx context.Context, build *domain.Build, key string) ([]byte, error)
	Exists(ctx context.Context, build *domain.Build, key string) (bool, error)
	// Delete removes the entry; deleting a missing key is not an error.
	Delete(ctx context.Context, build *domain.Build, key string) error
	// Keys lists the build's keys ending with suffix, sorted.
	Keys(ctx context.Context, build *domain.Build, suffix string) ([]string, error)
}
