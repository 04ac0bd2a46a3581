package storage

import (
	"context"
	"database/sql"
	"fmt"

	bunrepo "github.com/goliatone/go-catalog-notifier/internal/storage/bun"
	filestore "github.com/goliatone/go-catalog-notifier/internal/storage/file"
	"github.com/goliatone/go-catalog-notifier/internal/storage/memory"
	redisstore "github.com/goliatone/go-catalog-notifier/internal/storage/redis"
	"github.com/goliatone/go-catalog-notifier/pkg/domain"
	"github.com/goliatone/go-catalog-notifier/pkg/interfaces/store"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Providers exposes the ledger backend needed by services.
type Providers struct {
	Entries store.EntryStore
	closers []func() error
}

// Close releases connections opened by the provider constructors.
func (p Providers) Close() error {
	var first error
	for _, fn := range p.closers {
		if err := fn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NewMemoryProviders returns a ledger backed by in-memory maps.
func NewMemoryProviders() Providers {
	return Providers{Entries: memory.NewEntryStore()}
}

// NewFileProviders stores ledger entries as files inside each build's report folder.
func NewFileProviders() Providers {
	return Providers{Entries: filestore.NewEntryStore()}
}

// NewBunProviders wires the Bun-backed ledger using go-repository-bun.
// The caller owns the *bun.DB lifecycle.
func NewBunProviders(db *bun.DB) Providers {
	if db == nil {
		panic("storage: bun DB is required")
	}

	// Register models so go-persistence-bun migrations can pick them up.
	persistence.RegisterModel((*domain.LedgerRecord)(nil))

	return Providers{Entries: bunrepo.NewEntryStore(db)}
}

// OpenSQLite opens an embedded SQLite ledger, creating its table when needed.
func OpenSQLite(ctx context.Context, dsn string) (Providers, error) {
	sqldb, err := sql.Open(sqliteshim.DriverName(), dsn)
	if err != nil {
		return Providers{}, fmt.Errorf("storage: open sqlite: %w", err)
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())
	if err := bunrepo.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return Providers{}, err
	}
	providers := NewBunProviders(db)
	providers.closers = append(providers.closers, db.Close)
	return providers, nil
}

// NewRedisProviders stores ledger entries in Redis under prefix.
func NewRedisProviders(client redis.UniversalClient, prefix string) Providers {
	if client == nil {
		panic("storage: redis client is required")
	}
	return Providers{Entries: redisstore.NewEntryStore(client, prefix)}
}

// OpenRedis connects to addr and verifies the connection.
func OpenRedis(ctx context.Context, addr, password string, db int, prefix string) (Providers, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	entries := redisstore.NewEntryStore(client, prefix)
	if err := entries.Ping(ctx); err != nil {
		_ = client.Close()
		return Providers{}, err
	}
	return Providers{Entries: entries, closers: []func() error{client.Close}}, nil
}
