package bunrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-catalog-notifier/pkg/domain"
	"github.com/goliatone/go-catalog-notifier/pkg/interfaces/store"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// EntryStore persists ledger entries as rows of catalog_ledger_entries, one
// row per (project, build, key).
type EntryStore struct {
	base baseRepository[domain.LedgerRecord]
}

var _ store.EntryStore = (*EntryStore)(nil)

func NewEntryStore(db *bun.DB) *EntryStore {
	handlers := repository.ModelHandlers[*domain.LedgerRecord]{
		NewRecord:          func() *domain.LedgerRecord { return &domain.LedgerRecord{} },
		GetID:              func(r *domain.LedgerRecord) uuid.UUID { return r.ID },
		SetID:              func(r *domain.LedgerRecord, id uuid.UUID) { r.ID = id },
		GetIdentifier:      func() string { return "id" },
		GetIdentifierValue: func(r *domain.LedgerRecord) string { return r.ID.String() },
	}
	return &EntryStore{
		base: newBaseRepository[domain.LedgerRecord](db, handlers, func(r *domain.LedgerRecord) *domain.RecordMeta { return &r.RecordMeta }),
	}
}

// EnsureSchema creates the ledger table when missing.
func EnsureSchema(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*domain.LedgerRecord)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return fmt.Errorf("bun store: create ledger table: %w", err)
	}
	return nil
}

func (s *EntryStore) Put(ctx context.Context, build *domain.Build, key string, data []byte) error {
	record := &domain.LedgerRecord{
		Project:     build.Project,
		BuildNumber: build.Number,
		Key:         key,
		Data:        string(data),
	}
	if err := s.base.upsert(ctx, record, "project, build_number, key", "data"); err != nil {
		return fmt.Errorf("bun store: put %s: %w", key, err)
	}
	return nil
}

func (s *EntryStore) Get(ctx context.Context, build *domain.Build, key string) ([]byte, error) {
	record, err := s.base.get(ctx, withBuild(build), withKey(key))
	if err != nil {
		return nil, err
	}
	return []byte(record.Data), nil
}

func (s *EntryStore) Exists(ctx context.Context, build *domain.Build, key string) (bool, error) {
	_, err := s.base.get(ctx, withBuild(build), withKey(key))
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *EntryStore) Delete(ctx context.Context, build *domain.Build, key string) error {
	_, err := s.base.db.NewDelete().
		Model((*domain.LedgerRecord)(nil)).
		Where("project = ?", build.Project).
		Where("build_number = ?", build.Number).
		Where("key = ?", key).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bun store: delete %s: %w", key, err)
	}
	return nil
}

func (s *EntryStore) Keys(ctx context.Context, build *domain.Build, suffix string) ([]string, error) {
	records, err := s.base.list(ctx, withBuild(build), withKeySuffix(suffix), orderedByKey())
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(records))
	for _, record := range records {
		keys = append(keys, record.Key)
	}
	return keys, nil
}
