package bunrepo

import (
	"context"
	"time"

	"github.com/goliatone/go-catalog-notifier/pkg/domain"
	"github.com/goliatone/go-catalog-notifier/pkg/interfaces/store"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type baseRepository[T any] struct {
	repo    repository.Repository[*T]
	db      *bun.DB
	extract func(*T) *domain.RecordMeta
}

func newBaseRepository[T any](db *bun.DB, handlers repository.ModelHandlers[*T], extract func(*T) *domain.RecordMeta) baseRepository[T] {
	return baseRepository[T]{
		repo:    repository.MustNewRepository[*T](db, handlers),
		db:      db,
		extract: extract,
	}
}

// upsert inserts record or, when a row already holds the conflict columns,
// overwrites the listed columns in the same statement.
func (r baseRepository[T]) upsert(ctx context.Context, record *T, conflict string, columns ...string) error {
	base := r.extract(record)
	base.EnsureID()
	now := time.Now().UTC()
	if base.CreatedAt.IsZero() {
		base.CreatedAt = now
	}
	base.UpdatedAt = now

	q := r.db.NewInsert().Model(record).On("CONFLICT (" + conflict + ") DO UPDATE")
	for _, column := range append(columns, "updated_at") {
		q = q.Set(column + " = EXCLUDED." + column)
	}
	_, err := q.Exec(ctx)
	return mapError(err)
}

func (r baseRepository[T]) get(ctx context.Context, criteria ...repository.SelectCriteria) (*T, error) {
	record, err := r.repo.Get(ctx, criteria...)
	if err != nil {
		return nil, mapError(err)
	}
	return record, nil
}

// list returns every matching row; the repository's default page size is lifted.
func (r baseRepository[T]) list(ctx context.Context, criteria ...repository.SelectCriteria) ([]*T, error) {
	records, _, err := r.repo.List(ctx, append(criteria, unlimited())...)
	if err != nil {
		return nil, mapError(err)
	}
	return records, nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if repository.IsRecordNotFound(err) {
		return store.ErrNotFound
	}
	return err
}
