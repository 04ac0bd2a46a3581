package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"iter"

	"github.com/goliatone/go-catalog-notifier/pkg/domain"
	"github.com/goliatone/go-catalog-notifier/pkg/interfaces/logger"
	"github.com/goliatone/go-catalog-notifier/pkg/interfaces/metrics"
	"github.com/goliatone/go-catalog-notifier/pkg/interfaces/store"
)

// ErrMissingStore indicates the ledger was built without an entry store.
var ErrMissingStore = errors.New("ledger: entry store is required")

// Dependencies wires the ledger to its backing store.
type Dependencies struct {
	Store   store.EntryStore
	Logger  logger.Logger
	Metrics metrics.Collector
}

// Ledger records, per build, which notifications were delivered and which
// still owe a resend. Write failures are logged and swallowed: losing a
// ledger write must never abort the build that triggered it.
type Ledger struct {
	store   store.EntryStore
	logger  logger.Logger
	metrics metrics.Collector
}

// New validates dependencies and returns a ledger.
func New(deps Dependencies) (*Ledger, error) {
	if deps.Store == nil {
		return nil, ErrMissingStore
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	if deps.Metrics == nil {
		deps.Metrics = &metrics.Nop{}
	}
	return &Ledger{
		store:   deps.Store,
		logger:  deps.Logger,
		metrics: deps.Metrics,
	}, nil
}

// MarkSent writes the sent marker for id into the build scope. Writing it
// twice leaves a single marker.
func (l *Ledger) MarkSent(ctx context.Context, id domain.Identity, build *domain.Build) {
	if err := id.Validate(); err != nil {
		l.fail("mark_sent", build, id, err)
		return
	}
	if err := l.store.Put(ctx, build, id.SentKey(), nil); err != nil {
		l.fail("mark_sent", build, id, err)
	}
}

// IsSent reports whether a sent marker exists. Unreadable storage reads as
// not sent.
func (l *Ledger) IsSent(ctx context.Context, id domain.Identity, build *domain.Build) bool {
	ok, err := l.store.Exists(ctx, build, id.SentKey())
	if err != nil {
		l.fail("is_sent", build, id, err)
		return false
	}
	return ok
}

// SavePending persists n as a pending resend record in the build scope,
// replacing any earlier record for the same identity.
func (l *Ledger) SavePending(ctx context.Context, id domain.Identity, n domain.Notification, build *domain.Build) {
	if err := id.Validate(); err != nil {
		l.fail("save_pending", build, id, err)
		return
	}
	data, err := json.Marshal(n)
	if err != nil {
		l.fail("save_pending", build, id, err)
		return
	}
	if err := l.store.Put(ctx, build, id.PendingKey(), data); err != nil {
		l.fail("save_pending", build, id, err)
	}
}

// DiscardPending removes the pending record for id from every build of the
// project. A failure on one build does not stop the sweep.
func (l *Ledger) DiscardPending(ctx context.Context, id domain.Identity, project *domain.Project) {
	if project == nil {
		return
	}
	key := id.PendingKey()
	for _, build := range project.Builds {
		if err := l.store.Delete(ctx, build, key); err != nil {
			l.fail("discard_pending", build, id, err)
		}
	}
}

// ListPending yields every decodable pending record of the project, builds in
// history order and keys sorted within a build. Records that fail to decode
// are logged and skipped. The sequence re-reads storage on every iteration.
func (l *Ledger) ListPending(ctx context.Context, project *domain.Project) iter.Seq2[*domain.Build, domain.Notification] {
	return func(yield func(*domain.Build, domain.Notification) bool) {
		if project == nil {
			return
		}
		for _, build := range project.Builds {
			if ctx.Err() != nil {
				return
			}
			keys, err := l.store.Keys(ctx, build, domain.PendingSuffix)
			if err != nil {
				l.fail("list_pending", build, domain.Identity{}, err)
				continue
			}
			for _, key := range keys {
				n, ok := l.decode(ctx, build, key)
				if !ok {
					continue
				}
				if !yield(build, n) {
					return
				}
			}
		}
	}
}

func (l *Ledger) decode(ctx context.Context, build *domain.Build, key string) (domain.Notification, bool) {
	data, err := l.store.Get(ctx, build, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			l.logger.Warn("ledger: pending record unreadable",
				logger.Field{Key: "build", Value: build.String()},
				logger.Field{Key: "key", Value: key},
				logger.Field{Key: "error", Value: err},
			)
		}
		return domain.Notification{}, false
	}
	var n domain.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		l.logger.Warn("ledger: skipping malformed pending record",
			logger.Field{Key: "build", Value: build.String()},
			logger.Field{Key: "key", Value: key},
			logger.Field{Key: "error", Value: err},
		)
		return domain.Notification{}, false
	}
	return n, true
}

func (l *Ledger) fail(op string, build *domain.Build, id domain.Identity, err error) {
	l.metrics.Record(metrics.OpLedgerError, map[string]string{"operation": op})
	fields := []logger.Field{
		{Key: "operation", Value: op},
		{Key: "build", Value: build.String()},
		{Key: "error", Value: err},
	}
	if id != (domain.Identity{}) {
		fields = append(fields, logger.Field{Key: "notification", Value: id.String()})
	}
	l.logger.Error("ledger: storage operation failed", fields...)
}
