package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-catalog-notifier/pkg/domain"
	"github.com/goliatone/go-catalog-notifier/pkg/interfaces/store"
)

// EntryStore keeps ledger entries in maps keyed by build.
type EntryStore struct {
	mu      sync.RWMutex
	records map[string]map[string][]byte
}

var _ store.EntryStore = (*EntryStore)(nil)

func NewEntryStore() *EntryStore {
	return &EntryStore{records: make(map[string]map[string][]byte)}
}

func (s *EntryStore) Put(ctx context.Context, build *domain.Build, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	scope, ok := s.records[build.Key()]
	if !ok {
		scope = make(map[string][]byte)
		s.records[build.Key()] = scope
	}
	scope[key] = append([]byte(nil), data...)
	return nil
}

func (s *EntryStore) Get(ctx context.Context, build *domain.Build, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.records[build.Key()][key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *EntryStore) Exists(ctx context.Context, build *domain.Build, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.records[build.Key()][key]
	return ok, nil
}

func (s *EntryStore) Delete(ctx context.Context, build *domain.Build, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records[build.Key()], key)
	return nil
}

func (s *EntryStore) Keys(ctx context.Context, build *domain.Build, suffix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for key := range s.records[build.Key()] {
		if strings.HasSuffix(key, suffix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Count returns the number of entries stored for a build, for tests and diagnostics.
func (s *EntryStore) Count(build *domain.Build) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records[build.Key()])
}
