package redisstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/goliatone/go-catalog-notifier/pkg/domain"
	"github.com/goliatone/go-catalog-notifier/pkg/interfaces/store"
)

// DefaultPrefix namespaces ledger keys inside a shared Redis database.
const DefaultPrefix = "catalog-notifier:ledger"

// EntryStore keeps ledger entries as plain string values under
// "<prefix>:<project>:<build>:<key>" and indexes each build's keys in a set
// stored at "<prefix>:<project>:<build>". The project segment is
// query-escaped so it never contains a colon; keys may contain anything.
type EntryStore struct {
	client redis.UniversalClient
	prefix string
}

var _ store.EntryStore = (*EntryStore)(nil)

func NewEntryStore(client redis.UniversalClient, prefix string) *EntryStore {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultPrefix
	}
	return &EntryStore{client: client, prefix: strings.TrimSuffix(prefix, ":")}
}

// Ping checks connectivity with the server.
func (s *EntryStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis store: ping: %w", err)
	}
	return nil
}

func (s *EntryStore) index(build *domain.Build) string {
	return s.prefix + ":" + url.QueryEscape(build.Project) + ":" + strconv.Itoa(build.Number)
}

func (s *EntryStore) key(build *domain.Build, key string) string {
	return s.index(build) + ":" + key
}

func (s *EntryStore) Put(ctx context.Context, build *domain.Build, key string, data []byte) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(build, key), data, 0)
		pipe.SAdd(ctx, s.index(build), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis store: set %s: %w", key, err)
	}
	return nil
}

func (s *EntryStore) Get(ctx context.Context, build *domain.Build, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(build, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis store: get %s: %w", key, err)
	}
	return data, nil
}

func (s *EntryStore) Exists(ctx context.Context, build *domain.Build, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(build, key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis store: exists %s: %w", key, err)
	}
	return n > 0, nil
}

func (s *EntryStore) Delete(ctx context.Context, build *domain.Build, key string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(build, key))
		pipe.SRem(ctx, s.index(build), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis store: del %s: %w", key, err)
	}
	return nil
}

func (s *EntryStore) Keys(ctx context.Context, build *domain.Build, suffix string) ([]string, error) {
	members, err := s.client.SMembers(ctx, s.index(build)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis store: members %s: %w", s.index(build), err)
	}
	keys := make([]string, 0, len(members))
	for _, key := range members {
		if strings.HasSuffix(key, suffix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
