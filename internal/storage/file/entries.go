package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"

	"github.com/goliatone/go-catalog-notifier/pkg/domain"
	"github.com/goliatone/go-catalog-notifier/pkg/interfaces/store"
)

const lockName = ".ledger.lock"

// EntryStore keeps one file per ledger entry inside the build report folder.
// Writers take an advisory lock on the folder so concurrent processes on the
// same host never interleave partial writes.
type EntryStore struct {
	perm fs.FileMode
}

var _ store.EntryStore = (*EntryStore)(nil)

func NewEntryStore() *EntryStore {
	return &EntryStore{perm: 0o644}
}

func (s *EntryStore) dir(build *domain.Build) (string, error) {
	if build == nil || strings.TrimSpace(build.ReportDir) == "" {
		return "", errors.New("file store: build report folder is not set")
	}
	return build.ReportDir, nil
}

func (s *EntryStore) path(build *domain.Build, key string) (string, error) {
	dir, err := s.dir(build)
	if err != nil {
		return "", err
	}
	if key == "" || key == lockName || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("file store: invalid key %q", key)
	}
	return filepath.Join(dir, key), nil
}

func (s *EntryStore) withLock(dir string, fn func() error) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("file store: create %s: %w", dir, err)
	}
	lock := flock.New(filepath.Join(dir, lockName))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("file store: lock %s: %w", dir, err)
	}
	defer lock.Unlock()
	return fn()
}

func (s *EntryStore) Put(ctx context.Context, build *domain.Build, key string, data []byte) error {
	target, err := s.path(build, key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(target)
	return s.withLock(dir, func() error {
		tmp, err := os.CreateTemp(dir, ".tmp-*")
		if err != nil {
			return fmt.Errorf("file store: temp file: %w", err)
		}
		defer os.Remove(tmp.Name())
		if _, err := tmp.Write(data); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("file store: write %s: %w", key, err)
		}
		if err := tmp.Close(); err != nil {
			return fmt.Errorf("file store: close %s: %w", key, err)
		}
		if err := os.Chmod(tmp.Name(), s.perm); err != nil {
			return fmt.Errorf("file store: chmod %s: %w", key, err)
		}
		if err := os.Rename(tmp.Name(), target); err != nil {
			return fmt.Errorf("file store: rename %s: %w", key, err)
		}
		return nil
	})
}

func (s *EntryStore) Get(ctx context.Context, build *domain.Build, key string) ([]byte, error) {
	target, err := s.path(build, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("file store: read %s: %w", key, err)
	}
	return data, nil
}

func (s *EntryStore) Exists(ctx context.Context, build *domain.Build, key string) (bool, error) {
	target, err := s.path(build, key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("file store: stat %s: %w", key, err)
	}
	return true, nil
}

func (s *EntryStore) Delete(ctx context.Context, build *domain.Build, key string) error {
	target, err := s.path(build, key)
	if err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Dir(target)); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return s.withLock(filepath.Dir(target), func() error {
		if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("file store: remove %s: %w", key, err)
		}
		return nil
	})
}

func (s *EntryStore) Keys(ctx context.Context, build *domain.Build, suffix string) ([]string, error) {
	dir, err := s.dir(build)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file store: list %s: %w", dir, err)
	}
	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == lockName || !strings.HasSuffix(name, suffix) {
			continue
		}
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys, nil
}
