package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/goliatone/go-catalog-notifier/pkg/domain"
)

// ErrNotFound reports a locator with no artifact behind it.
var ErrNotFound = errors.New("artifacts: artifact not found")

// Resolver loads the payload a notification refers to.
type Resolver interface {
	Resolve(ctx context.Context, locator string) (Artifact, error)
}

// Artifact is a resolved payload document.
type Artifact struct {
	Locator string
	Data    []byte
}

// Module decodes the artifact as a module report.
func (a Artifact) Module() (domain.Module, error) {
	var module domain.Module
	if err := json.Unmarshal(a.Data, &module); err != nil {
		return domain.Module{}, fmt.Errorf("artifacts: decode module report %s: %w", a.Locator, err)
	}
	if module.Name == "" || module.Version == "" {
		return domain.Module{}, fmt.Errorf("artifacts: module report %s has no name or version", a.Locator)
	}
	return module, nil
}

// BuildInfo decodes the artifact as a flat build-info document.
func (a Artifact) BuildInfo() (domain.BuildInfo, error) {
	var info domain.BuildInfo
	if err := json.Unmarshal(a.Data, &info); err != nil {
		return nil, fmt.Errorf("artifacts: decode build info %s: %w", a.Locator, err)
	}
	return info, nil
}

// FileStore resolves locators as file paths. Relative locators are joined to Root.
type FileStore struct {
	Root string
}

var _ Resolver = FileStore{}

func NewFileStore(root string) FileStore {
	return FileStore{Root: root}
}

func (s FileStore) Resolve(ctx context.Context, locator string) (Artifact, error) {
	if strings.TrimSpace(locator) == "" {
		return Artifact{}, ErrNotFound
	}
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}
	path := locator
	if !filepath.IsAbs(path) && s.Root != "" {
		path = filepath.Join(s.Root, path)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Artifact{}, fmt.Errorf("%w: %s", ErrNotFound, locator)
	}
	if err != nil {
		return Artifact{}, fmt.Errorf("artifacts: read %s: %w", locator, err)
	}
	return Artifact{Locator: locator, Data: data}, nil
}

// ReadModule resolves and decodes a module report in one step.
func ReadModule(ctx context.Context, r Resolver, locator string) (domain.Module, error) {
	artifact, err := r.Resolve(ctx, locator)
	if err != nil {
		return domain.Module{}, err
	}
	return artifact.Module()
}
