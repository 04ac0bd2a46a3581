package notifier

import (
	"context"

	"github.com/goliatone/go-catalog-notifier/internal/di"
	"github.com/goliatone/go-catalog-notifier/pkg/artifacts"
	"github.com/goliatone/go-catalog-notifier/pkg/catalog"
	"github.com/goliatone/go-catalog-notifier/pkg/commands"
	"github.com/goliatone/go-catalog-notifier/pkg/config"
	"github.com/goliatone/go-catalog-notifier/pkg/interfaces/logger"
	imetrics "github.com/goliatone/go-catalog-notifier/pkg/interfaces/metrics"
	"github.com/goliatone/go-catalog-notifier/pkg/ledger"
	"github.com/goliatone/go-catalog-notifier/pkg/metrics"
	"github.com/goliatone/go-catalog-notifier/pkg/secrets"
	"github.com/goliatone/go-catalog-notifier/pkg/sources"
	"github.com/goliatone/go-catalog-notifier/pkg/storage"
)

// ModuleOptions configure the notifier module facade.
type ModuleOptions struct {
	Config    config.Config
	Storage   storage.Providers
	Logger    logger.Logger
	Metrics   imetrics.Collector
	Clients   catalog.Factory
	Artifacts artifacts.Resolver
	Sources   []sources.Source
	Sealer    *secrets.Sealer
}

// Module bundles the container and exposes high-level accessors.
type Module struct {
	container *di.Container
	manager   *Manager
}

// NewModule assembles storage, ledger, dispatcher, reconciler, manager, and commands.
func NewModule(ctx context.Context, opts ModuleOptions) (*Module, error) {
	container, err := di.New(ctx, di.Options{
		Config:    opts.Config,
		Storage:   opts.Storage,
		Logger:    opts.Logger,
		Metrics:   opts.Metrics,
		Clients:   opts.Clients,
		Artifacts: opts.Artifacts,
		Sources:   opts.Sources,
		Sealer:    opts.Sealer,
	})
	if err != nil {
		return nil, err
	}
	manager, err := New(Dependencies{
		Workspace: container.Workspace,
		Commands:  container.Commands,
		Clients:   container.Clients,
		Servers:   container.Server,
		Logger:    container.Logger,
	})
	if err != nil {
		_ = container.Close()
		return nil, err
	}
	return &Module{container: container, manager: manager}, nil
}

// Manager returns the notifier manager.
func (m *Module) Manager() *Manager {
	if m == nil || m.container == nil {
		return nil
	}
	return m.manager
}

// PublishBuild runs the end-of-build notification step.
func (m *Module) PublishBuild(ctx context.Context, project string, build int) (PublishReport, error) {
	return m.Manager().PublishBuild(ctx, project, build)
}

// Ledger returns the delivery ledger.
func (m *Module) Ledger() *ledger.Ledger {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Ledger
}

// Commands returns the go-command registry.
func (m *Module) Commands() *commands.Registry {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Commands
}

// Metrics returns the Prometheus collector, nil when metrics are disabled.
func (m *Module) Metrics() *metrics.Metrics {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Prometheus
}

// Logger returns the module logger.
func (m *Module) Logger() logger.Logger {
	if m == nil || m.container == nil {
		return &logger.Nop{}
	}
	return m.container.Logger
}

// Config returns the effective module configuration.
func (m *Module) Config() config.Config {
	if m == nil || m.container == nil {
		return config.Config{}
	}
	return m.container.Config
}

// Container returns the internal DI container.
// This is exposed for advanced use cases like direct storage access.
func (m *Module) Container() *di.Container {
	if m == nil {
		return nil
	}
	return m.container
}

// Close releases storage connections.
func (m *Module) Close() error {
	if m == nil {
		return nil
	}
	return m.container.Close()
}
