package di

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"

	"github.com/goliatone/go-catalog-notifier/internal/dispatcher"
	"github.com/goliatone/go-catalog-notifier/internal/publisher"
	"github.com/goliatone/go-catalog-notifier/internal/reconciler"
	"github.com/goliatone/go-catalog-notifier/internal/workspace"
	"github.com/goliatone/go-catalog-notifier/pkg/artifacts"
	"github.com/goliatone/go-catalog-notifier/pkg/catalog"
	"github.com/goliatone/go-catalog-notifier/pkg/commands"
	"github.com/goliatone/go-catalog-notifier/pkg/config"
	"github.com/goliatone/go-catalog-notifier/pkg/domain"
	"github.com/goliatone/go-catalog-notifier/pkg/interfaces/logger"
	imetrics "github.com/goliatone/go-catalog-notifier/pkg/interfaces/metrics"
	"github.com/goliatone/go-catalog-notifier/pkg/ledger"
	"github.com/goliatone/go-catalog-notifier/pkg/metrics"
	"github.com/goliatone/go-catalog-notifier/pkg/secrets"
	"github.com/goliatone/go-catalog-notifier/pkg/sources"
	"github.com/goliatone/go-catalog-notifier/pkg/storage"
)

// Options configure the DI container. Zero values are replaced by
// implementations derived from Config.
type Options struct {
	Config    config.Config
	Storage   storage.Providers
	Logger    logger.Logger
	Metrics   imetrics.Collector
	Clients   catalog.Factory
	Artifacts artifacts.Resolver
	Sources   []sources.Source
	Sealer    *secrets.Sealer
}

// Container wires storage, services, commands and admin collaborators.
type Container struct {
	Config     config.Config
	Storage    storage.Providers
	Logger     logger.Logger
	Metrics    imetrics.Collector
	Prometheus *metrics.Metrics
	Clients    catalog.Factory
	Ledger     *ledger.Ledger
	Dispatcher *dispatcher.Service
	Reconciler *reconciler.Service
	Publisher  *publisher.Service
	Workspace  *workspace.Workspace
	Commands   *commands.Registry

	sealer *secrets.Sealer
}

func isZeroConfig(cfg config.Config) bool {
	return reflect.ValueOf(cfg).IsZero()
}

// New constructs the container using the supplied options. Storage opened
// here is released by Close.
func New(ctx context.Context, opts Options) (*Container, error) {
	cfg := opts.Config
	if isZeroConfig(cfg) {
		cfg = config.Defaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	lgr := opts.Logger
	if lgr == nil {
		lgr = logger.NewWriter(os.Stderr, cfg.Logging.Format, cfg.Logging.Level)
	}

	var prom *metrics.Metrics
	collector := opts.Metrics
	if collector == nil {
		if cfg.Metrics.Enabled {
			prom = metrics.New()
			collector = prom
		} else {
			collector = &imetrics.Nop{}
		}
	}

	sealer := opts.Sealer
	if sealer == nil && needsSealer(cfg) {
		s, err := secrets.SealerFromEnv(cfg.Secrets.KeyEnv)
		if err != nil {
			return nil, fmt.Errorf("di: sealed catalog password: %w", err)
		}
		sealer = s
	}

	providers := opts.Storage
	if providers.Entries == nil {
		p, err := OpenStorage(ctx, cfg.Ledger)
		if err != nil {
			return nil, err
		}
		providers = p
	}

	clients := opts.Clients
	if clients == nil {
		clients = catalog.NewFactory(catalog.WithLogger(lgr))
	}

	resolver := opts.Artifacts
	if resolver == nil {
		resolver = artifacts.NewFileStore(cfg.Workspace.Root)
	}

	srcs := opts.Sources
	if srcs == nil {
		srcs = sources.Defaults(resolver)
	}

	c := &Container{
		Config:     cfg,
		Storage:    providers,
		Logger:     lgr,
		Metrics:    collector,
		Prometheus: prom,
		Clients:    clients,
		sealer:     sealer,
	}

	fail := func(err error) (*Container, error) {
		if opts.Storage.Entries == nil {
			_ = providers.Close()
		}
		return nil, err
	}

	ledgerSvc, err := ledger.New(ledger.Dependencies{
		Store:   providers.Entries,
		Logger:  lgr,
		Metrics: collector,
	})
	if err != nil {
		return fail(err)
	}

	dispatcherSvc, err := dispatcher.New(dispatcher.Dependencies{
		Ledger:    ledgerSvc,
		Clients:   clients,
		Artifacts: resolver,
		Logger:    lgr,
		Metrics:   collector,
	})
	if err != nil {
		return fail(err)
	}

	reconcilerSvc, err := reconciler.New(reconciler.Dependencies{
		Ledger:     ledgerSvc,
		Dispatcher: dispatcherSvc,
		Sources:    srcs,
		Logger:     lgr,
		Metrics:    collector,
	})
	if err != nil {
		return fail(err)
	}

	publisherSvc, err := publisher.New(publisher.Dependencies{
		Dispatcher: dispatcherSvc,
		Sources:    srcs,
		Logger:     lgr,
	})
	if err != nil {
		return fail(err)
	}

	ws, err := workspace.New(workspace.Options{
		Root:         cfg.Workspace.Root,
		ReportFolder: cfg.Workspace.ReportFolder,
		Servers:      c.Server,
		Logger:       lgr,
	})
	if err != nil {
		return fail(err)
	}

	cmdRegistry, err := commands.New(commands.Dependencies{
		Workspace:  ws,
		Publisher:  publisherSvc,
		Reconciler: reconcilerSvc,
		Ledger:     ledgerSvc,
		Logger:     lgr,
	})
	if err != nil {
		return fail(err)
	}

	c.Ledger = ledgerSvc
	c.Dispatcher = dispatcherSvc
	c.Reconciler = reconcilerSvc
	c.Publisher = publisherSvc
	c.Workspace = ws
	c.Commands = cmdRegistry
	return c, nil
}

// Server resolves a configured catalog server, opening sealed passwords.
// An empty name selects the default server.
func (c *Container) Server(name string) (domain.ServerConfig, error) {
	raw, resolved, err := c.Config.Server(name)
	if err != nil {
		return domain.ServerConfig{}, err
	}
	server := domain.ServerConfig{
		Name:           resolved,
		Scheme:         raw.Scheme,
		Host:           raw.Host,
		Port:           raw.Port,
		TimeoutSeconds: raw.TimeoutSeconds,
	}
	password := raw.Password
	if raw.PasswordSealed != "" {
		if c.sealer == nil {
			return domain.ServerConfig{}, fmt.Errorf("di: server %q has a sealed password but no key is loaded", resolved)
		}
		password, err = c.sealer.Open(raw.PasswordSealed)
		if err != nil {
			return domain.ServerConfig{}, fmt.Errorf("di: open password of server %q: %w", resolved, err)
		}
	}
	if raw.Username != "" {
		server.Credentials = &domain.Credentials{Username: raw.Username, Password: password}
	}
	c.Logger.Debug("catalog server resolved",
		logger.Field{Key: "server", Value: resolved},
		logger.Field{Key: "address", Value: server.Address()},
		logger.Field{Key: "username", Value: raw.Username},
		logger.Field{Key: "password", Value: secrets.Mask(password)},
	)
	return server, nil
}

// Close releases storage connections.
func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	return c.Storage.Close()
}

// OpenStorage opens the ledger backend selected by the driver setting.
func OpenStorage(ctx context.Context, cfg config.LedgerConfig) (storage.Providers, error) {
	switch cfg.Driver {
	case config.DriverFile, "":
		return storage.NewFileProviders(), nil
	case config.DriverMemory:
		return storage.NewMemoryProviders(), nil
	case config.DriverSQLite:
		return storage.OpenSQLite(ctx, cfg.DSN)
	case config.DriverRedis:
		return storage.OpenRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
	default:
		return storage.Providers{}, errors.New("di: unsupported ledger driver " + cfg.Driver)
	}
}

func needsSealer(cfg config.Config) bool {
	for _, srv := range cfg.Catalog.Servers {
		if srv.PasswordSealed != "" {
			return true
		}
	}
	return false
}
