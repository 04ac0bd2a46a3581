package notifier

import (
	"context"
	"errors"
	"strings"

	"github.com/goliatone/go-catalog-notifier/internal/publisher"
	"github.com/goliatone/go-catalog-notifier/internal/reconciler"
	"github.com/goliatone/go-catalog-notifier/pkg/catalog"
	"github.com/goliatone/go-catalog-notifier/pkg/commands"
	"github.com/goliatone/go-catalog-notifier/pkg/domain"
	"github.com/goliatone/go-catalog-notifier/pkg/interfaces/logger"
)

// Reports returned by the manager.
type (
	PublishReport = publisher.Report
	ResendReport  = reconciler.Report
)

// Workspace loads projects and their build history.
type Workspace interface {
	Projects() ([]string, error)
	Load(name string) (*domain.Project, error)
	LoadBuild(name string, number int) (*domain.Project, *domain.Build, error)
}

// ServerResolver resolves a catalog server by name; empty selects the default.
type ServerResolver func(name string) (domain.ServerConfig, error)

// Manager runs the end-of-build publication and the admin resend flows.
type Manager struct {
	workspace Workspace
	commands  *commands.Registry
	clients   catalog.Factory
	servers   ServerResolver
	logger    logger.Logger
}

// Dependencies bundles services required by the manager.
type Dependencies struct {
	Workspace Workspace
	Commands  *commands.Registry
	Clients   catalog.Factory
	Servers   ServerResolver
	Logger    logger.Logger
}

var (
	ErrMissingWorkspace = errors.New("notifier: workspace is required")
	ErrMissingCommands  = errors.New("notifier: command registry is required")
)

// New constructs the notifier manager.
func New(deps Dependencies) (*Manager, error) {
	if deps.Workspace == nil {
		return nil, ErrMissingWorkspace
	}
	if deps.Commands == nil {
		return nil, ErrMissingCommands
	}
	if deps.Clients == nil {
		deps.Clients = catalog.NewFactory()
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	return &Manager{
		workspace: deps.Workspace,
		commands:  deps.Commands,
		clients:   deps.Clients,
		servers:   deps.Servers,
		logger:    deps.Logger,
	}, nil
}

// Projects lists the projects of the workspace.
func (m *Manager) Projects() ([]string, error) {
	return m.workspace.Projects()
}

// PublishBuild runs the notification step of a finished build.
func (m *Manager) PublishBuild(ctx context.Context, project string, build int) (PublishReport, error) {
	var report PublishReport
	err := m.commands.PublishBuild.Execute(ctx, commands.PublishBuild{Project: project, Build: build, Report: &report})
	return report, err
}

// Resend retries every outstanding notification of a project.
func (m *Manager) Resend(ctx context.Context, project string) (ResendReport, error) {
	var report ResendReport
	err := m.commands.ResendProject.Execute(ctx, commands.ResendProject{Project: project, Report: &report})
	return report, err
}

// Pending lists the pending records a resend would retry.
func (m *Manager) Pending(ctx context.Context, project string) (commands.PendingListing, error) {
	var listing commands.PendingListing
	err := m.commands.ListPending.Execute(ctx, commands.ListPending{Project: project, Result: &listing})
	return listing, err
}

// Ping probes a catalog server and returns the settings it used.
func (m *Manager) Ping(ctx context.Context, server string) (domain.ServerConfig, bool, error) {
	if m.servers == nil {
		return domain.ServerConfig{}, false, errors.New("notifier: no server resolver configured")
	}
	cfg, err := m.servers(strings.TrimSpace(server))
	if err != nil {
		return domain.ServerConfig{}, false, err
	}
	ok := m.clients(cfg).IsAvailable(ctx)
	m.logger.Info("catalog ping",
		logger.Field{Key: "server", Value: cfg.Name},
		logger.Field{Key: "address", Value: cfg.Address()},
		logger.Field{Key: "available", Value: ok},
	)
	return cfg, ok, nil
}
