package commands

import (
	command "github.com/goliatone/go-command"

	internalcommands "github.com/goliatone/go-catalog-notifier/internal/commands"
	"github.com/goliatone/go-catalog-notifier/internal/publisher"
	"github.com/goliatone/go-catalog-notifier/internal/reconciler"
	"github.com/goliatone/go-catalog-notifier/internal/workspace"
	"github.com/goliatone/go-catalog-notifier/pkg/interfaces/logger"
	"github.com/goliatone/go-catalog-notifier/pkg/ledger"
)

// Re-export request types so consumers need not import internal packages.
type (
	PublishBuild   = internalcommands.PublishBuild
	ResendProject  = internalcommands.ResendProject
	ListPending    = internalcommands.ListPending
	PendingListing = internalcommands.PendingListing
	PendingBuild   = internalcommands.PendingBuild
)

// Registry exposes go-command compatible handlers backed by the module services.
type Registry struct {
	Catalog       *internalcommands.Catalog
	PublishBuild  command.Commander[PublishBuild]
	ResendProject command.Commander[ResendProject]
	ListPending   command.Commander[ListPending]
}

// Dependencies mirror the internal command dependencies but keep them public.
type Dependencies struct {
	Workspace  *workspace.Workspace
	Publisher  *publisher.Service
	Reconciler *reconciler.Service
	Ledger     *ledger.Ledger
	Logger     logger.Logger
}

// New builds the registry using the provided dependencies.
func New(deps Dependencies) (*Registry, error) {
	internal := internalcommands.Dependencies{Logger: deps.Logger}
	// Typed nil pointers would pass the interface checks, so only set real values.
	if deps.Workspace != nil {
		internal.Projects = deps.Workspace
	}
	if deps.Publisher != nil {
		internal.Publisher = deps.Publisher
	}
	if deps.Reconciler != nil {
		internal.Resender = deps.Reconciler
	}
	if deps.Ledger != nil {
		internal.Pending = deps.Ledger
	}
	catalog, err := internalcommands.NewCatalog(internal)
	if err != nil {
		return nil, err
	}
	return &Registry{
		Catalog:       catalog,
		PublishBuild:  catalog.PublishBuild,
		ResendProject: catalog.ResendProject,
		ListPending:   catalog.ListPending,
	}, nil
}

// Commanders returns every handler so callers can register them with go-command registries.
func (r *Registry) Commanders() []any {
	if r == nil {
		return nil
	}
	return []any{
		r.PublishBuild,
		r.ResendProject,
		r.ListPending,
	}
}
