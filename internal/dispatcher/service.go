package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-catalog-notifier/pkg/artifacts"
	"github.com/goliatone/go-catalog-notifier/pkg/catalog"
	"github.com/goliatone/go-catalog-notifier/pkg/domain"
	"github.com/goliatone/go-catalog-notifier/pkg/interfaces/logger"
	"github.com/goliatone/go-catalog-notifier/pkg/interfaces/metrics"
)

// Ledger is the slice of the delivery ledger the dispatcher writes to.
type Ledger interface {
	MarkSent(ctx context.Context, id domain.Identity, build *domain.Build)
	SavePending(ctx context.Context, id domain.Identity, n domain.Notification, build *domain.Build)
	DiscardPending(ctx context.Context, id domain.Identity, project *domain.Project)
}

// Dependencies groups the collaborators required by the dispatcher.
type Dependencies struct {
	Ledger    Ledger
	Clients   catalog.Factory
	Artifacts artifacts.Resolver
	Logger    logger.Logger
	Metrics   metrics.Collector
}

// Service delivers notifications to the catalog and keeps the ledger in step.
type Service struct {
	ledger    Ledger
	clients   catalog.Factory
	artifacts artifacts.Resolver
	logger    logger.Logger
	metrics   metrics.Collector
	now       func() time.Time
}

var (
	ErrMissingLedger    = errors.New("dispatcher: ledger is required")
	ErrMissingClients   = errors.New("dispatcher: catalog client factory is required")
	ErrMissingArtifacts = errors.New("dispatcher: artifact resolver is required")
	ErrMissingBuild     = errors.New("dispatcher: build and project are required")
)

// New builds the dispatcher service.
func New(deps Dependencies) (*Service, error) {
	if deps.Ledger == nil {
		return nil, ErrMissingLedger
	}
	if deps.Clients == nil {
		return nil, ErrMissingClients
	}
	if deps.Artifacts == nil {
		return nil, ErrMissingArtifacts
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	if deps.Metrics == nil {
		deps.Metrics = &metrics.Nop{}
	}
	return &Service{
		ledger:    deps.Ledger,
		clients:   deps.Clients,
		artifacts: deps.Artifacts,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		now:       time.Now,
	}, nil
}

// Send delivers one notification. A postponed delivery returns a *DeliveryError.
func (s *Service) Send(ctx context.Context, n domain.Notification, build *domain.Build, project *domain.Project) error {
	_, err := s.Dispatch(ctx, n, build, project)
	return err
}

// Dispatch delivers one notification and reports how it ended. A missing
// payload is a skip: it logs, returns no error, and leaves no pending state.
func (s *Service) Dispatch(ctx context.Context, n domain.Notification, build *domain.Build, project *domain.Project) (domain.Outcome, error) {
	if build == nil || project == nil {
		return "", ErrMissingBuild
	}
	call, ok, err := s.prepare(ctx, n)
	if err != nil {
		return s.postpone(ctx, n, build, project, communicationFailure(n.String(), err))
	}
	if !ok {
		s.logger.Info("notification skipped, payload not found",
			logger.Field{Key: "notification", Value: n.String()},
			logger.Field{Key: "payload", Value: n.PayloadLocator},
			logger.Field{Key: "build", Value: build.String()},
		)
		s.record(n, domain.OutcomeSkipped)
		return domain.OutcomeSkipped, nil
	}

	client := s.clients(project.Server)
	if !client.IsAvailable(ctx) {
		return s.postpone(ctx, n, build, project, unavailable(n.String()))
	}

	user, password := project.Server.User()
	started := s.now()
	err = call(ctx, client, user, password)
	s.metrics.Observe(metrics.OpDeliveryDuration, s.now().Sub(started).Seconds(), map[string]string{"action": string(n.Action)})
	if err != nil {
		return s.postpone(ctx, n, build, project, communicationFailure(n.String(), err))
	}

	id := n.Identity()
	s.ledger.MarkSent(ctx, id, build)
	s.ledger.DiscardPending(ctx, id, project)
	s.logger.Info("notification delivered",
		logger.Field{Key: "notification", Value: n.String()},
		logger.Field{Key: "build", Value: build.String()},
		logger.Field{Key: "server", Value: project.Server.Address()},
	)
	s.record(n, domain.OutcomeDelivered)
	return domain.OutcomeDelivered, nil
}

type remoteCall func(ctx context.Context, client catalog.Client, user, password string) error

// prepare resolves the payload and binds the kind-specific catalog call.
// ok is false when a required payload is absent.
func (s *Service) prepare(ctx context.Context, n domain.Notification) (remoteCall, bool, error) {
	if n.Action.RequiresPayload() && !n.HasPayload() {
		return nil, false, nil
	}
	switch n.Action {
	case domain.ActionPostModule:
		artifact, err := s.resolve(ctx, n)
		if artifact == nil || err != nil {
			return nil, false, err
		}
		module, err := artifact.Module()
		if err != nil {
			return nil, false, err
		}
		return func(ctx context.Context, client catalog.Client, user, password string) error {
			return client.PostModule(ctx, module, user, password)
		}, true, nil
	case domain.ActionPostBuildInfo:
		artifact, err := s.resolve(ctx, n)
		if artifact == nil || err != nil {
			return nil, false, err
		}
		info, err := artifact.BuildInfo()
		if err != nil {
			return nil, false, err
		}
		return func(ctx context.Context, client catalog.Client, user, password string) error {
			return client.PostBuildInfo(ctx, n.ModuleName, n.ModuleVersion, info, user, password)
		}, true, nil
	case domain.ActionPromote:
		return func(ctx context.Context, client catalog.Client, user, password string) error {
			return client.PromoteModule(ctx, n.ModuleName, n.ModuleVersion, user, password)
		}, true, nil
	default:
		return nil, false, fmt.Errorf("dispatcher: unsupported action %q", n.Action)
	}
}

func (s *Service) resolve(ctx context.Context, n domain.Notification) (*artifacts.Artifact, error) {
	artifact, err := s.artifacts.Resolve(ctx, n.PayloadLocator)
	if errors.Is(err, artifacts.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &artifact, nil
}

// postpone clears older pending records for the identity, stores this one on
// build, and surfaces the delivery error.
func (s *Service) postpone(ctx context.Context, n domain.Notification, build *domain.Build, project *domain.Project, derr *DeliveryError) (domain.Outcome, error) {
	id := n.Identity()
	s.ledger.DiscardPending(ctx, id, project)
	s.ledger.SavePending(ctx, id, n, build)
	fields := []logger.Field{
		{Key: "notification", Value: n.String()},
		{Key: "build", Value: build.String()},
		{Key: "kind", Value: string(derr.Kind)},
		{Key: "code", Value: derr.Code},
	}
	if derr.Cause != nil {
		fields = append(fields, logger.Field{Key: "error", Value: derr.Cause})
	}
	s.logger.Warn("notification postponed", fields...)
	s.record(n, domain.OutcomePostponed)
	return domain.OutcomePostponed, derr
}

func (s *Service) record(n domain.Notification, outcome domain.Outcome) {
	s.metrics.Record(metrics.OpDelivery, map[string]string{
		"action":  string(n.Action),
		"outcome": string(outcome),
	})
}
