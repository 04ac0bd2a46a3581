package reconciler

import (
	"context"
	"errors"
	"iter"
	"sort"

	"github.com/goliatone/go-catalog-notifier/pkg/domain"
	"github.com/goliatone/go-catalog-notifier/pkg/interfaces/logger"
	"github.com/goliatone/go-catalog-notifier/pkg/interfaces/metrics"
	"github.com/goliatone/go-catalog-notifier/pkg/sources"
)

// Ledger is the read side of the delivery ledger plus pending cleanup.
type Ledger interface {
	IsSent(ctx context.Context, id domain.Identity, build *domain.Build) bool
	ListPending(ctx context.Context, project *domain.Project) iter.Seq2[*domain.Build, domain.Notification]
	DiscardPending(ctx context.Context, id domain.Identity, project *domain.Project)
}

// Dispatcher re-submits a notification.
type Dispatcher interface {
	Dispatch(ctx context.Context, n domain.Notification, build *domain.Build, project *domain.Project) (domain.Outcome, error)
}

// Dependencies wires the reconciler.
type Dependencies struct {
	Ledger     Ledger
	Dispatcher Dispatcher
	Sources    []sources.Source
	Logger     logger.Logger
	Metrics    metrics.Collector
}

var (
	ErrMissingLedger     = errors.New("reconciler: ledger is required")
	ErrMissingDispatcher = errors.New("reconciler: dispatcher is required")
	ErrMissingProject    = errors.New("reconciler: project is required")
)

// Service recovers delivery obligations lost to earlier failures.
type Service struct {
	ledger     Ledger
	dispatcher Dispatcher
	sources    []sources.Source
	logger     logger.Logger
	metrics    metrics.Collector
}

func New(deps Dependencies) (*Service, error) {
	if deps.Ledger == nil {
		return nil, ErrMissingLedger
	}
	if deps.Dispatcher == nil {
		return nil, ErrMissingDispatcher
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	if deps.Metrics == nil {
		deps.Metrics = &metrics.Nop{}
	}
	return &Service{
		ledger:     deps.Ledger,
		dispatcher: deps.Dispatcher,
		sources:    append([]sources.Source(nil), deps.Sources...),
		logger:     deps.Logger,
		metrics:    deps.Metrics,
	}, nil
}

// Origin tells where a retry candidate came from.
type Origin string

const (
	OriginFresh   Origin = "fresh"
	OriginPending Origin = "pending"
)

// Candidate is one obligation scheduled for retry.
type Candidate struct {
	Notification domain.Notification
	Build        *domain.Build
	Origin       Origin
}

// Item reports the retry of one identity.
type Item struct {
	Identity domain.Identity
	Build    *domain.Build
	Origin   Origin
	Outcome  domain.Outcome
	Err      error
}

// Report lists retries in the order they were attempted.
type Report struct {
	Project string
	Items   []Item
}

// Count returns how many items ended with outcome.
func (r Report) Count(outcome domain.Outcome) int {
	n := 0
	for _, item := range r.Items {
		if item.Outcome == outcome {
			n++
		}
	}
	return n
}

// Plan merges fresh candidates and persisted pending records into one list
// ordered by build history. Fresh candidates only come from builds the
// project would publish. One candidate is kept per identity: a fresh one
// beats a pending one, and a later build beats an earlier one. Identities
// already sent on any build are dropped and their leftover pending records
// discarded.
func (s *Service) Plan(ctx context.Context, project *domain.Project) ([]Candidate, error) {
	if project == nil {
		return nil, ErrMissingProject
	}

	chosen := map[domain.Identity]Candidate{}
	offer := func(c Candidate) {
		id := c.Notification.Identity()
		current, ok := chosen[id]
		if !ok || prefer(project, c, current) {
			chosen[id] = c
		}
	}

	enabled := sources.Enabled(s.sources, project)
	for _, build := range project.Builds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !project.Publishable(build) {
			continue
		}
		for _, src := range enabled {
			n, ok, err := src.Candidate(ctx, build)
			if err != nil {
				s.logger.Warn("reconciler: source failed",
					logger.Field{Key: "source", Value: src.Name()},
					logger.Field{Key: "build", Value: build.String()},
					logger.Field{Key: "error", Value: err},
				)
				continue
			}
			if !ok || s.ledger.IsSent(ctx, n.Identity(), build) {
				continue
			}
			offer(Candidate{Notification: n, Build: build, Origin: OriginFresh})
		}
	}

	pending := 0
	for build, n := range s.ledger.ListPending(ctx, project) {
		pending++
		offer(Candidate{Notification: n, Build: build, Origin: OriginPending})
	}
	s.metrics.Observe(metrics.OpPendingObserved, float64(pending), map[string]string{"project": project.Name})

	plan := make([]Candidate, 0, len(chosen))
	for id, c := range chosen {
		if s.sentAnywhere(ctx, id, project) {
			s.ledger.DiscardPending(ctx, id, project)
			continue
		}
		plan = append(plan, c)
	}
	sort.SliceStable(plan, func(i, j int) bool {
		pi, pj := project.Position(plan[i].Build), project.Position(plan[j].Build)
		if pi != pj {
			return pi < pj
		}
		return plan[i].Notification.String() < plan[j].Notification.String()
	})
	return plan, nil
}

// Reconcile re-submits every planned candidate through the dispatcher. A
// failed retry is reported and does not stop the others.
func (s *Service) Reconcile(ctx context.Context, project *domain.Project) (Report, error) {
	plan, err := s.Plan(ctx, project)
	if err != nil {
		return Report{}, err
	}
	report := Report{Project: project.Name, Items: make([]Item, 0, len(plan))}
	for _, c := range plan {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		outcome, err := s.dispatcher.Dispatch(ctx, c.Notification, c.Build, project)
		report.Items = append(report.Items, Item{
			Identity: c.Notification.Identity(),
			Build:    c.Build,
			Origin:   c.Origin,
			Outcome:  outcome,
			Err:      err,
		})
	}
	s.logger.Info("reconciliation finished",
		logger.Field{Key: "project", Value: project.Name},
		logger.Field{Key: "delivered", Value: report.Count(domain.OutcomeDelivered)},
		logger.Field{Key: "postponed", Value: report.Count(domain.OutcomePostponed)},
		logger.Field{Key: "skipped", Value: report.Count(domain.OutcomeSkipped)},
	)
	return report, nil
}

func (s *Service) sentAnywhere(ctx context.Context, id domain.Identity, project *domain.Project) bool {
	for _, build := range project.Builds {
		if s.ledger.IsSent(ctx, id, build) {
			return true
		}
	}
	return false
}

func prefer(project *domain.Project, next, current Candidate) bool {
	if next.Origin != current.Origin {
		return next.Origin == OriginFresh
	}
	return project.Position(next.Build) > project.Position(current.Build)
}
