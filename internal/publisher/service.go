package publisher

import (
	"context"
	"errors"
	"time"

	"github.com/goliatone/go-catalog-notifier/internal/dispatcher"
	"github.com/goliatone/go-catalog-notifier/pkg/buildinfo"
	"github.com/goliatone/go-catalog-notifier/pkg/domain"
	"github.com/goliatone/go-catalog-notifier/pkg/interfaces/logger"
	"github.com/goliatone/go-catalog-notifier/pkg/sources"
)

// Dispatcher sends a batch of notifications for one build.
type Dispatcher interface {
	SendBatch(ctx context.Context, notifications []domain.Notification, build *domain.Build, project *domain.Project) dispatcher.BatchReport
}

// Dependencies wires the end-of-build publisher.
type Dependencies struct {
	Dispatcher Dispatcher
	Sources    []sources.Source
	Logger     logger.Logger
	Now        func() time.Time
}

var (
	ErrMissingDispatcher = errors.New("publisher: dispatcher is required")
	ErrMissingProject    = errors.New("publisher: project is required")
	ErrMissingBuild      = errors.New("publisher: build is required")
)

// Service runs the notification step at the end of a build.
type Service struct {
	dispatcher Dispatcher
	sources    []sources.Source
	logger     logger.Logger
	now        func() time.Time
}

// Report describes one publication run. SkipReason is set when the build was
// not eligible and nothing was attempted.
type Report struct {
	Project    string
	Build      int
	SkipReason string
	Batch      dispatcher.BatchReport
}

// Skipped reports whether the build was not eligible for publication.
func (r Report) Skipped() bool {
	return r.SkipReason != ""
}

// New validates dependencies and returns a publisher.
func New(deps Dependencies) (*Service, error) {
	if deps.Dispatcher == nil {
		return nil, ErrMissingDispatcher
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{
		dispatcher: deps.Dispatcher,
		sources:    deps.Sources,
		logger:     deps.Logger,
		now:        deps.Now,
	}, nil
}

// Publish collects the notifications of a finished build and sends them in
// source order. Failed entries are postponed by the dispatcher and never fail
// the run.
func (s *Service) Publish(ctx context.Context, project *domain.Project, build *domain.Build) (Report, error) {
	if project == nil {
		return Report{}, ErrMissingProject
	}
	if build == nil {
		return Report{}, ErrMissingBuild
	}
	report := Report{Project: project.Name, Build: build.Number}
	log := s.logger.With(
		logger.Field{Key: "project", Value: project.Name},
		logger.Field{Key: "build", Value: build.Number},
	)

	if !project.Publishable(build) {
		report.SkipReason = "build result " + build.Result + " is worse than success"
		log.Info("skipping catalog notification", logger.Field{Key: "result", Value: build.Result})
		return report, nil
	}

	if project.Settings.ManageBuildInfo {
		if _, err := buildinfo.Write(build, buildinfo.Collect(build.Env, s.now())); err != nil {
			log.Error("build info generation aborted", logger.Field{Key: "error", Value: err})
		}
	}

	notifications := s.collect(ctx, project, build, log)
	if len(notifications) == 0 {
		log.Info("no notification to send")
		return report, nil
	}

	log.Info("connecting to catalog",
		logger.Field{Key: "host", Value: project.Server.Host},
		logger.Field{Key: "port", Value: project.Server.Port},
	)
	report.Batch = s.dispatcher.SendBatch(ctx, notifications, build, project)
	return report, nil
}

func (s *Service) collect(ctx context.Context, project *domain.Project, build *domain.Build, log logger.Logger) []domain.Notification {
	var out []domain.Notification
	for _, src := range sources.Enabled(s.sources, project) {
		n, ok, err := src.Candidate(ctx, build)
		if err != nil {
			log.Warn("notification source failed",
				logger.Field{Key: "source", Value: src.Name()},
				logger.Field{Key: "error", Value: err},
			)
			continue
		}
		if ok {
			out = append(out, n)
		}
	}
	return out
}
