package commands

import (
	"context"
	"errors"
	"iter"
	"strings"

	command "github.com/goliatone/go-command"

	"github.com/goliatone/go-catalog-notifier/internal/publisher"
	"github.com/goliatone/go-catalog-notifier/internal/reconciler"
	"github.com/goliatone/go-catalog-notifier/pkg/domain"
	"github.com/goliatone/go-catalog-notifier/pkg/interfaces/logger"
)

// Catalog exposes go-command compatible handlers for host transports.
type Catalog struct {
	PublishBuild  command.Commander[PublishBuild]
	ResendProject command.Commander[ResendProject]
	ListPending   command.Commander[ListPending]
}

type projectLoader interface {
	Load(name string) (*domain.Project, error)
	LoadBuild(name string, number int) (*domain.Project, *domain.Build, error)
}

type publishService interface {
	Publish(ctx context.Context, project *domain.Project, build *domain.Build) (publisher.Report, error)
}

type resendService interface {
	Reconcile(ctx context.Context, project *domain.Project) (reconciler.Report, error)
}

type pendingLister interface {
	ListPending(ctx context.Context, project *domain.Project) iter.Seq2[*domain.Build, domain.Notification]
}

// Dependencies wires workspace and services into the command catalog.
type Dependencies struct {
	Projects  projectLoader
	Publisher publishService
	Resender  resendService
	Pending   pendingLister
	Logger    logger.Logger
}

// NewCatalog builds the command catalog using the supplied dependencies.
func NewCatalog(deps Dependencies) (*Catalog, error) {
	if deps.Projects == nil {
		return nil, errors.New("commands: project loader is required")
	}
	if deps.Publisher == nil {
		return nil, errors.New("commands: publisher is required")
	}
	if deps.Resender == nil {
		return nil, errors.New("commands: resend service is required")
	}
	if deps.Pending == nil {
		return nil, errors.New("commands: pending lister is required")
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}

	return &Catalog{
		PublishBuild:  publishBuildCommand{projects: deps.Projects, svc: deps.Publisher, logger: deps.Logger},
		ResendProject: resendProjectCommand{projects: deps.Projects, svc: deps.Resender, logger: deps.Logger},
		ListPending:   listPendingCommand{projects: deps.Projects, pending: deps.Pending},
	}, nil
}

// PublishBuild runs the end-of-build notification step for one build.
// Report, when set, receives the run report.
type PublishBuild struct {
	Project string            `json:"project"`
	Build   int               `json:"build"`
	Report  *publisher.Report `json:"-"`
}

type publishBuildCommand struct {
	projects projectLoader
	svc      publishService
	logger   logger.Logger
}

func (c publishBuildCommand) Execute(ctx context.Context, msg PublishBuild) error {
	name := strings.TrimSpace(msg.Project)
	if name == "" {
		return errors.New("commands: project is required")
	}
	if msg.Build <= 0 {
		return errors.New("commands: build number is required")
	}
	project, build, err := c.projects.LoadBuild(name, msg.Build)
	if err != nil {
		return err
	}
	report, err := c.svc.Publish(ctx, project, build)
	if err != nil {
		return err
	}
	if msg.Report != nil {
		*msg.Report = report
	}
	return nil
}

// ResendProject retries every outstanding notification of a project.
// Report, when set, receives the reconciliation report.
type ResendProject struct {
	Project string             `json:"project"`
	Report  *reconciler.Report `json:"-"`
}

type resendProjectCommand struct {
	projects projectLoader
	svc      resendService
	logger   logger.Logger
}

func (c resendProjectCommand) Execute(ctx context.Context, msg ResendProject) error {
	name := strings.TrimSpace(msg.Project)
	if name == "" {
		return errors.New("commands: project is required")
	}
	project, err := c.projects.Load(name)
	if err != nil {
		return err
	}
	c.logger.Info("resend requested", logger.Field{Key: "project", Value: name})
	report, err := c.svc.Reconcile(ctx, project)
	if err != nil {
		return err
	}
	if msg.Report != nil {
		*msg.Report = report
	}
	return nil
}

// PendingBuild groups the pending records stored on one build.
type PendingBuild struct {
	Build         int                   `json:"build"`
	Notifications []domain.Notification `json:"notifications"`
}

// PendingListing summarises what a resend would retry.
type PendingListing struct {
	Project string         `json:"project"`
	Builds  []PendingBuild `json:"builds"`
	// ModulesInfo maps module name to the version of its latest pending record.
	ModulesInfo map[string]string `json:"modulesInfo"`
}

// Total counts pending records across builds.
func (l PendingListing) Total() int {
	n := 0
	for _, b := range l.Builds {
		n += len(b.Notifications)
	}
	return n
}

// ListPending reads the pending records of a project into Result.
type ListPending struct {
	Project string          `json:"project"`
	Result  *PendingListing `json:"-"`
}

type listPendingCommand struct {
	projects projectLoader
	pending  pendingLister
}

func (c listPendingCommand) Execute(ctx context.Context, msg ListPending) error {
	name := strings.TrimSpace(msg.Project)
	if name == "" {
		return errors.New("commands: project is required")
	}
	if msg.Result == nil {
		return errors.New("commands: result holder is required")
	}
	project, err := c.projects.Load(name)
	if err != nil {
		return err
	}
	listing := PendingListing{Project: project.Name, ModulesInfo: map[string]string{}}
	for build, n := range c.pending.ListPending(ctx, project) {
		last := len(listing.Builds) - 1
		if last < 0 || listing.Builds[last].Build != build.Number {
			listing.Builds = append(listing.Builds, PendingBuild{Build: build.Number})
			last++
		}
		listing.Builds[last].Notifications = append(listing.Builds[last].Notifications, n)
		listing.ModulesInfo[n.ModuleName] = n.ModuleVersion
	}
	*msg.Result = listing
	return ctx.Err()
}
