package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/goliatone/go-catalog-notifier/pkg/artifacts"
	"github.com/goliatone/go-catalog-notifier/pkg/domain"
)

// Report file names inside a build's report folder.
const (
	ModuleReportFile = "module.json"
	BuildInfoFile    = "buildInfo.json"
	PromotionFile    = "promotion.json"
)

// Source proposes at most one notification per build.
type Source interface {
	Name() string
	EnabledFor(project *domain.Project) bool
	Candidate(ctx context.Context, build *domain.Build) (domain.Notification, bool, error)
}

// Defaults returns the registered sources in their fixed order.
func Defaults(resolver artifacts.Resolver) []Source {
	return []Source{
		NewModuleReportSource(resolver),
		NewBuildInfoSource(resolver),
		NewPromotionSource(resolver),
	}
}

// Enabled filters sources by the project settings, keeping order.
func Enabled(all []Source, project *domain.Project) []Source {
	var out []Source
	for _, src := range all {
		if src != nil && src.EnabledFor(project) {
			out = append(out, src)
		}
	}
	return out
}

func reportPath(build *domain.Build, name string) string {
	return filepath.Join(build.ReportDir, name)
}

// ModuleReportSource posts the module report produced by the build.
type ModuleReportSource struct {
	resolver artifacts.Resolver
}

func NewModuleReportSource(resolver artifacts.Resolver) *ModuleReportSource {
	return &ModuleReportSource{resolver: resolver}
}

func (s *ModuleReportSource) Name() string { return "module" }

func (s *ModuleReportSource) EnabledFor(project *domain.Project) bool {
	return project != nil && project.Settings.ManageModuleReports
}

func (s *ModuleReportSource) Candidate(ctx context.Context, build *domain.Build) (domain.Notification, bool, error) {
	locator := reportPath(build, ModuleReportFile)
	module, err := artifacts.ReadModule(ctx, s.resolver, locator)
	if errors.Is(err, artifacts.ErrNotFound) {
		return domain.Notification{}, false, nil
	}
	if err != nil {
		return domain.Notification{}, false, err
	}
	return domain.Notification{
		Action:         domain.ActionPostModule,
		ModuleName:     module.Name,
		ModuleVersion:  module.Version,
		PayloadLocator: locator,
	}, true, nil
}

// BuildInfoSource attaches build provenance to the module the build produced.
// The payload may not exist yet; the dispatcher treats that as a skip.
type BuildInfoSource struct {
	resolver artifacts.Resolver
}

func NewBuildInfoSource(resolver artifacts.Resolver) *BuildInfoSource {
	return &BuildInfoSource{resolver: resolver}
}

func (s *BuildInfoSource) Name() string { return "buildinfo" }

func (s *BuildInfoSource) EnabledFor(project *domain.Project) bool {
	return project != nil && project.Settings.ManageBuildInfo
}

func (s *BuildInfoSource) Candidate(ctx context.Context, build *domain.Build) (domain.Notification, bool, error) {
	module, err := artifacts.ReadModule(ctx, s.resolver, reportPath(build, ModuleReportFile))
	if errors.Is(err, artifacts.ErrNotFound) {
		return domain.Notification{}, false, nil
	}
	if err != nil {
		return domain.Notification{}, false, err
	}
	return domain.Notification{
		Action:         domain.ActionPostBuildInfo,
		ModuleName:     module.Name,
		ModuleVersion:  module.Version,
		PayloadLocator: reportPath(build, BuildInfoFile),
	}, true, nil
}

// Promotion is the request a build leaves behind to promote a module version.
type Promotion struct {
	ModuleName    string `json:"moduleName"`
	ModuleVersion string `json:"moduleVersion"`
}

// PromotionSource promotes the module version named in promotion.json.
type PromotionSource struct {
	resolver artifacts.Resolver
}

func NewPromotionSource(resolver artifacts.Resolver) *PromotionSource {
	return &PromotionSource{resolver: resolver}
}

func (s *PromotionSource) Name() string { return "promotion" }

func (s *PromotionSource) EnabledFor(project *domain.Project) bool {
	return project != nil && project.Settings.ManagePromotions
}

func (s *PromotionSource) Candidate(ctx context.Context, build *domain.Build) (domain.Notification, bool, error) {
	artifact, err := s.resolver.Resolve(ctx, reportPath(build, PromotionFile))
	if errors.Is(err, artifacts.ErrNotFound) {
		return domain.Notification{}, false, nil
	}
	if err != nil {
		return domain.Notification{}, false, err
	}
	var promotion Promotion
	if err := json.Unmarshal(artifact.Data, &promotion); err != nil {
		return domain.Notification{}, false, fmt.Errorf("sources: decode %s: %w", artifact.Locator, err)
	}
	n := domain.Notification{
		Action:        domain.ActionPromote,
		ModuleName:    promotion.ModuleName,
		ModuleVersion: promotion.ModuleVersion,
	}
	if err := n.Identity().Validate(); err != nil {
		return domain.Notification{}, false, err
	}
	return n, true, nil
}
