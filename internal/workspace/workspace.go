package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/goliatone/go-catalog-notifier/pkg/domain"
	"github.com/goliatone/go-catalog-notifier/pkg/interfaces/logger"
)

const (
	ProjectFile = "project.toml"
	BuildFile   = "build.toml"
	BuildsDir   = "builds"
)

var (
	ErrProjectNotFound = errors.New("workspace: project not found")
	ErrBuildNotFound   = errors.New("workspace: build not found")
)

// ServerResolver turns a catalog server name into its connection settings.
type ServerResolver func(name string) (domain.ServerConfig, error)

// Options configures a Workspace.
type Options struct {
	Root         string
	ReportFolder string
	Servers      ServerResolver
	Logger       logger.Logger
}

// Workspace reads projects laid out as
// <root>/<project>/project.toml and <root>/<project>/builds/<n>/build.toml.
type Workspace struct {
	root         string
	reportFolder string
	servers      ServerResolver
	logger       logger.Logger
}

func New(opts Options) (*Workspace, error) {
	if strings.TrimSpace(opts.Root) == "" {
		return nil, errors.New("workspace: root is required")
	}
	if opts.ReportFolder == "" {
		opts.ReportFolder = "catalogReports"
	}
	if opts.Servers == nil {
		opts.Servers = func(name string) (domain.ServerConfig, error) {
			return domain.ServerConfig{}, fmt.Errorf("workspace: no catalog server named %q", name)
		}
	}
	if opts.Logger == nil {
		opts.Logger = &logger.Nop{}
	}
	return &Workspace{
		root:         opts.Root,
		reportFolder: opts.ReportFolder,
		servers:      opts.Servers,
		logger:       opts.Logger,
	}, nil
}

// Root returns the workspace root folder.
func (w *Workspace) Root() string { return w.root }

type buildRecord struct {
	Result string            `toml:"result"`
	Env    map[string]string `toml:"env"`
}

// Projects lists project names that carry a project.toml, sorted.
func (w *Workspace) Projects() ([]string, error) {
	entries, err := os.ReadDir(w.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("workspace: list %s: %w", w.root, err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(w.root, entry.Name(), ProjectFile)); err == nil {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Load reads a project and its build history, oldest build first. A build
// whose build.toml cannot be read stays in the history with an unknown
// result so its ledger records remain reachable.
func (w *Workspace) Load(name string) (*domain.Project, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, fmt.Errorf("%w: %q", ErrProjectNotFound, name)
	}
	dir := filepath.Join(w.root, name)
	settings, err := readSettings(filepath.Join(dir, ProjectFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	server, err := w.servers(settings.Server)
	if err != nil {
		return nil, fmt.Errorf("workspace: project %s: %w", name, err)
	}

	project := &domain.Project{
		Name:     name,
		Dir:      dir,
		Server:   server,
		Settings: settings,
	}
	builds, err := w.loadBuilds(project)
	if err != nil {
		return nil, err
	}
	project.Builds = builds
	return project, nil
}

// LoadBuild returns a project together with one of its builds.
func (w *Workspace) LoadBuild(name string, number int) (*domain.Project, *domain.Build, error) {
	project, err := w.Load(name)
	if err != nil {
		return nil, nil, err
	}
	build, ok := project.Build(number)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s #%d", ErrBuildNotFound, name, number)
	}
	return project, build, nil
}

func (w *Workspace) loadBuilds(project *domain.Project) ([]*domain.Build, error) {
	dir := filepath.Join(project.Dir, BuildsDir)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("workspace: list builds of %s: %w", project.Name, err)
	}
	var builds []*domain.Build
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		number, err := strconv.Atoi(entry.Name())
		if err != nil || number <= 0 {
			continue
		}
		root := filepath.Join(dir, entry.Name())
		record, err := readBuild(filepath.Join(root, BuildFile))
		if err != nil {
			w.logger.Warn("workspace: unreadable build record",
				logger.Field{Key: "project", Value: project.Name},
				logger.Field{Key: "build", Value: number},
				logger.Field{Key: "error", Value: err},
			)
			record = buildRecord{Result: domain.ResultUnknown}
		}
		builds = append(builds, &domain.Build{
			Project:   project.Name,
			Number:    number,
			RootDir:   root,
			ReportDir: filepath.Join(root, w.reportFolder),
			Result:    record.Result,
			Env:       record.Env,
		})
	}
	sort.Slice(builds, func(i, j int) bool { return builds[i].Number < builds[j].Number })
	return builds, nil
}

func readSettings(path string) (domain.ProjectSettings, error) {
	var settings domain.ProjectSettings
	file, err := os.Open(path)
	if err != nil {
		return settings, err
	}
	defer file.Close()
	if err := toml.NewDecoder(file).Decode(&settings); err != nil {
		return settings, fmt.Errorf("workspace: parse %s: %w", path, err)
	}
	return settings, nil
}

func readBuild(path string) (buildRecord, error) {
	record := buildRecord{Result: domain.ResultSuccess}
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return record, nil
	}
	if err != nil {
		return record, fmt.Errorf("workspace: open %s: %w", path, err)
	}
	defer file.Close()
	if err := toml.NewDecoder(file).Decode(&record); err != nil {
		return record, fmt.Errorf("workspace: parse %s: %w", path, err)
	}
	record.Result = strings.ToUpper(strings.TrimSpace(record.Result))
	if record.Result == "" {
		record.Result = domain.ResultSuccess
	}
	return record, nil
}
