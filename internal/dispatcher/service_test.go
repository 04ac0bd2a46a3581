package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/goliatone/go-catalog-notifier/internal/storage/memory"
	"github.com/goliatone/go-catalog-notifier/pkg/artifacts"
	"github.com/goliatone/go-catalog-notifier/pkg/catalog"
	"github.com/goliatone/go-catalog-notifier/pkg/domain"
	"github.com/goliatone/go-catalog-notifier/pkg/ledger"
)

type catalogCall struct {
	action   domain.ActionKind
	name     string
	version  string
	user     string
	password string
}

type testCatalog struct {
	mu          sync.Mutex
	unavailable bool
	failOn      map[string]error
	calls       []catalogCall
}

func (c *testCatalog) IsAvailable(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.unavailable
}

func (c *testCatalog) PostModule(ctx context.Context, module domain.Module, user, password string) error {
	return c.call(catalogCall{domain.ActionPostModule, module.Name, module.Version, user, password})
}

func (c *testCatalog) PostBuildInfo(ctx context.Context, name, version string, info domain.BuildInfo, user, password string) error {
	return c.call(catalogCall{domain.ActionPostBuildInfo, name, version, user, password})
}

func (c *testCatalog) PromoteModule(ctx context.Context, name, version, user, password string) error {
	return c.call(catalogCall{domain.ActionPromote, name, version, user, password})
}

func (c *testCatalog) call(call catalogCall) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
	return c.failOn[call.name]
}

func (c *testCatalog) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type mapResolver map[string]string

func (m mapResolver) Resolve(ctx context.Context, locator string) (artifacts.Artifact, error) {
	data, ok := m[locator]
	if !ok {
		return artifacts.Artifact{}, artifacts.ErrNotFound
	}
	return artifacts.Artifact{Locator: locator, Data: []byte(data)}, nil
}

type harness struct {
	service *Service
	catalog *testCatalog
	entries *memory.EntryStore
	ledger  *ledger.Ledger
	project *domain.Project
}

func newHarness(t *testing.T, builds int) *harness {
	t.Helper()
	entries := memory.NewEntryStore()
	l, err := ledger.New(ledger.Dependencies{Store: entries})
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	fake := &testCatalog{failOn: map[string]error{}}
	resolver := mapResolver{
		"reports/module.json":    `{"name":"lib-core","version":"1.2.0"}`,
		"reports/buildInfo.json": `{"vcs.revision":"42"}`,
		"reports/corrupt.json":   `{`,
	}
	svc, err := New(Dependencies{
		Ledger:    l,
		Clients:   func(domain.ServerConfig) catalog.Client { return fake },
		Artifacts: resolver,
	})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	project := &domain.Project{
		Name:   "catalog",
		Server: domain.ServerConfig{Host: "catalog.local", Port: 8074, Credentials: &domain.Credentials{Username: "ci", Password: "pw"}},
	}
	for i := 1; i <= builds; i++ {
		project.Builds = append(project.Builds, &domain.Build{Project: project.Name, Number: i, Result: domain.ResultSuccess})
	}
	return &harness{service: svc, catalog: fake, entries: entries, ledger: l, project: project}
}

func (h *harness) pendingOn(t *testing.T, build *domain.Build) []string {
	t.Helper()
	keys, err := h.entries.Keys(context.Background(), build, domain.PendingSuffix)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	return keys
}

func postModule() domain.Notification {
	return domain.Notification{Action: domain.ActionPostModule, ModuleName: "lib-core", ModuleVersion: "1.2.0", PayloadLocator: "reports/module.json"}
}

func TestSendDeliversAndClearsPendingEverywhere(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 2)
	n := postModule()
	older, latest := h.project.Builds[0], h.project.Builds[1]
	h.ledger.SavePending(ctx, n.Identity(), n, older)

	if err := h.service.Send(ctx, n, latest, h.project); err != nil {
		t.Fatalf("send: %v", err)
	}

	if !h.ledger.IsSent(ctx, n.Identity(), latest) {
		t.Fatalf("expected sent marker on delivering build")
	}
	if keys := h.pendingOn(t, older); len(keys) != 0 {
		t.Fatalf("expected older pending record to be discarded, got %v", keys)
	}
	call := h.catalog.calls[0]
	if call.action != domain.ActionPostModule || call.user != "ci" || call.password != "pw" {
		t.Fatalf("unexpected call %+v", call)
	}
}

func TestSendServerUnavailable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1)
	h.catalog.unavailable = true
	n := domain.Notification{Action: domain.ActionPromote, ModuleName: "lib-core", ModuleVersion: "1.2.0"}
	build := h.project.Builds[0]

	err := h.service.Send(ctx, n, build, h.project)
	if !errors.Is(err, ErrServerUnavailable) {
		t.Fatalf("expected ErrServerUnavailable, got %v", err)
	}
	de, ok := AsDeliveryError(err)
	if !ok || de.Code != CodeServerUnavailable {
		t.Fatalf("expected 503 delivery error, got %v", err)
	}
	if h.catalog.callCount() != 0 {
		t.Fatalf("expected no remote call when unavailable")
	}
	if keys := h.pendingOn(t, build); len(keys) != 1 || keys[0] != ".lib-core-1.2.0-Promote-to-resend" {
		t.Fatalf("expected pending record, got %v", keys)
	}
}

func TestSendCommunicationFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 2)
	remoteErr := errors.New("connection reset")
	h.catalog.failOn["lib-core"] = remoteErr
	n := postModule()
	older, latest := h.project.Builds[0], h.project.Builds[1]
	h.ledger.SavePending(ctx, n.Identity(), n, older)

	err := h.service.Send(ctx, n, latest, h.project)
	if !errors.Is(err, ErrCommunicationFailure) || !errors.Is(err, remoteErr) {
		t.Fatalf("expected communication failure wrapping cause, got %v", err)
	}
	if de, _ := AsDeliveryError(err); de.Code != CodeCommunicationFailure {
		t.Fatalf("expected code 500, got %d", de.Code)
	}
	if h.ledger.IsSent(ctx, n.Identity(), latest) {
		t.Fatalf("expected identity to stay unsent")
	}
	if keys := h.pendingOn(t, latest); len(keys) != 1 {
		t.Fatalf("expected exactly one pending record on failing build, got %v", keys)
	}
	if keys := h.pendingOn(t, older); len(keys) != 0 {
		t.Fatalf("expected stale pending record to be replaced, got %v", keys)
	}
}

func TestSendMissingPayloadIsSoft(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1)
	build := h.project.Builds[0]
	cases := []domain.Notification{
		{Action: domain.ActionPostModule, ModuleName: "lib", ModuleVersion: "1.0", PayloadLocator: "reports/absent.json"},
		{Action: domain.ActionPostBuildInfo, ModuleName: "lib", ModuleVersion: "1.0"},
	}
	for _, n := range cases {
		outcome, err := h.service.Dispatch(ctx, n, build, h.project)
		if err != nil || outcome != domain.OutcomeSkipped {
			t.Fatalf("%s: expected skip, got %s err=%v", n, outcome, err)
		}
	}
	if h.catalog.callCount() != 0 {
		t.Fatalf("expected no remote calls")
	}
	if h.entries.Count(build) != 0 {
		t.Fatalf("expected no ledger state for skipped notifications")
	}
}

func TestSendCorruptPayloadIsPostponed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1)
	n := domain.Notification{Action: domain.ActionPostBuildInfo, ModuleName: "lib", ModuleVersion: "1.0", PayloadLocator: "reports/corrupt.json"}

	outcome, err := h.service.Dispatch(ctx, n, h.project.Builds[0], h.project)
	if outcome != domain.OutcomePostponed || !errors.Is(err, ErrCommunicationFailure) {
		t.Fatalf("expected postponed communication failure, got %s %v", outcome, err)
	}
	if keys := h.pendingOn(t, h.project.Builds[0]); len(keys) != 1 {
		t.Fatalf("expected pending record, got %v", keys)
	}
}

func TestSendMalformedNotificationNeverPersistsPending(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1)
	h.catalog.failOn[""] = errors.New("bad request")
	n := domain.Notification{Action: domain.ActionPromote, ModuleVersion: "1.0"}
	build := h.project.Builds[0]

	if err := h.service.Send(ctx, n, build, h.project); err == nil {
		t.Fatalf("expected delivery error")
	}
	if h.entries.Count(build) != 0 {
		t.Fatalf("expected no pending record for malformed notification")
	}
}

func TestResendingSentIdentityKeepsSingleMarker(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1)
	n := domain.Notification{Action: domain.ActionPromote, ModuleName: "lib-core", ModuleVersion: "1.2.0"}
	build := h.project.Builds[0]

	for i := 0; i < 3; i++ {
		if err := h.service.Send(ctx, n, build, h.project); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if got := h.entries.Count(build); got != 1 {
		t.Fatalf("expected a single sent marker, got %d entries", got)
	}
}

func TestSendBatchIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1)
	h.catalog.failOn["broken"] = errors.New("timeout")
	build := h.project.Builds[0]
	batch := []domain.Notification{
		{Action: domain.ActionPromote, ModuleName: "broken", ModuleVersion: "1.0"},
		postModule(),
		{Action: domain.ActionPostBuildInfo, ModuleName: "lib-core", ModuleVersion: "1.2.0", PayloadLocator: "reports/buildInfo.json"},
		{Action: domain.ActionPostModule, ModuleName: "gone", ModuleVersion: "1.0", PayloadLocator: "reports/gone.json"},
	}

	report := h.service.SendBatch(ctx, batch, build, h.project)

	if len(report.Results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(report.Results))
	}
	want := []domain.Outcome{domain.OutcomePostponed, domain.OutcomeDelivered, domain.OutcomeDelivered, domain.OutcomeSkipped}
	for i, res := range report.Results {
		if res.Outcome != want[i] {
			t.Fatalf("entry %d: expected %s, got %s", i, want[i], res.Outcome)
		}
	}
	if len(report.Failed()) != 1 || report.Count(domain.OutcomeDelivered) != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	if got := h.catalog.calls; len(got) != 3 || got[0].name != "broken" || got[1].action != domain.ActionPostModule || got[2].action != domain.ActionPostBuildInfo {
		t.Fatalf("expected calls in input order, got %+v", got)
	}
}

func TestNewValidatesDependencies(t *testing.T) {
	if _, err := New(Dependencies{}); !errors.Is(err, ErrMissingLedger) {
		t.Fatalf("expected ErrMissingLedger, got %v", err)
	}
	l, _ := ledger.New(ledger.Dependencies{Store: memory.NewEntryStore()})
	if _, err := New(Dependencies{Ledger: l}); !errors.Is(err, ErrMissingClients) {
		t.Fatalf("expected ErrMissingClients, got %v", err)
	}
	if _, err := New(Dependencies{Ledger: l, Clients: func(domain.ServerConfig) catalog.Client { return nil }}); !errors.Is(err, ErrMissingArtifacts) {
		t.Fatalf("expected ErrMissingArtifacts, got %v", err)
	}
}
