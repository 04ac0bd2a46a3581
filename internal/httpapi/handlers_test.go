package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goliatone/go-catalog-notifier/internal/dispatcher"
	"github.com/goliatone/go-catalog-notifier/internal/reconciler"
	"github.com/goliatone/go-catalog-notifier/internal/workspace"
	"github.com/goliatone/go-catalog-notifier/pkg/commands"
	"github.com/goliatone/go-catalog-notifier/pkg/domain"
	"github.com/goliatone/go-catalog-notifier/pkg/notifier"
)

type stubService struct {
	published []string
	resent    []string
	available bool
}

func (s *stubService) Projects() ([]string, error) {
	return []string{"lib-core", "lib-web"}, nil
}

func (s *stubService) PublishBuild(ctx context.Context, project string, build int) (notifier.PublishReport, error) {
	if project != "lib-core" {
		return notifier.PublishReport{}, workspace.ErrProjectNotFound
	}
	s.published = append(s.published, fmt.Sprintf("%s#%d", project, build))
	n := domain.Notification{Action: domain.ActionPostModule, ModuleName: "lib-core", ModuleVersion: "1.2.0"}
	return notifier.PublishReport{
		Project: project,
		Build:   build,
		Batch: dispatcher.BatchReport{Results: []dispatcher.Result{
			{Notification: n, Outcome: domain.OutcomePostponed, Err: errors.New("catalog down")},
		}},
	}, nil
}

func (s *stubService) Resend(ctx context.Context, project string) (notifier.ResendReport, error) {
	if project != "lib-core" {
		return notifier.ResendReport{}, errors.New("storage exploded")
	}
	s.resent = append(s.resent, project)
	return notifier.ResendReport{Project: project, Items: []reconciler.Item{{
		Identity: domain.Identity{ModuleName: "lib-core", ModuleVersion: "1.2.0", Action: domain.ActionPromote},
		Build:    &domain.Build{Number: 4},
		Origin:   reconciler.OriginPending,
		Outcome:  domain.OutcomeDelivered,
	}}}, nil
}

func (s *stubService) Pending(ctx context.Context, project string) (commands.PendingListing, error) {
	return commands.PendingListing{
		Project: project,
		Builds: []commands.PendingBuild{{Build: 3, Notifications: []domain.Notification{
			{Action: domain.ActionPostModule, ModuleName: "lib-core", ModuleVersion: "1.2.0", PayloadLocator: "b3/module.json"},
		}}},
		ModulesInfo: map[string]string{"lib-core": "1.2.0"},
	}, nil
}

func (s *stubService) Ping(ctx context.Context, server string) (domain.ServerConfig, bool, error) {
	if server == "missing" {
		return domain.ServerConfig{}, false, errors.New("unknown catalog server")
	}
	return domain.ServerConfig{Name: "default", Host: "catalog.local", Port: 8074}, s.available, nil
}

func do(t *testing.T, handler http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealthzAndProjects(t *testing.T) {
	router := NewRouter(&stubService{}, nil, nil)

	if rec := do(t, router, http.MethodGet, "/healthz"); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected healthz %d %q", rec.Code, rec.Body.String())
	}
	rec := do(t, router, http.MethodGet, "/projects")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Projects []string `json:"projects"`
	}
	decode(t, rec, &body)
	if len(body.Projects) != 2 {
		t.Fatalf("unexpected projects %v", body.Projects)
	}
	if rec := do(t, router, http.MethodGet, "/metrics"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected metrics to be unmounted, got %d", rec.Code)
	}
}

func TestPublishRoute(t *testing.T) {
	svc := &stubService{}
	router := NewRouter(svc, nil, nil)

	rec := do(t, router, http.MethodPost, "/projects/lib-core/builds/7/publish")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var view publishView
	decode(t, rec, &view)
	if view.Build != 7 || len(view.Results) != 1 {
		t.Fatalf("unexpected view %+v", view)
	}
	if view.Results[0].Outcome != "Postponed" || view.Results[0].Error != "catalog down" {
		t.Fatalf("unexpected result %+v", view.Results[0])
	}

	if rec := do(t, router, http.MethodPost, "/projects/lib-core/builds/abc/publish"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid build, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodPost, "/projects/unknown/builds/1/publish"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown project, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodGet, "/projects/lib-core/builds/7/publish"); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET publish, got %d", rec.Code)
	}
}

func TestResendRoute(t *testing.T) {
	svc := &stubService{}
	router := NewRouter(svc, nil, nil)

	rec := do(t, router, http.MethodPost, "/projects/lib-core/resend")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var view resendView
	decode(t, rec, &view)
	if len(view.Items) != 1 || view.Items[0].Build != 4 || view.Items[0].Origin != "pending" {
		t.Fatalf("unexpected view %+v", view)
	}
	if view.Items[0].Notification != "lib-core-1.2.0-Promote" {
		t.Fatalf("unexpected notification %q", view.Items[0].Notification)
	}

	rec = do(t, router, http.MethodPost, "/projects/broken/resend")
	if rec.Code != http.StatusInternalServerError || strings.Contains(rec.Body.String(), "exploded") {
		t.Fatalf("expected opaque 500, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestPendingRoute(t *testing.T) {
	router := NewRouter(&stubService{}, nil, nil)

	rec := do(t, router, http.MethodGet, "/projects/lib-core/pending")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`"modulesInfo":{"lib-core":"1.2.0"}`, `"notificationAction":"PostModule"`, `"mimePath":"b3/module.json"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %s in %s", want, body)
		}
	}
}

func TestPingRoute(t *testing.T) {
	svc := &stubService{available: true}
	router := NewRouter(svc, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	}), nil)

	if rec := do(t, router, http.MethodGet, "/catalog/ping"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	svc.available = false
	if rec := do(t, router, http.MethodGet, "/catalog/ping?server=default"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodGet, "/catalog/ping?server=missing"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodGet, "/metrics"); rec.Code != http.StatusOK || rec.Body.String() != "# metrics" {
		t.Fatalf("expected metrics handler, got %d", rec.Code)
	}
}
