package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/goliatone/go-catalog-notifier/internal/workspace"
	"github.com/goliatone/go-catalog-notifier/pkg/commands"
	"github.com/goliatone/go-catalog-notifier/pkg/domain"
	"github.com/goliatone/go-catalog-notifier/pkg/interfaces/logger"
	"github.com/goliatone/go-catalog-notifier/pkg/notifier"
)

// Service is the admin surface served over HTTP.
type Service interface {
	Projects() ([]string, error)
	PublishBuild(ctx context.Context, project string, build int) (notifier.PublishReport, error)
	Resend(ctx context.Context, project string) (notifier.ResendReport, error)
	Pending(ctx context.Context, project string) (commands.PendingListing, error)
	Ping(ctx context.Context, server string) (domain.ServerConfig, bool, error)
}

type Handlers struct {
	service Service
	logger  logger.Logger
}

type resultView struct {
	Notification string `json:"notification"`
	Build        int    `json:"build,omitempty"`
	Origin       string `json:"origin,omitempty"`
	Outcome      string `json:"outcome"`
	Error        string `json:"error,omitempty"`
}

type publishView struct {
	Project string       `json:"project"`
	Build   int          `json:"build"`
	Skipped bool         `json:"skipped"`
	Reason  string       `json:"reason,omitempty"`
	Results []resultView `json:"results"`
}

type resendView struct {
	Project string       `json:"project"`
	Items   []resultView `json:"items"`
}

// NewRouter mounts the admin routes. metrics may be nil.
func NewRouter(service Service, metrics http.Handler, lgr logger.Logger) http.Handler {
	if lgr == nil {
		lgr = &logger.Nop{}
	}
	handlers := &Handlers{service: service, logger: lgr}
	router := chi.NewRouter()

	router.Get("/healthz", handlers.healthz)
	router.Get("/catalog/ping", handlers.ping)
	router.Route("/projects", func(r chi.Router) {
		r.Get("/", handlers.projects)
		r.Get("/{project}/pending", handlers.pending)
		r.Post("/{project}/resend", handlers.resend)
		r.Post("/{project}/builds/{build}/publish", handlers.publish)
	})
	if metrics != nil {
		router.Handle("/metrics", metrics)
	}

	return router
}

func (handlers *Handlers) healthz(writer http.ResponseWriter, _ *http.Request) {
	writer.WriteHeader(http.StatusOK)
	_, _ = writer.Write([]byte("ok"))
}

func (handlers *Handlers) projects(writer http.ResponseWriter, _ *http.Request) {
	names, err := handlers.service.Projects()
	if err != nil {
		handlers.fail(writer, "list projects", err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(writer, http.StatusOK, map[string]any{"projects": names})
}

func (handlers *Handlers) pending(writer http.ResponseWriter, request *http.Request) {
	listing, err := handlers.service.Pending(request.Context(), chi.URLParam(request, "project"))
	if err != nil {
		handlers.fail(writer, "list pending", err)
		return
	}
	if listing.Builds == nil {
		listing.Builds = []commands.PendingBuild{}
	}
	writeJSON(writer, http.StatusOK, listing)
}

func (handlers *Handlers) resend(writer http.ResponseWriter, request *http.Request) {
	report, err := handlers.service.Resend(request.Context(), chi.URLParam(request, "project"))
	if err != nil {
		handlers.fail(writer, "resend", err)
		return
	}
	view := resendView{Project: report.Project, Items: make([]resultView, 0, len(report.Items))}
	for _, item := range report.Items {
		row := resultView{
			Notification: item.Identity.String(),
			Origin:       string(item.Origin),
			Outcome:      string(item.Outcome),
			Error:        errorText(item.Err),
		}
		if item.Build != nil {
			row.Build = item.Build.Number
		}
		view.Items = append(view.Items, row)
	}
	writeJSON(writer, http.StatusOK, view)
}

func (handlers *Handlers) publish(writer http.ResponseWriter, request *http.Request) {
	build, err := strconv.Atoi(chi.URLParam(request, "build"))
	if err != nil || build <= 0 {
		writeJSON(writer, http.StatusBadRequest, map[string]string{"error": "invalid_build"})
		return
	}
	report, err := handlers.service.PublishBuild(request.Context(), chi.URLParam(request, "project"), build)
	if err != nil {
		handlers.fail(writer, "publish", err)
		return
	}
	view := publishView{
		Project: report.Project,
		Build:   report.Build,
		Skipped: report.Skipped(),
		Reason:  report.SkipReason,
		Results: make([]resultView, 0, len(report.Batch.Results)),
	}
	for _, res := range report.Batch.Results {
		view.Results = append(view.Results, resultView{
			Notification: res.Notification.String(),
			Outcome:      string(res.Outcome),
			Error:        errorText(res.Err),
		})
	}
	writeJSON(writer, http.StatusOK, view)
}

func (handlers *Handlers) ping(writer http.ResponseWriter, request *http.Request) {
	server, ok, err := handlers.service.Ping(request.Context(), request.URL.Query().Get("server"))
	if err != nil {
		writeJSON(writer, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	writeJSON(writer, status, map[string]any{
		"server":    server.Name,
		"address":   server.Address(),
		"available": ok,
	})
}

func (handlers *Handlers) fail(writer http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, workspace.ErrProjectNotFound), errors.Is(err, workspace.ErrBuildNotFound):
		writeJSON(writer, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		handlers.logger.Error("admin request failed",
			logger.Field{Key: "action", Value: action},
			logger.Field{Key: "error", Value: err},
		)
		writeJSON(writer, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
	}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func writeJSON(writer http.ResponseWriter, status int, payload any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	_ = json.NewEncoder(writer).Encode(payload)
}
