package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-catalog-notifier/pkg/domain"
	"github.com/goliatone/go-catalog-notifier/pkg/interfaces/logger"
)

// Client is the catalog service as seen by the dispatcher.
type Client interface {
	IsAvailable(ctx context.Context) bool
	PostModule(ctx context.Context, module domain.Module, user, password string) error
	PostBuildInfo(ctx context.Context, name, version string, info domain.BuildInfo, user, password string) error
	PromoteModule(ctx context.Context, name, version, user, password string) error
}

// Factory builds a client for a server configuration.
type Factory func(server domain.ServerConfig) Client

// StatusError reports a non-2xx answer from the catalog service.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("catalog: %s %s returned %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("catalog: %s %s returned %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}

const defaultTimeout = 30 * time.Second

// HTTPClient talks to the catalog REST API.
type HTTPClient struct {
	base   string
	client *http.Client
	logger logger.Logger
}

var _ Client = (*HTTPClient)(nil)

type Option func(*HTTPClient)

// WithHTTPClient allows injecting a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) {
		if c != nil {
			h.client = c
		}
	}
}

// WithLogger sets the logger used for probe failures.
func WithLogger(l logger.Logger) Option {
	return func(h *HTTPClient) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHTTPClient targets the server's address.
func NewHTTPClient(server domain.ServerConfig, opts ...Option) *HTTPClient {
	timeout := defaultTimeout
	if server.TimeoutSeconds > 0 {
		timeout = time.Duration(server.TimeoutSeconds) * time.Second
	}
	h := &HTTPClient{
		base:   strings.TrimSuffix(server.Address(), "/"),
		logger: &logger.Nop{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.client == nil {
		h.client = &http.Client{Timeout: timeout}
	}
	return h
}

// NewFactory returns a Factory producing HTTP clients that share opts.
func NewFactory(opts ...Option) Factory {
	return func(server domain.ServerConfig) Client {
		return NewHTTPClient(server, opts...)
	}
}

// IsAvailable probes the service root.
func (h *HTTPClient) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.base+"/", nil)
	if err != nil {
		return false
	}
	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Debug("catalog: availability probe failed",
			logger.Field{Key: "address", Value: h.base},
			logger.Field{Key: "error", Value: err},
		)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (h *HTTPClient) PostModule(ctx context.Context, module domain.Module, user, password string) error {
	return h.post(ctx, "/module", module, user, password)
}

func (h *HTTPClient) PostBuildInfo(ctx context.Context, name, version string, info domain.BuildInfo, user, password string) error {
	return h.post(ctx, modulePath(name, version, "build"), info, user, password)
}

func (h *HTTPClient) PromoteModule(ctx context.Context, name, version, user, password string) error {
	return h.post(ctx, modulePath(name, version, "promote"), nil, user, password)
}

func (h *HTTPClient) post(ctx context.Context, path string, payload any, user, password string) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("catalog: encode %s: %w", path, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.base+path, body)
	if err != nil {
		return fmt.Errorf("catalog: build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.SetBasicAuth(user, password)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("catalog: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{
			Method: http.MethodPost,
			Path:   path,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(snippet)),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func modulePath(name, version, action string) string {
	return "/module/" + url.PathEscape(name) + "/" + url.PathEscape(version) + "/" + action
}
