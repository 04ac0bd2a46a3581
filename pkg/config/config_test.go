package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFromMap(t *testing.T) {
	input := map[string]any{
		"catalog": map[string]any{
			"default": "prod",
			"servers": map[string]any{
				"prod": map[string]any{"host": "catalog.internal", "port": 8080, "username": "ci"},
			},
		},
		"ledger": map[string]any{
			"driver": "sqlite",
		},
	}

	cfg, err := Load(input)
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	srv, name, err := cfg.Server("")
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	if name != "prod" || srv.Host != "catalog.internal" || srv.Port != 8080 {
		t.Fatalf("unexpected server %s %+v", name, srv)
	}
	if srv.Scheme != "http" || srv.TimeoutSeconds != 30 {
		t.Fatalf("expected server defaults, got %+v", srv)
	}
	if cfg.Ledger.DSN == "" {
		t.Fatalf("expected default sqlite dsn")
	}
}

func TestLoadFromStruct(t *testing.T) {
	input := Config{
		Workspace: WorkspaceConfig{Root: "/var/ci"},
		Logging:   LoggingConfig{Level: "debug", Format: "json"},
	}

	cfg, err := Load(input)
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if cfg.Workspace.Root != "/var/ci" {
		t.Fatalf("expected root /var/ci, got %s", cfg.Workspace.Root)
	}
	if cfg.Workspace.ReportFolder != "catalogReports" {
		t.Fatalf("expected default report folder, got %s", cfg.Workspace.ReportFolder)
	}
	if cfg.Ledger.Driver != DriverFile {
		t.Fatalf("expected file driver by default, got %s", cfg.Ledger.Driver)
	}
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	_, err := Load(map[string]any{"ledger": map[string]any{"driver": "etcd"}})
	if err == nil || !strings.Contains(err.Error(), "ledger.driver") {
		t.Fatalf("expected driver validation error, got %v", err)
	}
}

func TestValidateRejectsUnknownDefaultServer(t *testing.T) {
	cfg := Defaults()
	cfg.Catalog.Default = "missing"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadFileTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifier.toml")
	body := `
[workspace]
root = "/srv/builds"

[catalog]
default = "qa"

[catalog.servers.qa]
host = "qa.catalog"
port = 9000
timeout_seconds = 5

[logging]
format = "json"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	srv, _, err := cfg.Server("qa")
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	if srv.Port != 9000 || srv.TimeoutSeconds != 5 {
		t.Fatalf("unexpected server %+v", srv)
	}
	if cfg.Workspace.Root != "/srv/builds" || cfg.Logging.Format != "json" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadFileMissingUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if names := cfg.ServerNames(); len(names) != 1 || names[0] != "default" {
		t.Fatalf("unexpected servers %v", names)
	}
}

func TestSampleRoundTrips(t *testing.T) {
	sample, err := Sample()
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFile(path); err != nil {
		t.Fatalf("sample should load: %v", err)
	}
}
