package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

type cliTestEnv struct {
	root       string
	configPath string
	catalog    *httptest.Server
	down       *atomic.Bool
	posts      *atomic.Int32
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	env := &cliTestEnv{down: &atomic.Bool{}, posts: &atomic.Int32{}}
	env.catalog = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if env.down.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.Method == http.MethodPost {
			env.posts.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(env.catalog.Close)

	u, err := url.Parse(env.catalog.URL)
	if err != nil {
		t.Fatalf("parse catalog url: %v", err)
	}

	base := t.TempDir()
	env.root = filepath.Join(base, "workspace")
	writeFile(t, filepath.Join(env.root, "lib-core", "project.toml"), "catalog = \"local\"\nmanage_module_reports = true\n")
	writeFile(t, filepath.Join(env.root, "lib-core", "builds", "1", "build.toml"), "result = \"SUCCESS\"\n")
	writeFile(t, filepath.Join(env.root, "lib-core", "builds", "1", "catalogReports", "module.json"), `{"name":"lib-core","version":"1.0.0"}`)
	writeFile(t, filepath.Join(env.root, "lib-core", "builds", "2", "build.toml"), "result = \"FAILURE\"\n")

	env.configPath = filepath.Join(base, "notifier.toml")
	writeFile(t, env.configPath, fmt.Sprintf(`
[workspace]
root = %q

[catalog]
default = "local"

[catalog.servers.local]
scheme = "http"
host = %q
port = %s
timeout_seconds = 5

[ledger]
driver = "file"

[logging]
level = "error"
`, env.root, u.Hostname(), u.Port()))
	return env
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestCLIPublishPendingResend(t *testing.T) {
	env := setupCLITestEnv(t)

	env.down.Store(true)
	out, _, err := runCLI(t, []string{"publish", "lib-core", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	requireContains(t, out, "lib-core-1.0.0-PostModule")
	requireContains(t, out, "Postponed")

	out, _, err = runCLI(t, []string{"pending", "lib-core"}, env.configPath)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	requireContains(t, out, "PostModule")
	requireContains(t, out, "1.0.0")

	env.down.Store(false)
	out, _, err = runCLI(t, []string{"resend", "lib-core"}, env.configPath)
	if err != nil {
		t.Fatalf("resend: %v", err)
	}
	requireContains(t, out, "1 delivered, 0 postponed, 0 skipped")
	if got := env.posts.Load(); got != 1 {
		t.Fatalf("expected one module post, got %d", got)
	}

	out, _, err = runCLI(t, []string{"pending", "lib-core"}, env.configPath)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	requireContains(t, out, "No pending notification for lib-core")
}

func TestCLIPublishSkipsFailedBuild(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"publish", "lib-core", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	requireContains(t, out, "Skipped lib-core #2")

	if _, _, err := runCLI(t, []string{"publish", "lib-core", "zero"}, env.configPath); err == nil {
		t.Fatalf("expected invalid build number to fail")
	}
}

func TestCLIJSONOutput(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"--json", "publish", "lib-core", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	var body struct {
		Project string `json:"project"`
		Results []struct {
			Outcome string `json:"outcome"`
		} `json:"results"`
	}
	if err := json.Unmarshal([]byte(out), &body); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if body.Project != "lib-core" || len(body.Results) != 1 || body.Results[0].Outcome != "Delivered" {
		t.Fatalf("unexpected output %+v", body)
	}

	out, _, err = runCLI(t, []string{"--json", "projects"}, env.configPath)
	if err != nil {
		t.Fatalf("projects: %v", err)
	}
	requireContains(t, out, `"lib-core"`)
}

func TestCLIPing(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"ping"}, env.configPath)
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	requireContains(t, out, "available")

	env.down.Store(true)
	if _, _, err := runCLI(t, []string{"ping", "--server", "local"}, env.configPath); err == nil {
		t.Fatalf("expected ping to fail when catalog is down")
	}
}

func TestCLIConfigSampleAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "Catalog servers: local")

	target := filepath.Join(t.TempDir(), "sample.toml")
	out, _, err = runCLI(t, []string{"config", "sample", "--path", target}, "")
	if err != nil {
		t.Fatalf("config sample: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, _, err := runCLI(t, []string{"config", "sample", "--path", target}, ""); err == nil {
		t.Fatalf("expected existing sample to be protected")
	}
	if _, _, err := runCLI(t, []string{"config", "validate"}, target); err != nil {
		t.Fatalf("sample should validate: %v", err)
	}
}

func TestCLIConfigSeal(t *testing.T) {
	env := setupCLITestEnv(t)

	key, _, err := runCLI(t, []string{"config", "keygen"}, "")
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	t.Setenv("CATALOG_NOTIFIER_KEY", strings.TrimSpace(key))

	out, _, err := runCLI(t, []string{"config", "seal", "hunter22"}, env.configPath)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if strings.TrimSpace(out) == "" || strings.Contains(out, "hunter22") {
		t.Fatalf("unexpected sealed output %q", out)
	}
}
