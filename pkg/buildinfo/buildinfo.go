// Package buildinfo derives the provenance document attached to a module
// version from the environment of the build that produced it.
package buildinfo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goliatone/go-catalog-notifier/pkg/domain"
)

// Build info keys.
const (
	KeyVCSType     = "vcs.type"
	KeyVCSURL      = "vcs.url"
	KeyVCSRevision = "vcs.revision"
	KeyCIHost      = "ci.host"
	KeyCINode      = "ci.node"
	KeyCIJobURL    = "ci.job.url"
	KeyCIBuildURL  = "ci.build.url"
	KeyBuildDate   = "build.date"
	KeyJavaHome    = "java.home"
)

// DateLayout renders build dates in GMT.
const DateLayout = "2006-01-02T15:04:05"

// FileName is the build info document written next to the module report.
const FileName = "buildInfo.json"

// Collect builds the info map from env. Keys with no value are omitted.
func Collect(env map[string]string, now time.Time) domain.BuildInfo {
	info := domain.BuildInfo{}
	set := func(key, value string) {
		if strings.TrimSpace(value) != "" {
			info[key] = value
		}
	}

	set(KeyVCSType, vcsType(env))
	set(KeyVCSURL, vcsURL(env))
	set(KeyVCSRevision, firstNonBlank(env["SVN_REVISION"], env["GIT_COMMIT"]))
	set(KeyCIHost, env["JENKINS_URL"])
	set(KeyCINode, env["NODE_NAME"])
	set(KeyCIJobURL, env["JOB_URL"])
	set(KeyCIBuildURL, env["BUILD_URL"])
	set(KeyBuildDate, now.UTC().Format(DateLayout))
	set(KeyJavaHome, env["JAVA_HOME"])
	return info
}

// Write stores info as buildInfo.json in the build report folder and returns its path.
func Write(build *domain.Build, info domain.BuildInfo) (string, error) {
	if build == nil || build.ReportDir == "" {
		return "", fmt.Errorf("buildinfo: build report folder is not set")
	}
	if err := os.MkdirAll(build.ReportDir, 0o755); err != nil {
		return "", fmt.Errorf("buildinfo: create %s: %w", build.ReportDir, err)
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return "", fmt.Errorf("buildinfo: encode: %w", err)
	}
	path := filepath.Join(build.ReportDir, FileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("buildinfo: write %s: %w", path, err)
	}
	return path, nil
}

func vcsType(env map[string]string) string {
	if _, ok := env["SVN_REVISION"]; ok {
		return "SVN"
	}
	if _, ok := env["GIT_COMMIT"]; ok {
		return "Git"
	}
	return ""
}

func vcsURL(env map[string]string) string {
	if url := env["SVN_URL"]; strings.TrimSpace(url) != "" {
		return url
	}
	return PublicGitURL(env["GIT_URL"])
}

// PublicGitURL drops the credentials an https Git remote may embed.
func PublicGitURL(raw string) string {
	const scheme = "https://"
	start := strings.Index(raw, scheme)
	at := strings.Index(raw, "@")
	if start < 0 || at < start {
		return raw
	}
	return scheme + raw[:start] + raw[at+1:]
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
