package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RecordMeta captures identifiers and audit fields shared across entities.
type RecordMeta struct {
	ID        uuid.UUID `bun:",pk,type:uuid" json:"id"`
	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// EnsureID assigns a UUID when the struct is about to be persisted.
func (m *RecordMeta) EnsureID() {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
}

// LedgerRecord is the relational form of a ledger entry, keyed by build and entry key.
type LedgerRecord struct {
	bun.BaseModel `bun:"table:catalog_ledger_entries"`
	RecordMeta

	Project     string `bun:",notnull,unique:ledger_entry" json:"project"`
	BuildNumber int    `bun:",notnull,unique:ledger_entry" json:"build_number"`
	Key         string `bun:",notnull,unique:ledger_entry" json:"key"`
	Data        string `bun:",notnull" json:"data"`
}

// Build results reported by the CI host.
const (
	ResultSuccess  = "SUCCESS"
	ResultUnstable = "UNSTABLE"
	ResultFailure  = "FAILURE"
	ResultAborted  = "ABORTED"
	// ResultUnknown marks a build whose record could not be read.
	ResultUnknown = "UNKNOWN"
)

// Build is one execution of a project. ReportDir is the storage scope private
// to the build; artifacts and ledger entries live under it.
type Build struct {
	Project   string            `json:"project"`
	Number    int               `json:"number"`
	RootDir   string            `json:"root_dir"`
	ReportDir string            `json:"report_dir"`
	Result    string            `json:"result"`
	Env       map[string]string `json:"env,omitempty"`
}

// Key returns a stable identifier for the build within its host.
func (b *Build) Key() string {
	if b == nil {
		return ""
	}
	return b.Project + "#" + strconv.Itoa(b.Number)
}

func (b *Build) String() string {
	if b == nil {
		return "<nil build>"
	}
	return fmt.Sprintf("%s #%d", b.Project, b.Number)
}

// Succeeded reports whether the build result allows publication.
func (b *Build) Succeeded() bool {
	return b != nil && b.Result == ResultSuccess
}

// Credentials authenticate publisher calls on the catalog service.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"-"`
}

// ServerConfig points at a catalog service instance.
type ServerConfig struct {
	Name           string       `json:"name"`
	Scheme         string       `json:"scheme"`
	Host           string       `json:"host"`
	Port           int          `json:"port"`
	TimeoutSeconds int          `json:"timeout_seconds"`
	Credentials    *Credentials `json:"credentials,omitempty"`
}

// Address renders scheme://host:port.
func (c ServerConfig) Address() string {
	scheme := c.Scheme
	if scheme == "" {
		scheme = "http"
	}
	if c.Port <= 0 {
		return fmt.Sprintf("%s://%s", scheme, c.Host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

// User returns the publisher username and password, empty when anonymous.
func (c ServerConfig) User() (string, string) {
	if c.Credentials == nil {
		return "", ""
	}
	return c.Credentials.Username, c.Credentials.Password
}

// ProjectSettings toggles the notification sources enabled for a project.
type ProjectSettings struct {
	Server              string `toml:"catalog" json:"catalog"`
	ManageModuleReports bool   `toml:"manage_module_reports" json:"manage_module_reports"`
	ManageBuildInfo     bool   `toml:"manage_build_info" json:"manage_build_info"`
	ManagePromotions    bool   `toml:"manage_promotions" json:"manage_promotions"`
	PublishUnstable     bool   `toml:"publish_unstable" json:"publish_unstable"`
}

// Project owns a chronological build history and its catalog configuration.
type Project struct {
	Name     string          `json:"name"`
	Dir      string          `json:"dir"`
	Server   ServerConfig    `json:"server"`
	Settings ProjectSettings `json:"settings"`
	Builds   []*Build        `json:"builds"`
}

// Publishable reports whether the build result allows catalog publication:
// successful builds always, unstable ones only when the project opts in.
func (p *Project) Publishable(build *Build) bool {
	if build.Succeeded() {
		return true
	}
	return build != nil && p != nil &&
		p.Settings.PublishUnstable && build.Result == ResultUnstable
}

// Build looks up a build by number.
func (p *Project) Build(number int) (*Build, bool) {
	if p == nil {
		return nil, false
	}
	for _, b := range p.Builds {
		if b.Number == number {
			return b, true
		}
	}
	return nil, false
}

// Position returns the index of the build in the project history, or -1.
func (p *Project) Position(build *Build) int {
	if p == nil || build == nil {
		return -1
	}
	for i, b := range p.Builds {
		if b.Number == build.Number {
			return i
		}
	}
	return -1
}

// Module is the dependency report produced by a build. The full report is kept
// raw so it can be forwarded to the catalog untouched.
type Module struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Organization string          `json:"organization,omitempty"`
	Raw          json.RawMessage `json:"-"`
}

// MarshalJSON forwards the raw report when available.
func (m Module) MarshalJSON() ([]byte, error) {
	if len(m.Raw) > 0 {
		return m.Raw, nil
	}
	type alias Module
	return json.Marshal(alias(m))
}

// BuildInfo is the flat provenance map attached to a module version.
type BuildInfo map[string]string

// UnmarshalJSON decodes the report header and keeps the original document.
func (m *Module) UnmarshalJSON(data []byte) error {
	type alias Module
	var decoded alias
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*m = Module(decoded)
	m.Raw = append(json.RawMessage(nil), data...)
	return nil
}
