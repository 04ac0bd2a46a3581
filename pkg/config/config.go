package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	"github.com/pelletier/go-toml/v2"
)

// Config captures module-level configuration knobs. Feature packages
// (ledger, catalog client, admin surfaces) pull from these nested structs.
type Config struct {
	Workspace WorkspaceConfig `mapstructure:"workspace" json:"workspace" toml:"workspace"`
	Catalog   CatalogConfig   `mapstructure:"catalog" json:"catalog" toml:"catalog"`
	Ledger    LedgerConfig    `mapstructure:"ledger" json:"ledger" toml:"ledger"`
	Logging   LoggingConfig   `mapstructure:"logging" json:"logging" toml:"logging"`
	Admin     AdminConfig     `mapstructure:"admin" json:"admin" toml:"admin"`
	Metrics   MetricsConfig   `mapstructure:"metrics" json:"metrics" toml:"metrics"`
	Secrets   SecretsConfig   `mapstructure:"secrets" json:"secrets" toml:"secrets"`
}

// WorkspaceConfig locates the build host's project tree.
type WorkspaceConfig struct {
	Root         string `mapstructure:"root" json:"root" toml:"root"`
	ReportFolder string `mapstructure:"report_folder" json:"report_folder" toml:"report_folder"`
}

// CatalogConfig names the catalog servers projects can point at.
type CatalogConfig struct {
	Default string                  `mapstructure:"default" json:"default" toml:"default"`
	Servers map[string]ServerConfig `mapstructure:"servers" json:"servers" toml:"servers"`
}

// ServerConfig is one catalog endpoint. PasswordSealed holds a password
// sealed with the key named in secrets.key_env and wins over Password.
type ServerConfig struct {
	Scheme         string `mapstructure:"scheme" json:"scheme" toml:"scheme"`
	Host           string `mapstructure:"host" json:"host" toml:"host"`
	Port           int    `mapstructure:"port" json:"port" toml:"port"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" json:"timeout_seconds" toml:"timeout_seconds"`
	Username       string `mapstructure:"username" json:"username" toml:"username,omitempty"`
	Password       string `mapstructure:"password" json:"password" toml:"password,omitempty"`
	PasswordSealed string `mapstructure:"password_sealed" json:"password_sealed" toml:"password_sealed,omitempty"`
}

// Ledger drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// LedgerConfig selects where delivery state is kept.
type LedgerConfig struct {
	Driver string      `mapstructure:"driver" json:"driver" toml:"driver"`
	DSN    string      `mapstructure:"dsn" json:"dsn" toml:"dsn,omitempty"`
	Redis  RedisConfig `mapstructure:"redis" json:"redis" toml:"redis"`
}

// RedisConfig connects the redis ledger driver.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" json:"addr" toml:"addr"`
	Password string `mapstructure:"password" json:"password" toml:"password,omitempty"`
	DB       int    `mapstructure:"db" json:"db" toml:"db"`
	Prefix   string `mapstructure:"prefix" json:"prefix" toml:"prefix"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level" json:"level" toml:"level"`
	Format string `mapstructure:"format" json:"format" toml:"format"`
}

// AdminConfig binds the admin HTTP surface.
type AdminConfig struct {
	Addr string `mapstructure:"addr" json:"addr" toml:"addr"`
}

// MetricsConfig toggles the Prometheus collector.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled" toml:"enabled"`
}

// SecretsConfig names the environment variable holding the sealing key.
type SecretsConfig struct {
	KeyEnv string `mapstructure:"key_env" json:"key_env" toml:"key_env"`
}

// Defaults returns the baseline configuration.
func Defaults() Config {
	return Config{
		Workspace: WorkspaceConfig{
			Root:         "./workspace",
			ReportFolder: "catalogReports",
		},
		Catalog: CatalogConfig{
			Default: "default",
			Servers: map[string]ServerConfig{
				"default": {Scheme: "http", Host: "localhost", Port: 8074, TimeoutSeconds: 30},
			},
		},
		Ledger: LedgerConfig{
			Driver: DriverFile,
			DSN:    "file:catalog-ledger.db?cache=shared",
			Redis:  RedisConfig{Addr: "localhost:6379", Prefix: "catalog-notifier:ledger"},
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Admin:   AdminConfig{Addr: ":8090"},
		Secrets: SecretsConfig{KeyEnv: "CATALOG_NOTIFIER_KEY"},
	}
}

// Validate ensures required fields are present and sane.
func (c *Config) Validate() error {
	if c.Workspace.Root == "" {
		return errors.New("workspace.root is required")
	}
	if len(c.Catalog.Servers) == 0 {
		return errors.New("catalog.servers must define at least one server")
	}
	for name, srv := range c.Catalog.Servers {
		if strings.TrimSpace(srv.Host) == "" {
			return fmt.Errorf("catalog.servers.%s.host is required", name)
		}
		if srv.Port < 0 || srv.Port > 65535 {
			return fmt.Errorf("catalog.servers.%s.port must be within 0-65535", name)
		}
		if srv.TimeoutSeconds < 0 {
			return fmt.Errorf("catalog.servers.%s.timeout_seconds must be >= 0", name)
		}
	}
	if _, ok := c.Catalog.Servers[c.Catalog.Default]; !ok {
		return fmt.Errorf("catalog.default %q does not name a configured server", c.Catalog.Default)
	}
	switch c.Ledger.Driver {
	case DriverFile, DriverMemory:
	case DriverSQLite:
		if c.Ledger.DSN == "" {
			return errors.New("ledger.dsn is required for the sqlite driver")
		}
	case DriverRedis:
		if c.Ledger.Redis.Addr == "" {
			return errors.New("ledger.redis.addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("ledger.driver %q is not supported", c.Ledger.Driver)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// Server returns the named catalog server, falling back to the default one
// when name is empty.
func (c Config) Server(name string) (ServerConfig, string, error) {
	if strings.TrimSpace(name) == "" {
		name = c.Catalog.Default
	}
	srv, ok := c.Catalog.Servers[name]
	if !ok {
		return ServerConfig{}, name, fmt.Errorf("config: unknown catalog server %q", name)
	}
	return srv, name, nil
}

// ServerNames lists configured catalog servers in sorted order.
func (c Config) ServerNames() []string {
	names := make([]string, 0, len(c.Catalog.Servers))
	for name := range c.Catalog.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load decodes arbitrary input (struct, map, cfg struct) using cfgx helpers.
// While cfgx.Build still returns zero values, we fallback to a lightweight
// decoder.
func Load(input any, opts ...LoadOption) (Config, error) {
	settings := loadOptions{}
	for _, opt := range opts {
		opt(&settings)
	}

	cfg, err := cfgx.Build(input, settings.buildOpts...)
	if err != nil {
		return Config{}, err
	}

	if isZero(cfg) {
		if err := decodeFallback(input, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg = cfg.withDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFile parses a TOML file and loads it. A missing file yields defaults.
func LoadFile(path string, opts ...LoadOption) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return Load(map[string]any{}, opts...)
	}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return Load(map[string]any{}, opts...)
	}
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	raw := map[string]any{}
	decoder := toml.NewDecoder(file)
	if err := decoder.Decode(&raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return Load(raw, opts...)
}

// Sample renders the default configuration as TOML.
func Sample() (string, error) {
	data, err := toml.Marshal(Defaults())
	if err != nil {
		return "", fmt.Errorf("render sample config: %w", err)
	}
	return string(data), nil
}

// LoadOption lets callers amend cfgx build options.
type LoadOption func(*loadOptions)

type loadOptions struct {
	buildOpts []cfgx.Option[Config]
}

// WithBuildOptions forwards cfgx options (duration hooks, preprocessors, etc.).
func WithBuildOptions(opts ...cfgx.Option[Config]) LoadOption {
	return func(lo *loadOptions) {
		lo.buildOpts = append(lo.buildOpts, opts...)
	}
}

func (c Config) withDefaults() Config {
	defaults := Defaults()

	if c.Workspace.Root == "" {
		c.Workspace.Root = defaults.Workspace.Root
	}
	if c.Workspace.ReportFolder == "" {
		c.Workspace.ReportFolder = defaults.Workspace.ReportFolder
	}
	if len(c.Catalog.Servers) == 0 {
		c.Catalog.Servers = defaults.Catalog.Servers
	}
	if c.Catalog.Default == "" {
		c.Catalog.Default = defaults.Catalog.Default
		if _, ok := c.Catalog.Servers[c.Catalog.Default]; !ok && len(c.Catalog.Servers) == 1 {
			for name := range c.Catalog.Servers {
				c.Catalog.Default = name
			}
		}
	}
	for name, srv := range c.Catalog.Servers {
		if srv.Scheme == "" {
			srv.Scheme = "http"
		}
		if srv.TimeoutSeconds == 0 {
			srv.TimeoutSeconds = 30
		}
		c.Catalog.Servers[name] = srv
	}
	if c.Ledger.Driver == "" {
		c.Ledger.Driver = defaults.Ledger.Driver
	}
	if c.Ledger.DSN == "" && c.Ledger.Driver == DriverSQLite {
		c.Ledger.DSN = defaults.Ledger.DSN
	}
	if c.Ledger.Redis.Addr == "" {
		c.Ledger.Redis.Addr = defaults.Ledger.Redis.Addr
	}
	if c.Ledger.Redis.Prefix == "" {
		c.Ledger.Redis.Prefix = defaults.Ledger.Redis.Prefix
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Logging.Format
	}
	if c.Admin.Addr == "" {
		c.Admin.Addr = defaults.Admin.Addr
	}
	if c.Secrets.KeyEnv == "" {
		c.Secrets.KeyEnv = defaults.Secrets.KeyEnv
	}
	return c
}

func isZero(cfg Config) bool {
	return reflect.DeepEqual(cfg, Config{})
}

func decodeFallback(input any, cfg *Config) error {
	switch v := input.(type) {
	case nil:
		return nil
	case Config:
		*cfg = v
		return nil
	case *Config:
		if v != nil {
			*cfg = *v
		}
		return nil
	case map[string]any:
		return decodeMap(v, cfg)
	default:
		return fmt.Errorf("unsupported config input type: %T", input)
	}
}

func decodeMap(input map[string]any, cfg *Config) error {
	if input == nil {
		return nil
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, cfg)
}
