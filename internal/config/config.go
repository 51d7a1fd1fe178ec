// Package config handles loading and validating execgate configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

func init() {
	// Load .env file if it exists
	_ = godotenv.Load()
}

// Config is the root configuration for execgate.
type Config struct {
	Policy        PolicyConfig         `json:"policy" yaml:"policy"`
	Audit         AuditConfig          `json:"audit" yaml:"audit"`
	Observability *ObservabilityConfig `json:"observability,omitempty" yaml:"observability,omitempty"` // nil = observability disabled
	DataDir       string               `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`           // Persistent data directory. Default: ~/.execgate. Override: EXECGATE_DATA_DIR env var.
}

// PolicyConfig is the on-disk form of the gateway policy.
type PolicyConfig struct {
	Whitelist          []string `json:"whitelist" yaml:"whitelist"`                       // Programs allowed to run. Exact, case-sensitive names.
	MaxArgLen          int      `json:"max_arg_len" yaml:"max_arg_len"`                   // Default: 4096 bytes per argument.
	MaxArgCount        int      `json:"max_arg_count" yaml:"max_arg_count"`               // Default: 50.
	DefaultTimeoutS    int      `json:"default_timeout_s" yaml:"default_timeout_s"`       // Default: 30.
	MaxTimeoutS        int      `json:"max_timeout_s" yaml:"max_timeout_s"`               // Default: 300.
	MaxOutputBytes     int      `json:"max_output_bytes" yaml:"max_output_bytes"`         // Default: 10485760 (10 MB).
	AllowedWorkingDirs []string `json:"allowed_working_dirs" yaml:"allowed_working_dirs"` // Default: the process working directory.
	DefaultWorkingDir  string   `json:"default_working_dir" yaml:"default_working_dir"`   // Default: first allowed root.
}

// AuditConfig selects and configures the audit backend.
type AuditConfig struct {
	Backend       string `json:"backend" yaml:"backend"`                                   // "file" (default), "sqlite", or "none".
	Path          string `json:"path,omitempty" yaml:"path,omitempty"`                     // Log/database path. Default: derived from data dir.
	RetentionDays int    `json:"retention_days" yaml:"retention_days"`                     // SQLite only. 0 = keep forever.
	PruneSchedule string `json:"prune_schedule,omitempty" yaml:"prune_schedule,omitempty"` // Cron spec. Default: "0 3 * * *".
}

// ObservabilityConfig configures metrics exposition and tracing.
// When nil, all observability features are disabled with zero overhead.
type ObservabilityConfig struct {
	Metrics *MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Tracing *TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`
}

// MetricsConfig configures the Prometheus/health HTTP server.
type MetricsConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"` // Default: ":9090".
}

// TracingConfig configures OTLP trace export.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	ServiceName string  `json:"service_name,omitempty" yaml:"service_name,omitempty"` // Default: "execgate".
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`                             // OTLP collector endpoint.
	Protocol    string  `json:"protocol,omitempty" yaml:"protocol,omitempty"`         // "grpc" (default) or "http".
	Insecure    bool    `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	SampleRate  float64 `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"` // Default: 1.0.
}

// DefaultConfigPath returns the standard config file location.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "configs/execgate.yaml" // fallback for environments without a home dir
	}
	return filepath.Join(home, ".execgate", "config.yaml")
}

// Load reads a YAML config file and returns a validated Config.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path %s: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", resolved, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", resolved, err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Default returns a config with every default applied and an empty
// whitelist: default-deny until programs are listed.
func Default() *Config {
	cfg := &Config{}
	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if envDD := os.Getenv("EXECGATE_DATA_DIR"); envDD != "" {
		c.DataDir = envDD
	}
	if envAudit := os.Getenv("EXECGATE_AUDIT_BACKEND"); envAudit != "" {
		c.Audit.Backend = envAudit
	}
	if envPath := os.Getenv("EXECGATE_AUDIT_PATH"); envPath != "" {
		c.Audit.Path = envPath
	}
	if envEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); envEndpoint != "" {
		if c.Observability == nil {
			c.Observability = &ObservabilityConfig{}
		}
		if c.Observability.Tracing == nil {
			c.Observability.Tracing = &TracingConfig{Enabled: true}
		}
		c.Observability.Tracing.Endpoint = envEndpoint
	}
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			c.DataDir = filepath.Join(home, ".execgate")
		} else {
			c.DataDir = "."
		}
	}
	if c.Audit.Backend == "" {
		c.Audit.Backend = "file"
	}
	if c.Audit.Path == "" {
		switch c.Audit.Backend {
		case "sqlite":
			c.Audit.Path = filepath.Join(c.DataDir, "audit.db")
		default:
			c.Audit.Path = filepath.Join(c.DataDir, "audit.log")
		}
	}
	if c.Audit.PruneSchedule == "" {
		c.Audit.PruneSchedule = "0 3 * * *"
	}
	if c.Observability != nil && c.Observability.Metrics != nil && c.Observability.Metrics.ListenAddr == "" {
		c.Observability.Metrics.ListenAddr = ":9090"
	}
}

func (c *Config) validate() error {
	switch c.Audit.Backend {
	case "file", "sqlite", "none":
	default:
		return fmt.Errorf("unknown audit backend %q (want file, sqlite, or none)", c.Audit.Backend)
	}
	if c.Audit.RetentionDays < 0 {
		return fmt.Errorf("audit retention_days must not be negative")
	}
	if c.Policy.MaxArgLen < 0 || c.Policy.MaxArgCount < 0 ||
		c.Policy.DefaultTimeoutS < 0 || c.Policy.MaxTimeoutS < 0 || c.Policy.MaxOutputBytes < 0 {
		return fmt.Errorf("policy limits must not be negative")
	}
	if c.Policy.MaxTimeoutS > 0 && c.Policy.DefaultTimeoutS > c.Policy.MaxTimeoutS {
		return fmt.Errorf("policy default_timeout_s %d exceeds max_timeout_s %d",
			c.Policy.DefaultTimeoutS, c.Policy.MaxTimeoutS)
	}
	return nil
}

// DefaultTimeout returns the configured default timeout as a duration.
func (p *PolicyConfig) DefaultTimeout() time.Duration {
	return time.Duration(p.DefaultTimeoutS) * time.Second
}

// MaxTimeout returns the configured timeout ceiling as a duration.
func (p *PolicyConfig) MaxTimeout() time.Duration {
	return time.Duration(p.MaxTimeoutS) * time.Second
}

// resolvePath expands ~ to the user home directory and returns an absolute path.
func resolvePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}
