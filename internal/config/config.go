package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dshills/tribunal/internal/logging"
)

// Config represents the tribunal configuration.
type Config struct {
	Provider            string        `mapstructure:"provider" yaml:"provider"`
	Model               string        `mapstructure:"model" yaml:"model"`
	Format              string        `mapstructure:"format" yaml:"format"`
	CatalogDir          string        `mapstructure:"catalog_dir" yaml:"catalog_dir,omitempty"`
	BaseBranch          string        `mapstructure:"base_branch" yaml:"base_branch"`
	AgentTimeoutSeconds int           `mapstructure:"agent_timeout_seconds" yaml:"agent_timeout_seconds,omitempty"` // 0 uses each agent's timeoutSeconds
	MaxFindingsPerAgent int           `mapstructure:"max_findings_per_agent" yaml:"max_findings_per_agent"`
	FailOn              string        `mapstructure:"fail_on" yaml:"fail_on"`
	Log                 LogConfig     `mapstructure:"log" yaml:"log"`
	Cache               CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Privacy             PrivacyConfig `mapstructure:"privacy" yaml:"privacy"`
	Gaps                GapsConfig    `mapstructure:"gaps" yaml:"gaps"`
	GitHub              GitHubConfig  `mapstructure:"github" yaml:"github"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file,omitempty"`
}

// CacheConfig controls response caching.
type CacheConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir        string `mapstructure:"dir" yaml:"dir,omitempty"`
	TTLSeconds int    `mapstructure:"ttl_seconds" yaml:"ttl_seconds"`
}

// PrivacyConfig controls redaction of content sent to providers.
type PrivacyConfig struct {
	RedactSecrets bool     `mapstructure:"redact_secrets" yaml:"redact_secrets"`
	RedactPaths   []string `mapstructure:"redact_paths" yaml:"redact_paths,omitempty"`
}

// GapsConfig controls the coverage gap analyzer.
type GapsConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	FallbackAgent string `mapstructure:"fallback_agent" yaml:"fallback_agent,omitempty"`
}

// GitHubConfig names the repository reports are published to. Empty values
// are detected from the git remote.
type GitHubConfig struct {
	Owner string `mapstructure:"owner" yaml:"owner,omitempty"`
	Repo  string `mapstructure:"repo" yaml:"repo,omitempty"`
}

// Fail thresholds accepted by FailOn.
var failThresholds = []string{"none", "critical", "major", "warning", "info"}

var formats = []string{"text", "json", "markdown", "sarif"}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Provider:            "anthropic",
		Model:               "claude-sonnet-4-20250514",
		Format:              "text",
		BaseBranch:          "main",
		MaxFindingsPerAgent: 25,
		FailOn:              "major",
		Log: LogConfig{
			Level: logging.LevelWarn,
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTLSeconds: 86400,
		},
		Privacy: PrivacyConfig{
			RedactSecrets: true,
			RedactPaths:   []string{"**/.env", "**/*secrets*"},
		},
		Gaps: GapsConfig{
			Enabled:       true,
			FallbackAgent: "coverage-reviewer",
		},
	}
}

// ConfigDir returns the platform-appropriate config directory for tribunal.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tribunal"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "tribunal"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "tribunal"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "tribunal"), nil
	default:
		return filepath.Join(home, ".config", "tribunal"), nil
	}
}

// ConfigPath returns the full path to the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load builds the effective config from the default config file.
// Precedence: defaults <- file <- TRIBUNAL_* env <- overrides.
func Load(overrides map[string]any) (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	return LoadFrom(path, overrides)
}

// LoadFrom is Load with an explicit config file path. A missing file is
// not an error.
func LoadFrom(path string, overrides map[string]any) (Config, error) {
	v := newViper()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("reading config file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	for k, val := range overrides {
		v.Set(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("TRIBUNAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("provider", d.Provider)
	v.SetDefault("model", d.Model)
	v.SetDefault("format", d.Format)
	v.SetDefault("catalog_dir", d.CatalogDir)
	v.SetDefault("base_branch", d.BaseBranch)
	v.SetDefault("agent_timeout_seconds", d.AgentTimeoutSeconds)
	v.SetDefault("max_findings_per_agent", d.MaxFindingsPerAgent)
	v.SetDefault("fail_on", d.FailOn)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.ttl_seconds", d.Cache.TTLSeconds)
	v.SetDefault("privacy.redact_secrets", d.Privacy.RedactSecrets)
	v.SetDefault("privacy.redact_paths", d.Privacy.RedactPaths)
	v.SetDefault("gaps.enabled", d.Gaps.Enabled)
	v.SetDefault("gaps.fallback_agent", d.Gaps.FallbackAgent)
	v.SetDefault("github.owner", d.GitHub.Owner)
	v.SetDefault("github.repo", d.GitHub.Repo)
	return v
}

// LoadFile reads only the config file at path, without defaults or env.
// A missing file yields Default().
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Keys lists the keys accepted by SetField.
func Keys() []string {
	return []string{
		"provider", "model", "format", "catalog_dir", "base_branch",
		"agent_timeout_seconds", "max_findings_per_agent", "fail_on",
		"log.level", "log.file",
		"cache.enabled", "cache.dir", "cache.ttl_seconds",
		"privacy.redact_secrets", "privacy.redact_paths",
		"gaps.enabled", "gaps.fallback_agent",
		"github.owner", "github.repo",
	}
}

// SetField sets a single config field by key name. Returns error if key is unknown.
func SetField(cfg *Config, key, value string) error {
	switch key {
	case "provider":
		cfg.Provider = value
	case "model":
		cfg.Model = value
	case "format":
		cfg.Format = value
	case "catalog_dir":
		cfg.CatalogDir = value
	case "base_branch":
		cfg.BaseBranch = value
	case "agent_timeout_seconds":
		return setInt(&cfg.AgentTimeoutSeconds, key, value)
	case "max_findings_per_agent":
		return setInt(&cfg.MaxFindingsPerAgent, key, value)
	case "fail_on":
		cfg.FailOn = value
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "cache.enabled":
		return setBool(&cfg.Cache.Enabled, key, value)
	case "cache.dir":
		cfg.Cache.Dir = value
	case "cache.ttl_seconds":
		return setInt(&cfg.Cache.TTLSeconds, key, value)
	case "privacy.redact_secrets":
		return setBool(&cfg.Privacy.RedactSecrets, key, value)
	case "privacy.redact_paths":
		cfg.Privacy.RedactPaths = splitList(value)
	case "gaps.enabled":
		return setBool(&cfg.Gaps.Enabled, key, value)
	case "gaps.fallback_agent":
		cfg.Gaps.FallbackAgent = value
	case "github.owner":
		cfg.GitHub.Owner = value
	case "github.repo":
		cfg.GitHub.Repo = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func setInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s must be an integer: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s must be true or false: %w", key, err)
	}
	*dst = b
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports every invalid field of cfg.
func (c Config) Validate() error {
	var problems []string
	if c.Provider == "" {
		problems = append(problems, "provider is required")
	}
	if c.Model == "" {
		problems = append(problems, "model is required")
	}
	if !slices.Contains(formats, c.Format) {
		problems = append(problems, fmt.Sprintf("format %q must be one of %s", c.Format, strings.Join(formats, ", ")))
	}
	if !slices.Contains(failThresholds, c.FailOn) {
		problems = append(problems, fmt.Sprintf("fail_on %q must be one of %s", c.FailOn, strings.Join(failThresholds, ", ")))
	}
	if c.BaseBranch == "" {
		problems = append(problems, "base_branch is required")
	}
	if c.AgentTimeoutSeconds < 0 {
		problems = append(problems, "agent_timeout_seconds must not be negative")
	}
	if c.MaxFindingsPerAgent < 0 {
		problems = append(problems, "max_findings_per_agent must not be negative")
	}
	if c.Cache.TTLSeconds < 0 {
		problems = append(problems, "cache.ttl_seconds must not be negative")
	}
	if c.Log.Level != "" && !logging.IsValidLevel(c.Log.Level) {
		problems = append(problems, fmt.Sprintf("log.level %q must be one of %s", c.Log.Level, strings.Join(logging.ValidLevels(), ", ")))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
