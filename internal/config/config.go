// Package config loads gateway settings from YAML with environment
// overrides.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jibsandbox/jib-gateway/internal/alert"
	"github.com/jibsandbox/jib-gateway/internal/denylist"
	"github.com/jibsandbox/jib-gateway/internal/ownership"
	"github.com/jibsandbox/jib-gateway/internal/ratelimit"
)

// Listen is the sidecar's network address.
type Listen struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Addr returns host:port for the HTTP listener.
func (l Listen) Addr() string { return net.JoinHostPort(l.Host, strconv.Itoa(l.Port)) }

// GRPCAddr returns host:port for the gRPC listener, "" when disabled.
func (l Listen) GRPCAddr() string {
	if l.GRPCPort == 0 {
		return ""
	}
	return net.JoinHostPort(l.Host, strconv.Itoa(l.GRPCPort))
}

// Visibility tunes the visibility cache. TTLs are in seconds.
type Visibility struct {
	ReadTTL        int `yaml:"read_ttl"`
	WriteTTL       int `yaml:"write_ttl"`
	TimeoutSeconds int `yaml:"timeout"`
	Capacity       int `yaml:"capacity"`
}

// ReadTTLDuration returns ReadTTL; zero disables read caching.
func (v Visibility) ReadTTLDuration() time.Duration {
	if v.ReadTTL == 0 {
		return -1
	}
	return time.Duration(v.ReadTTL) * time.Second
}

// WriteTTLDuration returns WriteTTL.
func (v Visibility) WriteTTLDuration() time.Duration {
	return time.Duration(v.WriteTTL) * time.Second
}

// GitHub holds both credential sources. Either may be inline or a file.
type GitHub struct {
	Token          string `yaml:"token"`
	TokenFile      string `yaml:"token_file"`
	UserToken      string `yaml:"user_token"`
	UserTokenFile  string `yaml:"user_token_file"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout"`
}

// Secret locates the shared bearer secret.
type Secret struct {
	Value string `yaml:"value"`
	File  string `yaml:"file"`
}

// Ownership configures agent identities and owned branch prefixes.
type Ownership struct {
	Identities []string `yaml:"identities"`
	Prefixes   []string `yaml:"prefixes"`
}

// Exec configures the git and gh subprocesses.
type Exec struct {
	GHPath             string `yaml:"gh_path"`
	GitPath            string `yaml:"git_path"`
	PushTimeoutSeconds int    `yaml:"push_timeout"`
	ExecTimeoutSeconds int    `yaml:"exec_timeout"`
}

// Config is the complete gateway configuration.
type Config struct {
	PrivateRepoMode bool             `yaml:"private_repo_mode"`
	Listen          Listen           `yaml:"listen"`
	Visibility      Visibility       `yaml:"visibility"`
	GitHub          GitHub           `yaml:"github"`
	Secret          Secret           `yaml:"secret"`
	AuditLog        string           `yaml:"audit_log"`
	Ownership       Ownership        `yaml:"ownership"`
	RateLimits      ratelimit.Config `yaml:"rate_limits"`
	Denylist        []denylist.Rule  `yaml:"denylist"`
	Exec            Exec             `yaml:"exec"`
	Alerts          []alert.Config   `yaml:"alerts"`
	LogLevel        string           `yaml:"log_level"`
}

// Dir returns ~/.jib-gateway.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".jib-gateway"
	}
	return filepath.Join(home, ".jib-gateway")
}

// DefaultPath returns ~/.jib-gateway/config.yaml.
func DefaultPath() string { return filepath.Join(Dir(), "config.yaml") }

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		PrivateRepoMode: false,
		Listen:          Listen{Host: "127.0.0.1", Port: 9847},
		Visibility:      Visibility{ReadTTL: 60, WriteTTL: 0, TimeoutSeconds: 15, Capacity: 1000},
		GitHub:          GitHub{TimeoutSeconds: 15},
		Secret:          Secret{File: filepath.Join(Dir(), "gateway-secret")},
		Ownership: Ownership{
			Identities: append([]string(nil), ownership.DefaultIdentities...),
			Prefixes:   append([]string(nil), ownership.DefaultPrefixes...),
		},
		RateLimits: ratelimit.DefaultConfig(),
		Exec:       Exec{GHPath: "gh", GitPath: "git", PushTimeoutSeconds: 120, ExecTimeoutSeconds: 60},
		LogLevel:   "info",
	}
}

// LookupFunc reads an environment variable.
type LookupFunc func(string) (string, bool)

// Load reads the YAML file at path over defaults, then applies env
// overrides. An empty path uses DefaultPath; a missing file is not an
// error. The returned hash covers the raw file bytes.
func Load(path string, lookup LookupFunc) (*Config, string, error) {
	if path == "" {
		path = DefaultPath()
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		data = nil
	case err != nil:
		return nil, "", fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, "", fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])

	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, hash, nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if v, ok := lookup("PRIVATE_REPO_MODE"); ok && v != "" {
		b, err := parseBool(v)
		if err != nil {
			return fmt.Errorf("PRIVATE_REPO_MODE: %w", err)
		}
		c.PrivateRepoMode = b
	}
	if err := envInt(lookup, "VISIBILITY_CACHE_TTL_READ", &c.Visibility.ReadTTL); err != nil {
		return err
	}
	if err := envInt(lookup, "VISIBILITY_CACHE_TTL_WRITE", &c.Visibility.WriteTTL); err != nil {
		return err
	}
	envString(lookup, "GATEWAY_SECRET", &c.Secret.Value)
	envString(lookup, "GATEWAY_SECRET_FILE", &c.Secret.File)
	envString(lookup, "GITHUB_TOKEN", &c.GitHub.Token)
	envString(lookup, "GITHUB_TOKEN_FILE", &c.GitHub.TokenFile)
	envString(lookup, "GITHUB_USER_TOKEN", &c.GitHub.UserToken)
	envString(lookup, "GITHUB_USER_TOKEN_FILE", &c.GitHub.UserTokenFile)
	envString(lookup, "GITHUB_API_URL", &c.GitHub.BaseURL)
	envString(lookup, "GATEWAY_HOST", &c.Listen.Host)
	if err := envInt(lookup, "GATEWAY_PORT", &c.Listen.Port); err != nil {
		return err
	}
	if err := envInt(lookup, "GATEWAY_GRPC_PORT", &c.Listen.GRPCPort); err != nil {
		return err
	}
	envString(lookup, "GATEWAY_AUDIT_LOG", &c.AuditLog)
	envString(lookup, "GATEWAY_LOG_LEVEL", &c.LogLevel)
	return nil
}

// Validate rejects out-of-range values.
func (c *Config) Validate() error {
	var errs []error
	if c.Listen.Host == "" {
		errs = append(errs, errors.New("listen host is empty"))
	}
	if c.Listen.Port < 1 || c.Listen.Port > 65535 {
		errs = append(errs, fmt.Errorf("listen port %d out of range", c.Listen.Port))
	}
	if c.Listen.GRPCPort < 0 || c.Listen.GRPCPort > 65535 {
		errs = append(errs, fmt.Errorf("grpc port %d out of range", c.Listen.GRPCPort))
	}
	if c.Listen.GRPCPort != 0 && c.Listen.GRPCPort == c.Listen.Port {
		errs = append(errs, errors.New("grpc port must differ from http port"))
	}
	if c.Visibility.ReadTTL < 0 {
		errs = append(errs, fmt.Errorf("visibility read TTL %d is negative", c.Visibility.ReadTTL))
	}
	if c.Visibility.WriteTTL < 0 {
		errs = append(errs, fmt.Errorf("visibility write TTL %d is negative", c.Visibility.WriteTTL))
	}
	if len(c.Ownership.Identities) == 0 {
		errs = append(errs, errors.New("ownership identities are empty"))
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log level %q", c.LogLevel))
	}
	for i, a := range c.Alerts {
		if a.URL == "" {
			errs = append(errs, fmt.Errorf("alert %d has no url", i))
		}
		switch a.Format {
		case "", "generic", "slack", "pagerduty":
		default:
			errs = append(errs, fmt.Errorf("alert %d: unknown format %q", i, a.Format))
		}
	}
	for op, n := range c.RateLimits.Operations {
		if n < 0 {
			errs = append(errs, fmt.Errorf("rate limit for %s is negative", op))
		}
	}
	return errors.Join(errs...)
}

// MaskedSecret reports whether the secret comes from a value or file,
// without revealing it.
func (c *Config) MaskedSecret() string {
	if c.Secret.Value != "" {
		return "(inline)"
	}
	return c.Secret.File
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", v)
	}
}

func envString(lookup LookupFunc, key string, dst *string) {
	if v, ok := lookup(key); ok && v != "" {
		*dst = v
	}
}

func envInt(lookup LookupFunc, key string, dst *int) error {
	v, ok := lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", key, v)
	}
	*dst = n
	return nil
}
