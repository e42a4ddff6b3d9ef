package gateway

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jibsandbox/jib-gateway/internal/alert"
	"github.com/jibsandbox/jib-gateway/internal/audit"
	"github.com/jibsandbox/jib-gateway/internal/auth"
	"github.com/jibsandbox/jib-gateway/internal/cmdguard"
	"github.com/jibsandbox/jib-gateway/internal/config"
	"github.com/jibsandbox/jib-gateway/internal/denylist"
	"github.com/jibsandbox/jib-gateway/internal/fork"
	"github.com/jibsandbox/jib-gateway/internal/github"
	"github.com/jibsandbox/jib-gateway/internal/ownership"
	"github.com/jibsandbox/jib-gateway/internal/ratelimit"
	"github.com/jibsandbox/jib-gateway/internal/redact"
	"github.com/jibsandbox/jib-gateway/internal/repomode"
	"github.com/jibsandbox/jib-gateway/internal/visibility"
)

// Runtime is a Gateway plus the resources its transports need.
type Runtime struct {
	Gateway *Gateway
	Auth    *auth.Authenticator
	Tokens  github.Fallback
	closers []func() error
}

// Close waits for pending alerts and releases the audit log.
func (r *Runtime) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// TokenSources returns the bot and user credential sources from cfg.
func TokenSources(cfg *config.Config) []github.TokenSource {
	return []github.TokenSource{
		{Name: "bot", Value: cfg.GitHub.Token, File: cfg.GitHub.TokenFile},
		{Name: "user", Value: cfg.GitHub.UserToken, File: cfg.GitHub.UserTokenFile},
	}
}

// ReloadableFrom extracts the hot-reloadable settings of cfg.
func ReloadableFrom(cfg *config.Config) Reloadable {
	return Reloadable{
		Mode:       repomode.ModeFromBool(cfg.PrivateRepoMode),
		ReadTTL:    cfg.Visibility.ReadTTLDuration(),
		WriteTTL:   cfg.Visibility.WriteTTLDuration(),
		RateLimits: cfg.RateLimits,
		Denylist:   cfg.Denylist,
	}
}

// BuildOptions control Build.
type BuildOptions struct {
	// CreateSecret generates the secret file when missing. Servers set it;
	// one-shot commands do not.
	CreateSecret bool
	Logger       *slog.Logger
}

// Build wires a Gateway from configuration.
func Build(cfg *config.Config, opts BuildOptions) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{}

	secret := cfg.Secret.Value
	if secret == "" && cfg.Secret.File != "" {
		var err error
		if opts.CreateSecret {
			secret, err = auth.LoadOrCreateSecret(cfg.Secret.File)
		} else {
			secret, err = auth.LoadSecret(cfg.Secret.File)
		}
		if err != nil {
			return nil, err
		}
	}
	rt.Auth = auth.NewAuthenticator(secret)

	timeout := time.Duration(cfg.GitHub.TimeoutSeconds) * time.Second
	var sources []visibility.Source
	for _, src := range TokenSources(cfg) {
		tc := github.NewTokenClient(src, cfg.GitHub.BaseURL, timeout)
		rt.Tokens = append(rt.Tokens, tc)
		sources = append(sources, visibility.Source{Name: src.Name, Fetcher: tc})
	}

	checker := visibility.New(sources, visibility.Config{
		ReadTTL:  cfg.Visibility.ReadTTLDuration(),
		WriteTTL: cfg.Visibility.WriteTTLDuration(),
		Capacity: cfg.Visibility.Capacity,
		Timeout:  time.Duration(cfg.Visibility.TimeoutSeconds) * time.Second,
		Logger:   logger.With("component", "visibility"),
	})
	mode := repomode.New(checker, repomode.ModeFromBool(cfg.PrivateRepoMode), logger.With("component", "repomode"))
	owners := ownership.New(rt.Tokens, ownership.Config{
		Identities: cfg.Ownership.Identities,
		Prefixes:   cfg.Ownership.Prefixes,
		Logger:     logger.With("component", "ownership"),
	})
	guard := cmdguard.NewGuard(cmdguard.Config{
		GHPath:      cfg.Exec.GHPath,
		GitPath:     cfg.Exec.GitPath,
		Token:       rt.Tokens.Token,
		Denylist:    denylist.New(denylist.Patterns{Commands: cfg.Denylist}),
		PushTimeout: time.Duration(cfg.Exec.PushTimeoutSeconds) * time.Second,
		ExecTimeout: time.Duration(cfg.Exec.ExecTimeoutSeconds) * time.Second,
	})

	var recorder audit.Recorder = audit.Nop{}
	if cfg.AuditLog != "" {
		l, err := audit.Open(cfg.AuditLog)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		recorder = l
		rt.closers = append(rt.closers, l.Close)
	}

	alerts := alert.NewDispatcher(cfg.Alerts, logger.With("component", "alert"))
	if alerts != nil {
		rt.closers = append(rt.closers, func() error { alerts.Wait(); return nil })
	}
	scrub := redact.New(func() []string {
		return append(rt.Tokens.Tokens(), secret)
	})

	rt.Gateway = New(Deps{
		Mode:       mode,
		Ownership:  owners,
		Fork:       fork.New(checker, mode, logger.With("component", "fork")),
		Visibility: checker,
		Exec:       guard,
		Limiter:    ratelimit.New(cfg.RateLimits, nil),
		Audit:      recorder,
		Health:     CredentialHealth{Clients: rt.Tokens, Auth: rt.Auth},
		Scrub:      scrub,
		Alerts:     alerts,
		Logger:     logger,
	})
	return rt, nil
}
