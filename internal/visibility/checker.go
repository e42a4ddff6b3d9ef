// Package visibility answers whether a repository is public, private or
// internal, with a two-TTL cache in front of the GitHub API and fallback
// across credentials.
package visibility

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jibsandbox/jib-gateway/internal/boundedcache"
	"github.com/jibsandbox/jib-gateway/internal/clock"
	"github.com/jibsandbox/jib-gateway/internal/github"
	"github.com/jibsandbox/jib-gateway/internal/model"
)

const (
	// DefaultReadTTL applies to read operations.
	DefaultReadTTL = 60 * time.Second
	// DefaultWriteTTL is zero: writes always re-verify.
	DefaultWriteTTL = 0
	// DefaultMaxRetryWait caps the Retry-After sleep on a 429.
	DefaultMaxRetryWait = 10 * time.Second
	// DefaultTimeout bounds one lookup across all credentials.
	DefaultTimeout = 15 * time.Second
	// DefaultCapacity bounds the number of cached repositories.
	DefaultCapacity = 1000
)

// Fetcher returns the raw visibility string for a repository using one
// credential. HTTP failures are reported as *github.StatusError.
type Fetcher interface {
	RepoVisibility(ctx context.Context, owner, repo string) (string, error)
}

// Source is one credential, tried in list order.
type Source struct {
	Name    string
	Fetcher Fetcher
}

// Config tunes a Checker. Zero values select defaults. WriteTTL defaults to
// zero; a negative ReadTTL disables read caching.
type Config struct {
	ReadTTL      time.Duration
	WriteTTL     time.Duration
	Capacity     int
	MaxRetryWait time.Duration
	Timeout      time.Duration
	Clock        clock.Clock
	Logger       *slog.Logger
}

type cached struct {
	Owner      string
	Repo       string
	Visibility model.Visibility
}

// Checker is safe for concurrent use.
type Checker struct {
	sources      []Source
	readTTL      time.Duration
	writeTTL     time.Duration
	maxRetryWait time.Duration
	timeout      time.Duration
	clock        clock.Clock
	logger       *slog.Logger
	cache        *boundedcache.Cache[cached]

	mu sync.Mutex
}

// New creates a Checker over sources in priority order.
func New(sources []Source, cfg Config) *Checker {
	if cfg.ReadTTL == 0 {
		cfg.ReadTTL = DefaultReadTTL
	}
	if cfg.MaxRetryWait <= 0 {
		cfg.MaxRetryWait = DefaultMaxRetryWait
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Checker{
		sources:      sources,
		readTTL:      cfg.ReadTTL,
		writeTTL:     cfg.WriteTTL,
		maxRetryWait: cfg.MaxRetryWait,
		timeout:      cfg.Timeout,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		cache:        boundedcache.New[cached](cfg.Capacity),
	}
}

// TTL returns the cache TTL for the given mode.
func (c *Checker) TTL(forWrite bool) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if forWrite {
		return c.writeTTL
	}
	return c.readTTL
}

// SetTTLs replaces both TTLs, used by config hot reload.
func (c *Checker) SetTTLs(read, write time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readTTL, c.writeTTL = read, write
}

// Visibility returns the repository's visibility. Any error means the
// answer is unknown and the caller must deny.
func (c *Checker) Visibility(ctx context.Context, owner, repo string, forWrite bool) (model.Visibility, error) {
	info := model.RepoInfo{Owner: owner, Repo: repo}
	if owner == "" || repo == "" {
		return "", &LookupError{Repo: info.FullName()}
	}
	key := info.Key()

	if hit, ok := c.cache.Get(key, c.TTL(forWrite), c.clock.Now()); ok {
		return hit.Visibility, nil
	}

	// The lookup is not tied to the inbound request: a disconnecting client
	// does not abort it, the timeout does.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	lerr := &LookupError{Repo: info.FullName()}
	for _, src := range c.sources {
		raw, err := c.fetch(ctx, src, owner, repo)
		if err != nil {
			reason := classify(err)
			lerr.Attempts = append(lerr.Attempts, Attempt{Source: src.Name, Reason: reason, Err: err})
			c.logger.Debug("visibility lookup failed for source",
				"repository", info.FullName(), "source", src.Name, "reason", string(reason), "error", err)
			continue
		}

		vis, err := model.ParseVisibility(raw)
		if err != nil {
			lerr.Attempts = append(lerr.Attempts, Attempt{Source: src.Name, Reason: ReasonInvalidResponse, Err: err})
			c.logger.Warn("rejecting unrecognized visibility from GitHub",
				"repository", info.FullName(), "source", src.Name, "value", raw)
			return "", lerr
		}

		c.cache.Set(key, cached{Owner: owner, Repo: repo, Visibility: vis}, c.clock.Now())
		return vis, nil
	}

	c.logger.Warn("visibility unknown", "repository", info.FullName(), "reasons", lerr.Reasons())
	return "", lerr
}

// fetch calls one source, honoring a single Retry-After on 429.
func (c *Checker) fetch(ctx context.Context, src Source, owner, repo string) (string, error) {
	raw, err := src.Fetcher.RepoVisibility(ctx, owner, repo)
	if err == nil || !github.IsTooManyRequests(err) {
		return raw, err
	}

	wait := github.RetryAfter(err)
	if wait <= 0 {
		wait = time.Second
	}
	if wait > c.maxRetryWait {
		wait = c.maxRetryWait
	}
	c.logger.Info("GitHub rate limited visibility lookup, retrying once",
		"source", src.Name, "wait", wait.String())

	select {
	case <-c.clock.After(wait):
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for rate limit: %w", ctx.Err())
	}
	return src.Fetcher.RepoVisibility(ctx, owner, repo)
}

func classify(err error) FailureReason {
	if errors.Is(err, github.ErrNoToken) {
		return ReasonNoCredentials
	}
	switch github.StatusCode(err) {
	case 0:
		return ReasonTransport
	case http.StatusNotFound:
		return ReasonNotFound
	case http.StatusForbidden:
		return ReasonForbidden
	case http.StatusUnauthorized:
		return ReasonUnauthorized
	case http.StatusTooManyRequests:
		return ReasonRateLimited
	default:
		return ReasonUpstream
	}
}

// Invalidate drops the cached entry for a repository.
func (c *Checker) Invalidate(owner, repo string) {
	c.cache.Invalidate(model.RepoInfo{Owner: owner, Repo: repo}.Key())
}

// Clear drops every cached entry.
func (c *Checker) Clear() {
	c.cache.Clear()
}

// CacheLen returns the number of cached repositories.
func (c *Checker) CacheLen() int {
	return c.cache.Len()
}
