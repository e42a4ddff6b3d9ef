package jibgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds a request when WithTimeout is not given.
const DefaultTimeout = 2 * time.Minute

// Client calls the gateway's HTTP API. Safe for concurrent use.
type Client struct {
	base   string
	secret string
	http   *http.Client
}

// New creates a Client for the gateway at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	cfg := clientConfig{timeout: DefaultTimeout}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.secret == "" && cfg.secretFile != "" {
		data, err := os.ReadFile(cfg.secretFile)
		if err != nil {
			return nil, fmt.Errorf("jibgateway: read secret: %w", err)
		}
		cfg.secret = strings.TrimSpace(string(data))
	}
	if cfg.secret == "" {
		return nil, errors.New("jibgateway: no gateway secret configured")
	}
	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}
	return &Client{base: strings.TrimRight(baseURL, "/") + "/api/v1", secret: cfg.secret, http: hc}, nil
}

// envelope is the gateway's response body.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type outcomeData struct {
	RequestID  string         `json:"request_id"`
	Operation  string         `json:"operation"`
	Repository string         `json:"repository"`
	Stdout     string         `json:"stdout"`
	Stderr     string         `json:"stderr"`
	ExitCode   int            `json:"exit_code"`
	Reason     string         `json:"reason"`
	Hints      []string       `json:"hints"`
	Details    map[string]any `json:"details"`
}

func (c *Client) post(ctx context.Context, path string, body any) (*Result, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("jibgateway: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jibgateway: %s: %w", path, err)
	}
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("jibgateway: read response: %w", err)
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("jibgateway: decode response (HTTP %d): %w", resp.StatusCode, err)
	}
	var od outcomeData
	if len(env.Data) > 0 {
		_ = json.Unmarshal(env.Data, &od)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return &Result{
			RequestID:  od.RequestID,
			Operation:  od.Operation,
			Repository: od.Repository,
			Message:    env.Message,
			Stdout:     od.Stdout,
			Stderr:     od.Stderr,
			ExitCode:   od.ExitCode,
		}, nil
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		be := &BlockedError{
			Status:    resp.StatusCode,
			Reason:    od.Reason,
			Message:   env.Message,
			Hints:     od.Hints,
			Details:   od.Details,
			RequestID: od.RequestID,
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			be.Reason = "rate_limited"
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
				be.RetryAfter = time.Duration(secs) * time.Second
			}
		}
		return nil, be
	default:
		return nil, &RequestError{
			Status:    resp.StatusCode,
			Message:   env.Message,
			RequestID: od.RequestID,
			Stdout:    od.Stdout,
			Stderr:    od.Stderr,
			ExitCode:  od.ExitCode,
		}
	}
}

// Push pushes a local checkout through the gateway.
func (c *Client) Push(ctx context.Context, req PushRequest) (*Result, error) {
	return c.post(ctx, "/git/push", req)
}

// PRCreate opens a pull request.
func (c *Client) PRCreate(ctx context.Context, req PRCreateRequest) (*Result, error) {
	return c.post(ctx, "/gh/pr/create", req)
}

// PRComment comments on a pull request the agent owns.
func (c *Client) PRComment(ctx context.Context, req PRRequest) (*Result, error) {
	return c.post(ctx, "/gh/pr/comment", req)
}

// PREdit edits a pull request the agent owns.
func (c *Client) PREdit(ctx context.Context, req PRRequest) (*Result, error) {
	return c.post(ctx, "/gh/pr/edit", req)
}

// PRClose closes a pull request the agent owns.
func (c *Client) PRClose(ctx context.Context, req PRRequest) (*Result, error) {
	return c.post(ctx, "/gh/pr/close", req)
}

// PRMerge always returns a *BlockedError; merging is human-only.
func (c *Client) PRMerge(ctx context.Context, req PRRequest) (*Result, error) {
	return c.post(ctx, "/gh/pr/merge", req)
}

// Execute runs a gh command. Args exclude the leading "gh".
func (c *Client) Execute(ctx context.Context, req ExecuteRequest) (*Result, error) {
	return c.post(ctx, "/gh/execute", req)
}

// Fork forks a repository.
func (c *Client) Fork(ctx context.Context, req ForkRequest) (*Result, error) {
	return c.post(ctx, "/fork", req)
}

// Health fetches the unauthenticated health report. A degraded gateway
// returns its report with a non-nil error.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/health", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jibgateway: health: %w", err)
	}
	defer resp.Body.Close()

	var env struct {
		Data Health `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("jibgateway: decode health: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &env.Data, fmt.Errorf("jibgateway: gateway %s", env.Data.Status)
	}
	return &env.Data, nil
}
