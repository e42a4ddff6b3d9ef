package github

import (
	"context"
	"sync"
	"time"
)

// TokenClient is a lazily built Client for a TokenSource. The underlying
// Client is rebuilt whenever the token value changes.
type TokenClient struct {
	Source  TokenSource
	BaseURL string
	Timeout time.Duration

	mu     sync.Mutex
	token  string
	client *Client
}

// NewTokenClient creates a TokenClient for src.
func NewTokenClient(src TokenSource, baseURL string, timeout time.Duration) *TokenClient {
	return &TokenClient{Source: src, BaseURL: baseURL, Timeout: timeout}
}

// Name returns the source label.
func (t *TokenClient) Name() string { return t.Source.Name }

// Client returns a Client for the current token, or ErrNoToken.
func (t *TokenClient) Client() (*Client, error) {
	token, err := t.Source.Token()
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != nil && t.token == token {
		return t.client, nil
	}
	c, err := NewClient(Config{Token: token, BaseURL: t.BaseURL, Timeout: t.Timeout})
	if err != nil {
		return nil, err
	}
	t.token, t.client = token, c
	return c, nil
}

// RepoVisibility implements visibility.Fetcher.
func (t *TokenClient) RepoVisibility(ctx context.Context, owner, repo string) (string, error) {
	c, err := t.Client()
	if err != nil {
		return "", err
	}
	return c.RepoVisibility(ctx, owner, repo)
}

// PullRequest implements ownership.PRSource.
func (t *TokenClient) PullRequest(ctx context.Context, owner, repo string, number int) (PullRequest, error) {
	c, err := t.Client()
	if err != nil {
		return PullRequest{}, err
	}
	return c.PullRequest(ctx, owner, repo, number)
}

// ListPullRequestsForBranch implements ownership.PRSource.
func (t *TokenClient) ListPullRequestsForBranch(ctx context.Context, owner, repo, branch, state string) ([]PullRequest, error) {
	c, err := t.Client()
	if err != nil {
		return nil, err
	}
	return c.ListPullRequestsForBranch(ctx, owner, repo, branch, state)
}

// Viewer returns the authenticated login.
func (t *TokenClient) Viewer(ctx context.Context) (string, error) {
	c, err := t.Client()
	if err != nil {
		return "", err
	}
	return c.Viewer(ctx)
}
