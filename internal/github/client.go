package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v71/github"
	"golang.org/x/oauth2"
)

// DefaultTimeout bounds every API call made through a Client.
const DefaultTimeout = 15 * time.Second

// Config configures a Client for one credential.
type Config struct {
	// Token is required.
	Token string
	// BaseURL overrides https://api.github.com/ (tests, GHES).
	BaseURL string
	// Timeout bounds each request. Defaults to DefaultTimeout.
	Timeout time.Duration
	// Transport is the base round tripper. Defaults to http.DefaultTransport.
	Transport http.RoundTripper
}

// Client is a GitHub REST client bound to a single token.
type Client struct {
	api     *gh.Client
	timeout time.Duration
}

// NewClient creates a Client from cfg.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("github: token is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}),
			Base:   base,
		},
		Timeout: timeout,
	}
	api := gh.NewClient(httpClient)

	if cfg.BaseURL != "" {
		u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("github: parse base URL: %w", err)
		}
		api.BaseURL = u
	}

	return &Client{api: api, timeout: timeout}, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// RepoVisibility returns the raw "visibility" field of a repository.
// Older API responses without the field fall back to the "private" flag.
func (c *Client) RepoVisibility(ctx context.Context, owner, repo string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	r, _, err := c.api.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return "", convertError(err)
	}
	if v := r.GetVisibility(); v != "" {
		return v, nil
	}
	if r.Private == nil {
		return "", nil
	}
	if r.GetPrivate() {
		return "private", nil
	}
	return "public", nil
}

// PullRequest fetches one pull request.
func (c *Client) PullRequest(ctx context.Context, owner, repo string, number int) (PullRequest, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	pr, _, err := c.api.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return PullRequest{}, convertError(err)
	}
	return fromAPI(pr), nil
}

// ListPullRequestsForBranch lists pull requests whose head is owner:branch.
// state is "open", "closed" or "all".
func (c *Client) ListPullRequestsForBranch(ctx context.Context, owner, repo, branch, state string) ([]PullRequest, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if state == "" {
		state = "open"
	}
	opts := &gh.PullRequestListOptions{
		State:       state,
		Head:        owner + ":" + branch,
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var out []PullRequest
	for {
		prs, resp, err := c.api.PullRequests.List(ctx, owner, repo, opts)
		if err != nil {
			return nil, convertError(err)
		}
		for _, pr := range prs {
			p := fromAPI(pr)
			// The head filter is owner-scoped; fork PRs with the same branch
			// name are excluded server side, but guard against API drift.
			if p.HeadRef != "" && p.HeadRef != branch {
				continue
			}
			out = append(out, p)
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// Viewer returns the login the token authenticates as. Used by health checks.
func (c *Client) Viewer(ctx context.Context) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	u, _, err := c.api.Users.Get(ctx, "")
	if err != nil {
		return "", convertError(err)
	}
	return u.GetLogin(), nil
}

func fromAPI(pr *gh.PullRequest) PullRequest {
	return PullRequest{
		Number:  pr.GetNumber(),
		Author:  pr.GetUser().GetLogin(),
		State:   pr.GetState(),
		HeadRef: pr.GetHead().GetRef(),
	}
}
