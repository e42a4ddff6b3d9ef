package github

import (
	"context"
	"errors"
)

// Fallback tries each client in order, moving to the next on any error,
// and returns the last error when all fail.
type Fallback []*TokenClient

// PullRequest implements ownership.PRSource.
func (f Fallback) PullRequest(ctx context.Context, owner, repo string, number int) (PullRequest, error) {
	err := error(ErrNoToken)
	for _, c := range f {
		pr, e := c.PullRequest(ctx, owner, repo, number)
		if e == nil {
			return pr, nil
		}
		err = e
	}
	return PullRequest{}, err
}

// ListPullRequestsForBranch implements ownership.PRSource.
func (f Fallback) ListPullRequestsForBranch(ctx context.Context, owner, repo, branch, state string) ([]PullRequest, error) {
	err := error(ErrNoToken)
	for _, c := range f {
		prs, e := c.ListPullRequestsForBranch(ctx, owner, repo, branch, state)
		if e == nil {
			return prs, nil
		}
		err = e
	}
	return nil, err
}

// Token returns the first available token value, for subprocesses.
func (f Fallback) Token() (string, error) {
	var errs []error
	for _, c := range f {
		tok, err := c.Source.Token()
		if err == nil {
			return tok, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", ErrNoToken
	}
	return "", errors.Join(errs...)
}

// Tokens returns every currently readable token value.
func (f Fallback) Tokens() []string {
	var out []string
	for _, c := range f {
		if tok, err := c.Source.Token(); err == nil {
			out = append(out, tok)
		}
	}
	return out
}
