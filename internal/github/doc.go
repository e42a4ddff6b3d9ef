// Package github is the gateway's narrow view of the GitHub REST API:
// repository visibility, pull request metadata, and credential loading.
// It wraps go-github and normalizes its error types into StatusError so
// callers can branch on HTTP status without importing go-github.
package github
