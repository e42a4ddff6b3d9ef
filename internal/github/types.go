package github

// PullRequest is the subset of PR metadata the ownership engine uses.
type PullRequest struct {
	Number  int    `json:"number"`
	Author  string `json:"author"`
	State   string `json:"state"`
	HeadRef string `json:"head_ref"`
}
