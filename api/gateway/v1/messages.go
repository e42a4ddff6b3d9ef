package gatewayv1

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// AccessRequest asks whether an operation may touch a repository.
type AccessRequest struct {
	Repository string `json:"repository"`
	Operation  string `json:"operation"`
	ForWrite   bool   `json:"for_write"`
}

// BranchRequest asks whether the agent may push to a branch.
type BranchRequest struct {
	Repository string `json:"repository"`
	Branch     string `json:"branch"`
}

// PullRequestRequest asks whether the agent may mutate a pull request.
type PullRequestRequest struct {
	Repository string `json:"repository"`
	Operation  string `json:"operation"`
	PRNumber   int    `json:"pr_number"`
}

// ForkRequest asks whether a fork may be created.
type ForkRequest struct {
	Repository string `json:"repository"`
	Org        string `json:"org,omitempty"`
	Private    bool   `json:"private"`
}

// VisibilityRequest asks for a repository's visibility.
type VisibilityRequest struct {
	Repository string `json:"repository"`
}

// Decision is the reply to every Check RPC.
type Decision struct {
	Allowed    bool           `json:"allowed"`
	Kind       string         `json:"kind,omitempty"`
	Reason     string         `json:"reason"`
	Message    string         `json:"message,omitempty"`
	Hints      []string       `json:"hints,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Operation  string         `json:"operation"`
	Repository string         `json:"repository,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
}

// VisibilityResponse is the reply to GetVisibility. Error is set when
// visibility is unknown.
type VisibilityResponse struct {
	Repository string `json:"repository"`
	Visibility string `json:"visibility,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Encode converts v to a Struct through its JSON form.
func Encode(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return structpb.NewStruct(m)
}

// Decode fills v from s through its JSON form.
func Decode(s *structpb.Struct, v any) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}
