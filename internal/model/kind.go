package model

// DenialKind is the stable, machine-parseable reason key attached to a denial.
// The set is closed: the formatter switches over it exhaustively.
type DenialKind string

const (
	KindVisibilityUnknown DenialKind = "visibility_unknown"
	KindPushPublic        DenialKind = "push_public"
	KindPushPrivate       DenialKind = "push_private"
	KindPRPublic          DenialKind = "pr_public"
	KindPRPrivate         DenialKind = "pr_private"
	KindFetchPublic       DenialKind = "fetch_public"
	KindFetchPrivate      DenialKind = "fetch_private"
	KindGHPublic          DenialKind = "gh_public"
	KindGHPrivate         DenialKind = "gh_private"
	KindForkPublicSource  DenialKind = "fork_public_source"
	KindForkTargetPublic  DenialKind = "fork_target_public"
	KindBranchNotOwned    DenialKind = "branch_not_owned"
	KindPRNotOwned        DenialKind = "pr_not_owned"
	KindPRLookupFailed    DenialKind = "pr_lookup_failed"
	KindMergeBlocked      DenialKind = "merge_blocked"
	KindCommandBlocked    DenialKind = "command_blocked"
	KindPolicyViolation   DenialKind = "policy_violation"
)

// Kinds lists every known denial kind.
var Kinds = []DenialKind{
	KindVisibilityUnknown,
	KindPushPublic,
	KindPushPrivate,
	KindPRPublic,
	KindPRPrivate,
	KindFetchPublic,
	KindFetchPrivate,
	KindGHPublic,
	KindGHPrivate,
	KindForkPublicSource,
	KindForkTargetPublic,
	KindBranchNotOwned,
	KindPRNotOwned,
	KindPRLookupFailed,
	KindMergeBlocked,
	KindCommandBlocked,
	KindPolicyViolation,
}

// Known reports whether k is a member of the closed set.
func (k DenialKind) Known() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}
