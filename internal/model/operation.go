package model

// Operation names a gated action. Rate-limit budgets and audit entries are
// keyed by it.
type Operation string

const (
	OpPush      Operation = "push"
	OpFetch     Operation = "fetch"
	OpPRCreate  Operation = "pr_create"
	OpPRComment Operation = "pr_comment"
	OpPREdit    Operation = "pr_edit"
	OpPRClose   Operation = "pr_close"
	OpPRMerge   Operation = "pr_merge"
	OpExecute   Operation = "execute"
	OpFork      Operation = "fork"
)

// Family groups operations that share denial wording: push, pr, fetch, gh
// or fork.
func (o Operation) Family() string {
	switch o {
	case OpPush:
		return "push"
	case OpFetch:
		return "fetch"
	case OpPRCreate, OpPRComment, OpPREdit, OpPRClose, OpPRMerge:
		return "pr"
	case OpFork:
		return "fork"
	default:
		return "gh"
	}
}

// IsWrite reports whether the operation mutates remote state.
func (o Operation) IsWrite() bool {
	return o != OpFetch
}

// Operations lists every gated operation.
var Operations = []Operation{
	OpPush, OpFetch, OpPRCreate, OpPRComment, OpPREdit, OpPRClose, OpPRMerge, OpExecute, OpFork,
}

// ParseOperation accepts one of Operations.
func ParseOperation(s string) (Operation, bool) {
	for _, op := range Operations {
		if string(op) == s {
			return op, true
		}
	}
	return "", false
}
