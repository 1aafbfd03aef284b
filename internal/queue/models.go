// Package queue implements the per-repository, multi-phase FIFO queues that
// hold work items (issues, pull requests, merges) as they move through the
// analyze/implement/review/improve/merge/extract pipeline.
package queue

import "fmt"

// Kind identifies which of the three work-item shapes a work id refers to.
type Kind string

const (
	KindIssue Kind = "issue"
	KindPr    Kind = "pr"
	KindMerge Kind = "merge"
)

// WorkID returns the stable "{kind}:{repo_name}:{number}" identifier that is
// both the queue key and the correlation id for operational logs.
func WorkID(kind Kind, repoName string, number int) string {
	return fmt.Sprintf("%s:%s:%d", kind, repoName, number)
}

// IssueItem carries everything a task needs to process one GitHub/GitLab
// issue through Pending → Analyzing → Ready → Implementing.
type IssueItem struct {
	RepoID   string
	RepoName string
	CloneURL string
	GhHost   string

	Number int
	Title  string
	Body   string
	Author string
	Labels []string

	// AnalysisReport is the cached markdown report from a prior Analyze task,
	// carried forward into Implement once the human gate is passed.
	AnalysisReport string
}

// WorkID returns this item's queue key.
func (i IssueItem) WorkID() string { return WorkID(KindIssue, i.RepoName, i.Number) }

// PrItem carries everything a task needs to process one pull request through
// Pending → Reviewing → ReviewDone → Improving → Improved → (re-review) →
// Extracting.
type PrItem struct {
	RepoID   string
	RepoName string
	CloneURL string
	GhHost   string

	Number     int
	Title      string
	HeadBranch string
	BaseBranch string
	Author     string
	Labels     []string

	// ReviewComment is the most recent request_changes review text, carried
	// from Reviewing into Improving.
	ReviewComment string
	// SourceIssueNumber back-references the issue whose Implement phase
	// created this PR, if any.
	SourceIssueNumber *int
	// ReviewIteration is a monotonic counter bounded by develop.review.max_iterations.
	ReviewIteration int
}

// WorkID returns this item's queue key.
func (p PrItem) WorkID() string { return WorkID(KindPr, p.RepoName, p.Number) }

// MergeItem carries everything a task needs to merge one approved pull
// request through Pending → Merging.
type MergeItem struct {
	RepoID   string
	RepoName string
	CloneURL string
	GhHost   string

	Number     int
	HeadBranch string
	BaseBranch string
}

// WorkID returns this item's queue key.
func (m MergeItem) WorkID() string { return WorkID(KindMerge, m.RepoName, m.Number) }

// QueueOp is the small algebra tasks use to mutate queues after a run.
// Exactly one of its fields is meaningful per instance; Go has
// no tagged-union sugar so Op discriminates which.
type OpKind string

const (
	OpRemove OpKind = "remove"
	OpPushPr OpKind = "push_pr"
)

// QueueOp is either Remove{WorkID} or PushPr{Phase, Item}.
type QueueOp struct {
	Op     OpKind
	WorkID string   // set when Op == OpRemove
	Phase  PrPhase  // set when Op == OpPushPr
	PrItem PrItem   // set when Op == OpPushPr
}

// Remove builds a Remove queue op.
func Remove(workID string) QueueOp { return QueueOp{Op: OpRemove, WorkID: workID} }

// PushPr builds a PushPr queue op.
func PushPr(phase PrPhase, item PrItem) QueueOp {
	return QueueOp{Op: OpPushPr, Phase: phase, PrItem: item}
}

// TaskStatus classifies the outcome of a task invocation.
type TaskStatus string

const (
	StatusDone   TaskStatus = "done"
	StatusSkip   TaskStatus = "skip"
	StatusFailed TaskStatus = "failed"
)

// TaskResult is what every task produces after after_invoke.
type TaskResult struct {
	WorkID   string
	RepoName string
	Status   TaskStatus
	Reason   string // populated when Status == StatusFailed
	QueueOps []QueueOp
	Logs     []LogEntry
}

// LogEntry is one operational log row, persisted by the runtime (not the
// task itself) after the tick completes.
type LogEntry struct {
	RepoID      string
	QueueType   string // "issue" | "pr" | "merge"
	WorkID      string
	WorkerID    string
	Command     string
	Stdout      string
	Stderr      string
	ExitCode    int
	StartedAt   string // RFC3339
	FinishedAt  string // RFC3339
	DurationMS  int64
}
