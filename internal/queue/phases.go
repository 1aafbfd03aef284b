package queue

import "sync"

// IssuePhase enumerates the issue queue's phases in order.
type IssuePhase string

const (
	IssuePending      IssuePhase = "pending"
	IssueAnalyzing    IssuePhase = "analyzing"
	IssueReady        IssuePhase = "ready"
	IssueImplementing IssuePhase = "implementing"
)

// PrPhase enumerates the PR queue's phases in order, including the
// re-review loop (Improved → Reviewing) and the Extracting tail phase.
type PrPhase string

const (
	PrPending     PrPhase = "pending"
	PrReviewing   PrPhase = "reviewing"
	PrReviewDone  PrPhase = "review_done"
	PrImproving   PrPhase = "improving"
	PrImproved    PrPhase = "improved"
	PrExtracting  PrPhase = "extracting"
)

// MergePhase enumerates the merge queue's phases.
type MergePhase string

const (
	MergePending MergePhase = "pending"
	MergeMerging MergePhase = "merging"
)

// RepoQueues holds one repository's three multi-phase FIFO queues. Each
// phase is an ordered slice; pushes append, drains pop from the front.
// Invariant: a given work id appears in at most one phase of at most one
// queue at any instant — callers are responsible for calling
// Remove before re-pushing under a different kind.
type RepoQueues struct {
	mu sync.Mutex

	issues map[IssuePhase][]IssueItem
	prs    map[PrPhase][]PrItem
	merges map[MergePhase][]MergeItem
}

// NewRepoQueues builds an empty queue set for one repository.
func NewRepoQueues() *RepoQueues {
	return &RepoQueues{
		issues: make(map[IssuePhase][]IssueItem),
		prs:    make(map[PrPhase][]PrItem),
		merges: make(map[MergePhase][]MergeItem),
	}
}

// PushIssue enqueues item at the given phase.
func (q *RepoQueues) PushIssue(phase IssuePhase, item IssueItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.issues[phase] = append(q.issues[phase], item)
}

// PushPr enqueues item at the given phase.
func (q *RepoQueues) PushPr(phase PrPhase, item PrItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.prs[phase] = append(q.prs[phase], item)
}

// PushMerge enqueues item at the given phase.
func (q *RepoQueues) PushMerge(phase MergePhase, item MergeItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.merges[phase] = append(q.merges[phase], item)
}

// DrainIssues pops and returns every item currently queued at phase,
// leaving the phase empty. Used by the source adapter's drain step.
func (q *RepoQueues) DrainIssues(phase IssuePhase) []IssueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.issues[phase]
	q.issues[phase] = nil
	return items
}

// DrainPrs pops and returns every item currently queued at phase.
func (q *RepoQueues) DrainPrs(phase PrPhase) []PrItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.prs[phase]
	q.prs[phase] = nil
	return items
}

// DrainMerges pops and returns every item currently queued at phase.
func (q *RepoQueues) DrainMerges(phase MergePhase) []MergeItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.merges[phase]
	q.merges[phase] = nil
	return items
}

// Remove drops workID from every phase of every queue (issue/pr/merge). It
// is a no-op if the id is not present.
func (q *RepoQueues) Remove(workID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for phase, items := range q.issues {
		q.issues[phase] = filterIssues(items, workID)
	}
	for phase, items := range q.prs {
		q.prs[phase] = filterPrs(items, workID)
	}
	for phase, items := range q.merges {
		q.merges[phase] = filterMerges(items, workID)
	}
}

// Contains reports whether workID currently occupies any phase of any
// queue. Used by recovery to distinguish orphans from in-flight work.
func (q *RepoQueues) Contains(workID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, items := range q.issues {
		for _, it := range items {
			if it.WorkID() == workID {
				return true
			}
		}
	}
	for _, items := range q.prs {
		for _, it := range items {
			if it.WorkID() == workID {
				return true
			}
		}
	}
	for _, items := range q.merges {
		for _, it := range items {
			if it.WorkID() == workID {
				return true
			}
		}
	}
	return false
}

func filterIssues(items []IssueItem, workID string) []IssueItem {
	out := items[:0:0]
	for _, it := range items {
		if it.WorkID() != workID {
			out = append(out, it)
		}
	}
	return out
}

func filterPrs(items []PrItem, workID string) []PrItem {
	out := items[:0:0]
	for _, it := range items {
		if it.WorkID() != workID {
			out = append(out, it)
		}
	}
	return out
}

func filterMerges(items []MergeItem, workID string) []MergeItem {
	out := items[:0:0]
	for _, it := range items {
		if it.WorkID() != workID {
			out = append(out, it)
		}
	}
	return out
}

// PhaseCounts is a point-in-time snapshot of how many items sit in each
// phase of one repo's three queues, for status surfaces (gateway, TUI)
// that must observe depth without consuming it.
type PhaseCounts struct {
	Issues map[IssuePhase]int
	Prs    map[PrPhase]int
	Merges map[MergePhase]int
}

// Counts snapshots every non-empty phase without draining it.
func (q *RepoQueues) Counts() PhaseCounts {
	q.mu.Lock()
	defer q.mu.Unlock()
	c := PhaseCounts{
		Issues: make(map[IssuePhase]int),
		Prs:    make(map[PrPhase]int),
		Merges: make(map[MergePhase]int),
	}
	for phase, items := range q.issues {
		if len(items) > 0 {
			c.Issues[phase] = len(items)
		}
	}
	for phase, items := range q.prs {
		if len(items) > 0 {
			c.Prs[phase] = len(items)
		}
	}
	for phase, items := range q.merges {
		if len(items) > 0 {
			c.Merges[phase] = len(items)
		}
	}
	return c
}

// TaskQueues is the in-memory map of repo name → RepoQueues, owned
// exclusively by the source adapter.
type TaskQueues struct {
	mu    sync.Mutex
	repos map[string]*RepoQueues
}

// NewTaskQueues builds an empty top-level queue map.
func NewTaskQueues() *TaskQueues {
	return &TaskQueues{repos: make(map[string]*RepoQueues)}
}

// Repo returns (creating if absent) the RepoQueues for repoName.
func (t *TaskQueues) Repo(repoName string) *RepoQueues {
	t.mu.Lock()
	defer t.mu.Unlock()
	rq, ok := t.repos[repoName]
	if !ok {
		rq = NewRepoQueues()
		t.repos[repoName] = rq
	}
	return rq
}

// RemoveRepo drops a repository's queues entirely (repo sync removal).
func (t *TaskQueues) RemoveRepo(repoName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.repos, repoName)
}

// Contains reports whether workID is queued anywhere, across all repos.
// Recovery calls this with a work id scoped to one repo, but the check is
// cheap enough to implement globally for simplicity.
func (t *TaskQueues) Contains(workID string) bool {
	t.mu.Lock()
	repos := make([]*RepoQueues, 0, len(t.repos))
	for _, rq := range t.repos {
		repos = append(repos, rq)
	}
	t.mu.Unlock()

	for _, rq := range repos {
		if rq.Contains(workID) {
			return true
		}
	}
	return false
}

// AllCounts snapshots every repo's phase counts.
func (t *TaskQueues) AllCounts() map[string]PhaseCounts {
	t.mu.Lock()
	repos := make(map[string]*RepoQueues, len(t.repos))
	for name, rq := range t.repos {
		repos[name] = rq
	}
	t.mu.Unlock()

	out := make(map[string]PhaseCounts, len(repos))
	for name, rq := range repos {
		out[name] = rq.Counts()
	}
	return out
}

// Apply iterates a TaskResult's queue_ops against the owning repo's queues:
// Remove drops a finished work id, PushPr re-enqueues a PR at a new phase.
func (t *TaskQueues) Apply(result TaskResult) {
	rq := t.Repo(result.RepoName)
	for _, op := range result.QueueOps {
		switch op.Op {
		case OpRemove:
			rq.Remove(op.WorkID)
		case OpPushPr:
			rq.PushPr(op.Phase, op.PrItem)
		}
	}
}
