package queue

import "testing"

func TestPushIssueDrainIssuesFIFOOrder(t *testing.T) {
	rq := NewRepoQueues()
	rq.PushIssue(IssuePending, IssueItem{RepoName: "acme/widget", Number: 1})
	rq.PushIssue(IssuePending, IssueItem{RepoName: "acme/widget", Number: 2})
	rq.PushIssue(IssuePending, IssueItem{RepoName: "acme/widget", Number: 3})

	items := rq.DrainIssues(IssuePending)
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for i, want := range []int{1, 2, 3} {
		if items[i].Number != want {
			t.Fatalf("item %d: expected number %d, got %d", i, want, items[i].Number)
		}
	}

	if got := rq.DrainIssues(IssuePending); len(got) != 0 {
		t.Fatalf("expected phase to be empty after drain, got %d items", len(got))
	}
}

func TestRemoveIsCommutativeWithUnknownID(t *testing.T) {
	rq := NewRepoQueues()
	rq.PushIssue(IssueReady, IssueItem{RepoName: "acme/widget", Number: 7})

	rq.Remove(WorkID(KindIssue, "acme/widget", 999))

	items := rq.DrainIssues(IssueReady)
	if len(items) != 1 || items[0].Number != 7 {
		t.Fatalf("expected unrelated item 7 to survive Remove of unknown id, got %+v", items)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	rq := NewRepoQueues()
	rq.PushPr(PrPending, PrItem{RepoName: "acme/widget", Number: 5})
	id := WorkID(KindPr, "acme/widget", 5)

	rq.Remove(id)
	rq.Remove(id) // second call on an already-absent id must be a no-op, not an error

	if rq.Contains(id) {
		t.Fatal("expected item to remain absent after a second Remove")
	}
}

func TestRemoveDropsItemFromWhicheverPhaseItOccupies(t *testing.T) {
	rq := NewRepoQueues()
	rq.PushPr(PrReviewing, PrItem{RepoName: "acme/widget", Number: 9})
	id := WorkID(KindPr, "acme/widget", 9)

	if !rq.Contains(id) {
		t.Fatal("expected item to be present before Remove")
	}
	rq.Remove(id)
	if rq.Contains(id) {
		t.Fatal("expected item to be absent after Remove")
	}
	if items := rq.DrainPrs(PrReviewing); len(items) != 0 {
		t.Fatalf("expected PrReviewing phase empty after Remove, got %d items", len(items))
	}
}

func TestCountsReflectsOnlyNonEmptyPhases(t *testing.T) {
	rq := NewRepoQueues()
	rq.PushIssue(IssuePending, IssueItem{RepoName: "acme/widget", Number: 1})
	rq.PushIssue(IssuePending, IssueItem{RepoName: "acme/widget", Number: 2})
	rq.PushMerge(MergeMerging, MergeItem{RepoName: "acme/widget", Number: 3})

	counts := rq.Counts()
	if counts.Issues[IssuePending] != 2 {
		t.Fatalf("expected 2 pending issues, got %d", counts.Issues[IssuePending])
	}
	if _, ok := counts.Issues[IssueAnalyzing]; ok {
		t.Fatal("expected empty phase to be absent from the snapshot, not present with count 0")
	}
	if counts.Merges[MergeMerging] != 1 {
		t.Fatalf("expected 1 merging item, got %d", counts.Merges[MergeMerging])
	}
}

func TestCountsIsASnapshotNotALiveView(t *testing.T) {
	rq := NewRepoQueues()
	rq.PushIssue(IssuePending, IssueItem{RepoName: "acme/widget", Number: 1})

	counts := rq.Counts()
	rq.DrainIssues(IssuePending)

	if counts.Issues[IssuePending] != 1 {
		t.Fatalf("snapshot should be unaffected by subsequent drain, got %d", counts.Issues[IssuePending])
	}
}

func TestTaskQueuesApplyRemove(t *testing.T) {
	tq := NewTaskQueues()
	tq.Repo("acme/widget").PushPr(PrReviewDone, PrItem{RepoName: "acme/widget", Number: 4})
	id := WorkID(KindPr, "acme/widget", 4)

	tq.Apply(TaskResult{
		RepoName: "acme/widget",
		QueueOps: []QueueOp{Remove(id)},
	})

	if tq.Contains(id) {
		t.Fatal("expected Apply(Remove) to drop the item")
	}
}

func TestTaskQueuesApplyPushPrReEnqueues(t *testing.T) {
	tq := NewTaskQueues()
	item := PrItem{RepoName: "acme/widget", Number: 8, ReviewComment: "fix the nil check"}

	tq.Apply(TaskResult{
		RepoName: "acme/widget",
		QueueOps: []QueueOp{PushPr(PrImproving, item)},
	})

	drained := tq.Repo("acme/widget").DrainPrs(PrImproving)
	if len(drained) != 1 || drained[0].Number != 8 || drained[0].ReviewComment != "fix the nil check" {
		t.Fatalf("expected item re-enqueued at PrImproving, got %+v", drained)
	}
}

func TestTaskQueuesApplyOnUnknownRepoIsNoop(t *testing.T) {
	tq := NewTaskQueues()

	tq.Apply(TaskResult{
		RepoName: "never/seen",
		QueueOps: []QueueOp{Remove(WorkID(KindIssue, "never/seen", 1))},
	})

	if tq.Contains(WorkID(KindIssue, "never/seen", 1)) {
		t.Fatal("expected no-op Apply to leave queue state empty")
	}
}

func TestRemoveRepoDropsAllItsQueues(t *testing.T) {
	tq := NewTaskQueues()
	tq.Repo("acme/widget").PushIssue(IssuePending, IssueItem{RepoName: "acme/widget", Number: 1})
	id := WorkID(KindIssue, "acme/widget", 1)

	if !tq.Contains(id) {
		t.Fatal("expected item present before RemoveRepo")
	}
	tq.RemoveRepo("acme/widget")
	if tq.Contains(id) {
		t.Fatal("expected item gone once its repo's queues are removed")
	}
}

func TestAllCountsCoversEveryRepo(t *testing.T) {
	tq := NewTaskQueues()
	tq.Repo("acme/widget").PushIssue(IssuePending, IssueItem{RepoName: "acme/widget", Number: 1})
	tq.Repo("acme/gadget").PushMerge(MergePending, MergeItem{RepoName: "acme/gadget", Number: 2})

	counts := tq.AllCounts()
	if len(counts) != 2 {
		t.Fatalf("expected 2 repos in snapshot, got %d", len(counts))
	}
	if counts["acme/widget"].Issues[IssuePending] != 1 {
		t.Fatalf("unexpected widget counts: %+v", counts["acme/widget"])
	}
	if counts["acme/gadget"].Merges[MergePending] != 1 {
		t.Fatalf("unexpected gadget counts: %+v", counts["acme/gadget"])
	}
}

func TestWorkIDFormat(t *testing.T) {
	if got, want := WorkID(KindPr, "acme/widget", 42), "pr:acme/widget:42"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestItemWorkIDMatchesPackageLevelWorkID(t *testing.T) {
	issue := IssueItem{RepoName: "acme/widget", Number: 3}
	if issue.WorkID() != WorkID(KindIssue, "acme/widget", 3) {
		t.Fatalf("IssueItem.WorkID() mismatch: %s", issue.WorkID())
	}
	pr := PrItem{RepoName: "acme/widget", Number: 3}
	if pr.WorkID() != WorkID(KindPr, "acme/widget", 3) {
		t.Fatalf("PrItem.WorkID() mismatch: %s", pr.WorkID())
	}
	merge := MergeItem{RepoName: "acme/widget", Number: 3}
	if merge.WorkID() != WorkID(KindMerge, "acme/widget", 3) {
		t.Fatalf("MergeItem.WorkID() mismatch: %s", merge.WorkID())
	}
}
