package source

import (
	"context"
	"testing"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/config"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/queue"
)

func newResolvedRepo(name string) queue.ResolvedRepo {
	return queue.ResolvedRepo{
		ID:     "repo-1",
		Name:   name,
		URL:    "https://github.com/" + name,
		Queues: queue.NewRepoQueues(),
	}
}

func TestScanIssuesIsIdempotent(t *testing.T) {
	a := &Adapter{}
	repo := newResolvedRepo("acme/widget")
	repo.Issues = []queue.RepoIssue{{Number: 1, Title: "bug"}}
	cfg := config.ConsumerConfig{}

	f := newFakeForge("github")
	a.scanIssues(context.Background(), repo, cfg, f)
	a.scanIssues(context.Background(), repo, cfg, f) // running the scan twice must not duplicate

	items := repo.Queues.DrainIssues(queue.IssuePending)
	if len(items) != 1 {
		t.Fatalf("expected exactly one queued issue after two scans, got %d", len(items))
	}
	if len(f.addedLabels) != 1 || f.addedLabels[0] != queue.LabelWip {
		t.Fatalf("expected wip added exactly once despite two scans, got %v", f.addedLabels)
	}
}

func TestScanIssuesSkipsWipAndImplementing(t *testing.T) {
	a := &Adapter{}
	repo := newResolvedRepo("acme/widget")
	repo.Issues = []queue.RepoIssue{
		{Number: 1, Labels: []string{queue.LabelWip}},
		{Number: 2, Labels: []string{queue.LabelImplementing}},
	}
	a.scanIssues(context.Background(), repo, config.ConsumerConfig{}, newFakeForge("github"))

	if got := repo.Queues.DrainIssues(queue.IssuePending); len(got) != 0 {
		t.Fatalf("expected in-flight issues to be left alone, got %d", len(got))
	}
}

func TestScanIssuesSkipsTerminalLabels(t *testing.T) {
	a := &Adapter{}
	repo := newResolvedRepo("acme/widget")
	repo.Issues = []queue.RepoIssue{
		{Number: 1, Labels: []string{queue.LabelDone}},
		{Number: 2, Labels: []string{queue.LabelSkip}},
	}
	a.scanIssues(context.Background(), repo, config.ConsumerConfig{}, newFakeForge("github"))

	if got := repo.Queues.DrainIssues(queue.IssuePending); len(got) != 0 {
		t.Fatalf("expected terminal issues to be skipped, got %d", len(got))
	}
}

func TestScanIssuesRoutesApprovedAnalysisToReady(t *testing.T) {
	a := &Adapter{}
	repo := newResolvedRepo("acme/widget")
	repo.Issues = []queue.RepoIssue{
		{Number: 1, Labels: []string{queue.LabelAnalyzed, queue.LabelApprovedAnalysis}},
	}
	f := newFakeForge("github")
	a.scanIssues(context.Background(), repo, config.ConsumerConfig{}, f)

	ready := repo.Queues.DrainIssues(queue.IssueReady)
	if len(ready) != 1 || ready[0].Number != 1 {
		t.Fatalf("expected approved-analysis issue routed to Ready, got %+v", ready)
	}
	if pending := repo.Queues.DrainIssues(queue.IssuePending); len(pending) != 0 {
		t.Fatalf("expected nothing left in Pending, got %+v", pending)
	}
	if len(f.removedLabels) != 1 || f.removedLabels[0] != queue.LabelAnalyzed {
		t.Fatalf("expected analyzed label removed, got %v", f.removedLabels)
	}
	if len(f.addedLabels) != 2 || f.addedLabels[0] != queue.LabelImplementing || f.addedLabels[1] != queue.LabelWip {
		t.Fatalf("expected implementing and wip added, got %v", f.addedLabels)
	}
}

func TestScanIssuesLeavesUnapprovedAnalysisWaiting(t *testing.T) {
	a := &Adapter{}
	repo := newResolvedRepo("acme/widget")
	repo.Issues = []queue.RepoIssue{
		{Number: 1, Labels: []string{queue.LabelAnalyzed}},
	}
	a.scanIssues(context.Background(), repo, config.ConsumerConfig{}, newFakeForge("github"))

	if repo.Queues.Contains(queue.WorkID(queue.KindIssue, "acme/widget", 1)) {
		t.Fatal("expected analyzed-but-unapproved issue to stay out of every queue, awaiting the human gate")
	}
}

func TestScanIssuesHonorsIgnoreAuthorsAndFilterLabels(t *testing.T) {
	a := &Adapter{}
	repo := newResolvedRepo("acme/widget")
	repo.Issues = []queue.RepoIssue{
		{Number: 1, Author: "bot", Labels: []string{"feature"}},
		{Number: 2, Author: "carol", Labels: []string{"chore"}},
	}
	cfg := config.ConsumerConfig{IgnoreAuthors: []string{"bot"}, FilterLabels: []string{"feature"}}
	a.scanIssues(context.Background(), repo, cfg, newFakeForge("github"))

	items := repo.Queues.DrainIssues(queue.IssuePending)
	if len(items) != 0 {
		t.Fatalf("expected ignored author and non-matching label to both be filtered, got %+v", items)
	}
}

func TestScanPullsIsIdempotent(t *testing.T) {
	a := &Adapter{}
	repo := newResolvedRepo("acme/widget")
	repo.Pulls = []queue.RepoPull{{Number: 10, Title: "add feature"}}
	cfg := config.ConsumerConfig{}

	f := newFakeForge("github")
	a.scanPulls(context.Background(), repo, cfg, f)
	a.scanPulls(context.Background(), repo, cfg, f)

	items := repo.Queues.DrainPrs(queue.PrPending)
	if len(items) != 1 {
		t.Fatalf("expected exactly one queued pr after two scans, got %d", len(items))
	}
	if len(f.addedLabels) != 1 || f.addedLabels[0] != queue.LabelWip {
		t.Fatalf("expected wip added exactly once, got %v", f.addedLabels)
	}
}

func TestScanPullsSkipsAlreadyQueuedFromImplement(t *testing.T) {
	a := &Adapter{}
	repo := newResolvedRepo("acme/widget")
	repo.Pulls = []queue.RepoPull{{Number: 20}}
	repo.Queues.PushPr(queue.PrReviewing, queue.PrItem{RepoName: "acme/widget", Number: 20})

	a.scanPulls(context.Background(), repo, config.ConsumerConfig{}, newFakeForge("github"))

	if got := repo.Queues.DrainPrs(queue.PrPending); len(got) != 0 {
		t.Fatalf("expected no duplicate pending entry for an already-tracked pr, got %+v", got)
	}
	if !repo.Queues.Contains(queue.WorkID(queue.KindPr, "acme/widget", 20)) {
		t.Fatal("expected the existing Reviewing entry to survive untouched")
	}
}

func TestScanMergesDrainsReviewDoneIntoMergePending(t *testing.T) {
	a := &Adapter{}
	repo := newResolvedRepo("acme/widget")
	repo.Queues.PushPr(queue.PrReviewDone, queue.PrItem{
		RepoID: "repo-1", RepoName: "acme/widget", Number: 30,
		HeadBranch: "feature-x", BaseBranch: "main",
	})

	a.scanMerges(repo)

	if got := repo.Queues.DrainPrs(queue.PrReviewDone); len(got) != 0 {
		t.Fatalf("expected ReviewDone drained, got %+v", got)
	}
	merges := repo.Queues.DrainMerges(queue.MergePending)
	if len(merges) != 1 || merges[0].Number != 30 || merges[0].HeadBranch != "feature-x" {
		t.Fatalf("unexpected merge item: %+v", merges)
	}
}
