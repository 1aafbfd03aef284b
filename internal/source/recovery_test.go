package source

import (
	"context"
	"testing"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/forge"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/queue"
	"github.com/CosmoTheDev/autodev-orchestrator/models"
)

// fakeForge is a minimal forge.Forge stand-in for recovery tests: it
// records label mutations and serves canned comments/fields.
type fakeForge struct {
	name string

	removedLabels []string // "repo#number:label"
	addedLabels   []string

	comments map[int][]string
	fields   map[int]map[string]string
}

func newFakeForge(name string) *fakeForge {
	return &fakeForge{name: name, comments: map[int][]string{}, fields: map[int]map[string]string{}}
}

func (f *fakeForge) Name() string      { return f.name }
func (f *fakeForge) AuthToken() string { return "token" }

func (f *fakeForge) ListRepos(ctx context.Context, opts forge.ListReposOptions) ([]models.Repo, error) {
	return nil, nil
}
func (f *fakeForge) GetRepo(ctx context.Context, owner, name string) (*models.Repo, error) {
	return nil, nil
}
func (f *fakeForge) ForkRepo(ctx context.Context, owner, name string) (*models.Repo, error) {
	return nil, nil
}
func (f *fakeForge) SearchRepos(ctx context.Context, query string) ([]models.Repo, error) {
	return nil, nil
}
func (f *fakeForge) ListIssues(ctx context.Context, fullName, state string) ([]queue.RepoIssue, error) {
	return nil, nil
}
func (f *fakeForge) ListPulls(ctx context.Context, fullName, state string) ([]queue.RepoPull, error) {
	return nil, nil
}

func (f *fakeForge) GetField(ctx context.Context, fullName string, number int, field string) (string, error) {
	if fields, ok := f.fields[number]; ok {
		return fields[field], nil
	}
	return "", nil
}

func (f *fakeForge) ListIssueComments(ctx context.Context, fullName string, number int) ([]string, error) {
	return f.comments[number], nil
}

func (f *fakeForge) PostComment(ctx context.Context, fullName string, number int, body string) error {
	return nil
}

func (f *fakeForge) AddLabel(ctx context.Context, fullName string, number int, label string) error {
	f.addedLabels = append(f.addedLabels, label)
	return nil
}

func (f *fakeForge) RemoveLabel(ctx context.Context, fullName string, number int, label string) error {
	f.removedLabels = append(f.removedLabels, label)
	return nil
}

func (f *fakeForge) CreateIssue(ctx context.Context, fullName, title, body string) (int, error) {
	return 0, nil
}
func (f *fakeForge) CreatePR(ctx context.Context, opts forge.CreatePROptions) (int, error) {
	return 0, nil
}
func (f *fakeForge) PostReview(ctx context.Context, fullName string, number int, event forge.ReviewEvent, body string, comments []forge.ReviewCommentInput) error {
	return nil
}
func (f *fakeForge) MergePR(ctx context.Context, fullName string, number int) error { return nil }

func newAdapterWithForges(forges ...forge.Forge) *Adapter {
	return &Adapter{queues: queue.NewTaskQueues(), forges: forges}
}

func TestRecoverOrphanWipClearsLabelWhenQueueHasNoRecord(t *testing.T) {
	f := newFakeForge("github")
	a := newAdapterWithForges(f)
	repo := newResolvedRepo("acme/widget")
	repo.Issues = []queue.RepoIssue{{Number: 5, Labels: []string{queue.LabelWip}}}

	n, err := a.recoverOrphanWip(context.Background(), []queue.ResolvedRepo{repo})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 recovered item, got %d", n)
	}
	if len(f.removedLabels) != 1 || f.removedLabels[0] != queue.LabelWip {
		t.Fatalf("expected wip label removed, got %v", f.removedLabels)
	}
}

func TestRecoverOrphanWipLeavesInFlightItemsAlone(t *testing.T) {
	f := newFakeForge("github")
	a := newAdapterWithForges(f)
	repo := newResolvedRepo("acme/widget")
	repo.Issues = []queue.RepoIssue{{Number: 5, Labels: []string{queue.LabelWip}}}
	repo.Queues.PushIssue(queue.IssueAnalyzing, queue.IssueItem{RepoName: "acme/widget", Number: 5})
	a.queues.Repo("acme/widget").PushIssue(queue.IssueAnalyzing, queue.IssueItem{RepoName: "acme/widget", Number: 5})

	n, err := a.recoverOrphanWip(context.Background(), []queue.ResolvedRepo{repo})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected nothing recovered for an item the queues already track, got %d", n)
	}
	if len(f.removedLabels) != 0 {
		t.Fatalf("expected no label mutation, got %v", f.removedLabels)
	}
}

func TestRecoverOrphanImplementingNoMarkerClearsLabel(t *testing.T) {
	f := newFakeForge("github")
	a := newAdapterWithForges(f)
	repo := newResolvedRepo("acme/widget")
	repo.Issues = []queue.RepoIssue{{Number: 7, Labels: []string{queue.LabelImplementing}}}

	n, err := a.recoverOrphanImplementing(context.Background(), []queue.ResolvedRepo{repo})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 recovered, got %d", n)
	}
	if len(f.removedLabels) != 1 || f.removedLabels[0] != queue.LabelImplementing {
		t.Fatalf("expected implementing label cleared, got %v", f.removedLabels)
	}
	if len(f.addedLabels) != 0 {
		t.Fatalf("expected no label added without a pr-link marker, got %v", f.addedLabels)
	}
}

func TestRecoverOrphanImplementingMergedLinkedPRMarksDone(t *testing.T) {
	f := newFakeForge("github")
	f.comments[7] = []string{"unrelated comment", "<!-- autodev:pr-link:42 -->"}
	f.fields[42] = map[string]string{"merged": "true"}
	a := newAdapterWithForges(f)
	repo := newResolvedRepo("acme/widget")
	repo.Issues = []queue.RepoIssue{{Number: 7, Labels: []string{queue.LabelImplementing}}}

	n, err := a.recoverOrphanImplementing(context.Background(), []queue.ResolvedRepo{repo})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 recovered, got %d", n)
	}
	if len(f.addedLabels) != 1 || f.addedLabels[0] != queue.LabelDone {
		t.Fatalf("expected autodev:done added, got %v", f.addedLabels)
	}
}

func TestRecoverOrphanImplementingOpenLinkedPRLeavesLabelAlone(t *testing.T) {
	f := newFakeForge("github")
	f.comments[7] = []string{"<!-- autodev:pr-link:42 -->"}
	f.fields[42] = map[string]string{"merged": "false", "state": "open"}
	a := newAdapterWithForges(f)
	repo := newResolvedRepo("acme/widget")
	repo.Issues = []queue.RepoIssue{{Number: 7, Labels: []string{queue.LabelImplementing}}}

	n, err := a.recoverOrphanImplementing(context.Background(), []queue.ResolvedRepo{repo})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected nothing recovered while the linked pr is still open, got %d", n)
	}
	if len(f.removedLabels) != 0 || len(f.addedLabels) != 0 {
		t.Fatalf("expected no label mutation, got removed=%v added=%v", f.removedLabels, f.addedLabels)
	}
}
