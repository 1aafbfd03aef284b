package source

import (
	"context"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/config"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/forge"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/queue"
)

func containsLabel(labels []string, name string) bool {
	for _, l := range labels {
		if l == name {
			return true
		}
	}
	return false
}

func containsAny(haystack, needles []string) bool {
	if len(needles) == 0 {
		return true
	}
	for _, n := range needles {
		if containsLabel(haystack, n) {
			return true
		}
	}
	return false
}

func isIgnoredAuthor(author string, ignoreAuthors []string) bool {
	for _, a := range ignoreAuthors {
		if a == author {
			return true
		}
	}
	return false
}

// scanIssues covers both of the original's scan_issues and
// scan_approved_issues sub-scans in one pass: an issue's current label set
// decides which phase (if any) it belongs in. Items already queued are
// left alone — scans only ever discover, never duplicate.
func (a *Adapter) scanIssues(ctx context.Context, repo queue.ResolvedRepo, cfg config.ConsumerConfig, f forge.Forge) {
	for _, issue := range repo.Issues {
		if isIgnoredAuthor(issue.Author, cfg.IgnoreAuthors) {
			continue
		}
		if !containsAny(issue.Labels, cfg.FilterLabels) {
			continue
		}
		if issue.IsWip() || issue.IsImplementing() {
			continue // in flight; recovery reconciles crashes
		}
		if containsLabel(issue.Labels, queue.LabelDone) || containsLabel(issue.Labels, queue.LabelSkip) {
			continue // terminal
		}

		workID := queue.WorkID(queue.KindIssue, repo.Name, issue.Number)
		if repo.Queues.Contains(workID) {
			continue
		}

		if issue.IsAnalyzed() {
			if issue.IsApprovedAnalysis() {
				_ = f.RemoveLabel(ctx, repo.Name, issue.Number, queue.LabelAnalyzed)
				_ = f.AddLabel(ctx, repo.Name, issue.Number, queue.LabelImplementing)
				_ = f.AddLabel(ctx, repo.Name, issue.Number, queue.LabelWip)
				repo.Queues.PushIssue(queue.IssueReady, queue.IssueItem{
					RepoID:   repo.ID,
					RepoName: repo.Name,
					CloneURL: repo.URL,
					GhHost:   repo.GhHost,
					Number:   issue.Number,
					Title:    issue.Title,
					Body:     issue.Body,
					Author:   issue.Author,
					Labels:   issue.Labels,
				})
			}
			// Analyzed but not yet approved: waiting on the human gate.
			continue
		}

		_ = f.AddLabel(ctx, repo.Name, issue.Number, queue.LabelWip)
		repo.Queues.PushIssue(queue.IssuePending, queue.IssueItem{
			RepoID:   repo.ID,
			RepoName: repo.Name,
			CloneURL: repo.URL,
			GhHost:   repo.GhHost,
			Number:   issue.Number,
			Title:    issue.Title,
			Body:     issue.Body,
			Author:   issue.Author,
			Labels:   issue.Labels,
		})
	}
}

// scanPulls discovers open pull requests not yet tracked by the queues —
// either created externally or just opened by Implement (which already
// pushed its own PrItem via a QueueOp, so Contains already holds true and
// this is a no-op for those).
func (a *Adapter) scanPulls(ctx context.Context, repo queue.ResolvedRepo, cfg config.ConsumerConfig, f forge.Forge) {
	for _, pull := range repo.Pulls {
		if isIgnoredAuthor(pull.Author, cfg.IgnoreAuthors) {
			continue
		}
		if !containsAny(pull.Labels, cfg.FilterLabels) {
			continue
		}
		if pull.IsWip() {
			continue
		}
		if containsLabel(pull.Labels, queue.LabelDone) || containsLabel(pull.Labels, queue.LabelSkip) {
			continue
		}

		workID := queue.WorkID(queue.KindPr, repo.Name, pull.Number)
		if repo.Queues.Contains(workID) {
			continue
		}

		_ = f.AddLabel(ctx, repo.Name, pull.Number, queue.LabelWip)
		repo.Queues.PushPr(queue.PrPending, queue.PrItem{
			RepoID:     repo.ID,
			RepoName:   repo.Name,
			CloneURL:   repo.URL,
			GhHost:     repo.GhHost,
			Number:     pull.Number,
			Title:      pull.Title,
			HeadBranch: pull.HeadBranch,
			BaseBranch: pull.BaseBranch,
			Author:     pull.Author,
			Labels:     pull.Labels,
		})
	}
}

// scanMerges drains every PR sitting in ReviewDone (approved by Review)
// into a MergeItem at Merge.Pending. Unlike the issue/pull scans this is a
// real drain, not a peek: once reviewed-and-approved, a PR has exactly one
// path forward.
func (a *Adapter) scanMerges(repo queue.ResolvedRepo) {
	for _, pr := range repo.Queues.DrainPrs(queue.PrReviewDone) {
		repo.Queues.PushMerge(queue.MergePending, queue.MergeItem{
			RepoID:     pr.RepoID,
			RepoName:   pr.RepoName,
			CloneURL:   pr.CloneURL,
			GhHost:     pr.GhHost,
			Number:     pr.Number,
			HeadBranch: pr.HeadBranch,
			BaseBranch: pr.BaseBranch,
		})
	}
}
