package source

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/queue"
)

// recoverOrphanWip clears autodev:wip off any issue/PR the label mentions
// but the in-memory queues have no record of — the daemon crashed mid-task
// and lost that record. The next scan rediscovers the item naturally once
// the label is gone.
func (a *Adapter) recoverOrphanWip(ctx context.Context, repos []queue.ResolvedRepo) (int, error) {
	recovered := 0

	for _, repo := range repos {
		f, err := a.forgeFor(repo.URL)
		if err != nil {
			continue
		}

		for _, issue := range repo.Issues {
			if !issue.IsWip() {
				continue
			}
			workID := queue.WorkID(queue.KindIssue, repo.Name, issue.Number)
			if a.queues.Contains(workID) {
				continue
			}
			if err := f.RemoveLabel(ctx, repo.Name, issue.Number, queue.LabelWip); err != nil {
				slog.Warn("failed to clear orphan wip label", "repo", repo.Name, "issue", issue.Number, "error", err)
				continue
			}
			recovered++
			slog.Info("recovered orphan issue", "repo", repo.Name, "issue", issue.Number)
		}

		for _, pull := range repo.Pulls {
			if !pull.IsWip() {
				continue
			}
			workID := queue.WorkID(queue.KindPr, repo.Name, pull.Number)
			if a.queues.Contains(workID) {
				continue
			}
			if err := f.RemoveLabel(ctx, repo.Name, pull.Number, queue.LabelWip); err != nil {
				slog.Warn("failed to clear orphan wip label", "repo", repo.Name, "pr", pull.Number, "error", err)
				continue
			}
			recovered++
			slog.Info("recovered orphan pr", "repo", repo.Name, "pr", pull.Number)
		}
	}

	return recovered, nil
}

// recoverOrphanImplementing reconciles issues stuck carrying
// autodev:implementing after a crash. If the issue's comments carry a
// "<!-- autodev:pr-link:N -->" marker left by a prior Implement attempt,
// the linked PR's state decides the outcome: merged/closed transitions the
// issue straight to autodev:done (the work already happened), while a PR
// that is still open (or whose state cannot be read) leaves the labels as
// they are. With no marker at all, the implementing label is cleared so
// the next scan retries it from scratch.
func (a *Adapter) recoverOrphanImplementing(ctx context.Context, repos []queue.ResolvedRepo) (int, error) {
	recovered := 0

	for _, repo := range repos {
		f, err := a.forgeFor(repo.URL)
		if err != nil {
			continue
		}

		for _, issue := range repo.Issues {
			if !issue.IsImplementing() {
				continue
			}
			workID := queue.WorkID(queue.KindIssue, repo.Name, issue.Number)
			if a.queues.Contains(workID) {
				continue
			}

			prNum, ok := extractPRLinkFromComments(ctx, f, repo.Name, issue.Number)
			if !ok {
				_ = f.RemoveLabel(ctx, repo.Name, issue.Number, queue.LabelImplementing)
				recovered++
				slog.Info("recovered orphan implementing issue (no pr-link marker)", "repo", repo.Name, "issue", issue.Number)
				continue
			}

			state := prState(ctx, f, repo.Name, prNum)
			switch state {
			case "merged", "closed":
				_ = f.RemoveLabel(ctx, repo.Name, issue.Number, queue.LabelImplementing)
				_ = f.AddLabel(ctx, repo.Name, issue.Number, queue.LabelDone)
				recovered++
				slog.Info("recovered implementing issue via linked pr", "repo", repo.Name, "issue", issue.Number, "pr", prNum, "pr_state", state)
			default:
				// PR still open: the PR pipeline will carry it to completion.
			}
		}
	}

	return recovered, nil
}

const prLinkMarkerPrefix = "<!-- autodev:pr-link:"
const prLinkMarkerSuffix = " -->"

// extractPRLinkFromComments scans an issue's comments (most recent last)
// for the most recent pr-link marker, which Implement posts once its agent
// session has produced a pull request.
func extractPRLinkFromComments(ctx context.Context, f interface {
	ListIssueComments(ctx context.Context, fullName string, number int) ([]string, error)
}, repoName string, number int) (int, bool) {
	comments, err := f.ListIssueComments(ctx, repoName, number)
	if err != nil {
		return 0, false
	}
	for i := len(comments) - 1; i >= 0; i-- {
		body := comments[i]
		start := strings.Index(body, prLinkMarkerPrefix)
		if start < 0 {
			continue
		}
		start += len(prLinkMarkerPrefix)
		end := strings.Index(body[start:], prLinkMarkerSuffix)
		if end < 0 {
			continue
		}
		var num int
		if _, err := fmt.Sscanf(strings.TrimSpace(body[start:start+end]), "%d", &num); err == nil {
			return num, true
		}
	}
	return 0, false
}

// prState reports "merged", "closed", "open", or "" (unknown) for a pull
// request, checking the merged flag first since a merged PR's state field
// alone just reads "closed".
func prState(ctx context.Context, f interface {
	GetField(ctx context.Context, fullName string, number int, field string) (string, error)
}, repoName string, number int) string {
	merged, err := f.GetField(ctx, repoName, number, "merged")
	if err == nil && merged == "true" {
		return "merged"
	}
	state, err := f.GetField(ctx, repoName, number, "state")
	if err != nil {
		return ""
	}
	return state
}
