package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/agent"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/config"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/queue"
)

// Implement runs the Ready→Implementing leg of the issue phase machine: it
// creates a fresh worktree, runs the repo's
// configured issue workflow prompt against the cached analysis report, and
// on success enqueues the resulting pull request into the PR queue's
// Pending phase. Grounded on consumer/issue.rs's process_ready.
//
// Per the Open Question resolution in SPEC_FULL.md §9, autodev:approved-analysis
// is cleared here — the human gate only governs the Ready transition, not
// anything downstream of it.
func Implement(ctx context.Context, deps Deps, repo queue.ResolvedRepo, item queue.IssueItem, cfg *config.Resolved) queue.TaskResult {
	workID := item.WorkID()
	workerID := newWorkerID()
	taskID := taskIDFor("issue", item.Number)

	result := queue.TaskResult{WorkID: workID, RepoName: item.RepoName}

	if err := requireConfig(cfg); err != nil {
		result.Status = queue.StatusFailed
		result.Reason = err.Error()
		return result
	}

	_ = deps.Forge.AddLabel(ctx, item.RepoName, item.Number, queue.LabelImplementing)
	_ = deps.Forge.RemoveLabel(ctx, item.RepoName, item.Number, queue.LabelApprovedAnalysis)

	if _, err := deps.Workspace.EnsureCloned(ctx, item.RepoName, item.CloneURL, deps.Forge.AuthToken()); err != nil {
		return implementFailure(ctx, deps, item, result, workID, taskID, fmt.Sprintf("clone failed: %v", err))
	}

	wtPath, err := deps.Workspace.CreateWorktree(ctx, item.RepoName, taskID, nil)
	if err != nil {
		return implementFailure(ctx, deps, item, result, workID, taskID, fmt.Sprintf("worktree failed: %v", err))
	}

	headBranch := fmt.Sprintf("autodev/%s", taskID)
	prompt := fmt.Sprintf("%s implement based on analysis:\n\n%s\n\nThis is for issue #%d in %s. "+
		"Commit and push your changes to branch %q, then open a pull request against %s and report its URL.",
		cfg.Workflow.Issue, item.AnalysisReport, item.Number, item.RepoName, headBranch, repo.DefaultBranch)

	started := startTimer()
	resp, sessionErr := deps.Agent.RunSession(ctx, wtPath, prompt)
	entry := logEntry(item.RepoID, "issue", workID, workerID, "implement", resp.Stdout, resp.Stderr, resp.ExitCode, started)
	result.Logs = append(result.Logs, entry)

	defer func() { _ = deps.Workspace.RemoveWorktree(item.RepoName, taskID) }()

	if sessionErr != nil {
		return implementFailure(ctx, deps, item, result, workID, taskID, fmt.Sprintf("implementation error: %v", sessionErr))
	}
	if resp.ExitCode != 0 {
		return implementFailure(ctx, deps, item, result, workID, taskID, fmt.Sprintf("implementation exited with %d", resp.ExitCode))
	}

	prNumber, found := agent.ExtractPRNumber(resp.Stdout)
	if !found {
		prNumber, found = findExistingPR(ctx, deps, item.RepoName, headBranch)
	}
	if !found {
		slog.Warn("implement session completed but no PR could be located", "work_id", workID)
		return implementFailure(ctx, deps, item, result, workID, taskID, "no pull request found after implementation")
	}

	_ = deps.Forge.PostComment(ctx, item.RepoName, item.Number,
		fmt.Sprintf("<!-- autodev:pr-link:%d -->\nOpened #%d to implement this issue.", prNumber, prNumber))
	_ = deps.Forge.RemoveLabel(ctx, item.RepoName, item.Number, queue.LabelImplementing)
	_ = deps.Forge.RemoveLabel(ctx, item.RepoName, item.Number, queue.LabelWip)
	_ = deps.Forge.AddLabel(ctx, item.RepoName, item.Number, queue.LabelDone)

	sourceIssue := item.Number
	prItem := queue.PrItem{
		RepoID:            item.RepoID,
		RepoName:          item.RepoName,
		CloneURL:          item.CloneURL,
		GhHost:            item.GhHost,
		Number:            prNumber,
		HeadBranch:        headBranch,
		BaseBranch:        repo.DefaultBranch,
		SourceIssueNumber: &sourceIssue,
	}

	result.Status = queue.StatusDone
	result.QueueOps = []queue.QueueOp{
		queue.Remove(workID),
		queue.PushPr(queue.PrPending, prItem),
	}
	return result
}

func implementFailure(ctx context.Context, deps Deps, item queue.IssueItem, result queue.TaskResult, workID, taskID, reason string) queue.TaskResult {
	slog.Error("issue implementation failed", "work_id", workID, "reason", reason)
	_ = deps.Forge.RemoveLabel(ctx, item.RepoName, item.Number, queue.LabelImplementing)
	_ = deps.Forge.RemoveLabel(ctx, item.RepoName, item.Number, queue.LabelWip)
	result.Status = queue.StatusFailed
	result.Reason = reason
	result.QueueOps = []queue.QueueOp{queue.Remove(workID)}
	return result
}

// findExistingPR looks up an already-open PR by head branch, used as a
// fallback when the agent's stdout doesn't carry an extractable PR URL —
// prevents duplicate-PR creation on a retried Implement task.
func findExistingPR(ctx context.Context, deps Deps, repoName, headBranch string) (int, bool) {
	pulls, err := deps.Forge.ListPulls(ctx, repoName, "open")
	if err != nil {
		return 0, false
	}
	for _, p := range pulls {
		if p.HeadBranch == headBranch {
			return p.Number, true
		}
	}
	return 0, false
}
