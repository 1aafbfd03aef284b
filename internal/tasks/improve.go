package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/config"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/queue"
)

// Improve runs the Improving leg of the PR phase machine: it applies the
// reviewer's requested changes inside a fresh worktree on the PR's existing
// branch, pushes a follow-up commit, and routes the PR back into Reviewing
// for another pass. Grounded on the same worktree-reuse discipline as
// Implement, generalized from the original's tasks/improve.rs.
func Improve(ctx context.Context, deps Deps, repo queue.ResolvedRepo, item queue.PrItem, cfg *config.Resolved) queue.TaskResult {
	workID := item.WorkID()
	workerID := newWorkerID()
	taskID := taskIDFor("pr", item.Number)

	result := queue.TaskResult{WorkID: workID, RepoName: item.RepoName}
	if err := requireConfig(cfg); err != nil {
		result.Status = queue.StatusFailed
		result.Reason = err.Error()
		return result
	}

	if _, err := deps.Workspace.EnsureCloned(ctx, item.RepoName, item.CloneURL, deps.Forge.AuthToken()); err != nil {
		return improveFailure(ctx, deps, item, result, workID, fmt.Sprintf("clone failed: %v", err))
	}

	branch := item.HeadBranch
	wtPath, err := deps.Workspace.CreateWorktree(ctx, item.RepoName, taskID, &branch)
	if err != nil {
		return improveFailure(ctx, deps, item, result, workID, fmt.Sprintf("worktree failed: %v", err))
	}
	defer func() { _ = deps.Workspace.RemoveWorktree(item.RepoName, taskID) }()

	prompt := fmt.Sprintf("%s Address this review feedback on PR #%d:\n\n%s\n\nCommit and push your changes to the existing branch %q.",
		cfg.Workflow.Pr, item.Number, item.ReviewComment, item.HeadBranch)

	started := startTimer()
	resp, sessionErr := deps.Agent.RunSession(ctx, wtPath, prompt)
	entry := logEntry(item.RepoID, "pr", workID, workerID, "improve", resp.Stdout, resp.Stderr, resp.ExitCode, started)
	result.Logs = append(result.Logs, entry)

	if sessionErr != nil {
		return improveFailure(ctx, deps, item, result, workID, fmt.Sprintf("improve session error: %v", sessionErr))
	}
	if resp.ExitCode != 0 {
		return improveFailure(ctx, deps, item, result, workID, fmt.Sprintf("improve session exited with %d", resp.ExitCode))
	}

	result.Status = queue.StatusDone
	result.QueueOps = []queue.QueueOp{
		queue.Remove(workID),
		queue.PushPr(queue.PrReviewing, item),
	}
	return result
}

func improveFailure(ctx context.Context, deps Deps, item queue.PrItem, result queue.TaskResult, workID, reason string) queue.TaskResult {
	slog.Error("pr improve failed", "work_id", workID, "reason", reason)
	_ = deps.Forge.RemoveLabel(ctx, item.RepoName, item.Number, queue.LabelWip)
	result.Status = queue.StatusFailed
	result.Reason = reason
	result.QueueOps = []queue.QueueOp{queue.Remove(workID)}
	return result
}
