package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/agent"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/config"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/forge"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/queue"
)

const reviewPromptTemplate = `Review the following pull request and respond in JSON.

PR #%d: %s
Branch: %s → %s

Respond with this exact JSON schema:
{
  "verdict": "approve" | "request_changes",
  "summary": "1-2 sentence summary of your review",
  "comments": [{"path": "...", "line": 0, "body": "..."}]
}

Rules:
- verdict "approve": the change is correct, safe, and ready to merge
- verdict "request_changes": the change needs revision before merging
- comments: inline comments for request_changes (optional, but recommended)`

// Review runs a PR through the Reviewing phase: it checks out the PR's
// head branch in a fresh worktree, asks the agent for a verdict, and posts
// a forge review. Approve moves the PR to ReviewDone; request_changes
// moves it to Improving (bounded by develop.review.max_iterations),
// otherwise the PR is abandoned with a skip label.
func Review(ctx context.Context, deps Deps, repo queue.ResolvedRepo, item queue.PrItem, cfg *config.Resolved) queue.TaskResult {
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
		return reviewFailure(ctx, deps, item, result, workID, fmt.Sprintf("clone failed: %v", err))
	}

	branch := item.HeadBranch
	wtPath, err := deps.Workspace.CreateWorktree(ctx, item.RepoName, taskID, &branch)
	if err != nil {
		return reviewFailure(ctx, deps, item, result, workID, fmt.Sprintf("worktree failed: %v", err))
	}
	defer func() { _ = deps.Workspace.RemoveWorktree(item.RepoName, taskID) }()

	prompt := fmt.Sprintf(reviewPromptTemplate, item.Number, item.Title, item.HeadBranch, item.BaseBranch)
	started := startTimer()
	resp, sessionErr := deps.Agent.RunSession(ctx, wtPath, prompt)
	entry := logEntry(item.RepoID, "pr", workID, workerID, "review", resp.Stdout, resp.Stderr, resp.ExitCode, started)
	result.Logs = append(result.Logs, entry)

	if sessionErr != nil {
		return reviewFailure(ctx, deps, item, result, workID, fmt.Sprintf("session error: %v", sessionErr))
	}

	review, ok := agent.ParseReview(resp.Stdout)
	if !ok {
		slog.Warn("review output not parseable, requesting changes conservatively", "work_id", workID)
		return requestChanges(ctx, deps, item, result, workID, "Automated review output could not be parsed; please re-check manually.", nil, cfg)
	}

	if review.Verdict == agent.ReviewVerdictApprove {
		_ = deps.Forge.PostReview(ctx, item.RepoName, item.Number, forge.ReviewApprove, review.Summary, nil)
		_ = deps.Forge.RemoveLabel(ctx, item.RepoName, item.Number, queue.LabelWip)
		_ = deps.Forge.AddLabel(ctx, item.RepoName, item.Number, queue.LabelDone)
		if item.ReviewIteration > 0 {
			_ = deps.Forge.RemoveLabel(ctx, item.RepoName, item.Number, fmt.Sprintf("%s%d", queue.IterationLabelPrefix, item.ReviewIteration))
		}
		if item.SourceIssueNumber != nil {
			_ = deps.Forge.RemoveLabel(ctx, item.RepoName, *item.SourceIssueNumber, queue.LabelWip)
			_ = deps.Forge.AddLabel(ctx, item.RepoName, *item.SourceIssueNumber, queue.LabelDone)
		}
		result.Status = queue.StatusDone
		result.QueueOps = []queue.QueueOp{
			queue.Remove(workID),
			queue.PushPr(queue.PrReviewDone, item),
		}
		return result
	}

	var comments []forge.ReviewCommentInput
	for _, c := range review.Comments {
		line := 0
		if c.Line != nil {
			line = *c.Line
		}
		comments = append(comments, forge.ReviewCommentInput{Path: c.Path, Line: line, Body: c.Body})
	}
	return requestChanges(ctx, deps, item, result, workID, review.Summary, comments, cfg)
}

func requestChanges(ctx context.Context, deps Deps, item queue.PrItem, result queue.TaskResult, workID, summary string, comments []forge.ReviewCommentInput, cfg *config.Resolved) queue.TaskResult {
	_ = deps.Forge.PostReview(ctx, item.RepoName, item.Number, forge.ReviewRequestChanges, summary, comments)

	maxIter := cfg.Develop.Review.MaxIterations
	if maxIter <= 0 {
		maxIter = 3
	}
	if item.ReviewIteration >= maxIter {
		_ = deps.Forge.RemoveLabel(ctx, item.RepoName, item.Number, queue.LabelWip)
		_ = deps.Forge.AddLabel(ctx, item.RepoName, item.Number, queue.LabelSkip)
		if item.ReviewIteration > 0 {
			_ = deps.Forge.RemoveLabel(ctx, item.RepoName, item.Number, fmt.Sprintf("%s%d", queue.IterationLabelPrefix, item.ReviewIteration))
		}
		_ = deps.Forge.PostComment(ctx, item.RepoName, item.Number,
			"<!-- autodev:iteration-cap -->\nReview/improve loop reached its iteration cap; leaving this PR for a human.")
		result.Status = queue.StatusSkip
		result.QueueOps = []queue.QueueOp{queue.Remove(workID)}
		return result
	}

	item.ReviewComment = summary
	item.ReviewIteration++
	_ = deps.Forge.AddLabel(ctx, item.RepoName, item.Number, fmt.Sprintf("%s%d", queue.IterationLabelPrefix, item.ReviewIteration))

	result.Status = queue.StatusDone
	result.QueueOps = []queue.QueueOp{
		queue.Remove(workID),
		queue.PushPr(queue.PrImproving, item),
	}
	return result
}

func reviewFailure(ctx context.Context, deps Deps, item queue.PrItem, result queue.TaskResult, workID, reason string) queue.TaskResult {
	slog.Error("pr review failed", "work_id", workID, "reason", reason)
	_ = deps.Forge.RemoveLabel(ctx, item.RepoName, item.Number, queue.LabelWip)
	result.Status = queue.StatusFailed
	result.Reason = reason
	result.QueueOps = []queue.QueueOp{queue.Remove(workID)}
	return result
}
