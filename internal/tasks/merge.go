package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/config"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/queue"
)

// Merge runs the Pending→Merging leg of the merge phase machine. Unlike the
// issue/PR tasks it spawns no agent session — merging is a pure forge
// operation, gated on AutoMerge and on the PR's mergeable state. On
// success it pushes the PR onward into Extracting so the knowledge
// extraction task gets a final look at the merged diff.
func Merge(ctx context.Context, deps Deps, repo queue.ResolvedRepo, item queue.MergeItem, cfg *config.Resolved) queue.TaskResult {
	workID := item.WorkID()
	result := queue.TaskResult{WorkID: workID, RepoName: item.RepoName}

	if err := requireConfig(cfg); err != nil {
		result.Status = queue.StatusFailed
		result.Reason = err.Error()
		return result
	}

	if !cfg.Consumer.AutoMerge {
		result.Status = queue.StatusSkip
		result.Reason = "auto_merge disabled"
		result.QueueOps = []queue.QueueOp{queue.Remove(workID)}
		return result
	}

	mergeable, err := deps.Forge.GetField(ctx, item.RepoName, item.Number, "mergeable")
	if err != nil {
		slog.Error("checking mergeable state failed", "work_id", workID, "error", err)
		_ = deps.Forge.RemoveLabel(ctx, item.RepoName, item.Number, queue.LabelWip)
		result.Status = queue.StatusFailed
		result.Reason = fmt.Sprintf("checking mergeable state: %v", err)
		result.QueueOps = []queue.QueueOp{queue.Remove(workID)}
		return result
	}
	if mergeable == "false" {
		_ = deps.Forge.RemoveLabel(ctx, item.RepoName, item.Number, queue.LabelWip)
		result.Status = queue.StatusSkip
		result.Reason = "pull request is not mergeable"
		result.QueueOps = []queue.QueueOp{queue.Remove(workID)}
		return result
	}

	if err := deps.Forge.MergePR(ctx, item.RepoName, item.Number); err != nil {
		slog.Error("merge failed", "work_id", workID, "error", err)
		_ = deps.Forge.RemoveLabel(ctx, item.RepoName, item.Number, queue.LabelWip)
		result.Status = queue.StatusFailed
		result.Reason = fmt.Sprintf("merge failed: %v", err)
		result.QueueOps = []queue.QueueOp{queue.Remove(workID)}
		return result
	}

	_ = deps.Forge.RemoveLabel(ctx, item.RepoName, item.Number, queue.LabelWip)
	_ = deps.Forge.AddLabel(ctx, item.RepoName, item.Number, queue.LabelDone)

	prItem := queue.PrItem{
		RepoID:     item.RepoID,
		RepoName:   item.RepoName,
		CloneURL:   item.CloneURL,
		GhHost:     item.GhHost,
		Number:     item.Number,
		HeadBranch: item.HeadBranch,
		BaseBranch: item.BaseBranch,
	}

	result.Status = queue.StatusDone
	result.QueueOps = []queue.QueueOp{
		queue.Remove(workID),
		queue.PushPr(queue.PrExtracting, prItem),
	}
	return result
}
