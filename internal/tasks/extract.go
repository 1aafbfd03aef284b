package tasks

import (
	"context"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/knowledge"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/queue"
)

// Extract runs the Extracting leg of the PR phase machine: after a merge
// it makes one best-effort attempt at recording durable
// knowledge from the change, never failing the pipeline if the agent finds
// nothing or the PR creation fails. It terminates the item either way.
func Extract(ctx context.Context, deps Deps, repo queue.ResolvedRepo, item queue.PrItem) queue.TaskResult {
	return knowledge.Extract(ctx, deps.Workspace, deps.Agent, deps.Forge, repo, item)
}
