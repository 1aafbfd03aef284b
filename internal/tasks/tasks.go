// Package tasks implements the six task kinds that carry work items through
// the issue/pull-request phase state machines: Analyze and Implement
// (issues), Review and Improve (pull requests), Merge, and Extract
// (knowledge). Every task follows a before_invoke/invoke/after_invoke
// contract: label mutation and worktree setup in before_invoke, the agent
// session in invoke, and queue-op/log production in after_invoke — ported
// from the original daemon's pipeline/issue.rs and pipeline/pr.rs,
// generalized into Go functions returning queue.TaskResult instead of
// spawned futures.
package tasks

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/agent"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/config"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/forge"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/queue"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/workspace"
)

// Deps bundles the transport-layer collaborators every task needs. It is
// built once at startup; the runtime copies it for each task, swapping in
// the forge that matches that task's repository.
type Deps struct {
	Forge     forge.Forge
	Agent     *agent.Runner
	Workspace *workspace.Manager
}

// AppendSystemPrompt mirrors the original's AGENT_SYSTEM_PROMPT constant.
// No task passes it to a session: the runner appends only the configured
// agent.system_prompt.
const AppendSystemPrompt = "You are an autonomous coding agent operating inside a disposable git worktree. " +
	"Make the smallest correct change. Commit your work with a descriptive message before finishing."

// newWorkerID returns a random hex identifier tagging one task invocation's
// log rows; it has no meaning beyond "this run vs. that run".
func newWorkerID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

func startTimer() time.Time { return time.Now() }

func logEntry(repoID, queueType, workID, workerID, command, stdout, stderr string, exitCode int, started time.Time) queue.LogEntry {
	finished := time.Now()
	return queue.LogEntry{
		RepoID:     repoID,
		QueueType:  queueType,
		WorkID:     workID,
		WorkerID:   workerID,
		Command:    command,
		Stdout:     stdout,
		Stderr:     stderr,
		ExitCode:   exitCode,
		StartedAt:  started.UTC().Format(time.RFC3339),
		FinishedAt: finished.UTC().Format(time.RFC3339),
		DurationMS: finished.Sub(started).Milliseconds(),
	}
}

// taskIDFor builds the worktree task id convention "{kind}-{number}" shared
// by every task kind.
func taskIDFor(kind string, number int) string {
	return fmt.Sprintf("%s-%d", kind, number)
}

var errNoConfig = fmt.Errorf("tasks: resolved config required")

// requireConfig is a defensive guard: every task needs a non-nil Resolved
// config to pick up workflow prompts and iteration limits.
func requireConfig(cfg *config.Resolved) error {
	if cfg == nil {
		return errNoConfig
	}
	return nil
}
