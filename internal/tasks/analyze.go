package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/agent"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/config"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/queue"
)

const analysisPromptTemplate = `Analyze the following issue and respond in JSON.

Issue #%d: %s

%s

Respond with this exact JSON schema:
{
  "verdict": "implement" | "needs_clarification" | "wontfix",
  "confidence": 0.0-1.0,
  "summary": "1-2 sentence summary of the issue",
  "questions": ["question1", ...],
  "reason": "reason if wontfix, null otherwise",
  "report": "full markdown analysis report with: affected files, implementation direction, checkpoints, risks"
}

Rules:
- verdict "implement": the issue is clear enough to implement
- verdict "needs_clarification": the issue is ambiguous or missing critical details
- verdict "wontfix": the issue should not be implemented (duplicate, out of scope, invalid)
- confidence: how confident you are in the verdict (0.0 = no confidence, 1.0 = fully confident)
- questions: list of clarifying questions (required when verdict is "needs_clarification")
- reason: explanation (required when verdict is "wontfix")
- report: detailed analysis regardless of verdict`

// Analyze runs the Pending→Analyzing leg of the issue phase machine: it
// spawns an agent session inside a fresh worktree, parses the
// verdict, and either labels the issue autodev:analyzed (implement +
// confident; a human's approval label later moves it to Ready) or posts a
// comment and labels it autodev:skip (needs_clarification, low confidence,
// or wontfix). Grounded on consumer/issue.rs's process_pending.
func Analyze(ctx context.Context, deps Deps, repo queue.ResolvedRepo, item queue.IssueItem, cfg *config.Resolved) queue.TaskResult {
	workID := item.WorkID()
	workerID := newWorkerID()
	taskID := taskIDFor("issue", item.Number)

	result := queue.TaskResult{WorkID: workID, RepoName: item.RepoName}

	if err := requireConfig(cfg); err != nil {
		result.Status = queue.StatusFailed
		result.Reason = err.Error()
		return result
	}

	if _, err := deps.Workspace.EnsureCloned(ctx, item.RepoName, item.CloneURL, deps.Forge.AuthToken()); err != nil {
		slog.Error("clone failed for issue analysis", "work_id", workID, "error", err)
		_ = deps.Forge.RemoveLabel(ctx, item.RepoName, item.Number, queue.LabelWip)
		result.Status = queue.StatusFailed
		result.Reason = fmt.Sprintf("clone failed: %v", err)
		result.QueueOps = []queue.QueueOp{queue.Remove(workID)}
		return result
	}

	wtPath, err := deps.Workspace.CreateWorktree(ctx, item.RepoName, taskID, nil)
	if err != nil {
		slog.Error("worktree creation failed for issue analysis", "work_id", workID, "error", err)
		_ = deps.Forge.RemoveLabel(ctx, item.RepoName, item.Number, queue.LabelWip)
		result.Status = queue.StatusFailed
		result.Reason = fmt.Sprintf("worktree failed: %v", err)
		result.QueueOps = []queue.QueueOp{queue.Remove(workID)}
		return result
	}

	prompt := fmt.Sprintf(analysisPromptTemplate, item.Number, item.Title, item.Body)
	started := startTimer()
	resp, err := deps.Agent.RunSession(ctx, wtPath, prompt)
	entry := logEntry(item.RepoID, "issue", workID, workerID, "analyze", resp.Stdout, resp.Stderr, resp.ExitCode, started)
	result.Logs = append(result.Logs, entry)

	if err != nil {
		_ = deps.Workspace.RemoveWorktree(item.RepoName, taskID)
		_ = deps.Forge.RemoveLabel(ctx, item.RepoName, item.Number, queue.LabelWip)
		result.Status = queue.StatusFailed
		result.Reason = fmt.Sprintf("session error: %v", err)
		result.QueueOps = []queue.QueueOp{queue.Remove(workID)}
		return result
	}

	if resp.ExitCode != 0 {
		_ = deps.Workspace.RemoveWorktree(item.RepoName, taskID)
		_ = deps.Forge.RemoveLabel(ctx, item.RepoName, item.Number, queue.LabelWip)
		result.Status = queue.StatusFailed
		result.Reason = fmt.Sprintf("agent exited with %d", resp.ExitCode)
		result.QueueOps = []queue.QueueOp{queue.Remove(workID)}
		return result
	}

	analysis, ok := agent.ParseAnalysis(resp.Stdout)
	if !ok {
		// Parse failure fallback: keep the raw output as the report and
		// label the issue analyzed as a confident implement verdict would,
		// matching the original's behavior of never discarding a completed
		// analysis session.
		slog.Warn("issue analysis output not parseable, falling back to ready", "work_id", workID)
		item.AnalysisReport = agent.ParseOutput(resp.Stdout)
		_ = deps.Workspace.RemoveWorktree(item.RepoName, taskID)
		return readyTransition(ctx, deps, item, result, workID)
	}

	switch {
	case analysis.Verdict == agent.VerdictWontfix:
		comment := formatWontfixComment(analysis)
		_ = deps.Forge.PostComment(ctx, item.RepoName, item.Number, comment)
		_ = deps.Forge.RemoveLabel(ctx, item.RepoName, item.Number, queue.LabelWip)
		_ = deps.Forge.AddLabel(ctx, item.RepoName, item.Number, queue.LabelSkip)
		_ = deps.Workspace.RemoveWorktree(item.RepoName, taskID)
		result.Status = queue.StatusSkip
		result.QueueOps = []queue.QueueOp{queue.Remove(workID)}
		return result

	case analysis.Verdict == agent.VerdictNeedsClarification || analysis.Confidence < cfg.Consumer.ConfidenceThreshold:
		comment := formatClarificationComment(analysis)
		_ = deps.Forge.PostComment(ctx, item.RepoName, item.Number, comment)
		_ = deps.Forge.RemoveLabel(ctx, item.RepoName, item.Number, queue.LabelWip)
		_ = deps.Forge.AddLabel(ctx, item.RepoName, item.Number, queue.LabelSkip)
		_ = deps.Workspace.RemoveWorktree(item.RepoName, taskID)
		result.Status = queue.StatusSkip
		result.QueueOps = []queue.QueueOp{queue.Remove(workID)}
		return result

	default:
		item.AnalysisReport = analysis.Report
		_ = deps.Workspace.RemoveWorktree(item.RepoName, taskID)
		return readyTransition(ctx, deps, item, result, workID)
	}
}

// readyTransition marks the issue analyzed and removes it from the queues;
// a later scan pushes it into Ready once a human adds
// autodev:approved-analysis.
func readyTransition(ctx context.Context, deps Deps, item queue.IssueItem, result queue.TaskResult, workID string) queue.TaskResult {
	_ = deps.Forge.RemoveLabel(ctx, item.RepoName, item.Number, queue.LabelWip)
	_ = deps.Forge.AddLabel(ctx, item.RepoName, item.Number, queue.LabelAnalyzed)
	result.Status = queue.StatusDone
	result.QueueOps = []queue.QueueOp{queue.Remove(workID)}
	return result
}

func formatWontfixComment(a agent.AnalysisResult) string {
	reason := "No additional details provided."
	if a.Reason != nil && *a.Reason != "" {
		reason = *a.Reason
	}
	return fmt.Sprintf("<!-- autodev:wontfix -->\n## Autodev Analysis\n\n**Verdict**: Won't fix\n\n**Summary**: %s\n\n**Reason**: %s",
		a.Summary, reason)
}

func formatClarificationComment(a agent.AnalysisResult) string {
	comment := fmt.Sprintf("<!-- autodev:waiting -->\n## Autodev Analysis\n\n**Summary**: %s\n\nThis issue needs clarification before implementation can proceed.\n\n", a.Summary)
	if len(a.Questions) > 0 {
		comment += "**Questions**:\n"
		for i, q := range a.Questions {
			comment += fmt.Sprintf("%d. %s\n", i+1, q)
		}
	}
	return comment
}
