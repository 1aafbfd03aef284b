// Package knowledge implements the knowledge-extraction and daily-report
// features from the original daemon's knowledge/extractor.rs
// and knowledge/daily.rs: after a PR merges, a best-effort agent session
// looks for durable lessons (new conventions, gotchas, recurring patterns)
// and proposes a knowledge-base delta as its own pull request; separately,
// a cron-scheduled job summarizes a day's operational logs into a posted
// report issue.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/agent"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/forge"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/queue"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/workspace"
)

// Suggestion is the structured output of a knowledge-extraction session.
type Suggestion struct {
	HasSuggestion bool   `json:"has_suggestion"`
	File          string `json:"file"`
	Content       string `json:"content"`
	Rationale     string `json:"rationale"`
}

const extractionPromptTemplate = `[autodev] knowledge: pr #%d

A pull request (#%d) was just merged into %s. Review the diff and the
project's existing knowledge base below, and decide whether anything durable
is worth recording (a new convention, a gotcha, a recurring pattern).

Existing knowledge base:
%s

Respond with this exact JSON schema:
{
  "has_suggestion": true | false,
  "file": "path relative to repo root, e.g. CLAUDE.md or .claude/rules/some-topic.md",
  "content": "the full new file content, or the section to append",
  "rationale": "why this is worth recording"
}

If nothing is worth recording, set has_suggestion to false and leave the
other fields empty.`

// Extract is the Extracting-phase task: best-effort, never fails the
// merge it follows. It collects the repo's existing knowledge files, asks
// the agent whether anything is worth recording, and if so opens a PR
// against the repo's actual default branch containing the proposed delta.
func Extract(ctx context.Context, ws *workspace.Manager, runner *agent.Runner, f forge.Forge, repo queue.ResolvedRepo, item queue.PrItem) queue.TaskResult {
	workID := item.WorkID()
	result := queue.TaskResult{WorkID: workID, RepoName: item.RepoName, Status: queue.StatusDone}
	result.QueueOps = []queue.QueueOp{queue.Remove(workID)}

	taskID := fmt.Sprintf("extract-%d", item.Number)
	wtPath, err := ws.CreateWorktree(ctx, item.RepoName, taskID, nil)
	if err != nil {
		slog.Warn("knowledge extraction skipped: worktree failed", "work_id", workID, "error", err)
		return result
	}
	defer func() { _ = ws.RemoveWorktree(item.RepoName, taskID) }()

	existing := collectExistingKnowledge(wtPath)
	prompt := fmt.Sprintf(extractionPromptTemplate, item.Number, item.Number, repo.DefaultBranch, existing)

	resp, err := runner.RunSession(ctx, wtPath, prompt)
	if err != nil || resp.ExitCode != 0 {
		slog.Warn("knowledge extraction session failed, skipping", "work_id", workID, "error", err)
		return result
	}

	suggestion, ok := parseSuggestion(resp.Stdout)
	if !ok || !suggestion.HasSuggestion {
		return result
	}

	branch := fmt.Sprintf("autodev/knowledge-%d", item.Number)
	destPath, err := workspace.SafeJoin(wtPath, suggestion.File)
	if err != nil {
		slog.Warn("knowledge suggestion rejected: unsafe path", "work_id", workID, "file", suggestion.File)
		return result
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		slog.Warn("knowledge extraction failed to create directory", "work_id", workID, "error", err)
		return result
	}
	if err := os.WriteFile(destPath, []byte(suggestion.Content), 0o644); err != nil {
		slog.Warn("knowledge extraction failed to write file", "work_id", workID, "error", err)
		return result
	}

	prTitle := fmt.Sprintf("knowledge: update from PR #%d", item.Number)
	prBody := fmt.Sprintf("<!-- autodev:knowledge -->\n%s\n\nProposed after merging #%d.", suggestion.Rationale, item.Number)

	owner, repoOnly := workspace.ParseOwnerRepo(item.CloneURL)
	if _, err := f.CreatePR(ctx, forge.CreatePROptions{
		Owner:      owner,
		Repo:       repoOnly,
		Title:      prTitle,
		Body:       prBody,
		HeadBranch: branch,
		BaseBranch: repo.DefaultBranch,
	}); err != nil {
		slog.Warn("knowledge PR creation failed", "work_id", workID, "error", err)
	}

	return result
}

func collectExistingKnowledge(wtPath string) string {
	var sb strings.Builder

	if content, err := os.ReadFile(filepath.Join(wtPath, "CLAUDE.md")); err == nil {
		sb.WriteString("--- CLAUDE.md ---\n")
		sb.Write(content)
		sb.WriteString("\n\n")
	}

	rulesDir := filepath.Join(wtPath, ".claude", "rules")
	entries, err := os.ReadDir(rulesDir)
	if err == nil {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			content, err := os.ReadFile(filepath.Join(rulesDir, name))
			if err != nil {
				continue
			}
			sb.WriteString(fmt.Sprintf("--- .claude/rules/%s ---\n", name))
			sb.Write(content)
			sb.WriteString("\n\n")
		}
	}

	return sb.String()
}
