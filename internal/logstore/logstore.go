// Package logstore persists operational log entries produced by finished
// tasks. The runtime appends a TaskResult's log rows after a tick finishes
// dispatching, not the task itself — writes stay off the task's own
// execution path, grounded on db.log_insert/NewConsumerLog in the original
// consumer loop.
package logstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/database"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/queue"
)

// Store appends consumer_logs rows via the shared DB handle.
type Store struct {
	db database.DB
}

// New builds a Store over an already-opened, already-migrated database.
func New(db database.DB) *Store {
	return &Store{db: db}
}

// consumerLogRow mirrors the consumer_logs schema via `db:` tags, matching
// database.Insert's reflection-based insert helper.
type consumerLogRow struct {
	RepoID     string `db:"repo_id"`
	QueueType  string `db:"queue_type"`
	WorkID     string `db:"work_id"`
	WorkerID   string `db:"worker_id"`
	Command    string `db:"command"`
	Stdout     string `db:"stdout"`
	Stderr     string `db:"stderr"`
	ExitCode   int    `db:"exit_code"`
	StartedAt  string `db:"started_at"`
	FinishedAt string `db:"finished_at"`
	DurationMS int64  `db:"duration_ms"`
}

// Append inserts every log row carried by result. A task may carry zero
// entries (most tasks log nothing beyond their TaskResult) or several (one
// per forge/agent call worth recording). Failures are logged, never
// returned — a lost log row must never fail a tick.
func (s *Store) Append(ctx context.Context, result queue.TaskResult) {
	if s == nil || s.db == nil {
		return
	}
	for _, entry := range result.Logs {
		row := consumerLogRow{
			RepoID:     entry.RepoID,
			QueueType:  entry.QueueType,
			WorkID:     entry.WorkID,
			WorkerID:   entry.WorkerID,
			Command:    entry.Command,
			Stdout:     entry.Stdout,
			Stderr:     entry.Stderr,
			ExitCode:   entry.ExitCode,
			StartedAt:  entry.StartedAt,
			FinishedAt: entry.FinishedAt,
			DurationMS: entry.DurationMS,
		}
		if row.StartedAt == "" {
			row.StartedAt = time.Now().UTC().Format(time.RFC3339)
		}
		if row.FinishedAt == "" {
			row.FinishedAt = row.StartedAt
		}
		if _, err := s.db.Insert(ctx, "consumer_logs", row); err != nil {
			slog.Warn("logstore: failed to append log entry", "work_id", entry.WorkID, "error", err)
		}
	}
}

// Recent returns the most recently started log rows across all repos, most
// recent first, for the status/log surfaces (gateway, TUI, CLI).
func (s *Store) Recent(ctx context.Context, limit int) ([]queue.LogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []consumerLogRow
	err := s.db.Select(ctx, &rows,
		`SELECT repo_id, queue_type, work_id, worker_id, command, stdout, stderr, exit_code, started_at, finished_at, duration_ms
		 FROM consumer_logs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	out := make([]queue.LogEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, queue.LogEntry{
			RepoID:     r.RepoID,
			QueueType:  r.QueueType,
			WorkID:     r.WorkID,
			WorkerID:   r.WorkerID,
			Command:    r.Command,
			Stdout:     r.Stdout,
			Stderr:     r.Stderr,
			ExitCode:   r.ExitCode,
			StartedAt:  r.StartedAt,
			FinishedAt: r.FinishedAt,
			DurationMS: r.DurationMS,
		})
	}
	return out, nil
}
