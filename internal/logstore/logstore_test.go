package logstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/config"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/database"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/queue"
)

func newTestStore(t *testing.T) (*Store, database.DB) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "logstore-test.db")
	db, err := database.NewSQLite(config.DatabaseConfig{Path: dbPath})
	if err != nil {
		t.Fatalf("new sqlite db: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(db), db
}

func TestAppendPersistsEveryLogEntry(t *testing.T) {
	store, db := newTestStore(t)
	defer db.Close()

	store.Append(context.Background(), queue.TaskResult{
		WorkID:   "issue:acme/widget:1",
		RepoName: "acme/widget",
		Status:   queue.StatusDone,
		Logs: []queue.LogEntry{
			{RepoID: "acme/widget", QueueType: "issue", WorkID: "issue:acme/widget:1", Command: "claude -p", ExitCode: 0, DurationMS: 500},
			{RepoID: "acme/widget", QueueType: "issue", WorkID: "issue:acme/widget:1", Command: "git push", ExitCode: 0, DurationMS: 120},
		},
	})

	recent, err := store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 persisted rows, got %d", len(recent))
	}
}

func TestAppendFillsInMissingTimestamps(t *testing.T) {
	store, db := newTestStore(t)
	defer db.Close()

	store.Append(context.Background(), queue.TaskResult{
		RepoName: "acme/widget",
		Logs:     []queue.LogEntry{{RepoID: "acme/widget", QueueType: "pr", WorkID: "pr:acme/widget:2"}},
	})

	recent, err := store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("expected 1 row, got %d", len(recent))
	}
	if recent[0].StartedAt == "" || recent[0].FinishedAt == "" {
		t.Fatalf("expected timestamps to be backfilled, got %+v", recent[0])
	}
}

func TestAppendWithZeroLogsIsNoop(t *testing.T) {
	store, db := newTestStore(t)
	defer db.Close()

	store.Append(context.Background(), queue.TaskResult{RepoName: "acme/widget"})

	recent, err := store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 0 {
		t.Fatalf("expected no rows persisted, got %d", len(recent))
	}
}

func TestRecentOrdersMostRecentFirst(t *testing.T) {
	store, db := newTestStore(t)
	defer db.Close()

	store.Append(context.Background(), queue.TaskResult{RepoName: "acme/widget", Logs: []queue.LogEntry{
		{RepoID: "acme/widget", QueueType: "issue", WorkID: "w1", StartedAt: "2026-07-29T10:00:00Z", FinishedAt: "2026-07-29T10:00:01Z"},
	}})
	store.Append(context.Background(), queue.TaskResult{RepoName: "acme/widget", Logs: []queue.LogEntry{
		{RepoID: "acme/widget", QueueType: "issue", WorkID: "w2", StartedAt: "2026-07-29T12:00:00Z", FinishedAt: "2026-07-29T12:00:01Z"},
	}})

	recent, err := store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 || recent[0].WorkID != "w2" {
		t.Fatalf("expected w2 (later StartedAt) first, got %+v", recent)
	}
}

func TestRecentDefaultsLimitWhenNonPositive(t *testing.T) {
	store, db := newTestStore(t)
	defer db.Close()

	for i := 0; i < 3; i++ {
		store.Append(context.Background(), queue.TaskResult{RepoName: "acme/widget", Logs: []queue.LogEntry{
			{RepoID: "acme/widget", QueueType: "issue", WorkID: "w"},
		}})
	}

	recent, err := store.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected the default limit to still return all 3 rows, got %d", len(recent))
	}
}

func TestAppendOnNilStoreIsSafe(t *testing.T) {
	var store *Store
	store.Append(context.Background(), queue.TaskResult{RepoName: "acme/widget", Logs: []queue.LogEntry{{WorkID: "w"}}})
}
