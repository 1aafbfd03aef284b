package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/config"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/database"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/logstore"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/queue"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/runtime"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/source"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/tasks"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "gateway-test.db")
	db, err := database.NewSQLite(config.DatabaseConfig{Path: dbPath})
	if err != nil {
		t.Fatalf("new sqlite db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := &config.Config{Repos: []config.RepoEntry{{Name: "acme/widget"}}}
	adapter := source.NewAdapter(cfg, nil, nil, nil)
	rt := runtime.New(adapter, tasks.Deps{}, nil, logstore.New(db), nil)

	return New(cfg, adapter, rt, logstore.New(db), 1)
}

func TestHandleStatusReportsRepoAndForgeCounts(t *testing.T) {
	gw := newTestGateway(t)
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()

	gw.handleStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var status DaemonStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.Running || status.Repos != 1 || status.Forges != 1 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestHandleQueuesReportsPhaseOccupancy(t *testing.T) {
	gw := newTestGateway(t)
	gw.adapter.Queues().Repo("acme/widget").PushIssue(queue.IssueReady, queue.IssueItem{RepoName: "acme/widget", Number: 1})

	req := httptest.NewRequest(http.MethodGet, "/api/queues", nil)
	rec := httptest.NewRecorder()
	gw.handleQueues(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out []RepoQueueStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0].Repo != "acme/widget" || out[0].Issues["ready"] != 1 {
		t.Fatalf("unexpected queue status: %+v", out)
	}
}

func TestHandleQueuesRetryTriggersTheRuntime(t *testing.T) {
	gw := newTestGateway(t)
	req := httptest.NewRequest(http.MethodPost, "/api/queues/retry", nil)
	rec := httptest.NewRecorder()

	gw.handleQueuesRetry(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "triggered" {
		t.Fatalf("unexpected response body: %+v", body)
	}
}

func TestHandleLogsRecentReturnsPersistedEntries(t *testing.T) {
	gw := newTestGateway(t)
	gw.logs.Append(context.Background(), queue.TaskResult{
		RepoName: "acme/widget",
		Logs:     []queue.LogEntry{{RepoID: "acme/widget", QueueType: "issue", WorkID: "issue:acme/widget:1"}},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/logs/recent?limit=5", nil)
	rec := httptest.NewRecorder()
	gw.handleLogsRecent(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var entries []queue.LogEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0].WorkID != "issue:acme/widget:1" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestHandleHealthReportsOK(t *testing.T) {
	gw := newTestGateway(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	gw.handleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestParsePositiveIntRejectsNonDigits(t *testing.T) {
	if parsePositiveInt("12a") != 0 {
		t.Fatal("expected non-digit input to parse as 0")
	}
	if parsePositiveInt("42") != 42 {
		t.Fatal("expected 42 to parse as 42")
	}
}
