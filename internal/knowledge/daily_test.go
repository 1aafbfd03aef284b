package knowledge

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "daemon.log")
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing temp log: %v", err)
	}
	return path
}

func TestParseDaemonLogTalliesTerminalTransitions(t *testing.T) {
	path := writeTempLog(t,
		`time=2026-07-29T10:00:00Z level=INFO msg="issue:acme/widget:1 → Done" work_id="issue:acme/widget:1" (1200ms)`,
		`time=2026-07-29T10:05:00Z level=INFO msg="pr:acme/widget:2 → Done" work_id="pr:acme/widget:2" (800ms)`,
		`time=2026-07-29T10:10:00Z level=ERROR msg="pr:acme/widget:3 → Failed" work_id="pr:acme/widget:3" (500ms)`,
		`time=2026-07-29T10:15:00Z level=INFO msg="issue:acme/widget:4 → skip" work_id="issue:acme/widget:4"`,
	)

	stats, err := ParseDaemonLog(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.IssuesDone != 1 || stats.PRsDone != 1 || stats.Failed != 1 || stats.Skipped != 1 {
		t.Fatalf("unexpected tallies: %+v", stats)
	}
	if stats.TaskCount != 4 {
		t.Fatalf("expected task count 4, got %d", stats.TaskCount)
	}
	if stats.TotalDurationMs != 2500 {
		t.Fatalf("expected total duration 2500ms, got %d", stats.TotalDurationMs)
	}
	if len(stats.ErrorLines) != 1 || !strings.Contains(stats.ErrorLines[0], "Failed") {
		t.Fatalf("expected one captured error line, got %+v", stats.ErrorLines)
	}
	if len(stats.TaskIDs) != 4 {
		t.Fatalf("expected 4 extracted task ids, got %+v", stats.TaskIDs)
	}
}

func TestParseDaemonLogMissingFileReturnsError(t *testing.T) {
	if _, err := ParseDaemonLog(filepath.Join(t.TempDir(), "missing.log")); err == nil {
		t.Fatal("expected an error for a missing log file")
	}
}

func TestParseDaemonLogIgnoresLinesWithoutMarkers(t *testing.T) {
	path := writeTempLog(t, `time=2026-07-29T10:00:00Z level=DEBUG msg="tick started"`)
	stats, err := ParseDaemonLog(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TaskCount != 0 {
		t.Fatalf("expected no task transitions counted, got %+v", stats)
	}
}

func TestFormatReportIncludesCounts(t *testing.T) {
	day := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	stats := LogStats{IssuesDone: 3, PRsDone: 2, Failed: 1, Skipped: 0, TaskCount: 6, TotalDurationMs: 6000}

	report := FormatReport(day, stats)
	if !strings.Contains(report, "2026-07-29") {
		t.Fatalf("expected report to include the date, got: %s", report)
	}
	if !strings.Contains(report, "Issues completed: 3") {
		t.Fatalf("expected issue count, got: %s", report)
	}
	if !strings.Contains(report, "Average task duration: 1000ms") {
		t.Fatalf("expected average duration, got: %s", report)
	}
}

func TestFormatReportOmitsAverageWhenNoTasks(t *testing.T) {
	report := FormatReport(time.Now(), LogStats{})
	if strings.Contains(report, "Average task duration") {
		t.Fatalf("expected no average line with zero tasks, got: %s", report)
	}
}

func TestFormatReportIncludesErrorDetailsWhenPresent(t *testing.T) {
	stats := LogStats{Failed: 1, ErrorLines: []string{"boom: something broke"}}
	report := FormatReport(time.Now(), stats)
	if !strings.Contains(report, "<details><summary>Errors</summary>") {
		t.Fatalf("expected error details block, got: %s", report)
	}
	if !strings.Contains(report, "boom: something broke") {
		t.Fatalf("expected error line embedded, got: %s", report)
	}
}
