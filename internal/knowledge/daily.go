package knowledge

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/forge"
	"github.com/robfig/cron/v3"
)

// LogStats summarizes one day's worth of daemon log lines, ported from the
// original daily-report job's log scan.
type LogStats struct {
	IssuesDone      int
	PRsDone         int
	Failed          int
	Skipped         int
	TotalDurationMs int64
	TaskCount       int
	ErrorLines      []string
	TaskIDs         []string
}

// ParseDaemonLog scans a daemon log file line by line and tallies terminal
// task transitions. Lines are matched on the same "→ Done" / "→ Failed" /
// "→ skip" markers the runtime's per-task logging emits, case-insensitively,
// with issue/PR disambiguated by a substring check on the work id.
func ParseDaemonLog(logPath string) (LogStats, error) {
	f, err := os.Open(logPath)
	if err != nil {
		return LogStats{}, fmt.Errorf("opening daemon log %s: %w", logPath, err)
	}
	defer f.Close()

	var stats LogStats
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		lower := strings.ToLower(line)

		switch {
		case strings.Contains(lower, "→ done"):
			stats.TaskCount++
			if strings.Contains(lower, "issue:") {
				stats.IssuesDone++
			} else if strings.Contains(lower, "pr:") {
				stats.PRsDone++
			}
		case strings.Contains(lower, "→ failed"):
			stats.TaskCount++
			stats.Failed++
			stats.ErrorLines = append(stats.ErrorLines, line)
		case strings.Contains(lower, "→ skip"):
			stats.TaskCount++
			stats.Skipped++
		}

		if d, ok := extractDurationMs(line); ok {
			stats.TotalDurationMs += d
		}
		if id, ok := extractTaskID(line); ok {
			stats.TaskIDs = append(stats.TaskIDs, id)
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("scanning daemon log %s: %w", logPath, err)
	}
	return stats, nil
}

// extractDurationMs pulls a "(1234ms)" marker out of a log line, as emitted
// by the task runner's completion log entries.
func extractDurationMs(line string) (int64, bool) {
	open := strings.LastIndex(line, "(")
	close := strings.LastIndex(line, "ms)")
	if open < 0 || close < 0 || close <= open {
		return 0, false
	}
	numStr := line[open+1 : close]
	ms, err := strconv.ParseInt(strings.TrimSpace(numStr), 10, 64)
	if err != nil {
		return 0, false
	}
	return ms, true
}

// extractTaskID pulls a "work_id=kind:repo:number" field out of a
// slog-formatted structured log line.
func extractTaskID(line string) (string, bool) {
	const marker = "work_id="
	idx := strings.Index(line, marker)
	if idx < 0 {
		return "", false
	}
	rest := line[idx+len(marker):]
	if end := strings.IndexByte(rest, ' '); end >= 0 {
		rest = rest[:end]
	}
	rest = strings.Trim(rest, `"`)
	if rest == "" {
		return "", false
	}
	return rest, true
}

// FormatReport renders a LogStats as a Markdown comment body for the daily
// report issue.
func FormatReport(day time.Time, stats LogStats) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## autodev daily report — %s\n\n", day.Format("2006-01-02"))
	fmt.Fprintf(&sb, "- Issues completed: %d\n", stats.IssuesDone)
	fmt.Fprintf(&sb, "- PRs completed: %d\n", stats.PRsDone)
	fmt.Fprintf(&sb, "- Failed tasks: %d\n", stats.Failed)
	fmt.Fprintf(&sb, "- Skipped tasks: %d\n", stats.Skipped)
	if stats.TaskCount > 0 {
		avg := stats.TotalDurationMs / int64(stats.TaskCount)
		fmt.Fprintf(&sb, "- Average task duration: %dms\n", avg)
	}
	if len(stats.ErrorLines) > 0 {
		sb.WriteString("\n<details><summary>Errors</summary>\n\n```\n")
		for _, l := range stats.ErrorLines {
			sb.WriteString(l)
			sb.WriteString("\n")
		}
		sb.WriteString("```\n</details>\n")
	}
	return sb.String()
}

// Reporter schedules a daily parse-and-post job against a single report
// repository on a robfig/cron schedule.
type Reporter struct {
	cron     *cron.Cron
	logPath  string
	repoName string
	f        forge.Forge

	mu sync.Mutex
}

// NewReporter builds a Reporter that will post a daily report issue to
// repoName using f, summarizing logPath.
func NewReporter(f forge.Forge, repoName, logPath string) *Reporter {
	return &Reporter{cron: cron.New(), logPath: logPath, repoName: repoName, f: f}
}

// Start registers the daily job at the given cron expression (e.g.
// "0 8 * * *" for 8am) and starts the runner.
func (r *Reporter) Start(expr string) error {
	_, err := r.cron.AddFunc(expr, func() {
		if err := r.runOnce(context.Background()); err != nil {
			slog.Warn("daily report failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid daily report cron expression %q: %w", expr, err)
	}
	r.cron.Start()
	return nil
}

// Stop halts the cron runner.
func (r *Reporter) Stop() { r.cron.Stop() }

func (r *Reporter) runOnce(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats, err := ParseDaemonLog(r.logPath)
	if err != nil {
		return err
	}
	body := FormatReport(time.Now().Add(-24*time.Hour), stats)
	title := fmt.Sprintf("autodev daily report — %s", time.Now().Add(-24*time.Hour).Format("2006-01-02"))
	if _, err := r.f.CreateIssue(ctx, r.repoName, title, body); err != nil {
		return fmt.Errorf("posting daily report issue: %w", err)
	}
	return nil
}
