package notify

import "context"

// Event represents a notification event emitted on a task's terminal
// transition.
type Event struct {
	Type     string // "task_done" | "task_skip" | "task_failed"
	Title    string
	Body     string
	URL      string         // optional deep link (e.g. PR URL)
	Severity string         // "critical" | "high" | "medium" | "low" | ""
	RepoKey  string         // "owner/repo"
	Metadata map[string]any // extra structured data (work_id, status, ...)
}

// Channel is implemented by each notification provider.
type Channel interface {
	Name() string
	IsConfigured() bool
	Send(ctx context.Context, evt Event) error
}
