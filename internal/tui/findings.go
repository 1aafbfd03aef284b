package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/database"
	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// logRow mirrors one consumer_logs entry for the task-log table.
type logRow struct {
	RepoID     string `db:"repo_id"`
	QueueType  string `db:"queue_type"`
	WorkID     string `db:"work_id"`
	Command    string `db:"command"`
	ExitCode   int    `db:"exit_code"`
	StartedAt  string `db:"started_at"`
	DurationMS int64  `db:"duration_ms"`
}

// FindingsModel displays the task log table with per-kind filters.
type FindingsModel struct {
	db      database.DB
	issues  []logRow
	prs     []logRow
	merges  []logRow
	width   int
	height  int
	cursor  int
	filter  string // "issue" | "pr" | "merge" | "" (all)
	loading bool
}

type findingsLoadedMsg struct {
	issues []logRow
	prs    []logRow
	merges []logRow
}

// NewFindingsModel creates a FindingsModel.
func NewFindingsModel(db database.DB) FindingsModel {
	return FindingsModel{db: db, loading: true}
}

func (f FindingsModel) Init() tea.Cmd {
	return f.loadCmd()
}

func (f FindingsModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		var issues, prs, merges []logRow

		_ = f.db.Select(ctx, &issues,
			`SELECT repo_id, queue_type, work_id, command, exit_code, started_at, duration_ms
			 FROM consumer_logs WHERE queue_type = 'issue' ORDER BY started_at DESC LIMIT 200`)
		_ = f.db.Select(ctx, &prs,
			`SELECT repo_id, queue_type, work_id, command, exit_code, started_at, duration_ms
			 FROM consumer_logs WHERE queue_type = 'pr' ORDER BY started_at DESC LIMIT 200`)
		_ = f.db.Select(ctx, &merges,
			`SELECT repo_id, queue_type, work_id, command, exit_code, started_at, duration_ms
			 FROM consumer_logs WHERE queue_type = 'merge' ORDER BY started_at DESC LIMIT 200`)

		return findingsLoadedMsg{issues: issues, prs: prs, merges: merges}
	}
}

func (f FindingsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case findingsLoadedMsg:
		f.issues = msg.issues
		f.prs = msg.prs
		f.merges = msg.merges
		f.loading = false
		return f, tea.Tick(30*time.Second, func(t time.Time) tea.Msg {
			return f.loadCmd()()
		})

	case tea.KeyMsg:
		switch msg.String() {
		case "j", "down":
			f.cursor++
		case "k", "up":
			if f.cursor > 0 {
				f.cursor--
			}
		case "s":
			f.filter = "issue"
			f.cursor = 0
		case "a":
			f.filter = "pr"
			f.cursor = 0
		case "e":
			f.filter = "merge"
			f.cursor = 0
		case "0":
			f.filter = ""
			f.cursor = 0
		case "r":
			f.loading = true
			return f, f.loadCmd()
		}
	}
	f = f.clampCursor()
	return f, nil
}

func (f *FindingsModel) SetSize(w, h int) {
	f.width = w
	f.height = h
}

func (f FindingsModel) View() string {
	if f.loading && len(f.issues)+len(f.prs)+len(f.merges) == 0 {
		return panelStyle.Width(max(20, f.width-2)).Render("Loading task log...")
	}

	rows := ""
	totalRows := 0
	lineLimit := f.height - 10
	if lineLimit < 5 {
		lineLimit = 5
	}

	render := func(set []logRow) {
		for _, l := range set {
			if totalRows >= lineLimit {
				break
			}
			status := "ok"
			if l.ExitCode != 0 {
				status = "failed"
			}
			rows += f.renderRow(totalRows,
				status,
				l.QueueType,
				truncate(l.WorkID, 34),
				truncate(l.RepoID, 22),
				fmt.Sprintf("%dms", l.DurationMS),
			)
			totalRows++
		}
	}

	if f.filter == "" || f.filter == "issue" {
		render(f.issues)
	}
	if f.filter == "" || f.filter == "pr" {
		render(f.prs)
	}
	if f.filter == "" || f.filter == "merge" {
		render(f.merges)
	}

	if rows == "" {
		rows = dimStyle.Render("No task log entries yet.\n")
	}

	filterBar := lipgloss.JoinHorizontal(lipgloss.Left,
		f.filterChip("All", "", len(f.issues)+len(f.prs)+len(f.merges), "0"),
		" ",
		f.filterChip("Issues", "issue", len(f.issues), "s"),
		" ",
		f.filterChip("PRs", "pr", len(f.prs), "a"),
		" ",
		f.filterChip("Merges", "merge", len(f.merges), "e"),
		"  ",
		keycapStyle.Render("r"),
		" ",
		dimStyle.Render("refresh"),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		panelStyle.Width(max(20, f.width-2)).Render(
			lipgloss.JoinVertical(lipgloss.Left,
				panelHeaderStyle.Render("Task Log"),
				filterBar,
				"",
				dimStyle.Render("Status     Kind     Work ID                             Repo                   Duration"),
				rows,
				"",
				dimStyle.Render("j/k navigate  s issues  a prs  e merges  0 all"),
			),
		),
	)
}

func (f FindingsModel) renderRow(idx int, status, kind, workID, repo, meta string) string {
	cursor := " "
	if idx == f.cursor {
		cursor = "▌"
	}
	statusStyle := okStyle
	if status == "failed" {
		statusStyle = criticalStyle
	}

	line := lipgloss.JoinHorizontal(lipgloss.Left,
		lipgloss.NewStyle().Width(2).Foreground(accent).Render(cursor),
		lipgloss.NewStyle().Width(10).Render(statusStyle.Render(status)),
		lipgloss.NewStyle().Width(9).Foreground(slate).Render(kind),
		lipgloss.NewStyle().Width(36).Foreground(ink).Render(workID),
		lipgloss.NewStyle().Width(24).Foreground(slate).Render(repo),
		dimStyle.Render(meta),
	)
	if idx == f.cursor {
		return selectedRowStyle.Width(max(20, f.width-6)).Render(line) + "\n"
	}
	return line + "\n"
}

func (f FindingsModel) filterChip(label, value string, count int, key string) string {
	text := fmt.Sprintf("%s %d", label, count)
	if f.filter == value {
		return activeTabStyle.Render(text)
	}
	return tabStyle.Render(text + " [" + key + "]")
}

func (f FindingsModel) totalRows() int {
	total := 0
	if f.filter == "" || f.filter == "issue" {
		total += len(f.issues)
	}
	if f.filter == "" || f.filter == "pr" {
		total += len(f.prs)
	}
	if f.filter == "" || f.filter == "merge" {
		total += len(f.merges)
	}
	return total
}

func (f FindingsModel) clampCursor() FindingsModel {
	total := f.totalRows()
	if total == 0 {
		f.cursor = 0
		return f
	}
	if f.cursor < 0 {
		f.cursor = 0
	}
	if f.cursor >= total {
		f.cursor = total - 1
	}
	return f
}
