package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/database"
	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// repoRow mirrors the repositories table for the dashboard's watchlist panel.
type repoRow struct {
	Name          string `db:"name"`
	DefaultBranch string `db:"default_branch"`
	GhHost        string `db:"gh_host"`
}

// recentLogRow mirrors consumer_logs for the dashboard's activity panel.
type recentLogRow struct {
	QueueType  string `db:"queue_type"`
	WorkID     string `db:"work_id"`
	Command    string `db:"command"`
	ExitCode   int    `db:"exit_code"`
	StartedAt  string `db:"started_at"`
	DurationMS int64  `db:"duration_ms"`
}

// DashboardModel shows the overview: watched repos and recent task activity.
type DashboardModel struct {
	db       database.DB
	repos    []repoRow
	recent   []recentLogRow
	width    int
	height   int
	lastLoad time.Time
	loading  bool
}

type dashLoadedMsg struct {
	repos  []repoRow
	recent []recentLogRow
}

// NewDashboardModel creates a DashboardModel.
func NewDashboardModel(db database.DB) DashboardModel {
	return DashboardModel{db: db, loading: true}
}

func (d DashboardModel) Init() tea.Cmd {
	return d.loadCmd()
}

func (d DashboardModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		var repos []repoRow
		var recent []recentLogRow
		_ = d.db.Select(ctx, &repos, `SELECT name, default_branch, gh_host FROM repositories ORDER BY name`)
		_ = d.db.Select(ctx, &recent,
			`SELECT queue_type, work_id, command, exit_code, started_at, duration_ms
			 FROM consumer_logs ORDER BY started_at DESC LIMIT 20`)
		return dashLoadedMsg{repos: repos, recent: recent}
	}
}

func (d DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dashLoadedMsg:
		d.repos = msg.repos
		d.recent = msg.recent
		d.loading = false
		d.lastLoad = time.Now()
		return d, tea.Tick(10*time.Second, func(t time.Time) tea.Msg {
			return d.loadCmd()()
		})
	case tea.KeyMsg:
		if msg.String() == "r" {
			d.loading = true
			return d, d.loadCmd()
		}
	}
	return d, nil
}

func (d *DashboardModel) SetSize(w, h int) {
	d.width = w
	d.height = h
}

func (d DashboardModel) View() string {
	if d.loading && len(d.repos) == 0 && len(d.recent) == 0 {
		return panelStyle.Width(max(20, d.width-2)).Render("Loading...")
	}

	var ok, failed int
	for _, l := range d.recent {
		if l.ExitCode == 0 {
			ok++
		} else {
			failed++
		}
	}

	cardW := 18
	if d.width >= 100 {
		cardW = 20
	}
	summary := lipgloss.JoinHorizontal(lipgloss.Top,
		renderCounter("Repos", len(d.repos), okStyle, cardW),
		renderCounter("Done", ok, okStyle, cardW),
		renderCounter("Failed", failed, criticalStyle, cardW),
	)

	lineLimit := d.height - 12
	if lineLimit < 5 {
		lineLimit = 5
	}
	rows := ""
	for i, l := range d.recent {
		if i >= lineLimit {
			break
		}
		statusFmt := lipgloss.NewStyle().Foreground(bgDark).Background(green).Padding(0, 1).Render("ok")
		if l.ExitCode != 0 {
			statusFmt = lipgloss.NewStyle().Foreground(bgDark).Background(red).Padding(0, 1).Render("failed")
		}
		line := lipgloss.JoinHorizontal(lipgloss.Left,
			lipgloss.NewStyle().Width(10).Foreground(slate).Render(l.QueueType),
			lipgloss.NewStyle().Width(28).Foreground(ink).Render(truncate(l.WorkID, 26)),
			lipgloss.NewStyle().Width(12).Render(statusFmt),
			dimStyle.Render(fmt.Sprintf("%dms", l.DurationMS)),
		)
		rows += line + "\n"
	}
	if len(d.recent) == 0 {
		rows = dimStyle.Render("No task activity yet. Run: autodev daemon\n")
	}

	repoRows := ""
	for _, r := range d.repos {
		branch := r.DefaultBranch
		if branch == "" {
			branch = "main"
		}
		repoRows += lipgloss.JoinHorizontal(lipgloss.Left,
			lipgloss.NewStyle().Width(36).Foreground(ink).Render(truncate(r.Name, 34)),
			lipgloss.NewStyle().Width(14).Foreground(slate).Render(branch),
		) + "\n"
	}
	if len(d.repos) == 0 {
		repoRows = dimStyle.Render("Watchlist is empty. Run: autodev repo add <clone-url>\n")
	}

	updated := "never"
	if !d.lastLoad.IsZero() {
		updated = d.lastLoad.Format("15:04:05")
	}
	refreshInfo := lipgloss.JoinHorizontal(lipgloss.Left,
		keycapStyle.Render("r"),
		" ",
		dimStyle.Render("refresh"),
		"   ",
		dimStyle.Render("updated "+updated),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Padding(0, 1).Render(summary),
		panelStyle.Width(max(20, d.width-2)).Render(
			lipgloss.JoinVertical(lipgloss.Left,
				panelHeaderStyle.Render("Watchlist"),
				repoRows,
			),
		),
		panelStyle.Width(max(20, d.width-2)).Render(
			lipgloss.JoinVertical(lipgloss.Left,
				panelHeaderStyle.Render("Recent Activity"),
				dimStyle.Render("Kind       Work ID                     Status      Duration"),
				rows,
				refreshInfo,
			),
		),
	)
}

func renderCounter(label string, count int, style lipgloss.Style, width int) string {
	return boxStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Center,
			style.Bold(true).Render(fmt.Sprintf("%d", count)),
			dimStyle.Render(strings.ToUpper(label)),
		),
	) + "  "
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 1 {
		return s[:max]
	}
	return s[:max-1] + "…"
}
