package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/config"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/queue"
)

// Dispatcher fans out events to all configured channels.
type Dispatcher struct {
	channels []Channel
	events   map[string]bool // event types to send (empty map = use defaults)
}

// defaultEvents is the set of event types that trigger notifications when
// notify.events is empty: every terminal task transition.
var defaultEvents = map[string]bool{
	"task_done":   true,
	"task_skip":   true,
	"task_failed": true,
}

// NewDispatcher creates a Dispatcher from the given config.
// Only channels with IsConfigured() == true are active.
func NewDispatcher(cfg config.NotifyConfig) *Dispatcher {
	d := &Dispatcher{}
	if len(cfg.Events) > 0 {
		d.events = make(map[string]bool, len(cfg.Events))
		for _, e := range cfg.Events {
			d.events[e] = true
		}
	} else {
		d.events = defaultEvents
	}

	// Register all channels
	channels := []Channel{
		NewSlack(cfg.Slack),
		NewTelegram(cfg.Telegram),
		NewEmail(cfg.Email),
		NewWebhook(cfg.Webhook),
	}
	for _, ch := range channels {
		if ch.IsConfigured() {
			d.channels = append(d.channels, ch)
		}
	}
	return d
}

// IsAnyConfigured returns true if at least one channel is ready to send.
func (d *Dispatcher) IsAnyConfigured() bool {
	return len(d.channels) > 0
}

// Notify sends evt to all configured channels. Errors are logged but never returned.
func (d *Dispatcher) Notify(ctx context.Context, evt Event) {
	if !d.shouldSend(evt) {
		return
	}
	for _, ch := range d.channels {
		if err := ch.Send(ctx, evt); err != nil {
			slog.Warn("notify: channel send failed", "channel", ch.Name(), "event", evt.Type, "error", err)
		}
	}
}

// NotifyTerminal turns one finished task's result into an Event and sends
// it to every configured channel, if that result's status is among the
// configured events (task_done, task_skip, task_failed by default).
func (d *Dispatcher) NotifyTerminal(result queue.TaskResult) {
	if d == nil || !d.IsAnyConfigured() {
		return
	}

	evtType := "task_" + string(result.Status)
	title := fmt.Sprintf("%s: %s", result.RepoName, result.WorkID)
	body := result.Reason
	if body == "" {
		body = fmt.Sprintf("%s transitioned to %s", result.WorkID, result.Status)
	}

	d.Notify(context.Background(), Event{
		Type:    evtType,
		Title:   title,
		Body:    body,
		RepoKey: result.RepoName,
		Metadata: map[string]any{
			"work_id": result.WorkID,
			"status":  string(result.Status),
		},
	})
}

func (d *Dispatcher) shouldSend(evt Event) bool {
	if len(d.events) > 0 && !d.events[evt.Type] {
		return false
	}
	return true
}
