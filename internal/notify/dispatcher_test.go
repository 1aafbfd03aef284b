package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/queue"
)

type fakeChannel struct {
	name      string
	sent      []Event
	sendErr   error
	isEnabled bool
}

func (f *fakeChannel) Name() string         { return f.name }
func (f *fakeChannel) IsConfigured() bool    { return f.isEnabled }
func (f *fakeChannel) Send(ctx context.Context, evt Event) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, evt)
	return nil
}

func TestNotifySendsToAllConfiguredChannels(t *testing.T) {
	a := &fakeChannel{name: "a", isEnabled: true}
	b := &fakeChannel{name: "b", isEnabled: true}
	d := &Dispatcher{channels: []Channel{a, b}, events: defaultEvents}

	d.Notify(context.Background(), Event{Type: "task_done"})

	if len(a.sent) != 1 || len(b.sent) != 1 {
		t.Fatalf("expected both channels to receive the event, got a=%d b=%d", len(a.sent), len(b.sent))
	}
}

func TestNotifyFiltersUnconfiguredEventTypes(t *testing.T) {
	a := &fakeChannel{name: "a", isEnabled: true}
	d := &Dispatcher{channels: []Channel{a}, events: map[string]bool{"task_failed": true}}

	d.Notify(context.Background(), Event{Type: "task_done"})

	if len(a.sent) != 0 {
		t.Fatalf("expected task_done to be filtered out, got %d sends", len(a.sent))
	}
}

func TestNotifyOneChannelFailureDoesNotBlockOthers(t *testing.T) {
	broken := &fakeChannel{name: "broken", isEnabled: true, sendErr: errors.New("boom")}
	ok := &fakeChannel{name: "ok", isEnabled: true}
	d := &Dispatcher{channels: []Channel{broken, ok}, events: defaultEvents}

	d.Notify(context.Background(), Event{Type: "task_skip"})

	if len(ok.sent) != 1 {
		t.Fatalf("expected the healthy channel to still receive the event, got %d", len(ok.sent))
	}
}

func TestIsAnyConfiguredReflectsRegisteredChannels(t *testing.T) {
	empty := &Dispatcher{}
	if empty.IsAnyConfigured() {
		t.Fatal("expected no channels configured")
	}
	withOne := &Dispatcher{channels: []Channel{&fakeChannel{name: "a", isEnabled: true}}}
	if !withOne.IsAnyConfigured() {
		t.Fatal("expected at least one channel configured")
	}
}

func TestNotifyTerminalBuildsEventFromTaskResult(t *testing.T) {
	ch := &fakeChannel{name: "a", isEnabled: true}
	d := &Dispatcher{channels: []Channel{ch}, events: defaultEvents}

	d.NotifyTerminal(queue.TaskResult{
		WorkID:   "issue:acme/widget:9",
		RepoName: "acme/widget",
		Status:   queue.StatusFailed,
		Reason:   "agent exited non-zero",
	})

	if len(ch.sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(ch.sent))
	}
	evt := ch.sent[0]
	if evt.Type != "task_failed" {
		t.Fatalf("expected type task_failed, got %q", evt.Type)
	}
	if evt.Body != "agent exited non-zero" {
		t.Fatalf("expected Reason to populate Body, got %q", evt.Body)
	}
	if evt.Metadata["work_id"] != "issue:acme/widget:9" {
		t.Fatalf("unexpected metadata: %+v", evt.Metadata)
	}
}

func TestNotifyTerminalDefaultsBodyWhenReasonEmpty(t *testing.T) {
	ch := &fakeChannel{name: "a", isEnabled: true}
	d := &Dispatcher{channels: []Channel{ch}, events: defaultEvents}

	d.NotifyTerminal(queue.TaskResult{WorkID: "pr:acme/widget:3", RepoName: "acme/widget", Status: queue.StatusDone})

	if len(ch.sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(ch.sent))
	}
	if ch.sent[0].Body == "" {
		t.Fatal("expected a generated fallback body when Reason is empty")
	}
}

func TestNotifyTerminalNoopWhenNoChannelsConfigured(t *testing.T) {
	d := &Dispatcher{}
	d.NotifyTerminal(queue.TaskResult{WorkID: "x", RepoName: "acme/widget", Status: queue.StatusDone})
}

func TestNotifyTerminalNoopOnNilDispatcher(t *testing.T) {
	var d *Dispatcher
	d.NotifyTerminal(queue.TaskResult{WorkID: "x", RepoName: "acme/widget", Status: queue.StatusDone})
}
