// Package runtime drives the tick loop: source.Adapter.Poll produces a flat
// list of runnable tasks, the runtime dispatches each through a per-repo,
// per-kind concurrency gate, waits for the tick's work to finish, and feeds
// every result back through Adapter.Apply before sleeping until the next
// trigger or scan interval elapses: a trigger channel for "run now", a
// poll interval for "run eventually", and per-sweep cancellation via
// context.
package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/config"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/forge"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/logstore"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/notify"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/queue"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/source"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/tasks"
)

// Runtime owns the tick loop. It holds no queue state itself — that stays
// inside the source adapter — only the dispatch/concurrency machinery.
type Runtime struct {
	adapter *source.Adapter
	deps    tasks.Deps
	forges  []forge.Forge
	logs    *logstore.Store
	notify  *notify.Dispatcher

	triggerCh chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New builds a Runtime over an already-constructed source adapter and task
// dependencies. forges is the same credential set handed to the source
// adapter; dispatch re-resolves the right one per repo, since deps.Forge
// alone can't vary across repos hosted on different providers.
func New(adapter *source.Adapter, deps tasks.Deps, forges []forge.Forge, logs *logstore.Store, n *notify.Dispatcher) *Runtime {
	return &Runtime{
		adapter:   adapter,
		deps:      deps,
		forges:    forges,
		logs:      logs,
		notify:    n,
		triggerCh: make(chan struct{}, 1),
	}
}

// forgeFor picks the Forge matching repoURL's detected provider, falling
// back to deps.Forge (single-provider setups, the common case) if no
// specific match is found.
func (r *Runtime) forgeFor(repoURL string) forge.Forge {
	provider, err := forge.DetectProvider(repoURL)
	if err == nil {
		for _, f := range r.forges {
			if f.Name() == provider {
				return f
			}
		}
	}
	return r.deps.Forge
}

// Trigger requests an immediate tick, interrupting the current scan
// interval wait. At most one pending trigger is kept.
func (r *Runtime) Trigger() {
	select {
	case r.triggerCh <- struct{}{}:
	default:
	}
}

// StopCurrentTick cancels the in-flight tick's tasks, if any. The runtime
// keeps running and remains available for future ticks.
func (r *Runtime) StopCurrentTick() bool {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	return true
}

// Run blocks until ctx is cancelled, running one tick immediately and then
// on every trigger or scanIntervalFallback, whichever comes first.
func (r *Runtime) Run(ctx context.Context) error {
	slog.Info("runtime starting")

	for {
		if err := r.tick(ctx); err != nil && ctx.Err() == nil {
			slog.Error("tick failed", "error", err)
		}

		select {
		case <-ctx.Done():
			slog.Info("runtime received shutdown signal")
			return nil
		case <-r.triggerCh:
			slog.Info("runtime triggered, starting next tick immediately")
		case <-time.After(scanIntervalFallback):
			slog.Info("runtime: poll interval elapsed, starting tick")
		}
	}
}

// tick runs exactly one source.Poll → dispatch → apply cycle.
func (r *Runtime) tick(ctx context.Context) error {
	tickCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer func() {
		cancel()
		r.mu.Lock()
		r.cancel = nil
		r.mu.Unlock()
	}()

	runnable := r.adapter.Poll(tickCtx)
	if len(runnable) == 0 {
		return nil
	}
	slog.Info("tick dispatching tasks", "count", len(runnable))

	gates := newGateSet()
	var wg sync.WaitGroup
	results := make(chan queue.TaskResult, len(runnable))

	for _, rt := range runnable {
		rt := rt
		gate := gates.For(rt.Repo.Name, bucketFor(rt.Kind), concurrencyFor(rt.Kind, rt.Cfg.Consumer))
		gate.acquire()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer gate.release()
			results <- r.dispatch(tickCtx, rt)
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for result := range results {
		r.adapter.Apply(result)
		if r.logs != nil {
			r.logs.Append(context.Background(), result)
		}
		if r.notify != nil {
			r.notify.NotifyTerminal(result)
		}
	}

	return nil
}

func (r *Runtime) dispatch(ctx context.Context, rt source.RunnableTask) queue.TaskResult {
	deps := r.deps
	deps.Forge = r.forgeFor(rt.Repo.URL)

	switch rt.Kind {
	case "analyze":
		return tasks.Analyze(ctx, deps, rt.Repo, *rt.Issue, rt.Cfg)
	case "implement":
		return tasks.Implement(ctx, deps, rt.Repo, *rt.Issue, rt.Cfg)
	case "review":
		return tasks.Review(ctx, deps, rt.Repo, *rt.Pr, rt.Cfg)
	case "improve":
		return tasks.Improve(ctx, deps, rt.Repo, *rt.Pr, rt.Cfg)
	case "merge":
		return tasks.Merge(ctx, deps, rt.Repo, *rt.Merge, rt.Cfg)
	case "extract":
		return tasks.Extract(ctx, deps, rt.Repo, *rt.Pr)
	default:
		slog.Error("unknown runnable task kind", "kind", rt.Kind)
		return queue.TaskResult{Status: queue.StatusFailed, Reason: "unknown task kind " + rt.Kind}
	}
}

func bucketFor(kind string) string {
	switch kind {
	case "analyze", "implement":
		return "issue"
	case "review", "improve", "extract":
		return "pr"
	case "merge":
		return "merge"
	default:
		return "misc"
	}
}

func concurrencyFor(kind string, cfg config.ConsumerConfig) int {
	n := 1
	switch bucketFor(kind) {
	case "issue":
		n = cfg.IssueConcurrency
	case "pr":
		n = cfg.PrConcurrency
	case "merge":
		n = cfg.MergeConcurrency
	}
	if n <= 0 {
		n = 1
	}
	return n
}

// scanIntervalFallback bounds how long the runtime waits between automatic
// ticks when nothing triggers it sooner. A tick is cheap to run more often
// than any one repo's scan_interval_secs: the source adapter itself skips
// re-fetching a repo's issues/pulls until that repo's own interval has
// elapsed, so a short fallback here just means other repos' queued work
// still drains promptly.
var scanIntervalFallback = 15 * time.Second
