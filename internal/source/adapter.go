// Package source implements the source adapter: the sole
// owner of the in-memory TaskQueues. Each tick it resolves every enabled
// repository against its forge, reconciles crash-orphaned labels back into
// runnable state, scans for newly-discovered work, and drains the queues
// in a fixed order into a flat list of runnable tasks for the runtime to
// dispatch. After a task finishes, the runtime hands its TaskResult back to
// Apply, the only place queue mutation happens.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/config"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/forge"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/queue"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/workspace"
)

// RunnableTask is one unit of dispatchable work produced by a tick's drain
// step. Exactly one of Issue/Pr/Merge is set, matching Kind.
type RunnableTask struct {
	Kind  string // "analyze" | "implement" | "review" | "improve" | "merge" | "extract"
	Repo  queue.ResolvedRepo
	Issue *queue.IssueItem
	Pr    *queue.PrItem
	Merge *queue.MergeItem
	Cfg   *config.Resolved
}

// Adapter is the source adapter. It holds the only live reference to the
// process's TaskQueues.
type Adapter struct {
	cfg    *config.Config
	loader *config.Loader
	queues *queue.TaskQueues
	ws     *workspace.Manager
	forges []forge.Forge

	mu          sync.Mutex
	lastFetched map[string]time.Time
	issueCache  map[string][]queue.RepoIssue
	pullCache   map[string][]queue.RepoPull
}

// NewAdapter builds a source adapter over the given process configuration
// and the set of forges built from its credentials.
func NewAdapter(cfg *config.Config, loader *config.Loader, ws *workspace.Manager, forges []forge.Forge) *Adapter {
	return &Adapter{
		cfg:         cfg,
		loader:      loader,
		queues:      queue.NewTaskQueues(),
		ws:          ws,
		lastFetched: make(map[string]time.Time),
		issueCache:  make(map[string][]queue.RepoIssue),
		pullCache:   make(map[string][]queue.RepoPull),
		forges:      forges,
	}
}

// shouldFetch reports whether enough time has elapsed since repoName's last
// issue/pull fetch to justify another round-trip, per its
// consumer.scan_interval_secs. Recording the attempt regardless
// of outcome prevents a slow/erroring forge from being hammered every tick.
func (a *Adapter) shouldFetch(repoName string, interval time.Duration) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	last, ok := a.lastFetched[repoName]
	if ok && time.Since(last) < interval {
		return false
	}
	a.lastFetched[repoName] = time.Now()
	return true
}

func (a *Adapter) cachedIssuesPulls(repoName string) ([]queue.RepoIssue, []queue.RepoPull) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.issueCache[repoName], a.pullCache[repoName]
}

func (a *Adapter) storeIssuesPulls(repoName string, issues []queue.RepoIssue, pulls []queue.RepoPull) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.issueCache[repoName] = issues
	a.pullCache[repoName] = pulls
}

// forgeFor picks the Forge matching repoURL's detected provider. Returns an
// error if no credential is configured for that provider.
func (a *Adapter) forgeFor(repoURL string) (forge.Forge, error) {
	provider, err := forge.DetectProvider(repoURL)
	if err != nil {
		return nil, err
	}
	for _, f := range a.forges {
		if f.Name() == provider {
			return f, nil
		}
	}
	return nil, fmt.Errorf("no %s credential configured for %s", provider, repoURL)
}

// Poll runs one full tick: resolve, recover, scan, drain. It returns the
// flat list of tasks the runtime should dispatch this tick, respecting no
// concurrency caps itself — that is the runtime's job, since the source
// adapter only knows what work exists, not how much of it can run at once.
func (a *Adapter) Poll(ctx context.Context) []RunnableTask {
	repos := a.resolve(ctx)

	if n, err := a.recoverOrphanWip(ctx, repos); err != nil {
		slog.Warn("recover_orphan_wip failed", "error", err)
	} else if n > 0 {
		slog.Info("recovered orphan wip items", "count", n)
	}
	if n, err := a.recoverOrphanImplementing(ctx, repos); err != nil {
		slog.Warn("recover_orphan_implementing failed", "error", err)
	} else if n > 0 {
		slog.Info("recovered orphan implementing issues", "count", n)
	}

	for _, repo := range repos {
		resolvedCfg := a.loader.LoadMerged(repo.Name, a.ws.CanonicalDir(repo.Name))
		if !scanTargetEnabled(resolvedCfg.Consumer.ScanTargets, "issues") {
			continue
		}
		f, err := a.forgeFor(repo.URL)
		if err != nil {
			slog.Warn("scan_issues: no forge credential", "repo", repo.Name, "error", err)
			continue
		}
		a.scanIssues(ctx, repo, resolvedCfg.Consumer, f)
	}
	for _, repo := range repos {
		resolvedCfg := a.loader.LoadMerged(repo.Name, a.ws.CanonicalDir(repo.Name))
		if !scanTargetEnabled(resolvedCfg.Consumer.ScanTargets, "pulls") {
			continue
		}
		f, err := a.forgeFor(repo.URL)
		if err != nil {
			slog.Warn("scan_pulls: no forge credential", "repo", repo.Name, "error", err)
			continue
		}
		a.scanPulls(ctx, repo, resolvedCfg.Consumer, f)
	}
	for _, repo := range repos {
		resolvedCfg := a.loader.LoadMerged(repo.Name, a.ws.CanonicalDir(repo.Name))
		if !resolvedCfg.Consumer.AutoMerge {
			continue
		}
		a.scanMerges(repo)
	}

	return a.drain(repos)
}

// Queues exposes the live queue state for read-only status surfaces
// (gateway, TUI). Callers must not mutate what they read.
func (a *Adapter) Queues() *queue.TaskQueues {
	return a.queues
}

// Apply feeds one finished task's result back into the owning repo's
// queues, the only queue-mutating entry point outside of scan/drain.
func (a *Adapter) Apply(result queue.TaskResult) {
	a.queues.Apply(result)
}

func scanTargetEnabled(targets []string, target string) bool {
	for _, t := range targets {
		if t == target {
			return true
		}
	}
	return false
}
