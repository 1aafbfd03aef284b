package source

import (
	"context"
	"log/slog"
	"time"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/queue"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/workspace"
)

// resolve converts the configured repo watchlist into ResolvedRepo value
// objects: per-repo gh_host (via the overlay loader's own mtime cache,
// equivalent to the original's GH_HOST_CACHE) plus a pre-fetched snapshot
// of open issues and pulls, so one tick's scans/recovery never re-fetch the
// same page twice.
func (a *Adapter) resolve(ctx context.Context) []queue.ResolvedRepo {
	resolved := make([]queue.ResolvedRepo, 0, len(a.cfg.Repos))

	for _, r := range a.cfg.Repos {
		f, err := a.forgeFor(r.CloneURL)
		if err != nil {
			slog.Warn("skipping repo with no matching credential", "repo", r.Name, "error", err)
			continue
		}

		owner, name := workspace.ParseOwnerRepo(r.CloneURL)
		repoInfo, err := f.GetRepo(ctx, owner, name)
		defaultBranch := "main"
		if err != nil {
			slog.Warn("failed to fetch repo metadata, using fallback default branch", "repo", r.Name, "error", err)
		} else {
			defaultBranch = repoInfo.DefaultBranch
		}

		resolvedCfg := a.loader.LoadMerged(r.Name, a.ws.CanonicalDir(r.Name))

		interval := time.Duration(resolvedCfg.Consumer.ScanIntervalSecs) * time.Second
		var issues []queue.RepoIssue
		var pulls []queue.RepoPull
		if interval <= 0 || a.shouldFetch(r.Name, interval) {
			issues, err = f.ListIssues(ctx, r.Name, "open")
			if err != nil {
				slog.Warn("failed to fetch issues", "repo", r.Name, "error", err)
				issues, _ = a.cachedIssuesPulls(r.Name)
			}
			pulls, err = f.ListPulls(ctx, r.Name, "open")
			if err != nil {
				slog.Warn("failed to fetch pulls", "repo", r.Name, "error", err)
				_, pulls = a.cachedIssuesPulls(r.Name)
			}
			a.storeIssuesPulls(r.Name, issues, pulls)
		} else {
			issues, pulls = a.cachedIssuesPulls(r.Name)
		}

		resolved = append(resolved, queue.ResolvedRepo{
			ID:            r.Name,
			URL:           r.CloneURL,
			Name:          r.Name,
			DefaultBranch: defaultBranch,
			GhHost:        resolvedCfg.Consumer.GhHost,
			Issues:        issues,
			Pulls:         pulls,
			Queues:        a.queues.Repo(r.Name),
		})
	}

	return resolved
}
