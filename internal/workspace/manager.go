// Package workspace implements a canonical-clone-plus-worktree discipline:
// each repository is cloned exactly once into a durable "canonical"
// directory, kept up to date with fast-forward-only pulls, and
// every task operates inside its own short-lived git worktree branched off
// that canonical clone. Worktrees are torn down on every task exit path,
// successful or not.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// Manager owns the canonical clones and worktrees for every watched
// repository, rooted at a single base directory (config's WorkspacesPath).
type Manager struct {
	baseDir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex // one lock per repo, serializing pull/worktree-add against that repo's canonical clone
}

// NewManager creates a Manager rooted at baseDir (created if absent).
func NewManager(baseDir string) (*Manager, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace base dir %s: %w", baseDir, err)
	}
	return &Manager{baseDir: baseDir, locks: make(map[string]*sync.Mutex)}, nil
}

func (m *Manager) repoLock(repoName string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[repoName]
	if !ok {
		l = &sync.Mutex{}
		m.locks[repoName] = l
	}
	return l
}

func (m *Manager) canonicalDir(repoName string) string {
	return SafeJoinOrPanic(m.baseDir, filepath.Join("canonical", sanitize(repoName)))
}

// CanonicalDir exposes the canonical clone path for repoName without
// cloning it, so callers (e.g. the per-repo config overlay loader) can
// check for a checked-out .develop-workflow.yaml before a task ever runs.
func (m *Manager) CanonicalDir(repoName string) string {
	return m.canonicalDir(repoName)
}

func (m *Manager) worktreesDir(repoName string) string {
	return SafeJoinOrPanic(m.baseDir, filepath.Join("worktrees", sanitize(repoName)))
}

func sanitize(name string) string {
	return strings.ReplaceAll(name, "/", "__")
}

// EnsureCloned clones repoURL into the canonical directory for repoName if
// it does not already exist, otherwise fetches and fast-forwards the
// default branch. Safe to call repeatedly; serialized per-repo via repoLock.
func (m *Manager) EnsureCloned(ctx context.Context, repoName, repoURL, token string) (string, error) {
	lock := m.repoLock(repoName)
	lock.Lock()
	defer lock.Unlock()

	dir := m.canonicalDir(repoName)
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		if err := m.pullFastForward(ctx, dir, token); err != nil {
			slog.Warn("fast-forward pull failed, continuing with existing clone", "repo", repoName, "error", err)
		}
		return dir, nil
	}

	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return "", fmt.Errorf("creating canonical parent for %s: %w", repoName, err)
	}

	opts := &gogit.CloneOptions{URL: repoURL}
	if token != "" {
		opts.Auth = &githttp.BasicAuth{Username: "autodev", Password: token}
	}

	slog.Debug("cloning canonical repository", "repo", repoName, "url", repoURL, "dest", dir)
	if _, err := gogit.PlainCloneContext(ctx, dir, false, opts); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("cloning %s: %w", repoURL, err)
	}
	return dir, nil
}

func (m *Manager) pullFastForward(ctx context.Context, dir, token string) error {
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		return fmt.Errorf("opening canonical clone %s: %w", dir, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting canonical worktree %s: %w", dir, err)
	}
	opts := &gogit.PullOptions{RemoteName: "origin"}
	if token != "" {
		opts.Auth = &githttp.BasicAuth{Username: "autodev", Password: token}
	}
	err = wt.PullContext(ctx, opts)
	if err != nil && err != gogit.NoErrAlreadyUpToDate {
		return fmt.Errorf("pulling %s: %w", dir, err)
	}
	return nil
}

// CreateWorktree creates a new git worktree for taskID off the canonical
// clone's current HEAD, returning its path. branch, if non-nil and
// non-empty, names the local branch to create instead of the generated
// "autodev/<taskID>" name. Every caller MUST pair this with RemoveWorktree
// on every exit path, success or failure.
func (m *Manager) CreateWorktree(ctx context.Context, repoName, taskID string, branch *string) (string, error) {
	canonical := m.canonicalDir(repoName)
	if _, err := os.Stat(canonical); err != nil {
		return "", fmt.Errorf("repository %s has no canonical clone: %w", repoName, err)
	}

	worktreeDir := SafeJoinOrPanic(m.worktreesDir(repoName), sanitize(taskID))
	if err := os.MkdirAll(filepath.Dir(worktreeDir), 0o755); err != nil {
		return "", fmt.Errorf("creating worktrees parent for %s: %w", repoName, err)
	}
	if err := os.RemoveAll(worktreeDir); err != nil {
		return "", fmt.Errorf("clearing stale worktree dir %s: %w", worktreeDir, err)
	}

	repo, err := gogit.PlainOpen(canonical)
	if err != nil {
		return "", fmt.Errorf("opening canonical clone %s: %w", canonical, err)
	}

	headRef, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolving canonical HEAD for %s: %w", repoName, err)
	}
	checkoutHash := headRef.Hash()

	branchName := fmt.Sprintf("autodev/%s", sanitize(taskID))
	if branch != nil && *branch != "" {
		branchName = *branch
	}

	// go-git exposes no native "git worktree add"; emulate it with a local
	// clone of the canonical directory's object store, checked out at the
	// canonical HEAD, on a fresh branch.
	cloned, err := gogit.PlainClone(worktreeDir, false, &gogit.CloneOptions{URL: canonical})
	if err != nil {
		return "", fmt.Errorf("materializing worktree for %s/%s: %w", repoName, taskID, err)
	}

	wt, err := cloned.Worktree()
	if err != nil {
		os.RemoveAll(worktreeDir)
		return "", fmt.Errorf("getting worktree handle: %w", err)
	}
	if err := wt.Checkout(&gogit.CheckoutOptions{Hash: checkoutHash}); err != nil {
		os.RemoveAll(worktreeDir)
		return "", fmt.Errorf("checking out %s in worktree: %w", checkoutHash, err)
	}
	if err := wt.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branchName),
		Create: true,
		Hash:   checkoutHash,
	}); err != nil {
		os.RemoveAll(worktreeDir)
		return "", fmt.Errorf("creating branch %s in worktree: %w", branchName, err)
	}

	// Point the worktree's origin back at the real remote so later pushes
	// (PR branches) land on the actual forge, not the local canonical path.
	if remote, err := repo.Remote("origin"); err == nil && len(remote.Config().URLs) > 0 {
		if err := cloned.DeleteRemote("origin"); err == nil {
			_, _ = cloned.CreateRemote(&config.RemoteConfig{
				Name: "origin",
				URLs: remote.Config().URLs,
			})
		}
	}

	return worktreeDir, nil
}

// RemoveWorktree tears down a previously created worktree. Safe to call on
// a worktree that no longer exists.
func (m *Manager) RemoveWorktree(repoName, taskID string) error {
	worktreeDir := SafeJoinOrPanic(m.worktreesDir(repoName), sanitize(taskID))
	if err := os.RemoveAll(worktreeDir); err != nil {
		return fmt.Errorf("removing worktree %s: %w", worktreeDir, err)
	}
	return nil
}

// SafeJoin joins base and rel, rejecting any result that escapes base via
// ".." segments or an absolute rel.
func SafeJoin(base, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("path %q is absolute", rel)
	}
	joined := filepath.Join(base, rel)
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("resolving base path: %w", err)
	}
	absJoined, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("resolving joined path: %w", err)
	}
	if absJoined != absBase && !strings.HasPrefix(absJoined, absBase+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %q escapes base directory %q", rel, base)
	}
	return absJoined, nil
}

// SafeJoinOrPanic is SafeJoin for call sites where rel is always
// daemon-sanitized (repo/task names), never raw agent input; a violation
// here is a programming error, not an attacker input.
func SafeJoinOrPanic(base, rel string) string {
	p, err := SafeJoin(base, rel)
	if err != nil {
		panic(err)
	}
	return p
}

// ParseOwnerRepo extracts the owner and repository name from a git URL.
// Supports HTTPS (https://github.com/owner/repo.git) and SSH
// (git@github.com:owner/repo.git) forms.
func ParseOwnerRepo(repoURL string) (owner, repo string) {
	u := strings.TrimSuffix(repoURL, ".git")

	if strings.Contains(u, "://") {
		parts := strings.Split(u, "/")
		if len(parts) >= 2 {
			return parts[len(parts)-2], parts[len(parts)-1]
		}
	}

	if idx := strings.Index(u, ":"); idx != -1 {
		path := u[idx+1:]
		parts := strings.SplitN(path, "/", 2)
		if len(parts) == 2 {
			return parts[0], parts[1]
		}
	}

	return "", u
}
