// Package forge abstracts operations against a Git hosting platform: listing
// and searching repositories, paginated issue/PR listing, label mutation,
// comments, and reviews. It is
// deliberately a pure transport leaf — the orchestrator is the only caller
// that interprets what these calls mean.
package forge

import (
	"context"
	"fmt"
	"strings"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/config"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/queue"
	"github.com/CosmoTheDev/autodev-orchestrator/models"
)

// ReviewEvent is the event type posted with a PR review.
type ReviewEvent string

const (
	ReviewApprove        ReviewEvent = "APPROVE"
	ReviewRequestChanges ReviewEvent = "REQUEST_CHANGES"
	ReviewComment        ReviewEvent = "COMMENT"
)

// ReviewCommentInput is one inline comment attached to a review.
type ReviewCommentInput struct {
	Path string
	Line int
	Body string
}

// Forge abstracts a single hosting-platform account/token against one or
// more repositories.
type Forge interface {
	// Name identifies the provider ("github", "gitlab", "azure").
	Name() string

	// AuthToken returns the credential used for git clone.
	AuthToken() string

	// ListRepos returns all repositories the authenticated user can access.
	ListRepos(ctx context.Context, opts ListReposOptions) ([]models.Repo, error)

	// GetRepo returns a single repository's identity, including default branch.
	GetRepo(ctx context.Context, owner, name string) (*models.Repo, error)

	// ForkRepo forks owner/name to the authenticated user's namespace.
	ForkRepo(ctx context.Context, owner, name string) (*models.Repo, error)

	// SearchRepos searches for repositories matching the query.
	SearchRepos(ctx context.Context, query string) ([]models.Repo, error)

	// ListIssues returns paginated open issues for a repo (state is
	// typically "open"). Pull requests are not included: implementations
	// drop any the forge's issue listing returns.
	ListIssues(ctx context.Context, fullName, state string) ([]queue.RepoIssue, error)

	// ListPulls returns paginated open pull requests for a repo.
	ListPulls(ctx context.Context, fullName, state string) ([]queue.RepoPull, error)

	// GetField fetches a single named field off an issue/PR ("state",
	// "mergeable", "merged") — the Go equivalent of the original's jq
	// extraction expression, implemented as typed accessors.
	GetField(ctx context.Context, fullName string, number int, field string) (string, error)

	// ListIssueComments returns the raw comment bodies on an issue, most
	// recent last — used by recovery's pr-link marker extraction.
	ListIssueComments(ctx context.Context, fullName string, number int) ([]string, error)

	// PostComment posts a new comment on an issue or PR.
	PostComment(ctx context.Context, fullName string, number int, body string) error

	// AddLabel idempotently adds a label.
	AddLabel(ctx context.Context, fullName string, number int, label string) error

	// RemoveLabel idempotently removes a label (no error if absent).
	RemoveLabel(ctx context.Context, fullName string, number int, label string) error

	// CreateIssue opens a new issue (used by the knowledge/daily-report flow).
	CreateIssue(ctx context.Context, fullName, title, body string) (int, error)

	// CreatePR opens a pull request, returning the new PR number.
	CreatePR(ctx context.Context, opts CreatePROptions) (int, error)

	// PostReview posts a PR review with the given event and optional inline comments.
	PostReview(ctx context.Context, fullName string, number int, event ReviewEvent, body string, comments []ReviewCommentInput) error

	// MergePR merges an approved pull request.
	MergePR(ctx context.Context, fullName string, number int) error
}

// ListReposOptions controls pagination and filtering for ListRepos.
type ListReposOptions struct {
	PerPage     int
	Page        int
	Visibility  string // "public" | "private" | "all"
	Affiliation string // "owner" | "collaborator" | "organization_member"
}

// CreatePROptions contains all fields needed to open a pull request.
type CreatePROptions struct {
	Owner      string
	Repo       string
	Title      string
	Body       string
	HeadBranch string
	BaseBranch string
	Draft      bool
}

// DetectProvider infers the hosting platform from a repository URL.
func DetectProvider(repoURL string) (string, error) {
	lower := strings.ToLower(repoURL)
	switch {
	case strings.Contains(lower, "github.com"):
		return "github", nil
	case strings.Contains(lower, "gitlab.com") || strings.Contains(lower, "gitlab."):
		return "gitlab", nil
	case strings.Contains(lower, "dev.azure.com") || strings.Contains(lower, "visualstudio.com"):
		return "azure", nil
	default:
		if strings.Contains(lower, "github.") {
			return "github", nil
		}
		return "", fmt.Errorf("cannot detect provider from URL %q; use --provider flag", repoURL)
	}
}

// TokenForProvider returns the auth token for the detected provider from cfg.
func TokenForProvider(cfg *config.Config, provider string) string {
	switch provider {
	case "github":
		for _, g := range cfg.Git.GitHub {
			if g.Token != "" {
				return g.Token
			}
		}
	case "gitlab":
		for _, g := range cfg.Git.GitLab {
			if g.Token != "" {
				return g.Token
			}
		}
	case "azure":
		for _, a := range cfg.Git.Azure {
			if a.Token != "" {
				return a.Token
			}
		}
	}
	return ""
}

// New returns the appropriate Forge for the given platform.
func New(provider string, cfg *config.Config) (Forge, error) {
	switch provider {
	case "github":
		if len(cfg.Git.GitHub) == 0 || cfg.Git.GitHub[0].Token == "" {
			return nil, fmt.Errorf("no GitHub token configured; run 'autodev onboard'")
		}
		return NewGitHub(cfg.Git.GitHub[0])
	case "gitlab":
		if len(cfg.Git.GitLab) == 0 || cfg.Git.GitLab[0].Token == "" {
			return nil, fmt.Errorf("no GitLab token configured; run 'autodev onboard'")
		}
		return NewGitLab(cfg.Git.GitLab[0])
	case "azure":
		if len(cfg.Git.Azure) == 0 || cfg.Git.Azure[0].Token == "" {
			return nil, fmt.Errorf("no Azure DevOps token configured; run 'autodev onboard'")
		}
		return NewAzureDevOps(cfg.Git.Azure[0])
	default:
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}
}

// NewAll builds one Forge per configured credential set across all
// platforms, used by the source adapter to resolve repos spanning multiple
// hosts.
func NewAll(cfg *config.Config) ([]Forge, error) {
	var forges []Forge
	for _, g := range cfg.Git.GitHub {
		if g.Token == "" {
			continue
		}
		f, err := NewGitHub(g)
		if err != nil {
			return nil, err
		}
		forges = append(forges, f)
	}
	for _, g := range cfg.Git.GitLab {
		if g.Token == "" {
			continue
		}
		f, err := NewGitLab(g)
		if err != nil {
			return nil, err
		}
		forges = append(forges, f)
	}
	for _, a := range cfg.Git.Azure {
		if a.Token == "" {
			continue
		}
		f, err := NewAzureDevOps(a)
		if err != nil {
			return nil, err
		}
		forges = append(forges, f)
	}
	return forges, nil
}
