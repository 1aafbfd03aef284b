package forge

import (
	"fmt"
	"strings"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/config"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/queue"
	"github.com/CosmoTheDev/autodev-orchestrator/models"
	gitlab "gitlab.com/gitlab-org/api/client-go"

	"context"
)

// GitLabForge implements Forge for GitLab (cloud and self-hosted). GitLab
// has no native "PR review" concept; APPROVE maps to the merge-request
// approval endpoint and REQUEST_CHANGES/COMMENT map to a plain note, same
// as the original Rust source's behavior for non-GitHub hosts.
type GitLabForge struct {
	client *gitlab.Client
	token  string
	host   string
}

// NewGitLab creates a GitLabForge from the given configuration.
func NewGitLab(cfg config.GitLabConfig) (*GitLabForge, error) {
	var opts []gitlab.ClientOptionFunc
	if cfg.Host != "" && cfg.Host != "gitlab.com" {
		opts = append(opts, gitlab.WithBaseURL(fmt.Sprintf("https://%s/api/v4/", cfg.Host)))
	}
	client, err := gitlab.NewClient(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating GitLab client: %w", err)
	}
	return &GitLabForge{client: client, token: cfg.Token, host: cfg.Host}, nil
}

func (g *GitLabForge) Name() string      { return "gitlab" }
func (g *GitLabForge) AuthToken() string { return g.token }

func (g *GitLabForge) ListRepos(ctx context.Context, opts ListReposOptions) ([]models.Repo, error) {
	perPage := opts.PerPage
	if perPage == 0 {
		perPage = 100
	}
	owned := true
	projects, _, err := g.client.Projects.ListProjects(&gitlab.ListProjectsOptions{
		Owned:       &owned,
		ListOptions: gitlab.ListOptions{PerPage: perPage},
	})
	if err != nil {
		return nil, fmt.Errorf("listing GitLab projects: %w", err)
	}
	return g.convertProjects(projects), nil
}

func (g *GitLabForge) GetRepo(ctx context.Context, owner, name string) (*models.Repo, error) {
	nameWithNS := owner + "/" + name
	proj, _, err := g.client.Projects.GetProject(nameWithNS, nil)
	if err != nil {
		return nil, fmt.Errorf("getting GitLab project %s: %w", nameWithNS, err)
	}
	repos := g.convertProjects([]*gitlab.Project{proj})
	return &repos[0], nil
}

func (g *GitLabForge) ForkRepo(ctx context.Context, owner, name string) (*models.Repo, error) {
	nameWithNS := owner + "/" + name
	fork, _, err := g.client.Projects.ForkProject(nameWithNS, &gitlab.ForkProjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("forking GitLab project %s: %w", nameWithNS, err)
	}
	repos := g.convertProjects([]*gitlab.Project{fork})
	return &repos[0], nil
}

func (g *GitLabForge) SearchRepos(ctx context.Context, query string) ([]models.Repo, error) {
	projects, _, err := g.client.Projects.ListProjects(&gitlab.ListProjectsOptions{
		Search:      &query,
		ListOptions: gitlab.ListOptions{PerPage: 100},
	})
	if err != nil {
		return nil, fmt.Errorf("searching GitLab projects: %w", err)
	}
	return g.convertProjects(projects), nil
}

func (g *GitLabForge) ListIssues(ctx context.Context, fullName, state string) ([]queue.RepoIssue, error) {
	issues, _, err := g.client.Issues.ListProjectIssues(fullName, &gitlab.ListProjectIssuesOptions{
		State:       &state,
		ListOptions: gitlab.ListOptions{PerPage: 100},
	})
	if err != nil {
		return nil, fmt.Errorf("listing issues for %s: %w", fullName, err)
	}
	out := make([]queue.RepoIssue, 0, len(issues))
	for _, is := range issues {
		author := ""
		if is.Author != nil {
			author = is.Author.Username
		}
		out = append(out, queue.RepoIssue{
			Number: is.IID,
			Title:  is.Title,
			Body:   is.Description,
			Author: author,
			Labels: []string(is.Labels),
		})
	}
	return out, nil
}

func (g *GitLabForge) ListPulls(ctx context.Context, fullName, state string) ([]queue.RepoPull, error) {
	mrs, _, err := g.client.MergeRequests.ListProjectMergeRequests(fullName, &gitlab.ListProjectMergeRequestsOptions{
		State:       &state,
		ListOptions: gitlab.ListOptions{PerPage: 100},
	})
	if err != nil {
		return nil, fmt.Errorf("listing merge requests for %s: %w", fullName, err)
	}
	out := make([]queue.RepoPull, 0, len(mrs))
	for _, mr := range mrs {
		author := ""
		if mr.Author != nil {
			author = mr.Author.Username
		}
		out = append(out, queue.RepoPull{
			Number:     mr.IID,
			Title:      mr.Title,
			Author:     author,
			HeadBranch: mr.SourceBranch,
			BaseBranch: mr.TargetBranch,
			Labels:     []string(mr.Labels),
		})
	}
	return out, nil
}

func (g *GitLabForge) GetField(ctx context.Context, fullName string, number int, field string) (string, error) {
	mr, _, err := g.client.MergeRequests.GetMergeRequest(fullName, number, nil)
	if err != nil {
		return "", fmt.Errorf("getting MR %s!%d: %w", fullName, number, err)
	}
	switch field {
	case "merged":
		if mr.State == "merged" {
			return "true", nil
		}
		return "false", nil
	case "mergeable":
		if mr.MergeStatus == "" {
			return "", nil
		}
		if mr.MergeStatus == "can_be_merged" {
			return "true", nil
		}
		return "false", nil
	case "state":
		return mr.State, nil
	default:
		return "", fmt.Errorf("unsupported field %q", field)
	}
}

func (g *GitLabForge) ListIssueComments(ctx context.Context, fullName string, number int) ([]string, error) {
	notes, _, err := g.client.Notes.ListIssueNotes(fullName, number, &gitlab.ListIssueNotesOptions{
		PerPage: 100,
	})
	if err != nil {
		return nil, fmt.Errorf("listing notes on %s#%d: %w", fullName, number, err)
	}
	bodies := make([]string, 0, len(notes))
	for _, n := range notes {
		bodies = append(bodies, n.Body)
	}
	return bodies, nil
}

func (g *GitLabForge) PostComment(ctx context.Context, fullName string, number int, body string) error {
	_, _, err := g.client.Notes.CreateIssueNote(fullName, number, &gitlab.CreateIssueNoteOptions{Body: &body})
	if err != nil {
		return fmt.Errorf("posting note on %s#%d: %w", fullName, number, err)
	}
	return nil
}

func (g *GitLabForge) AddLabel(ctx context.Context, fullName string, number int, label string) error {
	labels := gitlab.LabelOptions{label}
	_, _, err := g.client.Issues.UpdateIssue(fullName, number, &gitlab.UpdateIssueOptions{AddLabels: &labels})
	if err != nil {
		return fmt.Errorf("adding label %q to %s#%d: %w", label, fullName, number, err)
	}
	return nil
}

func (g *GitLabForge) RemoveLabel(ctx context.Context, fullName string, number int, label string) error {
	labels := gitlab.LabelOptions{label}
	_, _, err := g.client.Issues.UpdateIssue(fullName, number, &gitlab.UpdateIssueOptions{RemoveLabels: &labels})
	if err != nil {
		// Idempotent: GitLab returns success even when the label was already
		// absent, but guard against transient 404s the same way GitHub's does.
		if strings.Contains(err.Error(), "404") {
			return nil
		}
		return fmt.Errorf("removing label %q from %s#%d: %w", label, fullName, number, err)
	}
	return nil
}

func (g *GitLabForge) CreateIssue(ctx context.Context, fullName, title, body string) (int, error) {
	is, _, err := g.client.Issues.CreateIssue(fullName, &gitlab.CreateIssueOptions{
		Title:       &title,
		Description: &body,
	})
	if err != nil {
		return 0, fmt.Errorf("creating issue on %s: %w", fullName, err)
	}
	return is.IID, nil
}

func (g *GitLabForge) CreatePR(ctx context.Context, opts CreatePROptions) (int, error) {
	nameWithNS := opts.Owner + "/" + opts.Repo
	mr, _, err := g.client.MergeRequests.CreateMergeRequest(nameWithNS, &gitlab.CreateMergeRequestOptions{
		Title:        &opts.Title,
		Description:  &opts.Body,
		SourceBranch: &opts.HeadBranch,
		TargetBranch: &opts.BaseBranch,
	})
	if err != nil {
		return 0, fmt.Errorf("creating MR on %s: %w", nameWithNS, err)
	}
	return mr.IID, nil
}

func (g *GitLabForge) PostReview(ctx context.Context, fullName string, number int, event ReviewEvent, body string, comments []ReviewCommentInput) error {
	switch event {
	case ReviewApprove:
		_, _, err := g.client.MergeRequestApprovals.ApproveMergeRequest(fullName, number, &gitlab.ApproveMergeRequestOptions{})
		if err != nil {
			return fmt.Errorf("approving MR %s!%d: %w", fullName, number, err)
		}
	}
	if body != "" {
		_, _, err := g.client.Notes.CreateMergeRequestNote(fullName, number, &gitlab.CreateMergeRequestNoteOptions{Body: &body})
		if err != nil {
			return fmt.Errorf("posting review note on %s!%d: %w", fullName, number, err)
		}
	}
	for _, c := range comments {
		note := fmt.Sprintf("**%s:%d** %s", c.Path, c.Line, c.Body)
		if _, _, err := g.client.Notes.CreateMergeRequestNote(fullName, number, &gitlab.CreateMergeRequestNoteOptions{Body: &note}); err != nil {
			return fmt.Errorf("posting inline note on %s!%d: %w", fullName, number, err)
		}
	}
	return nil
}

func (g *GitLabForge) MergePR(ctx context.Context, fullName string, number int) error {
	_, _, err := g.client.MergeRequests.AcceptMergeRequest(fullName, number, &gitlab.AcceptMergeRequestOptions{})
	if err != nil {
		return fmt.Errorf("merging MR %s!%d: %w", fullName, number, err)
	}
	return nil
}

func (g *GitLabForge) convertProjects(projects []*gitlab.Project) []models.Repo {
	repos := make([]models.Repo, 0, len(projects))
	host := g.host
	if host == "" {
		host = "gitlab.com"
	}
	for _, p := range projects {
		if p == nil {
			continue
		}
		parts := strings.SplitN(p.PathWithNamespace, "/", 2)
		owner, name := "", p.Name
		if len(parts) == 2 {
			owner = parts[0]
			name = parts[1]
		}
		repos = append(repos, models.Repo{
			ID:            fmt.Sprintf("%d", p.ID),
			Provider:      "gitlab",
			Host:          host,
			Owner:         owner,
			Name:          name,
			FullName:      p.PathWithNamespace,
			CloneURL:      p.HTTPURLToRepo,
			HTMLURL:       p.WebURL,
			DefaultBranch: p.DefaultBranch,
			Private:       p.Visibility == gitlab.PrivateVisibility,
			Fork:          p.ForkedFromProject != nil,
		})
	}
	return repos
}
