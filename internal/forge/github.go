package forge

import (
	"context"
	"fmt"
	"net/url"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/config"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/queue"
	"github.com/CosmoTheDev/autodev-orchestrator/models"
	gogithub "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
)

// GitHubForge implements Forge for GitHub and GitHub Enterprise.
type GitHubForge struct {
	client *gogithub.Client
	token  string
	host   string
}

// NewGitHub creates a GitHubForge from the given configuration.
func NewGitHub(cfg config.GitHubConfig) (*GitHubForge, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	tc := oauth2.NewClient(context.Background(), ts)
	client := gogithub.NewClient(tc)

	if cfg.Host != "" && cfg.Host != "github.com" {
		base := fmt.Sprintf("https://%s/api/v3/", cfg.Host)
		upload := fmt.Sprintf("https://%s/api/uploads/", cfg.Host)
		var err error
		client, err = client.WithEnterpriseURLs(base, upload)
		if err != nil {
			return nil, fmt.Errorf("configuring GitHub enterprise URLs: %w", err)
		}
	}

	return &GitHubForge{client: client, token: cfg.Token, host: cfg.Host}, nil
}

func (g *GitHubForge) Name() string      { return "github" }
func (g *GitHubForge) AuthToken() string { return g.token }

func (g *GitHubForge) ListRepos(ctx context.Context, opts ListReposOptions) ([]models.Repo, error) {
	perPage := opts.PerPage
	if perPage == 0 {
		perPage = 100
	}
	page := opts.Page
	if page == 0 {
		page = 1
	}

	ghRepos, _, err := g.client.Repositories.List(ctx, "", &gogithub.RepositoryListOptions{
		Visibility:  opts.Visibility,
		Affiliation: opts.Affiliation,
		ListOptions: gogithub.ListOptions{PerPage: perPage, Page: page},
	})
	if err != nil {
		return nil, fmt.Errorf("listing GitHub repos: %w", err)
	}
	return g.convertRepos(ghRepos), nil
}

func (g *GitHubForge) GetRepo(ctx context.Context, owner, name string) (*models.Repo, error) {
	r, _, err := g.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("getting GitHub repo %s/%s: %w", owner, name, err)
	}
	repos := g.convertRepos([]*gogithub.Repository{r})
	return &repos[0], nil
}

func (g *GitHubForge) ForkRepo(ctx context.Context, owner, name string) (*models.Repo, error) {
	fork, _, err := g.client.Repositories.CreateFork(ctx, owner, name, nil)
	if err != nil {
		return nil, fmt.Errorf("forking %s/%s: %w", owner, name, err)
	}
	repos := g.convertRepos([]*gogithub.Repository{fork})
	return &repos[0], nil
}

func (g *GitHubForge) SearchRepos(ctx context.Context, query string) ([]models.Repo, error) {
	result, _, err := g.client.Search.Repositories(ctx, query, &gogithub.SearchOptions{
		ListOptions: gogithub.ListOptions{PerPage: 100},
	})
	if err != nil {
		return nil, fmt.Errorf("searching GitHub repos: %w", err)
	}
	return g.convertRepos(result.Repositories), nil
}

func (g *GitHubForge) ListIssues(ctx context.Context, fullName, state string) ([]queue.RepoIssue, error) {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}

	var out []queue.RepoIssue
	opts := &gogithub.IssueListByRepoOptions{
		State:       state,
		ListOptions: gogithub.ListOptions{PerPage: 100},
	}
	for {
		issues, resp, err := g.client.Issues.ListByRepo(ctx, owner, name, opts)
		if err != nil {
			return nil, fmt.Errorf("listing issues for %s: %w", fullName, err)
		}
		for _, is := range issues {
			if is.IsPullRequest() {
				continue // the issues API includes PRs; RepoPull handles those
			}
			out = append(out, queue.RepoIssue{
				Number: is.GetNumber(),
				Title:  is.GetTitle(),
				Body:   is.GetBody(),
				Author: is.GetUser().GetLogin(),
				Labels: labelNames(is.Labels),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (g *GitHubForge) ListPulls(ctx context.Context, fullName, state string) ([]queue.RepoPull, error) {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}

	var out []queue.RepoPull
	opts := &gogithub.PullRequestListOptions{
		State:       state,
		ListOptions: gogithub.ListOptions{PerPage: 100},
	}
	for {
		pulls, resp, err := g.client.PullRequests.List(ctx, owner, name, opts)
		if err != nil {
			return nil, fmt.Errorf("listing pulls for %s: %w", fullName, err)
		}
		for _, pr := range pulls {
			out = append(out, queue.RepoPull{
				Number:     pr.GetNumber(),
				Title:      pr.GetTitle(),
				Author:     pr.GetUser().GetLogin(),
				HeadBranch: pr.GetHead().GetRef(),
				BaseBranch: pr.GetBase().GetRef(),
				Labels:     labelNames(pr.Labels),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (g *GitHubForge) GetField(ctx context.Context, fullName string, number int, field string) (string, error) {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return "", err
	}
	pr, _, err := g.client.PullRequests.Get(ctx, owner, name, number)
	if err != nil {
		return "", fmt.Errorf("getting PR %s#%d: %w", fullName, number, err)
	}
	switch field {
	case "merged":
		if pr.GetMerged() {
			return "true", nil
		}
		return "false", nil
	case "mergeable":
		if pr.Mergeable == nil {
			return "", nil
		}
		if pr.GetMergeable() {
			return "true", nil
		}
		return "false", nil
	case "state":
		if pr.GetMerged() {
			return "merged", nil
		}
		return pr.GetState(), nil
	default:
		return "", fmt.Errorf("unsupported field %q", field)
	}
}

func (g *GitHubForge) ListIssueComments(ctx context.Context, fullName string, number int) ([]string, error) {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}
	comments, _, err := g.client.Issues.ListComments(ctx, owner, name, number, &gogithub.IssueListCommentsOptions{
		ListOptions: gogithub.ListOptions{PerPage: 100},
	})
	if err != nil {
		return nil, fmt.Errorf("listing comments on %s#%d: %w", fullName, number, err)
	}
	bodies := make([]string, 0, len(comments))
	for _, c := range comments {
		bodies = append(bodies, c.GetBody())
	}
	return bodies, nil
}

func (g *GitHubForge) PostComment(ctx context.Context, fullName string, number int, body string) error {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return err
	}
	_, _, err = g.client.Issues.CreateComment(ctx, owner, name, number, &gogithub.IssueComment{Body: &body})
	if err != nil {
		return fmt.Errorf("posting comment on %s#%d: %w", fullName, number, err)
	}
	return nil
}

func (g *GitHubForge) AddLabel(ctx context.Context, fullName string, number int, label string) error {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return err
	}
	_, _, err = g.client.Issues.AddLabelsToIssue(ctx, owner, name, number, []string{label})
	if err != nil {
		return fmt.Errorf("adding label %q to %s#%d: %w", label, fullName, number, err)
	}
	return nil
}

func (g *GitHubForge) RemoveLabel(ctx context.Context, fullName string, number int, label string) error {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return err
	}
	_, err = g.client.Issues.RemoveLabelForIssue(ctx, owner, name, number, label)
	if err != nil {
		// Idempotent: a 404 (label already absent) is not an error condition
		// the caller needs to react to.
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("removing label %q from %s#%d: %w", label, fullName, number, err)
	}
	return nil
}

func (g *GitHubForge) CreateIssue(ctx context.Context, fullName, title, body string) (int, error) {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return 0, err
	}
	is, _, err := g.client.Issues.Create(ctx, owner, name, &gogithub.IssueRequest{
		Title: &title,
		Body:  &body,
	})
	if err != nil {
		return 0, fmt.Errorf("creating issue on %s: %w", fullName, err)
	}
	return is.GetNumber(), nil
}

func (g *GitHubForge) CreatePR(ctx context.Context, opts CreatePROptions) (int, error) {
	pr, _, err := g.client.PullRequests.Create(ctx, opts.Owner, opts.Repo, &gogithub.NewPullRequest{
		Title:               gogithub.Ptr(opts.Title),
		Body:                gogithub.Ptr(opts.Body),
		Head:                gogithub.Ptr(opts.HeadBranch),
		Base:                gogithub.Ptr(opts.BaseBranch),
		Draft:               gogithub.Ptr(opts.Draft),
		MaintainerCanModify: gogithub.Ptr(true),
	})
	if err != nil {
		return 0, fmt.Errorf("creating PR on %s/%s: %w", opts.Owner, opts.Repo, err)
	}
	return pr.GetNumber(), nil
}

func (g *GitHubForge) PostReview(ctx context.Context, fullName string, number int, event ReviewEvent, body string, comments []ReviewCommentInput) error {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return err
	}
	req := &gogithub.PullRequestReviewRequest{
		Body:  &body,
		Event: gogithub.Ptr(string(event)),
	}
	for _, c := range comments {
		req.Comments = append(req.Comments, &gogithub.DraftReviewComment{
			Path: gogithub.Ptr(c.Path),
			Body: gogithub.Ptr(c.Body),
			Line: gogithub.Ptr(c.Line),
		})
	}
	_, _, err = g.client.PullRequests.CreateReview(ctx, owner, name, number, req)
	if err != nil {
		return fmt.Errorf("posting review on %s#%d: %w", fullName, number, err)
	}
	return nil
}

func (g *GitHubForge) MergePR(ctx context.Context, fullName string, number int) error {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return err
	}
	_, _, err = g.client.PullRequests.Merge(ctx, owner, name, number, "", &gogithub.PullRequestOptions{MergeMethod: "squash"})
	if err != nil {
		return fmt.Errorf("merging PR %s#%d: %w", fullName, number, err)
	}
	return nil
}

func (g *GitHubForge) convertRepos(ghRepos []*gogithub.Repository) []models.Repo {
	repos := make([]models.Repo, 0, len(ghRepos))
	for _, r := range ghRepos {
		if r == nil {
			continue
		}
		cloneURL := r.GetCloneURL()
		if cloneURL == "" {
			cloneURL = r.GetSSHURL()
		}
		host := g.host
		if host == "" {
			host = "github.com"
		}
		if u, err := url.Parse(cloneURL); err == nil && u.Host != "" {
			host = u.Host
		}
		repos = append(repos, models.Repo{
			ID:            fmt.Sprintf("%d", r.GetID()),
			Provider:      "github",
			Host:          host,
			Owner:         r.GetOwner().GetLogin(),
			Name:          r.GetName(),
			FullName:      r.GetFullName(),
			CloneURL:      cloneURL,
			HTMLURL:       r.GetHTMLURL(),
			DefaultBranch: r.GetDefaultBranch(),
			Private:       r.GetPrivate(),
			Fork:          r.GetFork(),
		})
	}
	return repos
}

func labelNames(labels []*gogithub.Label) []string {
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, l.GetName())
	}
	return names
}

func splitFullName(fullName string) (owner, name string, err error) {
	for i := 0; i < len(fullName); i++ {
		if fullName[i] == '/' {
			return fullName[:i], fullName[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("invalid repo full name %q, expected owner/repo", fullName)
}

func isNotFound(err error) bool {
	if ghErr, ok := err.(*gogithub.ErrorResponse); ok {
		return ghErr.Response != nil && ghErr.Response.StatusCode == 404
	}
	return false
}
