package forge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/config"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/queue"
	"github.com/CosmoTheDev/autodev-orchestrator/models"
)

// AzureDevOpsForge implements Forge for Azure DevOps. No maintained Go
// client for Azure DevOps exists among the available dependencies, so
// this talks to the REST API v7.1 directly over net/http; issues map onto
// Azure Boards work items of type "Issue".
type AzureDevOpsForge struct {
	token  string
	org    string
	host   string
	client *http.Client
}

// NewAzureDevOps creates an AzureDevOpsForge.
func NewAzureDevOps(cfg config.AzureConfig) (*AzureDevOpsForge, error) {
	if cfg.Org == "" {
		return nil, fmt.Errorf("azure DevOps organisation name is required")
	}
	host := cfg.Host
	if host == "" {
		host = "dev.azure.com"
	}
	return &AzureDevOpsForge{
		token:  cfg.Token,
		org:    cfg.Org,
		host:   host,
		client: &http.Client{},
	}, nil
}

func (a *AzureDevOpsForge) Name() string      { return "azure" }
func (a *AzureDevOpsForge) AuthToken() string { return a.token }

func (a *AzureDevOpsForge) baseURL() string {
	return fmt.Sprintf("https://%s/%s", a.host, a.org)
}

func (a *AzureDevOpsForge) do(ctx context.Context, method, urlStr string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth("", a.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req) // #nosec G704 -- URL is built from admin-supplied config, not user input
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("azure DevOps API error %d: %s", resp.StatusCode, string(data))
	}
	return data, nil
}

func (a *AzureDevOpsForge) ListRepos(ctx context.Context, opts ListReposOptions) ([]models.Repo, error) {
	projectsURL := fmt.Sprintf("%s/_apis/projects?api-version=7.1", a.baseURL())
	data, err := a.do(ctx, http.MethodGet, projectsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("listing Azure DevOps projects: %w", err)
	}

	var projectsResp struct {
		Value []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"value"`
	}
	if err := json.Unmarshal(data, &projectsResp); err != nil {
		return nil, fmt.Errorf("parsing projects response: %w", err)
	}

	var allRepos []models.Repo
	for _, proj := range projectsResp.Value {
		reposURL := fmt.Sprintf("%s/%s/_apis/git/repositories?api-version=7.1", a.baseURL(), proj.Name)
		repoData, err := a.do(ctx, http.MethodGet, reposURL, nil)
		if err != nil {
			continue // non-fatal per project
		}
		var reposResp struct {
			Value []struct {
				ID            string `json:"id"`
				Name          string `json:"name"`
				RemoteURL     string `json:"remoteUrl"`
				WebURL        string `json:"webUrl"`
				DefaultBranch string `json:"defaultBranch"`
			} `json:"value"`
		}
		if err := json.Unmarshal(repoData, &reposResp); err != nil {
			continue
		}
		for _, r := range reposResp.Value {
			branch := strings.TrimPrefix(r.DefaultBranch, "refs/heads/")
			allRepos = append(allRepos, models.Repo{
				ID:            r.ID,
				Provider:      "azure",
				Host:          a.host,
				Owner:         a.org + "/" + proj.Name,
				Name:          r.Name,
				FullName:      a.org + "/" + proj.Name + "/" + r.Name,
				CloneURL:      r.RemoteURL,
				HTMLURL:       r.WebURL,
				DefaultBranch: branch,
			})
		}
	}
	return allRepos, nil
}

func (a *AzureDevOpsForge) GetRepo(ctx context.Context, owner, name string) (*models.Repo, error) {
	parts := strings.SplitN(owner, "/", 2)
	project := parts[len(parts)-1]
	urlStr := fmt.Sprintf("%s/%s/_apis/git/repositories/%s?api-version=7.1", a.baseURL(), project, name)
	data, err := a.do(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("getting Azure DevOps repo: %w", err)
	}
	var r struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		RemoteURL     string `json:"remoteUrl"`
		WebURL        string `json:"webUrl"`
		DefaultBranch string `json:"defaultBranch"`
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	branch := strings.TrimPrefix(r.DefaultBranch, "refs/heads/")
	return &models.Repo{
		ID:            r.ID,
		Provider:      "azure",
		Host:          a.host,
		Owner:         owner,
		Name:          r.Name,
		FullName:      owner + "/" + r.Name,
		CloneURL:      r.RemoteURL,
		HTMLURL:       r.WebURL,
		DefaultBranch: branch,
	}, nil
}

// ForkRepo is not supported in Azure DevOps.
func (a *AzureDevOpsForge) ForkRepo(ctx context.Context, owner, name string) (*models.Repo, error) {
	return nil, fmt.Errorf("forking is not supported in Azure DevOps; clone the repo directly")
}

func (a *AzureDevOpsForge) SearchRepos(ctx context.Context, query string) ([]models.Repo, error) {
	all, err := a.ListRepos(ctx, ListReposOptions{})
	if err != nil {
		return nil, err
	}
	var results []models.Repo
	lower := strings.ToLower(query)
	for _, r := range all {
		if strings.Contains(strings.ToLower(r.Name), lower) || strings.Contains(strings.ToLower(r.FullName), lower) {
			results = append(results, r)
		}
	}
	return results, nil
}

func (a *AzureDevOpsForge) projectFromFullName(fullName string) (project, repo string) {
	parts := strings.Split(fullName, "/")
	if len(parts) < 2 {
		return "", fullName
	}
	return parts[len(parts)-2], parts[len(parts)-1]
}

// ListIssues queries Azure Boards work items of type "Issue" via WIQL.
func (a *AzureDevOpsForge) ListIssues(ctx context.Context, fullName, state string) ([]queue.RepoIssue, error) {
	project, _ := a.projectFromFullName(fullName)
	wiql := fmt.Sprintf(`{"query": "Select [System.Id], [System.Title], [System.Description], [System.CreatedBy] From WorkItems Where [System.TeamProject] = '%s' And [System.WorkItemType] = 'Issue' And [System.State] <> 'Closed'"}`, project)
	urlStr := fmt.Sprintf("%s/%s/_apis/wit/wiql?api-version=7.1", a.baseURL(), project)
	data, err := a.do(ctx, http.MethodPost, urlStr, strings.NewReader(wiql))
	if err != nil {
		return nil, fmt.Errorf("querying work items for %s: %w", fullName, err)
	}
	var wiqlResp struct {
		WorkItems []struct {
			ID int `json:"id"`
		} `json:"workItems"`
	}
	if err := json.Unmarshal(data, &wiqlResp); err != nil {
		return nil, fmt.Errorf("parsing WIQL response: %w", err)
	}
	issues := make([]queue.RepoIssue, 0, len(wiqlResp.WorkItems))
	for _, wi := range wiqlResp.WorkItems {
		itemURL := fmt.Sprintf("%s/%s/_apis/wit/workitems/%d?api-version=7.1", a.baseURL(), project, wi.ID)
		itemData, err := a.do(ctx, http.MethodGet, itemURL, nil)
		if err != nil {
			continue
		}
		var item struct {
			ID     int `json:"id"`
			Fields struct {
				Title       string `json:"System.Title"`
				Description string `json:"System.Description"`
				CreatedBy   struct {
					DisplayName string `json:"displayName"`
				} `json:"System.CreatedBy"`
				Tags string `json:"System.Tags"`
			} `json:"fields"`
		}
		if err := json.Unmarshal(itemData, &item); err != nil {
			continue
		}
		var labels []string
		if item.Fields.Tags != "" {
			for _, t := range strings.Split(item.Fields.Tags, ";") {
				labels = append(labels, strings.TrimSpace(t))
			}
		}
		issues = append(issues, queue.RepoIssue{
			Number: item.ID,
			Title:  item.Fields.Title,
			Body:   item.Fields.Description,
			Author: item.Fields.CreatedBy.DisplayName,
			Labels: labels,
		})
	}
	return issues, nil
}

func (a *AzureDevOpsForge) ListPulls(ctx context.Context, fullName, state string) ([]queue.RepoPull, error) {
	project, repo := a.projectFromFullName(fullName)
	status := "active"
	if state == "closed" {
		status = "completed"
	}
	urlStr := fmt.Sprintf("%s/%s/_apis/git/repositories/%s/pullrequests?searchCriteria.status=%s&api-version=7.1",
		a.baseURL(), project, repo, status)
	data, err := a.do(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("listing pull requests for %s: %w", fullName, err)
	}
	var prResp struct {
		Value []struct {
			PullRequestID int    `json:"pullRequestId"`
			Title         string `json:"title"`
			SourceRefName string `json:"sourceRefName"`
			TargetRefName string `json:"targetRefName"`
			CreatedBy     struct {
				DisplayName string `json:"displayName"`
			} `json:"createdBy"`
			Labels []struct {
				Name string `json:"name"`
			} `json:"labels"`
		} `json:"value"`
	}
	if err := json.Unmarshal(data, &prResp); err != nil {
		return nil, fmt.Errorf("parsing pull requests response: %w", err)
	}
	pulls := make([]queue.RepoPull, 0, len(prResp.Value))
	for _, pr := range prResp.Value {
		var labels []string
		for _, l := range pr.Labels {
			labels = append(labels, l.Name)
		}
		pulls = append(pulls, queue.RepoPull{
			Number:     pr.PullRequestID,
			Title:      pr.Title,
			Author:     pr.CreatedBy.DisplayName,
			HeadBranch: strings.TrimPrefix(pr.SourceRefName, "refs/heads/"),
			BaseBranch: strings.TrimPrefix(pr.TargetRefName, "refs/heads/"),
			Labels:     labels,
		})
	}
	return pulls, nil
}

func (a *AzureDevOpsForge) GetField(ctx context.Context, fullName string, number int, field string) (string, error) {
	project, repo := a.projectFromFullName(fullName)
	urlStr := fmt.Sprintf("%s/%s/_apis/git/repositories/%s/pullrequests/%d?api-version=7.1",
		a.baseURL(), project, repo, number)
	data, err := a.do(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return "", fmt.Errorf("getting PR %s!%d: %w", fullName, number, err)
	}
	var pr struct {
		Status         string `json:"status"`
		MergeStatus    string `json:"mergeStatus"`
		LastMergeCommit struct {
			CommitID string `json:"commitId"`
		} `json:"lastMergeCommit"`
	}
	if err := json.Unmarshal(data, &pr); err != nil {
		return "", err
	}
	switch field {
	case "merged":
		if pr.Status == "completed" {
			return "true", nil
		}
		return "false", nil
	case "mergeable":
		if pr.MergeStatus == "succeeded" {
			return "true", nil
		}
		return "false", nil
	case "state":
		return pr.Status, nil
	default:
		return "", fmt.Errorf("unsupported field %q", field)
	}
}

func (a *AzureDevOpsForge) ListIssueComments(ctx context.Context, fullName string, number int) ([]string, error) {
	project, repo := a.projectFromFullName(fullName)
	urlStr := fmt.Sprintf("%s/%s/_apis/git/repositories/%s/pullrequests/%d/threads?api-version=7.1",
		a.baseURL(), project, repo, number)
	data, err := a.do(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("listing threads on %s!%d: %w", fullName, number, err)
	}
	var threadsResp struct {
		Value []struct {
			Comments []struct {
				Content string `json:"content"`
			} `json:"comments"`
		} `json:"value"`
	}
	if err := json.Unmarshal(data, &threadsResp); err != nil {
		return nil, err
	}
	var bodies []string
	for _, t := range threadsResp.Value {
		for _, c := range t.Comments {
			bodies = append(bodies, c.Content)
		}
	}
	return bodies, nil
}

func (a *AzureDevOpsForge) PostComment(ctx context.Context, fullName string, number int, body string) error {
	project, repo := a.projectFromFullName(fullName)
	payload, err := json.Marshal(struct {
		Comments []struct {
			Content string `json:"content"`
		} `json:"comments"`
	}{Comments: []struct {
		Content string `json:"content"`
	}{{Content: body}}})
	if err != nil {
		return err
	}
	urlStr := fmt.Sprintf("%s/%s/_apis/git/repositories/%s/pullrequests/%d/threads?api-version=7.1",
		a.baseURL(), project, repo, number)
	_, err = a.do(ctx, http.MethodPost, urlStr, strings.NewReader(string(payload)))
	if err != nil {
		return fmt.Errorf("posting comment on %s!%d: %w", fullName, number, err)
	}
	return nil
}

// AddLabel adds a tag to an Azure DevOps pull request.
func (a *AzureDevOpsForge) AddLabel(ctx context.Context, fullName string, number int, label string) error {
	project, repo := a.projectFromFullName(fullName)
	payload := fmt.Sprintf(`{"name": %q}`, label)
	urlStr := fmt.Sprintf("%s/%s/_apis/git/repositories/%s/pullrequests/%d/labels?api-version=7.1",
		a.baseURL(), project, repo, number)
	_, err := a.do(ctx, http.MethodPost, urlStr, strings.NewReader(payload))
	if err != nil {
		return fmt.Errorf("adding label %q to %s!%d: %w", label, fullName, number, err)
	}
	return nil
}

func (a *AzureDevOpsForge) RemoveLabel(ctx context.Context, fullName string, number int, label string) error {
	project, repo := a.projectFromFullName(fullName)
	urlStr := fmt.Sprintf("%s/%s/_apis/git/repositories/%s/pullrequests/%d/labels/%s?api-version=7.1",
		a.baseURL(), project, repo, number, label)
	_, err := a.do(ctx, http.MethodDelete, urlStr, nil)
	if err != nil {
		if strings.Contains(err.Error(), "404") {
			return nil
		}
		return fmt.Errorf("removing label %q from %s!%d: %w", label, fullName, number, err)
	}
	return nil
}

// CreateIssue opens a Boards work item of type "Issue".
func (a *AzureDevOpsForge) CreateIssue(ctx context.Context, fullName, title, body string) (int, error) {
	project, _ := a.projectFromFullName(fullName)
	payload := fmt.Sprintf(`[{"op": "add", "path": "/fields/System.Title", "value": %q}, {"op": "add", "path": "/fields/System.Description", "value": %q}]`, title, body)
	urlStr := fmt.Sprintf("%s/%s/_apis/wit/workitems/$Issue?api-version=7.1", a.baseURL(), project)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, urlStr, strings.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.SetBasicAuth("", a.token)
	req.Header.Set("Content-Type", "application/json-patch+json")
	resp, err := a.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("creating work item on %s: %d: %s", fullName, resp.StatusCode, string(data))
	}
	var item struct {
		ID int `json:"id"`
	}
	if err := json.Unmarshal(data, &item); err != nil {
		return 0, err
	}
	return item.ID, nil
}

func (a *AzureDevOpsForge) CreatePR(ctx context.Context, opts CreatePROptions) (int, error) {
	parts := strings.SplitN(opts.Owner, "/", 2)
	project := parts[len(parts)-1]

	body := fmt.Sprintf(`{
		"title": %q,
		"description": %q,
		"sourceRefName": "refs/heads/%s",
		"targetRefName": "refs/heads/%s"
	}`, opts.Title, opts.Body, opts.HeadBranch, opts.BaseBranch)

	urlStr := fmt.Sprintf("%s/%s/_apis/git/repositories/%s/pullrequests?api-version=7.1",
		a.baseURL(), project, opts.Repo)
	data, err := a.do(ctx, http.MethodPost, urlStr, strings.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("creating Azure DevOps PR: %w", err)
	}

	var pr struct {
		PullRequestID int `json:"pullRequestId"`
	}
	if err := json.Unmarshal(data, &pr); err != nil {
		return 0, err
	}
	return pr.PullRequestID, nil
}

// MergePR completes an Azure DevOps pull request with squash merge.
func (a *AzureDevOpsForge) MergePR(ctx context.Context, fullName string, number int) error {
	project, repo := a.projectFromFullName(fullName)
	body := `{"status": "completed", "lastMergeSourceCommit": null, "completionOptions": {"squashMerge": true, "deleteSourceBranch": true}}`
	urlStr := fmt.Sprintf("%s/%s/_apis/git/repositories/%s/pullrequests/%d?api-version=7.1",
		a.baseURL(), project, repo, number)
	_, err := a.do(ctx, http.MethodPatch, urlStr, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("merging PR %s!%d: %w", fullName, number, err)
	}
	return nil
}

// PostReview posts the body text and each inline comment as pull-request
// comment threads. The review event is not used: no reviewer vote
// (approve or reject) is cast.
func (a *AzureDevOpsForge) PostReview(ctx context.Context, fullName string, number int, event ReviewEvent, body string, comments []ReviewCommentInput) error {
	if body != "" {
		if err := a.PostComment(ctx, fullName, number, body); err != nil {
			return err
		}
	}
	for _, c := range comments {
		if err := a.PostComment(ctx, fullName, number, fmt.Sprintf("**%s:%d** %s", c.Path, c.Line, c.Body)); err != nil {
			return err
		}
	}
	return nil
}
