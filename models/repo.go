package models

// Repo represents a source-code repository from any forge, as returned by
// the forge adapter's identity-listing calls.
type Repo struct {
	ID            string `json:"id"`
	Provider      string `json:"provider"` // github | gitlab | azure
	Host          string `json:"host"`     // github.com | gitlab.com | dev.azure.com
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"` // owner/name
	CloneURL      string `json:"clone_url"`
	HTMLURL       string `json:"html_url"`
	DefaultBranch string `json:"default_branch"`
	Private       bool   `json:"private"`
	Fork          bool   `json:"fork"`
}
