package config

// Config is the root configuration structure for autodev.
// Serialised to ~/.autodev/config.json.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" json:"database"`
	Agent    AgentConfig    `mapstructure:"agent"    json:"agent"`
	Git      GitConfig      `mapstructure:"git"      json:"git"`
	Consumer ConsumerConfig `mapstructure:"consumer" json:"consumer"`
	Workflow WorkflowConfig `mapstructure:"workflow" json:"workflow"`
	Develop  DevelopConfig  `mapstructure:"develop"  json:"develop"`
	Gateway  GatewayConfig  `mapstructure:"gateway"  json:"gateway"`
	Notify   NotifyConfig   `mapstructure:"notify"   json:"notify"`
	// Repos is the set of enabled repositories, administered via `autodev repo`.
	Repos []RepoEntry `mapstructure:"repos" json:"repos"`
}

// RepoEntry identifies one enabled repository and its clone URL.
type RepoEntry struct {
	Name     string `mapstructure:"name"      json:"name"`
	CloneURL string `mapstructure:"clone_url" json:"clone_url"`
	// ConsumerOverride optionally overrides process defaults without a
	// .develop-workflow.yaml file in the repo itself.
	ConsumerOverride *ConsumerConfig `mapstructure:"consumer_override,omitempty" json:"consumer_override,omitempty"`
}

// DatabaseConfig controls the storage backend.
type DatabaseConfig struct {
	// Driver is "sqlite" (default) or "mysql".
	Driver string `mapstructure:"driver" json:"driver"`
	// Path is the SQLite file path (expanded at runtime).
	Path string `mapstructure:"path" json:"path"`
	// DSN is the MySQL data source name (used when Driver == "mysql").
	DSN string `mapstructure:"dsn" json:"dsn"`
}

// AgentConfig controls the external coding-agent subprocess.
type AgentConfig struct {
	// Binary is the executable invoked for every session (e.g. "claude").
	Binary string `mapstructure:"binary" json:"binary"`
	// Fallback is an ordered list of binaries to try if Binary is unavailable.
	Fallback []string `mapstructure:"fallback" json:"fallback"`
	// Timeout bounds a single agent invocation's wall clock, in seconds.
	TimeoutSeconds int `mapstructure:"timeout_seconds" json:"timeout_seconds"`
	// SystemPrompt is appended to every session regardless of phase.
	SystemPrompt string `mapstructure:"system_prompt" json:"system_prompt"`
}

// GitConfig holds credentials for each supported forge.
type GitConfig struct {
	GitHub []GitHubConfig `mapstructure:"github" json:"github"`
	GitLab []GitLabConfig `mapstructure:"gitlab" json:"gitlab"`
	Azure  []AzureConfig  `mapstructure:"azure"  json:"azure"`
}

// GitHubConfig holds credentials for a single GitHub instance.
type GitHubConfig struct {
	Token string `mapstructure:"token" json:"token"`
	// Host allows enterprise GitHub (e.g. github.mycompany.com).
	Host string `mapstructure:"host" json:"host"`
}

// GitLabConfig holds credentials for a single GitLab instance.
type GitLabConfig struct {
	Token string `mapstructure:"token" json:"token"`
	Host  string `mapstructure:"host"  json:"host"`
}

// AzureConfig holds credentials for an Azure DevOps organisation.
type AzureConfig struct {
	Token string `mapstructure:"token" json:"token"`
	Org   string `mapstructure:"org"   json:"org"`
	Host  string `mapstructure:"host"  json:"host"`
}

// ConsumerConfig is the per-repo-overridable section. These are
// the values the process-level defaults carry and a repo's
// .develop-workflow.yaml may override.
type ConsumerConfig struct {
	// ScanIntervalSecs is the minimum interval between scans of one repo.
	ScanIntervalSecs int `mapstructure:"scan_interval_secs" json:"scan_interval_secs"`
	// IssueConcurrency/PrConcurrency/MergeConcurrency cap in-flight tasks per kind, per repo.
	IssueConcurrency int `mapstructure:"issue_concurrency" json:"issue_concurrency"`
	PrConcurrency    int `mapstructure:"pr_concurrency"    json:"pr_concurrency"`
	MergeConcurrency int `mapstructure:"merge_concurrency" json:"merge_concurrency"`
	// ScanTargets is a subset of {issues, pulls, merges}.
	ScanTargets []string `mapstructure:"scan_targets" json:"scan_targets"`
	// FilterLabels is a whitelist intersected with an item's label set; empty means any.
	FilterLabels []string `mapstructure:"filter_labels" json:"filter_labels"`
	// IgnoreAuthors excludes issues/PRs authored by these logins.
	IgnoreAuthors []string `mapstructure:"ignore_authors" json:"ignore_authors"`
	// ConfidenceThreshold gates analysis verdicts below this score to skip (typical 0.7).
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" json:"confidence_threshold"`
	// KnowledgeExtraction enables the best-effort Extracting phase after a PR is approved.
	KnowledgeExtraction bool `mapstructure:"knowledge_extraction" json:"knowledge_extraction"`
	// GhHost overrides the forge host for this repo (e.g. a GitHub Enterprise host).
	GhHost string `mapstructure:"gh_host" json:"gh_host"`
	// AutoMerge enables the merge queue's scan_merges target.
	AutoMerge bool `mapstructure:"auto_merge" json:"auto_merge"`
}

// WorkflowConfig holds system-prompt fragments appended per phase kind.
type WorkflowConfig struct {
	Issue string `mapstructure:"issue" json:"issue"`
	Pr    string `mapstructure:"pr"    json:"pr"`
}

// DevelopConfig mirrors the overlay file's develop.* namespace.
type DevelopConfig struct {
	Review ReviewConfig `mapstructure:"review" json:"review"`
}

// ReviewConfig bounds the PR re-review loop.
type ReviewConfig struct {
	// MaxIterations is the re-review cap (default 3).
	MaxIterations int `mapstructure:"max_iterations" json:"max_iterations"`
}

// GatewayConfig controls the optional read-only status/admin REST API.
type GatewayConfig struct {
	// Port is the localhost HTTP port the gateway listens on (default: 6080).
	Port int `mapstructure:"port" json:"port"`
}

// NotifyConfig controls outbound push notifications on terminal transitions.
type NotifyConfig struct {
	Slack    SlackNotifyConfig    `mapstructure:"slack"    json:"slack"`
	Telegram TelegramNotifyConfig `mapstructure:"telegram" json:"telegram"`
	Email    EmailNotifyConfig    `mapstructure:"email"    json:"email"`
	Webhook  WebhookNotifyConfig  `mapstructure:"webhook"  json:"webhook"`
	// Events is the explicit list of event types to notify on.
	// Empty means use defaults: task_done, task_skip, task_failed.
	Events []string `mapstructure:"events" json:"events"`
}

// SlackNotifyConfig holds the Slack incoming webhook URL.
type SlackNotifyConfig struct {
	WebhookURL string `mapstructure:"webhook_url" json:"webhook_url"`
}

// TelegramNotifyConfig holds Telegram Bot API credentials.
type TelegramNotifyConfig struct {
	BotToken string `mapstructure:"bot_token" json:"bot_token"`
	ChatID   string `mapstructure:"chat_id"   json:"chat_id"`
}

// EmailNotifyConfig holds SMTP settings for email notifications.
type EmailNotifyConfig struct {
	SMTPHost string `mapstructure:"smtp_host" json:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port" json:"smtp_port"`
	Username string `mapstructure:"username"  json:"username"`
	Password string `mapstructure:"password"  json:"password"` // #nosec G101 -- config field, not a hardcoded credential
	From     string `mapstructure:"from"      json:"from"`
	To       string `mapstructure:"to"        json:"to"`
	UseTLS   bool   `mapstructure:"use_tls"   json:"use_tls"`
}

// WebhookNotifyConfig holds generic HTTP webhook settings.
type WebhookNotifyConfig struct {
	URL    string `mapstructure:"url"    json:"url"`
	Secret string `mapstructure:"secret" json:"secret"` // HMAC-SHA256 signing key // #nosec G101 -- config field, not a hardcoded credential
}
