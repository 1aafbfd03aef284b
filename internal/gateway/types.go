package gateway

// SSEEvent is serialised as JSON and pushed over the GET /events SSE stream.
type SSEEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// DaemonStatus is a live snapshot of the runtime loop.
type DaemonStatus struct {
	Running       bool   `json:"running"`
	Repos         int    `json:"repos"`
	Forges        int    `json:"forges"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	LastTriggerAt string `json:"last_trigger_at,omitempty"`
}

// RepoQueueStatus reports one repo's phase occupancy.
type RepoQueueStatus struct {
	Repo   string         `json:"repo"`
	Issues map[string]int `json:"issues,omitempty"`
	Prs    map[string]int `json:"prs,omitempty"`
	Merges map[string]int `json:"merges,omitempty"`
}
