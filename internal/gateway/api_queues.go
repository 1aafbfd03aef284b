package gateway

import "net/http"

// handleQueues reports each watched repo's phase occupancy across its
// issue/pr/merge queues, without draining anything.
func (gw *Gateway) handleQueues(w http.ResponseWriter, r *http.Request) {
	counts := gw.adapter.Queues().AllCounts()
	out := make([]RepoQueueStatus, 0, len(counts))
	for repo, c := range counts {
		status := RepoQueueStatus{
			Repo:   repo,
			Issues: make(map[string]int, len(c.Issues)),
			Prs:    make(map[string]int, len(c.Prs)),
			Merges: make(map[string]int, len(c.Merges)),
		}
		for phase, n := range c.Issues {
			status.Issues[string(phase)] = n
		}
		for phase, n := range c.Prs {
			status.Prs[string(phase)] = n
		}
		for phase, n := range c.Merges {
			status.Merges[string(phase)] = n
		}
		out = append(out, status)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleQueuesRetry forces an immediate tick. There is no per-item retry
// state to reconstruct: any item not currently mid-flight is picked back up
// by the next scan/drain pass, so "retry" just means "don't wait for the
// scan interval to elapse".
func (gw *Gateway) handleQueuesRetry(w http.ResponseWriter, r *http.Request) {
	gw.rt.Trigger()
	gw.bc.send(SSEEvent{Type: "queues.retry_triggered"})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}
