package gateway

import (
	"net/http"
	"time"
)

func (gw *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DaemonStatus{
		Running:       true,
		Repos:         len(gw.cfg.Repos),
		Forges:        gw.forgeCount,
		UptimeSeconds: int64(time.Since(gw.startedAt).Seconds()),
	})
}

func (gw *Gateway) handleLogsRecent(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n := parsePositiveInt(raw); n > 0 {
			limit = n
		}
	}
	entries, err := gw.logs.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func parsePositiveInt(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
