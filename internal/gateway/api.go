package gateway

import "net/http"

// buildHandler wires all REST and SSE routes onto a new ServeMux.
// Uses Go 1.22+ method-prefixed patterns ("GET /path", "POST /path").
func buildHandler(gw *Gateway) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /", gw.handleRoot)
	mux.HandleFunc("GET /health", gw.handleHealth)

	mux.HandleFunc("GET /api/status", gw.handleStatus)
	mux.HandleFunc("GET /api/queues", gw.handleQueues)
	mux.HandleFunc("POST /api/queues/retry", gw.handleQueuesRetry)
	mux.HandleFunc("GET /api/logs/recent", gw.handleLogsRecent)

	mux.HandleFunc("GET /events", gw.handleEvents)

	return mux
}
