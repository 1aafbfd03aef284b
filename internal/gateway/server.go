package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/config"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/logstore"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/runtime"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/source"
)

// Gateway serves the status/admin API alongside an already-built Runtime.
// Start runs the daemon loop and the HTTP API together — it is the
// long-running form of 'autodev daemon', with a control plane attached.
type Gateway struct {
	cfg        *config.Config
	adapter    *source.Adapter
	rt         *runtime.Runtime
	logs       *logstore.Store
	forgeCount int
	bc         *Broadcaster

	startedAt time.Time
}

// New builds a Gateway over a not-yet-started Runtime/Adapter pair.
// forgeCount is reported verbatim in GET /api/status (how many forge
// credentials the daemon resolved at startup).
func New(cfg *config.Config, adapter *source.Adapter, rt *runtime.Runtime, logs *logstore.Store, forgeCount int) *Gateway {
	return &Gateway{
		cfg:        cfg,
		adapter:    adapter,
		rt:         rt,
		logs:       logs,
		forgeCount: forgeCount,
		bc:         newBroadcaster(),
		startedAt:  time.Now(),
	}
}

// Start runs the daemon loop and the HTTP API together, returning when
// either stops or ctx is cancelled.
func (gw *Gateway) Start(ctx context.Context) error {
	port := gw.cfg.Gateway.Port
	if port == 0 {
		port = 6080
	}
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           buildHandler(gw),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		slog.Info("gateway: listening", "addr", "http://"+addr)
		gw.bc.send(SSEEvent{Type: "gateway.started", Payload: map[string]string{"addr": "http://" + addr}})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
			return
		}
		errCh <- nil
	}()
	go func() {
		err := gw.rt.Run(ctx)
		gw.bc.send(SSEEvent{Type: "daemon.stopped"})
		errCh <- err
	}()

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}

	select {
	case <-ctx.Done():
		shutdown()
		return nil
	case err := <-errCh:
		shutdown()
		return err
	}
}

func (gw *Gateway) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "autodev-gateway",
		"routes":  []string{"/health", "/api/status", "/api/queues", "/api/queues/retry", "/api/logs/recent", "/events"},
	})
}

func (gw *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (gw *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := gw.bc.subscribe()
	defer gw.bc.unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case frame := <-ch:
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
