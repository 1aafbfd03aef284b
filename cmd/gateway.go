package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/agent"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/config"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/database"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/forge"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/gateway"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/logstore"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/notify"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/runtime"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/source"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/tasks"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/workspace"
	"github.com/spf13/cobra"
)

var gatewayPort int

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run the daemon loop with a status/admin REST API attached",
	Long: `Starts the same analyze/implement/review/merge loop as 'autodev daemon',
plus a local HTTP API (default: http://127.0.0.1:6080):

  GET  /health              liveness check
  GET  /api/status          repo/forge counts, uptime
  GET  /api/queues          per-repo phase occupancy
  POST /api/queues/retry    force an immediate tick
  GET  /api/logs/recent     most recent consumer log rows
  GET  /events              SSE stream of daemon/queue events

Unlike 'autodev daemon', the gateway keeps a control surface attached so
another process or script can check on it while it runs.`,
	RunE: runGateway,
}

func init() {
	gatewayCmd.Flags().IntVar(&gatewayPort, "port", 0,
		"HTTP port to listen on (default 6080, overrides config)")
}

func runGateway(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		fmt.Println("\nShutting down gateway gracefully...")
		cancel()
	}()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if len(cfg.Repos) == 0 {
		fmt.Println(warnStyle.Render("  No repositories configured."))
		fmt.Println(dimStyle.Render("  Run 'autodev repo add <clone-url>' first."))
		return nil
	}
	if gatewayPort > 0 {
		cfg.Gateway.Port = gatewayPort
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 6080
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	forges, err := forge.NewAll(cfg)
	if err != nil {
		return fmt.Errorf("building forge clients: %w", err)
	}
	if len(forges) == 0 {
		return fmt.Errorf("no forge credentials configured; run 'autodev onboard'")
	}

	workspacesDir, err := config.WorkspacesPath()
	if err != nil {
		return fmt.Errorf("resolving workspaces path: %w", err)
	}
	ws, err := workspace.NewManager(workspacesDir)
	if err != nil {
		return fmt.Errorf("creating workspace manager: %w", err)
	}

	loader := config.NewLoader(cfg)
	adapter := source.NewAdapter(cfg, loader, ws, forges)

	deps := tasks.Deps{
		Forge:     forges[0],
		Agent:     agent.NewRunner(cfg.Agent),
		Workspace: ws,
	}

	logs := logstore.New(db)
	notifier := notify.NewDispatcher(cfg.Notify)
	rt := runtime.New(adapter, deps, forges, logs, notifier)
	gw := gateway.New(cfg, adapter, rt, logs, len(forges))

	fmt.Printf("autodev gateway starting (%d repos, %d forge credentials)\n", len(cfg.Repos), len(forges))
	fmt.Printf("  API    : http://127.0.0.1:%d\n", cfg.Gateway.Port)
	fmt.Printf("  Events : http://127.0.0.1:%d/events\n\n", cfg.Gateway.Port)
	fmt.Println("Press Ctrl+C to stop gracefully.")

	return gw.Start(ctx)
}
