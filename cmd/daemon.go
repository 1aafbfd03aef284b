package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/agent"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/config"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/database"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/forge"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/logstore"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/notify"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/runtime"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/source"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/tasks"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/workspace"
	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the autonomous analyze/implement/review/merge loop",
	Long: `Starts the autodev daemon. Every tick it:
  1. Resolves the watchlist against each repo's forge
  2. Reconciles crash-orphaned labels back into runnable state
  3. Scans for newly-discovered issues, pull requests, and approved merges
  4. Dispatches runnable work through per-repo concurrency gates
  5. Applies each task's result back into the queue and persists its log

Configure the watchlist first with 'autodev repo add <clone-url>'.`,
	RunE: runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		fmt.Println("\nShutting down daemon gracefully...")
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

	fmt.Printf("autodev daemon starting (%d repos, %d forge credentials)\n",
		len(cfg.Repos), len(forges))
	fmt.Println("Press Ctrl+C to stop gracefully.")
	fmt.Println()
	slog.Info("daemon starting", "repos", len(cfg.Repos), "forges", len(forges))

	if err := rt.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("daemon error: %w", err)
	}

	fmt.Println("Daemon stopped.")
	return nil
}
