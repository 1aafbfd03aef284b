package cmd

import (
	"context"
	"fmt"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/config"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/database"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/logstore"
	"github.com/spf13/cobra"
)

var logsLimit int

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent consumer log rows",
	Long: `Reads consumer_logs straight from the database the daemon writes to.
Unlike 'autodev queue', this works whether or not a gateway API is running.`,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().IntVar(&logsLimit, "limit", 20, "number of most recent log rows to show")
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	store := logstore.New(db)
	entries, err := store.Recent(context.Background(), logsLimit)
	if err != nil {
		return fmt.Errorf("reading logs: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("No log entries yet.")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("[%s] %s %s %s (exit=%d, %dms)\n",
			e.StartedAt, e.QueueType, e.WorkID, e.Command, e.ExitCode, e.DurationMS)
		if e.Stderr != "" {
			fmt.Printf("    stderr: %s\n", truncate(e.Stderr, 200))
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
