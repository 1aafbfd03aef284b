package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/config"
	"github.com/spf13/cobra"
)

var queueURL string

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect or nudge the running daemon's queues",
	Long: `Talks to an already-running 'autodev gateway' over its status API.
Queue state only exists inside that process, so these subcommands have
nothing to report if only 'autodev daemon' (no API) is running.`,
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show per-repo phase occupancy",
	RunE: func(cmd *cobra.Command, args []string) error {
		var repos []struct {
			Repo   string         `json:"repo"`
			Issues map[string]int `json:"issues"`
			Prs    map[string]int `json:"prs"`
			Merges map[string]int `json:"merges"`
		}
		if err := fetchJSON(queueBaseURL()+"/api/queues", &repos); err != nil {
			return err
		}
		if len(repos) == 0 {
			fmt.Println("No queued work.")
			return nil
		}
		for _, r := range repos {
			fmt.Printf("%s\n", r.Repo)
			printPhaseCounts("  issues", r.Issues)
			printPhaseCounts("  prs", r.Prs)
			printPhaseCounts("  merges", r.Merges)
		}
		return nil
	},
}

var queueRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Force an immediate tick instead of waiting for the scan interval",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := http.NewRequest(http.MethodPost, queueBaseURL()+"/api/queues/retry", nil)
		if err != nil {
			return err
		}
		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("contacting gateway at %s: %w", queueBaseURL(), err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return fmt.Errorf("gateway returned %s", resp.Status)
		}
		fmt.Println("Triggered an immediate tick.")
		return nil
	},
}

func init() {
	queueCmd.PersistentFlags().StringVar(&queueURL, "url", "",
		"gateway base URL (default: http://127.0.0.1:<gateway.port or 6080>)")
	queueCmd.AddCommand(queueListCmd, queueRetryCmd)
}

func printPhaseCounts(label string, phases map[string]int) {
	if len(phases) == 0 {
		return
	}
	fmt.Printf("%s:", label)
	for phase, n := range phases {
		fmt.Printf(" %s=%d", phase, n)
	}
	fmt.Println()
}

func queueBaseURL() string {
	if queueURL != "" {
		return queueURL
	}
	port := 6080
	if cfg, err := config.Load(cfgFile); err == nil && cfg.Gateway.Port > 0 {
		port = cfg.Gateway.Port
	}
	return fmt.Sprintf("http://127.0.0.1:%d", port)
}

func fetchJSON(url string, v any) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("contacting gateway at %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("gateway returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
