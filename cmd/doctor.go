package cmd

import (
	"context"
	"fmt"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/config"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/database"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Verify tools, credentials, and system health",
	Long:  `Checks that the coding agent binary is available, a forge credential is configured, and the database can be reached.`,
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	allOK := true

	fmt.Println("=== autodev doctor ===")
	fmt.Println()

	fmt.Print("Database ................. ")
	db, err := database.New(cfg.Database)
	if err != nil {
		fmt.Printf("FAIL (%s)\n", err)
		allOK = false
	} else {
		if err := db.Ping(ctx); err != nil {
			fmt.Printf("FAIL (%s)\n", err)
			allOK = false
		} else {
			fmt.Printf("OK (%s: %s)\n", db.Driver(), cfg.Database.Path)
		}
		db.Close()
	}

	fmt.Print("Agent binary .............. ")
	bin := ""
	if doctorCheckBinary(cfg.Agent.Binary) {
		bin = cfg.Agent.Binary
	} else {
		for _, fallback := range cfg.Agent.Fallback {
			if doctorCheckBinary(fallback) {
				bin = fallback
				break
			}
		}
	}
	if bin == "" {
		fmt.Println("MISSING (run 'autodev onboard' to set cfg.agent.binary)")
		allOK = false
	} else {
		fmt.Printf("OK (%s)\n", bin)
	}

	fmt.Print("Forge credentials ......... ")
	nCreds := len(cfg.Git.GitHub) + len(cfg.Git.GitLab) + len(cfg.Git.Azure)
	if nCreds == 0 {
		fmt.Println("MISSING (run 'autodev onboard')")
		allOK = false
	} else {
		fmt.Printf("OK (%d configured)\n", nCreds)
	}

	fmt.Print("Watchlist .................. ")
	if len(cfg.Repos) == 0 {
		fmt.Println("EMPTY (run 'autodev repo add <clone-url>')")
	} else {
		fmt.Printf("OK (%d repos)\n", len(cfg.Repos))
	}

	fmt.Println()
	if allOK {
		fmt.Println(successStyle.Render("All checks passed — autodev is ready."))
	} else {
		fmt.Println(warnStyle.Render("Some checks failed — run 'autodev onboard' to fix."))
	}

	return nil
}
