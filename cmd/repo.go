package cmd

import (
	"fmt"
	"strings"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/config"
	"github.com/CosmoTheDev/autodev-orchestrator/internal/workspace"
	"github.com/spf13/cobra"
)

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Manage the repository watchlist",
	Long:  `Add, remove, and list repositories the daemon drives issues/PRs for.`,
}

var repoAddCmd = &cobra.Command{
	Use:   "add <clone-url>",
	Short: "Add a repository to the watchlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cloneURL := args[0]
		owner, repo := workspace.ParseOwnerRepo(cloneURL)
		if owner == "" || repo == "" {
			return fmt.Errorf("could not parse owner/repo out of %q", cloneURL)
		}
		repoName := owner + "/" + repo
		for _, r := range cfg.Repos {
			if r.Name == repoName {
				fmt.Printf("%s is already in the watchlist\n", repoName)
				return nil
			}
		}
		cfg.Repos = append(cfg.Repos, config.RepoEntry{Name: repoName, CloneURL: cloneURL})
		cfgPath, _ := config.ConfigPath(cfgFile)
		if err := config.Save(cfg, cfgPath); err != nil {
			return err
		}
		fmt.Printf("Added %s to the watchlist\n", repoName)
		return nil
	},
}

var repoRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a repository from the watchlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		target := args[0]
		newList := make([]config.RepoEntry, 0, len(cfg.Repos))
		found := false
		for _, r := range cfg.Repos {
			if r.Name == target {
				found = true
				continue
			}
			newList = append(newList, r)
		}
		if !found {
			fmt.Printf("%s is not in the watchlist\n", target)
			return nil
		}
		cfg.Repos = newList
		cfgPath, _ := config.ConfigPath(cfgFile)
		if err := config.Save(cfg, cfgPath); err != nil {
			return err
		}
		fmt.Printf("Removed %s from the watchlist\n", target)
		return nil
	},
}

var repoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all watchlist entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if len(cfg.Repos) == 0 {
			fmt.Println("Watchlist is empty. Add repos with: autodev repo add <clone-url>")
			return nil
		}
		fmt.Println("Watchlist:")
		for _, r := range cfg.Repos {
			override := ""
			if r.ConsumerOverride != nil {
				override = " (override)"
			}
			fmt.Printf("  - %-30s %s%s\n", r.Name, strings.TrimSuffix(r.CloneURL, ".git"), override)
		}
		return nil
	},
}

func init() {
	repoCmd.AddCommand(repoAddCmd, repoRemoveCmd, repoListCmd)
}
