package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "autodev",
	Short: "Autonomous coding-agent daemon for issues and pull requests",
	Long: `autodev drives a coding agent through analyze, implement, review, and
merge over a watchlist of forge repositories — picking up issues,
opening pull requests, reviewing them, and merging once approved.

Get started:
  autodev onboard     Interactive setup wizard
  autodev doctor      Verify tools and credentials
  autodev repo add    Add a repository to the watchlist
  autodev daemon      Run the autonomous loop
  autodev gateway     Start the persistent status/admin REST API
  autodev ui          Launch the terminal dashboard`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ~/.autodev/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose/debug output")

	rootCmd.Version = Version
	rootCmd.AddCommand(
		onboardCmd,
		daemonCmd,
		gatewayCmd,
		uiCmd,
		repoCmd,
		queueCmd,
		logsCmd,
		configCmd,
		doctorCmd,
	)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	if verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
		slog.Debug("Verbose logging enabled")
	}
}
