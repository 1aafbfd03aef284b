package cmd

import (
	"fmt"
	"os/exec"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/config"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Interactive setup wizard",
	Long: `Walks you through configuring the daemon:
  - coding-agent binary (e.g. claude, with fallbacks)
  - forge credentials (GitHub, GitLab, Azure DevOps)
  - scan cadence and concurrency defaults

Run 'autodev repo add <clone-url>' afterward to populate the watchlist.`,
	RunE: runOnboard,
}

func runOnboard(cmd *cobra.Command, args []string) error {
	fmt.Println()
	fmt.Println(headerStyle.Render("  autodev — autonomous coding-agent daemon"))
	fmt.Println(dimStyle.Render("  Drives issues and pull requests through analyze/implement/review/merge.\n"))

	if err := config.EnsureDir(); err != nil {
		return fmt.Errorf("preparing config directory: %w", err)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		cfg = &config.Config{}
	}

	if cfg.Agent.Binary == "" {
		cfg.Agent.Binary = "claude"
	}
	var fallbackStr string
	agentForm := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Coding-agent binary").
				Description("Executable invoked for every analyze/implement/review/improve/merge/extract session").
				Value(&cfg.Agent.Binary),
			huh.NewInput().
				Title("Fallback binaries (comma-separated, optional)").
				Value(&fallbackStr),
			huh.NewConfirm().
				Title("Configure a forge credential now?").
				Value(&wantForgeSetup),
		),
	)
	if err := agentForm.Run(); err != nil {
		return fmt.Errorf("onboarding form: %w", err)
	}
	cfg.Agent.Fallback = splitNonEmpty(fallbackStr)
	if cfg.Agent.TimeoutSeconds <= 0 {
		cfg.Agent.TimeoutSeconds = 1800
	}

	if wantForgeSetup {
		if err := onboardForge(cfg); err != nil {
			return err
		}
	}

	scanIntervalStr = fmt.Sprintf("%d", fallbackInt(cfg.Consumer.ScanIntervalSecs, 60))
	issueConcurrencyStr = fmt.Sprintf("%d", fallbackInt(cfg.Consumer.IssueConcurrency, 2))
	prConcurrencyStr = fmt.Sprintf("%d", fallbackInt(cfg.Consumer.PrConcurrency, 2))
	cadenceForm := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Default scan interval per repo, in seconds").
				Value(&scanIntervalStr).
				Validate(validatePositiveInt),
			huh.NewInput().
				Title("Issue concurrency per repo").
				Value(&issueConcurrencyStr).
				Validate(validatePositiveInt),
			huh.NewInput().
				Title("PR concurrency per repo").
				Value(&prConcurrencyStr).
				Validate(validatePositiveInt),
		),
	)
	if err := cadenceForm.Run(); err != nil {
		return fmt.Errorf("onboarding form: %w", err)
	}
	cfg.Consumer.ScanIntervalSecs = atoiOr(scanIntervalStr, 60)
	cfg.Consumer.IssueConcurrency = atoiOr(issueConcurrencyStr, 2)
	cfg.Consumer.PrConcurrency = atoiOr(prConcurrencyStr, 2)
	if cfg.Consumer.MergeConcurrency <= 0 {
		cfg.Consumer.MergeConcurrency = 1
	}
	if cfg.Consumer.ConfidenceThreshold <= 0 {
		cfg.Consumer.ConfidenceThreshold = 0.7
	}

	cfgPath, err := config.ConfigPath(cfgFile)
	if err != nil {
		return err
	}
	if err := config.Save(cfg, cfgPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Println(successStyle.Render("  Configuration saved to " + cfgPath))
	fmt.Println(dimStyle.Render("  Next: autodev repo add <clone-url>, then autodev daemon"))
	return nil
}

var (
	wantForgeSetup       bool
	scanIntervalStr      string
	issueConcurrencyStr  string
	prConcurrencyStr     string
)

func onboardForge(cfg *config.Config) error {
	var provider, token, host string
	providerForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Forge provider").
				Options(
					huh.NewOption("GitHub", "github"),
					huh.NewOption("GitLab", "gitlab"),
					huh.NewOption("Azure DevOps", "azure"),
				).
				Value(&provider),
			huh.NewInput().
				Title("Access token").
				EchoMode(huh.EchoModePassword).
				Value(&token),
			huh.NewInput().
				Title("Host (blank for the public instance)").
				Value(&host),
		),
	)
	if err := providerForm.Run(); err != nil {
		return fmt.Errorf("forge credential form: %w", err)
	}
	if token == "" {
		fmt.Println(warnStyle.Render("  No token entered; skipping credential."))
		return nil
	}

	switch provider {
	case "github":
		cfg.Git.GitHub = append(cfg.Git.GitHub, config.GitHubConfig{Token: token, Host: host})
	case "gitlab":
		cfg.Git.GitLab = append(cfg.Git.GitLab, config.GitLabConfig{Token: token, Host: host})
	case "azure":
		cfg.Git.Azure = append(cfg.Git.Azure, config.AzureConfig{Token: token, Host: host})
	}
	return nil
}

func splitNonEmpty(s string) []string {
	var out []string
	cur := ""
	for _, r := range s + "," {
		if r == ',' {
			cur = trimSpaceStr(cur)
			if cur != "" {
				out = append(out, cur)
			}
			cur = ""
			continue
		}
		cur += string(r)
	}
	return out
}

func trimSpaceStr(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t') {
		end--
	}
	return s[start:end]
}

func atoiOr(s string, fallback int) int {
	n := 0
	ok := false
	for _, r := range s {
		if r < '0' || r > '9' {
			return fallback
		}
		n = n*10 + int(r-'0')
		ok = true
	}
	if !ok {
		return fallback
	}
	return n
}

func fallbackInt(n, fallback int) int {
	if n <= 0 {
		return fallback
	}
	return n
}

func validatePositiveInt(s string) error {
	if atoiOr(s, -1) <= 0 {
		return fmt.Errorf("must be a positive integer")
	}
	return nil
}

// doctorCheckBinary is shared by doctor.go to verify the configured
// coding-agent binary resolves on PATH.
func doctorCheckBinary(bin string) bool {
	_, err := exec.LookPath(bin)
	return err == nil
}
