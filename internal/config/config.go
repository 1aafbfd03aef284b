package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"
)

const (
	DefaultConfigDir     = ".autodev"
	DefaultConfigFile    = "config.json"
	DefaultDBFile        = ".autodev/autodev.db"
	DefaultWorkspaceDir  = "workspaces"
	OverlayFileName      = ".develop-workflow.yaml"
	DefaultAgentBinary   = "claude"
	DefaultScanInterval  = 60
	DefaultMaxIterations = 3
)

// Load reads the config file (using defaults if it is absent; no file is
// written) and returns a populated Config. The configPath flag may override the default location.
func Load(configPath string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(filepath.Join(home, DefaultConfigDir))
	}

	setDefaults(v, home)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !isNotExist(err) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
		// No config yet; defaults carry the zero value forward.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	expandPaths(&cfg, home)
	return &cfg, nil
}

// Save writes the config to disk as JSON.
func Save(cfg *Config, configPath string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("cannot determine home directory: %w", err)
	}

	if configPath == "" {
		configPath = filepath.Join(home, DefaultConfigDir, DefaultConfigFile)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("serialising config: %w", err)
	}

	return os.WriteFile(configPath, data, 0o600)
}

// ConfigPath returns the effective config file path.
func ConfigPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultConfigDir, DefaultConfigFile), nil
}

// WorkspacesPath returns $HOME/workspaces, the canonical clone tree root.
func WorkspacesPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultWorkspaceDir), nil
}

// SanitizeRepoName turns "owner/repo" into a filesystem-safe path segment.
func SanitizeRepoName(name string) string {
	return strings.ReplaceAll(name, "/", "__")
}

// EnsureDir creates ~/.autodev if it doesn't exist.
func EnsureDir() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	dir := filepath.Join(home, DefaultConfigDir)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return nil
}

// setDefaults populates viper with sensible out-of-the-box values.
func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", filepath.Join(home, DefaultDBFile))
	v.SetDefault("database.dsn", "")

	v.SetDefault("agent.binary", DefaultAgentBinary)
	v.SetDefault("agent.fallback", []string{})
	v.SetDefault("agent.timeout_seconds", 1800)

	v.SetDefault("consumer.scan_interval_secs", DefaultScanInterval)
	v.SetDefault("consumer.issue_concurrency", 2)
	v.SetDefault("consumer.pr_concurrency", 2)
	v.SetDefault("consumer.merge_concurrency", 1)
	v.SetDefault("consumer.scan_targets", []string{"issues", "pulls"})
	v.SetDefault("consumer.filter_labels", []string{})
	v.SetDefault("consumer.ignore_authors", []string{})
	v.SetDefault("consumer.confidence_threshold", 0.7)
	v.SetDefault("consumer.knowledge_extraction", false)
	v.SetDefault("consumer.auto_merge", false)

	v.SetDefault("develop.review.max_iterations", DefaultMaxIterations)

	v.SetDefault("gateway.port", 6080)
}

// expandPaths resolves ~ in configured paths.
func expandPaths(cfg *Config, home string) {
	cfg.Database.Path = expandHome(cfg.Database.Path, home)
}

func expandHome(path, home string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

func isNotExist(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file")
}

// overlayCacheEntry caches a parsed overlay file keyed by its mtime, so
// repeated ticks against the same worktree don't re-read + re-parse YAML
// when nothing has changed on disk.
type overlayCacheEntry struct {
	mtime time.Time
	cfg   ConsumerOverlay
}

// ConsumerOverlay is the shape of a .develop-workflow.yaml file: a subset of
// Config that a single repository may override.
type ConsumerOverlay struct {
	Consumer *ConsumerConfig `yaml:"consumer,omitempty"`
	Workflow *WorkflowConfig `yaml:"workflow,omitempty"`
	Develop  *DevelopConfig  `yaml:"develop,omitempty"`
}

// Loader resolves the effective configuration for a repo by merging the
// process-level defaults with an optional per-repo overlay file found in a
// worktree root. It caches parsed overlays by file mtime (ported from
// daemon/recovery.rs's GH_HOST_CACHE) so draining many tasks against the
// same repo in one tick costs one stat per call and at most one parse while
// the file's mtime is unchanged.
type Loader struct {
	base *Config

	mu    sync.Mutex
	cache map[string]overlayCacheEntry
}

// NewLoader builds a Loader over the process-level defaults.
func NewLoader(base *Config) *Loader {
	return &Loader{base: base, cache: make(map[string]overlayCacheEntry)}
}

// Resolved is the effective per-repo configuration after overlay merge.
type Resolved struct {
	Consumer ConsumerConfig
	Workflow WorkflowConfig
	Develop  DevelopConfig
}

// LoadMerged resolves the effective configuration for repoName, optionally
// reading an overlay file from worktreeDir (pass "" when no worktree exists
// yet, e.g. before the first clone).
func (l *Loader) LoadMerged(repoName, worktreeDir string) Resolved {
	resolved := Resolved{
		Consumer: l.base.Consumer,
		Workflow: l.base.Workflow,
		Develop:  l.base.Develop,
	}

	if worktreeDir == "" {
		return l.applyRepoOverride(repoName, resolved)
	}

	overlayPath := filepath.Join(worktreeDir, OverlayFileName)
	info, err := os.Stat(overlayPath)
	if err != nil {
		return l.applyRepoOverride(repoName, resolved)
	}
	mtime := info.ModTime()

	l.mu.Lock()
	if entry, ok := l.cache[repoName]; ok && entry.mtime.Equal(mtime) {
		l.mu.Unlock()
		return l.mergeOverlay(resolved, entry.cfg)
	}
	l.mu.Unlock()

	data, err := os.ReadFile(overlayPath)
	if err != nil {
		return l.applyRepoOverride(repoName, resolved)
	}
	var overlay ConsumerOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return l.applyRepoOverride(repoName, resolved)
	}

	l.mu.Lock()
	l.cache[repoName] = overlayCacheEntry{mtime: mtime, cfg: overlay}
	l.mu.Unlock()

	return l.mergeOverlay(resolved, overlay)
}

func (l *Loader) applyRepoOverride(repoName string, resolved Resolved) Resolved {
	for _, r := range l.base.Repos {
		if r.Name == repoName && r.ConsumerOverride != nil {
			resolved.Consumer = *r.ConsumerOverride
		}
	}
	return resolved
}

func (l *Loader) mergeOverlay(resolved Resolved, overlay ConsumerOverlay) Resolved {
	if overlay.Consumer != nil {
		resolved.Consumer = *overlay.Consumer
	}
	if overlay.Workflow != nil {
		resolved.Workflow = *overlay.Workflow
	}
	if overlay.Develop != nil {
		resolved.Develop = *overlay.Develop
	}
	return resolved
}
