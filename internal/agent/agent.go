// Package agent adapts the coding-agent subprocess contract:
// spawn the configured binary (falling back through Agent.Fallback on
// ENOENT), feed it a prompt, and parse its stdout into a typed verdict.
// Grounded on the original daemon's infrastructure/claude/output.rs
// envelope parser.
package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/CosmoTheDev/autodev-orchestrator/internal/config"
)

// Response is the raw result of one subprocess invocation.
type Response struct {
	Binary   string
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Runner spawns coding-agent sessions against a working directory.
type Runner struct {
	cfg config.AgentConfig
}

// NewRunner builds a Runner from the agent section of the resolved config.
func NewRunner(cfg config.AgentConfig) *Runner {
	return &Runner{cfg: cfg}
}

// RunSession invokes the configured binary (or its fallbacks, in order, if
// the primary binary is not on PATH) inside workingDir with prompt piped on
// stdin, honoring cfg.TimeoutSeconds. Both SystemPrompt and prompt are sent;
// SystemPrompt first, as a `--append-system-prompt` flag, matching the
// original CLI's invocation shape.
func (r *Runner) RunSession(ctx context.Context, workingDir, prompt string) (Response, error) {
	candidates := append([]string{r.cfg.Binary}, r.cfg.Fallback...)
	if len(candidates) == 0 {
		candidates = []string{"claude"}
	}

	timeout := time.Duration(r.cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	var lastErr error
	for _, bin := range candidates {
		if _, err := exec.LookPath(bin); err != nil {
			lastErr = err
			continue
		}

		sessionCtx, cancel := context.WithTimeout(ctx, timeout)
		resp, err := r.invoke(sessionCtx, bin, workingDir, prompt)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		return resp, nil
	}
	return Response{}, fmt.Errorf("no usable agent binary among %v: %w", candidates, lastErr)
}

func (r *Runner) invoke(ctx context.Context, bin, workingDir, prompt string) (Response, error) {
	args := []string{"-p", "--output-format", "json"}
	if r.cfg.SystemPrompt != "" {
		args = append(args, "--append-system-prompt", r.cfg.SystemPrompt)
	}

	cmd := exec.CommandContext(ctx, bin, args...) // #nosec G204 -- bin validated against exec.LookPath and configured allowlist
	cmd.Dir = workingDir
	cmd.Stdin = bytes.NewBufferString(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	exitCode := 0
	var exitErr *exec.ExitError
	if err != nil {
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return Response{}, fmt.Errorf("running %s: %w", bin, err)
		}
	}

	slog.Debug("agent session completed",
		"binary", bin, "dir", workingDir, "exit_code", exitCode, "duration", duration)

	return Response{
		Binary:   bin,
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}, nil
}
