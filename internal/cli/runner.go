package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/enginebridge/backend/internal/logging"
)

// ErrBinaryNotConfigured indicates no engine binary path was provided.
var ErrBinaryNotConfigured = errors.New("engine binary not configured")

// Output captures a finished headless run.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner executes the engine binary in headless mode. It is the fallback
// path when the editor plugin cannot serve a call.
type Runner struct {
	binary     string
	projectDir string
	timeout    time.Duration
	logger     *logging.Logger
}

// NewRunner creates a runner for the given engine binary and project.
func NewRunner(binary, projectDir string, timeout time.Duration, logger *logging.Logger) *Runner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Runner{
		binary:     binary,
		projectDir: projectDir,
		timeout:    timeout,
		logger:     logger.Named("cli"),
	}
}

// Available reports whether a binary path is configured.
func (r *Runner) Available() bool {
	return r.binary != ""
}

// HeadlessArgs prepends the headless flags the engine expects, including
// the project path when one is configured.
func (r *Runner) HeadlessArgs(args ...string) []string {
	full := append([]string{"--headless"}, args...)
	if r.projectDir != "" {
		full = append(full, "--path", r.projectDir)
	}
	return full
}

// Run invokes the engine with the given arguments and captures its output.
// The run is bounded by the runner's timeout on top of the caller's context.
func (r *Runner) Run(ctx context.Context, args ...string) (*Output, error) {
	if r.binary == "" {
		return nil, ErrBinaryNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	out := &Output{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			r.logger.Warn("headless run exited nonzero",
				zap.Int("exit_code", out.ExitCode),
				zap.Strings("args", args))
			return out, fmt.Errorf("engine exited with code %d", out.ExitCode)
		}
		if ctx.Err() != nil {
			return out, fmt.Errorf("headless run timed out after %s", r.timeout)
		}
		return out, fmt.Errorf("failed to run engine: %w", err)
	}

	r.logger.Debug("headless run completed",
		zap.Duration("duration", duration),
		zap.Strings("args", args))
	return out, nil
}
