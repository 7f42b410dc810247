package tool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/couchcryptid/forcing-engine/internal/observability"
	"github.com/jonboulle/clockwork"
)

const maxOutputTail = 4096

// ExternalToolError reports a tool that failed, timed out or could not start.
type ExternalToolError struct {
	Tool     string
	Command  string
	ExitCode int
	TimedOut bool
	// Output is the tail of the combined stdout and stderr.
	Output string
	Err    error
}

func (e *ExternalToolError) Error() string {
	switch {
	case e.TimedOut:
		return fmt.Sprintf("%s timed out: %s", e.Tool, e.Command)
	case e.ExitCode > 0:
		return fmt.Sprintf("%s exited with status %d: %s", e.Tool, e.ExitCode, e.Command)
	default:
		return fmt.Sprintf("%s failed: %s: %v", e.Tool, e.Command, e.Err)
	}
}

func (e *ExternalToolError) Unwrap() error { return e.Err }

// ExecRunner runs invocations as child processes with a per-invocation
// timeout. The process environment is inherited with Env overlaid.
type ExecRunner struct {
	env     []string
	timeout time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
}

// NewExecRunner creates an ExecRunner. A zero timeout disables the limit.
func NewExecRunner(env Env, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *ExecRunner {
	return &ExecRunner{
		env:     env.Merge(os.Environ()),
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
		clock:   clockwork.NewRealClock(),
	}
}

// Run executes inv and waits for it to exit. When ctx is canceled the
// process is killed and ctx's error is returned wrapped, not an
// ExternalToolError.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) error {
	parent := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, inv.Exe, inv.Args()...)
	cmd.Env = r.env

	r.logger.Debug("running tool", "tool", inv.Tool, "command", inv.String())
	start := r.clock.Now()
	out, err := cmd.CombinedOutput()
	elapsed := r.clock.Since(start)

	if err == nil {
		r.metrics.ToolDuration.WithLabelValues(inv.Tool, "ok").Observe(elapsed.Seconds())
		r.logger.Debug("tool finished", "tool", inv.Tool, "elapsed", elapsed)
		return nil
	}

	if parent.Err() != nil {
		r.metrics.ToolDuration.WithLabelValues(inv.Tool, "canceled").Observe(elapsed.Seconds())
		r.logger.Warn("tool interrupted", "tool", inv.Tool, "elapsed", elapsed)
		return fmt.Errorf("%s interrupted: %w", inv.Tool, parent.Err())
	}

	toolErr := &ExternalToolError{
		Tool:     inv.Tool,
		Command:  inv.String(),
		TimedOut: errors.Is(ctx.Err(), context.DeadlineExceeded),
		Output:   tail(out, maxOutputTail),
		Err:      err,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		toolErr.ExitCode = exitErr.ExitCode()
	}
	outcome := "failed"
	if toolErr.TimedOut {
		outcome = "timeout"
	}
	r.metrics.ToolDuration.WithLabelValues(inv.Tool, outcome).Observe(elapsed.Seconds())
	r.logger.Error("tool failed",
		"tool", inv.Tool,
		"command", toolErr.Command,
		"exit_code", toolErr.ExitCode,
		"timed_out", toolErr.TimedOut,
		"elapsed", elapsed,
		"output", toolErr.Output,
	)
	return toolErr
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}
