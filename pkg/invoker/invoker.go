// Package invoker runs the external recht lookup tool with a deadline and a
// bound on captured output.
package invoker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	osexec "os/exec"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for tool invocations.
var (
	invocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recht_invocations_total",
		Help: "Total recht tool invocations by outcome",
	}, []string{"outcome"})

	invocationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recht_invocation_duration_seconds",
		Help:    "recht tool invocation duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})
)

const (
	// DefaultBinary is the tool looked up in PATH
	DefaultBinary = "recht"

	// DefaultTimeout bounds a single invocation
	DefaultTimeout = 10 * time.Second

	// DefaultMaxOutputBytes bounds captured stdout (and stderr)
	DefaultMaxOutputBytes = 1 << 20

	// waitDelay bounds how long Wait blocks on pipes held open by orphaned children
	waitDelay = 500 * time.Millisecond
)

// Config holds invoker configuration.
type Config struct {
	// Binary is the tool name or path
	Binary string

	// Timeout bounds a single invocation
	Timeout time.Duration

	// MaxOutputBytes bounds captured stdout; exceeding it kills the process
	MaxOutputBytes int
}

// DefaultConfig returns the default invoker configuration.
func DefaultConfig() Config {
	return Config{
		Binary:         DefaultBinary,
		Timeout:        DefaultTimeout,
		MaxOutputBytes: DefaultMaxOutputBytes,
	}
}

// Exec invokes the tool as a child process.
type Exec struct {
	config Config
	logger zerolog.Logger
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Binary == "" {
		return fmt.Errorf("%w: binary is required", ErrInvalidConfig)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be > 0 (got %s)", ErrInvalidConfig, c.Timeout)
	}
	if c.MaxOutputBytes <= 0 {
		return fmt.Errorf("%w: max output bytes must be > 0 (got %d)", ErrInvalidConfig, c.MaxOutputBytes)
	}
	return nil
}

// New creates a new invoker.
func New(cfg Config, logger zerolog.Logger) (*Exec, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Exec{
		config: cfg,
		logger: logger,
	}, nil
}

// Binary returns the configured tool.
func (e *Exec) Binary() string {
	return e.config.Binary
}

// Available checks that the tool can be resolved.
func (e *Exec) Available() error {
	if _, err := osexec.LookPath(e.config.Binary); err != nil {
		return fmt.Errorf("%w: %v", ErrBinaryMissing, err)
	}
	return nil
}

// Run invokes the tool with args and returns its standard output.
//
// Failures are returned as *ExecError wrapping ErrBinaryMissing, ErrTimeout,
// ErrOutputTooLarge, or the process error for any other non-zero exit.
// On timeout or overflow the process is killed and partial output discarded.
func (e *Exec) Run(ctx context.Context, args []string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	stdout := newBoundedBuffer(e.config.MaxOutputBytes, cancel)
	stderr := newBoundedBuffer(e.config.MaxOutputBytes, nil)

	cmd := osexec.CommandContext(ctx, e.config.Binary, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	e.logger.Debug().
		Str("binary", e.config.Binary).
		Strs("args", args).
		Msg("Invoking tool")

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)
	invocationDuration.Observe(duration.Seconds())

	if err == nil && !stdout.Overflowed() {
		invocationsTotal.WithLabelValues("success").Inc()
		e.logger.Debug().
			Strs("args", args).
			Dur("duration", duration).
			Int("bytes", len(stdout.Bytes())).
			Msg("Tool invocation succeeded")
		return stdout.Bytes(), nil
	}

	execErr := &ExecError{
		Args:     args,
		ExitCode: -1,
		Stderr:   stderr.String(),
		Err:      classify(ctx, err, stdout.Overflowed()),
	}
	if cmd.ProcessState != nil {
		execErr.ExitCode = cmd.ProcessState.ExitCode()
	}

	invocationsTotal.WithLabelValues(outcomeLabel(execErr)).Inc()
	return nil, execErr
}

// classify maps the process error onto the failure signals.
func classify(ctx context.Context, err error, overflowed bool) error {
	switch {
	case overflowed:
		return ErrOutputTooLarge
	case errors.Is(err, osexec.ErrNotFound),
		errors.Is(err, fs.ErrNotExist),
		errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %w", ErrBinaryMissing, err)
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	}

	// A process terminated by a signal reports exit code -1
	var exitErr *osexec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == -1 {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	return err
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, ErrBinaryMissing):
		return "binary_missing"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrOutputTooLarge):
		return "output_too_large"
	default:
		return "failed"
	}
}
