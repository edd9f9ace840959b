package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/psantana5/perfpro/internal/report"
	"github.com/psantana5/perfpro/pkg/logging"
	"github.com/psantana5/perfpro/pkg/perf"
)

// ErrStepFailed is returned when a step exits non-zero
var ErrStepFailed = errors.New("step failed")

// StepResult is the outcome of one step
type StepResult struct {
	Name     string
	ExitCode int
	Duration time.Duration
	Err      error
}

// Result is the outcome of a run
type Result struct {
	RunID string
	Steps []StepResult
}

// Runner executes plans and marks every step on a profiler
type Runner struct {
	profiler *perf.Profiler
	logger   *logging.Logger
	metrics  *report.Metrics
	stdout   io.Writer
	stderr   io.Writer
}

// Option configures a Runner
type Option func(*Runner)

// WithLogger sets the runner logger
func WithLogger(l *logging.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithMetrics replaces the global metrics
func WithMetrics(m *report.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithOutput redirects step stdout and stderr
func WithOutput(stdout, stderr io.Writer) Option {
	return func(r *Runner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// New creates a runner that records marks on p
func New(p *perf.Profiler, opts ...Option) *Runner {
	r := &Runner{
		profiler: p,
		logger:   logging.NewDiscard(),
		metrics:  report.Global(),
		stdout:   os.Stdout,
		stderr:   os.Stderr,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the plan steps in order, stopping at the first failure.
// Each step is bracketed by two marks named after it and the whole run by
// TotalMark, so the failing step still gets a closed interval. Marks with
// those names from earlier runs are cleared first; other marks of the
// namespace are kept.
func (r *Runner) Run(ctx context.Context, plan *Plan) (*Result, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	res := &Result{RunID: uuid.NewString()}
	log := r.logger.WithFields(logging.Fields{"run_id": res.RunID, "app": r.profiler.App()})

	// a rerun starts fresh intervals for its own marks
	r.profiler.Clear(TotalMark)
	for _, step := range plan.Steps {
		r.profiler.Clear(step.Name)
	}

	r.metrics.RunsStarted.Add(1)
	r.profiler.Mark(TotalMark)
	defer func() {
		r.profiler.Mark(TotalMark)
		r.metrics.RunsCompleted.Add(1)
	}()

	log.Info("run started", logging.Fields{"steps": len(plan.Steps)})

	for _, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("run cancelled before step %q: %w", step.Name, err)
		}

		log.Info("step started", logging.Fields{"step": step.Name, "command": step.Command})
		r.metrics.StepsStarted.Add(1)

		r.profiler.Mark(step.Name)
		exitCode, err := r.execute(ctx, step)
		r.profiler.Mark(step.Name)

		d, _ := r.profiler.Duration(step.Name)
		res.Steps = append(res.Steps, StepResult{
			Name:     step.Name,
			ExitCode: exitCode,
			Duration: d,
			Err:      err,
		})
		r.metrics.RecordStep(exitCode, err)

		fields := logging.Fields{"step": step.Name, "exit_code": exitCode, "duration_ms": float64(d) / float64(time.Millisecond)}
		if err != nil {
			fields["error"] = err.Error()
			log.Error("step could not run", fields)
			return res, fmt.Errorf("step %q: %w", step.Name, err)
		}
		if exitCode != 0 {
			log.Warn("step failed", fields)
			return res, fmt.Errorf("step %q exited with %d: %w", step.Name, exitCode, ErrStepFailed)
		}
		log.Info("step completed", fields)
	}

	log.Info("run completed")
	return res, nil
}

// execute runs one step and returns its exit code.
// err is only set when the process could not be started or waited on.
func (r *Runner) execute(ctx context.Context, step Step) (int, error) {
	timeout, err := step.timeout()
	if err != nil {
		return -1, err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, step.Command, step.Args...)
	cmd.Dir = step.Dir
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr
	if len(step.Env) > 0 {
		cmd.Env = append(os.Environ(), envList(step.Env)...)
	}

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("failed to start: %w", err)
	}

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if ctx.Err() != nil {
				return exitErr.ExitCode(), fmt.Errorf("step interrupted: %w", ctx.Err())
			}
			return exitErr.ExitCode(), nil
		}
		return -1, err
	}
	return 0, nil
}

// envList renders env in a stable order
func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
