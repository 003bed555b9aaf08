package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/idscan/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the accumulated
// report from previous steps.
//
// Design decision: We use an interface rather than function types because:
// 1. It allows steps to carry configuration state
// 2. It provides a Name() method for logging and debugging
// 3. It's more extensible for future features (e.g., priority, dependencies)
type Step interface {
	// Do executes the pipeline step.
	// It receives the context for cancellation, and the report to modify.
	// Returns an error if the step fails critically; degraded outcomes
	// (an interrupted probe wave, partial results) should be recorded
	// in the report and return nil.
	Do(ctx context.Context, report *model.ScanReport) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
// It maintains a list of steps and executes them in order.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
// This follows the functional options pattern for clean API design.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, a default logger is created.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails. Failed steps are logged and their errors
// are recorded in the report, but subsequent steps still execute.
//
// Design decision: This option exists because some failures (e.g., one
// unreadable catalog file) shouldn't prevent the remaining stages from
// running. However, the default is to stop on error because early
// failures often indicate fundamental problems (e.g., no catalog
// installed at all).
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:           make([]Step, 0),
		continueOnError: false,
	}

	// Apply options
	for _, opt := range opts {
		opt(p)
	}

	// Set default logger if not provided
	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence.
//
// Design decision: Cancellation does not abort the pipeline. When the
// context is done, the report is marked interrupted and the remaining
// steps still run: the probe step winds down and keeps the records it
// confirmed, and the aggregation and persistence steps work on that
// partial set. Throwing away twenty minutes of probing because the
// user pressed Ctrl+C at minute nineteen would be worse than finishing
// the cheap tail of the pipeline. Steps that cannot start under a
// cancelled context return ctx.Err() themselves.
//
// The report's elapsed time is refreshed after every step so the
// persistence step, which runs last, stores a meaningful duration.
//
// Returns the first error encountered if continueOnError is false,
// or nil if all steps complete (errors are recorded in report).
func (p *Pipeline) Execute(ctx context.Context, report *model.ScanReport) error {
	start := report.StartedAt
	if start.IsZero() {
		start = time.Now()
	}

	for _, step := range p.steps {
		// Note the cancellation once; steps decide what it means for them.
		if ctx.Err() != nil && !report.Interrupted {
			p.logger.Warn("run cancelled, continuing with partial results",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			report.Interrupted = true
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"identifiers", report.Identifiers,
		)

		// Execute the step
		if err := step.Do(ctx, report); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"identifiers", report.Identifiers,
				"error", err,
			)

			// Record the error in the report
			report.Error = err
			report.ErrorMessage = err.Error()

			// Stop or continue based on configuration
			if !p.continueOnError {
				report.ElapsedSeconds = time.Since(start).Seconds()
				return err
			}
		} else {
			p.logger.Debug("step completed",
				"step", step.Name(),
				"identifiers", report.Identifiers,
			)
		}

		// Track which steps were performed
		report.PerformedSteps = append(report.PerformedSteps, step.Name())
		report.ElapsedSeconds = time.Since(start).Seconds()
	}

	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
