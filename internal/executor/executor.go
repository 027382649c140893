// Package executor runs compiled workflow plans. A run walks the plan's
// scheduling levels in order; every step inside a level starts concurrently
// and the level acts as a barrier, so no step ever starts before all of its
// producers committed. Non-batch blocks additionally fan out to one
// invocation per batch item, bounded by a shared semaphore.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/specialistvlad/gridflow/internal/compiler"
	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/registry"
	"github.com/specialistvlad/gridflow/internal/selector"
)

// RunInput maps declared workflow input names to runtime values. Batch
// inputs take []any; a bare value is treated as a batch of one.
type RunInput map[string]any

// RunOutput maps declared workflow output names to their resolved values.
// Outputs fed by per-item values are []any, index-aligned with the input
// batch.
type RunOutput map[string]any

// RunResult is the outcome of one run. Under the isolate policy a run can
// succeed partially: Outputs holds everything reachable through surviving
// steps and Failed records each failed or skipped step.
type RunResult struct {
	Outputs RunOutput
	Failed  map[string]error
}

// RunReport summarizes one finished run for usage accounting.
type RunReport struct {
	// TypeNames is the ordered "type:name" identity of the plan's steps.
	TypeNames []string
	// ProcessedItems is the batch size the run executed with.
	ProcessedItems int
	Duration       time.Duration
	FPS            float64
}

// UsageReporter receives per-run usage reports. Implementations must not
// block; reporting failures never affect the run outcome.
type UsageReporter interface {
	ReportRun(ctx context.Context, report RunReport)
}

// DefaultConcurrencyLimit bounds simultaneous block invocations when the
// caller does not set one.
const DefaultConcurrencyLimit = 8

// Options tunes an Executor.
type Options struct {
	Policy           Policy
	ConcurrencyLimit int
	Usage            UsageReporter
}

// Executor runs one compiled plan. It holds no per-run state and is safe
// for concurrent Run calls.
type Executor struct {
	plan     *compiler.CompiledPlan
	registry *registry.Registry
	opts     Options
	sem      *semaphore.Weighted
}

// New builds an executor for a compiled plan.
func New(plan *compiler.CompiledPlan, reg *registry.Registry, opts Options) *Executor {
	limit := opts.ConcurrencyLimit
	if limit <= 0 {
		limit = DefaultConcurrencyLimit
	}
	return &Executor{
		plan:     plan,
		registry: reg,
		opts:     opts,
		sem:      semaphore.NewWeighted(int64(limit)),
	}
}

// Run executes the plan against the given inputs. Under fail-fast the first
// step failure cancels in-flight work and fails the run; under isolate a
// failure poisons only the failing step's dependents and the result carries
// whatever outputs survived.
func (e *Executor) Run(ctx context.Context, inputs RunInput) (*RunResult, error) {
	logger := ctxlog.FromContext(ctx).With("run_id", uuid.NewString())
	start := time.Now()

	ec, err := newExecutionContext(e.plan, inputs)
	if err != nil {
		return nil, err
	}
	logger.Debug("Starting workflow run.",
		"levels", len(e.plan.Levels), "steps", e.plan.StepCount(), "batch_size", ec.BatchSize(), "policy", e.opts.Policy)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	failed := make(map[string]error)
	for levelIdx, level := range e.plan.Levels {
		launched := make([]bool, len(level))
		errs := make([]error, len(level))
		outputs := make([]map[string]Value, len(level))
		done := make(chan int, len(level))

		running := 0
		for i, step := range level {
			if e.opts.Policy == PolicyIsolate {
				if cause, poisoned := upstreamFailure(step, failed); poisoned {
					failed[step.Name] = fmt.Errorf("skipped: upstream step %q failed", cause)
					logger.Debug("Skipping step with failed producer.", "step", step.Name, "producer", cause)
					continue
				}
			}
			launched[i] = true
			running++
			go func(i int, step *compiler.CompiledStep) {
				out, err := e.runStep(runCtx, step, ec)
				if err != nil {
					errs[i] = err
					if e.opts.Policy == PolicyFailFast {
						cancel()
					}
				} else {
					outputs[i] = out
				}
				done <- i
			}(i, step)
		}
		for ; running > 0; running-- {
			<-done
		}

		if e.opts.Policy == PolicyFailFast {
			if i, ok := rootFailure(errs); ok {
				step := level[i]
				logger.Warn("Step failed.", "step", step.Name, "level", levelIdx, "error", errs[i])
				return nil, &StepExecutionError{Step: step.Name, Err: errs[i]}
			}
		}

		for i, step := range level {
			if !launched[i] {
				continue
			}
			if errs[i] != nil {
				stepErr := &StepExecutionError{Step: step.Name, Err: errs[i]}
				logger.Warn("Step failed.", "step", step.Name, "level", levelIdx, "error", errs[i])
				failed[step.Name] = stepErr
				continue
			}
			ec.commit(step.Name, outputs[i])
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	result := &RunResult{Outputs: make(RunOutput, len(e.plan.Outputs)), Failed: failed}
	for _, binding := range e.plan.Outputs {
		sel := binding.Selector
		if sel.Scope == selector.ScopeStepOutput {
			if _, poisoned := failed[sel.Step]; poisoned {
				continue
			}
		}
		v, err := ec.lookup(sel)
		if err != nil {
			return nil, err
		}
		result.Outputs[binding.Name] = materializeOutput(v, sel.Property, ec.BatchSize())
	}

	e.report(ctx, ec, time.Since(start))
	logger.Debug("Workflow run finished.", "duration", time.Since(start), "failed_steps", len(failed))
	return result, nil
}

// materializeOutput shapes one bound output: per-item values become
// index-aligned slices, broadcast values stay scalar.
func materializeOutput(v Value, prop string, batchSize int) any {
	if v.IsBroadcast() {
		return property(v.At(0), prop)
	}
	items := make([]any, batchSize)
	for i := range items {
		items[i] = property(v.At(i), prop)
	}
	return items
}

// rootFailure picks the level error to report under fail-fast. The first
// failure cancels the run context, so siblings still in flight die of the
// collateral context.Canceled; those must not shadow the genuine block
// failure. A cancellation error wins only when nothing else failed, which
// happens when the caller's own context was cancelled.
func rootFailure(errs []error) (int, bool) {
	cancelled := -1
	for i, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) {
			if cancelled == -1 {
				cancelled = i
			}
			continue
		}
		return i, true
	}
	if cancelled >= 0 {
		return cancelled, true
	}
	return -1, false
}

// upstreamFailure reports whether any producer of the step failed or was
// skipped, returning the first such producer.
func upstreamFailure(step *compiler.CompiledStep, failed map[string]error) (string, bool) {
	for _, producer := range step.Producers {
		if _, ok := failed[producer]; ok {
			return producer, true
		}
	}
	return "", false
}

// report hands the run's usage summary to the configured reporter. A
// panicking reporter must not take the run down with it.
func (e *Executor) report(ctx context.Context, ec *executionContext, elapsed time.Duration) {
	if e.opts.Usage == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			ctxlog.FromContext(ctx).Warn("Usage reporter panicked.", "panic", r)
		}
	}()
	fps := 0.0
	if secs := elapsed.Seconds(); secs > 0 {
		fps = float64(ec.BatchSize()) / secs
	}
	e.opts.Usage.ReportRun(ctx, RunReport{
		TypeNames:      e.plan.TypeNamePairs(),
		ProcessedItems: ec.BatchSize(),
		Duration:       elapsed,
		FPS:            fps,
	})
}
