package executor

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/specialistvlad/gridflow/internal/compiler"
)

// runStep invokes the step's block and returns its outputs batch-shaped.
// Non-batch blocks fan out to one invocation per batch item; batch-aware
// blocks run once over the whole batch and must return index-aligned slices.
func (e *Executor) runStep(ctx context.Context, step *compiler.CompiledStep, ec *executionContext) (map[string]Value, error) {
	blk, err := e.registry.NewBlock(step.Type)
	if err != nil {
		return nil, err
	}
	if step.Definition.AcceptsBatch {
		return e.runBatchStep(ctx, step, ec, blk.Run)
	}
	return e.runItemStep(ctx, step, ec, blk.Run)
}

type runFunc func(ctx context.Context, fields map[string]any) (map[string]any, error)

func (e *Executor) runBatchStep(ctx context.Context, step *compiler.CompiledStep, ec *executionContext, run runFunc) (map[string]Value, error) {
	fields, err := resolveBatchFields(step.Fields, ec)
	if err != nil {
		return nil, err
	}
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	raw, err := run(ctx, fields)
	e.sem.Release(1)
	if err != nil {
		return nil, err
	}

	outputs := make(map[string]Value, len(step.Definition.Outputs))
	for _, name := range outputNames(step) {
		v, ok := raw[name]
		if !ok {
			return nil, fmt.Errorf("block %q did not return declared output %q", step.Type, name)
		}
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("batch block %q returned non-batch output %q (%T)", step.Type, name, v)
		}
		if len(items) != ec.BatchSize() {
			return nil, fmt.Errorf("batch block %q returned %d items for output %q, batch size is %d",
				step.Type, len(items), name, ec.BatchSize())
		}
		outputs[name] = PerItem(items)
	}
	return outputs, nil
}

func (e *Executor) runItemStep(ctx context.Context, step *compiler.CompiledStep, ec *executionContext, run runFunc) (map[string]Value, error) {
	results := make([]map[string]any, ec.BatchSize())
	g, gctx := errgroup.WithContext(ctx)
	for i := range results {
		g.Go(func() error {
			if err := e.sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer e.sem.Release(1)
			fields, err := resolveItemFields(step.Fields, ec, i)
			if err != nil {
				return err
			}
			raw, err := run(gctx, fields)
			if err != nil {
				return err
			}
			results[i] = raw
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	outputs := make(map[string]Value, len(step.Definition.Outputs))
	for _, name := range outputNames(step) {
		items := make([]any, len(results))
		for i, raw := range results {
			v, ok := raw[name]
			if !ok {
				return nil, fmt.Errorf("block %q did not return declared output %q", step.Type, name)
			}
			items[i] = v
		}
		outputs[name] = PerItem(items)
	}
	return outputs, nil
}

func outputNames(step *compiler.CompiledStep) []string {
	names := make([]string, 0, len(step.Definition.Outputs))
	for name := range step.Definition.Outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
