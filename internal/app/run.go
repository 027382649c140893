package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/executor"
	"github.com/specialistvlad/gridflow/internal/schema"
	"github.com/specialistvlad/gridflow/internal/wfapi"
)

// Run executes one workflow end to end: load the document, compile it
// through the plan cache, run it against the configured inputs and print the
// resolved outputs as JSON.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.HealthcheckPort > 0 {
		a.startHealthcheckServer(a.config.HealthcheckPort)
	}

	doc, err := a.loadDocument(ctx)
	if err != nil {
		return err
	}

	plan, err := a.plans.GetOrCompile(ctx, doc, a.registry)
	if err != nil {
		return fmt.Errorf("compiling workflow: %w", err)
	}
	a.logger.Info("Workflow compiled.", "steps", plan.StepCount(), "levels", len(plan.Levels), "hash", plan.Hash)

	inputs, err := a.loadInputs()
	if err != nil {
		return err
	}

	policy, err := executor.ParsePolicy(a.config.Policy)
	if err != nil {
		return err
	}
	exec := executor.New(plan, a.registry, executor.Options{
		Policy:           policy,
		ConcurrencyLimit: a.config.Workers,
		Usage:            a.reporter(),
	})

	a.logger.Info("🚀 Starting workflow run.")
	result, err := exec.Run(ctx, inputs)
	if err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}
	for step, stepErr := range result.Failed {
		a.logger.Warn("Step did not complete.", "step", step, "error", stepErr)
	}
	a.logger.Info("🏁 Workflow run finished.", "outputs", len(result.Outputs), "failed_steps", len(result.Failed))

	enc := json.NewEncoder(a.outW)
	enc.SetIndent("", "  ")
	return enc.Encode(result.Outputs)
}

// loadDocument reads the workflow document from disk or fetches it from the
// registry API, whichever the config selects.
func (a *App) loadDocument(ctx context.Context) (*schema.Document, error) {
	if a.config.WorkflowPath != "" {
		raw, err := os.ReadFile(a.config.WorkflowPath)
		if err != nil {
			return nil, fmt.Errorf("reading workflow file: %w", err)
		}
		doc, err := schema.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing workflow file %s: %w", a.config.WorkflowPath, err)
		}
		return doc, nil
	}

	client := wfapi.New(wfapi.Options{
		BaseURL:  a.config.BaseURL,
		APIKey:   a.config.APIKey,
		CacheDir: a.config.CacheDir,
	})
	defer client.Close()
	return client.WorkflowSpecification(ctx, a.config.Workspace, a.config.WorkflowID)
}

func (a *App) loadInputs() (executor.RunInput, error) {
	if a.config.InputPath == "" {
		return executor.RunInput{}, nil
	}
	raw, err := os.ReadFile(a.config.InputPath)
	if err != nil {
		return nil, fmt.Errorf("reading input file: %w", err)
	}
	var inputs executor.RunInput
	if err := json.Unmarshal(raw, &inputs); err != nil {
		return nil, fmt.Errorf("parsing input file %s: %w", a.config.InputPath, err)
	}
	return inputs, nil
}
