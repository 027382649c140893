// Package app wires the engine together: configuration, logging, the block
// registry, the plan cache and the usage collector, plus the run lifecycle
// around them.
package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/specialistvlad/gridflow/internal/compiler"
	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/kind"
	"github.com/specialistvlad/gridflow/internal/registry"
	"github.com/specialistvlad/gridflow/internal/usage"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW     io.Writer
	logW     io.Writer
	logger   *slog.Logger
	config   *Config
	registry *registry.Registry
	plans    *compiler.PlanCache
	usage    *usage.Collector
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
// Registration and manifest errors are programmer errors, so it panics on
// them rather than returning.
func NewApp(outW, logW io.Writer, config *Config, modules ...registry.Module) *App {
	logger := newLogger(config, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	reg := registry.New(kind.NewRegistry())
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All block modules registered.", "count", len(modules), "types", reg.Types())

	if err := reg.Validate(ctx); err != nil {
		// A mismatch between a manifest and its Go block is a programmer
		// error, not a user error.
		panic(err)
	}
	logger.Debug("Registry validation passed.")

	a := &App{
		outW:     outW,
		logW:     logW,
		logger:   logger,
		config:   config,
		registry: reg,
		plans:    compiler.NewPlanCache(),
	}
	if !config.DisableUsage && config.APIKey != "" {
		a.usage = usage.NewCollector(usage.CollectorOptions{
			Endpoint: config.UsageEndpoint,
			Logger:   logger,
		})
		logger.Debug("Usage collector started.")
	}
	return a
}

// Registry returns the application's registry. This is primarily for
// testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Close flushes and stops background workers.
func (a *App) Close() error {
	if a.usage == nil {
		return nil
	}
	return a.usage.Close()
}
