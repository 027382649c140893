package app

import (
	"context"
	"time"

	"github.com/specialistvlad/gridflow/internal/executor"
	"github.com/specialistvlad/gridflow/internal/usage"
)

// usageReporter adapts the collector to the executor's reporting hook.
type usageReporter struct {
	collector *usage.Collector
	apiKey    string
}

func (u *usageReporter) ReportRun(_ context.Context, report executor.RunReport) {
	now := time.Now()
	u.collector.Record(usage.Record{
		APIKey:            u.apiKey,
		Category:          usage.CategoryWorkflows,
		ResourceID:        usage.WorkflowResourceID(report.TypeNames),
		TimestampStart:    now.Add(-report.Duration),
		TimestampStop:     now,
		ProcessedFrames:   report.ProcessedItems,
		ExecutionDuration: report.Duration,
		FPS:               report.FPS,
	})
}

// reporter returns the executor hook, or nil when usage collection is off.
func (a *App) reporter() executor.UsageReporter {
	if a.usage == nil {
		return nil
	}
	return &usageReporter{collector: a.usage, apiKey: a.config.APIKey}
}
