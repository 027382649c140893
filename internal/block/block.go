// Package block defines the capability contract implemented by every step
// implementation. Blocks are black boxes to the engine: they declare their
// outputs and batch behavior, and expose a single Run entrypoint. They never
// touch the execution context and never retry.
package block

import (
	"context"

	"github.com/specialistvlad/gridflow/internal/kind"
)

// OutputSpec declares one named output socket and the kinds it produces.
type OutputSpec struct {
	Name  string
	Kinds kind.Set
}

// Block is the capability contract for a step implementation.
//
// A non-batch block's Run is invoked once per batch item with scalar field
// values; a batch-accepting block's Run is invoked once with batch-shaped
// fields ([]any, index-aligned) for every batch-shaped input. Run must return
// a value for every declared output, or fail.
type Block interface {
	// Outputs enumerates the block's declared output sockets.
	Outputs() []OutputSpec

	// AcceptsBatch reports whether Run receives the whole batch at once.
	AcceptsBatch() bool

	// Run executes the block against resolved field values. It may suspend
	// internally (model calls, I/O) and must honor ctx cancellation.
	Run(ctx context.Context, fields map[string]any) (map[string]any, error)
}

// Factory produces a fresh Block instance. The registry resolves a type tag
// to its factory once at startup; factories must be safe for concurrent use.
type Factory func() Block
