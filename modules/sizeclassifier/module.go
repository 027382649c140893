package sizeclassifier

import (
	"context"
	_ "embed"

	"github.com/specialistvlad/gridflow/internal/block"
	"github.com/specialistvlad/gridflow/internal/kind"
	"github.com/specialistvlad/gridflow/internal/registry"
)

//go:embed manifest.hcl
var manifestSrc []byte

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the block type with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterBlock(newBlock, manifestSrc, "sizeclassifier/manifest.hcl")
}

type classifier struct{}

func newBlock() block.Block { return &classifier{} }

func (c *classifier) Outputs() []block.OutputSpec {
	return []block.OutputSpec{
		{Name: "classification", Kinds: kind.NewSet(kind.Classification)},
		{Name: "count", Kinds: kind.NewSet(kind.Number)},
	}
}

func (c *classifier) AcceptsBatch() bool { return true }

func (c *classifier) Run(_ context.Context, fields map[string]any) (map[string]any, error) {
	batch, _ := fields["predictions"].([]any)
	classes := make([]any, len(batch))
	counts := make([]any, len(batch))
	for i, item := range batch {
		preds, _ := item.([]any)
		counts[i] = len(preds)
		switch len(preds) {
		case 0:
			classes[i] = "none"
		case 1:
			classes[i] = "single"
		default:
			classes[i] = "multiple"
		}
	}
	return map[string]any{"classification": classes, "count": counts}, nil
}
