package printsink

import (
	"context"
	_ "embed"
	"fmt"
	"sort"

	"github.com/specialistvlad/gridflow/internal/block"
	"github.com/specialistvlad/gridflow/internal/registry"
)

//go:embed manifest.hcl
var manifestSrc []byte

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the block type with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterBlock(newBlock, manifestSrc, "printsink/manifest.hcl")
}

type sink struct{}

func newBlock() block.Block { return &sink{} }

func (s *sink) Outputs() []block.OutputSpec { return nil }

func (s *sink) AcceptsBatch() bool { return false }

func (s *sink) Run(_ context.Context, fields map[string]any) (map[string]any, error) {
	prefix, _ := fields["prefix"].(string)
	if prefix != "" {
		prefix += " "
	}

	switch v := fields["value"].(type) {
	case nil:
		fmt.Printf("%s(null)\n", prefix)
	case map[string]any:
		// Sort keys for consistent output
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%s%s = %v\n", prefix, k, v[k])
		}
	default:
		fmt.Printf("%s%v\n", prefix, v)
	}
	return map[string]any{}, nil
}
