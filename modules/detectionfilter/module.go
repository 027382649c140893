package detectionfilter

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
	r.RegisterBlock(newBlock, manifestSrc, "detectionfilter/manifest.hcl")
}

type filter struct{}

func newBlock() block.Block { return &filter{} }

func (f *filter) Outputs() []block.OutputSpec {
	return []block.OutputSpec{{Name: "predictions", Kinds: kind.NewSet(kind.Detections)}}
}

func (f *filter) AcceptsBatch() bool { return false }

func (f *filter) Run(_ context.Context, fields map[string]any) (map[string]any, error) {
	threshold := numberField(fields, "threshold", 0.5)
	allowed := classAllowList(fields["classes"])

	kept := []any{}
	preds, _ := fields["predictions"].([]any)
	for _, p := range preds {
		det, ok := p.(map[string]any)
		if !ok {
			continue
		}
		conf, _ := toFloat(det["confidence"])
		if conf < threshold {
			continue
		}
		if allowed != nil {
			class, _ := det["class"].(string)
			if !allowed[class] {
				continue
			}
		}
		kept = append(kept, det)
	}
	return map[string]any{"predictions": kept}, nil
}

// classAllowList accepts the class filter in the shapes JSON documents
// produce: a list of strings or a single string.
func classAllowList(v any) map[string]bool {
	switch classes := v.(type) {
	case nil:
		return nil
	case string:
		return map[string]bool{classes: true}
	case []any:
		allowed := make(map[string]bool, len(classes))
		for _, c := range classes {
			if s, ok := c.(string); ok {
				allowed[s] = true
			}
		}
		return allowed
	default:
		return nil
	}
}

func numberField(fields map[string]any, name string, fallback float64) float64 {
	if v, ok := fields[name]; ok {
		if f, ok := toFloat(v); ok {
			return f
		}
	}
	return fallback
}

// toFloat widens the numeric types JSON decoding and manifest defaults can
// deliver.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
