// Package enginetest provides scripted blocks and a pre-populated registry
// for compiler and executor tests.
package enginetest

import (
	"context"

	"github.com/specialistvlad/gridflow/internal/block"
	"github.com/specialistvlad/gridflow/internal/kind"
	"github.com/specialistvlad/gridflow/internal/registry"
)

// ScriptedBlock is a block whose behavior is supplied by the test.
type ScriptedBlock struct {
	Outs  []block.OutputSpec
	Batch bool
	RunFn func(ctx context.Context, fields map[string]any) (map[string]any, error)
}

func (b *ScriptedBlock) Outputs() []block.OutputSpec { return b.Outs }
func (b *ScriptedBlock) AcceptsBatch() bool          { return b.Batch }
func (b *ScriptedBlock) Run(ctx context.Context, fields map[string]any) (map[string]any, error) {
	if b.RunFn == nil {
		return map[string]any{}, nil
	}
	return b.RunFn(ctx, fields)
}

const detectorManifest = `
block "Detector" {
  description = "scripted object detector"

  field "images" {
    kinds = ["IMAGE"]
  }

  output "predictions" {
    kinds = ["DETECTIONS"]
  }
}
`

const filterManifest = `
block "DetectionFilter" {
  field "predictions" {
    kinds = ["DETECTIONS"]
  }
  field "threshold" {
    kinds    = ["NUMBER"]
    optional = true
    default  = 0.5
  }

  output "predictions" {
    kinds = ["DETECTIONS"]
  }
}
`

const classifierManifest = `
block "SizeClassifier" {
  batch = true

  field "predictions" {
    kinds = ["DETECTIONS"]
  }

  output "classification" {
    kinds = ["CLASSIFICATION"]
  }
}
`

const sinkManifest = `
block "Sink" {
  field "value" {
    kinds = ["*"]
  }
}
`

// Detection builds a prediction entry in the shape scripted detectors emit.
func Detection(class string, confidence float64) map[string]any {
	return map[string]any{"class": class, "confidence": confidence}
}

// NewRegistry returns a registry with the standard scripted block types:
//
//	Detector        IMAGE -> DETECTIONS, per item
//	DetectionFilter DETECTIONS -> DETECTIONS, per item, default threshold
//	SizeClassifier  DETECTIONS -> CLASSIFICATION, batch-accepting
//	Sink            wildcard consumer, no outputs
func NewRegistry() *registry.Registry {
	r := registry.New(kind.NewRegistry())

	r.RegisterBlock(func() block.Block {
		return &ScriptedBlock{
			Outs: []block.OutputSpec{{Name: "predictions", Kinds: kind.NewSet(kind.Detections)}},
			RunFn: func(_ context.Context, fields map[string]any) (map[string]any, error) {
				return map[string]any{
					"predictions": []any{Detection("object", 0.9)},
				}, nil
			},
		}
	}, []byte(detectorManifest), "detector.hcl")

	r.RegisterBlock(func() block.Block {
		return &ScriptedBlock{
			Outs: []block.OutputSpec{{Name: "predictions", Kinds: kind.NewSet(kind.Detections)}},
			RunFn: func(_ context.Context, fields map[string]any) (map[string]any, error) {
				threshold, _ := fields["threshold"].(float64)
				kept := []any{}
				if preds, ok := fields["predictions"].([]any); ok {
					for _, p := range preds {
						det, ok := p.(map[string]any)
						if !ok {
							continue
						}
						if conf, _ := det["confidence"].(float64); conf >= threshold {
							kept = append(kept, det)
						}
					}
				}
				return map[string]any{"predictions": kept}, nil
			},
		}
	}, []byte(filterManifest), "filter.hcl")

	r.RegisterBlock(func() block.Block {
		return &ScriptedBlock{
			Batch: true,
			Outs:  []block.OutputSpec{{Name: "classification", Kinds: kind.NewSet(kind.Classification)}},
			RunFn: func(_ context.Context, fields map[string]any) (map[string]any, error) {
				batch, _ := fields["predictions"].([]any)
				out := make([]any, len(batch))
				for i, item := range batch {
					preds, _ := item.([]any)
					switch len(preds) {
					case 0:
						out[i] = "none"
					case 1:
						out[i] = "single"
					default:
						out[i] = "multiple"
					}
				}
				return map[string]any{"classification": out}, nil
			},
		}
	}, []byte(classifierManifest), "classifier.hcl")

	r.RegisterBlock(func() block.Block {
		return &ScriptedBlock{}
	}, []byte(sinkManifest), "sink.hcl")

	return r
}

// RegisterScripted registers a custom scripted block under the given
// manifest.
func RegisterScripted(r *registry.Registry, manifest string, factory func() block.Block) {
	r.RegisterBlock(factory, []byte(manifest), "scripted.hcl")
}
