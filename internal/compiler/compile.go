package compiler

import (
	"context"
	"fmt"

	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/dag"
	"github.com/specialistvlad/gridflow/internal/kind"
	"github.com/specialistvlad/gridflow/internal/registry"
	"github.com/specialistvlad/gridflow/internal/schema"
	"github.com/specialistvlad/gridflow/internal/selector"
)

// Compile validates a workflow document and freezes it into a CompiledPlan.
// Compilation is pure: the same document always yields a plan with identical
// level structure and step ordering, and a failed compilation leaves no
// partial plan behind.
func Compile(ctx context.Context, doc *schema.Document, reg *registry.Registry) (*CompiledPlan, error) {
	logger := ctxlog.FromContext(ctx)

	if err := doc.Validate(); err != nil {
		return nil, err
	}

	graph, err := dag.Build(ctx, doc, reg)
	if err != nil {
		return nil, err
	}

	if err := checkKinds(doc, graph); err != nil {
		return nil, err
	}
	logger.Debug("Compile: kind compatibility checks passed.")

	levels := layer(graph)
	logger.Debug("Compile: steps layered into levels.", "levels", len(levels), "steps", len(graph.Nodes))

	hash, err := DocumentHash(doc)
	if err != nil {
		return nil, err
	}

	return &CompiledPlan{
		Levels:  levels,
		Inputs:  doc.Inputs,
		Outputs: graph.Outputs,
		Hash:    hash,
	}, nil
}

// checkKinds verifies every selector edge: the producing socket's kind set
// must intersect the consuming field's accepted set. A selector carrying a
// property accessor extracts an untyped component, so the socket-level check
// does not apply to it.
func checkKinds(doc *schema.Document, graph *dag.Graph) error {
	for _, name := range graph.Order {
		node := graph.Nodes[name]
		for fieldName, fv := range node.Fields {
			fieldDef := node.Definition.Fields[fieldName]
			for _, sel := range fv.Selectors() {
				if sel.Property != "" {
					continue
				}
				produced, producer := producedKinds(doc, graph, sel)
				if !produced.Compatible(fieldDef.Kinds) {
					return &KindMismatchError{
						ConsumerStep: node.Step.Name,
						Field:        fieldName,
						Accepted:     fieldDef.Kinds,
						Producer:     producer,
						Produced:     produced,
					}
				}
			}
		}
	}
	return nil
}

func producedKinds(doc *schema.Document, graph *dag.Graph, sel selector.Selector) (kind.Set, string) {
	if sel.Scope == selector.ScopeInput {
		input, _ := doc.Input(sel.Name)
		return input.Kinds(), sel.Raw
	}
	producer := graph.Nodes[sel.Step]
	return producer.Definition.Outputs[sel.Name].Kinds, sel.Raw
}

// layer arranges the graph into scheduling levels by repeated removal of
// steps whose producers are already placed. Ties within a level keep
// declaration order, which makes the result deterministic.
func layer(graph *dag.Graph) [][]*CompiledStep {
	placed := make(map[string]int, len(graph.Nodes))
	var levels [][]*CompiledStep

	remaining := len(graph.Nodes)
	for remaining > 0 {
		levelIndex := len(levels)
		var level []*CompiledStep

		for _, name := range graph.Order {
			if _, done := placed[name]; done {
				continue
			}
			node := graph.Nodes[name]
			ready := true
			for dep := range node.Deps {
				if depLevel, ok := placed[dep]; !ok || depLevel >= levelIndex {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}
			level = append(level, &CompiledStep{
				Name:       node.Step.Name,
				Type:       node.Step.Type,
				Fields:     node.Fields,
				Definition: node.Definition,
				Producers:  node.Producers(),
				Level:      levelIndex,
			})
		}

		if len(level) == 0 {
			// Unreachable: dag.Build rejects cycles before compilation.
			panic(fmt.Sprintf("compiler: no step became ready with %d steps unplaced", remaining))
		}
		for _, step := range level {
			placed[step.Name] = levelIndex
		}
		remaining -= len(level)
		levels = append(levels, level)
	}
	return levels
}
