package dag

import (
	"context"
	"fmt"
	"sort"

	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/registry"
	"github.com/specialistvlad/gridflow/internal/schema"
	"github.com/specialistvlad/gridflow/internal/selector"
)

// Build constructs a complete, validated dependency graph from a workflow
// document. It parses every field into the selector AST, links
// producer-to-consumer edges, resolves the workflow's output bindings, and
// rejects dangling references and cycles.
func Build(ctx context.Context, doc *schema.Document, reg *registry.Registry) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: starting graph construction.", "steps", len(doc.Steps))

	graph := &Graph{Nodes: make(map[string]*Node, len(doc.Steps))}

	// First pass: create one node per step with parsed fields.
	if err := createNodes(doc, reg, graph); err != nil {
		return nil, err
	}
	logger.Debug("Build: node creation complete.", "node_count", len(graph.Nodes))

	// Second pass: resolve selectors and link edges.
	if err := linkNodes(doc, graph); err != nil {
		return nil, err
	}
	logger.Debug("Build: node linking complete.")

	// Third pass: resolve the workflow's declared outputs.
	if err := bindOutputs(doc, graph); err != nil {
		return nil, err
	}

	if err := graph.detectCycles(); err != nil {
		return nil, err
	}
	logger.Debug("Build: cycle detection passed.")

	return graph, nil
}

// createNodes parses each step's fields and attaches the block definition.
func createNodes(doc *schema.Document, reg *registry.Registry, graph *Graph) error {
	for i, step := range doc.Steps {
		def, ok := reg.Definition(step.Type)
		if !ok {
			return fmt.Errorf("step %q uses unregistered block type %q", step.Name, step.Type)
		}

		fields := make(map[string]selector.FieldValue, len(step.Fields))
		for name, raw := range step.Fields {
			if _, declared := def.Fields[name]; !declared {
				return fmt.Errorf("step %q sets field %q not declared by block type %q",
					step.Name, name, step.Type)
			}
			parsed, err := selector.Parse(name, raw)
			if err != nil {
				return err
			}
			fields[name] = parsed
		}
		for name, fieldDef := range def.Fields {
			if _, set := fields[name]; set {
				continue
			}
			if fieldDef.HasDefault {
				fields[name] = selector.Literal{Value: fieldDef.Default}
				continue
			}
			if !fieldDef.Optional {
				return fmt.Errorf("step %q is missing required field %q", step.Name, name)
			}
		}

		graph.Nodes[step.Name] = &Node{
			Step:       step,
			Definition: def,
			Fields:     fields,
			Index:      i,
			Deps:       make(map[string]*Node),
			Dependents: make(map[string]*Node),
		}
		graph.Order = append(graph.Order, step.Name)
	}
	return nil
}

// linkNodes walks every parsed field, checks each selector against the
// declared inputs and step outputs, and records producer->consumer edges.
func linkNodes(doc *schema.Document, graph *Graph) error {
	for _, name := range graph.Order {
		node := graph.Nodes[name]
		for _, fieldName := range sortedFieldNames(node.Fields) {
			for _, sel := range node.Fields[fieldName].Selectors() {
				if err := linkSelector(doc, graph, node, sel); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func linkSelector(doc *schema.Document, graph *Graph, node *Node, sel selector.Selector) error {
	switch sel.Scope {
	case selector.ScopeInput:
		if _, ok := doc.Input(sel.Name); !ok {
			return &UnknownReferenceError{Step: node.Step.Name, Selector: sel.Raw}
		}
		return nil
	case selector.ScopeStepOutput:
		producer, ok := graph.Nodes[sel.Step]
		if !ok {
			return &UnknownReferenceError{Step: node.Step.Name, Selector: sel.Raw}
		}
		if _, ok := producer.Definition.Outputs[sel.Name]; !ok {
			return &UnknownReferenceError{Step: node.Step.Name, Selector: sel.Raw}
		}
		if producer.Step.Name == node.Step.Name {
			return &CyclicWorkflowError{Cycle: []string{node.Step.Name, node.Step.Name}}
		}
		if _, exists := node.Deps[producer.Step.Name]; !exists {
			node.Deps[producer.Step.Name] = producer
			producer.Dependents[node.Step.Name] = node
		}
		return nil
	default:
		return fmt.Errorf("step %q: selector %q has unknown scope", node.Step.Name, sel.Raw)
	}
}

// bindOutputs parses and resolves the workflow's output selectors.
func bindOutputs(doc *schema.Document, graph *Graph) error {
	for _, out := range doc.Outputs {
		sel, err := selector.ParseReference(out.Name, out.Selector)
		if err != nil {
			return err
		}
		switch sel.Scope {
		case selector.ScopeInput:
			if _, ok := doc.Input(sel.Name); !ok {
				return &UnknownReferenceError{Selector: sel.Raw}
			}
		case selector.ScopeStepOutput:
			producer, ok := graph.Nodes[sel.Step]
			if !ok {
				return &UnknownReferenceError{Selector: sel.Raw}
			}
			if _, ok := producer.Definition.Outputs[sel.Name]; !ok {
				return &UnknownReferenceError{Selector: sel.Raw}
			}
		}
		graph.Outputs = append(graph.Outputs, OutputBinding{Name: out.Name, Selector: sel})
	}
	return nil
}

func sortedFieldNames(fields map[string]selector.FieldValue) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
