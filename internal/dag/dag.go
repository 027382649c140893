// Package dag builds the dependency graph of a workflow: one node per step,
// one directed edge per resolved selector from producer to consumer. It
// detects dangling references and cycles before any plan is produced.
package dag

import (
	"sort"

	"github.com/specialistvlad/gridflow/internal/registry"
	"github.com/specialistvlad/gridflow/internal/schema"
	"github.com/specialistvlad/gridflow/internal/selector"
)

// Node is one step in the graph together with its parsed fields.
type Node struct {
	// Step is the raw manifest from the document.
	Step *schema.StepManifest
	// Definition is the registered manifest of the step's block type.
	Definition *registry.Definition
	// Fields holds the step's fields parsed into the FieldValue AST.
	Fields map[string]selector.FieldValue
	// Index is the step's declaration position, used for deterministic
	// ordering downstream.
	Index int

	// Deps are the producer nodes this node consumes from.
	Deps map[string]*Node
	// Dependents are the consumer nodes reading this node's outputs.
	Dependents map[string]*Node
}

// OutputBinding is a workflow output resolved to its parsed selector.
type OutputBinding struct {
	Name     string
	Selector selector.Selector
}

// Graph is the validated dependency graph of one workflow document.
type Graph struct {
	Nodes map[string]*Node
	// Order holds step names in declaration order.
	Order []string
	// Outputs are the workflow's declared output bindings.
	Outputs []OutputBinding
}

// Producers returns the names of a node's producers in sorted order.
func (n *Node) Producers() []string {
	out := make([]string, 0, len(n.Deps))
	for name := range n.Deps {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// detectCycles runs a DFS over producer edges, tracking the recursion stack
// so a back-edge can be reported as the full cycle in order. Nodes are
// visited in declaration order to keep the reported cycle independent of map
// iteration.
func (g *Graph) detectCycles() error {
	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[string]int, len(g.Nodes))
	var stack []string

	var visit func(n *Node) error
	visit = func(n *Node) error {
		state[n.Step.Name] = visiting
		stack = append(stack, n.Step.Name)

		for _, depName := range n.Producers() {
			dep := g.Nodes[depName]
			switch state[depName] {
			case visiting:
				// Back-edge: slice the stack from the first occurrence of
				// the dependency to close the cycle.
				start := 0
				for i, name := range stack {
					if name == depName {
						start = i
						break
					}
				}
				cycle := append(append([]string{}, stack[start:]...), depName)
				return &CyclicWorkflowError{Cycle: cycle}
			case unvisited:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[n.Step.Name] = visited
		return nil
	}

	for _, name := range g.Order {
		if state[name] == unvisited {
			if err := visit(g.Nodes[name]); err != nil {
				return err
			}
		}
	}
	return nil
}
