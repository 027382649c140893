// Package compiler turns a validated dependency graph into an execution
// plan: steps arranged into scheduling levels, every edge kind-checked, the
// whole result frozen into an immutable CompiledPlan that may be cached and
// shared across concurrent runs.
package compiler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/specialistvlad/gridflow/internal/dag"
	"github.com/specialistvlad/gridflow/internal/registry"
	"github.com/specialistvlad/gridflow/internal/schema"
	"github.com/specialistvlad/gridflow/internal/selector"
)

// CompiledStep is one step frozen into the plan.
type CompiledStep struct {
	// Name and Type identify the step and its block type.
	Name string
	Type string
	// Fields is the step's parsed field AST, defaults applied.
	Fields map[string]selector.FieldValue
	// Definition is the block type's registered manifest.
	Definition *registry.Definition
	// Producers are the names of the steps this step consumes from, sorted.
	Producers []string
	// Level is the index of the scheduling level the step belongs to.
	Level int
}

// CompiledPlan is the validated, ordered, immutable representation of a
// workflow. It holds no per-run state and is safe to share across
// concurrently executing runs.
type CompiledPlan struct {
	// Levels holds the scheduling levels in execution order. Steps within a
	// level have no dependency among them and keep declaration order.
	Levels [][]*CompiledStep
	// Inputs are the workflow's declared runtime inputs.
	Inputs []*schema.InputDefinition
	// Outputs bind workflow output names to their selectors.
	Outputs []dag.OutputBinding
	// Hash is the sha256 of the canonical source document.
	Hash string
}

// StepCount returns the total number of compiled steps.
func (p *CompiledPlan) StepCount() int {
	n := 0
	for _, level := range p.Levels {
		n += len(level)
	}
	return n
}

// Steps returns all compiled steps in level order.
func (p *CompiledPlan) Steps() []*CompiledStep {
	out := make([]*CompiledStep, 0, p.StepCount())
	for _, level := range p.Levels {
		out = append(out, level...)
	}
	return out
}

// TypeNamePairs returns the ordered "type:name" identity of every step, the
// basis of the telemetry resource id.
func (p *CompiledPlan) TypeNamePairs() []string {
	out := make([]string, 0, p.StepCount())
	for _, step := range p.Steps() {
		out = append(out, step.Type+":"+step.Name)
	}
	return out
}

// DocumentHash computes the canonical hash of a workflow document. Two
// documents with identical content hash identically regardless of the field
// order they were written in, because map keys serialize sorted.
func DocumentHash(doc *schema.Document) (string, error) {
	canonical, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("hashing workflow document: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
