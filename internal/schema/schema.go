// Package schema models the raw workflow specification document and checks
// its structural well-formedness. The document is a JSON object with declared
// inputs, a list of steps with free-form fields, and named output bindings.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/specialistvlad/gridflow/internal/kind"
)

// Input type tags understood by the engine. Image inputs are batch-shaped;
// parameter inputs are broadcast to the whole batch.
const (
	InputTypeImage     = "InferenceImage"
	InputTypeParameter = "InferenceParameter"
)

// Document is the top-level workflow specification.
type Document struct {
	Version string              `json:"version,omitempty"`
	Inputs  []*InputDefinition  `json:"inputs"`
	Steps   []*StepManifest     `json:"steps"`
	Outputs []*OutputDefinition `json:"outputs"`
}

// InputDefinition declares a runtime input of the workflow.
type InputDefinition struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// Batch reports whether the input is batch-shaped (one entry per batch item)
// rather than broadcast.
func (d *InputDefinition) Batch() bool {
	return d.Type == InputTypeImage
}

// Kinds returns the kind set the input produces. Image inputs produce IMAGE;
// parameter inputs are untyped and match any consumer.
func (d *InputDefinition) Kinds() kind.Set {
	if d.Type == InputTypeImage {
		return kind.NewSet(kind.Image)
	}
	return kind.NewSet(kind.Wildcard)
}

// StepManifest is one processing step: a block type tag, a unique name, and
// the block's fields. Everything in the step object other than "type" and
// "name" is a field.
type StepManifest struct {
	Type   string
	Name   string
	Fields map[string]any
}

// UnmarshalJSON splits the reserved "type" and "name" keys from the free-form
// block fields.
func (m *StepManifest) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	typeTag, _ := raw["type"].(string)
	name, _ := raw["name"].(string)
	delete(raw, "type")
	delete(raw, "name")
	m.Type = typeTag
	m.Name = name
	m.Fields = raw
	return nil
}

// MarshalJSON restores the wire shape with "type" and "name" folded back in.
func (m *StepManifest) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Fields)+2)
	for k, v := range m.Fields {
		out[k] = v
	}
	out["type"] = m.Type
	out["name"] = m.Name
	return json.Marshal(out)
}

// OutputDefinition binds a workflow output name to a selector.
type OutputDefinition struct {
	Name     string `json:"name"`
	Selector string `json:"selector"`
}

// Parse decodes and structurally validates a workflow document.
func Parse(raw []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding workflow document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks structural well-formedness: unique names, non-empty type
// tags and output bindings. Selector resolution and kind checks happen later,
// during graph construction and compilation.
func (d *Document) Validate() error {
	inputNames := make(map[string]struct{}, len(d.Inputs))
	for _, in := range d.Inputs {
		if in.Name == "" {
			return fmt.Errorf("workflow input declared without a name")
		}
		if in.Type != InputTypeImage && in.Type != InputTypeParameter {
			return fmt.Errorf("workflow input %q has unknown type %q", in.Name, in.Type)
		}
		if _, dup := inputNames[in.Name]; dup {
			return fmt.Errorf("duplicate workflow input name %q", in.Name)
		}
		inputNames[in.Name] = struct{}{}
	}

	stepNames := make(map[string]struct{}, len(d.Steps))
	for _, step := range d.Steps {
		if step.Name == "" {
			return fmt.Errorf("step declared without a name")
		}
		if step.Type == "" {
			return fmt.Errorf("step %q declared without a type", step.Name)
		}
		if _, dup := stepNames[step.Name]; dup {
			return fmt.Errorf("duplicate step name %q", step.Name)
		}
		stepNames[step.Name] = struct{}{}
	}

	outputNames := make(map[string]struct{}, len(d.Outputs))
	for _, out := range d.Outputs {
		if out.Name == "" {
			return fmt.Errorf("workflow output declared without a name")
		}
		if out.Selector == "" {
			return fmt.Errorf("workflow output %q declared without a selector", out.Name)
		}
		if _, dup := outputNames[out.Name]; dup {
			return fmt.Errorf("duplicate workflow output name %q", out.Name)
		}
		outputNames[out.Name] = struct{}{}
	}
	return nil
}

// Input returns the declared input with the given name.
func (d *Document) Input(name string) (*InputDefinition, bool) {
	for _, in := range d.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return nil, false
}

// Step returns the declared step with the given name.
func (d *Document) Step(name string) (*StepManifest, bool) {
	for _, s := range d.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}
