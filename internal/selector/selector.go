// Package selector parses step field values into a typed AST. A field value
// is either a literal carried through untouched, or a selector referencing a
// workflow input ($inputs.<name>) or a prior step's output
// ($steps.<step>.<output>), optionally followed by a property accessor.
// Lists and maps are parsed recursively so selectors may appear at any depth.
package selector

import (
	"fmt"
	"sort"
	"strings"
)

// Scope identifies what a selector points at.
type Scope int

const (
	// ScopeInput targets a workflow-declared input.
	ScopeInput Scope = iota
	// ScopeStepOutput targets a declared output of another step.
	ScopeStepOutput
)

func (s Scope) String() string {
	switch s {
	case ScopeInput:
		return "input"
	case ScopeStepOutput:
		return "step output"
	default:
		return "unknown"
	}
}

const (
	inputsPrefix = "$inputs."
	stepsPrefix  = "$steps."
)

// FieldValue is the tagged union of parsed field values. Implementations are
// Literal, Selector, List and Map.
type FieldValue interface {
	// Selectors returns every selector reachable from this value, in
	// deterministic order.
	Selectors() []Selector
}

// Literal is a field value used verbatim at run time.
type Literal struct {
	Value any
}

// Selectors implements FieldValue.
func (Literal) Selectors() []Selector { return nil }

// Selector is a declarative reference to an input or a step output.
type Selector struct {
	Scope Scope
	// Step is the producing step's name. Empty for input-scoped selectors.
	Step string
	// Name is the input name or the producer's output name.
	Name string
	// Property is an optional accessor applied to the resolved value.
	Property string
	// Raw preserves the selector exactly as written, for diagnostics.
	Raw string
}

// Selectors implements FieldValue.
func (s Selector) Selectors() []Selector { return []Selector{s} }

// List is a field value holding an ordered collection of parsed values.
type List []FieldValue

// Selectors implements FieldValue.
func (l List) Selectors() []Selector {
	var out []Selector
	for _, v := range l {
		out = append(out, v.Selectors()...)
	}
	return out
}

// Map is a field value holding named parsed values.
type Map map[string]FieldValue

// Selectors implements FieldValue. Keys are visited in sorted order so the
// result is deterministic.
func (m Map) Selectors() []Selector {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []Selector
	for _, k := range keys {
		out = append(out, m[k].Selectors()...)
	}
	return out
}

// MalformedSelectorError reports a value that starts with a reserved selector
// prefix but does not form a well-formed reference.
type MalformedSelectorError struct {
	Field string
	Value string
}

func (e *MalformedSelectorError) Error() string {
	return fmt.Sprintf("malformed selector in field %q: %q", e.Field, e.Value)
}

// Parse converts a raw decoded JSON value into the FieldValue AST. The field
// name is carried for diagnostics only.
func Parse(field string, raw any) (FieldValue, error) {
	switch v := raw.(type) {
	case string:
		if strings.HasPrefix(v, inputsPrefix) || strings.HasPrefix(v, stepsPrefix) {
			return parseSelector(field, v)
		}
		return Literal{Value: v}, nil
	case []any:
		list := make(List, len(v))
		for i, item := range v {
			parsed, err := Parse(field, item)
			if err != nil {
				return nil, err
			}
			list[i] = parsed
		}
		return list, nil
	case map[string]any:
		m := make(Map, len(v))
		for k, item := range v {
			parsed, err := Parse(field, item)
			if err != nil {
				return nil, err
			}
			m[k] = parsed
		}
		return m, nil
	default:
		return Literal{Value: raw}, nil
	}
}

// parseSelector splits a reserved-prefix string into its typed form.
//
//	$inputs.<name>[.<property>]
//	$steps.<step>.<output>[.<property>]
func parseSelector(field, raw string) (Selector, error) {
	malformed := func() (Selector, error) {
		return Selector{}, &MalformedSelectorError{Field: field, Value: raw}
	}

	if strings.HasPrefix(raw, inputsPrefix) {
		parts := strings.Split(raw[len(inputsPrefix):], ".")
		if len(parts) < 1 || len(parts) > 2 || hasEmptySegment(parts) {
			return malformed()
		}
		sel := Selector{Scope: ScopeInput, Name: parts[0], Raw: raw}
		if len(parts) == 2 {
			sel.Property = parts[1]
		}
		return sel, nil
	}

	parts := strings.Split(raw[len(stepsPrefix):], ".")
	if len(parts) < 2 || len(parts) > 3 || hasEmptySegment(parts) {
		return malformed()
	}
	sel := Selector{Scope: ScopeStepOutput, Step: parts[0], Name: parts[1], Raw: raw}
	if len(parts) == 3 {
		sel.Property = parts[2]
	}
	return sel, nil
}

// ParseReference parses a string that must be a selector, such as a workflow
// output binding. A non-selector string is malformed here.
func ParseReference(field, raw string) (Selector, error) {
	if !strings.HasPrefix(raw, inputsPrefix) && !strings.HasPrefix(raw, stepsPrefix) {
		return Selector{}, &MalformedSelectorError{Field: field, Value: raw}
	}
	return parseSelector(field, raw)
}

func hasEmptySegment(parts []string) bool {
	for _, p := range parts {
		if p == "" {
			return true
		}
	}
	return false
}
