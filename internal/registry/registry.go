// Package registry maps block type tags to their implementations and
// manifests. Modules register a Go factory alongside an HCL manifest
// declaring field kind sets, defaults, outputs and batch acceptance; the
// registry validates parity between the two at startup and is immutable
// afterwards.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/specialistvlad/gridflow/internal/block"
	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/kind"
)

// Module is the interface all block modules implement to be registered.
type Module interface {
	Register(r *Registry)
}

// FieldDefinition describes one accepted field of a block type.
type FieldDefinition struct {
	Name     string
	Kinds    kind.Set
	Optional bool
	// Default is injected when the step manifest omits the field. Only
	// meaningful together with Optional.
	Default any
	// HasDefault distinguishes "default is nil" from "no default".
	HasDefault bool
}

// OutputDefinition describes one declared output socket of a block type.
type OutputDefinition struct {
	Name  string
	Kinds kind.Set
}

// Definition is the parsed manifest of a block type.
type Definition struct {
	Type         string
	Description  string
	AcceptsBatch bool
	Fields       map[string]*FieldDefinition
	Outputs      map[string]*OutputDefinition
}

// Registry holds all registered block types for a single application
// instance.
type Registry struct {
	kinds       *kind.Registry
	factories   map[string]block.Factory
	definitions map[string]*Definition
}

// New creates an empty registry validating kind names against the given
// catalog.
func New(kinds *kind.Registry) *Registry {
	return &Registry{
		kinds:       kinds,
		factories:   make(map[string]block.Factory),
		definitions: make(map[string]*Definition),
	}
}

// Kinds exposes the kind catalog the registry validates against.
func (r *Registry) Kinds() *kind.Registry { return r.kinds }

// RegisterBlock registers a block factory together with its HCL manifest
// source. Duplicate registration and unparsable manifests are programmer
// errors and panic, in line with startup validation elsewhere.
func (r *Registry) RegisterBlock(factory block.Factory, manifestSrc []byte, filename string) {
	def, err := parseManifest(manifestSrc, filename, r.kinds)
	if err != nil {
		panic(fmt.Sprintf("registry: invalid manifest %s: %v", filename, err))
	}
	if _, exists := r.factories[def.Type]; exists {
		panic(fmt.Sprintf("registry: block type %q already registered", def.Type))
	}
	slog.Debug("Registering block type.", "type", def.Type, "batch", def.AcceptsBatch)
	r.factories[def.Type] = factory
	r.definitions[def.Type] = def
}

// Definition returns the manifest for a block type.
func (r *Registry) Definition(typeTag string) (*Definition, bool) {
	def, ok := r.definitions[typeTag]
	return def, ok
}

// NewBlock instantiates a fresh block for the given type tag.
func (r *Registry) NewBlock(typeTag string) (block.Block, error) {
	factory, ok := r.factories[typeTag]
	if !ok {
		return nil, fmt.Errorf("unknown block type %q", typeTag)
	}
	return factory(), nil
}

// Types returns the registered type tags in sorted order.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Validate performs a strict parity check between manifests and Go blocks:
// every manifest-declared output must be declared by the Go block and vice
// versa, and the batch flags must agree.
func (r *Registry) Validate(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	var errs []string

	for _, typeTag := range r.Types() {
		def := r.definitions[typeTag]
		blk := r.factories[typeTag]()

		if blk.AcceptsBatch() != def.AcceptsBatch {
			errs = append(errs, fmt.Sprintf(
				"block %q: manifest batch=%t but Go block reports %t",
				typeTag, def.AcceptsBatch, blk.AcceptsBatch()))
		}

		goOutputs := make(map[string]block.OutputSpec)
		for _, out := range blk.Outputs() {
			goOutputs[out.Name] = out
		}
		for name := range goOutputs {
			if _, ok := def.Outputs[name]; !ok {
				errs = append(errs, fmt.Sprintf(
					"block %q: Go block declares output %q missing from manifest", typeTag, name))
			}
		}
		for name, manifestOut := range def.Outputs {
			goOut, ok := goOutputs[name]
			if !ok {
				errs = append(errs, fmt.Sprintf(
					"block %q: manifest declares output %q missing from Go block", typeTag, name))
				continue
			}
			if !manifestOut.Kinds.Compatible(goOut.Kinds) {
				errs = append(errs, fmt.Sprintf(
					"block %q output %q: manifest kinds %s disjoint from Go kinds %s",
					typeTag, name, manifestOut.Kinds, goOut.Kinds))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	logger.Debug("Registry validation passed.", "block_types", len(r.definitions))
	return nil
}
