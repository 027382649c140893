package registry

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/gridflow/internal/kind"
)

// Manifest HCL shape:
//
//	block "DetectionFilter" {
//	  description = "drops predictions below a confidence threshold"
//	  batch       = false
//
//	  field "predictions" {
//	    kinds = ["DETECTIONS"]
//	  }
//	  field "threshold" {
//	    kinds    = ["NUMBER"]
//	    optional = true
//	    default  = 0.5
//	  }
//
//	  output "predictions" {
//	    kinds = ["DETECTIONS"]
//	  }
//	}
type manifestFile struct {
	Block *blockManifest `hcl:"block,block"`
}

type blockManifest struct {
	Type        string            `hcl:"type,label"`
	Description string            `hcl:"description,optional"`
	Batch       bool              `hcl:"batch,optional"`
	Fields      []*fieldManifest  `hcl:"field,block"`
	Outputs     []*outputManifest `hcl:"output,block"`
}

type fieldManifest struct {
	Name     string     `hcl:"name,label"`
	Kinds    []string   `hcl:"kinds"`
	Optional bool       `hcl:"optional,optional"`
	Default  *cty.Value `hcl:"default,optional"`
}

type outputManifest struct {
	Name  string   `hcl:"name,label"`
	Kinds []string `hcl:"kinds"`
}

// parseManifest decodes a block manifest and resolves its kind names against
// the catalog.
func parseManifest(src []byte, filename string, kinds *kind.Registry) (*Definition, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, diags
	}

	var manifest manifestFile
	if diags := gohcl.DecodeBody(file.Body, nil, &manifest); diags.HasErrors() {
		return nil, diags
	}
	if manifest.Block == nil {
		return nil, fmt.Errorf("no block definition found")
	}

	raw := manifest.Block
	def := &Definition{
		Type:         raw.Type,
		Description:  raw.Description,
		AcceptsBatch: raw.Batch,
		Fields:       make(map[string]*FieldDefinition, len(raw.Fields)),
		Outputs:      make(map[string]*OutputDefinition, len(raw.Outputs)),
	}

	for _, f := range raw.Fields {
		if _, dup := def.Fields[f.Name]; dup {
			return nil, fmt.Errorf("duplicate field %q", f.Name)
		}
		set, err := kinds.ParseSet(f.Kinds)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		fieldDef := &FieldDefinition{Name: f.Name, Kinds: set, Optional: f.Optional}
		if f.Default != nil {
			if !f.Optional {
				return nil, fmt.Errorf("field %q declares a default but is not optional", f.Name)
			}
			value, err := goValue(*f.Default)
			if err != nil {
				return nil, fmt.Errorf("field %q default: %w", f.Name, err)
			}
			fieldDef.Default = value
			fieldDef.HasDefault = true
		}
		def.Fields[f.Name] = fieldDef
	}

	for _, o := range raw.Outputs {
		if _, dup := def.Outputs[o.Name]; dup {
			return nil, fmt.Errorf("duplicate output %q", o.Name)
		}
		set, err := kinds.ParseSet(o.Kinds)
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", o.Name, err)
		}
		def.Outputs[o.Name] = &OutputDefinition{Name: o.Name, Kinds: set}
	}

	return def, nil
}

// goValue converts a manifest cty.Value into the plain Go representation the
// executor hands to blocks.
func goValue(val cty.Value) (any, error) {
	if !val.IsKnown() || val.IsNull() {
		return nil, nil
	}
	ty := val.Type()
	switch {
	case ty == cty.String:
		return val.AsString(), nil
	case ty == cty.Number:
		f, _ := val.AsBigFloat().Float64()
		return f, nil
	case ty == cty.Bool:
		return val.True(), nil
	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any)
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			converted, err := goValue(v)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = converted
		}
		return out, nil
	case ty.IsTupleType() || ty.IsListType():
		var out []any
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			converted, err := goValue(v)
			if err != nil {
				return nil, err
			}
			out = append(out, converted)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported manifest value type %s", ty.FriendlyName())
	}
}
