package executor

import (
	"fmt"

	"github.com/specialistvlad/gridflow/internal/selector"
)

// resolveItemFields materializes a step's fields as seen by batch item i.
// Selectors collapse to the single value that item carries.
func resolveItemFields(fields map[string]selector.FieldValue, ec *executionContext, i int) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for name, fv := range fields {
		v, err := resolveItemValue(fv, ec, i)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

func resolveItemValue(fv selector.FieldValue, ec *executionContext, i int) (any, error) {
	switch v := fv.(type) {
	case selector.Literal:
		return v.Value, nil
	case selector.Selector:
		return ec.resolveItem(v, i)
	case selector.List:
		out := make([]any, len(v))
		for idx, elem := range v {
			resolved, err := resolveItemValue(elem, ec, i)
			if err != nil {
				return nil, err
			}
			out[idx] = resolved
		}
		return out, nil
	case selector.Map:
		out := make(map[string]any, len(v))
		for key, elem := range v {
			resolved, err := resolveItemValue(elem, ec, i)
			if err != nil {
				return nil, err
			}
			out[key] = resolved
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported field value %T", fv)
	}
}

// resolveBatchFields materializes a step's fields for a batch-aware block.
// Selectors over per-item values arrive as whole index-aligned slices;
// broadcast values and literals stay scalar.
func resolveBatchFields(fields map[string]selector.FieldValue, ec *executionContext) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for name, fv := range fields {
		v, err := resolveBatchValue(fv, ec)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

func resolveBatchValue(fv selector.FieldValue, ec *executionContext) (any, error) {
	switch v := fv.(type) {
	case selector.Literal:
		return v.Value, nil
	case selector.Selector:
		return ec.resolveBatch(v)
	case selector.List:
		out := make([]any, len(v))
		for idx, elem := range v {
			resolved, err := resolveBatchValue(elem, ec)
			if err != nil {
				return nil, err
			}
			out[idx] = resolved
		}
		return out, nil
	case selector.Map:
		out := make(map[string]any, len(v))
		for key, elem := range v {
			resolved, err := resolveBatchValue(elem, ec)
			if err != nil {
				return nil, err
			}
			out[key] = resolved
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported field value %T", fv)
	}
}
