package executor

// Value is a batch-shaped value held by the execution context: either one
// value broadcast to the whole batch, or a list with one entry per batch
// item.
type Value struct {
	broadcast bool
	scalar    any
	items     []any
}

// Broadcast wraps a single value shared by every batch item.
func Broadcast(v any) Value {
	return Value{broadcast: true, scalar: v}
}

// PerItem wraps an index-aligned list with one entry per batch item.
func PerItem(items []any) Value {
	return Value{items: items}
}

// IsBroadcast reports whether the value is shared across the batch.
func (v Value) IsBroadcast() bool { return v.broadcast }

// At returns the value seen by batch item i.
func (v Value) At(i int) any {
	if v.broadcast {
		return v.scalar
	}
	if i < 0 || i >= len(v.items) {
		return nil
	}
	return v.items[i]
}

// Materialize returns the value as an index-aligned slice of batchSize
// entries, repeating a broadcast value.
func (v Value) Materialize(batchSize int) []any {
	if !v.broadcast {
		return v.items
	}
	out := make([]any, batchSize)
	for i := range out {
		out[i] = v.scalar
	}
	return out
}

// property applies a property accessor to a single resolved value. Missing
// properties resolve to nil rather than failing, matching how optional
// prediction attributes behave.
func property(v any, name string) any {
	if name == "" {
		return v
	}
	if m, ok := v.(map[string]any); ok {
		return m[name]
	}
	return nil
}
