package executor

import (
	"sync"

	"github.com/specialistvlad/gridflow/internal/compiler"
	"github.com/specialistvlad/gridflow/internal/selector"
)

// refKey identifies one addressable value in the run: a workflow input or a
// named output of a step.
type refKey struct {
	scope selector.Scope
	step  string
	name  string
}

// executionContext is the single shared value store of one run. Inputs are
// bound once at construction; step outputs are committed atomically, all
// outputs of a step in one critical section, so readers never observe a step
// half-committed.
type executionContext struct {
	batchSize int

	mu     sync.RWMutex
	values map[refKey]Value
}

// newExecutionContext binds the caller's runtime inputs against the plan's
// declared inputs. Batch inputs must agree on length; that length becomes
// the batch size of the run. A run with no batch inputs executes with a
// batch size of one.
func newExecutionContext(plan *compiler.CompiledPlan, inputs RunInput) (*executionContext, error) {
	ec := &executionContext{
		batchSize: 1,
		values:    make(map[refKey]Value, len(plan.Inputs)),
	}

	sized := false
	for _, def := range plan.Inputs {
		raw, ok := inputs[def.Name]
		if !ok {
			return nil, &MissingInputError{Input: def.Name}
		}
		key := refKey{scope: selector.ScopeInput, name: def.Name}
		if !def.Batch() {
			ec.values[key] = Broadcast(raw)
			continue
		}
		items, ok := raw.([]any)
		if !ok {
			// A bare value for a batch input is a batch of one.
			items = []any{raw}
		}
		if sized && len(items) != ec.batchSize {
			return nil, &BatchSizeMismatchError{Input: def.Name, Got: len(items), Expected: ec.batchSize}
		}
		ec.batchSize = len(items)
		sized = true
		ec.values[key] = PerItem(items)
	}
	return ec, nil
}

func (ec *executionContext) BatchSize() int { return ec.batchSize }

// commit publishes every output of one step atomically.
func (ec *executionContext) commit(step string, outputs map[string]Value) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	for name, v := range outputs {
		ec.values[refKey{scope: selector.ScopeStepOutput, step: step, name: name}] = v
	}
}

// lookup resolves a selector to its committed value. The property accessor
// is not applied here; callers apply it per item.
func (ec *executionContext) lookup(sel selector.Selector) (Value, error) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	v, ok := ec.values[refKey{scope: sel.Scope, step: sel.Step, name: sel.Name}]
	if !ok {
		return Value{}, &UnresolvedValueError{Reference: sel.Raw}
	}
	return v, nil
}

// resolveItem resolves a selector as seen by batch item i, property applied.
func (ec *executionContext) resolveItem(sel selector.Selector, i int) (any, error) {
	v, err := ec.lookup(sel)
	if err != nil {
		return nil, err
	}
	return property(v.At(i), sel.Property), nil
}

// resolveBatch resolves a selector for a batch-aware consumer: a broadcast
// value stays scalar, a per-item value arrives as the whole index-aligned
// slice. The property accessor applies to each item.
func (ec *executionContext) resolveBatch(sel selector.Selector) (any, error) {
	v, err := ec.lookup(sel)
	if err != nil {
		return nil, err
	}
	if v.IsBroadcast() {
		return property(v.At(0), sel.Property), nil
	}
	items := make([]any, ec.batchSize)
	for i := range items {
		items[i] = property(v.At(i), sel.Property)
	}
	return items, nil
}
