package compiler

import (
	"context"
	"sync"

	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/registry"
	"github.com/specialistvlad/gridflow/internal/schema"
)

// PlanCache memoizes compiled plans by the canonical hash of their source
// document. Plans are immutable, so a cached plan may be handed to any
// number of concurrent runs.
type PlanCache struct {
	mu    sync.RWMutex
	plans map[string]*CompiledPlan
}

// NewPlanCache returns an empty cache.
func NewPlanCache() *PlanCache {
	return &PlanCache{plans: make(map[string]*CompiledPlan)}
}

// Get returns the cached plan for a document hash.
func (c *PlanCache) Get(hash string) (*CompiledPlan, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	plan, ok := c.plans[hash]
	return plan, ok
}

// GetOrCompile returns the cached plan for the document, compiling and
// caching it on a miss. Compile errors are never cached.
func (c *PlanCache) GetOrCompile(ctx context.Context, doc *schema.Document, reg *registry.Registry) (*CompiledPlan, error) {
	hash, err := DocumentHash(doc)
	if err != nil {
		return nil, err
	}

	if plan, ok := c.Get(hash); ok {
		ctxlog.FromContext(ctx).Debug("Plan cache hit.", "hash", hash)
		return plan, nil
	}

	plan, err := Compile(ctx, doc, reg)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// A concurrent compilation of the same document may have won the race;
	// both plans are identical, keep the first.
	if existing, ok := c.plans[hash]; ok {
		return existing, nil
	}
	c.plans[hash] = plan
	return plan, nil
}

// Len reports the number of cached plans.
func (c *PlanCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.plans)
}
