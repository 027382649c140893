package wfapi

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/gridflow/internal/schema"
)

// definitionCache stores the last successfully fetched specification of each
// workflow on disk.
type definitionCache struct {
	dir string
}

// sanitizeSegment keeps cache file names shell- and path-safe regardless of
// what the API identifiers contain.
func sanitizeSegment(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (c *definitionCache) path(workspace, workflowID string) string {
	name := fmt.Sprintf("%s_%s.json", sanitizeSegment(workspace), sanitizeSegment(workflowID))
	return filepath.Join(c.dir, "workflow_definitions", name)
}

func (c *definitionCache) store(workspace, workflowID string, spec []byte) error {
	path := c.path(workspace, workflowID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, spec, 0o644)
}

// load parses a cached specification. A corrupt cache file is deleted so it
// cannot shadow future fetches.
func (c *definitionCache) load(workspace, workflowID string) (*schema.Document, error) {
	path := c.path(workspace, workflowID)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("no cached definition: %w", err)
	}
	doc, err := schema.Parse(raw)
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("cached definition is corrupt (removed): %w", err)
	}
	return doc, nil
}
