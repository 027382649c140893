// Package kind implements the data-type tags attached to workflow sockets and
// the static catalog used to validate them. Compatibility between a producer
// socket and a consumer socket is a non-empty intersection of their kind sets;
// the wildcard kind matches everything.
package kind

import (
	"fmt"
	"sort"
	"strings"
)

// Kind is an immutable named data-type tag.
type Kind string

// Wildcard matches any kind set on the opposite side of an edge.
const Wildcard Kind = "*"

// Built-in kinds. These mirror the socket types the core block library
// produces and consumes.
const (
	Image            Kind = "IMAGE"
	Detections       Kind = "DETECTIONS"
	QRCodeDetections Kind = "QR_CODE_DETECTIONS"
	BarCodeDetection Kind = "BAR_CODE_DETECTIONS"
	Classification   Kind = "CLASSIFICATION"
	String           Kind = "STRING"
	Number           Kind = "NUMBER"
	Boolean          Kind = "BOOLEAN"
	Dict             Kind = "DICT"
)

// Set is an unordered collection of kinds declared by a socket.
type Set []Kind

// NewSet builds a Set from the given kinds, dropping duplicates.
func NewSet(kinds ...Kind) Set {
	seen := make(map[Kind]struct{}, len(kinds))
	out := make(Set, 0, len(kinds))
	for _, k := range kinds {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Contains reports whether k is a member of the set.
func (s Set) Contains(k Kind) bool {
	for _, member := range s {
		if member == k {
			return true
		}
	}
	return false
}

// HasWildcard reports whether the set contains the wildcard kind.
func (s Set) HasWildcard() bool {
	return s.Contains(Wildcard)
}

// Compatible reports whether a value produced with kinds s may flow into a
// socket accepting kinds other. Either side carrying the wildcard makes the
// edge compatible; otherwise the intersection must be non-empty.
func (s Set) Compatible(other Set) bool {
	if len(s) == 0 || len(other) == 0 {
		return false
	}
	if s.HasWildcard() || other.HasWildcard() {
		return true
	}
	for _, k := range s {
		if other.Contains(k) {
			return true
		}
	}
	return false
}

// String renders the set as "{A, B}" with members sorted for stable output.
func (s Set) String() string {
	names := make([]string, len(s))
	for i, k := range s {
		names[i] = string(k)
	}
	sort.Strings(names)
	return "{" + strings.Join(names, ", ") + "}"
}

// Registry is the static catalog of known kinds. It is populated once at
// startup and treated as immutable afterwards.
type Registry struct {
	kinds map[Kind]string
}

// NewRegistry returns a catalog pre-populated with the built-in kinds.
func NewRegistry() *Registry {
	r := &Registry{kinds: make(map[Kind]string)}
	builtin := []struct {
		kind Kind
		desc string
	}{
		{Wildcard, "matches any kind"},
		{Image, "image with metadata"},
		{Detections, "object detection predictions"},
		{QRCodeDetections, "QR code detection predictions"},
		{BarCodeDetection, "bar code detection predictions"},
		{Classification, "classification prediction"},
		{String, "plain string value"},
		{Number, "numeric value"},
		{Boolean, "boolean value"},
		{Dict, "free-form dictionary"},
	}
	for _, b := range builtin {
		r.kinds[b.kind] = b.desc
	}
	return r
}

// Register adds a kind to the catalog. Registering an already known kind is
// an error so modules cannot silently redefine each other's tags.
func (r *Registry) Register(k Kind, description string) error {
	if _, exists := r.kinds[k]; exists {
		return fmt.Errorf("kind %q already registered", k)
	}
	r.kinds[k] = description
	return nil
}

// Known reports whether k is present in the catalog.
func (r *Registry) Known(k Kind) bool {
	_, ok := r.kinds[k]
	return ok
}

// ParseSet converts manifest kind names into a Set, rejecting names absent
// from the catalog.
func (r *Registry) ParseSet(names []string) (Set, error) {
	kinds := make([]Kind, 0, len(names))
	for _, name := range names {
		k := Kind(name)
		if !r.Known(k) {
			return nil, fmt.Errorf("unknown kind %q", name)
		}
		kinds = append(kinds, k)
	}
	return NewSet(kinds...), nil
}
