// Package capref resolves capabilities exposed by blocks next to a connector.
//
// Nothing here holds on to a capability object between calls: every Get looks the
// occupant up again by (position, side, kind), so a neighbour that was replaced or
// removed is never observed through a stale pointer.
package capref

import "voxelwire.ai/internal/sim/geom"

// Kind is a typed capability key.
type Kind[T any] struct {
	name string
}

func NewKind[T any](name string) Kind[T] { return Kind[T]{name: name} }

func (k Kind[T]) Name() string { return k.name }

// Lookup answers "what does the block at pos offer on side for this kind".
type Lookup interface {
	Capability(pos geom.Pos, side geom.Direction, kind string) (any, bool)
}

type key struct {
	pos  geom.Pos
	side geom.Direction
	kind string
}

// Registry is the world-side table of exposed capabilities.
// It is owned by the world loop and not safe for concurrent use.
type Registry struct {
	byKey map[key]any
	byPos map[geom.Pos][]key
}

func NewRegistry() *Registry {
	return &Registry{
		byKey: map[key]any{},
		byPos: map[geom.Pos][]key{},
	}
}

// Expose publishes v for kind at pos. Use geom.AnySide to answer every side.
func Expose[T any](r *Registry, pos geom.Pos, side geom.Direction, kind Kind[T], v T) {
	k := key{pos: pos, side: side, kind: kind.name}
	if _, ok := r.byKey[k]; !ok {
		r.byPos[pos] = append(r.byPos[pos], k)
	}
	r.byKey[k] = v
}

// Withdraw drops every capability exposed at pos.
func (r *Registry) Withdraw(pos geom.Pos) {
	for _, k := range r.byPos[pos] {
		delete(r.byKey, k)
	}
	delete(r.byPos, pos)
}

func (r *Registry) Capability(pos geom.Pos, side geom.Direction, kind string) (any, bool) {
	if r == nil {
		return nil, false
	}
	if v, ok := r.byKey[key{pos: pos, side: side, kind: kind}]; ok {
		return v, true
	}
	v, ok := r.byKey[key{pos: pos, side: geom.AnySide, kind: kind}]
	return v, ok
}

// Reference is a non-owning, direction-qualified handle to a neighbour's capability.
type Reference[T any] struct {
	lookup Lookup
	target func() geom.DirectionalPos
	kind   Kind[T]
}

// ForEndpointAt builds a reference whose target is recomputed by target on each call,
// so a connector that rotates keeps pointing at the right neighbour.
func ForEndpointAt[T any](lookup Lookup, target func() geom.DirectionalPos, kind Kind[T]) *Reference[T] {
	return &Reference[T]{lookup: lookup, target: target, kind: kind}
}

// Get returns the capability currently exposed at the target, or false when the
// target is empty or offers something of the wrong type.
func (r *Reference[T]) Get() (T, bool) {
	var zero T
	if r == nil || r.lookup == nil || r.target == nil {
		return zero, false
	}
	at := r.target()
	v, ok := r.lookup.Capability(at.Pos, at.Side, r.kind.name)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

func (r *Reference[T]) IsPresent() bool {
	_, ok := r.Get()
	return ok
}
