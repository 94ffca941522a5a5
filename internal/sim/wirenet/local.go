package wirenet

import (
	"fmt"
	"sort"

	"voxelwire.ai/internal/sim/geom"
)

// LocalNetwork is one connected component of the connection-point graph.
type LocalNetwork struct {
	id     uint64
	global *GlobalNetwork

	points   []ConnectionPoint
	members  map[ConnectionPoint]struct{}
	handlers map[HandlerKind]Handler
}

func newLocalNetwork(id uint64, g *GlobalNetwork) *LocalNetwork {
	return &LocalNetwork{
		id:       id,
		global:   g,
		members:  map[ConnectionPoint]struct{}{},
		handlers: map[HandlerKind]Handler{},
	}
}

func (n *LocalNetwork) ID() uint64 { return n.id }

// Points returns the network's connection points in ascending order.
func (n *LocalNetwork) Points() []ConnectionPoint {
	out := make([]ConnectionPoint, len(n.points))
	copy(out, n.points)
	return out
}

func (n *LocalNetwork) Len() int { return len(n.points) }

func (n *LocalNetwork) Contains(cp ConnectionPoint) bool {
	_, ok := n.members[cp]
	return ok
}

// Connector returns the block owning cp, if cp belongs to this network.
func (n *LocalNetwork) Connector(cp ConnectionPoint) (Connector, bool) {
	if !n.Contains(cp) {
		return nil, false
	}
	c, ok := n.global.connectors[cp.Pos]
	return c, ok
}

// Connections lists the wires inside the network, ordered by endpoints.
func (n *LocalNetwork) Connections() []Connection {
	var out []Connection
	for _, cp := range n.points {
		for other, c := range n.global.adj[cp] {
			if cp.Less(other) {
				out = append(out, c)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A.Less(out[j].A)
		}
		return out[i].B.Less(out[j].B)
	})
	return out
}

// Handler returns the network's handler of kind, creating it on first request.
func (n *LocalNetwork) Handler(kind HandlerKind) (Handler, error) {
	if h, ok := n.handlers[kind]; ok {
		return h, nil
	}
	reg, ok := n.global.registry.factories[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotRegistered, kind)
	}
	if !n.requests(kind) {
		return nil, fmt.Errorf("%w: %s not requested in network %d", ErrHandlerNotRegistered, kind, n.id)
	}
	h := reg.build(n)
	if h.Kind() != kind {
		return nil, fmt.Errorf("%w: factory for %s built %s", ErrHandlerTypeMismatch, kind, h.Kind())
	}
	n.handlers[kind] = h
	return h, nil
}

// Handlers returns the live handlers ordered by kind.
func (n *LocalNetwork) Handlers() []Handler {
	kinds := make([]HandlerKind, 0, len(n.handlers))
	for k := range n.handlers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	out := make([]Handler, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, n.handlers[k])
	}
	return out
}

// HandlerAs is the typed form of LocalNetwork.Handler.
func HandlerAs[T Handler](n *LocalNetwork, kind HandlerKind) (T, error) {
	var zero T
	if n == nil {
		return zero, fmt.Errorf("%w: no network", ErrHandlerNotRegistered)
	}
	h, err := n.Handler(kind)
	if err != nil {
		return zero, err
	}
	t, ok := h.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s is %T, want %s", ErrHandlerTypeMismatch, kind, h, n.global.registry.factories[kind].typeStr)
	}
	return t, nil
}

// MustHandler panics when the handler is missing; callers treat that as a bug.
func MustHandler[T Handler](n *LocalNetwork, kind HandlerKind) T {
	h, err := HandlerAs[T](n, kind)
	if err != nil {
		panic(err)
	}
	return h
}

func (n *LocalNetwork) requests(kind HandlerKind) bool {
	seen := map[geom.Pos]struct{}{}
	for _, cp := range n.points {
		if _, dup := seen[cp.Pos]; dup {
			continue
		}
		seen[cp.Pos] = struct{}{}
		c, ok := n.global.connectors[cp.Pos]
		if !ok {
			continue
		}
		for _, k := range c.RequestedHandlers() {
			if k == kind {
				return true
			}
		}
	}
	return false
}

// syncHandlers creates handlers for every requested kind and drops the rest.
func (n *LocalNetwork) syncHandlers() {
	for kind := range n.handlers {
		if !n.requests(kind) {
			delete(n.handlers, kind)
		}
	}
	for kind := range n.global.registry.factories {
		if _, ok := n.handlers[kind]; ok || !n.requests(kind) {
			continue
		}
		// Errors here only mean "not requested", already filtered above.
		_, _ = n.Handler(kind)
	}
}

func (n *LocalNetwork) markDirty() {
	for _, h := range n.handlers {
		h.MarkDirty()
	}
}

func (n *LocalNetwork) setPoints(points []ConnectionPoint) {
	sort.Slice(points, func(i, j int) bool { return points[i].Less(points[j]) })
	n.points = points
	n.members = make(map[ConnectionPoint]struct{}, len(points))
	for _, cp := range points {
		n.members[cp] = struct{}{}
	}
}
