package wirenet

import "fmt"

// HandlerKind is the closed set of per-network handlers.
type HandlerKind uint8

const (
	HandlerRedstone HandlerKind = iota + 1
)

func (k HandlerKind) Valid() bool { return k == HandlerRedstone }

func (k HandlerKind) String() string {
	switch k {
	case HandlerRedstone:
		return "redstone"
	default:
		return fmt.Sprintf("HandlerKind(%d)", uint8(k))
	}
}

// Handler is per-network state that reacts to topology changes.
type Handler interface {
	Kind() HandlerKind
	// MarkDirty asks for a recompute on the next Tick.
	MarkDirty()
	Tick()
}

type registration struct {
	build   func(*LocalNetwork) Handler
	typeStr string
}

// Registry maps handler kinds to factories. Registration happens at startup; Close seals
// it before the first tick.
type Registry struct {
	factories map[HandlerKind]registration
	closed    bool
}

func NewRegistry() *Registry {
	return &Registry{factories: map[HandlerKind]registration{}}
}

// RegisterHandler binds kind to build. The concrete handler type T is recorded here so
// typed lookups never have to guess.
func RegisterHandler[T Handler](r *Registry, kind HandlerKind, build func(*LocalNetwork) T) error {
	if r.closed {
		return ErrRegistryClosed
	}
	if !kind.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownHandlerKind, uint8(kind))
	}
	if _, ok := r.factories[kind]; ok {
		return fmt.Errorf("wirenet: handler %s registered twice", kind)
	}
	r.factories[kind] = registration{
		build:   func(n *LocalNetwork) Handler { return build(n) },
		typeStr: fmt.Sprintf("%T", *new(T)),
	}
	return nil
}

func (r *Registry) Close() { r.closed = true }

func (r *Registry) Closed() bool { return r.closed }

func (r *Registry) Has(kind HandlerKind) bool {
	if r == nil {
		return false
	}
	_, ok := r.factories[kind]
	return ok
}
