package bundled

import (
	"errors"
	"io"
	"log"
	"sort"
	"sync/atomic"

	"voxelwire.ai/internal/sim/geom"
	"voxelwire.ai/internal/sim/wirenet/redstone"
)

var ErrRegistryClosed = errors.New("bundled: provider registry closed")

// Provider is an extra bundled source outside the wire network. A nil answer means the
// provider has nothing to say about pos/side.
type Provider interface {
	EmittedState(level Level, pos geom.Pos, side geom.Direction) []byte
}

type ProviderFunc func(level Level, pos geom.Pos, side geom.Direction) []byte

func (f ProviderFunc) EmittedState(level Level, pos geom.Pos, side geom.Direction) []byte {
	return f(level, pos, side)
}

// ProviderRegistry holds the extra sources in registration order. It is filled at
// startup and closed before the first tick; after that it is read-only.
type ProviderRegistry struct {
	providers []Provider
	closed    bool
	log       *log.Logger
	rejected  atomic.Uint64
}

func NewProviderRegistry(logger *log.Logger) *ProviderRegistry {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &ProviderRegistry{log: logger}
}

func (r *ProviderRegistry) Register(p Provider) error {
	if r.closed {
		return ErrRegistryClosed
	}
	r.providers = append(r.providers, p)
	return nil
}

func (r *ProviderRegistry) Close() { r.closed = true }

func (r *ProviderRegistry) Closed() bool { return r.closed }

// Contains reports whether p was registered.
func (r *ProviderRegistry) Contains(p Provider) bool {
	if r == nil {
		return false
	}
	for _, q := range r.providers {
		if q == p {
			return true
		}
	}
	return false
}

func (r *ProviderRegistry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.providers)
}

// Rejected counts malformed answers that were dropped.
func (r *ProviderRegistry) Rejected() uint64 { return r.rejected.Load() }

// Combine raises signals channel-wise with every provider's answer for at.
func (r *ProviderRegistry) Combine(level Level, at geom.DirectionalPos, signals *redstone.Signals) {
	if r == nil {
		return
	}
	for i, p := range r.providers {
		if s, ok := r.query(i, p, level, at); ok {
			signals.MaxInto(s)
		}
	}
}

// FirstOverride returns the first provider answer for at, in registration order.
func (r *ProviderRegistry) FirstOverride(level Level, at geom.DirectionalPos) (redstone.Signals, bool) {
	if r == nil {
		return redstone.Signals{}, false
	}
	for i, p := range r.providers {
		if s, ok := r.query(i, p, level, at); ok {
			return s, true
		}
	}
	return redstone.Signals{}, false
}

func (r *ProviderRegistry) query(i int, p Provider, level Level, at geom.DirectionalPos) (redstone.Signals, bool) {
	raw := p.EmittedState(level, at.Pos, at.Side)
	if raw == nil {
		return redstone.Signals{}, false
	}
	s, err := redstone.FromBytes(raw)
	if err != nil {
		r.rejected.Add(1)
		r.log.Printf("bundled provider #%d (%T) at %s/%s ignored: %v", i, p, at.Pos, at.Side, err)
		return redstone.Signals{}, false
	}
	return s, true
}

// StaticEmitter is a provider with fixed emissions per position, optionally per side.
type StaticEmitter struct {
	emissions map[geom.DirectionalPos]redstone.Signals
}

func NewStaticEmitter() *StaticEmitter {
	return &StaticEmitter{emissions: map[geom.DirectionalPos]redstone.Signals{}}
}

// Set makes pos emit s on side; geom.AnySide covers every face without its own entry.
func (e *StaticEmitter) Set(pos geom.Pos, side geom.Direction, s redstone.Signals) {
	e.emissions[geom.DirectionalPos{Pos: pos, Side: side}] = s
}

func (e *StaticEmitter) Clear(pos geom.Pos) {
	for k := range e.emissions {
		if k.Pos == pos {
			delete(e.emissions, k)
		}
	}
}

func (e *StaticEmitter) Emitting(pos geom.Pos) bool {
	for k := range e.emissions {
		if k.Pos == pos {
			return true
		}
	}
	return false
}

func (e *StaticEmitter) EmittedState(_ Level, pos geom.Pos, side geom.Direction) []byte {
	s, ok := e.emissions[geom.DirectionalPos{Pos: pos, Side: side}]
	if !ok {
		s, ok = e.emissions[geom.DirectionalPos{Pos: pos, Side: geom.AnySide}]
	}
	if !ok {
		return nil
	}
	out := make([]byte, redstone.Channels)
	copy(out, s[:])
	return out
}

type Emission struct {
	At      geom.DirectionalPos
	Signals redstone.Signals
}

// Emissions lists every entry ordered by position, then side.
func (e *StaticEmitter) Emissions() []Emission {
	out := make([]Emission, 0, len(e.emissions))
	for k, s := range e.emissions {
		out = append(out, Emission{At: k, Signals: s})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].At, out[j].At
		if a.Pos != b.Pos {
			return a.Pos.Less(b.Pos)
		}
		return a.Side < b.Side
	})
	return out
}
