// Package redstone aggregates 16-channel bundled signals across a local network.
package redstone

import (
	"sort"

	"voxelwire.ai/internal/sim/wirenet"
)

// Connector is implemented by blocks that feed the network and want to hear back.
type Connector interface {
	// UpdateInput fills signals with what the block contributes at cp.
	UpdateInput(signals *Signals, cp wirenet.ConnectionPoint)
	// OnChange is called after every recompute with the handler that ran it.
	OnChange(cp wirenet.ConnectionPoint, h *Handler)
}

// Handler is the bundled-signal handler of one local network.
type Handler struct {
	net *wirenet.LocalNetwork

	values     map[wirenet.ConnectionPoint]Signals
	populated  bool
	dirty      bool
	updating   bool
	recomputes uint64
}

func New(net *wirenet.LocalNetwork) *Handler {
	return &Handler{net: net, values: map[wirenet.ConnectionPoint]Signals{}}
}

// Register installs the redstone factory in reg.
func Register(reg *wirenet.Registry) error {
	return wirenet.RegisterHandler(reg, wirenet.HandlerRedstone, New)
}

func (h *Handler) Kind() wirenet.HandlerKind { return wirenet.HandlerRedstone }

func (h *Handler) MarkDirty() { h.dirty = true }

func (h *Handler) Dirty() bool { return h.dirty }

func (h *Handler) Tick() {
	if h.dirty {
		h.UpdateValues()
	}
}

// UpdateValues rebuilds the table from every connector's raw input, then notifies each
// connector. A call made while notifications are running is deferred to the next tick.
func (h *Handler) UpdateValues() {
	if h.updating {
		h.dirty = true
		return
	}
	type target struct {
		cp wirenet.ConnectionPoint
		c  Connector
	}
	next := make(map[wirenet.ConnectionPoint]Signals, h.net.Len())
	var targets []target
	for _, cp := range h.net.Points() {
		owner, ok := h.net.Connector(cp)
		if !ok {
			continue
		}
		rc, ok := owner.(Connector)
		if !ok {
			continue
		}
		var in Signals
		rc.UpdateInput(&in, cp)
		in.Clamp()
		next[cp] = in
		targets = append(targets, target{cp: cp, c: rc})
	}
	h.values = next
	h.populated = true
	h.dirty = false
	h.recomputes++

	h.updating = true
	defer func() { h.updating = false }()
	for _, t := range targets {
		t.c.OnChange(t.cp, h)
	}
}

// ValuesExcluding is what the network presents to cp: the per-channel maximum over
// every other point. A lone point sees all zeros.
func (h *Handler) ValuesExcluding(cp wirenet.ConnectionPoint) Signals {
	var out Signals
	for other, v := range h.values {
		if other == cp {
			continue
		}
		out.MaxInto(v)
	}
	return out
}

// Value is the network-wide maximum of channel.
func (h *Handler) Value(channel int) byte {
	if channel < 0 || channel >= Channels {
		return 0
	}
	var best byte
	for _, v := range h.values {
		if v[channel] > best {
			best = v[channel]
		}
	}
	return best
}

// Values is Value for every channel.
func (h *Handler) Values() Signals {
	var out Signals
	for _, v := range h.values {
		out.MaxInto(v)
	}
	return out
}

// Stored returns the raw input recorded for cp; unknown points read as zero.
func (h *Handler) Stored(cp wirenet.ConnectionPoint) Signals { return h.values[cp] }

func (h *Handler) Populated() bool { return h.populated }

func (h *Handler) Recomputes() uint64 { return h.recomputes }

func (h *Handler) Network() *wirenet.LocalNetwork { return h.net }

type Entry struct {
	Point  wirenet.ConnectionPoint
	Values Signals
}

// Table lists the stored inputs ordered by point.
func (h *Handler) Table() []Entry {
	out := make([]Entry, 0, len(h.values))
	for cp, v := range h.values {
		out = append(out, Entry{Point: cp, Values: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Point.Less(out[j].Point) })
	return out
}

// Restore reloads a saved table. Entries for points outside the network are dropped.
func (h *Handler) Restore(entries []Entry, populated, dirty bool) {
	h.values = make(map[wirenet.ConnectionPoint]Signals, len(entries))
	for _, e := range entries {
		if !h.net.Contains(e.Point) {
			continue
		}
		v := e.Values
		v.Clamp()
		h.values[e.Point] = v
	}
	h.populated = populated
	h.dirty = dirty
}
