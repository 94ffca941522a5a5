// Package bundled implements the bundled connector: the block that joins one physical
// neighbour (and any extra providers aimed at it) to a redstone wire network.
package bundled

import (
	"errors"

	"voxelwire.ai/internal/sim/capref"
	"voxelwire.ai/internal/sim/geom"
	"voxelwire.ai/internal/sim/wirenet"
	"voxelwire.ai/internal/sim/wirenet/redstone"
)

var ErrNotLogicConnected = errors.New("bundled: connector is not attached to a logic unit")

// State is the persisted part of a connector.
type State struct {
	IOMode               IOMode
	ConnectedToLogicUnit bool
	DirtyExtraSource     bool
}

type Connector struct {
	level     Level
	nets      *wirenet.GlobalNetwork
	providers *ProviderRegistry

	pos    geom.Pos
	facing geom.Direction

	attached *capref.Reference[BundleConnection]

	ioMode               IOMode
	connectedToLogicUnit bool
	dirtyExtraSource     bool
}

// NewConnector builds a connector at pos whose face points at pos.Relative(facing).
// It still has to be added to nets by the caller.
func NewConnector(level Level, nets *wirenet.GlobalNetwork, providers *ProviderRegistry, pos geom.Pos, facing geom.Direction) *Connector {
	c := &Connector{
		level:     level,
		nets:      nets,
		providers: providers,
		pos:       pos,
		facing:    facing,
	}
	c.attached = capref.ForEndpointAt(level.Capabilities(), c.AttachedFace, BundleConnectionKind)
	return c
}

func (c *Connector) Pos() geom.Pos { return c.pos }

func (c *Connector) Facing() geom.Direction { return c.facing }

// AttachedFace is the neighbour the connector sits on, seen from the connector's side.
func (c *Connector) AttachedFace() geom.DirectionalPos {
	return geom.DirectionalPos{Pos: c.pos.Relative(c.facing), Side: c.facing.Opposite()}
}

func (c *Connector) ConnectionPoints() []wirenet.ConnectionPoint {
	return []wirenet.ConnectionPoint{{Pos: c.pos, Index: 0}}
}

func (c *Connector) CanConnect(wire wirenet.WireType) bool {
	return wire.Category == wirenet.RedstoneCategory
}

func (c *Connector) RequestedHandlers() []wirenet.HandlerKind {
	return []wirenet.HandlerKind{wirenet.HandlerRedstone}
}

func (c *Connector) handler() *redstone.Handler {
	return wirenet.MustHandler[*redstone.Handler](c.nets.LocalNet(c.pos), wirenet.HandlerRedstone)
}

// TickServer recomputes the network when the attached block changed its output or an
// extra source may have changed. The attached block's flag is polled first so a change
// is consumed exactly once.
func (c *Connector) TickServer() {
	conn, ok := c.attached.Get()
	if (ok && conn.PollDirty()) || c.dirtyExtraSource {
		c.handler().UpdateValues()
		c.dirtyExtraSource = false
	}
}

// Value is the network-wide strength of channel.
func (c *Connector) Value(channel int) byte { return c.handler().Value(channel) }

// UpdateInput reports the connector's own contribution: the attached block's output,
// raised channel-wise by every extra provider aimed at the same face.
func (c *Connector) UpdateInput(signals *redstone.Signals, _ wirenet.ConnectionPoint) {
	at := c.AttachedFace()
	if conn, ok := c.attached.Get(); ok {
		conn.UpdateInput(signals, at.Side)
	} else {
		*signals = redstone.Signals{}
	}
	c.providers.Combine(c.level, at, signals)
}

// OnChange pushes what the rest of the network carries into the attached block.
func (c *Connector) OnChange(cp wirenet.ConnectionPoint, h *redstone.Handler) {
	at := c.AttachedFace()
	c.connectedToLogicUnit = c.level.IsLogicUnit(at.Pos)
	if conn, ok := c.attached.Get(); ok {
		conn.OnChange(h.ValuesExcluding(cp), at.Side)
	}
	c.level.MarkBlockForUpdate(c.pos)
	c.level.MarkBlockForUpdate(at.Pos)
}

// OnNeighborChange handles a block change at other. Only a change of the attached
// position with no capability present matters: the network may still hold values from
// a source that just disappeared, or an extra provider now answers for that face.
func (c *Connector) OnNeighborChange(other geom.Pos) {
	at := c.AttachedFace()
	if other != at.Pos || c.attached.IsPresent() {
		return
	}
	c.connectedToLogicUnit = c.level.IsLogicUnit(other)
	override, hasOverride := c.providers.FirstOverride(c.level, at)
	h := c.handler()
	for ch := 0; ch < redstone.Channels && !c.dirtyExtraSource; ch++ {
		current := h.Value(ch)
		if hasOverride {
			c.dirtyExtraSource = current != override[ch]
		} else {
			c.dirtyExtraSource = current != 0
		}
	}
}

// SetRemoved zeroes the attached block before the connector goes away.
func (c *Connector) SetRemoved() {
	if conn, ok := c.attached.Get(); ok {
		conn.OnChange(redstone.Signals{}, c.AttachedFace().Side)
	}
}

// ConfigureIO cycles the io mode; only meaningful next to a logic unit.
func (c *Connector) ConfigureIO() error {
	if !c.connectedToLogicUnit {
		return ErrNotLogicConnected
	}
	c.ioMode = c.ioMode.Next()
	c.handler().UpdateValues()
	c.level.MarkBlockForUpdate(c.pos)
	return nil
}

func (c *Connector) IOMode() IOMode { return c.ioMode }

func (c *Connector) ConnectedToLogicUnit() bool { return c.connectedToLogicUnit }

func (c *Connector) DirtyExtraSource() bool { return c.dirtyExtraSource }

func (c *Connector) State() State {
	return State{
		IOMode:               c.ioMode,
		ConnectedToLogicUnit: c.connectedToLogicUnit,
		DirtyExtraSource:     c.dirtyExtraSource,
	}
}

func (c *Connector) Restore(s State) {
	c.ioMode = s.IOMode
	c.connectedToLogicUnit = s.ConnectedToLogicUnit
	c.dirtyExtraSource = s.DirtyExtraSource
}
