package bundled

import (
	"voxelwire.ai/internal/sim/capref"
	"voxelwire.ai/internal/sim/geom"
	"voxelwire.ai/internal/sim/wirenet/redstone"
)

// BundleConnection is the capability a block exposes to a bundled connector pointing at it.
type BundleConnection interface {
	// PollDirty reports and clears a pending change of the block's output.
	PollDirty() bool
	// UpdateInput writes what the block feeds into the connector on side.
	UpdateInput(signals *redstone.Signals, side geom.Direction)
	// OnChange delivers what the network presents to the block on side.
	OnChange(external redstone.Signals, side geom.Direction)
}

var BundleConnectionKind = capref.NewKind[BundleConnection]("redstone_bundle_connection")

// Level is the slice of the world a connector talks to.
type Level interface {
	Capabilities() capref.Lookup
	IsLogicUnit(pos geom.Pos) bool
	// MarkBlockForUpdate is fire-and-forget: observers and comparators re-read pos.
	MarkBlockForUpdate(pos geom.Pos)
}

// Port is a plain BundleConnection for device blocks: a fixed output it feeds in, and
// the last values the network handed back.
type Port struct {
	output   redstone.Signals
	received redstone.Signals
	dirty    bool
}

func NewPort(output redstone.Signals) *Port {
	output.Clamp()
	return &Port{output: output, dirty: true}
}

// SetOutput changes what the port feeds in; only a real change marks it dirty.
func (p *Port) SetOutput(s redstone.Signals) {
	s.Clamp()
	if s == p.output {
		return
	}
	p.output = s
	p.dirty = true
}

func (p *Port) MarkDirty() { p.dirty = true }

func (p *Port) PollDirty() bool {
	d := p.dirty
	p.dirty = false
	return d
}

func (p *Port) UpdateInput(signals *redstone.Signals, _ geom.Direction) { *signals = p.output }

func (p *Port) OnChange(external redstone.Signals, _ geom.Direction) { p.received = external }

func (p *Port) Output() redstone.Signals { return p.output }

func (p *Port) Received() redstone.Signals { return p.received }

// RestorePort rebuilds a port exactly as saved.
func RestorePort(output, received redstone.Signals, dirty bool) *Port {
	output.Clamp()
	received.Clamp()
	return &Port{output: output, received: received, dirty: dirty}
}

func (p *Port) Dirty() bool { return p.dirty }
