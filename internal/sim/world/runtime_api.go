package world

import (
	"time"

	"voxelwire.ai/internal/persistence/snapshot"
	"voxelwire.ai/internal/sim/bundled"
	"voxelwire.ai/internal/sim/geom"
	"voxelwire.ai/internal/sim/wirenet"
	"voxelwire.ai/internal/sim/wirenet/redstone"
)

func (w *World) SetTickLogger(l TickLogger)                    { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger)                  { w.auditLogger = l }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) Inbox() chan<- EditEnvelope               { return w.inbox }
func (w *World) ObserverJoin() chan<- ObserverJoinRequest { return w.observerJoin }
func (w *World) ObserverLeave() chan<- string             { return w.observerLeave }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

// SnapshotsDropped counts cadence snapshots skipped because the sink was full.
func (w *World) SnapshotsDropped() uint64 { return w.snapshotsDropped.Load() }

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) TickRateHz() int {
	if w == nil {
		return 0
	}
	return w.cfg.TickRateHz
}

func (w *World) Config() WorldConfig {
	if w == nil {
		return WorldConfig{}
	}
	return w.cfg
}

// The accessors below read live state; call them only from the world goroutine or
// while the world is stopped.

func (w *World) Block(pos geom.Pos) BlockKind {
	if k, ok := w.blocks[pos]; ok {
		return k
	}
	return BlockAir
}

func (w *World) Connector(pos geom.Pos) (*bundled.Connector, bool) {
	c, ok := w.connectors[pos]
	return c, ok
}

func (w *World) Device(pos geom.Pos) (*bundled.Port, bool) {
	p, ok := w.devices[pos]
	return p, ok
}

func (w *World) Networks() *wirenet.GlobalNetwork { return w.nets }

func (w *World) Providers() *bundled.ProviderRegistry { return w.providers }

func (w *World) Emitter() *bundled.StaticEmitter { return w.emitter }

// RedstoneAt returns the redstone handler of the network holding the connector at pos.
func (w *World) RedstoneAt(pos geom.Pos) (*redstone.Handler, bool) {
	n := w.nets.LocalNet(pos)
	if n == nil {
		return nil, false
	}
	h, err := wirenet.HandlerAs[*redstone.Handler](n, wirenet.HandlerRedstone)
	if err != nil {
		return nil, false
	}
	return h, true
}

// WorldMetrics is published at the end of every tick and is safe to read from any goroutine.
type WorldMetrics struct {
	Tick             uint64  `json:"tick"`
	Connectors       int     `json:"connectors"`
	Devices          int     `json:"devices"`
	Networks         int     `json:"networks"`
	Emissions        int     `json:"emissions"`
	Observers        int     `json:"observers"`
	InboxDepth       int     `json:"inbox_depth"`
	ProviderRejected uint64  `json:"provider_rejected"`
	SnapshotsDropped uint64  `json:"snapshots_dropped"`
	StepMS           float64 `json:"step_ms"`
}

func (w *World) Metrics() WorldMetrics {
	if m := w.metrics.Load(); m != nil {
		return *m
	}
	return WorldMetrics{}
}

func (w *World) publishMetrics(nowTick uint64, took time.Duration) {
	w.metrics.Store(&WorldMetrics{
		Tick:             nowTick,
		Connectors:       len(w.connectors),
		Devices:          len(w.devices),
		Networks:         len(w.nets.Networks()),
		Emissions:        len(w.emitter.Emissions()),
		Observers:        len(w.observers),
		InboxDepth:       len(w.inbox),
		ProviderRejected: w.providers.Rejected(),
		SnapshotsDropped: w.snapshotsDropped.Load(),
		StepMS:           float64(took.Microseconds()) / 1000,
	})
}
