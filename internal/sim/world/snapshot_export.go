package world

import (
	"sort"

	"voxelwire.ai/internal/persistence/snapshot"
	"voxelwire.ai/internal/sim/geom"
)

func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    nowTick,
		},
		TickRate:           w.cfg.TickRateHz,
		SnapshotEveryTicks: w.cfg.SnapshotEveryTicks,
		MaxNetworkPoints:   w.cfg.MaxNetworkPoints,
	}

	positions := make([]geom.Pos, 0, len(w.blocks))
	for pos := range w.blocks {
		positions = append(positions, pos)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Less(positions[j]) })

	for _, pos := range positions {
		switch kind := w.blocks[pos]; kind {
		case BlockDevice:
			port := w.devices[pos]
			snap.Devices = append(snap.Devices, snapshot.DeviceV1{
				Pos:      pos.ToArray(),
				Output:   port.Output(),
				Received: port.Received(),
				Dirty:    port.Dirty(),
			})
		case BlockConnector:
			c := w.connectors[pos]
			st := c.State()
			snap.Connectors = append(snap.Connectors, snapshot.ConnectorV1{
				Pos:                  pos.ToArray(),
				Facing:               c.Facing().String(),
				IOMode:               st.IOMode.Ordinal(),
				ConnectedToLogicUnit: st.ConnectedToLogicUnit,
				DirtyExtraSource:     st.DirtyExtraSource,
			})
		default:
			snap.Blocks = append(snap.Blocks, snapshot.BlockV1{Pos: pos.ToArray(), Kind: string(kind)})
		}
	}

	for _, c := range w.nets.Connections() {
		snap.Links = append(snap.Links, snapshot.LinkV1{
			A:      c.A.Pos.ToArray(),
			AIndex: c.A.Index,
			B:      c.B.Pos.ToArray(),
			BIndex: c.B.Index,
			Wire:   c.Type.Name,
		})
	}

	for _, e := range w.emitter.Emissions() {
		snap.Emitters = append(snap.Emitters, snapshot.EmitterV1{
			Pos:     e.At.Pos.ToArray(),
			Side:    e.At.Side.String(),
			Signals: e.Signals,
		})
	}

	for _, t := range w.networkTables() {
		n := snapshot.NetworkV1{Populated: t.populated, Dirty: t.dirty}
		for _, e := range t.entries {
			n.Inputs = append(n.Inputs, snapshot.InputV1{
				Pos:    e.Point.Pos.ToArray(),
				Index:  e.Point.Index,
				Values: e.Values,
			})
		}
		snap.Networks = append(snap.Networks, n)
	}
	return snap
}
