package world

import (
	"fmt"

	"voxelwire.ai/internal/persistence/snapshot"
	"voxelwire.ai/internal/sim/bundled"
	"voxelwire.ai/internal/sim/geom"
	"voxelwire.ai/internal/sim/wirenet"
	"voxelwire.ai/internal/sim/wirenet/redstone"
)

// ImportSnapshot rebuilds the world from s and sets the tick to s.Header.Tick+1 (the
// next tick to simulate). The world must be empty and stopped.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	if s.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version: %d", s.Header.Version)
	}
	if s.Header.WorldID != "" && w.cfg.ID != "" && s.Header.WorldID != w.cfg.ID {
		return fmt.Errorf("snapshot world %q does not match world %q", s.Header.WorldID, w.cfg.ID)
	}
	if len(w.blocks) != 0 || len(w.emitter.Emissions()) != 0 {
		return fmt.Errorf("snapshot import needs an empty world")
	}

	for _, b := range s.Blocks {
		kind, err := ParsePlainBlock(b.Kind)
		if err != nil {
			return fmt.Errorf("block %v: %w", b.Pos, err)
		}
		w.blocks[geom.PosFromArray(b.Pos)] = kind
	}
	for _, d := range s.Devices {
		port := bundled.RestorePort(d.Output, d.Received, d.Dirty)
		if err := w.placeDevice(geom.PosFromArray(d.Pos), port); err != nil {
			return fmt.Errorf("device %v: %w", d.Pos, err)
		}
	}
	// Placing blocks notifies neighbours, so saved connector state is applied last.
	restores := make(map[*bundled.Connector]bundled.State, len(s.Connectors))
	for _, c := range s.Connectors {
		facing, err := geom.ParseDirection(c.Facing)
		if err != nil {
			return fmt.Errorf("connector %v: %w", c.Pos, err)
		}
		mode, err := bundled.IOModeFromOrdinal(c.IOMode)
		if err != nil {
			return fmt.Errorf("connector %v: %w", c.Pos, err)
		}
		conn, err := w.placeConnector(geom.PosFromArray(c.Pos), facing)
		if err != nil {
			return fmt.Errorf("connector %v: %w", c.Pos, err)
		}
		restores[conn] = bundled.State{
			IOMode:               mode,
			ConnectedToLogicUnit: c.ConnectedToLogicUnit,
			DirtyExtraSource:     c.DirtyExtraSource,
		}
	}
	for _, l := range s.Links {
		if l.Wire != wirenet.WireRedstone.Name {
			return fmt.Errorf("link %v-%v: unknown wire %q", l.A, l.B, l.Wire)
		}
		a := wirenet.ConnectionPoint{Pos: geom.PosFromArray(l.A), Index: l.AIndex}
		b := wirenet.ConnectionPoint{Pos: geom.PosFromArray(l.B), Index: l.BIndex}
		if err := w.nets.Connect(a, b, wirenet.WireRedstone); err != nil {
			return fmt.Errorf("link %s-%s: %w", a, b, err)
		}
	}
	for _, e := range s.Emitters {
		side, err := parseSide(e.Side)
		if err != nil {
			return fmt.Errorf("emitter %v: %w", e.Pos, err)
		}
		w.emitter.Set(geom.PosFromArray(e.Pos), side, e.Signals)
	}
	for i, n := range s.Networks {
		if len(n.Inputs) == 0 {
			continue
		}
		first := wirenet.ConnectionPoint{Pos: geom.PosFromArray(n.Inputs[0].Pos), Index: n.Inputs[0].Index}
		net := w.nets.LocalNetAt(first)
		if net == nil {
			return fmt.Errorf("network #%d: no network holds %s", i, first)
		}
		h, err := wirenet.HandlerAs[*redstone.Handler](net, wirenet.HandlerRedstone)
		if err != nil {
			return fmt.Errorf("network #%d: %w", i, err)
		}
		entries := make([]redstone.Entry, 0, len(n.Inputs))
		for _, in := range n.Inputs {
			entries = append(entries, redstone.Entry{
				Point:  wirenet.ConnectionPoint{Pos: geom.PosFromArray(in.Pos), Index: in.Index},
				Values: in.Values,
			})
		}
		h.Restore(entries, n.Populated, n.Dirty)
	}

	for conn, st := range restores {
		conn.Restore(st)
	}

	w.updates = map[geom.Pos]struct{}{}
	w.tick.Store(s.Header.Tick + 1)
	return nil
}
