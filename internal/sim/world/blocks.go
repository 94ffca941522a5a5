package world

import (
	"fmt"
	"strings"

	"voxelwire.ai/internal/sim/bundled"
	"voxelwire.ai/internal/sim/capref"
	"voxelwire.ai/internal/sim/geom"
	"voxelwire.ai/internal/sim/wirenet"
)

type BlockKind string

const (
	BlockAir       BlockKind = "AIR"
	BlockSolid     BlockKind = "SOLID"
	BlockLogicUnit BlockKind = "LOGIC_UNIT"
	BlockDevice    BlockKind = "DEVICE"
	BlockConnector BlockKind = "BUNDLED_CONNECTOR"
)

// ParsePlainBlock accepts the kinds PLACE_BLOCK may put down.
func ParsePlainBlock(s string) (BlockKind, error) {
	switch k := BlockKind(strings.ToUpper(strings.TrimSpace(s))); k {
	case BlockSolid, BlockLogicUnit:
		return k, nil
	default:
		return "", fmt.Errorf("block kind %q cannot be placed directly", s)
	}
}

func (w *World) occupied(pos geom.Pos) bool {
	k, ok := w.blocks[pos]
	return ok && k != BlockAir
}

func (w *World) placePlain(pos geom.Pos, kind BlockKind) error {
	if w.occupied(pos) {
		return rejectf(codeConflict, "%s is occupied by %s", pos, w.blocks[pos])
	}
	w.blocks[pos] = kind
	w.MarkBlockForUpdate(pos)
	w.notifyNeighbors(pos)
	return nil
}

func (w *World) placeDevice(pos geom.Pos, port *bundled.Port) error {
	if w.occupied(pos) {
		return rejectf(codeConflict, "%s is occupied by %s", pos, w.blocks[pos])
	}
	w.blocks[pos] = BlockDevice
	w.devices[pos] = port
	capref.Expose(w.caps, pos, geom.AnySide, bundled.BundleConnectionKind, bundled.BundleConnection(port))
	w.MarkBlockForUpdate(pos)
	w.notifyNeighbors(pos)
	return nil
}

func (w *World) placeConnector(pos geom.Pos, facing geom.Direction) (*bundled.Connector, error) {
	if !facing.Valid() {
		return nil, rejectf(codeBadRequest, "invalid facing %s", facing)
	}
	if w.occupied(pos) {
		return nil, rejectf(codeConflict, "%s is occupied by %s", pos, w.blocks[pos])
	}
	c := bundled.NewConnector(w, w.nets, w.providers, pos, facing)
	if err := w.nets.AddConnector(c); err != nil {
		return nil, rejectf(codeConflict, "%v", err)
	}
	w.blocks[pos] = BlockConnector
	w.connectors[pos] = c
	w.MarkBlockForUpdate(pos)
	w.notifyNeighbors(pos)
	return c, nil
}

func (w *World) removeBlock(pos geom.Pos) error {
	kind, ok := w.blocks[pos]
	if !ok || kind == BlockAir {
		return rejectf(codeInvalidTarget, "no block at %s", pos)
	}
	switch kind {
	case BlockConnector:
		c := w.connectors[pos]
		c.SetRemoved()
		if _, err := w.nets.RemoveConnector(pos); err != nil {
			return rejectf(codeInternal, "%v", err)
		}
		delete(w.connectors, pos)
	case BlockDevice:
		w.caps.Withdraw(pos)
		delete(w.devices, pos)
	}
	delete(w.blocks, pos)
	w.MarkBlockForUpdate(pos)
	w.notifyNeighbors(pos)
	return nil
}

func (w *World) link(a, b geom.Pos) error {
	if _, ok := w.connectors[a]; !ok {
		return rejectf(codeInvalidTarget, "no connector at %s", a)
	}
	if _, ok := w.connectors[b]; !ok {
		return rejectf(codeInvalidTarget, "no connector at %s", b)
	}
	na, nb := w.nets.LocalNet(a), w.nets.LocalNet(b)
	if limit := w.cfg.MaxNetworkPoints; limit > 0 && na != nb && na.Len()+nb.Len() > limit {
		return rejectf(codeConflict, "network would hold %d points (max %d)", na.Len()+nb.Len(), limit)
	}
	err := w.nets.Connect(wirenet.ConnectionPoint{Pos: a}, wirenet.ConnectionPoint{Pos: b}, wirenet.WireRedstone)
	if err != nil {
		return rejectf(codeConflict, "%v", err)
	}
	return nil
}

func (w *World) unlink(a, b geom.Pos) error {
	err := w.nets.Disconnect(wirenet.ConnectionPoint{Pos: a}, wirenet.ConnectionPoint{Pos: b})
	if err != nil {
		return rejectf(codeInvalidTarget, "%v", err)
	}
	return nil
}

// notifyNeighbors tells the connectors around pos that the block at pos changed.
func (w *World) notifyNeighbors(pos geom.Pos) {
	for _, d := range geom.Directions {
		if c, ok := w.connectors[pos.Relative(d)]; ok {
			c.OnNeighborChange(pos)
		}
	}
}
