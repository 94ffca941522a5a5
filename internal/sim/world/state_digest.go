package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"

	"voxelwire.ai/internal/sim/geom"
	"voxelwire.ai/internal/sim/wirenet"
	"voxelwire.ai/internal/sim/wirenet/redstone"
)

// stateDigest hashes everything a replay must reproduce. Network ids are left out:
// networks are identified by their points, which survive a snapshot round trip.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)

	positions := make([]geom.Pos, 0, len(w.blocks))
	for pos := range w.blocks {
		positions = append(positions, pos)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Less(positions[j]) })
	digestWriteU64(h, &tmp, uint64(len(positions)))
	for _, pos := range positions {
		digestWritePos(h, &tmp, pos)
		h.Write([]byte(w.blocks[pos]))
		h.Write([]byte{0})
		if port := w.devices[pos]; port != nil {
			out, rcv := port.Output(), port.Received()
			h.Write(out[:])
			h.Write(rcv[:])
		}
		if c := w.connectors[pos]; c != nil {
			h.Write([]byte{
				byte(c.Facing()),
				byte(c.IOMode()),
				boolByte(c.ConnectedToLogicUnit()),
				boolByte(c.DirtyExtraSource()),
			})
		}
	}

	conns := w.nets.Connections()
	digestWriteU64(h, &tmp, uint64(len(conns)))
	for _, c := range conns {
		digestWritePoint(h, &tmp, c.A)
		digestWritePoint(h, &tmp, c.B)
		h.Write([]byte(c.Type.Name))
		h.Write([]byte{0})
	}

	tables := w.networkTables()
	digestWriteU64(h, &tmp, uint64(len(tables)))
	for _, t := range tables {
		h.Write([]byte{boolByte(t.populated)})
		digestWriteU64(h, &tmp, uint64(len(t.entries)))
		for _, e := range t.entries {
			digestWritePoint(h, &tmp, e.Point)
			h.Write(e.Values[:])
		}
	}

	emissions := w.emitter.Emissions()
	digestWriteU64(h, &tmp, uint64(len(emissions)))
	for _, e := range emissions {
		digestWritePos(h, &tmp, e.At.Pos)
		h.Write([]byte{byte(e.At.Side)})
		h.Write(e.Signals[:])
	}

	return hex.EncodeToString(h.Sum(nil))
}

type networkTable struct {
	first     wirenet.ConnectionPoint
	populated bool
	dirty     bool
	entries   []redstone.Entry
}

// networkTables lists the redstone tables ordered by each network's lowest point.
func (w *World) networkTables() []networkTable {
	var out []networkTable
	for _, n := range w.nets.Networks() {
		h, err := wirenet.HandlerAs[*redstone.Handler](n, wirenet.HandlerRedstone)
		if err != nil {
			continue
		}
		points := n.Points()
		if len(points) == 0 {
			continue
		}
		out = append(out, networkTable{
			first:     points[0],
			populated: h.Populated(),
			dirty:     h.Dirty(),
			entries:   h.Table(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].first.Less(out[j].first) })
	return out
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hashWriter, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func digestWritePos(h hashWriter, tmp *[8]byte, p geom.Pos) {
	digestWriteI64(h, tmp, int64(p.X))
	digestWriteI64(h, tmp, int64(p.Y))
	digestWriteI64(h, tmp, int64(p.Z))
}

func digestWritePoint(h hashWriter, tmp *[8]byte, cp wirenet.ConnectionPoint) {
	digestWritePos(h, tmp, cp.Pos)
	digestWriteI64(h, tmp, int64(cp.Index))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

type hashWriter interface {
	Write(p []byte) (n int, err error)
}
