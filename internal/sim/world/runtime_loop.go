package world

import (
	"context"
	"sort"
	"time"

	"voxelwire.ai/internal/protocol"
	"voxelwire.ai/internal/sim/geom"
	"voxelwire.ai/internal/sim/wirenet"
	"voxelwire.ai/internal/sim/wirenet/redstone"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending []protocol.EditReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case env := <-w.inbox:
			pending = append(pending, env.Edits...)
		case <-ticker.C:
			w.step(pending)
			pending = pending[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// StepOnce advances the world by a single tick using the same ordering semantics as the server.
// It is primarily intended for deterministic replays/tests.
func (w *World) StepOnce(edits []protocol.EditReq) (tick uint64, digest string) {
	return w.step(edits)
}

// step runs one tick: edits, connector polling, dirty networks, then the outputs.
func (w *World) step(edits []protocol.EditReq) (uint64, string) {
	nowTick := w.tick.Load()
	start := time.Now()

	rejected := w.applyEdits(nowTick, edits)

	before := w.recomputeTotal()
	for _, pos := range w.connectorOrder() {
		w.connectors[pos].TickServer()
	}
	w.nets.Tick()
	recomputes := w.recomputeTotal() - before

	updates := w.flushBlockUpdates()
	digest := w.stateDigest(nowTick)

	if w.tickLogger != nil {
		entry := TickLogEntry{
			Tick:         nowTick,
			Edits:        append([]protocol.EditReq(nil), edits...),
			Rejected:     rejected,
			Recomputes:   recomputes,
			BlockUpdates: len(updates),
			Digest:       digest,
		}
		if err := w.tickLogger.WriteTick(entry); err != nil {
			w.log.Printf("tick %d: tick log: %v", nowTick, err)
		}
	}
	for _, r := range rejected {
		w.log.Printf("tick %d: edit %q rejected: %s %s", nowTick, r.ID, r.Code, r.Message)
	}

	w.maybeSnapshot(nowTick)
	w.stepObservers(nowTick, digest, updates, rejected)

	w.publishMetrics(nowTick, time.Since(start))
	w.tick.Add(1)
	return nowTick, digest
}

func (w *World) connectorOrder() []geom.Pos {
	out := make([]geom.Pos, 0, len(w.connectors))
	for pos := range w.connectors {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func (w *World) recomputeTotal() uint64 {
	var n uint64
	for _, net := range w.nets.Networks() {
		if h, err := wirenet.HandlerAs[*redstone.Handler](net, wirenet.HandlerRedstone); err == nil {
			n += h.Recomputes()
		}
	}
	return n
}

// flushBlockUpdates drains the positions marked this tick, ordered by position.
func (w *World) flushBlockUpdates() []protocol.BlockUpdate {
	if len(w.updates) == 0 {
		return nil
	}
	positions := make([]geom.Pos, 0, len(w.updates))
	for pos := range w.updates {
		positions = append(positions, pos)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Less(positions[j]) })
	w.updates = map[geom.Pos]struct{}{}

	out := make([]protocol.BlockUpdate, 0, len(positions))
	for _, pos := range positions {
		u := protocol.BlockUpdate{Pos: pos.ToArray(), Kind: string(w.Block(pos))}
		switch {
		case w.devices[pos] != nil:
			u.Signals = signalInts(w.devices[pos].Received())
		case w.connectors[pos] != nil:
			if h, ok := w.RedstoneAt(pos); ok {
				u.Signals = signalInts(h.Values())
			}
		}
		out = append(out, u)
	}
	return out
}

func (w *World) maybeSnapshot(nowTick uint64) {
	every := uint64(w.cfg.SnapshotEveryTicks)
	if w.snapshotSink == nil || every == 0 || nowTick == 0 || nowTick%every != 0 {
		return
	}
	snap := w.ExportSnapshot(nowTick)
	select {
	case w.snapshotSink <- snap:
	default:
		w.snapshotsDropped.Add(1)
		w.log.Printf("tick %d: snapshot sink full, snapshot dropped", nowTick)
	}
}

