package world

import (
	"encoding/json"

	"voxelwire.ai/internal/protocol"
	"voxelwire.ai/internal/sim/wirenet"
	"voxelwire.ai/internal/sim/wirenet/redstone"
)

// ObserverJoinRequest registers a read-only observer session that receives one TICK
// message per simulated tick on TickOut. Networks adds the per-network tables.
//
// All observer state is maintained by the world loop goroutine.
type ObserverJoinRequest struct {
	SessionID string
	TickOut   chan []byte
	Networks  bool
}

type observerClient struct {
	id       string
	tickOut  chan []byte
	networks bool
}

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.TickOut == nil {
		return
	}
	if old := w.observers[req.SessionID]; old != nil {
		close(old.tickOut)
	}
	w.observers[req.SessionID] = &observerClient{
		id:       req.SessionID,
		tickOut:  req.TickOut,
		networks: req.Networks,
	}
}

func (w *World) handleObserverLeave(sessionID string) {
	c := w.observers[sessionID]
	if c == nil {
		return
	}
	delete(w.observers, sessionID)
	close(c.tickOut)
}

func (w *World) stepObservers(nowTick uint64, digest string, updates []protocol.BlockUpdate, rejected []protocol.EditResult) {
	if len(w.observers) == 0 {
		return
	}
	msg := protocol.TickMsg{
		Type:            protocol.TypeTick,
		ProtocolVersion: protocol.Version,
		Tick:            nowTick,
		Digest:          digest,
		BlockUpdates:    updates,
		Rejected:        rejected,
	}
	plain, err := json.Marshal(msg)
	if err != nil {
		w.log.Printf("tick %d: observer encode: %v", nowTick, err)
		return
	}
	var full []byte
	for _, c := range w.observers {
		if !c.networks {
			sendLatest(c.tickOut, plain)
			continue
		}
		if full == nil {
			msg.Networks = w.networkStates()
			if full, err = json.Marshal(msg); err != nil {
				w.log.Printf("tick %d: observer encode: %v", nowTick, err)
				return
			}
		}
		sendLatest(c.tickOut, full)
	}
}

// networkStates describes every local network, in network id order.
func (w *World) networkStates() []protocol.NetworkState {
	nets := w.nets.Networks()
	out := make([]protocol.NetworkState, 0, len(nets))
	for _, n := range nets {
		st := protocol.NetworkState{ID: n.ID(), Points: n.Len()}
		h, err := wirenet.HandlerAs[*redstone.Handler](n, wirenet.HandlerRedstone)
		if err != nil {
			st.Values = signalInts(redstone.Signals{})
			out = append(out, st)
			continue
		}
		st.Values = signalInts(h.Values())
		for _, e := range h.Table() {
			st.Inputs = append(st.Inputs, protocol.Input{
				Pos:    e.Point.Pos.ToArray(),
				Index:  e.Point.Index,
				Values: signalInts(e.Values),
			})
		}
		out = append(out, st)
	}
	return out
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
