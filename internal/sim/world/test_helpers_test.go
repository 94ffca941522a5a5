package world

import (
	"testing"

	"voxelwire.ai/internal/protocol"
	"voxelwire.ai/internal/sim/geom"
)

type recordingTickLogger struct {
	entries []TickLogEntry
}

func (r *recordingTickLogger) WriteTick(e TickLogEntry) error {
	r.entries = append(r.entries, e)
	return nil
}

func (r *recordingTickLogger) last() TickLogEntry { return r.entries[len(r.entries)-1] }

func newTestWorld(t *testing.T, cfg WorldConfig) (*World, *recordingTickLogger) {
	t.Helper()
	if cfg.ID == "" {
		cfg.ID = "test"
	}
	if cfg.TickRateHz == 0 {
		cfg.TickRateHz = 20
	}
	w, err := New(cfg, Options{})
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	rec := &recordingTickLogger{}
	w.SetTickLogger(rec)
	return w, rec
}

func at(x int) [3]int { return [3]int{x, 0, 0} }

func sig(pairs ...int) []int {
	out := make([]int, 16)
	for i := 0; i+1 < len(pairs); i += 2 {
		out[pairs[i]] = pairs[i+1]
	}
	return out
}

// pairEdits lays out device(0) <- connector(1) == connector(2) -> device(3).
func pairEdits(left []int) []protocol.EditReq {
	return []protocol.EditReq{
		{Type: protocol.EditPlaceDevice, Pos: at(0), Signals: left},
		{Type: protocol.EditPlaceDevice, Pos: at(3), Signals: sig()},
		{Type: protocol.EditPlaceConnector, Pos: at(1), Facing: "WEST"},
		{Type: protocol.EditPlaceConnector, Pos: at(2), Facing: "EAST"},
		{Type: protocol.EditLink, Pos: at(1), To: at(2)},
	}
}

func received(t *testing.T, w *World, x int) [16]byte {
	t.Helper()
	p, ok := w.Device(geom.Pos{X: x})
	if !ok {
		t.Fatalf("no device at x=%d", x)
	}
	return p.Received()
}

type recordingAuditLogger struct {
	entries []AuditEntry
}

func (r *recordingAuditLogger) WriteAudit(e AuditEntry) error {
	r.entries = append(r.entries, e)
	return nil
}
