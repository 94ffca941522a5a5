package world

import (
	"path/filepath"
	"testing"

	"voxelwire.ai/internal/persistence/snapshot"
	"voxelwire.ai/internal/protocol"
	"voxelwire.ai/internal/sim/bundled"
	"voxelwire.ai/internal/sim/geom"
)

func buildSnapshotWorld(t *testing.T) *World {
	t.Helper()
	w, _ := newTestWorld(t, WorldConfig{})
	w.StepOnce(append(pairEdits(sig(0, 7)),
		protocol.EditReq{Type: protocol.EditPlaceBlock, Pos: [3]int{1, 1, 0}, Kind: "LOGIC_UNIT"},
		protocol.EditReq{Type: protocol.EditPlaceConnector, Pos: [3]int{1, 2, 0}, Facing: "DOWN"},
		protocol.EditReq{Type: protocol.EditLink, Pos: at(2), To: [3]int{1, 2, 0}},
		protocol.EditReq{Type: protocol.EditSetEmitter, Pos: [3]int{1, 3, 0}, Side: "DOWN", Signals: sig(9, 4)},
	))
	w.StepOnce([]protocol.EditReq{{Type: protocol.EditConfigureIO, Pos: [3]int{1, 2, 0}}})
	return w
}

func TestSnapshot_ImportResumesWithSameDigests(t *testing.T) {
	a := buildSnapshotWorld(t)
	tick := a.CurrentTick() - 1

	p := filepath.Join(t.TempDir(), "snap.zst")
	if err := snapshot.WriteSnapshot(p, a.ExportSnapshot(tick)); err != nil {
		t.Fatalf("write: %v", err)
	}
	snap, err := snapshot.ReadSnapshot(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	b, _ := newTestWorld(t, WorldConfig{})
	if err := b.ImportSnapshot(snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	if b.CurrentTick() != a.CurrentTick() {
		t.Fatalf("tick=%d want=%d", b.CurrentTick(), a.CurrentTick())
	}
	c, ok := b.Connector(geom.Pos{X: 1, Y: 2})
	if !ok || c.IOMode() != bundled.IOInput || !c.ConnectedToLogicUnit() {
		t.Fatalf("connector state lost: ok=%v state=%+v", ok, c.State())
	}

	script := [][]protocol.EditReq{
		nil,
		{{Type: protocol.EditSetDeviceOutput, Pos: at(0), Signals: sig(1, 1)}},
		{{Type: protocol.EditClearEmitter, Pos: [3]int{1, 3, 0}}},
		{{Type: protocol.EditRemoveBlock, Pos: at(2)}},
	}
	for i, edits := range script {
		ta, da := a.StepOnce(edits)
		tb, db := b.StepOnce(edits)
		if ta != tb || da != db {
			t.Fatalf("step %d: (%d,%s) vs (%d,%s)", i, ta, da, tb, db)
		}
	}
}

func TestImportSnapshot_Rejects(t *testing.T) {
	a := buildSnapshotWorld(t)
	snap := a.ExportSnapshot(a.CurrentTick() - 1)

	if err := a.ImportSnapshot(snap); err == nil {
		t.Fatalf("expected error importing into a populated world")
	}

	other, _ := newTestWorld(t, WorldConfig{ID: "other"})
	if err := other.ImportSnapshot(snap); err == nil {
		t.Fatalf("expected world id mismatch")
	}

	bad := snap
	bad.Header.Version = 9
	fresh, _ := newTestWorld(t, WorldConfig{})
	if err := fresh.ImportSnapshot(bad); err == nil {
		t.Fatalf("expected version error")
	}
}

func TestSnapshotCadence_DropsWhenSinkFull(t *testing.T) {
	w, _ := newTestWorld(t, WorldConfig{SnapshotEveryTicks: 2})
	sink := make(chan snapshot.SnapshotV1, 1)
	w.SetSnapshotSink(sink)

	for i := 0; i < 5; i++ {
		w.StepOnce(nil)
	}
	if len(sink) != 1 {
		t.Fatalf("queued=%d want=1", len(sink))
	}
	if got := (<-sink).Header.Tick; got != 2 {
		t.Fatalf("snapshot tick=%d want=2", got)
	}
	if got := w.SnapshotsDropped(); got != 1 {
		t.Fatalf("dropped=%d want=1", got)
	}
}
