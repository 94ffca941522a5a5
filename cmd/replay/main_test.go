package main

import (
	"path/filepath"
	"testing"

	persistlog "voxelwire.ai/internal/persistence/log"
	"voxelwire.ai/internal/persistence/snapshot"
	"voxelwire.ai/internal/protocol"
	"voxelwire.ai/internal/sim/world"
)

func sig(ch, v int) []int {
	out := make([]int, 16)
	out[ch] = v
	return out
}

// record runs a small scripted world, snapshotting after the first tick, and returns the
// snapshot plus the events directory.
func record(t *testing.T) (snapshot.SnapshotV1, string) {
	t.Helper()
	dir := t.TempDir()
	w, err := world.New(world.WorldConfig{ID: "replay", TickRateHz: 20}, world.Options{})
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	tl := persistlog.NewTickLogger(dir)
	w.SetTickLogger(tl)

	script := [][]protocol.EditReq{
		{
			{Type: protocol.EditPlaceDevice, Pos: [3]int{0, 0, 0}, Signals: sig(0, 7)},
			{Type: protocol.EditPlaceDevice, Pos: [3]int{3, 0, 0}, Signals: sig(0, 0)},
			{Type: protocol.EditPlaceConnector, Pos: [3]int{1, 0, 0}, Facing: "WEST"},
			{Type: protocol.EditPlaceConnector, Pos: [3]int{2, 0, 0}, Facing: "EAST"},
		},
		{{Type: protocol.EditLink, Pos: [3]int{1, 0, 0}, To: [3]int{2, 0, 0}}},
		{{Type: protocol.EditSetDeviceOutput, Pos: [3]int{0, 0, 0}, Signals: sig(4, 15)}},
		nil,
		{{Type: protocol.EditRemoveBlock, Pos: [3]int{2, 0, 0}}},
	}
	var snap snapshot.SnapshotV1
	for i, edits := range script {
		tick, _ := w.StepOnce(edits)
		if i == 0 {
			snap = w.ExportSnapshot(tick)
		}
	}
	if err := tl.Close(); err != nil {
		t.Fatalf("close tick log: %v", err)
	}
	return snap, filepath.Join(dir, "events")
}

func TestReplay_VerifiesDigestsFromSnapshot(t *testing.T) {
	snap, events := record(t)
	files, err := persistlog.ListTickFiles(events)
	if err != nil || len(files) == 0 {
		t.Fatalf("files=%v err=%v", files, err)
	}

	w, err := worldFromSnapshot(snap)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	checked, err := replay(w, files, 0, 0)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if checked != 4 {
		t.Fatalf("checked=%d want=4", checked)
	}
}

func TestReplay_StopsAtToTick(t *testing.T) {
	snap, events := record(t)
	files, _ := persistlog.ListTickFiles(events)
	w, err := worldFromSnapshot(snap)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	checked, err := replay(w, files, 0, 2)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if checked != 2 || w.CurrentTick() != 3 {
		t.Fatalf("checked=%d tick=%d", checked, w.CurrentTick())
	}
}

func TestReplay_DetectsDivergence(t *testing.T) {
	snap, events := record(t)
	files, _ := persistlog.ListTickFiles(events)

	snap.Emitters = append(snap.Emitters, snapshot.EmitterV1{Pos: [3]int{9, 9, 9}, Side: "ANY", Signals: [16]byte{3}})
	w, err := worldFromSnapshot(snap)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	if _, err := replay(w, files, 0, 0); err == nil {
		t.Fatalf("expected digest mismatch")
	}
}
