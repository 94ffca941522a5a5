package indexdb

import (
	"context"
	"path/filepath"
	"testing"

	"voxelwire.ai/internal/persistence/snapshot"
	"voxelwire.ai/internal/protocol"
	"voxelwire.ai/internal/sim/tuning"
	"voxelwire.ai/internal/sim/world"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTick, tick: world.TickLogEntry{Tick: 1}}

	_ = s.WriteTick(world.TickLogEntry{Tick: 2})
	_ = s.WriteAudit(world.AuditEntry{Tick: 2})
	s.RecordSnapshot("/tmp/2.snap.zst", snapshot.SnapshotV1{})

	st := s.Stats()
	if st.DropTickTotal != 1 {
		t.Fatalf("DropTickTotal=%d want=1", st.DropTickTotal)
	}
	if st.DropAuditTotal != 1 {
		t.Fatalf("DropAuditTotal=%d want=1", st.DropAuditTotal)
	}
	if st.DropSnapshotTotal != 1 {
		t.Fatalf("DropSnapshotTotal=%d want=1", st.DropSnapshotTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_WritesAreQueryableAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "world.sqlite")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.UpsertConfig(tuning.Defaults()); err != nil {
		t.Fatalf("upsert config: %v", err)
	}
	_ = s.WriteTick(world.TickLogEntry{
		Tick:         7,
		Edits:        []protocol.EditReq{{Type: protocol.EditLink}, {Type: protocol.EditUnlink}},
		Rejected:     []protocol.EditResult{{Code: protocol.ErrConflict}},
		Recomputes:   3,
		BlockUpdates: 4,
		Digest:       "abc",
	})
	_ = s.WriteAudit(world.AuditEntry{Tick: 7, Edit: protocol.EditLink, Result: "OK"})
	s.RecordSnapshot("/w/snapshots/7.snap.zst", snapshot.SnapshotV1{
		Header:     snapshot.Header{Tick: 7},
		Connectors: make([]snapshot.ConnectorV1, 2),
	})
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, err := openSQLite(path, 1)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer r.Close()

	ctx := context.Background()
	row, ok, err := r.Tick(ctx, 7)
	if err != nil || !ok {
		t.Fatalf("tick: ok=%v err=%v", ok, err)
	}
	if row.Digest != "abc" || row.Edits != 2 || row.Rejected != 1 || row.Recomputes != 3 || row.BlockUpdates != 4 {
		t.Fatalf("row=%+v", row)
	}
	if _, ok, _ := r.Tick(ctx, 8); ok {
		t.Fatalf("tick 8 should be missing")
	}

	tick, p, ok, err := r.LatestSnapshot(ctx)
	if err != nil || !ok || tick != 7 || p != "/w/snapshots/7.snap.zst" {
		t.Fatalf("latest snapshot: tick=%d path=%q ok=%v err=%v", tick, p, ok, err)
	}

	var edits int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM edits WHERE tick=7`).Scan(&edits); err != nil || edits != 2 {
		t.Fatalf("edits=%d err=%v", edits, err)
	}
	var cfg string
	if err := r.db.QueryRow(`SELECT json FROM config WHERE name='tuning'`).Scan(&cfg); err != nil || cfg == "" {
		t.Fatalf("config=%q err=%v", cfg, err)
	}
}
