package log

import (
	"path/filepath"
	"testing"
	"time"

	"voxelwire.ai/internal/protocol"
	"voxelwire.ai/internal/sim/world"
)

func TestTickLogger_RotatesHourlyAndReadsBack(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)
	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	l.w.now = func() time.Time { return clock }

	edits := []protocol.EditReq{{Type: protocol.EditLink, Pos: [3]int{1, 0, 0}, To: [3]int{2, 0, 0}}}
	if err := l.WriteTick(world.TickLogEntry{Tick: 0, Edits: edits, Digest: "d0"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	clock = clock.Add(2 * time.Minute)
	if err := l.WriteTick(world.TickLogEntry{Tick: 1, Recomputes: 2, Digest: "d1"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := ListTickFiles(filepath.Join(dir, "events"))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "events-2026-03-01-10.jsonl.zst" {
		t.Fatalf("files=%v", files)
	}

	var got []world.TickLogEntry
	for _, f := range files {
		if err := ReadTickFile(f, func(e world.TickLogEntry) error {
			got = append(got, e)
			return nil
		}); err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
	}
	if len(got) != 2 || got[0].Digest != "d0" || got[1].Recomputes != 2 {
		t.Fatalf("entries=%+v", got)
	}
	if len(got[0].Edits) != 1 || got[0].Edits[0].To != [3]int{2, 0, 0} {
		t.Fatalf("edits=%+v", got[0].Edits)
	}
}

func TestAuditLogger_Writes(t *testing.T) {
	dir := t.TempDir()
	l := NewAuditLogger(dir)
	if err := l.WriteAudit(world.AuditEntry{Tick: 3, Edit: protocol.EditRemoveBlock, Result: "OK"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "audit", "audit-*.jsonl.zst"))
	if len(matches) != 1 {
		t.Fatalf("audit files=%v", matches)
	}
}
