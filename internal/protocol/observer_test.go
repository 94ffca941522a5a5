package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestTickMsg_OmitsEmptySections(t *testing.T) {
	b, err := json.Marshal(TickMsg{Type: TypeTick, ProtocolVersion: Version, Tick: 3, Digest: "ab"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	for _, key := range []string{"block_updates", "networks", "rejected"} {
		if strings.Contains(s, key) {
			t.Fatalf("empty %s serialized: %s", key, s)
		}
	}
}

func TestDecodeBase_RoutesEdit(t *testing.T) {
	raw := []byte(`{"type":"EDIT","protocol_version":"1.0","edits":[{"type":"LINK","pos":[0,0,0],"to":[1,0,0]}]}`)
	base, err := DecodeBase(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if base.Type != TypeEdit || base.ProtocolVersion != Version {
		t.Fatalf("base=%+v", base)
	}
	var m EditMsg
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(m.Edits) != 1 || m.Edits[0].To != [3]int{1, 0, 0} {
		t.Fatalf("edits=%+v", m.Edits)
	}
}
