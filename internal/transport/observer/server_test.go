package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"voxelwire.ai/internal/protocol"
	"voxelwire.ai/internal/sim/world"
)

func newTestWorld(t *testing.T) *world.World {
	t.Helper()
	w, err := world.New(world.WorldConfig{ID: "obs", TickRateHz: 50}, world.Options{})
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	return w
}

func signals(ch, v int) []int {
	out := make([]int, 16)
	out[ch] = v
	return out
}

func TestWSHandler_SubscribeEditAndStream(t *testing.T) {
	w := newTestWorld(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	s := NewServer(w, nil, Options{TickQueue: 4, AllowNetworks: true})
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/observe", s.WSHandler())
	srv := httptest.NewServer(mux)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/observe"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := protocol.SubscribeMsg{Type: protocol.TypeSubscribe, ProtocolVersion: protocol.Version, Networks: true}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	edit := protocol.EditMsg{
		Type:            protocol.TypeEdit,
		ProtocolVersion: protocol.Version,
		Edits: []protocol.EditReq{
			{Type: protocol.EditPlaceDevice, Pos: [3]int{0, 0, 0}, Signals: signals(0, 7)},
			{Type: protocol.EditPlaceConnector, Pos: [3]int{1, 0, 0}, Facing: "WEST"},
			{Type: protocol.EditPlaceConnector, Pos: [3]int{2, 0, 0}, Facing: "EAST"},
			{Type: protocol.EditLink, Pos: [3]int{1, 0, 0}, To: [3]int{2, 0, 0}},
		},
	}
	if err := conn.WriteJSON(edit); err != nil {
		t.Fatalf("edit: %v", err)
	}

	var acked, streamed bool
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for !acked || !streamed {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read (acked=%v streamed=%v): %v", acked, streamed, err)
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		switch base.Type {
		case protocol.TypeEditAck:
			var ack protocol.EditAckMsg
			_ = json.Unmarshal(msg, &ack)
			if ack.Code != "" || ack.Queued != 4 {
				t.Fatalf("ack=%+v", ack)
			}
			acked = true
		case protocol.TypeTick:
			var tick protocol.TickMsg
			_ = json.Unmarshal(msg, &tick)
			if len(tick.Networks) == 1 && tick.Networks[0].Values[0] == 7 {
				streamed = true
			}
		}
	}
}

func TestWSHandler_RejectsNonSubscribeHandshake(t *testing.T) {
	w := newTestWorld(t)
	s := NewServer(w, nil, Options{})
	srv := httptest.NewServer(s.WSHandler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := conn.WriteJSON(map[string]string{"type": "EDIT", "protocol_version": protocol.Version}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("err=%v want policy violation close", err)
	}
}

func TestHandleEdit_Codes(t *testing.T) {
	w := newTestWorld(t)
	s := NewServer(w, nil, Options{})

	if ack := s.handleEdit("s", []byte(`{"type":"EDIT","protocol_version":"0.9","edits":[{"type":"LINK"}]}`)); ack.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("old version ack=%+v", ack)
	}
	if ack := s.handleEdit("s", []byte(`{"type":"EDIT","protocol_version":"1.0","edits":[]}`)); ack.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("empty ack=%+v", ack)
	}
	good := []byte(`{"type":"EDIT","protocol_version":"1.0","edits":[{"type":"LINK"}]}`)
	if ack := s.handleEdit("s", good); ack.Code != "" || ack.Queued != 1 {
		t.Fatalf("good ack=%+v", ack)
	}
	// Nothing drains the inbox, so it eventually reports busy.
	var ack protocol.EditAckMsg
	for i := 0; i < 2048 && ack.Code == ""; i++ {
		ack = s.handleEdit("s", good)
	}
	if ack.Code != protocol.ErrWorldBusy {
		t.Fatalf("ack=%+v want busy", ack)
	}
}

func TestBootstrapHandler(t *testing.T) {
	w := newTestWorld(t)
	h := NewServer(w, nil, Options{}).BootstrapHandler()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/bootstrap", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	h(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var resp protocol.BootstrapResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.WorldID != "obs" || resp.TickRateHz != 50 || resp.Channels != 16 {
		t.Fatalf("resp=%+v", resp)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/bootstrap", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	h(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("remote status=%d want=403", rec.Code)
	}
}
