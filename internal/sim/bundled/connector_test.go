package bundled

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"

	"voxelwire.ai/internal/sim/capref"
	"voxelwire.ai/internal/sim/geom"
	"voxelwire.ai/internal/sim/wirenet"
	"voxelwire.ai/internal/sim/wirenet/redstone"
)

type testLevel struct {
	caps    *capref.Registry
	logic   map[geom.Pos]bool
	updates []geom.Pos
}

func newTestLevel() *testLevel {
	return &testLevel{caps: capref.NewRegistry(), logic: map[geom.Pos]bool{}}
}

func (l *testLevel) Capabilities() capref.Lookup     { return l.caps }
func (l *testLevel) IsLogicUnit(pos geom.Pos) bool   { return l.logic[pos] }
func (l *testLevel) MarkBlockForUpdate(pos geom.Pos) { l.updates = append(l.updates, pos) }

func (l *testLevel) attach(pos geom.Pos, p *Port) {
	capref.Expose[BundleConnection](l.caps, pos, geom.AnySide, BundleConnectionKind, p)
}

func (l *testLevel) updatedAt(pos geom.Pos) (n int) {
	for _, u := range l.updates {
		if u == pos {
			n++
		}
	}
	return n
}

type rig struct {
	level     *testLevel
	nets      *wirenet.GlobalNetwork
	providers *ProviderRegistry
}

func newRig(t *testing.T, providers ...Provider) *rig {
	t.Helper()
	reg := wirenet.NewRegistry()
	if err := redstone.Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	reg.Close()
	pr := NewProviderRegistry(nil)
	for _, p := range providers {
		if err := pr.Register(p); err != nil {
			t.Fatalf("register provider: %v", err)
		}
	}
	pr.Close()
	return &rig{level: newTestLevel(), nets: wirenet.NewGlobalNetwork(reg), providers: pr}
}

// place puts a connector at (x,0,0) facing up, so its attached block is (x,1,0).
func (r *rig) place(t *testing.T, x int) *Connector {
	t.Helper()
	c := NewConnector(r.level, r.nets, r.providers, geom.Pos{X: x}, geom.Up)
	if err := r.nets.AddConnector(c); err != nil {
		t.Fatalf("add connector: %v", err)
	}
	return c
}

func (r *rig) link(t *testing.T, a, b *Connector) {
	t.Helper()
	if err := r.nets.Connect(a.ConnectionPoints()[0], b.ConnectionPoints()[0], wirenet.WireRedstone); err != nil {
		t.Fatalf("connect: %v", err)
	}
}

func above(x int) geom.Pos { return geom.Pos{X: x, Y: 1} }

func TestConnector_EndToEndTwoPoints(t *testing.T) {
	r := newRig(t)
	a, b := r.place(t, 0), r.place(t, 1)
	r.link(t, a, b)

	src := NewPort(redstone.Signals{3: 15})
	sink := NewPort(redstone.Signals{})
	r.level.attach(above(0), src)
	r.level.attach(above(1), sink)

	a.TickServer()

	h := a.handler()
	if got := h.Stored(a.ConnectionPoints()[0]); got != (redstone.Signals{3: 15}) {
		t.Fatalf("stored[A]=%v", got)
	}
	if got := h.Stored(b.ConnectionPoints()[0]); !got.IsZero() {
		t.Fatalf("stored[B]=%v", got)
	}
	if got := src.Received(); !got.IsZero() {
		t.Fatalf("source saw its own signal reflected: %v", got)
	}
	if got := sink.Received(); got != (redstone.Signals{3: 15}) {
		t.Fatalf("sink received %v", got)
	}
	if b.Value(3) != 15 || a.Value(3) != 15 {
		t.Fatalf("network value(3): a=%d b=%d", a.Value(3), b.Value(3))
	}
	if r.level.updatedAt(a.Pos()) == 0 || r.level.updatedAt(above(1)) == 0 {
		t.Fatalf("missing block updates: %v", r.level.updates)
	}
}

func TestConnector_TickPollsOnce(t *testing.T) {
	r := newRig(t)
	a := r.place(t, 0)
	port := NewPort(redstone.Signals{0: 1})
	r.level.attach(above(0), port)

	h := a.handler()
	a.TickServer()
	if h.Recomputes() != 1 {
		t.Fatalf("recomputes=%d want=1", h.Recomputes())
	}
	a.TickServer()
	if h.Recomputes() != 1 {
		t.Fatalf("clean tick recomputed: %d", h.Recomputes())
	}
	port.SetOutput(redstone.Signals{0: 1})
	a.TickServer()
	if h.Recomputes() != 1 {
		t.Fatalf("unchanged output recomputed: %d", h.Recomputes())
	}
	port.SetOutput(redstone.Signals{0: 2})
	a.TickServer()
	if h.Recomputes() != 2 || a.Value(0) != 2 {
		t.Fatalf("recomputes=%d value=%d", h.Recomputes(), a.Value(0))
	}
}

func TestConnector_ExtraProvidersOnlyRaise(t *testing.T) {
	low := ProviderFunc(func(_ Level, pos geom.Pos, _ geom.Direction) []byte {
		if pos != above(0) {
			return nil
		}
		s := make([]byte, 16)
		s[0], s[1] = 2, 9
		return s
	})
	high := ProviderFunc(func(_ Level, pos geom.Pos, _ geom.Direction) []byte {
		if pos != above(0) {
			return nil
		}
		s := make([]byte, 16)
		s[0], s[2] = 7, 4
		return s
	})

	collect := func(providers ...Provider) redstone.Signals {
		r := newRig(t, providers...)
		c := r.place(t, 0)
		r.level.attach(above(0), NewPort(redstone.Signals{0: 5, 1: 3}))
		var s redstone.Signals
		c.UpdateInput(&s, c.ConnectionPoints()[0])
		return s
	}

	base := collect()
	one := collect(low)
	both := collect(low, high)
	for ch := 0; ch < redstone.Channels; ch++ {
		if one[ch] < base[ch] || both[ch] < one[ch] {
			t.Fatalf("channel %d decreased: base=%d one=%d both=%d", ch, base[ch], one[ch], both[ch])
		}
	}
	if both != (redstone.Signals{0: 7, 1: 9, 2: 4}) {
		t.Fatalf("combined=%v", both)
	}
}

func TestConnector_UpdateInputToleratesDirtyBuffer(t *testing.T) {
	r := newRig(t)
	c := r.place(t, 0)
	s := redstone.Signals{0: 15, 9: 15}
	c.UpdateInput(&s, c.ConnectionPoints()[0])
	if !s.IsZero() {
		t.Fatalf("stale buffer leaked into input: %v", s)
	}
}

func TestConnector_RemovalClearsDownstream(t *testing.T) {
	r := newRig(t)
	a, b := r.place(t, 0), r.place(t, 1)
	r.link(t, a, b)
	r.level.attach(above(0), NewPort(redstone.Signals{4: 11}))
	sink := NewPort(redstone.Signals{})
	r.level.attach(above(1), sink)
	a.TickServer()
	if sink.Received().IsZero() {
		t.Fatalf("sink never received a value")
	}

	b.SetRemoved()
	if got := sink.Received(); !got.IsZero() {
		t.Fatalf("sink kept %v after removal", got)
	}
}

func TestConnector_NeighborChangeDirtyDetection(t *testing.T) {
	emitter := NewStaticEmitter()
	r := newRig(t, emitter)
	a, b := r.place(t, 0), r.place(t, 1)
	r.link(t, a, b)
	r.level.attach(above(1), NewPort(redstone.Signals{6: 10}))
	b.TickServer()
	if a.Value(6) != 10 {
		t.Fatalf("value(6)=%d", a.Value(6))
	}

	// Unrelated position: ignored.
	a.OnNeighborChange(geom.Pos{X: 40})
	if a.DirtyExtraSource() {
		t.Fatalf("dirty after unrelated neighbour change")
	}

	// Neighbour vanished, no override, network still holds 10: must recompute.
	a.OnNeighborChange(above(0))
	if !a.DirtyExtraSource() {
		t.Fatalf("expected dirty with stale non-zero network value")
	}
	a.TickServer()
	if a.DirtyExtraSource() {
		t.Fatalf("tick did not clear dirty flag")
	}

	// An override equal to what the network holds keeps the connector clean.
	emitter.Set(above(0), geom.AnySide, a.handler().Values())
	a.OnNeighborChange(above(0))
	if a.DirtyExtraSource() {
		t.Fatalf("matching override must not mark dirty")
	}

	// A differing override marks dirty.
	emitter.Set(above(0), geom.AnySide, redstone.Signals{6: 10, 7: 1})
	a.OnNeighborChange(above(0))
	if !a.DirtyExtraSource() {
		t.Fatalf("differing override must mark dirty")
	}
	a.TickServer()
	if b.Value(7) != 1 {
		t.Fatalf("override not picked up: value(7)=%d", b.Value(7))
	}
}

func TestConnector_NeighborChangeIgnoredWhileAttached(t *testing.T) {
	r := newRig(t)
	a := r.place(t, 0)
	r.level.attach(above(0), NewPort(redstone.Signals{0: 3}))
	a.TickServer()
	a.OnNeighborChange(above(0))
	if a.DirtyExtraSource() {
		t.Fatalf("attached capability present: neighbour change must be ignored")
	}
}

func TestConnector_ConfigureIO(t *testing.T) {
	r := newRig(t)
	a := r.place(t, 0)
	if err := a.ConfigureIO(); !errors.Is(err, ErrNotLogicConnected) {
		t.Fatalf("err=%v want ErrNotLogicConnected", err)
	}
	r.level.logic[above(0)] = true
	a.OnNeighborChange(above(0))
	if !a.ConnectedToLogicUnit() {
		t.Fatalf("logic unit not detected")
	}
	want := []IOMode{IOInput, IOOutput, IONone}
	for i, m := range want {
		if err := a.ConfigureIO(); err != nil {
			t.Fatalf("configure %d: %v", i, err)
		}
		if a.IOMode() != m {
			t.Fatalf("step %d mode=%s want=%s", i, a.IOMode(), m)
		}
	}

	b := r.place(t, 5)
	b.Restore(a.State())
	if b.State() != a.State() {
		t.Fatalf("restore mismatch: %+v vs %+v", b.State(), a.State())
	}
}

func TestProviderRegistry_RejectsMalformed(t *testing.T) {
	var buf bytes.Buffer
	pr := NewProviderRegistry(log.New(&buf, "", 0))
	_ = pr.Register(ProviderFunc(func(Level, geom.Pos, geom.Direction) []byte { return []byte{15, 15} }))
	_ = pr.Register(ProviderFunc(func(Level, geom.Pos, geom.Direction) []byte {
		s := make([]byte, 16)
		s[2] = 99
		return s
	}))
	_ = pr.Register(ProviderFunc(func(Level, geom.Pos, geom.Direction) []byte {
		s := make([]byte, 16)
		s[1] = 4
		return s
	}))
	pr.Close()
	if err := pr.Register(NewStaticEmitter()); !errors.Is(err, ErrRegistryClosed) {
		t.Fatalf("late register err=%v", err)
	}

	var s redstone.Signals
	pr.Combine(nil, geom.DirectionalPos{}, &s)
	if s != (redstone.Signals{1: 4}) {
		t.Fatalf("combined=%v", s)
	}
	first, ok := pr.FirstOverride(nil, geom.DirectionalPos{})
	if !ok || first != (redstone.Signals{1: 4}) {
		t.Fatalf("first override=%v ok=%v", first, ok)
	}
	if pr.Rejected() != 4 {
		t.Fatalf("rejected=%d want=4", pr.Rejected())
	}
	if !strings.Contains(buf.String(), "ignored") {
		t.Fatalf("expected a log line, got %q", buf.String())
	}
}

func TestIOMode_Ordinals(t *testing.T) {
	for _, m := range []IOMode{IONone, IOInput, IOOutput} {
		back, err := IOModeFromOrdinal(m.Ordinal())
		if err != nil || back != m {
			t.Fatalf("ordinal round trip %s: %s %v", m, back, err)
		}
	}
	if _, err := IOModeFromOrdinal(3); err == nil {
		t.Fatalf("expected out-of-range error")
	}
}
