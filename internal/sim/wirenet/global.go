package wirenet

import (
	"fmt"
	"sort"

	"voxelwire.ai/internal/sim/geom"
)

// GlobalNetwork owns every connector, wire and local network of a world.
type GlobalNetwork struct {
	registry *Registry

	connectors map[geom.Pos]Connector
	netOf      map[ConnectionPoint]*LocalNetwork
	adj        map[ConnectionPoint]map[ConnectionPoint]Connection
	nets       map[uint64]*LocalNetwork
	nextNetID  uint64
}

func NewGlobalNetwork(reg *Registry) *GlobalNetwork {
	if reg == nil {
		reg = NewRegistry()
	}
	return &GlobalNetwork{
		registry:   reg,
		connectors: map[geom.Pos]Connector{},
		netOf:      map[ConnectionPoint]*LocalNetwork{},
		adj:        map[ConnectionPoint]map[ConnectionPoint]Connection{},
		nets:       map[uint64]*LocalNetwork{},
	}
}

func (g *GlobalNetwork) Registry() *Registry { return g.registry }

// AddConnector registers c; each of its points starts in a network of its own.
func (g *GlobalNetwork) AddConnector(c Connector) error {
	pos := c.Pos()
	if _, ok := g.connectors[pos]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateConnector, pos)
	}
	g.connectors[pos] = c
	for _, cp := range c.ConnectionPoints() {
		if cp.Pos != pos {
			delete(g.connectors, pos)
			return fmt.Errorf("wirenet: connector at %s reports foreign point %s", pos, cp)
		}
	}
	for _, cp := range c.ConnectionPoints() {
		n := g.newNet()
		n.setPoints([]ConnectionPoint{cp})
		g.netOf[cp] = n
	}
	for _, cp := range c.ConnectionPoints() {
		n := g.netOf[cp]
		n.syncHandlers()
		n.markDirty()
	}
	return nil
}

// RemoveConnector drops the connector at pos with its points and wires, splitting the
// networks it was holding together.
func (g *GlobalNetwork) RemoveConnector(pos geom.Pos) (Connector, error) {
	c, ok := g.connectors[pos]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownConnector, pos)
	}
	affected := map[*LocalNetwork]struct{}{}
	for _, cp := range c.ConnectionPoints() {
		if n := g.netOf[cp]; n != nil {
			affected[n] = struct{}{}
		}
		for other := range g.adj[cp] {
			delete(g.adj[other], cp)
			if len(g.adj[other]) == 0 {
				delete(g.adj, other)
			}
		}
		delete(g.adj, cp)
		delete(g.netOf, cp)
	}
	delete(g.connectors, pos)
	g.rebuild(affected)
	return c, nil
}

func (g *GlobalNetwork) Connector(pos geom.Pos) (Connector, bool) {
	c, ok := g.connectors[pos]
	return c, ok
}

// Connectors returns every registered connector ordered by position.
func (g *GlobalNetwork) Connectors() []Connector {
	out := make([]Connector, 0, len(g.connectors))
	for _, c := range g.connectors {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pos().Less(out[j].Pos()) })
	return out
}

func (g *GlobalNetwork) Connect(a, b ConnectionPoint, wire WireType) error {
	if a == b {
		return ErrSelfLoop
	}
	na, okA := g.netOf[a]
	nb, okB := g.netOf[b]
	if !okA {
		return fmt.Errorf("%w: %s", ErrUnknownPoint, a)
	}
	if !okB {
		return fmt.Errorf("%w: %s", ErrUnknownPoint, b)
	}
	if _, dup := g.adj[a][b]; dup {
		return fmt.Errorf("%w: %s-%s", ErrDuplicateConnection, a, b)
	}
	if !g.connectors[a.Pos].CanConnect(wire) {
		return fmt.Errorf("%w: %s at %s", ErrIncompatibleWire, wire.Category, a)
	}
	if !g.connectors[b.Pos].CanConnect(wire) {
		return fmt.Errorf("%w: %s at %s", ErrIncompatibleWire, wire.Category, b)
	}
	c := NewConnection(a, b, wire)
	g.link(a, b, c)
	g.link(b, a, c)
	g.rebuild(map[*LocalNetwork]struct{}{na: {}, nb: {}})
	return nil
}

func (g *GlobalNetwork) Disconnect(a, b ConnectionPoint) error {
	if _, ok := g.adj[a][b]; !ok {
		return fmt.Errorf("%w: %s-%s", ErrNotConnected, a, b)
	}
	n := g.netOf[a]
	g.unlink(a, b)
	g.unlink(b, a)
	g.rebuild(map[*LocalNetwork]struct{}{n: {}})
	return nil
}

// Connections lists every wire, ordered by endpoints.
func (g *GlobalNetwork) Connections() []Connection {
	var out []Connection
	for _, n := range g.Networks() {
		out = append(out, n.Connections()...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A.Less(out[j].A)
		}
		return out[i].B.Less(out[j].B)
	})
	return out
}

// LocalNet returns the network of the connector at pos (its first point), or nil.
func (g *GlobalNetwork) LocalNet(pos geom.Pos) *LocalNetwork {
	c, ok := g.connectors[pos]
	if !ok {
		return nil
	}
	points := c.ConnectionPoints()
	if len(points) == 0 {
		return nil
	}
	return g.netOf[points[0]]
}

func (g *GlobalNetwork) LocalNetAt(cp ConnectionPoint) *LocalNetwork { return g.netOf[cp] }

// Networks returns the live networks ordered by id.
func (g *GlobalNetwork) Networks() []*LocalNetwork {
	out := make([]*LocalNetwork, 0, len(g.nets))
	for _, n := range g.nets {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Tick lets every handler of every network run, networks in id order.
func (g *GlobalNetwork) Tick() {
	for _, n := range g.Networks() {
		for _, h := range n.Handlers() {
			h.Tick()
		}
	}
}

func (g *GlobalNetwork) newNet() *LocalNetwork {
	g.nextNetID++
	n := newLocalNetwork(g.nextNetID, g)
	g.nets[n.id] = n
	return n
}

func (g *GlobalNetwork) link(from, to ConnectionPoint, c Connection) {
	m := g.adj[from]
	if m == nil {
		m = map[ConnectionPoint]Connection{}
		g.adj[from] = m
	}
	m[to] = c
}

func (g *GlobalNetwork) unlink(from, to ConnectionPoint) {
	delete(g.adj[from], to)
	if len(g.adj[from]) == 0 {
		delete(g.adj, from)
	}
}

// rebuild repartitions the surviving points of the given networks into components.
// The biggest component inherits the old network (and its handlers) with the largest
// overlap; leftover old networks are destroyed.
func (g *GlobalNetwork) rebuild(old map[*LocalNetwork]struct{}) {
	var pending []ConnectionPoint
	for n := range old {
		for _, cp := range n.points {
			if _, alive := g.netOf[cp]; alive {
				pending = append(pending, cp)
			}
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Less(pending[j]) })

	visited := map[ConnectionPoint]bool{}
	var comps [][]ConnectionPoint
	for _, start := range pending {
		if visited[start] {
			continue
		}
		visited[start] = true
		comp := []ConnectionPoint{start}
		for q := []ConnectionPoint{start}; len(q) > 0; {
			cp := q[0]
			q = q[1:]
			for next := range g.adj[cp] {
				if visited[next] {
					continue
				}
				visited[next] = true
				comp = append(comp, next)
				q = append(q, next)
			}
		}
		comps = append(comps, comp)
	}
	// Largest first; ties keep discovery order, which follows point order.
	sort.SliceStable(comps, func(i, j int) bool { return len(comps[i]) > len(comps[j]) })

	claimed := map[*LocalNetwork]bool{}
	for _, comp := range comps {
		overlap := map[*LocalNetwork]int{}
		for _, cp := range comp {
			if n := g.netOf[cp]; n != nil {
				if _, isOld := old[n]; isOld && !claimed[n] {
					overlap[n]++
				}
			}
		}
		var target *LocalNetwork
		for n, cnt := range overlap {
			if target == nil || cnt > overlap[target] || (cnt == overlap[target] && n.id < target.id) {
				target = n
			}
		}
		if target == nil {
			target = g.newNet()
		}
		claimed[target] = true
		target.setPoints(comp)
		for _, cp := range comp {
			g.netOf[cp] = target
		}
	}
	for n := range old {
		if !claimed[n] {
			n.setPoints(nil)
			n.handlers = map[HandlerKind]Handler{}
			delete(g.nets, n.id)
		}
	}
	for n := range claimed {
		n.syncHandlers()
		n.markDirty()
	}
}
