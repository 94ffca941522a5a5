package wirenet

import (
	"fmt"

	"voxelwire.ai/internal/sim/geom"
)

// ConnectionPoint is one wire endpoint of the connector at Pos.
type ConnectionPoint struct {
	Pos   geom.Pos
	Index int
}

func (cp ConnectionPoint) Less(o ConnectionPoint) bool {
	if cp.Pos != o.Pos {
		return cp.Pos.Less(o.Pos)
	}
	return cp.Index < o.Index
}

func (cp ConnectionPoint) String() string { return fmt.Sprintf("%s#%d", cp.Pos, cp.Index) }

const RedstoneCategory = "REDSTONE"

type WireType struct {
	Name     string
	Category string
}

var WireRedstone = WireType{Name: "REDSTONE", Category: RedstoneCategory}

// Connection is an undirected wire; A is always the smaller endpoint.
type Connection struct {
	A    ConnectionPoint
	B    ConnectionPoint
	Type WireType
}

func NewConnection(a, b ConnectionPoint, wire WireType) Connection {
	if b.Less(a) {
		a, b = b, a
	}
	return Connection{A: a, B: b, Type: wire}
}

func (c Connection) Other(cp ConnectionPoint) ConnectionPoint {
	if c.A == cp {
		return c.B
	}
	return c.A
}

// Connector is what the network needs from a block that owns connection points.
type Connector interface {
	Pos() geom.Pos
	ConnectionPoints() []ConnectionPoint
	CanConnect(wire WireType) bool
	RequestedHandlers() []HandlerKind
}
