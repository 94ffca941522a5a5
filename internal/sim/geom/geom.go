package geom

import (
	"fmt"
	"strings"
)

type Pos struct {
	X int
	Y int
	Z int
}

func (p Pos) ToArray() [3]int { return [3]int{p.X, p.Y, p.Z} }

func PosFromArray(a [3]int) Pos { return Pos{X: a[0], Y: a[1], Z: a[2]} }

func (p Pos) Add(o Pos) Pos { return Pos{X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z} }

// Relative returns the position one block away in direction d.
func (p Pos) Relative(d Direction) Pos { return p.Add(d.Step()) }

func (p Pos) String() string { return fmt.Sprintf("%d,%d,%d", p.X, p.Y, p.Z) }

// Less orders positions by X, then Y, then Z.
func (p Pos) Less(o Pos) bool {
	if p.X != o.X {
		return p.X < o.X
	}
	if p.Y != o.Y {
		return p.Y < o.Y
	}
	return p.Z < o.Z
}

type Direction uint8

const (
	Down Direction = iota
	Up
	North
	South
	West
	East

	// AnySide is not a real face; capability exposures registered with it answer
	// lookups from every side.
	AnySide Direction = 0xFF
)

var Directions = [6]Direction{Down, Up, North, South, West, East}

var dirNames = [6]string{"DOWN", "UP", "NORTH", "SOUTH", "WEST", "EAST"}

var dirSteps = [6]Pos{
	{X: 0, Y: -1, Z: 0},
	{X: 0, Y: 1, Z: 0},
	{X: 0, Y: 0, Z: -1},
	{X: 0, Y: 0, Z: 1},
	{X: -1, Y: 0, Z: 0},
	{X: 1, Y: 0, Z: 0},
}

func (d Direction) Valid() bool { return int(d) < len(dirNames) }

func (d Direction) Step() Pos {
	if !d.Valid() {
		return Pos{}
	}
	return dirSteps[d]
}

func (d Direction) Opposite() Direction {
	if !d.Valid() {
		return d
	}
	// Faces come in pairs: DOWN/UP, NORTH/SOUTH, WEST/EAST.
	return d ^ 1
}

func (d Direction) String() string {
	if d == AnySide {
		return "ANY"
	}
	if !d.Valid() {
		return fmt.Sprintf("Direction(%d)", uint8(d))
	}
	return dirNames[d]
}

func ParseDirection(s string) (Direction, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, n := range dirNames {
		if n == s {
			return Direction(i), nil
		}
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// DirectionalPos names the block at Pos as seen from its Side face.
type DirectionalPos struct {
	Pos  Pos
	Side Direction
}
