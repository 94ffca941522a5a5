package bundled

import "fmt"

// IOMode is the logic-unit facing configuration of a connector. Its ordinal is what
// snapshots persist.
type IOMode uint8

const (
	IONone IOMode = iota
	IOInput
	IOOutput
)

var ioModeNames = [...]string{"none", "in", "out"}

func IOModeFromOrdinal(n int) (IOMode, error) {
	if n < 0 || n >= len(ioModeNames) {
		return IONone, fmt.Errorf("bundled: io mode ordinal %d out of range", n)
	}
	return IOMode(n), nil
}

func (m IOMode) Ordinal() int { return int(m) }

// Next cycles none -> in -> out -> none.
func (m IOMode) Next() IOMode {
	switch m {
	case IOInput:
		return IOOutput
	case IOOutput:
		return IONone
	default:
		return IOInput
	}
}

func (m IOMode) String() string {
	if int(m) < len(ioModeNames) {
		return ioModeNames[m]
	}
	return fmt.Sprintf("IOMode(%d)", uint8(m))
}
