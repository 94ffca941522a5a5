package redstone

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	Channels    = 16
	MaxStrength = 15
)

var (
	ErrBadLength  = errors.New("redstone: bundled signal must have 16 channels")
	ErrOutOfRange = errors.New("redstone: channel strength above 15")
)

// Signals holds one strength per bundled channel.
type Signals [Channels]byte

// FromBytes validates a plugin-supplied array. It never truncates or pads.
func FromBytes(b []byte) (Signals, error) {
	var s Signals
	if len(b) != Channels {
		return s, fmt.Errorf("%w: got %d", ErrBadLength, len(b))
	}
	for c, v := range b {
		if v > MaxStrength {
			return s, fmt.Errorf("%w: channel %d=%d", ErrOutOfRange, c, v)
		}
		s[c] = v
	}
	return s, nil
}

// MaxInto raises each channel of s to at least o's value.
func (s *Signals) MaxInto(o Signals) {
	for c := 0; c < Channels; c++ {
		if o[c] > s[c] {
			s[c] = o[c]
		}
	}
}

func (s *Signals) Clamp() {
	for c := 0; c < Channels; c++ {
		if s[c] > MaxStrength {
			s[c] = MaxStrength
		}
	}
}

func (s Signals) IsZero() bool { return s == Signals{} }

func (s Signals) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for c, v := range s {
		if c > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(int(v)))
	}
	b.WriteByte(']')
	return b.String()
}
