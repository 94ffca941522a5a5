// Package layout loads the initial block/connector/wire arrangement of a world.
package layout

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"voxelwire.ai/internal/sim/geom"
	"voxelwire.ai/internal/sim/wirenet/redstone"
)

//go:embed layout.schema.json
var schemaSrc string

type fileDoc struct {
	Blocks []struct {
		Pos  [3]int `yaml:"pos"`
		Kind string `yaml:"kind"`
	} `yaml:"blocks"`
	Devices []struct {
		Pos    [3]int `yaml:"pos"`
		Output []int  `yaml:"output"`
	} `yaml:"devices"`
	Connectors []struct {
		Pos    [3]int `yaml:"pos"`
		Facing string `yaml:"facing"`
	} `yaml:"connectors"`
	Links []struct {
		A [3]int `yaml:"a"`
		B [3]int `yaml:"b"`
	} `yaml:"links"`
	Emitters []struct {
		Pos     [3]int `yaml:"pos"`
		Side    string `yaml:"side"`
		Signals []int  `yaml:"signals"`
	} `yaml:"emitters"`
}

type Block struct {
	Pos  geom.Pos
	Kind string
}

type Device struct {
	Pos    geom.Pos
	Output redstone.Signals
}

type Connector struct {
	Pos    geom.Pos
	Facing geom.Direction
}

// Link wires the connectors at A and B (point index 0 on both).
type Link struct {
	A geom.Pos
	B geom.Pos
}

type Emitter struct {
	Pos     geom.Pos
	Side    geom.Direction
	Signals redstone.Signals
}

type Layout struct {
	Blocks     []Block
	Devices    []Device
	Connectors []Connector
	Links      []Link
	Emitters   []Emitter
}

func Load(path string) (Layout, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, err
	}
	l, err := Parse(raw)
	if err != nil {
		return Layout{}, fmt.Errorf("layout.yaml: %w", err)
	}
	return l, nil
}

// Parse validates raw yaml against the layout schema and converts it.
func Parse(raw []byte) (Layout, error) {
	if err := validate(raw); err != nil {
		return Layout{}, err
	}
	var doc fileDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Layout{}, err
	}

	var l Layout
	for _, b := range doc.Blocks {
		l.Blocks = append(l.Blocks, Block{Pos: geom.PosFromArray(b.Pos), Kind: b.Kind})
	}
	for _, d := range doc.Devices {
		out, err := signalsFrom(d.Output)
		if err != nil {
			return Layout{}, fmt.Errorf("device %v: %w", d.Pos, err)
		}
		l.Devices = append(l.Devices, Device{Pos: geom.PosFromArray(d.Pos), Output: out})
	}
	for _, c := range doc.Connectors {
		facing, err := geom.ParseDirection(c.Facing)
		if err != nil {
			return Layout{}, fmt.Errorf("connector %v: %w", c.Pos, err)
		}
		l.Connectors = append(l.Connectors, Connector{Pos: geom.PosFromArray(c.Pos), Facing: facing})
	}
	for _, k := range doc.Links {
		l.Links = append(l.Links, Link{A: geom.PosFromArray(k.A), B: geom.PosFromArray(k.B)})
	}
	for _, e := range doc.Emitters {
		side := geom.AnySide
		if s := strings.TrimSpace(e.Side); s != "" && !strings.EqualFold(s, "ANY") {
			d, err := geom.ParseDirection(s)
			if err != nil {
				return Layout{}, fmt.Errorf("emitter %v: %w", e.Pos, err)
			}
			side = d
		}
		sig, err := signalsFrom(e.Signals)
		if err != nil {
			return Layout{}, fmt.Errorf("emitter %v: %w", e.Pos, err)
		}
		l.Emitters = append(l.Emitters, Emitter{Pos: geom.PosFromArray(e.Pos), Side: side, Signals: sig})
	}
	return l, nil
}

func signalsFrom(vals []int) (redstone.Signals, error) {
	if vals == nil {
		return redstone.Signals{}, nil
	}
	b := make([]byte, len(vals))
	for i, v := range vals {
		if v < 0 || v > redstone.MaxStrength {
			return redstone.Signals{}, fmt.Errorf("%w: channel %d=%d", redstone.ErrOutOfRange, i, v)
		}
		b[i] = byte(v)
	}
	return redstone.FromBytes(b)
}

var compiled = sync.OnceValues(func() (*jsonschema.Schema, error) {
	s, err := jsonschema.CompileString("layout.schema.json", schemaSrc)
	if err != nil {
		return nil, fmt.Errorf("compile layout schema: %w", err)
	}
	return s, nil
})

func validate(raw []byte) error {
	s, err := compiled()
	if err != nil {
		return err
	}
	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return err
	}
	if generic == nil {
		generic = map[string]any{}
	}
	// Round-trip through JSON so the validator sees JSON-shaped values.
	b, err := json.Marshal(generic)
	if err != nil {
		return fmt.Errorf("layout is not JSON-compatible: %w", err)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}
