package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	// Tick is the last tick simulated before the snapshot was taken.
	Tick uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	TickRate           int `json:"tick_rate_hz"`
	SnapshotEveryTicks int `json:"snapshot_every_ticks,omitempty"`
	MaxNetworkPoints   int `json:"max_network_points,omitempty"`

	Blocks     []BlockV1     `json:"blocks"`
	Devices    []DeviceV1    `json:"devices,omitempty"`
	Connectors []ConnectorV1 `json:"connectors,omitempty"`
	Links      []LinkV1      `json:"links,omitempty"`
	Emitters   []EmitterV1   `json:"emitters,omitempty"`
	Networks   []NetworkV1   `json:"networks,omitempty"`
}

// BlockV1 covers plain blocks; devices and connectors carry their own records.
type BlockV1 struct {
	Pos  [3]int `json:"pos"`
	Kind string `json:"kind"`
}

type DeviceV1 struct {
	Pos      [3]int   `json:"pos"`
	Output   [16]byte `json:"output"`
	Received [16]byte `json:"received"`
	Dirty    bool     `json:"dirty,omitempty"`
}

type ConnectorV1 struct {
	Pos    [3]int `json:"pos"`
	Facing string `json:"facing"`
	// IOMode is the ordinal of the connector's io mode.
	IOMode               int  `json:"io_mode"`
	ConnectedToLogicUnit bool `json:"connected_to_logic_unit"`
	DirtyExtraSource     bool `json:"dirty_extra_source,omitempty"`
}

type LinkV1 struct {
	A      [3]int `json:"a"`
	AIndex int    `json:"a_index"`
	B      [3]int `json:"b"`
	BIndex int    `json:"b_index"`
	Wire   string `json:"wire"`
}

type EmitterV1 struct {
	Pos     [3]int   `json:"pos"`
	Side    string   `json:"side"`
	Signals [16]byte `json:"signals"`
}

// NetworkV1 is a redstone handler table; networks are matched back by their points.
type NetworkV1 struct {
	Populated bool      `json:"populated"`
	Dirty     bool      `json:"dirty,omitempty"`
	Inputs    []InputV1 `json:"inputs"`
}

type InputV1 struct {
	Pos    [3]int   `json:"pos"`
	Index  int      `json:"index"`
	Values [16]byte `json:"values"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// ReadHeader decodes only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Header line is repeated inside the gob body.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}
