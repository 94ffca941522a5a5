// Package world is the authoritative wire world: blocks, devices, bundled connectors and
// the wire networks between them, advanced one tick at a time by a single goroutine.
package world

import (
	"fmt"
	"io"
	"log"
	"sync/atomic"

	"voxelwire.ai/internal/persistence/snapshot"
	"voxelwire.ai/internal/protocol"
	"voxelwire.ai/internal/sim/bundled"
	"voxelwire.ai/internal/sim/capref"
	"voxelwire.ai/internal/sim/geom"
	"voxelwire.ai/internal/sim/wirenet"
	"voxelwire.ai/internal/sim/wirenet/redstone"
)

type WorldConfig struct {
	ID                 string
	TickRateHz         int
	SnapshotEveryTicks int
	// MaxNetworkPoints caps how many points a LINK may merge into one network; 0 disables.
	MaxNetworkPoints int
}

// Options carries the optional collaborators of a world.
type Options struct {
	Logger *log.Logger
	// Providers are the extra bundled sources. When nil the world builds a registry
	// holding only Emitter. When set, Emitter must already be registered in it.
	Providers *bundled.ProviderRegistry
	Emitter   *bundled.StaticEmitter
}

// EditEnvelope is one batch of edits submitted for the next tick.
type EditEnvelope struct {
	SessionID string
	Edits     []protocol.EditReq
}

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg WorldConfig
	log *log.Logger

	tick atomic.Uint64

	blocks     map[geom.Pos]BlockKind
	devices    map[geom.Pos]*bundled.Port
	connectors map[geom.Pos]*bundled.Connector

	caps      *capref.Registry
	nets      *wirenet.GlobalNetwork
	providers *bundled.ProviderRegistry
	emitter   *bundled.StaticEmitter

	// Positions marked for a block update during the current tick.
	updates map[geom.Pos]struct{}

	inbox         chan EditEnvelope
	observerJoin  chan ObserverJoinRequest
	observerLeave chan string
	stop          chan struct{}

	observers map[string]*observerClient

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	auditLogger AuditLogger

	// Optional snapshot sink (may be nil). Snapshot writing should be off-thread.
	snapshotSink chan<- snapshot.SnapshotV1

	snapshotsDropped atomic.Uint64
	metrics          atomic.Pointer[WorldMetrics]
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TickLogEntry struct {
	Tick         uint64                `json:"tick"`
	Edits        []protocol.EditReq    `json:"edits,omitempty"`
	Rejected     []protocol.EditResult `json:"rejected,omitempty"`
	Recomputes   uint64                `json:"recomputes"`
	BlockUpdates int                   `json:"block_updates"`
	Digest       string                `json:"digest"`
}

// AuditEntry records one edit and how it ended.
type AuditEntry struct {
	Tick   uint64 `json:"tick"`
	EditID string `json:"edit_id,omitempty"`
	Edit   string `json:"edit"` // e.g. "LINK"
	Pos    [3]int `json:"pos"`
	To     [3]int `json:"to,omitempty"`
	Result string `json:"result"` // "OK" or an error code
	Reason string `json:"reason,omitempty"`
}

func New(cfg WorldConfig, opts Options) (*World, error) {
	if cfg.TickRateHz <= 0 {
		return nil, fmt.Errorf("world: tick rate must be > 0, got %d", cfg.TickRateHz)
	}
	if cfg.MaxNetworkPoints < 0 {
		return nil, fmt.Errorf("world: max network points must be >= 0, got %d", cfg.MaxNetworkPoints)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	emitter := opts.Emitter
	if emitter == nil {
		if opts.Providers != nil {
			return nil, fmt.Errorf("world: a provider registry needs its static emitter")
		}
		emitter = bundled.NewStaticEmitter()
	}
	providers := opts.Providers
	if providers == nil {
		providers = bundled.NewProviderRegistry(logger)
		if err := providers.Register(emitter); err != nil {
			return nil, err
		}
	}
	if !providers.Contains(emitter) {
		return nil, fmt.Errorf("world: static emitter is not registered with the provider registry")
	}
	// Registration is over once the world exists.
	providers.Close()

	handlers := wirenet.NewRegistry()
	if err := redstone.Register(handlers); err != nil {
		return nil, err
	}
	handlers.Close()

	w := &World{
		cfg:           cfg,
		log:           logger,
		blocks:        map[geom.Pos]BlockKind{},
		devices:       map[geom.Pos]*bundled.Port{},
		connectors:    map[geom.Pos]*bundled.Connector{},
		caps:          capref.NewRegistry(),
		nets:          wirenet.NewGlobalNetwork(handlers),
		providers:     providers,
		emitter:       emitter,
		updates:       map[geom.Pos]struct{}{},
		inbox:         make(chan EditEnvelope, 1024),
		observerJoin:  make(chan ObserverJoinRequest, 64),
		observerLeave: make(chan string, 64),
		stop:          make(chan struct{}),
		observers:     map[string]*observerClient{},
	}
	return w, nil
}

// Capabilities, IsLogicUnit and MarkBlockForUpdate make the world a bundled.Level.

func (w *World) Capabilities() capref.Lookup { return w.caps }

func (w *World) IsLogicUnit(pos geom.Pos) bool { return w.blocks[pos] == BlockLogicUnit }

func (w *World) MarkBlockForUpdate(pos geom.Pos) { w.updates[pos] = struct{}{} }

var _ bundled.Level = (*World)(nil)
