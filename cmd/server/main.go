package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"voxelwire.ai/internal/persistence/indexdb"
	persistlog "voxelwire.ai/internal/persistence/log"
	"voxelwire.ai/internal/persistence/snapshot"
	"voxelwire.ai/internal/sim/bundled"
	"voxelwire.ai/internal/sim/layout"
	"voxelwire.ai/internal/sim/tuning"
	"voxelwire.ai/internal/sim/world"
	"voxelwire.ai/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		layoutPath = flag.String("layout", "", "path to layout.yaml (default: <configs>/layout.yaml, fresh worlds only)")
		disableDB  = flag.Bool("disable_db", false, "disable indexing (tick/audit + config + snapshot metadata)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}

	// Optional: read-model index backend (does not affect sim determinism).
	idx, err := openRuntimeIndex(worldDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(worldDir)
	}

	// Load tuning (required for fresh world; optional for snapshot resumes).
	tune, tuneErr := tuning.Load(tp)
	if tuneErr != nil {
		if snapshotToLoad == "" || !os.IsNotExist(tuneErr) {
			logger.Fatalf("load tuning: %v", tuneErr)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
		if err := tuning.ApplyEnv(&tune); err != nil {
			logger.Fatalf("load tuning: %v", err)
		}
	}
	if idx != nil {
		if err := idx.UpsertConfig(tune); err != nil {
			logger.Printf("index backend: upsert config: %v", err)
		}
	}

	providers := bundled.NewProviderRegistry(logger)
	emitter := bundled.NewStaticEmitter()
	if err := providers.Register(emitter); err != nil {
		logger.Fatalf("register emitter: %v", err)
	}
	opts := world.Options{Logger: logger, Providers: providers, Emitter: emitter}

	var w *world.World
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.WorldID != "" && snap.Header.WorldID != *worldID {
			logger.Fatalf("snapshot world id mismatch: flag=%s snap=%s", *worldID, snap.Header.WorldID)
		}
		w, err = world.New(world.WorldConfig{
			ID:                 *worldID,
			TickRateHz:         snap.TickRate,
			SnapshotEveryTicks: tune.SnapshotEveryTicks,
			MaxNetworkPoints:   snap.MaxNetworkPoints,
		}, opts)
		if err != nil {
			logger.Fatalf("world: %v", err)
		}
		if err := w.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), w.CurrentTick())
	} else {
		w, err = world.New(world.WorldConfig{
			ID:                 *worldID,
			TickRateHz:         tune.TickRateHz,
			SnapshotEveryTicks: tune.SnapshotEveryTicks,
			MaxNetworkPoints:   tune.MaxNetworkPoints,
		}, opts)
		if err != nil {
			logger.Fatalf("world: %v", err)
		}
		if err := seedLayout(w, *configDir, *layoutPath, logger); err != nil {
			logger.Fatalf("layout: %v", err)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	tickLog := persistlog.NewTickLogger(worldDir)
	auditLog := persistlog.NewAuditLogger(worldDir)
	defer tickLog.Close()
	defer auditLog.Close()
	if idx != nil {
		w.SetTickLogger(multiTickLogger{a: tickLog, b: idx})
		w.SetAuditLogger(multiAuditLogger{a: auditLog, b: idx})
	} else {
		w.SetTickLogger(tickLog)
		w.SetAuditLogger(auditLog)
	}

	// Snapshot writer.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				path := filepath.Join(worldDir, "snapshots", fmt.Sprintf("%d.snap.zst", snap.Header.Tick))
				if err := snapshot.WriteSnapshot(path, snap); err != nil {
					logger.Printf("snapshot write: %v", err)
					continue
				}
				if fi, err := os.Stat(path); err == nil {
					logger.Printf("snapshot tick=%d size=%s networks=%d", snap.Header.Tick, humanize.Bytes(uint64(fi.Size())), len(snap.Networks))
				}
				if idx != nil {
					idx.RecordSnapshot(path, snap)
				}
			}
		}
	}()

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeWorldMetrics(rw, *worldID, w)
		if idx != nil {
			writeIndexMetrics(rw, *worldID, idx.Stats())
		}
	})

	obsSrv := observer.NewServer(w, logger, observer.Options{
		TickQueue:     tune.Observer.TickQueue,
		AllowNetworks: tune.Observer.Networks,
	})
	mux.HandleFunc("/v1/bootstrap", obsSrv.BootstrapHandler())
	mux.HandleFunc("/v1/observe", obsSrv.WSHandler())

	if envBool("VW_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (VW_ENABLE_PPROF_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("world=%s tick_rate=%dHz max_network_points=%d listening on %s",
		*worldID, w.TickRateHz(), w.Config().MaxNetworkPoints, *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

// seedLayout queues the edits that build the configured layout as the first tick's input.
// A missing default layout file is not an error; an explicit -layout must exist.
func seedLayout(w *world.World, configDir, path string, logger *log.Logger) error {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = filepath.Join(configDir, "layout.yaml")
	}
	l, err := layout.Load(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			logger.Printf("layout not found (%s); starting empty", path)
			return nil
		}
		return err
	}
	edits := world.LayoutEdits(l)
	if len(edits) == 0 {
		return nil
	}
	w.Inbox() <- world.EditEnvelope{SessionID: "layout", Edits: edits}
	logger.Printf("layout %s: %d blocks, %d devices, %d connectors, %d links, %d emitters",
		filepath.Base(path), len(l.Blocks), len(l.Devices), len(l.Connectors), len(l.Links), len(l.Emitters))
	return nil
}

func writeWorldMetrics(rw http.ResponseWriter, worldID string, w *world.World) {
	m := w.Metrics()
	tick := w.CurrentTick()
	if m.Tick != 0 {
		tick = m.Tick
	}

	// Minimal Prometheus exposition format.
	fmt.Fprintf(rw, "# HELP voxelwire_world_tick Current world tick.\n")
	fmt.Fprintf(rw, "# TYPE voxelwire_world_tick gauge\n")
	fmt.Fprintf(rw, "voxelwire_world_tick{world=%q} %d\n", worldID, tick)

	fmt.Fprintf(rw, "# HELP voxelwire_world_blocks Placed blocks by kind.\n")
	fmt.Fprintf(rw, "# TYPE voxelwire_world_blocks gauge\n")
	fmt.Fprintf(rw, "voxelwire_world_blocks{world=%q,kind=%q} %d\n", worldID, "connector", m.Connectors)
	fmt.Fprintf(rw, "voxelwire_world_blocks{world=%q,kind=%q} %d\n", worldID, "device", m.Devices)

	fmt.Fprintf(rw, "# HELP voxelwire_world_networks Local networks with at least one connection.\n")
	fmt.Fprintf(rw, "# TYPE voxelwire_world_networks gauge\n")
	fmt.Fprintf(rw, "voxelwire_world_networks{world=%q} %d\n", worldID, m.Networks)

	fmt.Fprintf(rw, "# HELP voxelwire_world_emissions Static emitter entries.\n")
	fmt.Fprintf(rw, "# TYPE voxelwire_world_emissions gauge\n")
	fmt.Fprintf(rw, "voxelwire_world_emissions{world=%q} %d\n", worldID, m.Emissions)

	fmt.Fprintf(rw, "# HELP voxelwire_world_observers Connected observer sessions.\n")
	fmt.Fprintf(rw, "# TYPE voxelwire_world_observers gauge\n")
	fmt.Fprintf(rw, "voxelwire_world_observers{world=%q} %d\n", worldID, m.Observers)

	fmt.Fprintf(rw, "# HELP voxelwire_world_queue_depth Channel backlog depth.\n")
	fmt.Fprintf(rw, "# TYPE voxelwire_world_queue_depth gauge\n")
	fmt.Fprintf(rw, "voxelwire_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "inbox", m.InboxDepth)

	fmt.Fprintf(rw, "# HELP voxelwire_provider_rejected_total Malformed provider answers ignored.\n")
	fmt.Fprintf(rw, "# TYPE voxelwire_provider_rejected_total counter\n")
	fmt.Fprintf(rw, "voxelwire_provider_rejected_total{world=%q} %d\n", worldID, m.ProviderRejected)

	fmt.Fprintf(rw, "# HELP voxelwire_snapshots_dropped_total Snapshots dropped because the writer was busy.\n")
	fmt.Fprintf(rw, "# TYPE voxelwire_snapshots_dropped_total counter\n")
	fmt.Fprintf(rw, "voxelwire_snapshots_dropped_total{world=%q} %d\n", worldID, m.SnapshotsDropped)

	fmt.Fprintf(rw, "# HELP voxelwire_world_step_ms Last tick step duration in milliseconds.\n")
	fmt.Fprintf(rw, "# TYPE voxelwire_world_step_ms gauge\n")
	fmt.Fprintf(rw, "voxelwire_world_step_ms{world=%q} %.3f\n", worldID, m.StepMS)
}

func writeIndexMetrics(rw http.ResponseWriter, worldID string, s indexdb.Stats) {
	fmt.Fprintf(rw, "# HELP voxelwire_index_queue_depth Current index writer queue depth.\n")
	fmt.Fprintf(rw, "# TYPE voxelwire_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "voxelwire_index_queue_depth{world=%q} %d\n", worldID, s.QueueDepth)
	fmt.Fprintf(rw, "voxelwire_index_queue_capacity{world=%q} %d\n", worldID, s.QueueCapacity)

	fmt.Fprintf(rw, "# HELP voxelwire_index_dropped_total Index writes dropped because the queue was full.\n")
	fmt.Fprintf(rw, "# TYPE voxelwire_index_dropped_total counter\n")
	fmt.Fprintf(rw, "voxelwire_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "tick", s.DropTickTotal)
	fmt.Fprintf(rw, "voxelwire_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "audit", s.DropAuditTotal)
	fmt.Fprintf(rw, "voxelwire_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "snapshot", s.DropSnapshotTotal)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}

func envBool(key string, def bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return v
}

type multiTickLogger struct {
	a world.TickLogger
	b world.TickLogger
}

func (m multiTickLogger) WriteTick(entry world.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}

type multiAuditLogger struct {
	a world.AuditLogger
	b world.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry world.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}
