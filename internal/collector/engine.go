package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tinytelemetry/podtrail/internal/logging"
	"github.com/tinytelemetry/podtrail/internal/logparse"
	"github.com/tinytelemetry/podtrail/internal/logsource"
	"github.com/tinytelemetry/podtrail/internal/metrics"
	"github.com/tinytelemetry/podtrail/internal/model"
	"golang.org/x/sync/errgroup"
)

// LogSource is the narrow backend contract the engine polls.
type LogSource interface {
	logsource.Discoverer
	logsource.WindowFetcher
}

// Checkpointer persists watermarks after each cycle.
type Checkpointer interface {
	Save(ctx context.Context, sources []model.Source) error
}

// Config holds the engine's tunable parameters.
type Config struct {
	Discovery
	LimitBytes   int
	InitialSince string
	QueryTimeout time.Duration
	Concurrency  int // parallel per-source fetches; 1 polls sequentially
}

// Status describes the engine after its latest cycle.
type Status struct {
	Cycles       uint64
	LastCycle    time.Time
	LastDuration time.Duration
	LastBatch    int
	Sources      []model.Source
}

// Engine runs poll cycles: reconcile sources, fetch each source's window,
// advance watermarks and merge everything into one ordered batch.
type Engine struct {
	cfg         Config
	source      LogSource
	registry    *Registry
	checkpoints Checkpointer

	cycleMu sync.Mutex // serializes Cycle

	mu     sync.RWMutex
	status Status
}

// NewEngine creates an engine polling src.
func NewEngine(cfg Config, src LogSource) *Engine {
	if cfg.LimitBytes <= 0 {
		cfg.LimitBytes = model.DefaultLimitBytes
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = model.DefaultQueryTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Engine{
		cfg:      cfg,
		source:   src,
		registry: NewRegistry(cfg.Discovery, src, src, cfg.QueryTimeout),
	}
}

// SetCheckpointer enables watermark persistence after every cycle.
func (e *Engine) SetCheckpointer(c Checkpointer) {
	e.checkpoints = c
}

// Restore seeds the registry with persisted sources. Call before the first cycle.
func (e *Engine) Restore(sources []model.Source) {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()
	e.registry.Seed(sources)
	slog.Info("collector: restored watermarks", logging.Count(len(e.registry.Active())))
}

// Cycle runs one poll cycle and returns the new entries in time order.
// Failures of individual queries are logged and only affect their source.
func (e *Engine) Cycle(ctx context.Context) model.Batch {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	start := time.Now()
	trackers := e.registry.Reconcile(ctx)
	share := ByteShare(e.cfg.LimitBytes, len(trackers))

	results := make([][]model.Entry, len(trackers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i, t := range trackers {
		g.Go(func() error {
			results[i] = e.collect(gctx, t, share)
			return nil
		})
	}
	_ = g.Wait()

	batch := model.Batch{
		ID:          uuid.NewString(),
		Entries:     Merge(results),
		CollectedAt: time.Now(),
	}

	sources := snapshot(trackers)
	e.checkpoint(ctx, sources)

	elapsed := time.Since(start)
	metrics.CyclesTotal.Inc()
	metrics.CycleDuration.Observe(elapsed.Seconds())
	metrics.ActiveSources.Set(float64(len(trackers)))
	metrics.SourceByteShare.Set(float64(share))
	metrics.BatchEntries.Observe(float64(batch.Len()))

	e.mu.Lock()
	e.status.Cycles++
	e.status.LastCycle = batch.CollectedAt
	e.status.LastDuration = elapsed
	e.status.LastBatch = batch.Len()
	e.status.Sources = sources
	e.mu.Unlock()

	slog.Info("collector: cycle complete",
		logging.BatchID(batch.ID),
		logging.Count(batch.Len()),
		slog.Int("sources", len(trackers)),
		slog.Int("byte_share", share),
		logging.Duration(elapsed),
	)
	return batch
}

// Status returns a copy of the engine status after the latest cycle.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st := e.status
	st.Sources = append([]model.Source(nil), e.status.Sources...)
	return st
}

func (e *Engine) collect(ctx context.Context, t *Tracker, share int) []model.Entry {
	id := t.Source.ID
	qctx, cancel := context.WithTimeout(ctx, e.cfg.QueryTimeout)
	defer cancel()

	since := t.Window(share, e.cfg.InitialSince).SinceTime
	entries, err := t.Collect(qctx, e.source, share, e.cfg.InitialSince)
	if err != nil {
		metrics.QueryFailures.WithLabelValues(metrics.QueryFetch).Inc()
		slog.Warn("collector: fetch failed", logging.Source(id), logging.Since(since), logging.Error(err))
		return nil
	}

	metrics.EntriesCollected.WithLabelValues(id.Namespace, id.Pod).Add(float64(len(entries)))
	if ms := logparse.EpochMillis(t.Source.LastTimestamp); ms > 0 {
		metrics.WatermarkSeconds.WithLabelValues(id.Namespace, id.Pod, id.Container).Set(float64(ms) / 1000)
	}
	slog.Debug("collector: source polled", logging.Source(id), logging.Since(since), logging.Count(len(entries)))
	return entries
}

func (e *Engine) checkpoint(ctx context.Context, sources []model.Source) {
	if e.checkpoints == nil || len(sources) == 0 {
		return
	}
	qctx, cancel := context.WithTimeout(ctx, e.cfg.QueryTimeout)
	defer cancel()
	if err := e.checkpoints.Save(qctx, sources); err != nil {
		metrics.CheckpointErrors.Inc()
		slog.Warn("collector: checkpoint failed", logging.Error(err))
	}
}

func snapshot(trackers []*Tracker) []model.Source {
	out := make([]model.Source, len(trackers))
	for i, t := range trackers {
		out[i] = t.Source
	}
	return out
}
