package collector

import (
	"context"
	"log/slog"
	"time"

	"github.com/tinytelemetry/podtrail/internal/logging"
	"github.com/tinytelemetry/podtrail/internal/logsource"
	"github.com/tinytelemetry/podtrail/internal/metrics"
	"github.com/tinytelemetry/podtrail/internal/model"
)

// Discovery selects which containers are polled. Either PodName and
// ContainerName are both set (explicit mode) or Selector is.
type Discovery struct {
	Namespace     string
	PodName       string
	ContainerName string
	Selector      string
}

// Explicit reports whether a single pod and container are configured.
func (d Discovery) Explicit() bool {
	return d.PodName != "" && d.ContainerName != ""
}

// Registry reconciles the active source set once per cycle. It is owned by
// the engine's cycle and is not safe for concurrent use.
type Registry struct {
	discovery    Discovery
	discoverer   logsource.Discoverer
	fetcher      logsource.WindowFetcher
	queryTimeout time.Duration

	trackers []*Tracker
}

// NewRegistry creates a registry with no history.
func NewRegistry(d Discovery, discoverer logsource.Discoverer, fetcher logsource.WindowFetcher, queryTimeout time.Duration) *Registry {
	if queryTimeout <= 0 {
		queryTimeout = model.DefaultQueryTimeout
	}
	return &Registry{
		discovery:    d,
		discoverer:   discoverer,
		fetcher:      fetcher,
		queryTimeout: queryTimeout,
	}
}

// Seed installs previously persisted sources as history, so they resume
// from their watermark instead of being bootstrapped.
func (r *Registry) Seed(sources []model.Source) {
	r.trackers = make([]*Tracker, 0, len(sources))
	for _, src := range sources {
		if src.FirstTimestamp == "" {
			continue
		}
		r.trackers = append(r.trackers, NewTracker(src))
	}
}

// Active returns the trackers selected by the latest Reconcile.
func (r *Registry) Active() []*Tracker {
	return r.trackers
}

// Reconcile refreshes the active set. Sources seen in the previous cycle
// keep their watermark; new ones are bootstrapped, and those without any
// log output are dropped. A failed discovery query yields an empty set for
// this cycle but keeps the history for the next one.
func (r *Registry) Reconcile(ctx context.Context) []*Tracker {
	listed, err := r.discover(ctx)
	if err != nil {
		metrics.QueryFailures.WithLabelValues(metrics.QueryDiscovery).Inc()
		slog.Warn("collector: discovery failed",
			logging.Namespace(r.discovery.Namespace),
			logging.Selector(r.discovery.Selector),
			logging.Error(err),
		)
		return nil
	}

	history := make(map[model.SourceID]*Tracker, len(r.trackers))
	for _, t := range r.trackers {
		history[t.Source.ID] = t
	}

	next := make([]*Tracker, 0, len(listed))
	seen := make(map[model.SourceID]bool, len(listed))
	for _, src := range listed {
		if seen[src.ID] {
			continue
		}
		seen[src.ID] = true

		if prev, ok := history[src.ID]; ok && prev.Source.FirstTimestamp != "" {
			src.FirstTimestamp = prev.Source.FirstTimestamp
			src.LastTimestamp = prev.Source.LastTimestamp
			next = append(next, NewTracker(src))
			continue
		}

		t := NewTracker(src)
		qctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
		ok := t.Bootstrap(qctx, r.fetcher)
		cancel()
		if !ok {
			continue
		}
		slog.Info("collector: tracking new source",
			logging.Source(src.ID),
			logging.Selector(src.Selector),
			slog.String("first_timestamp", t.Source.FirstTimestamp),
		)
		next = append(next, t)
	}

	if len(next) == 0 {
		slog.Info("collector: no sources with logs",
			logging.Namespace(r.discovery.Namespace),
			slog.String("details", r.describe()),
		)
	}
	r.trackers = next
	return next
}

func (r *Registry) discover(ctx context.Context) ([]model.Source, error) {
	d := r.discovery
	if d.Explicit() {
		return []model.Source{{
			ID: model.SourceID{
				Namespace: d.Namespace,
				Pod:       d.PodName,
				Container: d.ContainerName,
			},
			Selector: model.ExplicitSelector,
		}}, nil
	}

	qctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	ids, err := r.discoverer.ListSources(qctx, d.Namespace, d.Selector)
	if err != nil {
		return nil, err
	}

	sources := make([]model.Source, 0, len(ids))
	for _, id := range ids {
		sources = append(sources, model.Source{ID: id, Selector: d.Selector})
	}
	return sources, nil
}

func (r *Registry) describe() string {
	if r.discovery.Explicit() {
		return "pod " + r.discovery.PodName + " container " + r.discovery.ContainerName
	}
	return "selector " + r.discovery.Selector
}
