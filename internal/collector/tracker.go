package collector

import (
	"context"
	"log/slog"
	"time"

	"github.com/tinytelemetry/podtrail/internal/logging"
	"github.com/tinytelemetry/podtrail/internal/logparse"
	"github.com/tinytelemetry/podtrail/internal/logsource"
	"github.com/tinytelemetry/podtrail/internal/metrics"
	"github.com/tinytelemetry/podtrail/internal/model"
)

// Tracker holds the watermark state for one source.
//
// The log source has no cursor: every poll re-queries a window whose lower
// bound is inclusive, so the entry at the watermark comes back each time.
// Advance drops it, turning an at-least-once query into exactly-once
// emission per timestamp.
type Tracker struct {
	Source model.Source
}

// NewTracker creates a tracker for src, keeping any watermark it carries.
func NewTracker(src model.Source) *Tracker {
	return &Tracker{Source: src}
}

// Bootstrap probes a newly discovered source with a small unbounded window
// and records the first entry's timestamp. It reports false when the probe
// fails or yields no entries, in which case the source must be dropped.
func (t *Tracker) Bootstrap(ctx context.Context, f logsource.WindowFetcher) bool {
	id := t.Source.ID
	text, err := f.FetchWindow(ctx, id, model.Window{LimitBytes: model.BootstrapLimitBytes})
	if err != nil {
		metrics.QueryFailures.WithLabelValues(metrics.QueryBootstrap).Inc()
		slog.Warn("collector: bootstrap probe failed", logging.Source(id), logging.Error(err))
		return false
	}

	entries := logparse.ParseBlock(text, id)
	if len(entries) == 0 {
		slog.Info("collector: no logs found for source", logging.Source(id))
		return false
	}
	t.Source.FirstTimestamp = entries[0].Timestamp
	return true
}

// Window computes the next query window for the source.
func (t *Tracker) Window(share int, initialSince string) model.Window {
	since := t.Source.LastTimestamp
	if since == "" {
		since = initialSince
	}
	return model.Window{LimitBytes: share, SinceTime: since}
}

// Advance filters entries already emitted in an earlier cycle and moves the
// watermark to the newest remaining entry.
//
// Entries at or before the watermark instant are dropped. Instants are
// compared at full precision since several lines can share a millisecond.
// since-time is honored at whole-second precision, so lines earlier in the
// watermark's second are served again and dropped here. Distinct lines that
// share the watermark timestamp are indistinguishable from the boundary
// entry and are dropped too.
func (t *Tracker) Advance(entries []model.Entry) []model.Entry {
	prev := t.Source.LastTimestamp
	prevAt, hasPrev := logparse.ParseTimestamp(prev)

	kept := make([]model.Entry, 0, len(entries))
	newest := -1
	var newestAt time.Time
	for _, e := range entries {
		at, ok := logparse.ParseTimestamp(e.Timestamp)
		if prev != "" && (e.Timestamp == prev || (hasPrev && ok && !at.After(prevAt))) {
			continue
		}
		kept = append(kept, e)
		if ok && (newest < 0 || at.After(newestAt)) {
			newest, newestAt = len(kept)-1, at
		}
	}
	if newest >= 0 {
		t.Source.LastTimestamp = kept[newest].Timestamp
	}
	return kept
}

// Collect runs one steady-state transition: query the window, parse the
// output and advance the watermark. A failed query returns the error and
// leaves the watermark untouched.
func (t *Tracker) Collect(ctx context.Context, f logsource.WindowFetcher, share int, initialSince string) ([]model.Entry, error) {
	w := t.Window(share, initialSince)
	text, err := f.FetchWindow(ctx, t.Source.ID, w)
	if err != nil {
		return nil, err
	}
	return t.Advance(logparse.ParseBlock(text, t.Source.ID)), nil
}
