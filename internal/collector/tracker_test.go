package collector

import (
	"context"
	"errors"
	"testing"

	"github.com/tinytelemetry/podtrail/internal/logparse"
	"github.com/tinytelemetry/podtrail/internal/model"
)

func entry(sec int, msg string) model.Entry {
	stamp := ts(sec)
	return model.Entry{Source: pod("api"), Timestamp: stamp, Time: logparse.EpochMillis(stamp), Message: msg}
}

func TestTrackerAdvance_DropsBoundaryEntry(t *testing.T) {
	tr := NewTracker(model.Source{ID: pod("api"), FirstTimestamp: ts(0), LastTimestamp: "2024-01-01T00:00:01.000Z"})

	got := tr.Advance([]model.Entry{entry(1, "seen"), entry(2, "new")})
	if len(got) != 1 || got[0].Message != "new" {
		t.Fatalf("Advance = %v, want [new]", messages(got))
	}
	if tr.Source.LastTimestamp != "2024-01-01T00:00:02.000Z" {
		t.Errorf("LastTimestamp = %q, want 2024-01-01T00:00:02.000Z", tr.Source.LastTimestamp)
	}
}

func TestTrackerAdvance_NoProgressKeepsWatermark(t *testing.T) {
	tr := NewTracker(model.Source{ID: pod("api"), LastTimestamp: ts(5)})

	got := tr.Advance([]model.Entry{entry(5, "boundary")})
	if len(got) != 0 {
		t.Fatalf("Advance = %v, want none", messages(got))
	}
	if tr.Source.LastTimestamp != ts(5) {
		t.Errorf("LastTimestamp = %q, want %q", tr.Source.LastTimestamp, ts(5))
	}

	if got := tr.Advance(nil); len(got) != 0 || tr.Source.LastTimestamp != ts(5) {
		t.Errorf("Advance(nil) changed state: %v, %q", got, tr.Source.LastTimestamp)
	}
}

func TestTrackerAdvance_DropsEntriesOlderThanWatermark(t *testing.T) {
	tr := NewTracker(model.Source{ID: pod("api"), LastTimestamp: ts(10)})

	got := tr.Advance([]model.Entry{entry(9, "old"), entry(10, "boundary"), entry(11, "fresh")})
	if len(got) != 1 || got[0].Message != "fresh" {
		t.Fatalf("Advance = %v, want [fresh]", messages(got))
	}
}

func TestTrackerAdvance_DuplicateTimestampIsDropped(t *testing.T) {
	tr := NewTracker(model.Source{ID: pod("api"), LastTimestamp: ts(3)})

	// A distinct line sharing the watermark timestamp cannot be told apart
	// from the boundary entry.
	got := tr.Advance([]model.Entry{entry(3, "first"), entry(3, "twin"), entry(4, "next")})
	if len(got) != 1 || got[0].Message != "next" {
		t.Fatalf("Advance = %v, want [next]", messages(got))
	}
}

func TestTrackerAdvance_UsesMaximumTime(t *testing.T) {
	tr := NewTracker(model.Source{ID: pod("api")})

	got := tr.Advance([]model.Entry{entry(3, "c"), entry(7, "g"), entry(5, "e")})
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if tr.Source.LastTimestamp != ts(7) {
		t.Errorf("LastTimestamp = %q, want %q", tr.Source.LastTimestamp, ts(7))
	}
}

func TestTrackerAdvance_EmptyMessageAnchorsWatermark(t *testing.T) {
	tr := NewTracker(model.Source{ID: pod("api"), LastTimestamp: ts(1)})

	got := tr.Advance([]model.Entry{entry(2, "")})
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if tr.Source.LastTimestamp != ts(2) {
		t.Errorf("LastTimestamp = %q, want %q", tr.Source.LastTimestamp, ts(2))
	}
}

func TestTrackerWindow(t *testing.T) {
	tr := NewTracker(model.Source{ID: pod("api")})

	w := tr.Window(2500, "2023-12-31T23:45:00.000Z")
	if w.SinceTime != "2023-12-31T23:45:00.000Z" || w.LimitBytes != 2500 {
		t.Errorf("Window without watermark = %+v", w)
	}

	tr.Source.LastTimestamp = ts(4)
	w = tr.Window(2500, "2023-12-31T23:45:00.000Z")
	if w.SinceTime != ts(4) {
		t.Errorf("Window.SinceTime = %q, want %q", w.SinceTime, ts(4))
	}
}

func TestTrackerBootstrap(t *testing.T) {
	src := newFakeSource()
	src.addPod(pod("api"), line(1, "hello"), line(2, "world"), line(3, "again"), line(4, "more"))

	tr := NewTracker(model.Source{ID: pod("api")})
	if !tr.Bootstrap(context.Background(), src) {
		t.Fatal("Bootstrap = false, want true")
	}
	if tr.Source.FirstTimestamp != ts(1) {
		t.Errorf("FirstTimestamp = %q, want %q", tr.Source.FirstTimestamp, ts(1))
	}
	if tr.Source.LastTimestamp != "" {
		t.Errorf("LastTimestamp = %q, want empty after bootstrap", tr.Source.LastTimestamp)
	}

	w := src.windowsFor(pod("api"))
	if len(w) != 1 || w[0].LimitBytes != model.BootstrapLimitBytes || w[0].SinceTime != "" {
		t.Errorf("bootstrap windows = %+v", w)
	}
}

func TestTrackerBootstrap_NoEntries(t *testing.T) {
	src := newFakeSource()
	src.addPod(pod("quiet"))

	tr := NewTracker(model.Source{ID: pod("quiet")})
	if tr.Bootstrap(context.Background(), src) {
		t.Error("Bootstrap = true for source without logs")
	}
	if tr.Source.FirstTimestamp != "" {
		t.Errorf("FirstTimestamp = %q, want empty", tr.Source.FirstTimestamp)
	}
}

func TestTrackerBootstrap_QueryFailure(t *testing.T) {
	src := newFakeSource()
	src.addPod(pod("api"), line(1, "hello"))
	src.fetchErr[pod("api")] = errors.New("container is waiting to start")

	tr := NewTracker(model.Source{ID: pod("api")})
	if tr.Bootstrap(context.Background(), src) {
		t.Error("Bootstrap = true on query failure")
	}
}

func TestTrackerCollect_FailureKeepsState(t *testing.T) {
	src := newFakeSource()
	src.addPod(pod("api"), line(1, "a"), line(2, "b"))
	src.fetchErr[pod("api")] = errors.New("timeout")

	tr := NewTracker(model.Source{ID: pod("api"), FirstTimestamp: ts(1), LastTimestamp: ts(1)})
	entries, err := tr.Collect(context.Background(), src, 1000, ts(0))
	if err == nil {
		t.Fatal("Collect error = nil, want failure")
	}
	if len(entries) != 0 || tr.Source.LastTimestamp != ts(1) {
		t.Errorf("failed collect changed state: %v, %q", entries, tr.Source.LastTimestamp)
	}
}

func TestTrackerCollect_SubMillisecondTimestamps(t *testing.T) {
	src := newFakeSource()
	src.addPod(pod("api"),
		"2024-01-01T00:00:01.000100000Z first",
		"2024-01-01T00:00:01.000200000Z second",
	)

	tr := NewTracker(model.Source{ID: pod("api"), FirstTimestamp: ts(1)})
	entries, err := tr.Collect(context.Background(), src, 1000, ts(0))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if got := messages(entries); len(got) != 2 {
		t.Fatalf("first cycle = %v, want [first second]", got)
	}
	if tr.Source.LastTimestamp != "2024-01-01T00:00:01.000200000Z" {
		t.Fatalf("LastTimestamp = %q, want the later line", tr.Source.LastTimestamp)
	}

	for cycle := 2; cycle <= 4; cycle++ {
		entries, err := tr.Collect(context.Background(), src, 1000, ts(0))
		if err != nil {
			t.Fatalf("cycle %d Collect: %v", cycle, err)
		}
		if len(entries) != 0 {
			t.Errorf("cycle %d re-emitted %v", cycle, messages(entries))
		}
		if tr.Source.LastTimestamp != "2024-01-01T00:00:01.000200000Z" {
			t.Errorf("cycle %d LastTimestamp = %q, moved backwards", cycle, tr.Source.LastTimestamp)
		}
	}

	src.write(pod("api"), "2024-01-01T00:00:01.000300000Z third")
	entries, err = tr.Collect(context.Background(), src, 1000, ts(0))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if got := messages(entries); len(got) != 1 || got[0] != "third" {
		t.Errorf("after append = %v, want [third]", got)
	}
}

func TestTrackerAdvance_NewestByFullPrecision(t *testing.T) {
	tr := NewTracker(model.Source{ID: pod("api")})

	stamp := func(s string) model.Entry {
		return model.Entry{Source: pod("api"), Timestamp: s, Time: logparse.EpochMillis(s), Message: s}
	}
	tr.Advance([]model.Entry{
		stamp("2024-01-01T00:00:05.000900000Z"),
		stamp("2024-01-01T00:00:05.000100000Z"),
	})
	if tr.Source.LastTimestamp != "2024-01-01T00:00:05.000900000Z" {
		t.Errorf("LastTimestamp = %q, want the latest instant", tr.Source.LastTimestamp)
	}
}
