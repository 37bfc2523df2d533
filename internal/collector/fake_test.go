package collector

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tinytelemetry/podtrail/internal/logparse"
	"github.com/tinytelemetry/podtrail/internal/model"
)

var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// ts formats a timestamp sec seconds after baseTime the way the log source does.
func ts(sec int) string {
	return baseTime.Add(time.Duration(sec) * time.Second).Format("2006-01-02T15:04:05.000Z")
}

func line(sec int, msg string) string {
	return ts(sec) + " " + msg
}

// fakeSource simulates a stateless log source: every window is answered from
// the full stream, starting at since-time (inclusive) and cut at the byte limit.
type fakeSource struct {
	mu       sync.Mutex
	pods     []model.SourceID
	listErr  error
	listed   int
	fetchErr map[model.SourceID]error
	streams  map[model.SourceID][]string
	windows  map[model.SourceID][]model.Window
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		fetchErr: map[model.SourceID]error{},
		streams:  map[model.SourceID][]string{},
		windows:  map[model.SourceID][]model.Window{},
	}
}

func (f *fakeSource) addPod(id model.SourceID, lines ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pods = append(f.pods, id)
	f.streams[id] = append(f.streams[id], lines...)
}

func (f *fakeSource) removePod(id model.SourceID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.pods[:0]
	for _, p := range f.pods {
		if p != id {
			kept = append(kept, p)
		}
	}
	f.pods = kept
}

func (f *fakeSource) write(id model.SourceID, lines ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streams[id] = append(f.streams[id], lines...)
}

func (f *fakeSource) ListSources(_ context.Context, namespace, _ string) ([]model.SourceID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]model.SourceID, 0, len(f.pods))
	for _, p := range f.pods {
		if p.Namespace == namespace {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeSource) FetchWindow(_ context.Context, id model.SourceID, w model.Window) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows[id] = append(f.windows[id], w)
	if err := f.fetchErr[id]; err != nil {
		return "", err
	}

	since := int64(0)
	if w.SinceTime != "" {
		since = logparse.EpochMillis(w.SinceTime)
	}
	var b strings.Builder
	for _, l := range f.streams[id] {
		stamp, _, _ := strings.Cut(l, " ")
		if logparse.EpochMillis(stamp) < since {
			continue
		}
		b.WriteString(l)
		b.WriteByte('\n')
	}
	out := b.String()
	if w.LimitBytes > 0 && len(out) > w.LimitBytes {
		out = out[:w.LimitBytes]
	}
	return out, nil
}

func (f *fakeSource) windowsFor(id model.SourceID) []model.Window {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Window(nil), f.windows[id]...)
}

func messages(entries []model.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

func pod(name string) model.SourceID {
	return model.SourceID{Namespace: "shop", Pod: name, Container: "app"}
}

func msgs(prefix string, from, to int) []string {
	var out []string
	for i := from; i <= to; i++ {
		out = append(out, line(i, fmt.Sprintf("%s-%02d", prefix, i)))
	}
	return out
}
