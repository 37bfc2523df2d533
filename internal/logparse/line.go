package logparse

import (
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/tinytelemetry/podtrail/internal/model"
)

// timestampLayouts are tried in order. RFC3339Nano also accepts values
// without fractional seconds.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
}

// ParseLine turns one `<timestamp>Z <message>` line into an Entry.
// A line without a `Z` marker, or with a timestamp that does not parse,
// yields an entry with zero Time. It never fails.
func ParseLine(line string, id model.SourceID) model.Entry {
	entry := model.Entry{Source: id}

	zed := strings.IndexByte(line, 'Z')
	if zed < 0 {
		return entry
	}

	ts := strings.TrimSpace(line[:zed+1])
	msg := strings.TrimSpace(line[zed+1:])
	if msg != "" {
		msg = ansi.Strip(msg)
	}

	entry.Timestamp = ts
	entry.Time = EpochMillis(ts)
	entry.Message = msg
	return entry
}

// ParseTimestamp parses an ISO-8601 timestamp at full precision.
func ParseTimestamp(ts string) (time.Time, bool) {
	if ts == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// EpochMillis parses an ISO-8601 UTC timestamp into epoch milliseconds.
// It returns 0 when the value cannot be parsed.
func EpochMillis(ts string) int64 {
	t, ok := ParseTimestamp(ts)
	if !ok {
		return 0
	}
	return t.UnixMilli()
}
