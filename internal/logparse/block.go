package logparse

import (
	"log/slog"
	"strings"

	"github.com/tinytelemetry/podtrail/internal/model"
)

// ParseBlock parses raw multi-line log output for one source.
//
// Output is cut at the last newline: a byte-limited query can end mid-line,
// so the trailing fragment is always discarded. Lines without a usable
// timestamp are dropped; lines with a timestamp but no message are kept
// because they still anchor the watermark.
func ParseBlock(text string, id model.SourceID) (entries []model.Entry) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("logparse: failed to parse log block",
				slog.String("source", id.String()),
				slog.Any("panic", r),
			)
			entries = nil
		}
	}()

	last := strings.LastIndexByte(text, '\n')
	if last < 0 {
		return nil
	}

	lines := strings.Split(text[:last], "\n")
	entries = make([]model.Entry, 0, len(lines))
	for _, line := range lines {
		entry := ParseLine(line, id)
		if entry.Time == 0 {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}
