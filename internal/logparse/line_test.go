package logparse

import (
	"testing"

	"github.com/tinytelemetry/podtrail/internal/model"
)

var testSource = model.SourceID{Namespace: "shop", Pod: "api-7d9f", Container: "api"}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantTS   string
		wantTime int64
		wantMsg  string
	}{
		{
			name:     "millis",
			line:     "2024-01-01T00:00:01.000Z hello",
			wantTS:   "2024-01-01T00:00:01.000Z",
			wantTime: 1704067201000,
			wantMsg:  "hello",
		},
		{
			name:     "nanos",
			line:     "2024-01-01T00:00:01.123456789Z  padded message  ",
			wantTS:   "2024-01-01T00:00:01.123456789Z",
			wantTime: 1704067201123,
			wantMsg:  "padded message",
		},
		{
			name:     "whole seconds",
			line:     "2024-01-01T00:00:00Z boot",
			wantTS:   "2024-01-01T00:00:00Z",
			wantTime: 1704067200000,
			wantMsg:  "boot",
		},
		{
			name:     "space separated",
			line:     "2024-01-01 00:00:00.500Z spaced",
			wantTS:   "2024-01-01 00:00:00.500Z",
			wantTime: 1704067200500,
			wantMsg:  "spaced",
		},
		{
			name:     "ansi color stripped",
			line:     "2024-01-01T00:00:01.000Z \x1b[31mred alert\x1b[0m",
			wantTS:   "2024-01-01T00:00:01.000Z",
			wantTime: 1704067201000,
			wantMsg:  "red alert",
		},
		{
			name:     "empty message",
			line:     "2024-01-01T00:00:01.000Z",
			wantTS:   "2024-01-01T00:00:01.000Z",
			wantTime: 1704067201000,
			wantMsg:  "",
		},
		{
			name:     "message keeps later Z",
			line:     "2024-01-01T00:00:01.000Z Zone reloaded",
			wantTS:   "2024-01-01T00:00:01.000Z",
			wantTime: 1704067201000,
			wantMsg:  "Zone reloaded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLine(tt.line, testSource)
			if got.Timestamp != tt.wantTS {
				t.Errorf("Timestamp = %q, want %q", got.Timestamp, tt.wantTS)
			}
			if got.Time != tt.wantTime {
				t.Errorf("Time = %d, want %d", got.Time, tt.wantTime)
			}
			if got.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", got.Message, tt.wantMsg)
			}
			if got.Source != testSource {
				t.Errorf("Source = %v, want %v", got.Source, testSource)
			}
		})
	}
}

func TestParseLine_Unparseable(t *testing.T) {
	lines := []string{
		"",
		"no marker at all",
		"hello Zed",
		"garbageZ message",
		"2024-13-45T99:99:99Z impossible date",
	}

	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			got := ParseLine(line, testSource)
			if got.Time != 0 {
				t.Errorf("ParseLine(%q).Time = %d, want 0", line, got.Time)
			}
		})
	}

	got := ParseLine("no marker at all", testSource)
	if got.Message != "" || got.Timestamp != "" {
		t.Errorf("line without Z = %+v, want empty timestamp and message", got)
	}
}

func TestEpochMillis(t *testing.T) {
	if got := EpochMillis("2024-01-01T00:00:02.000Z"); got != 1704067202000 {
		t.Errorf("EpochMillis = %d, want 1704067202000", got)
	}
	if got := EpochMillis(""); got != 0 {
		t.Errorf("EpochMillis(\"\") = %d, want 0", got)
	}
	if got := EpochMillis("yesterday"); got != 0 {
		t.Errorf("EpochMillis(yesterday) = %d, want 0", got)
	}
}

func TestParseTimestamp_KeepsNanoseconds(t *testing.T) {
	a, ok := ParseTimestamp("2024-01-01T00:00:01.000100000Z")
	if !ok {
		t.Fatal("ParseTimestamp failed on nanosecond timestamp")
	}
	b, _ := ParseTimestamp("2024-01-01T00:00:01.000200000Z")
	if !b.After(a) {
		t.Errorf("%s not after %s", b, a)
	}
	if EpochMillis("2024-01-01T00:00:01.000100000Z") != EpochMillis("2024-01-01T00:00:01.000200000Z") {
		t.Error("EpochMillis should collapse both to the same millisecond")
	}
	if _, ok := ParseTimestamp("garbage"); ok {
		t.Error("ParseTimestamp accepted garbage")
	}
}
