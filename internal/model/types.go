package model

import "time"

// SourceID identifies one container log stream.
type SourceID struct {
	Namespace string
	Pod       string
	Container string
}

func (id SourceID) String() string {
	return id.Namespace + "/" + id.Pod + "/" + id.Container
}

// Source is one tracked container together with its watermark state.
// Selector records how it was discovered: ExplicitSelector or the label selector.
type Source struct {
	ID             SourceID
	FirstTimestamp string
	LastTimestamp  string
	Selector       string
}

// Entry is a single parsed log line.
// Time is epoch milliseconds; zero means the timestamp could not be parsed.
type Entry struct {
	Source    SourceID
	Timestamp string
	Time      int64
	Message   string
}

// Window describes one bounded query against a source's log tail.
// An empty SinceTime means no lower bound.
type Window struct {
	LimitBytes int
	SinceTime  string
}

// Batch is the time-ordered output of one poll cycle.
type Batch struct {
	ID          string
	Entries     []Entry
	CollectedAt time.Time
}

// Len returns the number of entries in the batch.
func (b Batch) Len() int { return len(b.Entries) }
