// Package delivery ships collected batches to a log sink.
package delivery

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tinytelemetry/podtrail/internal/logging"
	"github.com/tinytelemetry/podtrail/internal/metrics"
	"github.com/tinytelemetry/podtrail/internal/model"
)

// ErrUnexpectedStatus is returned when the log service answers with a status
// other than 201 Created.
var ErrUnexpectedStatus = errors.New("unexpected status from log service")

// Sink delivers one batch. Implementations do not retry.
type Sink interface {
	Deliver(ctx context.Context, batch model.Batch) error
	Name() string
}

// Record is the wire form of one entry, shared by the JSON sinks.
type Record struct {
	Message  string   `json:"message"`
	Env      string   `json:"env"`
	Metadata Metadata `json:"metadata"`
}

// Metadata carries the origin of a record.
type Metadata struct {
	OCLog Origin `json:"oclog"`
}

// Origin identifies the container and timestamp a record came from.
type Origin struct {
	Namespace string `json:"namespace"`
	Pod       string `json:"pod"`
	Container string `json:"container"`
	Timestamp string `json:"timestamp"`
	Time      int64  `json:"time"`
}

// Records converts a batch into wire records tagged with env. Entries
// without a message are skipped.
func Records(batch model.Batch, env string) []Record {
	out := make([]Record, 0, len(batch.Entries))
	for _, e := range batch.Entries {
		if e.Message == "" {
			continue
		}
		out = append(out, Record{
			Message: e.Message,
			Env:     env,
			Metadata: Metadata{OCLog: Origin{
				Namespace: e.Source.Namespace,
				Pod:       e.Source.Pod,
				Container: e.Source.Container,
				Timestamp: e.Timestamp,
				Time:      e.Time,
			}},
		})
	}
	return out
}

// Send delivers batch through s, recording the outcome. Empty batches are
// not sent. The error is returned for the caller to log; it never affects
// collection state.
func Send(ctx context.Context, s Sink, batch model.Batch) error {
	if batch.Len() == 0 {
		return nil
	}

	start := time.Now()
	err := s.Deliver(ctx, batch)
	elapsed := time.Since(start)
	metrics.DeliveryDuration.Observe(elapsed.Seconds())

	if err != nil {
		metrics.DeliveryTotal.WithLabelValues(s.Name(), "error").Inc()
		slog.Error("delivery: batch dropped",
			slog.String("sink", s.Name()),
			logging.BatchID(batch.ID),
			logging.Count(batch.Len()),
			logging.Error(err),
		)
		return err
	}

	metrics.DeliveryTotal.WithLabelValues(s.Name(), "ok").Inc()
	slog.Info("delivery: batch submitted",
		slog.String("sink", s.Name()),
		logging.BatchID(batch.ID),
		logging.Count(batch.Len()),
		logging.Duration(elapsed),
	)
	return nil
}
