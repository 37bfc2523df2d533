package logging

import (
	"log/slog"
	"time"

	"github.com/tinytelemetry/podtrail/internal/model"
)

// Common field names for consistent logging.
const (
	FieldService   = "service"
	FieldSource    = "source"
	FieldSelector  = "selector"
	FieldNamespace = "namespace"
	FieldSince     = "since"
	FieldCount     = "count"
	FieldBatchID   = "batch_id"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
)

func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// Source returns a slog attribute for a source identity.
func Source(id model.SourceID) slog.Attr {
	return slog.String(FieldSource, id.String())
}

func Selector(selector string) slog.Attr {
	return slog.String(FieldSelector, selector)
}

func Namespace(ns string) slog.Attr {
	return slog.String(FieldNamespace, ns)
}

func Since(ts string) slog.Attr {
	return slog.String(FieldSince, ts)
}

func Count(n int) slog.Attr {
	return slog.Int(FieldCount, n)
}

func BatchID(id string) slog.Attr {
	return slog.String(FieldBatchID, id)
}

// Duration returns a slog attribute for an elapsed time in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64(FieldDuration, d.Milliseconds())
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}
