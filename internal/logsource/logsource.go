package logsource

import (
	"context"
	"errors"

	"github.com/tinytelemetry/podtrail/internal/model"
)

// ErrNotAuthorized is returned by Connect when the current identity cannot
// read pod logs in the target namespace.
var ErrNotAuthorized = errors.New("logsource: not authorized to read pod logs")

// Discoverer lists the containers matching a label selector, one per pod,
// using each pod's first container.
type Discoverer interface {
	ListSources(ctx context.Context, namespace, selector string) ([]model.SourceID, error)
}

// WindowFetcher returns the raw `--timestamps` log text for one bounded window.
// The text may end mid-line when the byte limit is reached.
type WindowFetcher interface {
	FetchWindow(ctx context.Context, id model.SourceID, w model.Window) (string, error)
}

// Backend is a unified interface for the log sources podtrail can poll
// (the oc/kubectl CLI and the Kubernetes API).
type Backend interface {
	Discoverer
	WindowFetcher
	Connect(ctx context.Context) error // verify identity and log read access
	Name() string                      // "cli", "kubernetes"
}
