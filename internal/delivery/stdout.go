package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/tinytelemetry/podtrail/internal/model"
)

// StdoutSink writes one JSON record per line. Used for dry runs.
type StdoutSink struct {
	mu  sync.Mutex
	w   io.Writer
	env string
}

func NewStdoutSink(w io.Writer, env string) *StdoutSink {
	if env == "" {
		env = model.DefaultEnvironmentTag
	}
	return &StdoutSink{w: w, env: env}
}

func (s *StdoutSink) Name() string { return "stdout" }

func (s *StdoutSink) Deliver(_ context.Context, batch model.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	enc := json.NewEncoder(s.w)
	for _, r := range Records(batch, s.env) {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	return nil
}
