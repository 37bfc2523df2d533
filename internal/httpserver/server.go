package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tinytelemetry/podtrail/internal/collector"
	"github.com/tinytelemetry/podtrail/internal/logging"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = "0.0.0.0:8080"

// StatusProvider is the narrow engine contract required by the HTTP API.
type StatusProvider interface {
	Status() collector.Status
}

// Server exposes collector health, source watermarks and Prometheus metrics.
type Server struct {
	addr       string
	engine     StatusProvider
	staleAfter time.Duration
	server     *http.Server
	ctx        context.Context
	cancel     context.CancelFunc
	startTime  time.Time
}

// NewServer creates a status API server. Health turns unavailable when no
// cycle has completed within staleAfter; zero disables the check.
func NewServer(addr string, engine StatusProvider, staleAfter time.Duration) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:       addr,
		engine:     engine,
		staleAfter: staleAfter,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", s.handleHealth)
	r.GET("/api/sources", s.handleSources)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.routes(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.startTime = time.Now()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("httpserver: serve failed", logging.Error(err))
		}
	}()
	slog.Info("httpserver: listening", slog.String("addr", listener.Addr().String()))
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	st := s.engine.Status()

	status, code := "ok", http.StatusOK
	switch {
	case st.Cycles == 0:
		status = "starting"
	case s.staleAfter > 0 && time.Since(st.LastCycle) > s.staleAfter:
		status, code = "stale", http.StatusServiceUnavailable
	}

	body := gin.H{
		"status":     status,
		"uptime":     time.Since(s.startTime).String(),
		"cycles":     st.Cycles,
		"sources":    len(st.Sources),
		"last_batch": st.LastBatch,
	}
	if !st.LastCycle.IsZero() {
		body["last_cycle"] = st.LastCycle.UTC().Format(time.RFC3339)
		body["last_duration_ms"] = st.LastDuration.Milliseconds()
	}
	c.JSON(code, body)
}

type sourceView struct {
	Namespace      string `json:"namespace"`
	Pod            string `json:"pod"`
	Container      string `json:"container"`
	Selector       string `json:"selector"`
	FirstTimestamp string `json:"first_timestamp"`
	LastTimestamp  string `json:"last_timestamp,omitempty"`
}

func (s *Server) handleSources(c *gin.Context) {
	st := s.engine.Status()

	views := make([]sourceView, 0, len(st.Sources))
	for _, src := range st.Sources {
		views = append(views, sourceView{
			Namespace:      src.ID.Namespace,
			Pod:            src.ID.Pod,
			Container:      src.ID.Container,
			Selector:       src.Selector,
			FirstTimestamp: src.FirstTimestamp,
			LastTimestamp:  src.LastTimestamp,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": views,
		"count":   len(views),
	})
}
