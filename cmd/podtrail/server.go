package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tinytelemetry/podtrail/internal/checkpoint"
	"github.com/tinytelemetry/podtrail/internal/collector"
	"github.com/tinytelemetry/podtrail/internal/delivery"
	"github.com/tinytelemetry/podtrail/internal/httpserver"
	"github.com/tinytelemetry/podtrail/internal/logging"
)

// runServer connects to the cluster and polls until interrupted.
func runServer(cfg appConfig) error {
	logger := logging.New(os.Stderr, logging.ParseLevel(cfg.LogLevel), cfg.LogFormat).
		With(logging.Service("podtrail"))
	logging.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := buildBackend(cfg)
	if err != nil {
		return err
	}
	if err := backend.Connect(ctx); err != nil {
		return fmt.Errorf("connect %s backend: %w", backend.Name(), err)
	}

	sink, closeSink, err := buildSink(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize %s sink: %w", cfg.Sink, err)
	}
	defer closeSink()

	engine := collector.NewEngine(collector.Config{
		Discovery: collector.Discovery{
			Namespace:     cfg.Namespace,
			PodName:       cfg.PodName,
			ContainerName: cfg.ContainerName,
			Selector:      cfg.Selector,
		},
		LimitBytes:   cfg.LimitBytes,
		InitialSince: cfg.SinceTime,
		QueryTimeout: cfg.QueryTimeout,
		Concurrency:  cfg.Concurrency,
	}, backend)

	if cfg.CheckpointPath != "" {
		store, err := checkpoint.Open(ctx, cfg.CheckpointPath)
		if err != nil {
			return fmt.Errorf("failed to open checkpoint store: %w", err)
		}
		defer store.Close()

		sources, err := store.Load(ctx)
		if err != nil {
			return fmt.Errorf("failed to load checkpoints: %w", err)
		}
		engine.Restore(sources)
		engine.SetCheckpointer(store)
	}

	if cfg.APIEnabled {
		apiServer := httpserver.NewServer(cfg.APIAddr, engine, 3*cfg.PollInterval)
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		sig, ok := <-sigCh
		if !ok {
			return
		}
		slog.Info("shutting down after the current cycle", slog.String("signal", sig.String()))
		cancel()

		// The grace period starts at the signal, not at boot.
		deadline := time.NewTimer(cfg.PollInterval)
		defer deadline.Stop()

		select {
		case <-sigCh:
			slog.Warn("second signal, forcing exit")
		case <-deadline.C:
			slog.Warn("shutdown timed out, forcing exit")
		}
		os.Exit(1)
	}()

	if cfg.LogFormat == "text" {
		printStartupBanner(cfg, backend.Name(), sink.Name())
	}
	slog.Info("podtrail started",
		slog.String("version", version),
		logging.Namespace(cfg.Namespace),
		logging.Selector(discoveryLabel(cfg)),
		slog.String("backend", backend.Name()),
		slog.String("sink", sink.Name()),
		slog.Duration("poll_interval", cfg.PollInterval),
		logging.Since(cfg.SinceTime),
	)

	pollLoop(ctx, cfg, engine, sink)
	slog.Info("podtrail stopped")
	return nil
}

// pollLoop runs cycles until ctx is cancelled. A cycle in progress is never
// interrupted; cancellation is observed between cycles.
func pollLoop(ctx context.Context, cfg appConfig, engine *collector.Engine, sink delivery.Sink) {
	cycleCtx := context.WithoutCancel(ctx)
	for ctx.Err() == nil {
		start := time.Now()

		batch := engine.Cycle(cycleCtx)
		dctx, cancel := context.WithTimeout(cycleCtx, cfg.Delivery.Timeout)
		_ = delivery.Send(dctx, sink, batch)
		cancel()

		elapsed := time.Since(start)
		wait := nextWait(cfg.PollInterval, elapsed)
		slog.Debug("waiting for next cycle", logging.Duration(elapsed), slog.Duration("wait", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// nextWait is the poll interval less the time spent, but never less than
// half the interval.
func nextWait(interval, elapsed time.Duration) time.Duration {
	return max(interval-elapsed, interval/2)
}

func discoveryLabel(cfg appConfig) string {
	if cfg.explicit() {
		return cfg.PodName + "/" + cfg.ContainerName
	}
	return cfg.Selector
}
