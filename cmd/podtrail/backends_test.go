package main

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tinytelemetry/podtrail/internal/delivery"
	"github.com/tinytelemetry/podtrail/internal/logsource"
)

func TestBackendPlugins_Registered(t *testing.T) {
	t.Parallel()

	names := backendNames()
	if len(names) != 2 || names[0] != backendCLI || names[1] != backendKubernetes {
		t.Fatalf("backendNames = %v, want [cli kubernetes]", names)
	}
	for name, plugin := range backendPlugins {
		if plugin.Name() != name {
			t.Errorf("plugin registered as %q reports name %q", name, plugin.Name())
		}
	}
}

func TestBuildBackend_CLI(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.CLIBinary = "kubectl"
	backend, err := buildBackend(cfg)
	if err != nil {
		t.Fatalf("buildBackend: %v", err)
	}
	if _, ok := backend.(*logsource.CLIBackend); !ok {
		t.Fatalf("backend = %T, want *logsource.CLIBackend", backend)
	}
	if backend.Name() != backendCLI {
		t.Errorf("Name = %q, want cli", backend.Name())
	}
}

func TestBuildBackend_Unknown(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Backend = "ssh"
	_, err := buildBackend(cfg)
	if err == nil || !strings.Contains(err.Error(), `unknown backend "ssh"`) {
		t.Fatalf("error = %v, want unknown backend", err)
	}
}

func TestBuildSink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(c *appConfig)
		wantName string
		wantErr  bool
	}{
		{name: "stdout", mutate: func(*appConfig) {}, wantName: sinkStdout},
		{
			name: "http",
			mutate: func(c *appConfig) {
				c.Sink = sinkHTTP
				c.Delivery = deliveryConfig{
					TokenURL:     "https://sso.example.com/token",
					ClientID:     "podtrail",
					ClientSecret: "secret",
					APIURL:       "https://logs.example.com",
					Timeout:      time.Second,
				}
			},
			wantName: sinkHTTP,
		},
		{
			name: "otlp",
			mutate: func(c *appConfig) {
				c.Sink = sinkOTLP
				c.OTLP = otlpConfig{Endpoint: "localhost:4317", Insecure: true}
			},
			wantName: sinkOTLP,
		},
		{
			name:    "http without credentials",
			mutate:  func(c *appConfig) { c.Sink = sinkHTTP },
			wantErr: true,
		},
		{
			name:    "unknown",
			mutate:  func(c *appConfig) { c.Sink = "kafka" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			sink, closeSink, err := buildSink(cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("buildSink: %v", err)
			}
			defer closeSink()

			if sink.Name() != tt.wantName {
				t.Errorf("sink name = %q, want %q", sink.Name(), tt.wantName)
			}
			var _ delivery.Sink = sink
		})
	}
}

func TestBuildBackend_WrapsPluginError(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Backend = backendKubernetes
	cfg.Kubeconfig = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := buildBackend(cfg)
	if err == nil || !strings.HasPrefix(err.Error(), "build kubernetes backend:") {
		t.Fatalf("error = %v, want wrapped plugin error", err)
	}
	if errors.Is(err, logsource.ErrNotAuthorized) {
		t.Error("kubeconfig failure should not be reported as an authorization error")
	}
}
