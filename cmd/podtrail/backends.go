package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/tinytelemetry/podtrail/internal/delivery"
	"github.com/tinytelemetry/podtrail/internal/logsource"
)

const (
	backendCLI        = "cli"
	backendKubernetes = "kubernetes"

	sinkHTTP   = "http"
	sinkOTLP   = "otlp"
	sinkStdout = "stdout"
)

// BackendPlugin is a small plugin primitive for wiring log backends.
type BackendPlugin interface {
	Name() string
	Build(cfg appConfig) (logsource.Backend, error)
}

var backendPlugins = map[string]BackendPlugin{
	backendCLI:        cliBackendPlugin{},
	backendKubernetes: kubeBackendPlugin{},
}

func backendNames() []string {
	names := make([]string, 0, len(backendPlugins))
	for name := range backendPlugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func buildBackend(cfg appConfig) (logsource.Backend, error) {
	plugin, ok := backendPlugins[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("unknown backend %q (want %s)", cfg.Backend, strings.Join(backendNames(), ", "))
	}
	backend, err := plugin.Build(cfg)
	if err != nil {
		return nil, fmt.Errorf("build %s backend: %w", plugin.Name(), err)
	}
	return backend, nil
}

type cliBackendPlugin struct{}

func (cliBackendPlugin) Name() string { return backendCLI }

func (cliBackendPlugin) Build(cfg appConfig) (logsource.Backend, error) {
	return logsource.NewCLIBackend(logsource.CLIConfig{
		Binary:     cfg.CLIBinary,
		Namespace:  cfg.Namespace,
		ConsoleURL: cfg.ConsoleURL,
		Token:      cfg.Token,
	}), nil
}

type kubeBackendPlugin struct{}

func (kubeBackendPlugin) Name() string { return backendKubernetes }

func (kubeBackendPlugin) Build(cfg appConfig) (logsource.Backend, error) {
	return logsource.NewKubeBackend(logsource.KubeConfig{
		Namespace:  cfg.Namespace,
		Kubeconfig: cfg.Kubeconfig,
	})
}

// buildSink returns the configured sink and a close function.
func buildSink(cfg appConfig) (delivery.Sink, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Sink {
	case sinkHTTP:
		s, err := delivery.NewHTTPSink(delivery.HTTPConfig{
			TokenURL:     cfg.Delivery.TokenURL,
			ClientID:     cfg.Delivery.ClientID,
			ClientSecret: cfg.Delivery.ClientSecret,
			APIURL:       cfg.Delivery.APIURL,
			Env:          cfg.Delivery.Env,
			Timeout:      cfg.Delivery.Timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	case sinkOTLP:
		s, err := delivery.NewOTLPSink(delivery.OTLPConfig{
			Endpoint: cfg.OTLP.Endpoint,
			Insecure: cfg.OTLP.Insecure,
			Headers:  cfg.OTLP.Headers,
			Env:      cfg.Delivery.Env,
			Timeout:  cfg.Delivery.Timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case sinkStdout:
		return delivery.NewStdoutSink(os.Stdout, cfg.Delivery.Env), noop, nil
	}
	return nil, nil, fmt.Errorf("unknown sink %q", cfg.Sink)
}
