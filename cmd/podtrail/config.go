package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tinytelemetry/podtrail/internal/httpserver"
	"github.com/tinytelemetry/podtrail/internal/logsource"
	"github.com/tinytelemetry/podtrail/internal/model"
)

const (
	defaultLimitBytes      = model.DefaultLimitBytes
	defaultPollInterval    = model.DefaultPollInterval
	defaultQueryTimeout    = model.DefaultQueryTimeout
	defaultConcurrency     = model.DefaultConcurrency
	defaultBackend         = backendCLI
	defaultCLIBinary       = logsource.DefaultCLIBinary
	defaultSink            = sinkHTTP
	defaultEnv             = model.DefaultEnvironmentTag
	defaultDeliveryTimeout = 30 * time.Second
	defaultAPIAddr         = httpserver.DefaultAddr
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"

	sinceTimeLayout = "2006-01-02T15:04:05.000Z"
	redacted        = "<redacted>"
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	Namespace     string `mapstructure:"namespace" yaml:"namespace"`
	PodName       string `mapstructure:"pod-name" yaml:"pod-name"`
	ContainerName string `mapstructure:"container-name" yaml:"container-name"`
	Selector      string `mapstructure:"selector" yaml:"selector"`

	LimitBytes   int           `mapstructure:"limit-bytes" yaml:"limit-bytes"`
	SinceTime    string        `mapstructure:"since-time" yaml:"since-time"`
	PollInterval time.Duration `mapstructure:"poll-interval" yaml:"poll-interval"`
	QueryTimeout time.Duration `mapstructure:"query-timeout" yaml:"query-timeout"`
	Concurrency  int           `mapstructure:"concurrency" yaml:"concurrency"`

	Backend    string `mapstructure:"backend" yaml:"backend"`
	CLIBinary  string `mapstructure:"cli-binary" yaml:"cli-binary"`
	ConsoleURL string `mapstructure:"console-url" yaml:"console-url"`
	Token      string `mapstructure:"token" yaml:"token"`
	Kubeconfig string `mapstructure:"kubeconfig" yaml:"kubeconfig"`

	Sink     string         `mapstructure:"sink" yaml:"sink"`
	Delivery deliveryConfig `mapstructure:"delivery" yaml:"delivery"`
	OTLP     otlpConfig     `mapstructure:"otlp" yaml:"otlp"`

	CheckpointPath string `mapstructure:"checkpoint-path" yaml:"checkpoint-path"`
	APIEnabled     bool   `mapstructure:"api-enabled" yaml:"api-enabled"`
	APIAddr        string `mapstructure:"api-addr" yaml:"api-addr"`
	LogLevel       string `mapstructure:"log-level" yaml:"log-level"`
	LogFormat      string `mapstructure:"log-format" yaml:"log-format"`

	ConfigPath string `mapstructure:"-" yaml:"-"` // not from config file
}

type deliveryConfig struct {
	TokenURL     string        `mapstructure:"token-url" yaml:"token-url"`
	ClientID     string        `mapstructure:"client-id" yaml:"client-id"`
	ClientSecret string        `mapstructure:"client-secret" yaml:"client-secret"`
	APIURL       string        `mapstructure:"api-url" yaml:"api-url"`
	Env          string        `mapstructure:"env" yaml:"env"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type otlpConfig struct {
	Endpoint string            `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure bool              `mapstructure:"insecure" yaml:"insecure"`
	Headers  map[string]string `mapstructure:"headers" yaml:"headers"`
}

func (c appConfig) explicit() bool {
	return c.PodName != "" && c.ContainerName != ""
}

// validate reports every configuration problem at once.
func (c appConfig) validate() error {
	var errs []error

	if c.Namespace == "" {
		errs = append(errs, errors.New("namespace is required"))
	}
	hasPod := c.PodName != "" || c.ContainerName != ""
	switch {
	case hasPod && !c.explicit():
		errs = append(errs, errors.New("pod-name and container-name must be set together"))
	case c.explicit() && c.Selector != "":
		errs = append(errs, errors.New("set either pod-name and container-name or selector, not both"))
	case !hasPod && c.Selector == "":
		errs = append(errs, errors.New("either pod-name and container-name or selector is required"))
	}

	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("invalid poll-interval: %s", c.PollInterval))
	}
	if c.QueryTimeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid query-timeout: %s", c.QueryTimeout))
	}
	if c.LimitBytes <= 0 {
		errs = append(errs, fmt.Errorf("invalid limit-bytes: %d", c.LimitBytes))
	}
	if c.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("invalid concurrency: %d", c.Concurrency))
	}

	if _, ok := backendPlugins[c.Backend]; !ok {
		errs = append(errs, fmt.Errorf("unknown backend %q (want %s)", c.Backend, strings.Join(backendNames(), ", ")))
	}

	switch c.Sink {
	case sinkHTTP:
		d := c.Delivery
		if d.TokenURL == "" || d.ClientID == "" || d.ClientSecret == "" || d.APIURL == "" {
			errs = append(errs, errors.New("http sink requires delivery.token-url, delivery.client-id, delivery.client-secret and delivery.api-url"))
		}
	case sinkOTLP:
		if c.OTLP.Endpoint == "" {
			errs = append(errs, errors.New("otlp sink requires otlp.endpoint"))
		}
	case sinkStdout:
	default:
		errs = append(errs, fmt.Errorf("unknown sink %q (want %s, %s or %s)", c.Sink, sinkHTTP, sinkOTLP, sinkStdout))
	}
	if c.Delivery.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid delivery.timeout: %s", c.Delivery.Timeout))
	}

	return errors.Join(errs...)
}

// redact returns a copy safe to print.
func (c appConfig) redact() appConfig {
	out := c
	if out.Token != "" {
		out.Token = redacted
	}
	if out.Delivery.ClientSecret != "" {
		out.Delivery.ClientSecret = redacted
	}
	if len(out.OTLP.Headers) > 0 {
		headers := make(map[string]string, len(out.OTLP.Headers))
		for k := range out.OTLP.Headers {
			headers[k] = redacted
		}
		out.OTLP.Headers = headers
	}
	return out
}

// resolveSinceTime normalizes the configured initial since-time. Empty or
// unparseable values fall back to the default lookback before now.
func resolveSinceTime(raw string, now time.Time) string {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return t.UTC().Format(sinceTimeLayout)
		}
	}
	return now.Add(-model.DefaultSinceLookback).UTC().Format(sinceTimeLayout)
}
