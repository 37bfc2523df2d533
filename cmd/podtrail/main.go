package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	var configPath string
	var showVersion bool
	var printConfig bool

	flag.StringVar(&configPath, "config", "", "config file (YAML); environment variables use the LOGAPP_ prefix")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.BoolVar(&printConfig, "print-config", false, "print the effective configuration and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("podtrail - Pod Log Collector\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if printConfig {
		if err := writeConfig(os.Stdout, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := cfg.validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error:\n%v\n", err)
		os.Exit(1)
	}

	if err := runServer(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	v := viper.New()
	v.SetEnvPrefix("LOGAPP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	v.SetDefault("namespace", "")
	v.SetDefault("pod-name", "")
	v.SetDefault("container-name", "")
	v.SetDefault("selector", "")
	v.SetDefault("limit-bytes", defaultLimitBytes)
	v.SetDefault("since-time", "")
	v.SetDefault("poll-interval", defaultPollInterval)
	v.SetDefault("query-timeout", defaultQueryTimeout)
	v.SetDefault("concurrency", defaultConcurrency)
	v.SetDefault("backend", defaultBackend)
	v.SetDefault("cli-binary", defaultCLIBinary)
	v.SetDefault("console-url", "")
	v.SetDefault("token", "")
	v.SetDefault("kubeconfig", "")
	v.SetDefault("sink", defaultSink)
	v.SetDefault("delivery.token-url", "")
	v.SetDefault("delivery.client-id", "")
	v.SetDefault("delivery.client-secret", "")
	v.SetDefault("delivery.api-url", "")
	v.SetDefault("delivery.env", defaultEnv)
	v.SetDefault("delivery.timeout", defaultDeliveryTimeout)
	v.SetDefault("otlp.endpoint", "")
	v.SetDefault("otlp.insecure", true)
	v.SetDefault("otlp.headers", map[string]string{})
	v.SetDefault("checkpoint-path", "")
	v.SetDefault("api-enabled", true)
	v.SetDefault("api-addr", defaultAPIAddr)
	v.SetDefault("log-level", defaultLogLevel)
	v.SetDefault("log-format", defaultLogFormat)

	// Variable names used by earlier deployments of the collector.
	_ = v.BindEnv("delivery.token-url", "LOGAPP_DELIVERY_TOKEN_URL", "CMNSRV_TOKENURL")
	_ = v.BindEnv("delivery.client-id", "LOGAPP_DELIVERY_CLIENT_ID", "CMNSRV_CLIENTID")
	_ = v.BindEnv("delivery.client-secret", "LOGAPP_DELIVERY_CLIENT_SECRET", "CMNSRV_CLIENTSECRET")
	_ = v.BindEnv("delivery.api-url", "LOGAPP_DELIVERY_API_URL", "CLOGS_HTTP_APIURL")
	_ = v.BindEnv("delivery.env", "LOGAPP_DELIVERY_ENV", "CLOGS_METADATA_ENV")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var configFileNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
				return cfg, err
			}
		}
	}

	// A bare number is milliseconds, as LOGAPP_POLL_INTERVAL used to be.
	if ms, err := strconv.Atoi(strings.TrimSpace(v.GetString("poll-interval"))); err == nil {
		v.Set("poll-interval", time.Duration(ms)*time.Millisecond)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()

	cfg.Namespace = strings.TrimSpace(cfg.Namespace)
	cfg.PodName = strings.TrimSpace(cfg.PodName)
	cfg.ContainerName = strings.TrimSpace(cfg.ContainerName)
	cfg.Selector = strings.TrimSpace(cfg.Selector)
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	cfg.Sink = strings.ToLower(strings.TrimSpace(cfg.Sink))
	cfg.SinceTime = resolveSinceTime(cfg.SinceTime, time.Now())

	return cfg, nil
}

func writeConfig(w io.Writer, cfg appConfig) error {
	var doc yaml.Node
	if err := doc.Encode(cfg.redact()); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	humanizeDurations(&doc)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

var durationKeys = map[string]bool{
	"poll-interval": true,
	"query-timeout": true,
	"timeout":       true,
}

// humanizeDurations rewrites nanosecond integers under duration keys as
// duration strings such as "30s".
func humanizeDurations(n *yaml.Node) {
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			if durationKeys[key.Value] && val.Kind == yaml.ScalarNode {
				if ns, err := strconv.ParseInt(val.Value, 10, 64); err == nil {
					val.SetString(time.Duration(ns).String())
				}
			}
		}
	}
	for _, c := range n.Content {
		humanizeDurations(c)
	}
}
