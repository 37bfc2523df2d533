package model

import "time"

// Shared defaults used by the collector engine and the CLI.
const (
	DefaultLimitBytes     = 50_000
	DefaultPollInterval   = 30 * time.Second
	DefaultSinceLookback  = 15 * time.Minute
	DefaultQueryTimeout   = 30 * time.Second
	DefaultConcurrency    = 4
	BootstrapLimitBytes   = 100
	ExplicitSelector      = "-"
	DefaultEnvironmentTag = "dev"
)
