// Package config handles GrandCypher CLI configuration via environment
// variables.
//
// All variables are prefixed GRANDCYPHER_. GRAPH, DATA_DIR and FORMAT supply
// the defaults of the matching CLI flags, so a flag set on the command line
// wins over the environment; LOG_LEVEL has no flag of its own (--verbose
// raises it to debug). Configuration is loaded
// with LoadFromEnv() and validated with Validate() before use.
//
// Environment Variables:
//   - GRANDCYPHER_GRAPH: default snapshot path for the query command
//   - GRANDCYPHER_DATA_DIR: BadgerDB data directory for persistent graphs
//   - GRANDCYPHER_FORMAT: default output format ("table" or "json")
//   - GRANDCYPHER_LOG_LEVEL: logrus level name ("debug", "info", "warn", ...)
//
// Example Usage:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
package config

import (
	"fmt"
	"os"
	"strings"
)

// Output formats accepted by the CLI.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// Config holds CLI configuration loaded from environment variables.
type Config struct {
	// GraphPath is the default snapshot file for the query command.
	GraphPath string

	// DataDir is the BadgerDB directory for persistent host graphs.
	DataDir string

	// Format is the default output format: "table" or "json".
	Format string

	// LogLevel is the logrus level name.
	LogLevel string
}

// LoadFromEnv creates a Config from GRANDCYPHER_* environment variables,
// applying defaults for anything unset.
func LoadFromEnv() *Config {
	return &Config{
		GraphPath: getEnv("GRANDCYPHER_GRAPH", ""),
		DataDir:   getEnv("GRANDCYPHER_DATA_DIR", ""),
		Format:    getEnv("GRANDCYPHER_FORMAT", FormatTable),
		LogLevel:  getEnv("GRANDCYPHER_LOG_LEVEL", "warn"),
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Format) {
	case FormatTable, FormatJSON:
	default:
		return fmt.Errorf("invalid format %q: must be %q or %q", c.Format, FormatTable, FormatJSON)
	}
	switch strings.ToLower(c.LogLevel) {
	case "panic", "fatal", "error", "warn", "warning", "info", "debug", "trace":
	default:
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
