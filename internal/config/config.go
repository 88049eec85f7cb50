// Package config loads the collector's environment-tunable policy
// (spec §6: "Environment variable GC_SCALE ... overrides the
// percentage scale"), following the teacher's own settings idiom: a
// typed struct built by a constructor rather than package-level
// globals (app/core/settings).
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	envScale             = "GC_SCALE"
	envInitialThreshold  = "GC_INITIAL_THRESHOLD"
	envPanicLogDir       = "GC_PANIC_LOG_DIR"
	defaultScalePercent  = 0
	defaultThreshold     = 7000
)

// Config is the collector's startup policy.
type Config struct {
	// ScalePercent feeds the threshold-update formula (spec §4.4.10):
	// max(7000, live*(100+scale)/100).
	ScalePercent int64
	// InitialThreshold seeds the raw threshold before any collection
	// has run. Zero is a valid, deliberate value (spec §9: collects on
	// every allocation, does not disable collection).
	InitialThreshold int64
	// PanicLogDir is where internal/runtimehost writes its side-channel
	// panic log.
	PanicLogDir string
}

// Load builds a Config from the environment, optionally preceded by a
// .env file at envFile (empty skips the file entirely; a missing file
// is not an error, mirroring godotenv.Load's own tolerance for an
// optional, not-required file).
func Load(envFile string) Config {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	}

	cfg := Config{
		ScalePercent:     defaultScalePercent,
		InitialThreshold: defaultThreshold,
		PanicLogDir:      os.TempDir(),
	}

	if v, ok := os.LookupEnv(envScale); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.ScalePercent = n
		}
	}
	if v, ok := os.LookupEnv(envInitialThreshold); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.InitialThreshold = n
		}
	}
	if v, ok := os.LookupEnv(envPanicLogDir); ok && v != "" {
		cfg.PanicLogDir = v
	}

	return cfg
}
