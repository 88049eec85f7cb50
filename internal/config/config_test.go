package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {

	t.Run("defaults when unset", func(t *testing.T) {
		os.Unsetenv(envScale)
		os.Unsetenv(envInitialThreshold)
		os.Unsetenv(envPanicLogDir)

		cfg := Load("")

		assert.Equal(t, int64(defaultScalePercent), cfg.ScalePercent)
		assert.Equal(t, int64(defaultThreshold), cfg.InitialThreshold)
		assert.NotEmpty(t, cfg.PanicLogDir)
	})

	t.Run("reads GC_SCALE and GC_INITIAL_THRESHOLD", func(t *testing.T) {
		t.Setenv(envScale, "25")
		t.Setenv(envInitialThreshold, "0")

		cfg := Load("")

		assert.Equal(t, int64(25), cfg.ScalePercent)
		assert.Equal(t, int64(0), cfg.InitialThreshold, "zero threshold is preserved, not defaulted away")
	})

	t.Run("ignores malformed values", func(t *testing.T) {
		t.Setenv(envScale, "not-a-number")

		cfg := Load("")

		assert.Equal(t, int64(defaultScalePercent), cfg.ScalePercent)
	})

}
