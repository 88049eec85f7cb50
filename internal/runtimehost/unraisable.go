// Package runtimehost stands in for the surrounding language runtime
// collaborators spec.md §1 places out of scope: the interpreter's
// exception machinery and unraisable-exception hook. The collector
// never lets user-code failure propagate out of it (spec §7); this
// package is where that failure actually lands.
package runtimehost

import (
	"log/slog"
)

// UnraisableHook receives errors the collector captured from user code
// (tp_finalize, tp_clear, weakref callbacks, registered GC callbacks)
// that cannot be allowed to propagate. It mirrors CPython's
// sys.unraisablehook, generalized to Go's error type.
type UnraisableHook interface {
	Unraisable(context string, err error)
}

// SlogUnraisableHook reports unraisable errors via log/slog, matching
// the teacher's own logging idiom (app/server/server/server.go,
// app/panichandler) rather than inventing a bespoke format.
type SlogUnraisableHook struct {
	Logger *slog.Logger
}

// NewSlogUnraisableHook constructs a hook over logger, or the default
// logger if nil.
func NewSlogUnraisableHook(logger *slog.Logger) *SlogUnraisableHook {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogUnraisableHook{Logger: logger}
}

// Unraisable logs the error with its context and never returns an
// error itself — there is nowhere left for a failure here to go.
func (h *SlogUnraisableHook) Unraisable(context string, err error) {
	h.Logger.Error("unraisable exception during collection",
		slog.String("context", context),
		slog.Any("error", err),
	)
}
