package runtimehost

import (
	"fmt"
	"runtime/debug"
)

// Guard wraps every callout into user code the collector makes
// (tp_finalize, tp_clear, weakref callbacks, registered GC callbacks)
// so a panic or error in that code can never propagate out of a
// collection in progress (spec §7). It ports the teacher's
// app/panichandler.Recover / RecoverWithCallback pair combined with
// app/paniclogger's side-channel log file, generalized from an
// HTTP-handler recover site to an arbitrary callout site.
type Guard struct {
	Hook UnraisableHook
}

// NewGuard constructs a Guard reporting through hook. If hook is nil,
// a SlogUnraisableHook over the default logger is used.
func NewGuard(hook UnraisableHook) *Guard {
	if hook == nil {
		hook = NewSlogUnraisableHook(nil)
	}
	return &Guard{Hook: hook}
}

// Call runs fn under panic recovery in the named context (e.g.
// "finalize:Type", "clear:Type", "weakref-callback"). A panic is
// recorded to the side-channel panic log and reported to the
// UnraisableHook; fn's returned error, if any, is reported to the
// UnraisableHook directly. Call itself never panics and never returns
// an error — there is nowhere left for either to go.
func (g *Guard) Call(context string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			LogPanic(context, r, stack)
			g.Hook.Unraisable(context, fmt.Errorf("panic in %s: %v", context, r))
		}
	}()

	if err := fn(); err != nil {
		g.Hook.Unraisable(context, err)
	}
}

// CallVoid is Call for callouts that cannot themselves return an
// error (e.g. a weakref callback), only panic.
func (g *Guard) CallVoid(context string, fn func()) {
	g.Call(context, func() error {
		fn()
		return nil
	})
}
