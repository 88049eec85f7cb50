package objmodel

// weakrefType is shared by every Weakref instance. Weakrefs are
// themselves GC-managed objects so that a cycle passing through a
// weakref (weakref -> callback closure -> referent -> ... -> weakref)
// is still detected by the normal traversal (spec §4.4.6 step 2).
var weakrefType = &TypeDescriptor{
	Name: "weakref",
	Traverse: func(obj Object, visit VisitFunc, arg any) int {
		w := obj.(*Weakref)
		if w.Referent == nil {
			return 0
		}
		return visit(w.Referent, arg)
	},
}

// Weakref is a GC-tracked weak reference to a referent object. When the
// referent becomes unreachable, the collector detaches the weakref
// (Referent becomes nil) and, if a callback is registered, schedules it
// for execution only after the referent is already fully severed.
type Weakref struct {
	Header

	Referent Object
	Callback func(w *Weakref)
}

// NewWeakref constructs a weakref to referent and registers it on the
// referent's control list. referent's type must have
// SupportsWeakrefs == true.
func NewWeakref(referent Object, callback func(w *Weakref)) *Weakref {
	w := &Weakref{Referent: referent, Callback: callback}
	w.Init(weakrefType)
	referent.GCHeader().AddWeakref(w)
	return w
}

// GCHeader implements Object.
func (w *Weakref) GCHeader() *Header { return &w.Header }

// detach severs the referent pointer without firing the callback. Used
// both for ordinary clearing (spec §4.4.6 step 4) and for a weakref
// that is itself unreachable (step 3, "drop its callback silently").
func (w *Weakref) detach() {
	w.Referent = nil
}

// Detach severs the referent pointer without firing the callback. It is
// the collector-facing counterpart of detach, exported so internal/
// collector can sever a weakref during its clearing phase.
func (w *Weakref) Detach() { w.detach() }

// IsAlive reports whether the weakref still points at a live referent.
func (w *Weakref) IsAlive() bool { return w.Referent != nil }
