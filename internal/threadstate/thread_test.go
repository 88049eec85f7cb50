package threadstate

import (
	"testing"
	"time"
)

func TestThread_AttachDetach(t *testing.T) {
	l := NewList()
	th := l.Register()

	if th.Status() != Detached {
		t.Fatalf("expected Detached after Register, got %v", th.Status())
	}

	th.Attach()
	if th.Status() != Attached {
		t.Fatalf("expected Attached, got %v", th.Status())
	}

	th.Detach()
	if th.Status() != Detached {
		t.Fatalf("expected Detached, got %v", th.Status())
	}
}

func TestThread_CantStopGuard(t *testing.T) {
	l := NewList()
	th := l.Register()

	if th.CantStop() {
		t.Fatal("expected no cant-stop guard initially")
	}

	th.EnterCantStop()
	th.EnterCantStop()
	if !th.CantStop() {
		t.Fatal("expected cant-stop guard held")
	}
	th.ExitCantStop()
	if !th.CantStop() {
		t.Fatal("expected cant-stop guard still held after one exit (nested)")
	}
	th.ExitCantStop()
	if th.CantStop() {
		t.Fatal("expected cant-stop guard released")
	}
}

func TestThread_TryParkRemote(t *testing.T) {
	l := NewList()
	th := l.Register() // starts Detached

	if !th.TryParkRemote() {
		t.Fatal("expected TryParkRemote to succeed on a Detached thread")
	}
	if th.Status() != GCParked {
		t.Fatalf("expected GCParked, got %v", th.Status())
	}

	th.Release()
	if th.Status() != Detached {
		t.Fatalf("expected Detached after Release, got %v", th.Status())
	}
}

func TestThread_TryParkRemoteBlockedByCantStop(t *testing.T) {
	l := NewList()
	th := l.Register()
	th.EnterCantStop()

	if th.TryParkRemote() {
		t.Fatal("expected TryParkRemote to fail while cant-stop is held")
	}
	if th.Status() != Detached {
		t.Fatalf("expected status unchanged, got %v", th.Status())
	}
}

func TestThread_CheckSafepoint(t *testing.T) {
	l := NewList()
	th := l.Register()
	th.Attach()

	var parked bool
	th.SetOnParked(func(*Thread) { parked = true })
	th.RequestSelfPark()

	done := make(chan struct{})
	go func() {
		th.CheckSafepoint() // blocks until Released
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if th.Status() == GCParked {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if th.Status() != GCParked {
		t.Fatal("expected thread to self-park at the safe point")
	}
	if !parked {
		t.Error("expected onParked hook to have fired")
	}

	th.Release()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("CheckSafepoint did not return after Release")
	}
	if th.Status() != Attached {
		t.Fatalf("expected Attached after release, got %v", th.Status())
	}
}

func TestThread_AttachWhileGCParkedRetries(t *testing.T) {
	l := NewList()
	th := l.Register()
	if !th.TryParkRemote() {
		t.Fatal("setup: expected park to succeed")
	}

	done := make(chan struct{})
	go func() {
		th.Attach() // should block until Released, then succeed
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("Attach returned before the thread was released")
	default:
	}

	th.Release()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Attach did not return after Release")
	}
	if th.Status() != Attached {
		t.Fatalf("expected Attached, got %v", th.Status())
	}
}

func TestList_RegisterUnregister(t *testing.T) {
	l := NewList()
	a := l.Register()
	b := l.Register()

	if l.Len() != 2 {
		t.Fatalf("expected 2 registered threads, got %d", l.Len())
	}
	if a.ID == b.ID {
		t.Fatal("expected distinct thread ids")
	}

	if !l.Unregister(a) {
		t.Fatal("expected Unregister(a) to report found")
	}
	if l.Len() != 1 {
		t.Fatalf("expected 1 remaining thread, got %d", l.Len())
	}
	if l.Unregister(a) {
		t.Fatal("expected second Unregister(a) to report not found")
	}
}

func TestList_UnregisterFiresOnParkedForWaitingSTW(t *testing.T) {
	l := NewList()
	th := l.Register()
	th.Attach()

	notified := make(chan struct{}, 1)
	th.SetOnParked(func(*Thread) {
		select {
		case notified <- struct{}{}:
		default:
		}
	})

	l.Unregister(th)

	select {
	case <-notified:
	case <-time.After(time.Second):
		t.Fatal("expected onParked to fire when an awaited thread is unregistered mid-wait")
	}
}
