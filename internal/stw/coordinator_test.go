package stw

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesperlang/cyclegc/internal/threadstate"
)

func TestStopTheWorld_ParksOtherThreadsOnly(t *testing.T) {
	threads := threadstate.NewList()
	c := New(threads)

	caller := threads.Register()
	caller.Attach()
	other := threads.Register()
	other.Attach()

	done := make(chan struct{})
	go func() {
		for {
			other.CheckSafepoint()
			select {
			case <-done:
				return
			default:
			}
			time.Sleep(time.Millisecond)
		}
	}()
	defer close(done)

	c.StopTheWorld(caller)
	require.True(t, c.Stopped())

	assert.Eventually(t, func() bool {
		return other.Status() == threadstate.GCParked
	}, time.Second, time.Millisecond, "expected the other thread to park")
	assert.Equal(t, threadstate.Attached, caller.Status(), "the calling thread is never parked")

	c.StartTheWorld(caller)
	assert.False(t, c.Stopped())
	assert.Eventually(t, func() bool {
		return other.Status() == threadstate.Attached
	}, time.Second, time.Millisecond, "expected the other thread to resume")
}

func TestStopTheWorld_ReentrantNesting(t *testing.T) {
	threads := threadstate.NewList()
	c := New(threads)
	caller := threads.Register()

	c.StopTheWorld(caller)
	c.StopTheWorld(caller) // nested call from the same owner
	assert.True(t, c.Stopped())

	c.StartTheWorld(caller) // inner: nesting drops to 1, still stopped
	assert.True(t, c.Stopped())

	c.StartTheWorld(caller) // outer: nesting reaches 0
	assert.False(t, c.Stopped())
}

func TestStopTheWorld_DetachedThreadParksRemotely(t *testing.T) {
	threads := threadstate.NewList()
	c := New(threads)
	caller := threads.Register()
	other := threads.Register() // stays Detached

	c.StopTheWorld(caller)
	assert.Equal(t, threadstate.GCParked, other.Status())
	c.StartTheWorld(caller)
	assert.Equal(t, threadstate.Detached, other.Status())
}

func TestStopTheWorld_DeadThreadRaceResolves(t *testing.T) {
	threads := threadstate.NewList()
	c := New(threads)
	caller := threads.Register()
	other := threads.Register()
	other.Attach()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(5 * time.Millisecond)
		threads.Unregister(other) // simulates the thread exiting mid-wait
	}()

	done := make(chan struct{})
	go func() {
		c.StopTheWorld(caller)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("StopTheWorld never returned; dead-thread race was not resolved")
	}
	wg.Wait()
	c.StartTheWorld(caller)
}

func TestStopTheWorld_NonOwnerStartIsIgnored(t *testing.T) {
	threads := threadstate.NewList()
	c := New(threads)
	owner := threads.Register()
	bystander := threads.Register()

	c.StopTheWorld(owner)
	c.StartTheWorld(bystander) // not the owner: must be a no-op
	assert.True(t, c.Stopped())

	c.StartTheWorld(owner)
	assert.False(t, c.Stopped())
}
