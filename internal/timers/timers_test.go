package timers

import (
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestArmFiresOnce(t *testing.T) {
	r := New()
	defer r.Stop()

	var fired atomic.Int32
	r.Arm(1, 10*time.Millisecond, func() { fired.Add(1) })
	waitFor(t, func() bool { return fired.Load() == 1 })
	waitFor(t, func() bool { return r.Pending() == 0 })
	time.Sleep(30 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("fired %d times", got)
	}
}

func TestArmReplacesPrevious(t *testing.T) {
	r := New()
	defer r.Stop()

	var first, second atomic.Int32
	r.Arm(7, 20*time.Millisecond, func() { first.Add(1) })
	r.Arm(7, 20*time.Millisecond, func() { second.Add(1) })
	if r.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", r.Pending())
	}
	waitFor(t, func() bool { return second.Load() == 1 })
	time.Sleep(40 * time.Millisecond)
	if first.Load() != 0 {
		t.Fatal("replaced timer must not fire")
	}
}

func TestCancel(t *testing.T) {
	r := New()
	defer r.Stop()

	var fired atomic.Int32
	r.Arm(3, 20*time.Millisecond, func() { fired.Add(1) })
	if !r.Cancel(3) {
		t.Fatal("expected pending timer")
	}
	if r.Cancel(3) {
		t.Fatal("second cancel must report nothing pending")
	}
	time.Sleep(50 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatal("cancelled timer fired")
	}
}

func TestAfterIsIndependentOfKeyedTimers(t *testing.T) {
	r := New()
	defer r.Stop()

	var delayed atomic.Int32
	r.After(10*time.Millisecond, func() { delayed.Add(1) })
	r.Arm(1, time.Hour, func() {})
	r.Cancel(1)
	waitFor(t, func() bool { return delayed.Load() == 1 })
}

func TestPanicInCallbackIsContained(t *testing.T) {
	r := New()
	defer r.Stop()

	var after atomic.Int32
	r.After(5*time.Millisecond, func() { panic("boom") })
	r.After(15*time.Millisecond, func() { after.Add(1) })
	waitFor(t, func() bool { return after.Load() == 1 })
}

func TestStopDropsPending(t *testing.T) {
	r := New()
	var fired atomic.Int32
	r.Arm(1, 20*time.Millisecond, func() { fired.Add(1) })
	r.After(20*time.Millisecond, func() { fired.Add(1) })
	r.Stop()
	if r.Pending() != 0 {
		t.Fatalf("pending after stop = %d", r.Pending())
	}
	r.Arm(2, time.Millisecond, func() { fired.Add(1) })
	time.Sleep(50 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatal("nothing may fire after Stop")
	}
}
