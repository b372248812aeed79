package port

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCriticalSectionNesting(t *testing.T) {
	p := New()
	p.Pin() // recursive re-entry is keyed on OS thread identity; pin so it's stable
	assert.False(t, p.IsLockHeld())

	outer := p.EnterCritical()
	assert.True(t, p.IsLockHeld())
	inner := p.EnterCritical()
	assert.True(t, p.IsLockHeld())

	p.ExitCritical(inner)
	assert.True(t, p.IsLockHeld(), "still held after inner exit")
	p.ExitCritical(outer)
	assert.False(t, p.IsLockHeld())
}

func TestEnterCriticalBlocksOtherGoroutines(t *testing.T) {
	p := New()
	p.Pin()
	lock := p.EnterCritical()

	acquired := make(chan struct{})
	go func() {
		l := p.EnterCritical()
		close(acquired)
		p.ExitCritical(l)
	}()

	select {
	case <-acquired:
		t.Fatal("a second goroutine acquired the critical section while the first still held it")
	case <-time.After(50 * time.Millisecond):
	}

	p.ExitCritical(lock)

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("the second goroutine never acquired the critical section after release")
	}
}

func TestLog2Exp2(t *testing.T) {
	cases := []struct {
		v    uint32
		want uint8
	}{
		{1, 0}, {2, 1}, {3, 1}, {4, 2}, {1023, 9}, {1024, 10},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Log2(c.v))
		assert.Equal(t, uint32(1)<<c.want, Exp2(c.want))
	}
}

func TestTickDeliversToHook(t *testing.T) {
	p := New()
	fired := make(chan struct{}, 1)
	p.InstallTick(1000, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	defer p.StopTick()

	// tickLoop only counts ticks; the hook runs when the critical-section
	// owner drains them, mirroring how Scheduler.RunOnce calls DrainTicks.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		lock := p.EnterCritical()
		p.DrainTicks()
		p.ExitCritical(lock)

		select {
		case <-fired:
			return
		default:
			time.Sleep(time.Millisecond)
		}
	}
	t.Fatal("tick hook never fired")
}

func TestIdleWakesOnNotify(t *testing.T) {
	p := New()
	done := make(chan struct{})
	go func() {
		p.Idle()
		close(done)
	}()
	p.Notify()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Idle did not return after Notify")
	}
}
