// Package evtimer implements the event timer: a (timer, epa, event id)
// triple that posts a zero-payload event into its owning EPA's queue on
// expiry. Grounded on original_source/include/eds/etimer.h, composed from
// internal/timerwheel and internal/epa.
package evtimer

import (
	"github.com/nradulovic-go/neon/internal/epa"
	"github.com/nradulovic-go/neon/internal/event"
	"github.com/nradulovic-go/neon/internal/timerwheel"
)

// Timer binds a wheel timer to a target EPA and a pre-reserved event,
// reused on every fire so the callback — which runs inside the critical
// section as the timer ISR's tail — only does O(1) work: no allocation,
// just a ref bump and an enqueue.
type Timer struct {
	inner  *timerwheel.Timer
	wheel  *timerwheel.Wheel
	sched  *epa.Scheduler
	target *epa.EPA
	ev     *event.Header
}

// New creates an event timer targeting target, allocating and reserving a
// single zero-payload event tagged id from registry up front.
func New(wheel *timerwheel.Wheel, sched *epa.Scheduler, target *epa.EPA, registry *event.Registry, id uint16) (*Timer, event.Code) {
	ev, code := registry.CreateI(event.HeaderSize, id)
	if code != event.CodeNone {
		return nil, code
	}
	ev.ReserveI()
	return &Timer{
		inner:  timerwheel.NewTimer(),
		wheel:  wheel,
		sched:  sched,
		target: target,
		ev:     ev,
	}, event.CodeNone
}

// After arms a one-shot timer: fires exactly once after ticks ticks.
func (t *Timer) After(ticks uint32) {
	t.wheel.StartI(t.inner, ticks, t.fire, nil, timerwheel.OneShot)
}

// Every arms a repeating timer: fires every ticks ticks until Cancel.
func (t *Timer) Every(ticks uint32) {
	t.wheel.StartI(t.inner, ticks, t.fire, nil, timerwheel.Repeat)
}

// Cancel disarms the timer; a no-op if it isn't running.
func (t *Timer) Cancel() {
	t.wheel.CancelI(t.inner)
}

// IsRunning reports whether the timer is currently armed.
func (t *Timer) IsRunning() bool {
	return t.wheel.IsRunningI(t.inner)
}

// Remaining returns the absolute ticks until the timer next fires.
func (t *Timer) Remaining() uint32 {
	return t.wheel.RemainingI(t.inner)
}

// fire is the wheel callback: it sends the pre-reserved event into target
// via the LIFO path (timer events jump the queue, per spec.md §9's "two
// queue put orders" note) without changing the EPA's priority. A send
// failure (full queue) is silently dropped here, matching spec.md §4.H's
// "timer callbacks may send events; a send failure there is silently
// dropped (no retry queue)".
func (t *Timer) fire(arg interface{}) {
	_ = t.sched.SendLIFO(t.target, t.ev)
}
