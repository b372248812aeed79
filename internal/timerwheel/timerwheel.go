// Package timerwheel implements the virtual timer wheel: a sentinel-
// anchored, relative-delta ordered linked list of one-shot or repeating
// timers, advanced one tick at a time by the core-timer ISR. This follows
// original_source/source/timer.c's insert_timer/remove_timer/
// ncore_timer_isr algorithm exactly, including firing callbacks only after
// a repeating timer has been re-armed.
package timerwheel

import (
	"math"
	"time"

	"github.com/nradulovic-go/neon/internal/biaslist"
)

// Attr selects one-shot vs. repeating behavior, mirroring NTIMER_ATTR_*.
type Attr uint8

const (
	OneShot Attr = 0
	Repeat  Attr = 1 << iota
)

// Timer is one node on the wheel. rtick is the number of ticks remaining
// relative to the *previous* node (not absolute); itick is the reload
// value for repeating timers, zero for one-shot.
type Timer struct {
	node  biaslist.Node
	rtick uint32
	itick uint32
	fn    func(arg interface{})
	arg   interface{}
}

// NewTimer returns an idle (unarmed) timer.
func NewTimer() *Timer {
	return &Timer{}
}

// Wheel holds the sentinel that anchors every armed timer. All methods
// whose name ends in I require the caller to already hold the kernel's
// critical section, matching the original's `_i` convention.
type Wheel struct {
	list biaslist.List
}

// New returns an empty wheel.
func New() *Wheel {
	w := &Wheel{}
	w.list.Init()
	return w
}

func (w *Wheel) timerOf(n *biaslist.Node) *Timer {
	return n.Owner.(*Timer)
}

func (w *Wheel) insert(t *Timer) {
	cur := w.list.Sentinel().Next()
	for cur != w.list.Sentinel() && w.timerOf(cur).rtick <= t.rtick {
		t.rtick -= w.timerOf(cur).rtick
		cur = cur.Next()
	}
	biaslist.AddBefore(cur, &t.node)
	if cur != w.list.Sentinel() {
		w.timerOf(cur).rtick -= t.rtick
	}
}

func (w *Wheel) remove(t *Timer) {
	biaslist.Remove(&t.node)
}

// StartI arms timer to fire on the ticks-th TickISR from now (and, with
// Repeat, every ticks TickISRs after that). A timer armed for the same
// absolute expiry as one already on the wheel fires after it.
func (w *Wheel) StartI(t *Timer, ticks uint32, fn func(arg interface{}), arg interface{}, attr Attr) {
	if ticks == 0 {
		panic("timerwheel: StartI requires ticks > 0")
	}
	if w.IsRunningI(t) {
		panic("timerwheel: StartI on an already-armed timer")
	}
	t.node.Owner = t
	t.fn = fn
	t.arg = arg
	t.rtick = ticks
	if attr&Repeat != 0 {
		t.itick = ticks
	} else {
		t.itick = 0
	}
	w.insert(t)
}

// CancelI disarms timer if it is running; a no-op otherwise. If the timer
// had a successor, its rtick absorbs the canceled timer's remaining delta
// so the chain's absolute expiries stay correct.
func (w *Wheel) CancelI(t *Timer) {
	if !w.IsRunningI(t) {
		return
	}
	if next := t.node.Next(); next != w.list.Sentinel() {
		w.timerOf(next).rtick += t.rtick
	}
	w.remove(t)
}

// IsRunningI reports whether t is currently armed.
func (w *Wheel) IsRunningI(t *Timer) bool {
	return biaslist.Linked(&t.node)
}

// RemainingI returns the absolute number of ticks until t fires, zero if
// not armed.
func (w *Wheel) RemainingI(t *Timer) uint32 {
	if !w.IsRunningI(t) {
		return 0
	}
	var remaining uint32
	n := &t.node
	for {
		remaining += w.timerOf(n).rtick
		if n.Prev() == w.list.Sentinel() {
			break
		}
		n = n.Prev()
	}
	return remaining
}

// TickISR advances the wheel by one tick: decrements the first node's
// rtick, and for every node that reaches zero, removes it, re-arms it if
// repeating, and only then invokes its callback — so a callback that
// cancels or restarts itself observes consistent wheel state.
func (w *Wheel) TickISR() {
	if w.list.IsEmpty() {
		return
	}
	cur := w.list.Sentinel().Next()
	w.timerOf(cur).rtick--

	for w.timerOf(cur).rtick == 0 {
		t := w.timerOf(cur)
		w.remove(t)
		if t.itick != 0 {
			t.rtick = t.itick
			w.insert(t)
		}
		next := w.list.Sentinel().Next()
		t.fn(t.arg)
		cur = next
		if w.list.IsEmpty() {
			return
		}
	}
}

// Seconds converts a duration to a tick count at the given core timer
// event frequency, the Go analogue of NTIMER_SEC.
func Seconds(d time.Duration, eventFreqHz uint32) uint32 {
	return ticksFor(d, eventFreqHz, time.Second)
}

// Millis is the NTIMER_MS analogue.
func Millis(d time.Duration, eventFreqHz uint32) uint32 {
	return ticksFor(d, eventFreqHz, time.Millisecond)
}

// Micros is the NTIMER_US analogue.
func Micros(d time.Duration, eventFreqHz uint32) uint32 {
	return ticksFor(d, eventFreqHz, time.Microsecond)
}

func ticksFor(d time.Duration, eventFreqHz uint32, unit time.Duration) uint32 {
	ticks := float64(d) / float64(unit) * float64(eventFreqHz)
	return uint32(math.Ceil(ticks))
}
