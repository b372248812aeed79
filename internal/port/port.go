// Package port is the hosted (POSIX) port facade: the critical section,
// core-timer tick delivery, idle wait, and the log2/exp2 primitives the
// bitmap-based priority queue needs. On bare metal these map to an
// interrupt-priority mask and hardware CLZ; hosted mode maps them to a
// recursive mutex, a signal block, and bits.LeadingZeros32.
package port

import (
	"math/bits"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// Port owns the single global critical section and the core-timer ticker.
// There is exactly one mutating dispatch in flight at any time; Port makes
// that explicit instead of relying on goroutine scheduling accidents.
//
// ownerTID is the OS thread ID currently holding mu, 0 when unheld. A
// recursive mutex must key re-entrancy on the thread that actually holds
// the lock, not merely on whether depth is nonzero — two different
// goroutines can both observe depth > 0 at once, and only one of them
// actually holds mu. tickLoop runs on its own goroutine, so it cannot be
// allowed to free-ride on the scheduler's depth count; it never calls
// EnterCritical at all (see DrainTicks).
type Port struct {
	mu       sync.Mutex
	ownerTID int32 // atomic
	depth    int   // nesting depth, valid only while ownerTID's goroutine holds mu

	tickHook     func()
	ticker       *time.Ticker
	stopTick     chan struct{}
	pendingTicks atomic.Uint32

	idleCh chan struct{}
}

// New returns an unstarted Port. Pin must be called once from the goroutine
// that will run the scheduler loop before any critical-section call.
func New() *Port {
	return &Port{
		idleCh: make(chan struct{}, 1),
	}
}

// Pin locks the calling goroutine to its OS thread for the lifetime of the
// process, the same "one thread of execution" guarantee the teacher's
// ioLoop gets from runtime.LockOSThread before touching io_uring state.
// It also blocks the delivery of asynchronous OS signals to this thread so
// a stray SIGALRM/SIGIO can't interrupt a held critical section.
func (p *Port) Pin() {
	runtime.LockOSThread()
	var set unix.Sigset_t
	unix.Sigemptyset(&set)
	unix.Sigaddset(&set, int(unix.SIGALRM))
	unix.Sigaddset(&set, int(unix.SIGIO))
	_ = unix.PthreadSigmask(unix.SIG_BLOCK, &set, nil)
}

// Lock is a critical-section token returned by EnterCritical and consumed
// by ExitCritical; it exists so call sites read like the original's
// `ncore_lock sys_lock` stack-local pattern instead of a bare bool.
type Lock struct {
	acquired bool
}

// EnterCritical enters the global critical section, nesting correctly: a
// second EnterCritical from the goroutine that already holds mu is a no-op
// other than depth bookkeeping. A call from any other goroutine blocks on
// mu like a normal lock, even if depth is currently nonzero for the
// holder — depth alone can never answer "do I already hold this lock",
// only the OS thread ID can.
func (p *Port) EnterCritical() Lock {
	tid := int32(unix.Gettid())
	if atomic.LoadInt32(&p.ownerTID) == tid {
		p.depth++
		return Lock{acquired: true}
	}
	p.mu.Lock()
	atomic.StoreInt32(&p.ownerTID, tid)
	p.depth = 1
	return Lock{acquired: true}
}

// ExitCritical leaves the critical section entered by the matching
// EnterCritical, unlocking only when the nesting depth returns to zero.
func (p *Port) ExitCritical(l Lock) {
	if !l.acquired {
		return
	}
	p.depth--
	if p.depth == 0 {
		atomic.StoreInt32(&p.ownerTID, 0)
		p.mu.Unlock()
	}
}

// IsLockHeld is the debug predicate every `_i` (in-critical-section)
// routine in the core asserts on entry.
func (p *Port) IsLockHeld() bool {
	return p.depth > 0
}

// Log2 returns floor(log2(v)), used to map a bitmap word to the index of
// its highest set bit in O(1) (hardware CLZ on bare metal).
func Log2(v uint32) uint8 {
	if v == 0 {
		return 0
	}
	return uint8(31 - bits.LeadingZeros32(v))
}

// Exp2 returns 2^n.
func Exp2(n uint8) uint32 {
	return uint32(1) << n
}

// InstallTick starts the core-timer ISR: hook is invoked once per tick
// inside the critical section, at the configured event frequency. This
// models the port calling `ncore_timer_isr` from its hardware timer IRQ.
func (p *Port) InstallTick(eventFreqHz uint32, hook func()) {
	p.tickHook = hook
	interval := time.Second / time.Duration(eventFreqHz)
	p.ticker = time.NewTicker(interval)
	p.stopTick = make(chan struct{})
	go p.tickLoop()
}

// tickLoop only counts elapsed ticks and wakes the scheduler; it never
// enters the critical section itself, so the scheduler goroutine remains
// the only goroutine that ever mutates kernel state under mu. The tick
// hook itself runs later, from DrainTicks, inside the scheduler's own
// critical section.
func (p *Port) tickLoop() {
	for {
		select {
		case <-p.ticker.C:
			p.pendingTicks.Add(1)
			p.wake()
		case <-p.stopTick:
			return
		}
	}
}

// DrainTicks invokes the installed tick hook once for every tick that has
// accumulated since the last call. The caller must already hold the
// critical section (IsLockHeld); this is what lets the hook mutate the
// timer wheel and run queue without racing tickLoop, which never touches
// either directly.
func (p *Port) DrainTicks() {
	if !p.IsLockHeld() {
		panic("port: DrainTicks called outside the critical section")
	}
	n := p.pendingTicks.Swap(0)
	for i := uint32(0); i < n; i++ {
		if p.tickHook != nil {
			p.tickHook()
		}
	}
}

// StopTick halts the tick delivery goroutine started by InstallTick.
func (p *Port) StopTick() {
	if p.ticker != nil {
		p.ticker.Stop()
	}
	if p.stopTick != nil {
		close(p.stopTick)
	}
}

// wake signals Idle's waiter that an interrupt-equivalent event occurred.
func (p *Port) wake() {
	select {
	case p.idleCh <- struct{}{}:
	default:
	}
}

// Notify lets non-timer producers (e.g. an external goroutine sending an
// event) wake an idling scheduler loop the same way a tick does.
func (p *Port) Notify() {
	p.wake()
}

// Idle is called by the scheduler loop when only the idle thread is
// runnable; it must not return until at least one interrupt-equivalent
// event (tick or external notify) has been serviced.
func (p *Port) Idle() {
	<-p.idleCh
}
