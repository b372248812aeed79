// Package epa implements the Event Processing Agent and the cooperative
// run-to-completion scheduler loop that dispatches them: priority-0 is
// permanently reserved for an idle thread whose dispatch function calls
// the port's Idle, eliminating the empty-run-queue special case per
// spec.md §4.B/§4.H. Grounded on original_source/src/epa.c
// (epaSendEventI, epaFetchEventI) and the teacher's Runner.ioLoop
// run-to-completion shape.
package epa

import (
	"fmt"
	"time"

	"github.com/nradulovic-go/neon/internal/biaslist"
	"github.com/nradulovic-go/neon/internal/equeue"
	"github.com/nradulovic-go/neon/internal/event"
	"github.com/nradulovic-go/neon/internal/hsm"
	"github.com/nradulovic-go/neon/internal/port"
	"github.com/nradulovic-go/neon/internal/prioq"
)

// Observer receives scheduler lifecycle signals for metrics, kept as a
// narrow interface here (rather than importing the root package's
// *Metrics directly) to avoid an import cycle between internal/epa and
// the root package that constructs it.
type Observer interface {
	ObserveDispatch(epaName string, latencyNs uint64)
	ObserveDeferred(epaName string)
	ObserveReclaim()
	ObserveSendFailure(epaName string)
}

type noopObserver struct{}

func (noopObserver) ObserveDispatch(string, uint64) {}
func (noopObserver) ObserveDeferred(string)         {}
func (noopObserver) ObserveReclaim()                {}
func (noopObserver) ObserveSendFailure(string)      {}

// EPA binds a state machine to a bounded event queue and a schedulable
// thread record (a biaslist.Node used directly as the priority-queue
// entry). ref tracks the "runnable" refcount: 1 iff the queue is
// non-empty, 0 otherwise (this port uses a single event source per EPA,
// so ref is binary rather than a general counter).
type EPA struct {
	Name     string
	Priority int

	node  biaslist.Node
	queue *equeue.Queue
	ref   int

	Machine *hsm.Machine
}

// New constructs an EPA. priority must be >= 1; priority 0 is reserved for
// the scheduler's idle thread.
func New(name string, priority, capacity int, machine *hsm.Machine) *EPA {
	if priority < 1 {
		panic("epa: priority 0 is reserved for the idle thread")
	}
	e := &EPA{Name: name, Priority: priority, queue: equeue.New(capacity), Machine: machine}
	e.node.Owner = e
	return e
}

// Ref reports the EPA's current runnable refcount (0 or 1 in this port).
func (e *EPA) Ref() int { return e.ref }

// QueueLen returns the number of events currently queued.
func (e *EPA) QueueLen() int { return e.queue.Len() }

// Scheduler is the single-threaded cooperative dispatcher: exactly one
// dispatch is in flight at any time, driven by the port's critical
// section.
type Scheduler struct {
	q        *prioq.Queue
	port     *port.Port
	refLimit uint16
	observer Observer

	idle    *EPA
	idleNode biaslist.Node
}

// NewScheduler builds a scheduler over bucketCount/priorityCount matching
// the kernel's configured run queue shape, and permanently seats the idle
// thread at priority 0.
func NewScheduler(p *port.Port, bucketCount, priorityCount int, refLimit uint16, observer Observer) *Scheduler {
	if observer == nil {
		observer = noopObserver{}
	}
	s := &Scheduler{
		q:        prioq.New(bucketCount, priorityCount),
		port:     p,
		refLimit: refLimit,
		observer: observer,
	}
	s.idleNode.Owner = &idleMarker
	s.q.Insert(&s.idleNode, 0)
	return s
}

// idleMarker is a sentinel *EPA-shaped value used only to tag the idle
// node; its fields are never read.
var idleMarker = EPA{Name: "idle", Priority: 0}

// Register adds e to the scheduler. e starts with an empty queue and is
// not inserted into the run queue until its first event arrives.
func (s *Scheduler) Register(e *EPA) error {
	if e.Priority <= 0 {
		return fmt.Errorf("epa: %q has invalid priority %d", e.Name, e.Priority)
	}
	return nil
}

// SendFIFO enqueues ev at the tail of e's queue (the normal send path).
func (s *Scheduler) SendFIFO(e *EPA, ev *event.Header) event.Code {
	return s.send(e, ev, false)
}

// SendLIFO enqueues ev at the head of e's queue, used by event timers that
// must jump ahead without disturbing priority.
func (s *Scheduler) SendLIFO(e *EPA, ev *event.Header) event.Code {
	return s.send(e, ev, true)
}

func (s *Scheduler) send(e *EPA, ev *event.Header, lifo bool) event.Code {
	lock := s.port.EnterCritical()
	defer s.port.ExitCritical(lock)

	if code := ev.RefUpI(s.refLimit); code != event.CodeNone {
		s.observer.ObserveSendFailure(e.Name)
		return code
	}

	var ok bool
	if lifo {
		ok = e.queue.PutLIFO(ev)
	} else {
		ok = e.queue.PutFIFO(ev)
	}
	if !ok {
		ev.RefDownI()
		ev.MaybeDestroyI()
		s.observer.ObserveSendFailure(e.Name)
		return event.CodeNoMemory
	}

	if e.queue.Len() == 1 {
		e.ref++
		s.q.Insert(&e.node, e.Priority)
	}
	s.port.Notify()
	return event.CodeNone
}

// RunOnce performs one dispatch step: peek the highest-priority runnable
// thread, rotate it for round-robin fairness, fetch one event, drop the
// lock, run the state-machine dispatch outside the lock, then reconcile
// the reference count. It returns false only when the idle thread ran.
func (s *Scheduler) RunOnce() bool {
	lock := s.port.EnterCritical()
	s.port.DrainTicks()
	node := s.q.Peek()
	s.q.Rotate(node)

	if node.Owner == &idleMarker {
		s.port.ExitCritical(lock)
		s.port.Idle()
		return false
	}

	e := node.Owner.(*EPA)
	ev := e.queue.Get().(*event.Header)
	if e.queue.IsEmpty() {
		e.ref--
		s.q.Remove(&e.node)
	}
	s.port.ExitCritical(lock)

	start := time.Now()
	deferred := e.Machine.Dispatch(hsm.Event{Signal: hsm.Signal(ev.ID()), Payload: ev})
	s.observer.ObserveDispatch(e.Name, uint64(time.Since(start).Nanoseconds()))

	if deferred {
		s.observer.ObserveDeferred(e.Name)
		lock2 := s.port.EnterCritical()
		if e.queue.PutLIFO(ev) && e.queue.Len() == 1 {
			e.ref++
			s.q.Insert(&e.node, e.Priority)
		}
		s.port.ExitCritical(lock2)
		return true
	}

	lock2 := s.port.EnterCritical()
	ev.RefDownI()
	reclaimed := !ev.IsConstant() && ev.Ref() == 0 && !ev.IsReserved()
	ev.MaybeDestroyI()
	if reclaimed {
		s.observer.ObserveReclaim()
	}
	s.port.ExitCritical(lock2)
	return true
}

// Run drives RunOnce in a loop until stop is closed. It is meant to be the
// body of the scheduler's single thread of execution.
func (s *Scheduler) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
			s.RunOnce()
		}
	}
}
