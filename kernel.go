// Package neon implements an embedded, cooperatively-scheduled, event-driven
// kernel: bounded-queue Event Processing Agents dispatching through
// hierarchical state machines, driven by an O(1) bucketed priority scheduler
// and a virtual timer wheel, all serialized behind one critical section.
package neon

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nradulovic-go/neon/internal/config"
	"github.com/nradulovic-go/neon/internal/epa"
	"github.com/nradulovic-go/neon/internal/event"
	"github.com/nradulovic-go/neon/internal/evtimer"
	"github.com/nradulovic-go/neon/internal/hsm"
	"github.com/nradulovic-go/neon/internal/logging"
	"github.com/nradulovic-go/neon/internal/memproto"
	"github.com/nradulovic-go/neon/internal/port"
	"github.com/nradulovic-go/neon/internal/timerwheel"
)

// Kernel is the running instance: a port (critical section + tick source), a
// scheduler of registered EPAs, an event pool registry, and a timer wheel.
// The original's boot order is port, then memory objects, then event pool
// registration, then EPAs. New builds the port; the order of the
// RegisterPool/SetFallback and Spawn calls after it is up to the caller
// and is not checked.
type Kernel struct {
	// ID uniquely identifies this kernel instance, so logs and metrics from
	// multiple kernels running in the same process (e.g. in tests) can be
	// told apart.
	ID uuid.UUID

	config *config.KernelConfig

	port     *port.Port
	sched    *epa.Scheduler
	registry *event.Registry
	wheel    *timerwheel.Wheel

	metrics  *Metrics
	observer Observer
	logger   *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	stop   chan struct{}
	started bool
}

// Options contains additional options for kernel creation.
type Options struct {
	// Context for cancellation (if nil, uses context.Background())
	Context context.Context

	// Config overrides the kernel's compile-time constants (if nil, uses
	// config.DefaultConfig()).
	Config *config.KernelConfig

	// Logger for debug/info messages (if nil, uses logging.Default()).
	Logger *logging.Logger

	// Observer for metrics collection (if nil, uses a *MetricsObserver
	// wrapping a fresh *Metrics).
	Observer Observer
}

// New constructs a Kernel: it pins the port's critical section, builds the
// scheduler's run queue to the configured bucket/priority shape, and seats
// an empty event pool registry. No EPA is runnable yet — call RegisterPool
// (and SetFallback) to give the registry somewhere to allocate from, then
// Spawn to add EPAs, before calling Run.
func New(options *Options) (*Kernel, error) {
	if options == nil {
		options = &Options{}
	}

	cfg := options.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapError("neon.New", err)
	}

	ctx := options.Context
	if ctx == nil {
		ctx = context.Background()
	}

	logger := options.Logger
	if logger == nil {
		logger = logging.Default()
	}

	var metrics *Metrics
	observer := options.Observer
	if observer == nil {
		metrics = NewMetrics()
		observer = NewMetricsObserver(metrics)
	}

	p := port.New()
	sched := epa.NewScheduler(p, cfg.BucketCount, cfg.PriorityLevels, cfg.RefLimit, observer)
	registry := event.NewRegistry(cfg.MaxPools)
	wheel := timerwheel.New()

	k := &Kernel{
		ID:       uuid.New(),
		config:   cfg,
		port:     p,
		sched:    sched,
		registry: registry,
		wheel:    wheel,
		metrics:  metrics,
		observer: observer,
		logger:   logger,
		stop:     make(chan struct{}),
	}
	k.ctx, k.cancel = context.WithCancel(ctx)

	logger.Info("kernel initialized",
		"id", k.ID,
		"priority_levels", cfg.PriorityLevels,
		"bucket_count", cfg.BucketCount,
		"core_timer_event_freq", cfg.CoreTimerEventFreq)

	return k, nil
}

// RegisterPool adds mo to the event pool registry, sorted by block size.
// Returns CodeNoResource wrapped as an error if MaxPools is already reached.
func (k *Kernel) RegisterPool(mo memproto.MemoryObject) error {
	return errFromEventCode("neon.RegisterPool", k.registry.RegisterPool(mo))
}

// UnregisterPool removes mo from the event pool registry.
func (k *Kernel) UnregisterPool(mo memproto.MemoryObject) {
	k.registry.UnregisterPool(mo)
}

// SetFallback installs the allocator used when no registered pool's block
// size fits a Create request (typically a Heap or Libc allocator).
func (k *Kernel) SetFallback(mo memproto.MemoryObject) {
	k.registry.SetFallback(mo)
}

// Spawn registers a new EPA named name at priority (>= 1), backed by a
// bounded queue of capacity slots and driven by an HSM seated at initial.
// The machine's entry/init cascade into initial runs immediately, before
// the EPA can receive its first event.
func (k *Kernel) Spawn(name string, priority, capacity int, wspace interface{}, initial hsm.State) (*epa.EPA, error) {
	return k.spawn(name, priority, capacity, hsm.New(wspace, initial), initial)
}

// SpawnFSM is Spawn's flat-dispatch counterpart: the EPA's states are
// dispatched with no hierarchy (vf_dispatch's FSM variant), so Super is
// treated like Ignored and states need not declare a parent.
func (k *Kernel) SpawnFSM(name string, priority, capacity int, wspace interface{}, initial hsm.State) (*epa.EPA, error) {
	return k.spawn(name, priority, capacity, hsm.NewFSM(wspace, initial), initial)
}

func (k *Kernel) spawn(name string, priority, capacity int, machine *hsm.Machine, initial hsm.State) (*epa.EPA, error) {
	machine.InitialTransition(initial)

	e := epa.New(name, priority, capacity, machine)
	if err := k.sched.Register(e); err != nil {
		return nil, WrapError("neon.Spawn", err)
	}
	k.logger.Debug("epa spawned", "name", name, "priority", priority, "capacity", capacity)
	return e, nil
}

// CreateEvent allocates a dynamic event of at least size bytes tagged id
// from the registry. The id is not checked; it is dispatched as
// hsm.Signal(id), so ids below hsm.SigUser arrive as the HSM's
// entry/exit/init/empty pseudo-signals.
func (k *Kernel) CreateEvent(size int, id uint16) (*event.Header, error) {
	ev, code := k.registry.CreateI(size, id)
	return ev, errFromEventCode("neon.CreateEvent", code)
}

// NewConstantEvent wraps block as a ref-count-exempt constant event, never
// reclaimed by the core.
func (k *Kernel) NewConstantEvent(id uint16, block []byte) *event.Header {
	return event.NewConstant(id, block)
}

// SendFIFO enqueues ev at the tail of target's queue, the normal send path.
func (k *Kernel) SendFIFO(target *epa.EPA, ev *event.Header) error {
	return errFromEventCode("neon.SendFIFO", k.sched.SendFIFO(target, ev))
}

// SendLIFO enqueues ev at the head of target's queue, used by producers
// (like event timers) that must jump ahead of already-queued events without
// disturbing target's scheduling priority.
func (k *Kernel) SendLIFO(target *epa.EPA, ev *event.Header) error {
	return errFromEventCode("neon.SendLIFO", k.sched.SendLIFO(target, ev))
}

// NewEventTimer creates a timer bound to target that posts signal id into
// target's queue on every fire, pre-allocating and reserving the one event
// it reuses for every expiry.
func (k *Kernel) NewEventTimer(target *epa.EPA, id uint16) (*evtimer.Timer, error) {
	tm, code := evtimer.New(k.wheel, k.sched, target, k.registry, id)
	return tm, errFromEventCode("neon.NewEventTimer", code)
}

// Metrics returns the kernel's metrics instance, or nil if a custom
// Observer was supplied at construction instead of the default
// *MetricsObserver.
func (k *Kernel) Metrics() *Metrics {
	return k.metrics
}

// MetricsSnapshot returns a point-in-time snapshot of kernel metrics.
func (k *Kernel) MetricsSnapshot() MetricsSnapshot {
	if k.metrics == nil {
		return MetricsSnapshot{}
	}
	return k.metrics.Snapshot()
}

// KernelState represents the current lifecycle state of a Kernel.
type KernelState string

const (
	KernelStateCreated KernelState = "created"
	KernelStateRunning KernelState = "running"
	KernelStateStopped KernelState = "stopped"
)

// State returns the kernel's current lifecycle state.
func (k *Kernel) State() KernelState {
	if k == nil {
		return KernelStateStopped
	}
	if !k.started {
		return KernelStateCreated
	}
	select {
	case <-k.ctx.Done():
		return KernelStateStopped
	default:
		return KernelStateRunning
	}
}

// IsRunning returns true if the kernel's scheduler loop is active.
func (k *Kernel) IsRunning() bool {
	return k.State() == KernelStateRunning
}

// Run pins the scheduler to its OS thread, installs the core timer tick
// (which drives the timer wheel once per configured CoreTimerEventFreq),
// and drives RunOnce in a loop until the kernel's context is cancelled or
// Stop is called. It blocks; callers typically run it in its own goroutine.
//
// Example:
//
//	k, err := neon.New(nil)
//	e, _ := k.Spawn("worker", 1, 16, nil, initialState)
//	go k.Run()
//	k.SendFIFO(e, ev)
//	...
//	k.Stop()
func (k *Kernel) Run() error {
	if k.started {
		return NewError("neon.Run", CodeOpAbort, "kernel already running")
	}
	k.started = true

	k.port.Pin()
	k.port.InstallTick(k.config.CoreTimerEventFreq, func() {
		k.wheel.TickISR()
	})
	defer k.port.StopTick()

	go func() {
		select {
		case <-k.ctx.Done():
			close(k.stop)
			k.port.Notify()
		case <-k.stop:
		}
	}()

	k.logger.Info("kernel run loop starting")
	k.sched.Run(k.stop)
	k.logger.Info("kernel run loop stopped")
	return nil
}

// Stop cancels the kernel's context and waits briefly for the run loop to
// observe it, marking metrics as stopped.
func (k *Kernel) Stop() error {
	if k.cancel != nil {
		k.cancel()
	}
	if k.metrics != nil {
		k.metrics.Stop()
	}
	// Give the run loop's watcher goroutine a moment to close stop and wake
	// an idling scheduler before the caller tears down EPAs.
	time.Sleep(5 * time.Millisecond)
	k.started = false
	return nil
}

// KernelInfo contains comprehensive information about a running Kernel.
type KernelInfo struct {
	ID                 uuid.UUID   `json:"id"`
	State              KernelState `json:"state"`
	PriorityLevels     int         `json:"priority_levels"`
	BucketCount        int         `json:"bucket_count"`
	CoreTimerEventFreq uint32      `json:"core_timer_event_freq"`
	Running            bool        `json:"running"`
}

// Info returns comprehensive information about the kernel.
func (k *Kernel) Info() KernelInfo {
	if k == nil {
		return KernelInfo{}
	}
	state := k.State()
	return KernelInfo{
		ID:                 k.ID,
		State:              state,
		PriorityLevels:     k.config.PriorityLevels,
		BucketCount:        k.config.BucketCount,
		CoreTimerEventFreq: k.config.CoreTimerEventFreq,
		Running:            state == KernelStateRunning,
	}
}
