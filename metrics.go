package neon

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the dispatch-latency histogram buckets in
// nanoseconds, reused verbatim in shape from the teacher's I/O latency
// buckets (logarithmic spacing, 1us to 10s covers both an I/O round trip
// and a dispatch step comfortably).
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// Metrics tracks kernel-wide operational statistics: dispatch throughput,
// event reclamation, deferred redispatch, timer fires, and pool exhaustion.
type Metrics struct {
	DispatchOps    atomic.Uint64
	ReclaimOps     atomic.Uint64
	DeferredOps    atomic.Uint64
	TimerFires     atomic.Uint64
	SendFailures   atomic.Uint64
	PoolExhausted  atomic.Uint64

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64

	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a new metrics instance, stamping the kernel's start
// time.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordDispatch records one scheduler dispatch step and its wall-clock
// latency.
func (m *Metrics) RecordDispatch(latencyNs uint64) {
	m.DispatchOps.Add(1)
	m.recordLatency(latencyNs)
}

// RecordReclaim records one event reclaimed back to its origin allocator.
func (m *Metrics) RecordReclaim() {
	m.ReclaimOps.Add(1)
}

// RecordDeferred records one event re-queued via the Deferred action.
func (m *Metrics) RecordDeferred() {
	m.DeferredOps.Add(1)
}

// RecordTimerFire records one virtual-timer callback invocation.
func (m *Metrics) RecordTimerFire() {
	m.TimerFires.Add(1)
}

// RecordSendFailure records a send that failed (NoMemory or NoReference).
func (m *Metrics) RecordSendFailure() {
	m.SendFailures.Add(1)
}

// RecordPoolExhaustion records an allocation that failed because every
// candidate allocator returned nil.
func (m *Metrics) RecordPoolExhaustion() {
	m.PoolExhausted.Add(1)
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the kernel as stopped, fixing uptime calculations.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time copy of Metrics, safe to read without
// further synchronization.
type MetricsSnapshot struct {
	DispatchOps   uint64
	ReclaimOps    uint64
	DeferredOps   uint64
	TimerFires    uint64
	SendFailures  uint64
	PoolExhausted uint64

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64
}

// Snapshot takes a point-in-time copy of every counter plus derived
// statistics (average/percentile latency, uptime).
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		DispatchOps:   m.DispatchOps.Load(),
		ReclaimOps:    m.ReclaimOps.Load(),
		DeferredOps:   m.DeferredOps.Load(),
		TimerFires:    m.TimerFires.Load(),
		SendFailures:  m.SendFailures.Load(),
		PoolExhausted: m.PoolExhausted.Load(),
	}

	totalLatencyNs := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile
// (0.0-1.0) by linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}
	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}
	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset zeroes every counter, useful between test cases.
func (m *Metrics) Reset() {
	m.DispatchOps.Store(0)
	m.ReclaimOps.Store(0)
	m.DeferredOps.Store(0)
	m.TimerFires.Store(0)
	m.SendFailures.Store(0)
	m.PoolExhausted.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer is the kernel's pluggable metrics-collection interface. It also
// satisfies internal/epa.Observer, so a *MetricsObserver can be handed
// straight to epa.NewScheduler.
type Observer interface {
	ObserveDispatch(epaName string, latencyNs uint64)
	ObserveDeferred(epaName string)
	ObserveReclaim()
	ObserveSendFailure(epaName string)
	ObserveTimerFire()
	ObservePoolExhaustion()
}

// NoOpObserver discards every observation.
type NoOpObserver struct{}

func (NoOpObserver) ObserveDispatch(string, uint64) {}
func (NoOpObserver) ObserveDeferred(string)         {}
func (NoOpObserver) ObserveReclaim()                {}
func (NoOpObserver) ObserveSendFailure(string)      {}
func (NoOpObserver) ObserveTimerFire()              {}
func (NoOpObserver) ObservePoolExhaustion()         {}

// MetricsObserver implements Observer by recording into a *Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver wraps m as an Observer.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveDispatch(_ string, latencyNs uint64) {
	o.metrics.RecordDispatch(latencyNs)
}
func (o *MetricsObserver) ObserveDeferred(string) { o.metrics.RecordDeferred() }
func (o *MetricsObserver) ObserveReclaim()        { o.metrics.RecordReclaim() }
func (o *MetricsObserver) ObserveSendFailure(string) {
	o.metrics.RecordSendFailure()
}
func (o *MetricsObserver) ObserveTimerFire()      { o.metrics.RecordTimerFire() }
func (o *MetricsObserver) ObservePoolExhaustion() { o.metrics.RecordPoolExhaustion() }

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
