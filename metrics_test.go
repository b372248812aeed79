package neon

import (
	"testing"
	"time"
)

func TestMetricsInitialState(t *testing.T) {
	m := NewMetrics()
	snap := m.Snapshot()
	if snap.DispatchOps != 0 {
		t.Errorf("Expected 0 initial dispatch ops, got %d", snap.DispatchOps)
	}
}

func TestMetricsRecordDispatch(t *testing.T) {
	m := NewMetrics()

	m.RecordDispatch(1_000_000) // 1ms
	m.RecordDispatch(2_000_000) // 2ms

	snap := m.Snapshot()
	if snap.DispatchOps != 2 {
		t.Errorf("Expected 2 dispatch ops, got %d", snap.DispatchOps)
	}

	expectedAvgNs := uint64(1_500_000)
	if snap.AvgLatencyNs != expectedAvgNs {
		t.Errorf("Expected avg latency %d ns, got %d ns", expectedAvgNs, snap.AvgLatencyNs)
	}
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.RecordReclaim()
	m.RecordReclaim()
	m.RecordDeferred()
	m.RecordTimerFire()
	m.RecordSendFailure()
	m.RecordPoolExhaustion()

	snap := m.Snapshot()
	if snap.ReclaimOps != 2 {
		t.Errorf("Expected 2 reclaim ops, got %d", snap.ReclaimOps)
	}
	if snap.DeferredOps != 1 {
		t.Errorf("Expected 1 deferred op, got %d", snap.DeferredOps)
	}
	if snap.TimerFires != 1 {
		t.Errorf("Expected 1 timer fire, got %d", snap.TimerFires)
	}
	if snap.SendFailures != 1 {
		t.Errorf("Expected 1 send failure, got %d", snap.SendFailures)
	}
	if snap.PoolExhausted != 1 {
		t.Errorf("Expected 1 pool exhaustion, got %d", snap.PoolExhausted)
	}
}

func TestMetricsUptime(t *testing.T) {
	m := NewMetrics()

	time.Sleep(10 * time.Millisecond)
	snap := m.Snapshot()
	if snap.UptimeNs < 10*1_000_000 {
		t.Errorf("Expected uptime >= 10ms, got %d ns", snap.UptimeNs)
	}

	m.Stop()
	time.Sleep(5 * time.Millisecond)
	snap2 := m.Snapshot()
	if snap2.UptimeNs > snap.UptimeNs+2*1_000_000 {
		t.Errorf("Uptime increased too much after stop: %d -> %d", snap.UptimeNs, snap2.UptimeNs)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()

	m.RecordDispatch(1_000_000)
	m.RecordReclaim()

	snap := m.Snapshot()
	if snap.DispatchOps == 0 {
		t.Error("Expected some operations before reset")
	}

	m.Reset()

	snap = m.Snapshot()
	if snap.DispatchOps != 0 {
		t.Errorf("Expected 0 dispatch ops after reset, got %d", snap.DispatchOps)
	}
	if snap.ReclaimOps != 0 {
		t.Errorf("Expected 0 reclaim ops after reset, got %d", snap.ReclaimOps)
	}
}

func TestObserverImplementations(t *testing.T) {
	observer := &NoOpObserver{}
	observer.ObserveDispatch("epa", 1000)
	observer.ObserveDeferred("epa")
	observer.ObserveReclaim()
	observer.ObserveSendFailure("epa")
	observer.ObserveTimerFire()
	observer.ObservePoolExhaustion()

	m := NewMetrics()
	metricsObserver := NewMetricsObserver(m)

	metricsObserver.ObserveDispatch("epa", 1_000_000)
	metricsObserver.ObserveReclaim()

	snap := m.Snapshot()
	if snap.DispatchOps != 1 {
		t.Errorf("Expected 1 dispatch op from observer, got %d", snap.DispatchOps)
	}
	if snap.ReclaimOps != 1 {
		t.Errorf("Expected 1 reclaim op from observer, got %d", snap.ReclaimOps)
	}
}

func TestMetricsHistogramPercentiles(t *testing.T) {
	m := NewMetrics()

	for i := 0; i < 50; i++ {
		m.RecordDispatch(500) // 500ns
	}
	for i := 0; i < 49; i++ {
		m.RecordDispatch(5_000_000) // 5ms
	}
	m.RecordDispatch(50_000_000) // 50ms, the slowest sample

	snap := m.Snapshot()
	if snap.DispatchOps != 100 {
		t.Errorf("Expected 100 total dispatch ops, got %d", snap.DispatchOps)
	}

	if snap.LatencyP50Ns < 500 || snap.LatencyP50Ns > 1_000_000 {
		t.Errorf("Expected P50 in 500ns-1ms range, got %d ns", snap.LatencyP50Ns)
	}
	if snap.LatencyP99Ns < 5_000_000 || snap.LatencyP99Ns > 100_000_000 {
		t.Errorf("Expected P99 in 5ms-100ms range, got %d ns", snap.LatencyP99Ns)
	}

	var totalInBuckets uint64
	for _, c := range snap.LatencyHistogram {
		totalInBuckets += c
	}
	if totalInBuckets == 0 {
		t.Error("Expected histogram buckets to be populated")
	}
}
