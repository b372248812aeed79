package neon

import "sync"

// MockObserver is a call-counting Observer for tests, in the style of the
// teacher's MockBackend: every Observe* method is tracked so a test can
// assert exactly what the scheduler reported without wiring a full
// *Metrics.
type MockObserver struct {
	mu sync.Mutex

	dispatchCalls      int
	deferredCalls      int
	reclaimCalls       int
	sendFailureCalls   int
	timerFireCalls     int
	poolExhaustedCalls int

	lastDispatchEPA     string
	lastDispatchLatency uint64
	lastDeferredEPA     string
	lastSendFailureEPA  string
}

// NewMockObserver returns a zeroed MockObserver ready for use.
func NewMockObserver() *MockObserver {
	return &MockObserver{}
}

func (m *MockObserver) ObserveDispatch(epaName string, latencyNs uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatchCalls++
	m.lastDispatchEPA = epaName
	m.lastDispatchLatency = latencyNs
}

func (m *MockObserver) ObserveDeferred(epaName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deferredCalls++
	m.lastDeferredEPA = epaName
}

func (m *MockObserver) ObserveReclaim() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reclaimCalls++
}

func (m *MockObserver) ObserveSendFailure(epaName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendFailureCalls++
	m.lastSendFailureEPA = epaName
}

func (m *MockObserver) ObserveTimerFire() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timerFireCalls++
}

func (m *MockObserver) ObservePoolExhaustion() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.poolExhaustedCalls++
}

// CallCounts returns a snapshot of how many times each Observe* method
// has fired.
func (m *MockObserver) CallCounts() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]int{
		"dispatch":       m.dispatchCalls,
		"deferred":       m.deferredCalls,
		"reclaim":        m.reclaimCalls,
		"send_failure":   m.sendFailureCalls,
		"timer_fire":     m.timerFireCalls,
		"pool_exhausted": m.poolExhaustedCalls,
	}
}

// LastDispatch returns the EPA name and latency from the most recent
// ObserveDispatch call.
func (m *MockObserver) LastDispatch() (epaName string, latencyNs uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastDispatchEPA, m.lastDispatchLatency
}

// Reset zeroes every counter.
func (m *MockObserver) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatchCalls = 0
	m.deferredCalls = 0
	m.reclaimCalls = 0
	m.sendFailureCalls = 0
	m.timerFireCalls = 0
	m.poolExhaustedCalls = 0
	m.lastDispatchEPA = ""
	m.lastDispatchLatency = 0
	m.lastDeferredEPA = ""
	m.lastSendFailureEPA = ""
}

var _ Observer = (*MockObserver)(nil)
