// Package monitor tracks gateway performance: adapter round-trip latency
// and operation counters, surfaced on the metrics endpoint.
package monitor

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics aggregates counters and the latency histograms.
type Metrics struct {
	AdapterLatency *LatencyHistogram
	APILatency     *LatencyHistogram

	submitted uint64
	rejected  uint64
	cancelled uint64
	finalized uint64
	exhausted uint64 // pool-exhausted rejections
	apiCalls  uint64
	apiErrors uint64
}

// NewMetrics creates a metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{
		AdapterLatency: NewLatencyHistogram(1000),
		APILatency:     NewLatencyHistogram(1000),
	}
}

func (m *Metrics) IncSubmitted() { atomic.AddUint64(&m.submitted, 1) }
func (m *Metrics) IncRejected()  { atomic.AddUint64(&m.rejected, 1) }
func (m *Metrics) IncCancelled() { atomic.AddUint64(&m.cancelled, 1) }
func (m *Metrics) IncFinalized() { atomic.AddUint64(&m.finalized, 1) }
func (m *Metrics) IncExhausted() { atomic.AddUint64(&m.exhausted, 1) }
func (m *Metrics) IncAPI()       { atomic.AddUint64(&m.apiCalls, 1) }
func (m *Metrics) IncAPIErrors() { atomic.AddUint64(&m.apiErrors, 1) }

// Snapshot is the JSON view returned by the metrics endpoint.
type Snapshot struct {
	Submitted      uint64       `json:"submitted"`
	Rejected       uint64       `json:"rejected"`
	Cancelled      uint64       `json:"cancelled"`
	Finalized      uint64       `json:"finalized"`
	PoolExhausted  uint64       `json:"pool_exhausted"`
	APICalls       uint64       `json:"api_calls"`
	APIErrors      uint64       `json:"api_errors"`
	AdapterLatency LatencyStats `json:"adapter_latency_ms"`
	APILatency     LatencyStats `json:"api_latency_ms"`
}

// Snapshot returns current counter values and latency stats.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Submitted:      atomic.LoadUint64(&m.submitted),
		Rejected:       atomic.LoadUint64(&m.rejected),
		Cancelled:      atomic.LoadUint64(&m.cancelled),
		Finalized:      atomic.LoadUint64(&m.finalized),
		PoolExhausted:  atomic.LoadUint64(&m.exhausted),
		APICalls:       atomic.LoadUint64(&m.apiCalls),
		APIErrors:      atomic.LoadUint64(&m.apiErrors),
		AdapterLatency: m.AdapterLatency.Stats(),
		APILatency:     m.APILatency.Stats(),
	}
}

// LatencyHistogram tracks latency samples with a sliding window and lazy
// stats computation.
type LatencyHistogram struct {
	mu          sync.Mutex
	samples     []float64
	maxSize     int
	dirty       bool
	cachedStats LatencyStats
}

// NewLatencyHistogram creates a sliding window histogram.
func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{
		samples: make([]float64, 0, size),
		maxSize: size,
		dirty:   true,
	}
}

// RecordDuration adds a latency sample.
func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.samples) >= h.maxSize {
		h.samples = h.samples[1:]
	}
	h.samples = append(h.samples, float64(d.Nanoseconds())/1e6)
	h.dirty = true
}

// LatencyStats holds computed latency statistics in milliseconds.
type LatencyStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}

// Stats returns min, max, avg, p50, p95, p99. Recomputes only when samples
// changed since the last call.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty && h.cachedStats.Count > 0 {
		return h.cachedStats
	}
	n := len(h.samples)
	if n == 0 {
		return LatencyStats{}
	}

	sorted := make([]float64, n)
	copy(sorted, h.samples)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	h.cachedStats = LatencyStats{
		Min:   sorted[0],
		Max:   sorted[n-1],
		Avg:   sum / float64(n),
		P50:   sorted[n/2],
		P95:   sorted[int(float64(n)*0.95)],
		P99:   sorted[int(float64(n)*0.99)],
		Count: n,
	}
	h.dirty = false
	return h.cachedStats
}
