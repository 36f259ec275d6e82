// Package metrics turns bridge events into Prometheus series and smoothed
// throughput figures.
package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultTau is the smoothing time constant used everywhere throughput is shown
const DefaultTau = 5 * time.Second

// EWMA is an exponentially weighted moving average of a byte rate whose
// weight adapts to the sampling interval.
type EWMA struct {
	tau  float64
	rate float64
}

func NewEWMA(tau time.Duration) *EWMA {
	return &EWMA{tau: tau.Seconds()}
}

// Update folds in n bytes observed over dt and returns the smoothed bytes/s
func (e *EWMA) Update(n uint64, dt time.Duration) float64 {
	secs := max(dt.Seconds(), 1e-3)
	alpha := 1 - math.Exp(-secs/e.tau)
	inst := float64(n) / secs
	e.rate = e.rate*(1-alpha) + inst*alpha
	return e.rate
}

// Rate returns the last smoothed value
func (e *EWMA) Rate() float64 { return e.rate }

// Throughput counts bytes in both directions and samples smoothed rates.
// In is client to serial, Out is serial to clients. Counting is lock-free;
// Sample is meant for a single periodic caller.
type Throughput struct {
	in  atomic.Uint64
	out atomic.Uint64

	mu      sync.Mutex
	avgIn   *EWMA
	avgOut  *EWMA
	lastIn  uint64
	lastOut uint64
	last    time.Time
}

func NewThroughput(tau time.Duration) *Throughput {
	return &Throughput{
		avgIn:  NewEWMA(tau),
		avgOut: NewEWMA(tau),
		last:   time.Now(),
	}
}

func (t *Throughput) AddIn(n int)  { t.in.Add(uint64(n)) }
func (t *Throughput) AddOut(n int) { t.out.Add(uint64(n)) }

// Totals returns the raw byte counts
func (t *Throughput) Totals() (in, out uint64) {
	return t.in.Load(), t.out.Load()
}

// Sample updates both averages with what arrived since the previous sample
func (t *Throughput) Sample(now time.Time) (inBps, outBps float64) {
	in, out := t.Totals()

	t.mu.Lock()
	defer t.mu.Unlock()
	dt := now.Sub(t.last)
	inBps = t.avgIn.Update(in-t.lastIn, dt)
	outBps = t.avgOut.Update(out-t.lastOut, dt)
	t.lastIn, t.lastOut, t.last = in, out, now
	return inBps, outBps
}
