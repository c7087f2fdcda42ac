// Package ringdelay implements the ring-delay/timing engine of
// spec.md §4.3: per-port propagation sampling, S-0-1015 derivation, and
// UC-channel window timing.
package ringdelay

import (
	"time"

	"github.com/sercos3/csmd/topology"
)

// Accumulator is the per-port cumulative-sum/min/max/average sample set
// (spec.md §3 RingDelay), reset whenever address scan restarts.
type Accumulator struct {
	sum   int64
	count int
	min   int64
	max   int64
}

// NewAccumulator returns a reset accumulator.
func NewAccumulator() *Accumulator {
	a := &Accumulator{}
	a.Reset()
	return a
}

// Reset zeroes sum/count and resets min to +inf, max to 0 (spec.md §3).
func (a *Accumulator) Reset() {
	a.sum = 0
	a.count = 0
	a.min = int64(^uint64(0) >> 1)
	a.max = 0
}

// MaxMeasurements is NBR_OF_RD_MEASUREMENTS, the compile-time cap on
// samples per port (spec.md §4.3).
const MaxMeasurements = 32

// Sample adds one raw measurement (already reduced by the fixed
// TNCT-vs-Sercos-cycle offset by the caller). Samples equal to zero are
// ignored, and no more than MaxMeasurements are accumulated.
func (a *Accumulator) Sample(raw int64) {
	if raw == 0 || a.count >= MaxMeasurements {
		return
	}
	a.sum += raw
	a.count++
	if raw < a.min {
		a.min = raw
	}
	if raw > a.max {
		a.max = raw
	}
}

// Average returns the arithmetic mean of accumulated samples, or 0 if
// none were taken.
func (a *Accumulator) Average() int64 {
	if a.count == 0 {
		return 0
	}
	return a.sum / int64(a.count)
}

func (a *Accumulator) Count() int { return a.count }
func (a *Accumulator) Min() int64 {
	if a.count == 0 {
		return 0
	}
	return a.min
}
func (a *Accumulator) Max() int64 { return a.max }

// Strategy selects which ring-delay calculation strategy is in effect
// (spec.md §4.3).
type Strategy int

const (
	// StrategyA is the "specification 1.3.2 stable-reference" strategy:
	// TSref is derived once and preserved across phase progressions.
	StrategyA Strategy = iota
	// StrategyB is the classic strategy: TSref is recomputed each
	// phase change from averaged port delays.
	StrategyB
)

// Result is the derived ring-delay output: TSref plus the per-port
// S-0-1015 values.
type Result struct {
	TSref      int64
	S0_1015_P1 int64
	S0_1015_P2 int64
	Diagnostic Diagnostic
}

// Diagnostic flags a non-fatal fallback taken during derivation.
type Diagnostic int

const (
	DiagNone Diagnostic = iota
	DiagUnsupportedTopologyFallback
)

// Engine computes ring-delay results per spec.md §4.3.
type Engine struct {
	Strategy Strategy

	tsrefLocked bool
	tsref       int64
}

// NewEngine returns an engine using the given strategy.
func NewEngine(s Strategy) *Engine {
	return &Engine{Strategy: s}
}

// ExtraDelay aggregates per-slave jitter plus a hot-plug reserve
// (spec.md §4.3: "extraDelay incorporates each projected slave's
// jitter plus a hot-plug reserve").
func ExtraDelay(perSlaveJitter []int64, hotPlugReserve int64) int64 {
	var sum int64
	for _, j := range perSlaveJitter {
		sum += j
	}
	return sum + hotPlugReserve
}

// Derive computes the ring-delay Result for the given topology from the
// accumulated port averages, recognized-slave count n, and extraDelay.
func (e *Engine) Derive(topo topology.Topology, avgP1, avgP2 int64, n int, extraDelay int64) Result {
	switch topo {
	case topology.Ring:
		return e.deriveRing(avgP1, avgP2, n, extraDelay)
	case topology.LineP1:
		return e.deriveLine(avgP1, extraDelay, true)
	case topology.LineP2:
		return e.deriveLine(avgP2, extraDelay, false)
	case topology.BrokenRing, topology.DefectRingPrimary, topology.DefectRingSecondary:
		return e.deriveBrokenOrDefect(avgP1, avgP2, extraDelay)
	default:
		// Unsupported-topology fallback (spec.md §9 Open Question):
		// use max(avgP1, avgP2) and flag a diagnostic rather than
		// failing the phase transition outright.
		avg := avgP1
		if avgP2 > avg {
			avg = avgP2
		}
		ts := e.resolveTSref(avg, extraDelay)
		return Result{
			TSref:      ts,
			S0_1015_P1: 2*ts - avgP1,
			S0_1015_P2: 2*ts - avgP2,
			Diagnostic: DiagUnsupportedTopologyFallback,
		}
	}
}

// resolveTSref applies Strategy A/B selection: under Strategy A, TSref
// is computed once from the first successful window and then reused;
// under Strategy B it is recomputed every call.
func (e *Engine) resolveTSref(avgForRef int64, extraDelay int64) int64 {
	if e.Strategy == StrategyA && e.tsrefLocked {
		return e.tsref
	}
	ts := avgForRef + extraDelay/2
	if e.Strategy == StrategyA {
		e.tsref = ts
		e.tsrefLocked = true
	}
	return ts
}

func (e *Engine) deriveRing(avgP1, avgP2 int64, n int, extraDelay int64) Result {
	maxAvg := avgP1
	if avgP2 > maxAvg {
		maxAvg = avgP2
	}
	var base int64
	if n+1 > 0 {
		base = (maxAvg / int64(n+1)) * int64(2*n)
	}
	ts := e.resolveTSref(base+extraDelay/2, 0)
	return Result{
		TSref:      ts,
		S0_1015_P1: 2*ts - avgP1,
		S0_1015_P2: 2*ts - avgP2,
	}
}

// deriveLine handles LineP1/LineP2: only one port carries traffic, so
// S-0-1015 for the inactive port is zero.
func (e *Engine) deriveLine(avg int64, extraDelay int64, isP1 bool) Result {
	ts := e.resolveTSref(avg/2+extraDelay/2, 0)
	r := Result{TSref: ts}
	if isP1 {
		r.S0_1015_P1 = 2*ts - avg
	} else {
		r.S0_1015_P2 = 2*ts - avg
	}
	return r
}

// deriveBrokenOrDefect handles BrokenRing/DefectRing: both ports carry
// independent one-way traffic to the break point, so each port's
// S-0-1015 derives from its own average against a shared TSref.
func (e *Engine) deriveBrokenOrDefect(avgP1, avgP2 int64, extraDelay int64) Result {
	maxAvg := avgP1
	if avgP2 > maxAvg {
		maxAvg = avgP2
	}
	ts := e.resolveTSref(maxAvg/2+extraDelay/2, 0)
	return Result{
		TSref:      ts,
		S0_1015_P1: 2*ts - avgP1,
		S0_1015_P2: 2*ts - avgP2,
	}
}

// quarterMicrosecond is the 250 ns truncation unit applied to all
// UC-channel timing outputs (spec.md §4.3).
const quarterMicrosecond = 250 * time.Nanosecond

func truncate250ns(d time.Duration) time.Duration {
	return d - d%quarterMicrosecond
}
