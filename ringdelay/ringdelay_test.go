package ringdelay

import (
	"testing"
	"time"

	"github.com/sercos3/csmd/topology"
)

func TestAccumulatorIgnoresZeroSamples(t *testing.T) {
	a := NewAccumulator()
	a.Sample(0)
	a.Sample(10)
	a.Sample(20)
	if a.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", a.Count())
	}
	if a.Average() != 15 {
		t.Errorf("Average() = %d, want 15", a.Average())
	}
	if a.Min() != 10 || a.Max() != 20 {
		t.Errorf("Min/Max = %d/%d, want 10/20", a.Min(), a.Max())
	}
}

func TestAccumulatorResetClearsMinMax(t *testing.T) {
	a := NewAccumulator()
	a.Sample(5)
	a.Reset()
	if a.Count() != 0 || a.Average() != 0 {
		t.Errorf("expected reset accumulator to be empty")
	}
}

func TestEngineStrategyALocksTSref(t *testing.T) {
	e := NewEngine(StrategyA)
	r1 := e.Derive(topology.Ring, 100, 100, 3, 0)
	r2 := e.Derive(topology.Ring, 500, 500, 3, 0)
	if r1.TSref != r2.TSref {
		t.Errorf("Strategy A TSref changed across calls: %d vs %d", r1.TSref, r2.TSref)
	}
}

func TestEngineStrategyBRecomputesTSref(t *testing.T) {
	e := NewEngine(StrategyB)
	r1 := e.Derive(topology.Ring, 100, 100, 3, 0)
	r2 := e.Derive(topology.Ring, 500, 500, 3, 0)
	if r1.TSref == r2.TSref {
		t.Errorf("Strategy B should recompute TSref each call")
	}
}

func TestEngineUnsupportedTopologyFallback(t *testing.T) {
	e := NewEngine(StrategyB)
	r := e.Derive(topology.NoLink, 100, 200, 2, 0)
	if r.Diagnostic != DiagUnsupportedTopologyFallback {
		t.Errorf("expected fallback diagnostic for NoLink topology")
	}
}

func TestComputeWindowMethod1(t *testing.T) {
	w := ComputeWindow(UCModeMethod1, false, 1*time.Millisecond, 100*time.Microsecond, 0)
	wantT1 := (100*time.Microsecond + JitterConstant)
	wantT1 = truncate250ns(wantT1)
	if w.T1 != wantT1 {
		t.Errorf("T1 = %v, want %v", w.T1, wantT1)
	}
	if w.T1%quarterMicrosecond != 0 {
		t.Errorf("T1 not truncated to 250ns multiple: %v", w.T1)
	}
}

func TestComputeWindowFixedDistinguishesTelegramCount(t *testing.T) {
	w2 := ComputeWindow(UCModeFixed, false, time.Millisecond, 0, 0)
	w4 := ComputeWindow(UCModeFixed, true, time.Millisecond, 0, 0)
	if w2 == w4 {
		t.Errorf("fixed-mode window should differ between 2 and 4 telegram counts")
	}
}
