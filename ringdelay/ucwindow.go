package ringdelay

import "time"

// UCMode selects the UC-channel window calculation mode (spec.md §4.3).
type UCMode int

const (
	UCModeFixed UCMode = iota
	UCModeMethod1
	UCModeMethod2
	UCModeMethod1Var
)

// JitterConstant is the fixed master jitter constant J referenced
// throughout spec.md §4.3's UC-channel formulas.
const JitterConstant = 1 * time.Microsecond

// fixedWindow2Tel and fixedWindow4Tel hold the legacy compile-time {t1,t6,t7} constants,
// distinguished by 2-vs-4 telegram count (spec.md §4.3 mode "fixed").
var fixedWindow2Tel = Window{T1: 40 * time.Microsecond, T6: 80 * time.Microsecond, T7: 900 * time.Microsecond}
var fixedWindow4Tel = Window{T1: 60 * time.Microsecond, T6: 140 * time.Microsecond, T7: 900 * time.Microsecond}

// Window is the derived UC-channel timing triple.
type Window struct {
	T1 time.Duration
	T6 time.Duration
	T7 time.Duration
}

// BlockTime computes T_block = N * (mediaOverhead + byteTime *
// (maxDataBytes + IFG)), the per-telegram transmission time used by the
// window formulas (spec.md §4.3).
func BlockTime(n int, mediaOverhead, byteTimePerByte time.Duration, maxDataBytes, ifgBytes int) time.Duration {
	perTelegram := mediaOverhead + byteTimePerByte*time.Duration(maxDataBytes+ifgBytes)
	return perTelegram * time.Duration(n)
}

// ComputeWindow derives {t1,t6,t7} for the given mode, truncating every
// output to a multiple of 250 ns.
//
// requestedWidth is only used by Method1Var (the centered-UCC window
// width W); it is ignored for the other modes.
func ComputeWindow(mode UCMode, fourTelegrams bool, cycleTime, blockTime, requestedWidth time.Duration) Window {
	j := JitterConstant
	var w Window
	switch mode {
	case UCModeFixed:
		if fourTelegrams {
			w = fixedWindow4Tel
		} else {
			w = fixedWindow2Tel
		}
		return w // compile-time constants, already aligned

	case UCModeMethod1:
		w.T1 = blockTime + j
		w.T6 = w.T1 + blockTime + j
		w.T7 = cycleTime - j

	case UCModeMethod2:
		w.T1 = cycleTime - blockTime - j
		w.T6 = blockTime + j
		w.T7 = w.T1 - j

	case UCModeMethod1Var:
		t1 := blockTime + j
		gap := ((cycleTime - j - (t1 + blockTime + j)) - requestedWidth) / 2
		w.T1 = t1
		w.T6 = t1 + blockTime + j + gap
		w.T7 = cycleTime - j - gap
	}

	w.T1 = truncate250ns(w.T1)
	w.T6 = truncate250ns(w.T6)
	w.T7 = truncate250ns(w.T7)
	return w
}
