package topology

import "github.com/sercos3/csmd/wire"

// PreferredPort is which port a slave's service/real-time channel
// should be read from.
type PreferredPort int

const (
	PreferNone PreferredPort = iota
	PreferP1
	PreferP2
)

// SlaveValidFunc reports whether the S-DEV word for the slave at the
// given position (0-based, master-outward) on the given port list
// carries SlaveValid.
type SlaveValidFunc func(pos int) bool

// LastValidIndex scans a port's slave list from the master outward and
// returns the index (0-based) of the last slave before the first one
// lacking SlaveValid, or -1 if the first slave lacks it.
func LastValidIndex(n int, valid SlaveValidFunc) int {
	last := -1
	for i := 0; i < n; i++ {
		if !valid(i) {
			break
		}
		last = i
	}
	return last
}

// DefectRingBreakSentinel is reported as the remaining-slave boundary
// for DefectRing topologies (spec.md §4.2: "0xFFFF (sentinel)").
const DefectRingBreakSentinel = 0xFFFF

// Rebuild applies the spec.md §4.2 line-break manager rules and returns
// the per-port available-slave lists plus each slave's preferred port.
// recognizedP1 is the topology-ordered recognized list; for Ring and
// BrokenRing it is assumed recognizedP2 already holds the appropriate
// reversed/disjoint list per spec.md §3/§4.1.
func Rebuild(topo Topology, recognizedP1, recognizedP2 []wire.SercosAddress, validP1, validP2 SlaveValidFunc) (availP1, availP2 []wire.SercosAddress, preferred map[wire.SercosAddress]PreferredPort) {
	preferred = make(map[wire.SercosAddress]PreferredPort)

	switch topo {
	case Ring:
		availP1 = recognizedP1
		availP2 = recognizedP2
		for _, a := range availP1 {
			preferred[a] = PreferP1
		}

	case BrokenRing:
		lastP1 := LastValidIndex(len(recognizedP1), validP1)
		lastP2 := LastValidIndex(len(recognizedP2), validP2)
		availP1 = recognizedP1
		availP2 = recognizedP2
		for i, a := range recognizedP1 {
			if i <= lastP1 {
				preferred[a] = PreferP1
			}
		}
		for i, a := range recognizedP2 {
			if i <= lastP2 {
				if _, already := preferred[a]; !already {
					preferred[a] = PreferP2
				}
			}
		}

	case LineP1:
		availP1 = recognizedP1
		availP2 = nil
		for _, a := range availP1 {
			preferred[a] = PreferP1
		}

	case LineP2:
		availP1 = nil
		availP2 = recognizedP2
		for _, a := range availP2 {
			preferred[a] = PreferP2
		}

	case DefectRingPrimary:
		// Non-defective line is port 2; break-point search uses P2's
		// valid bits only (spec.md §4.2).
		lastP2 := LastValidIndex(len(recognizedP2), validP2)
		availP1 = recognizedP1
		availP2 = recognizedP2
		for i, a := range recognizedP2 {
			if i <= lastP2 {
				preferred[a] = PreferP2
			}
		}
		// Remaining-slave boundary on the defective line is reported by
		// the caller as DefectRingBreakSentinel, not computed here.

	case DefectRingSecondary:
		// Non-defective line is port 1.
		lastP1 := LastValidIndex(len(recognizedP1), validP1)
		availP1 = recognizedP1
		availP2 = recognizedP2
		for i, a := range recognizedP1 {
			if i <= lastP1 {
				preferred[a] = PreferP1
			}
		}

	case NoLink:
		// no available slaves on either port
	}

	return availP1, availP2, preferred
}
