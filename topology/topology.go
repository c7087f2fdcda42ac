// Package topology implements the topology recognizer, line-break
// manager, and per-port error monitor of spec.md §4.1/§4.2.
package topology

import "github.com/sercos3/csmd/wire"

// Topology is one of the recognized bus topologies (spec.md §3).
type Topology int

const (
	NoLink Topology = iota
	LineP1
	LineP2
	BrokenRing
	Ring
	DefectRingPrimary
	DefectRingSecondary
)

func (t Topology) String() string {
	switch t {
	case NoLink:
		return "NoLink"
	case LineP1:
		return "LineP1"
	case LineP2:
		return "LineP2"
	case BrokenRing:
		return "BrokenRing"
	case Ring:
		return "Ring"
	case DefectRingPrimary:
		return "DefectRing(primary)"
	case DefectRingSecondary:
		return "DefectRing(secondary)"
	default:
		return "Unknown"
	}
}

// TelSeen is which telegram direction a port observed this cycle.
type TelSeen int

const (
	TelNone TelSeen = iota
	TelPrimary
	TelSecondary
)

// LinkMask bits, matching hal.LinkStatusP1/P2.
const (
	LinkP1 uint32 = 1 << iota
	LinkP2
)

// Classify implements the spec.md §4.1 classification table, read in
// order.
func Classify(p1, p2 TelSeen, linkMask uint32) Topology {
	both := linkMask&(LinkP1|LinkP2) == (LinkP1 | LinkP2)
	switch {
	case both && p1 == TelSecondary && p2 == TelPrimary:
		return Ring
	case both && p1 == TelPrimary && p2 == TelSecondary:
		return BrokenRing
	case both && p1 == TelSecondary && p2 == TelSecondary:
		return DefectRingPrimary
	case both && p1 == TelPrimary && p2 == TelPrimary:
		return DefectRingSecondary
	case linkMask&LinkP1 != 0 && p1 == TelPrimary && p2 == TelNone:
		return LineP1
	case linkMask&LinkP2 != 0 && p2 == TelSecondary && p1 == TelNone:
		return LineP2
	default:
		return NoLink
	}
}

// RingStabilityCycles is the number of consecutive cycles both ports
// must carry their expected-direction telegram before a Ring transition
// is accepted (spec.md §3 invariant). Classify does not apply it: each
// call classifies that cycle's port sample on its own.
const RingStabilityCycles = 100

// TelError is the outcome of the telegram-error gate checked before a
// topology edge is published.
type TelError int

const (
	TelOK TelError = iota
	NoTelegramsReceived
	MstMiss
	MstWindowError
	TelErrorOverrun
)

// PortTelStatus is the subset of TGSR bits the error gate inspects for
// one port.
type PortTelStatus struct {
	AllMDT    bool
	AllAT     bool
	MSTValid  bool
	MSTWinErr bool
}

// ErrorMonitor tracks the consecutive-telegram-error counter (spec.md
// §4.1) plus the per-address good/bad streak counters supplementing the
// original's CSMD_SERC_MON_CFG.h activity monitor.
type ErrorMonitor struct {
	maxTelErr int
	consErr   int

	goodStreak map[wire.SercosAddress]int
	badStreak  map[wire.SercosAddress]int
}

// NewErrorMonitor returns a monitor with the given consecutive-error
// threshold (spec.md's max_tel_err).
func NewErrorMonitor(maxTelErr int) *ErrorMonitor {
	return &ErrorMonitor{
		maxTelErr:  maxTelErr,
		goodStreak: make(map[wire.SercosAddress]int),
		badStreak:  make(map[wire.SercosAddress]int),
	}
}

// Gate evaluates one or two port statuses (the active port for
// Line/DefectRing topologies, both for Ring) and returns the telegram
// error, updating the consecutive-error counter. MST-window errors do
// not increment the counter (spec.md §4.1: "the master tolerates MSTs
// received outside the ideal window").
func (m *ErrorMonitor) Gate(topo Topology, p1, p2 PortTelStatus) TelError {
	required := func(s PortTelStatus) TelError {
		switch {
		case !s.AllMDT || !s.AllAT:
			return NoTelegramsReceived
		case s.MSTWinErr:
			return MstWindowError
		case !s.MSTValid:
			return MstMiss
		default:
			return TelOK
		}
	}

	var result TelError
	switch topo {
	case Ring:
		r1, r2 := required(p1), required(p2)
		if r1 != TelOK {
			result = r1
		} else {
			result = r2
		}
	case LineP1, DefectRingSecondary:
		result = required(p1)
	case LineP2, DefectRingPrimary:
		result = required(p2)
	default:
		result = required(p1)
	}

	if result == TelOK || result == MstWindowError {
		m.consErr = 0
		return result
	}

	m.consErr++
	if m.consErr >= m.maxTelErr {
		return TelErrorOverrun
	}
	return result
}

// RecordGood/RecordBad track the per-port-slave good/bad streak
// counters supplementing spec.md §4.1, grounded in the original's
// per-address activity monitor (CSMD_SERC_MON_CFG.h).
func (m *ErrorMonitor) RecordGood(addr wire.SercosAddress) {
	m.goodStreak[addr]++
	m.badStreak[addr] = 0
}

func (m *ErrorMonitor) RecordBad(addr wire.SercosAddress) {
	m.badStreak[addr]++
	m.goodStreak[addr] = 0
}

func (m *ErrorMonitor) GoodStreak(addr wire.SercosAddress) int { return m.goodStreak[addr] }
func (m *ErrorMonitor) BadStreak(addr wire.SercosAddress) int  { return m.badStreak[addr] }

// Edge describes one topology transition's effect on the per-port
// available-slave lists, supplementing spec.md §4.1/§4.2 with the
// change-list shape from the original's CSMD_RING_CFG.c.
type Edge struct {
	From, To           Topology
	AddedP1, RemovedP1 []wire.SercosAddress
	AddedP2, RemovedP2 []wire.SercosAddress
}

// diffAddresses returns the elements of b not in a (added) and the
// elements of a not in b (removed).
func diffAddresses(a, b []wire.SercosAddress) (added, removed []wire.SercosAddress) {
	aSet := make(map[wire.SercosAddress]struct{}, len(a))
	for _, x := range a {
		aSet[x] = struct{}{}
	}
	bSet := make(map[wire.SercosAddress]struct{}, len(b))
	for _, x := range b {
		bSet[x] = struct{}{}
	}
	for _, x := range b {
		if _, ok := aSet[x]; !ok {
			added = append(added, x)
		}
	}
	for _, x := range a {
		if _, ok := bSet[x]; !ok {
			removed = append(removed, x)
		}
	}
	return added, removed
}

// NewEdge computes the added/removed lists for a transition from
// (oldP1, oldP2) to (newP1, newP2).
func NewEdge(from, to Topology, oldP1, oldP2, newP1, newP2 []wire.SercosAddress) Edge {
	e := Edge{From: from, To: to}
	e.AddedP1, e.RemovedP1 = diffAddresses(oldP1, newP1)
	e.AddedP2, e.RemovedP2 = diffAddresses(oldP2, newP2)
	return e
}
