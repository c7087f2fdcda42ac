// Package slave implements the SlaveList data model of spec.md §3:
// recognized/projected address lists, the O(1) projected-address inverse
// lookup, and per-slave activity state.
package slave

import "github.com/sercos3/csmd/wire"

// Activity is the per-slave activity state (spec.md §3).
type Activity int

const (
	Inactive Activity = iota
	HotplugPending
	Active
)

func (a Activity) String() string {
	switch a {
	case Inactive:
		return "Inactive"
	case HotplugPending:
		return "HotplugPending"
	case Active:
		return "Active"
	default:
		return "Unknown"
	}
}

// List holds the recognized and projected slave address lists plus the
// dense inverse lookup and activity vector.
type List struct {
	Recognized []wire.SercosAddress
	Projected  []wire.SercosAddress

	byAddress map[wire.SercosAddress]int // projected_by_sercos_address -> dense slave index
	activity  []Activity                 // indexed by dense slave index
}

// NewList builds a list from the application-configured projected
// addresses, establishing the dense slave-index space.
func NewList(projected []wire.SercosAddress) *List {
	l := &List{
		Projected: append([]wire.SercosAddress(nil), projected...),
		byAddress: make(map[wire.SercosAddress]int, len(projected)),
		activity:  make([]Activity, len(projected)),
	}
	for i, addr := range projected {
		l.byAddress[addr] = i
	}
	return l
}

// SetRecognized replaces the recognized-address list, e.g. after a CP0
// address scan (spec.md §4.4 set_phase_0 step 9).
func (l *List) SetRecognized(addrs []wire.SercosAddress) {
	l.Recognized = append([]wire.SercosAddress(nil), addrs...)
}

// IndexOf returns the dense slave index for a projected address.
func (l *List) IndexOf(addr wire.SercosAddress) (int, bool) {
	idx, ok := l.byAddress[addr]
	return idx, ok
}

// Activity returns the activity of the slave at the given dense index.
func (l *List) Activity(idx int) Activity {
	if idx < 0 || idx >= len(l.activity) {
		return Inactive
	}
	return l.activity[idx]
}

// SetActivity sets the activity of the slave at the given dense index.
func (l *List) SetActivity(idx int, a Activity) {
	if idx < 0 || idx >= len(l.activity) {
		return
	}
	l.activity[idx] = a
}

// ActiveIndices returns the dense indices of every slave not Inactive.
func (l *List) ActiveIndices() []int {
	var out []int
	for i, a := range l.activity {
		if a != Inactive {
			out = append(out, i)
		}
	}
	return out
}

// RecognizedSubsetOfProjected reports whether every recognized address is
// present in the projected list (spec.md §3 invariant: "recognized ⊆
// projected after phase 1 begins, unless hot-plug is enabled").
func (l *List) RecognizedSubsetOfProjected() bool {
	for _, addr := range l.Recognized {
		if _, ok := l.byAddress[addr]; !ok {
			return false
		}
	}
	return true
}

// DuplicateRecognized reports whether any recognized address appears more
// than once (spec.md §3 invariant: progression past CP2 is forbidden when
// this holds).
func (l *List) DuplicateRecognized() bool {
	seen := make(map[wire.SercosAddress]struct{}, len(l.Recognized))
	for _, addr := range l.Recognized {
		if _, ok := seen[addr]; ok {
			return true
		}
		seen[addr] = struct{}{}
	}
	return false
}

// DuplicateProjected reports whether any projected address appears more
// than once (the "ErrorDoubleAddress" condition, distinct from
// DuplicateRecognized's "ErrorDoubleRecognizedAddress"). The phase
// state machines do not call it.
func (l *List) DuplicateProjected() bool {
	seen := make(map[wire.SercosAddress]struct{}, len(l.Projected))
	for _, addr := range l.Projected {
		if _, ok := seen[addr]; ok {
			return true
		}
		seen[addr] = struct{}{}
	}
	return false
}

// ReverseForBrokenRing returns the recognized list re-ordered so that
// port-2 slaves are appended in inverted order, preserving the expected
// order after ring closure (spec.md §3).
func ReverseForBrokenRing(p1, p2 []wire.SercosAddress) []wire.SercosAddress {
	out := make([]wire.SercosAddress, 0, len(p1)+len(p2))
	out = append(out, p1...)
	for i := len(p2) - 1; i >= 0; i-- {
		out = append(out, p2[i])
	}
	return out
}

// Reverse returns a new slice with addrs in reverse order, used to derive
// the port-2 available list from port-1's in ring topology (spec.md §3:
// "port-2 slaves appended in inverted order").
func Reverse(addrs []wire.SercosAddress) []wire.SercosAddress {
	out := make([]wire.SercosAddress, len(addrs))
	for i, a := range addrs {
		out[len(addrs)-1-i] = a
	}
	return out
}
