package topology

import (
	"testing"

	"github.com/sercos3/csmd/wire"
)

func allValid(n int) SlaveValidFunc {
	return func(pos int) bool { return pos < n }
}

func TestLastValidIndex(t *testing.T) {
	if got := LastValidIndex(5, allValid(3)); got != 2 {
		t.Errorf("LastValidIndex() = %d, want 2", got)
	}
	if got := LastValidIndex(5, allValid(0)); got != -1 {
		t.Errorf("LastValidIndex() = %d, want -1", got)
	}
}

func TestRebuildRing(t *testing.T) {
	p1 := []wire.SercosAddress{1, 2, 3}
	p2 := []wire.SercosAddress{3, 2, 1}
	availP1, availP2, preferred := Rebuild(Ring, p1, p2, allValid(3), allValid(3))
	if len(availP1) != 3 || len(availP2) != 3 {
		t.Fatalf("expected full availability lists, got p1=%v p2=%v", availP1, availP2)
	}
	for _, a := range p1 {
		if preferred[a] != PreferP1 {
			t.Errorf("slave %d preferred = %v, want PreferP1", a, preferred[a])
		}
	}
}

func TestRebuildLineP1ClearsP2(t *testing.T) {
	p1 := []wire.SercosAddress{1, 2}
	_, availP2, preferred := Rebuild(LineP1, p1, nil, allValid(2), allValid(0))
	if availP2 != nil {
		t.Errorf("LineP1 should clear port-2 availability, got %v", availP2)
	}
	if preferred[1] != PreferP1 {
		t.Errorf("preferred[1] = %v, want PreferP1", preferred[1])
	}
}

func TestRebuildBrokenRingBoundary(t *testing.T) {
	p1 := []wire.SercosAddress{1, 2, 3}
	p2 := []wire.SercosAddress{4, 5}
	_, _, preferred := Rebuild(BrokenRing, p1, p2, allValid(2), allValid(1))
	if preferred[1] != PreferP1 || preferred[2] != PreferP1 {
		t.Errorf("slaves within last-valid-P1 should prefer P1, got %v %v", preferred[1], preferred[2])
	}
	if _, ok := preferred[3]; ok {
		t.Errorf("slave beyond last-valid-P1 should have no P1 preference, got %v", preferred[3])
	}
	if preferred[4] != PreferP2 {
		t.Errorf("slave 4 should prefer P2, got %v", preferred[4])
	}
}
