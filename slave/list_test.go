package slave

import (
	"reflect"
	"testing"

	"github.com/sercos3/csmd/wire"
)

func addrs(vals ...uint16) []wire.SercosAddress {
	out := make([]wire.SercosAddress, len(vals))
	for i, v := range vals {
		out[i] = wire.SercosAddress(v)
	}
	return out
}

func TestIndexOfAndActivity(t *testing.T) {
	l := NewList(addrs(1, 2, 3))
	idx, ok := l.IndexOf(2)
	if !ok || idx != 1 {
		t.Fatalf("IndexOf(2) = %d, %v; want 1, true", idx, ok)
	}
	if l.Activity(idx) != Inactive {
		t.Errorf("initial activity should be Inactive")
	}
	l.SetActivity(idx, Active)
	if l.Activity(idx) != Active {
		t.Errorf("activity not updated")
	}
	if _, ok := l.IndexOf(99); ok {
		t.Errorf("IndexOf(99) should miss")
	}
}

func TestActiveIndices(t *testing.T) {
	l := NewList(addrs(1, 2, 3))
	l.SetActivity(0, Active)
	l.SetActivity(2, HotplugPending)
	got := l.ActiveIndices()
	want := []int{0, 2}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ActiveIndices() = %v, want %v", got, want)
	}
}

func TestRecognizedSubsetOfProjected(t *testing.T) {
	l := NewList(addrs(1, 2, 3))
	l.SetRecognized(addrs(1, 3))
	if !l.RecognizedSubsetOfProjected() {
		t.Errorf("expected subset true")
	}
	l.SetRecognized(addrs(1, 9))
	if l.RecognizedSubsetOfProjected() {
		t.Errorf("expected subset false when recognized has an address outside projected")
	}
}

func TestDuplicateRecognizedAndProjected(t *testing.T) {
	l := NewList(addrs(1, 2, 2))
	if !l.DuplicateProjected() {
		t.Errorf("expected duplicate projected address to be detected")
	}

	l2 := NewList(addrs(1, 2, 3))
	l2.SetRecognized(addrs(1, 1, 2))
	if !l2.DuplicateRecognized() {
		t.Errorf("expected duplicate recognized address to be detected")
	}
	l2.SetRecognized(addrs(1, 2))
	if l2.DuplicateRecognized() {
		t.Errorf("expected no duplicate")
	}
}

func TestReverseForBrokenRing(t *testing.T) {
	p1 := addrs(1, 2)
	p2 := addrs(3, 4, 5)
	got := ReverseForBrokenRing(p1, p2)
	want := addrs(1, 2, 5, 4, 3)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReverseForBrokenRing() = %v, want %v", got, want)
	}
}

func TestReverse(t *testing.T) {
	got := Reverse(addrs(1, 2, 3))
	want := addrs(3, 2, 1)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Reverse() = %v, want %v", got, want)
	}
}
