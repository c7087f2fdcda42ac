package diag

import "testing"

func TestRecordAddAndFirst(t *testing.T) {
	r := NewRecord()
	if !r.Empty() {
		t.Fatalf("new record should be empty")
	}
	r.Add(2, 0x7010, 0x00090001)
	r.Add(2, 0x7011, 0x00090002)
	r.Add(5, 0x7010, 0x00090003)

	if r.Empty() {
		t.Fatalf("record should not be empty after Add")
	}
	if got := r.NbrSlaves(); got != 2 {
		t.Errorf("NbrSlaves() = %d, want 2", got)
	}
	first, ok := r.First()
	if !ok {
		t.Fatalf("First() ok = false, want true")
	}
	if first.SlaveIndex != 2 || first.IDN != 0x7010 {
		t.Errorf("First() = %+v, want slave 2 idn 0x7010", first)
	}
}

func TestRecordClearPreservesIdentityAndRestampsID(t *testing.T) {
	r := NewRecord()
	oldID := r.CorrelationID
	r.Add(1, 0x7010, 1)

	r.Clear()
	if !r.Empty() {
		t.Fatalf("record should be empty after Clear")
	}
	if r.CorrelationID == oldID {
		t.Errorf("Clear() must stamp a fresh correlation ID")
	}
}

func TestSlaveErrorString(t *testing.T) {
	e := SlaveError{SlaveIndex: 3, IDN: 0x7010, Code: 0x00090001}
	want := "slave[3] idn=0x7010 code=0x00090001"
	if got := e.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
