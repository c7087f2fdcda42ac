package wire

import (
	"testing"
	"time"
)

func TestCDEVWordRoundTrip(t *testing.T) {
	tests := []struct {
		name        string
		masterValid bool
		topologyHS  bool
		cmd         TopologyCommand
	}{
		{"allZero", false, false, TopoCmdFastForward},
		{"masterValidOnly", true, false, TopoCmdFastForward},
		{"topologyHSOnly", false, true, TopoCmdFastForward},
		{"loopbackFwdP", true, true, TopoCmdLoopbackFwdP},
		{"loopbackFwdS", true, true, TopoCmdLoopbackFwdS},
		{"reserved", true, true, TopoCmdReserved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewCDEVWord(tt.masterValid, tt.topologyHS, tt.cmd)
			if got := w.MasterValid(); got != tt.masterValid {
				t.Errorf("MasterValid() = %v, want %v", got, tt.masterValid)
			}
			if got := w.TopologyHS(); got != tt.topologyHS {
				t.Errorf("TopologyHS() = %v, want %v", got, tt.topologyHS)
			}
			if got := w.TopologyCommand(); got != tt.cmd {
				t.Errorf("TopologyCommand() = %v, want %v", got, tt.cmd)
			}
		})
	}
}

func TestSDEVWordRoundTrip(t *testing.T) {
	tests := []struct {
		name         string
		slaveValid   bool
		topologyHS   bool
		topoStatus   TopologyStatus
		inactivePort InactivePortStatus
	}{
		{"zeros", false, false, 0, 0},
		{"slaveValid", true, false, 0, 0},
		{"topoStatus3", false, false, 3, 0},
		{"inactivePort2", false, false, 0, 2},
		{"allSet", true, true, 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewSDEVWord(tt.slaveValid, tt.topologyHS, tt.topoStatus, tt.inactivePort)
			if got := w.SlaveValid(); got != tt.slaveValid {
				t.Errorf("SlaveValid() = %v, want %v", got, tt.slaveValid)
			}
			if got := w.CurrentTopologyStatus(); got != tt.topoStatus {
				t.Errorf("CurrentTopologyStatus() = %v, want %v", got, tt.topoStatus)
			}
			if got := w.InactivePortStatus(); got != tt.inactivePort {
				t.Errorf("InactivePortStatus() = %v, want %v", got, tt.inactivePort)
			}
		})
	}
}

func TestSVCControlWordMHSToggle(t *testing.T) {
	w := NewSVCControlWord(false, true, false, SVCElementOperationData, false)
	if w.MHS() {
		t.Fatalf("expected MHS false initially")
	}
	toggled := w.WithMHSToggled()
	if !toggled.MHS() {
		t.Fatalf("expected MHS true after toggle")
	}
	if toggled.Element() != SVCElementOperationData {
		t.Fatalf("toggle must not disturb Element, got %v", toggled.Element())
	}
	back := toggled.WithMHSToggled()
	if back.MHS() {
		t.Fatalf("expected MHS false after second toggle")
	}
}

func TestAT0AddressSlotRoundTrip(t *testing.T) {
	slot := NewAT0AddressSlot(SercosAddress(17), true)
	if slot.Address() != 17 {
		t.Errorf("Address() = %d, want 17", slot.Address())
	}
	if !slot.Acknowledged() {
		t.Errorf("Acknowledged() = false, want true")
	}

	buf := make([]byte, 2)
	EncodeAT0AddressField(buf, 0, []AT0AddressSlot{slot})
	got := DecodeAT0AddressField(buf, 0, 1)
	if got[0] != slot {
		t.Errorf("round trip = %#v, want %#v", got[0], slot)
	}
}

func TestCommVersionRoundTrip(t *testing.T) {
	fields := CommVersionFields{
		AddressAllocation:  true,
		TelegramCount:      4,
		ComParamInMDT0:     true,
		FastPhaseSwitch:    false,
		LastSlaveNoForward: true,
	}
	cv := NewCommVersion(fields)
	got := cv.Fields()
	if got != fields {
		t.Errorf("Fields() = %+v, want %+v", got, fields)
	}
}

func TestEncodeMDT0CommVersionFixedMode(t *testing.T) {
	buf := make([]byte, CP0MDTLength)
	cv := NewCommVersion(CommVersionFields{TelegramCount: 2})
	n := EncodeMDT0CommVersion(buf, cv, nil)
	if n != 4 {
		t.Fatalf("fixed mode should write 4 bytes, wrote %d", n)
	}
	if got := DecodeMDT0CommVersion(buf); got != cv {
		t.Errorf("decode mismatch: got %v want %v", got, cv)
	}
}

func TestEncodeMDT0CommVersionWithUCWindow(t *testing.T) {
	buf := make([]byte, CP0MDTLength)
	cv := NewCommVersion(CommVersionFields{TelegramCount: 2})
	uc := &UCWindowTimes{T1: 100 * time.Microsecond, T6: 300 * time.Microsecond, T7: 900 * time.Microsecond}
	n := EncodeMDT0CommVersion(buf, cv, uc)
	if n != 16 {
		t.Fatalf("UC-window mode should write 16 bytes, wrote %d", n)
	}
}
