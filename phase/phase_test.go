package phase

import (
	"errors"
	"testing"

	"github.com/sercos3/csmd/hal"
	"github.com/sercos3/csmd/ringdelay"
	"github.com/sercos3/csmd/svc"
	"github.com/sercos3/csmd/topology"
	"github.com/sercos3/csmd/wire"
)

func newTestInstance(t *testing.T, projected []wire.SercosAddress) *Instance {
	t.Helper()
	h := hal.NewSimulator(512, 512, 8)
	cfg := DefaultConfig()
	cfg.StepTimeoutBase = 0
	return NewInstance(h, cfg, projected, nil)
}

// topoIndicesFor builds the per-slave topology-index words the
// address-scan sub-protocol reads from the AT address region, one
// little-endian slot per address (spec.md §4.1 step 2).
func topoIndicesFor(addrs []wire.SercosAddress) []wire.TopologyIndexWord {
	out := make([]wire.TopologyIndexWord, len(addrs))
	for i, a := range addrs {
		out[i] = wire.TopologyIndexWord(wire.NewAT0AddressSlot(a, false))
	}
	return out
}

// driveToTerminal repeatedly invokes step until it returns anything
// other than FunctionInProcess, or the call budget is exhausted.
func driveToTerminal(t *testing.T, name string, step func() StepResult) StepResult {
	t.Helper()
	var last StepResult
	for i := 0; i < 2000; i++ {
		last = step()
		if last.Code != FunctionInProcess {
			return last
		}
	}
	t.Fatalf("%s: did not reach a terminal state within call budget", name)
	return last
}

// driveCP0ToStable runs SetPhase0, feeding a stable ring sample every
// cycle the state machine asks for one, until CP0 stabilizes.
func driveCP0ToStable(t *testing.T, in *Instance, addrs []wire.SercosAddress) StepResult {
	t.Helper()
	indices := topoIndicesFor(addrs)
	return driveToTerminal(t, "SetPhase0", func() StepResult {
		in.FeedAddressScanSample(1, 1, indices, topology.LinkP1|topology.LinkP2, topology.TelSecondary, topology.TelPrimary)
		return in.SetPhase0()
	})
}

func TestSetPhase0HappyPathRing(t *testing.T) {
	addrs := []wire.SercosAddress{10, 11, 12}
	in := newTestInstance(t, addrs)

	res := driveCP0ToStable(t, in, addrs)
	if res.Code != NoError {
		t.Fatalf("SetPhase0() = %v, want NoError", res.Code)
	}
	if in.Phase() != CP0 {
		t.Fatalf("Phase() = %v, want CP0", in.Phase())
	}
	if in.Topology() != topology.Ring {
		t.Fatalf("Topology() = %v, want Ring", in.Topology())
	}
	if got := in.Slaves.Recognized; len(got) != 3 || got[0] != 10 || got[1] != 11 || got[2] != 12 {
		t.Fatalf("Recognized = %v, want [10 11 12]", got)
	}
	if in.MultipleSAddress() {
		t.Errorf("MultipleSAddress() = true, want false for a clean scan")
	}
	if len(in.MDTLayout.Slots) != len(addrs) {
		t.Errorf("MDTLayout.Slots = %d, want %d (built against the projected list at CP0 entry)", len(in.MDTLayout.Slots), len(addrs))
	}
}

func TestSetPhase1RebuildsTelegramLayoutAgainstRecognized(t *testing.T) {
	addrs := []wire.SercosAddress{10, 11}
	in := newTestInstance(t, addrs)
	var allocCalls int
	in.OnRAMAlloc = func(txS3Used, txTotal, rxS3Used, rxTotal int) {
		allocCalls++
		if txS3Used != in.MDTLayout.TotalLen {
			t.Errorf("OnRAMAlloc txS3Used = %d, want MDTLayout.TotalLen %d", txS3Used, in.MDTLayout.TotalLen)
		}
		if rxS3Used != in.ATLayout.TotalLen {
			t.Errorf("OnRAMAlloc rxS3Used = %d, want ATLayout.TotalLen %d", rxS3Used, in.ATLayout.TotalLen)
		}
	}

	advanceToCP1(t, in, addrs)

	if allocCalls == 0 {
		t.Fatalf("OnRAMAlloc was never invoked during SetPhase1")
	}
	if len(in.MDTLayout.Slots) != len(addrs) {
		t.Fatalf("MDTLayout.Slots = %d, want %d (rebuilt against the recognized list at CP1 entry)", len(in.MDTLayout.Slots), len(addrs))
	}
	slot, ok := in.SlaveSlot(1)
	if !ok {
		t.Fatalf("SlaveSlot(1) not found")
	}
	if slot.TopologyIndex != 1 {
		t.Errorf("SlaveSlot(1).TopologyIndex = %d, want 1", slot.TopologyIndex)
	}
}

func TestSetPhase0WrongPhase(t *testing.T) {
	in := newTestInstance(t, []wire.SercosAddress{10})
	in.phase = CP2
	res := in.SetPhase0()
	if res.Code != WrongPhase {
		t.Errorf("SetPhase0() from CP2 = %v, want WrongPhase", res.Code)
	}
	if res.Err == nil {
		t.Fatalf("SetPhase0() from CP2: Err = nil, want a *Fault")
	}
	if !errors.Is(res.Err, ErrWrongPhase(nil)) {
		t.Errorf("errors.Is(res.Err, ErrWrongPhase(nil)) = false, want true")
	}
	var f *Fault
	if !errors.As(res.Err, &f) {
		t.Fatalf("errors.As(res.Err, *Fault) = false, want true")
	}
	if f.Code != WrongPhase {
		t.Errorf("Fault.Code = %v, want WrongPhase", f.Code)
	}
}

func TestSetPhase0AddressScanTimeout(t *testing.T) {
	addrs := []wire.SercosAddress{10, 11}
	h := hal.NewSimulator(512, 512, 8)
	cfg := DefaultConfig()
	cfg.StepTimeoutBase = 0
	cfg.AddressScanAttemptBudget = 5
	cfg.AddressScanStableTarget = 100
	in := NewInstance(h, cfg, addrs, nil)

	indices := topoIndicesFor(addrs)
	var seq uint16
	res := driveToTerminal(t, "SetPhase0 timeout", func() StepResult {
		seq++ // sequence counter jitters every cycle, so stability never accrues
		in.FeedAddressScanSample(seq, seq, indices, topology.LinkP1|topology.LinkP2, topology.TelSecondary, topology.TelPrimary)
		return in.SetPhase0()
	})
	if res.Code != ErrorTimeoutP0 {
		t.Fatalf("SetPhase0() = %v, want ErrorTimeoutP0", res.Code)
	}
	if !errors.Is(res.Err, ErrTimeout(nil)) {
		t.Errorf("errors.Is(res.Err, ErrTimeout(nil)) = false, want true")
	}
	if in.Phase() != NRT {
		t.Errorf("Phase() = %v, want NRT after address-scan timeout", in.Phase())
	}
	if len(in.Slaves.Recognized) != 0 {
		t.Errorf("Recognized = %v, want empty after timeout", in.Slaves.Recognized)
	}
}

func TestSetPhase0DuplicateRecognizedDoesNotBlockCP0(t *testing.T) {
	// spec.md §8 scenario 2: projected [10,11], wire sees 10, 11, 11 ->
	// set_phase_0 still completes and reports the duplicate flag; only
	// set_phase_3 rejects it.
	addrs := []wire.SercosAddress{10, 11, 11}
	in := newTestInstance(t, []wire.SercosAddress{10, 11})

	res := driveCP0ToStable(t, in, addrs)
	if res.Code != NoError {
		t.Fatalf("SetPhase0() = %v, want NoError", res.Code)
	}
	if !in.MultipleSAddress() {
		t.Errorf("MultipleSAddress() = false, want true for duplicate recognized address")
	}
}

func advanceToCP1(t *testing.T, in *Instance, addrs []wire.SercosAddress) {
	t.Helper()
	if res := driveCP0ToStable(t, in, addrs); res.Code != NoError {
		t.Fatalf("SetPhase0() = %v, want NoError", res.Code)
	}
	res := driveToTerminal(t, "SetPhase1", func() StepResult {
		in.RecordSlaveValid(true)
		in.RecordSVCValid(true)
		in.RecordSVCHandshakeAck(true)
		in.FeedRingDelaySample(1000, 1000)
		return in.SetPhase1()
	})
	if res.Code != NoError {
		t.Fatalf("SetPhase1() = %v, want NoError", res.Code)
	}
	if in.Phase() != CP1 {
		t.Fatalf("Phase() = %v, want CP1", in.Phase())
	}
}

func TestSetPhase1RejectsUnprojectedRecognized(t *testing.T) {
	in := newTestInstance(t, []wire.SercosAddress{10, 11})
	addrs := []wire.SercosAddress{10, 99}
	if res := driveCP0ToStable(t, in, addrs); res.Code != NoError {
		t.Fatalf("SetPhase0() = %v, want NoError", res.Code)
	}

	res := driveToTerminal(t, "SetPhase1", func() StepResult {
		in.RecordSlaveValid(true)
		in.RecordSVCValid(true)
		in.RecordSVCHandshakeAck(true)
		return in.SetPhase1()
	})
	if res.Code != WrongProjectedSlaveList {
		t.Fatalf("SetPhase1() = %v, want WrongProjectedSlaveList", res.Code)
	}
	if in.Phase() != CP0 {
		t.Errorf("Phase() = %v, want CP0 after rejected SetPhase1", in.Phase())
	}
}

func advanceToCP2(t *testing.T, in *Instance, addrs []wire.SercosAddress) {
	t.Helper()
	advanceToCP1(t, in, addrs)
	res := driveToTerminal(t, "SetPhase2", func() StepResult {
		in.RecordSlaveValid(true)
		in.RecordSVCValid(true)
		in.RecordSVCHandshakeAck(true)
		return in.SetPhase2()
	})
	if res.Code != NoError {
		t.Fatalf("SetPhase2() = %v, want NoError", res.Code)
	}
	if in.Phase() != CP2 {
		t.Fatalf("Phase() = %v, want CP2", in.Phase())
	}
}

func TestSetPhase2Lifecycle(t *testing.T) {
	addrs := []wire.SercosAddress{10, 11, 12}
	in := newTestInstance(t, addrs)
	advanceToCP2(t, in, addrs)

	if got := in.HAL.(*hal.Simulator).SVCEngineEnabled(); !got {
		t.Errorf("SVC engine enabled = %v, want true after CP2 entry", got)
	}
}

// alwaysClearPrimitive is an svc.Primitive stand-in that immediately
// reports command-executed for every request, letting procedure
// commands complete in one Broadcast.Step per sub-state.
func alwaysClearPrimitive(req svc.Request) (svc.Result, error) {
	return svc.Result{State: svc.CmdCleared}, nil
}

func advanceToCP3(t *testing.T, in *Instance, addrs []wire.SercosAddress) {
	t.Helper()
	advanceToCP2(t, in, addrs)
	in.SVCPrimitive = alwaysClearPrimitive
	res := driveToTerminal(t, "SetPhase3", func() StepResult {
		in.RecordSlaveValid(true)
		return in.SetPhase3()
	})
	if res.Code != NoError {
		t.Fatalf("SetPhase3() = %v, want NoError", res.Code)
	}
	if in.Phase() != CP3 {
		t.Fatalf("Phase() = %v, want CP3", in.Phase())
	}
}

func TestSetPhase3RejectsDuplicateRecognized(t *testing.T) {
	addrs := []wire.SercosAddress{10, 11, 11}
	in := newTestInstance(t, []wire.SercosAddress{10, 11})
	advanceToCP1(t, in, addrs)
	// Force the instance into CP2 directly to exercise SetPhase3's own
	// guard
	// (spec.md §8 scenario 2: "set_phase_3 then returns
	// NoUniqueRecognizedAddresses").
	in.phase = CP2
	in.step = 0
	in.SVCPrimitive = alwaysClearPrimitive

	res := in.SetPhase3()
	if res.Code != NoUniqueRecognizedAddresses {
		t.Fatalf("SetPhase3() = %v, want NoUniqueRecognizedAddresses", res.Code)
	}
}

func TestSetPhase3PropagatesSlaveError(t *testing.T) {
	addrs := []wire.SercosAddress{10, 11}
	in := newTestInstance(t, addrs)
	advanceToCP2(t, in, addrs)

	in.SVCPrimitive = func(req svc.Request) (svc.Result, error) {
		return svc.Result{State: svc.RequestError, ErrCode: 0xBEEF}, nil
	}
	res := driveToTerminal(t, "SetPhase3 error", func() StepResult {
		in.RecordSlaveValid(true)
		return in.SetPhase3()
	})
	if res.Code != S01024CmdError {
		t.Fatalf("SetPhase3() = %v, want S01024CmdError", res.Code)
	}
	if in.Phase() != CP2 {
		t.Errorf("Phase() = %v, want CP2 after aborted SetPhase3", in.Phase())
	}
	if in.Diag.Empty() {
		t.Errorf("Diag.Empty() = true, want a recorded slave error")
	}
	var f *Fault
	if !errors.As(res.Err, &f) {
		t.Fatalf("errors.As(res.Err, *Fault) = false, want true")
	}
	if f.Diagnostics == nil {
		t.Fatalf("Fault.Diagnostics = nil, want a snapshot of the recorded slave error")
	}
	if f.Diagnostics.FirstErrorCode != 0xBEEF {
		t.Errorf("Fault.Diagnostics.FirstErrorCode = %#x, want 0xBEEF", f.Diagnostics.FirstErrorCode)
	}
}

func TestSetPhase4Lifecycle(t *testing.T) {
	addrs := []wire.SercosAddress{10}
	in := newTestInstance(t, addrs)
	advanceToCP3(t, in, addrs)

	in.SVCPrimitive = alwaysClearPrimitive
	res := driveToTerminal(t, "SetPhase4", func() StepResult {
		in.Tick()
		return in.SetPhase4()
	})
	if res.Code != NoError {
		t.Fatalf("SetPhase4() = %v, want NoError", res.Code)
	}
	if in.Phase() != CP4 {
		t.Fatalf("Phase() = %v, want CP4", in.Phase())
	}
}

func TestSetNRTResetsActivity(t *testing.T) {
	addrs := []wire.SercosAddress{10, 11}
	in := newTestInstance(t, addrs)
	advanceToCP1(t, in, addrs)

	res := in.SetNRT()
	if res.Code != NoError {
		t.Fatalf("SetNRT() = %v, want NoError", res.Code)
	}
	if in.Phase() != NRT {
		t.Fatalf("Phase() = %v, want NRT", in.Phase())
	}
	for i := range addrs {
		if in.Slaves.Activity(i) != 0 {
			t.Errorf("Activity(%d) = %v, want Inactive after SetNRT", i, in.Slaves.Activity(i))
		}
	}
}

func TestRecoverRingRequiresNonRingTopology(t *testing.T) {
	addrs := []wire.SercosAddress{10, 11, 12}
	in := newTestInstance(t, addrs)
	advanceToCP1(t, in, addrs) // leaves topology = Ring from the CP0 scan

	if res := in.RecoverRing(); res.Code != WrongTopology {
		t.Fatalf("RecoverRing() on Ring topology = %v, want WrongTopology", res.Code)
	}
}

func TestRecoverRingHappyPath(t *testing.T) {
	addrs := []wire.SercosAddress{10, 11, 12}
	in := newTestInstance(t, addrs)
	advanceToCP1(t, in, addrs)
	in.SVCPrimitive = alwaysClearPrimitive

	in.topology = topology.BrokenRing // simulate a detected break
	in.step = 0

	res := driveToTerminal(t, "RecoverRing", func() StepResult {
		in.RecordBreakPointLoopback(true)
		in.RecordTopologyHSToggle(true)
		in.FeedRingDelaySample(1100, 1100)
		if in.step != rrFirstEntry {
			in.topology = topology.Ring // ring re-closes once recovery is under way
		}
		return in.RecoverRing()
	})
	if res.Code != RecoverRingOK {
		t.Fatalf("RecoverRing() = %v, want RecoverRingOK", res.Code)
	}
}

func TestRecoverRingTimesOutWaitingForHandshake(t *testing.T) {
	addrs := []wire.SercosAddress{10, 11}
	in := newTestInstance(t, addrs)
	advanceToCP1(t, in, addrs)
	in.topology = topology.BrokenRing
	in.step = 0

	cycles := 0
	res := driveToTerminal(t, "RecoverRing timeout", func() StepResult {
		in.RecordBreakPointLoopback(true)
		in.RecordTopologyHSToggle(false)
		cycles++
		in.cyclesSincePhaseChange = uint64(cycles)
		return in.RecoverRing()
	})
	if res.Code != RecoverRingError {
		t.Fatalf("RecoverRing() = %v, want RecoverRingError", res.Code)
	}
}

func TestOpenRingRejectsNonAdjacentAddresses(t *testing.T) {
	addrs := []wire.SercosAddress{10, 11, 12}
	in := newTestInstance(t, addrs)
	advanceToCP1(t, in, addrs)

	res := driveToTerminal(t, "OpenRing invalid", func() StepResult {
		return in.OpenRing(10, 12)
	})
	if res.Code != OpenRingInvalidAddr {
		t.Fatalf("OpenRing(10,12) = %v, want OpenRingInvalidAddr (not adjacent)", res.Code)
	}
}

func TestOpenRingHappyPath(t *testing.T) {
	addrs := []wire.SercosAddress{10, 11, 12}
	in := newTestInstance(t, addrs)
	advanceToCP1(t, in, addrs)

	res := driveToTerminal(t, "OpenRing", func() StepResult {
		in.RecordOpenRingHSEcho(true)
		return in.OpenRing(10, 11)
	})
	if res.Code != OpenRingOk {
		t.Fatalf("OpenRing(10,11) = %v, want OpenRingOk", res.Code)
	}
	if cmd := in.OpenRingCommand(10); cmd != wire.TopoCmdLoopbackFwdP {
		t.Errorf("OpenRingCommand(10) = %v, want LoopbackFwdP", cmd)
	}
	if cmd := in.OpenRingCommand(11); cmd != wire.TopoCmdLoopbackFwdS {
		t.Errorf("OpenRingCommand(11) = %v, want LoopbackFwdS", cmd)
	}
}

func TestOpenRingTimesOutWithoutEcho(t *testing.T) {
	addrs := []wire.SercosAddress{10, 11, 12}
	in := newTestInstance(t, addrs)
	advanceToCP1(t, in, addrs)

	cycles := 0
	res := driveToTerminal(t, "OpenRing timeout", func() StepResult {
		cycles++
		in.cyclesSincePhaseChange = uint64(cycles)
		return in.OpenRing(10, 11)
	})
	if res.Code != OpenRingError {
		t.Fatalf("OpenRing() = %v, want OpenRingError", res.Code)
	}
}

func TestRingDelayResultPopulatedByPhase1(t *testing.T) {
	addrs := []wire.SercosAddress{10, 11, 12}
	in := newTestInstance(t, addrs)
	advanceToCP1(t, in, addrs)

	if in.RingDelayResult.TSref == 0 {
		t.Errorf("RingDelayResult.TSref = 0, want non-zero after SetPhase1 (strategy %v)", ringdelay.StrategyB)
	}
}
