package phase

import (
	"github.com/sercos3/csmd/hal"
	"github.com/sercos3/csmd/slave"
	"github.com/sercos3/csmd/topology"
	"github.com/sercos3/csmd/wire"
)

// set_phase_0 sub-states (spec.md §4.4).
const (
	p0FirstEntry = iota
	p0FinishPhaseCheck
	p0PrepareCP0
	p0ResetSVC
	p0BuildTelegrams
	p0StartPhase
	p0AddressScan
	p0CheckConsistency
	p0BuildRecognized
	p0CheckDuplicates
	p0Finished
)

// SetPhase0 drives the CP0 entry/address-scan state machine. It must
// be reinvoked by the caller after SleepTime until it returns a
// terminal Code.
func (in *Instance) SetPhase0() StepResult {
	if in.phase != NRT && in.phase != CP0 {
		return in.fault(WrongPhase)
	}
	// CP0->CP0 fast restart is permitted (spec.md §3); the sequence
	// below is idempotent so no special case is needed for it.

	switch in.step {
	case p0FirstEntry:
		// MasterValid is not cleared here: neither this state machine
		// nor telegrambuild writes per-slave C-DEV words.
		in.beginTransition()
		in.step = p0FinishPhaseCheck
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p0FinishPhaseCheck:
		in.step = p0PrepareCP0
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p0PrepareCP0:
		if err := in.HAL.SetCommMode(hal.ModeRTLineP1); err != nil {
			in.abandonTo(NRT)
			return in.fault(SystemError)
		}
		in.step = p0ResetSVC
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p0ResetSVC:
		if err := in.HAL.SVCEngineEnable(false); err != nil {
			in.abandonTo(NRT)
			return in.fault(SystemError)
		}
		in.step = p0BuildTelegrams
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p0BuildTelegrams:
		// CP0's slave count isn't known until the address scan
		// stabilizes, so the CP0 layout is sized against the projected
		// list; set_phase_1 rebuilds it against the recognized count
		// once that's known (spec.md §4.4 set_phase_0 step 5).
		in.rebuildTelegramLayout(len(in.Slaves.Projected))
		in.scan.Reset()
		in.accP1.Reset()
		in.accP2.Reset()
		in.step = p0StartPhase
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p0StartPhase:
		in.Slaves.SetRecognized(nil)
		in.step = p0AddressScan
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p0AddressScan:
		return in.stepAddressScan()

	case p0CheckConsistency:
		return in.stepCheckConsistency()

	case p0BuildRecognized:
		return in.stepBuildRecognized()

	case p0CheckDuplicates:
		return in.stepCheckDuplicates()

	case p0Finished:
		in.phase = CP0
		in.step = 0
		return StepResult{Code: NoError}
	}

	return in.fault(IllegalCase)
}

// addressScanSample is one cycle's wire observation, supplied by the
// cyclic driver loop via FeedAddressScanSample before each SetPhase0
// call while in the address-scan sub-state.
type addressScanSample struct {
	seqP1, seqP2 uint16
	topoIndices  []wire.TopologyIndexWord
	linkMask     uint32
	p1, p2       topology.TelSeen
}

// FeedAddressScanSample supplies one cycle's wire observation to the
// address-scan sub-state. The caller (cyclic processing) invokes this
// once per cycle while SetPhase0 is parked in its address-scan step.
func (in *Instance) FeedAddressScanSample(seqP1, seqP2 uint16, topoIndices []wire.TopologyIndexWord, linkMask uint32, p1, p2 topology.TelSeen) {
	in.pendingScanSample = &addressScanSample{seqP1, seqP2, topoIndices, linkMask, p1, p2}
}

func (in *Instance) stepAddressScan() StepResult {
	if in.pendingScanSample == nil {
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}
	}
	sample := in.pendingScanSample
	in.pendingScanSample = nil

	in.topology = topology.Classify(sample.p1, sample.p2, sample.linkMask)
	result := in.scan.Step(sample.seqP1, sample.seqP2, sample.topoIndices)

	switch result {
	case topology.ScanTimeout:
		in.abandonTo(NRT)
		return in.fault(ErrorTimeoutP0)
	case topology.ScanDone:
		in.lastScanIndices = sample.topoIndices
		in.observedSeqDelta = seqDelta(sample.seqP1, sample.seqP2)
		in.step = p0CheckConsistency
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}
	default:
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}
	}
}

// seqDelta is the absolute difference between the two ports' received
// AT0 sequence counters at scan stabilization, used by
// stepCheckConsistency to verify the recognized-topology address count
// against the ring round-trip length (spec.md §4.4 set_phase_0 step 8).
func seqDelta(seqP1, seqP2 uint16) int {
	d := int(seqP1) - int(seqP2)
	if d < 0 {
		d = -d
	}
	return d
}

func (in *Instance) stepCheckConsistency() StepResult {
	if in.topology == topology.NoLink {
		in.abandonTo(NRT)
		return in.fault(NoLinkAttached)
	}
	n := len(in.lastScanIndices)
	expected := n
	if in.topology == topology.LineP1 || in.topology == topology.LineP2 ||
		in.topology == topology.BrokenRing || in.topology == topology.DefectRingPrimary ||
		in.topology == topology.DefectRingSecondary {
		expected = 2 * n
	}
	if in.observedSeqDelta != 0 && in.observedSeqDelta != expected {
		in.abandonTo(NRT)
		return in.fault(InconsistentRingAddresses)
	}
	in.step = p0BuildRecognized
	return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}
}

func (in *Instance) stepBuildRecognized() StepResult {
	addrs := make([]wire.SercosAddress, len(in.lastScanIndices))
	for i, idx := range in.lastScanIndices {
		addrs[i] = wire.AT0AddressSlot(idx).Address()
	}

	switch in.topology {
	case topology.BrokenRing, topology.DefectRingPrimary, topology.DefectRingSecondary:
		half := len(addrs) / 2
		in.Slaves.SetRecognized(slave.ReverseForBrokenRing(addrs[:half], addrs[half:]))
	default:
		in.Slaves.SetRecognized(addrs)
	}

	in.step = p0CheckDuplicates
	return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}
}

func (in *Instance) stepCheckDuplicates() StepResult {
	in.multipleSAddress = in.Slaves.DuplicateRecognized()
	// spec.md §8 scenario 2: set_phase_0 completes and reports the
	// topology/recognized list even with a duplicate; only
	// set_phase_3's uniqueness check aborts the transition.
	in.step = p0Finished
	return in.SetPhase0()
}
