package phase

import (
	"github.com/sercos3/csmd/ringdelay"
	"github.com/sercos3/csmd/slave"
)

const (
	p1FirstEntry = iota
	p1CheckCycleTime
	p1ValidateRecognized
	p1FinishPhaseCheck
	p1BuildTelegrams
	p1StartPhase
	p1CheckSlaveValid
	p1CheckSVCValid
	p1ToggleHandshake
	p1CheckHandshakeAck
	p1RingDelay
	p1Finished
)

// SetPhase1 drives the CP1 entry state machine (spec.md §4.4).
func (in *Instance) SetPhase1() StepResult {
	if in.phase != CP0 {
		return in.fault(WrongPhase)
	}

	switch in.step {
	case p1FirstEntry:
		in.beginTransition()
		in.step = p1CheckCycleTime
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p1CheckCycleTime:
		// No cycle-time or telegram-count check is made here; this
		// step only advances to the recognized-list validation.
		in.step = p1ValidateRecognized
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p1ValidateRecognized:
		if !in.Slaves.RecognizedSubsetOfProjected() {
			in.abandonTo(CP0)
			return in.fault(WrongProjectedSlaveList)
		}
		for _, addr := range in.Slaves.Recognized {
			idx, ok := in.Slaves.IndexOf(addr)
			if !ok {
				in.abandonTo(CP0)
				return in.fault(IllegalSlaveAddress)
			}
			in.Slaves.SetActivity(idx, slave.Active)
		}
		in.step = p1FinishPhaseCheck
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p1FinishPhaseCheck:
		in.step = p1BuildTelegrams
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p1BuildTelegrams:
		in.rebuildTelegramLayout(len(in.Slaves.Recognized))
		if in.OnRAMAlloc != nil {
			in.OnRAMAlloc(in.MDTLayout.TotalLen, len(in.HAL.TxRAM()), in.ATLayout.TotalLen, len(in.HAL.RxRAM()))
		}
		in.step = p1StartPhase
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p1StartPhase:
		in.step = p1CheckSlaveValid
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p1CheckSlaveValid:
		// Driven by the cyclic loop stamping the aggregate flag via
		// RecordSlaveValid once every recognized slave's S-DEV.Valid bit
		// is observed set.
		if !in.allSlaveValidObserved {
			return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}
		}
		in.step = p1CheckSVCValid
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p1CheckSVCValid:
		if !in.allSVCValidObserved {
			return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}
		}
		in.step = p1ToggleHandshake
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p1ToggleHandshake:
		in.svcMHS = in.svcMHS.WithMHSToggled()
		in.step = p1CheckHandshakeAck
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p1CheckHandshakeAck:
		if !in.allSVCHandshakeAckObserved {
			return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}
		}
		in.step = p1RingDelay
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p1RingDelay:
		in.deriveRingDelay()
		in.step = p1Finished
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p1Finished:
		in.phase = CP1
		in.cyclesSincePhaseChange = 0
		in.step = 0
		return StepResult{Code: NoError}
	}

	return in.fault(IllegalCase)
}

// deriveRingDelay computes and stores the ring-delay result using the
// instance's accumulated port averages (spec.md §4.3, set_phase_1
// step 10).
func (in *Instance) deriveRingDelay() {
	n := len(in.Slaves.Recognized)
	extra := ringdelay.ExtraDelay(in.perSlaveJitter, in.hotPlugReserve)
	in.RingDelayResult = in.rdEngine.Derive(in.topology, in.accP1.Average(), in.accP2.Average(), n, extra)
}

// RecordSlaveValid, RecordSVCValid, and RecordSVCHandshakeAck are
// invoked by cyclic processing once all recognized slaves report the
// respective wire-level flag; they unblock the CP1 state machine's
// corresponding wait steps.
func (in *Instance) RecordSlaveValid(allValid bool)      { in.allSlaveValidObserved = allValid }
func (in *Instance) RecordSVCValid(allValid bool)        { in.allSVCValidObserved = allValid }
func (in *Instance) RecordSVCHandshakeAck(allAcked bool) { in.allSVCHandshakeAckObserved = allAcked }

// FeedRingDelaySample accumulates one cycle's port-delay measurement
// into the ring-delay accumulators (spec.md §4.3).
func (in *Instance) FeedRingDelaySample(p1, p2 int64) {
	in.accP1.Sample(p1)
	in.accP2.Sample(p2)
}
