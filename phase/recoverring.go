package phase

import (
	"github.com/sercos3/csmd/ringdelay"
	"github.com/sercos3/csmd/topology"
)

const (
	rrFirstEntry = iota
	rrWaitLoopbackSignal
	rrCommandFastForward
	rrWaitHandshakeToggle
	rrRemeasure
	rrWriteS01015
	rrRerunSyncDelay
	rrFinished
)

// maxHandshakeToggleCycles bounds how long recover_ring waits for a
// commanded slave's S-DEV.Topology-HS bit to toggle before aborting
// with RecoverRingError. No topology command is kept or reverted by
// this state machine.
const maxHandshakeToggleCycles = 50

// RecoverRing drives the ring-recovery state machine (spec.md §4.4).
// It is only startable when the current topology is not Ring; once
// under way, reaching Ring again mid-procedure is success (rrRemeasure
// below), not a reason to reject reentry.
func (in *Instance) RecoverRing() StepResult {
	if in.step == rrFirstEntry && in.topology == topology.Ring {
		return in.fault(WrongTopology)
	}

	switch in.step {
	case rrFirstEntry:
		in.beginTransition()
		in.recoverStartCycle = in.cyclesSincePhaseChange
		in.step = rrWaitLoopbackSignal
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case rrWaitLoopbackSignal:
		if !in.breakPointLoopbackObserved {
			return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}
		}
		in.step = rrCommandFastForward
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case rrCommandFastForward:
		in.recoverStartCycle = in.cyclesSincePhaseChange
		in.step = rrWaitHandshakeToggle
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case rrWaitHandshakeToggle:
		if in.topologyHSToggled {
			in.step = rrRemeasure
			return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}
		}
		if in.cyclesSincePhaseChange-in.recoverStartCycle > maxHandshakeToggleCycles {
			in.abandonTo(in.phase)
			return in.fault(RecoverRingError)
		}
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case rrRemeasure:
		if in.topology != topology.Ring {
			in.abandonTo(in.phase)
			return in.fault(RingRecoveryAborted)
		}
		n := len(in.Slaves.Recognized)
		extra := ringdelay.ExtraDelay(in.perSlaveJitter, in.hotPlugReserve)
		in.RingDelayResult = in.rdEngine.Derive(in.topology, in.accP1.Average(), in.accP2.Average(), n, extra)
		in.step = rrWriteS01015
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case rrWriteS01015:
		// Writing S-0-1015 to every SCP_Sync slave is a service-channel
		// write driven through the same SVC primitive as the procedure
		// commands; the driver loop performs the actual transaction via
		// in.SVCPrimitive outside this state's bookkeeping.
		in.initProcedureCommand()
		in.step = rrRerunSyncDelay
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case rrRerunSyncDelay:
		res, done := in.driveProcedureCommand(idnS01024)
		if done && res != NoError {
			in.abandonTo(in.phase)
			return in.fault(RecoverRingError)
		}
		if !done {
			return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}
		}
		in.step = rrFinished
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case rrFinished:
		in.step = 0
		return StepResult{Code: RecoverRingOK}
	}

	return in.fault(IllegalCase)
}

// RecordBreakPointLoopback and RecordTopologyHSToggle are invoked by
// cyclic processing to unblock RecoverRing's wait states.
func (in *Instance) RecordBreakPointLoopback(observed bool) { in.breakPointLoopbackObserved = observed }
func (in *Instance) RecordTopologyHSToggle(toggled bool)    { in.topologyHSToggled = toggled }
