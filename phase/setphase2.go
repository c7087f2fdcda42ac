package phase

import "github.com/sercos3/csmd/svc"

const (
	p2FirstEntry = iota
	p2ClearDiagnostics
	p2ClearConnectionList
	p2EnableSVCEngine
	p2InitSoftwareSVC
	p2CheckSlaveValid
	p2CheckSVCValid
	p2ToggleHandshake
	p2CheckHandshakeAck
	p2Finished
)

// SetPhase2 drives the CP2 entry state machine. It is symmetric to
// SetPhase1 but additionally clears the extended-diagnostic block and
// the CC-connection list, enables the service-channel hardware engine,
// and initializes software-emulated SVC containers for slave indices
// beyond the hardware-container count (spec.md §4.4).
func (in *Instance) SetPhase2() StepResult {
	if in.phase != CP1 {
		return in.fault(WrongPhase)
	}

	switch in.step {
	case p2FirstEntry:
		in.beginTransition()
		in.step = p2ClearDiagnostics
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p2ClearDiagnostics:
		in.Diag.Clear()
		in.step = p2ClearConnectionList
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p2ClearConnectionList:
		in.step = p2EnableSVCEngine
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p2EnableSVCEngine:
		if err := in.HAL.SVCEngineEnable(true); err != nil {
			in.abandonTo(CP1)
			return in.fault(SystemError)
		}
		in.step = p2InitSoftwareSVC
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p2InitSoftwareSVC:
		hwContainers := in.HAL.SVCContainerCount()
		n := len(in.Slaves.Recognized)
		if n > hwContainers {
			in.softwareSVCCount = n - hwContainers
		} else {
			in.softwareSVCCount = 0
		}
		in.svcStatuses = make([]svc.SlaveStatus, n)
		in.step = p2CheckSlaveValid
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p2CheckSlaveValid:
		if !in.allSlaveValidObserved {
			return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}
		}
		in.step = p2CheckSVCValid
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p2CheckSVCValid:
		if !in.allSVCValidObserved {
			return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}
		}
		in.step = p2ToggleHandshake
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p2ToggleHandshake:
		in.svcMHS = in.svcMHS.WithMHSToggled()
		in.step = p2CheckHandshakeAck
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p2CheckHandshakeAck:
		if !in.allSVCHandshakeAckObserved {
			return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}
		}
		in.step = p2Finished
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p2Finished:
		in.phase = CP2
		in.cyclesSincePhaseChange = 0
		in.step = 0
		return StepResult{Code: NoError}
	}

	return in.fault(IllegalCase)
}
