package phase

import "github.com/sercos3/csmd/svc"

// procState is the four-state procedure-command sub-machine shared by
// S-0-1024 (SYNC delay measuring) and S-0-0127/S-0-0128 (transition
// checks), per spec.md §4.4.
type procState int

const (
	procClearCmd procState = iota
	procSetCmd
	procSetCheck
	procClearCmdAgain
	procDone
)

const idnS01024 = 0x1024
const idnS00127 = 0x0127
const idnS00128 = 0x0128

// commandExecutedStatus is the SVC status value 0x3 indicating the
// procedure command has completed execution (spec.md §4.4 step "wait
// for command-executed status 0x3").
const commandExecutedStatus = 0x3

const (
	p3FirstEntry = iota
	p3SyncDelayCmd
	p3TransitionCheckCmd
	p3FinishPhaseCheck
	p3BuildTelegrams
	p3StartPhase
	p3CheckSlaveValid
	p3Finished
)

// SetPhase3 orchestrates the SYNC delay measuring (S-0-1024) and
// transition-check (S-0-0127) procedure commands before switching the
// phase register (spec.md §4.4).
func (in *Instance) SetPhase3() StepResult {
	if in.phase != CP2 {
		return in.fault(WrongPhase)
	}

	switch in.step {
	case p3FirstEntry:
		in.beginTransition()
		if in.Slaves.DuplicateRecognized() {
			return in.fault(NoUniqueRecognizedAddresses)
		}
		in.initProcedureCommand()
		in.step = p3SyncDelayCmd
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p3SyncDelayCmd:
		res, done := in.driveProcedureCommand(idnS01024)
		if done && res != NoError {
			in.abandonTo(CP2)
			return in.fault(res)
		}
		if !done {
			return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}
		}
		in.initProcedureCommand()
		in.step = p3TransitionCheckCmd
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p3TransitionCheckCmd:
		res, done := in.driveProcedureCommand(idnS00127)
		if done && res != NoError {
			in.abandonTo(CP2)
			return in.fault(res)
		}
		if !done {
			return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}
		}
		in.step = p3FinishPhaseCheck
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p3FinishPhaseCheck:
		in.step = p3BuildTelegrams
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p3BuildTelegrams:
		in.step = p3StartPhase
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p3StartPhase:
		in.step = p3CheckSlaveValid
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p3CheckSlaveValid:
		if !in.allSlaveValidObserved {
			return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}
		}
		in.step = p3Finished
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p3Finished:
		in.phase = CP3
		in.cyclesSincePhaseChange = 0
		in.step = 0
		return StepResult{Code: NoError}
	}

	return in.fault(IllegalCase)
}

// initProcedureCommand (re)initializes per-slave SVC status for a new
// procedure command, one entry per active slave.
func (in *Instance) initProcedureCommand() {
	active := in.Slaves.ActiveIndices()
	in.procActiveIndices = active
	in.svcStatuses = make([]svc.SlaveStatus, len(active))
	in.procState = procClearCmd
	in.resetSVCStatuses()
}

// driveProcedureCommand advances the four-state Clear->Set->SetCheck->
// ClearCmdAgain sub-machine one step for the given IDN, broadcasting to
// every active slave in parallel via the SVC helper. It returns the
// resulting Code and whether the command has reached a terminal state
// (success or failure).
func (in *Instance) driveProcedureCommand(idn uint16) (Code, bool) {
	if in.SVCPrimitive == nil {
		return SystemError, true
	}

	reqFor := func(i int) svc.Request {
		slaveIdx := in.procActiveIndices[i]
		req := svc.Request{SlaveIndex: slaveIdx, IDN: idn}
		switch in.procState {
		case procSetCmd, procSetCheck:
			req.Write = true
		case procClearCmdAgain:
			req.Write = true
		}
		return req
	}

	finished, err := in.svcHelp.Step(in.svcStatuses, reqFor, in.SVCPrimitive)
	if err != nil {
		return SystemError, true
	}

	if !finished {
		return FunctionInProcess, false
	}

	// This Step call finished the current sub-state for every slave;
	// check for any genuine error before advancing.
	for i, s := range in.svcStatuses {
		if s.State == svc.RequestError {
			slaveIdx := in.procActiveIndices[i]
			in.Diag.Add(slaveIdx, idn, s.ErrCode)
		}
	}
	if !in.Diag.Empty() {
		return errorCodeForIDN(idn), true
	}

	switch in.procState {
	case procClearCmd:
		in.procState = procSetCmd
		in.resetSVCStatuses()
		return FunctionInProcess, false
	case procSetCmd:
		in.procState = procSetCheck
		in.resetSVCStatuses()
		return FunctionInProcess, false
	case procSetCheck:
		in.procState = procClearCmdAgain
		in.resetSVCStatuses()
		return FunctionInProcess, false
	case procClearCmdAgain:
		in.procState = procDone
		return NoError, true
	}
	return SystemError, true
}

func (in *Instance) resetSVCStatuses() {
	for i := range in.svcStatuses {
		in.svcStatuses[i] = svc.SlaveStatus{MBusyMirror: true}
	}
}

func errorCodeForIDN(idn uint16) Code {
	switch idn {
	case idnS01024:
		return S01024CmdError
	case idnS00127:
		return CP3TransCheckCmdError
	case idnS00128:
		return CP4TransCheckCmdError
	default:
		return SystemError
	}
}
