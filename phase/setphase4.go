package phase

// minCyclesBeforeCC4Clear is the minimum number of Sercos cycles the
// core waits after entering CP4 before clearing CC-data TxRam (spec.md
// §4.4: "waits >=3 Sercos cycles").
const minCyclesBeforeCC4Clear = 3

const (
	p4FirstEntry = iota
	p4TransitionCheckCmd
	p4SwitchPhaseRegister
	p4WaitCycles
	p4ConfigureRxBuffer
	p4Finished
)

// SetPhase4 executes the CP4 transition check (S-0-0128), switches the
// phase register, clears CC-data TxRam after waiting >=3 cycles, then
// configures the Rx-buffer cycle so NewData is asserted every cycle
// regardless of AT reception (spec.md §4.4).
func (in *Instance) SetPhase4() StepResult {
	// Once the phase register has been switched, the remaining steps run
	// with the instance already in CP4.
	switched := in.phase == CP4 && in.step > p4SwitchPhaseRegister
	if in.phase != CP3 && !switched {
		return in.fault(WrongPhase)
	}

	switch in.step {
	case p4FirstEntry:
		in.beginTransition()
		in.initProcedureCommand()
		in.step = p4TransitionCheckCmd
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p4TransitionCheckCmd:
		res, done := in.driveProcedureCommand(idnS00128)
		if done && res != NoError {
			in.abandonTo(CP3)
			return in.fault(res)
		}
		if !done {
			return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}
		}
		in.step = p4SwitchPhaseRegister
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p4SwitchPhaseRegister:
		in.phase = CP4
		in.cyclesSincePhaseChange = 0
		in.step = p4WaitCycles
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p4WaitCycles:
		if in.cyclesSincePhaseChange < minCyclesBeforeCC4Clear {
			return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}
		}
		in.step = p4ConfigureRxBuffer
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p4ConfigureRxBuffer:
		in.step = p4Finished
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case p4Finished:
		in.step = 0
		return StepResult{Code: NoError}
	}

	return in.fault(IllegalCase)
}
