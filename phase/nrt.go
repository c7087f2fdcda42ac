package phase

import (
	"github.com/sercos3/csmd/slave"
	"github.com/sercos3/csmd/topology"
)

// SetNRT forces the instance into NRT, resetting all per-slave state
// (spec.md §3/§5: "the application may force NRT entry at any time;
// that resets all per-slave state"). It is always a one-shot
// transition, never FunctionInProcess.
func (in *Instance) SetNRT() StepResult {
	in.abandonTo(NRT)
	in.topology = topology.NoLink
	in.Diag.Clear()
	for i := range in.Slaves.Projected {
		in.Slaves.SetActivity(i, slave.Inactive)
	}
	if err := in.HAL.SVCEngineEnable(false); err != nil {
		in.Log.WithError(err).Warn("SVC engine disable failed during set_nrt")
	}
	in.emit(EventStopCommunication)
	return StepResult{Code: NoError}
}
