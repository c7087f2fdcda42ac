package phase

import "github.com/sercos3/csmd/wire"

// open_ring sub-states (spec.md §4.4 open_ring), the inverse of
// recover_ring: commands a FastForward pair to split the ring at a
// chosen point instead of closing it.
const (
	orFirstEntry = iota
	orValidateAdjacency
	orCommandLoopback
	orWaitHSEcho
	orFinished
)

// maxOpenRingHSEchoCycles bounds how long open_ring waits for the
// topology-HS echo before reissuing FastForward and aborting (spec.md
// §4.4 open_ring).
const maxOpenRingHSEchoCycles = 50

// adjacent reports whether addrA and addrB are directly adjacent in the
// topology-ordered recognized list, or one of them is the sentinel
// master-port address (0) and the other sits at an end of that list
// (spec.md §4.4 open_ring: "addrA and addrB are directly adjacent (or
// one is 0 meaning the master port and the other is directly connected
// to that port)").
func adjacent(recognized []wire.SercosAddress, addrA, addrB wire.SercosAddress) bool {
	n := len(recognized)
	if n == 0 {
		return false
	}
	if addrA == 0 && addrB == 0 {
		return false
	}
	if addrA == 0 {
		return recognized[0] == addrB || recognized[n-1] == addrB
	}
	if addrB == 0 {
		return recognized[0] == addrA || recognized[n-1] == addrA
	}
	idxA, okA := indexOfAddress(recognized, addrA)
	idxB, okB := indexOfAddress(recognized, addrB)
	if !okA || !okB {
		return false
	}
	diff := idxA - idxB
	return diff == 1 || diff == -1
}

func indexOfAddress(addrs []wire.SercosAddress, addr wire.SercosAddress) (int, bool) {
	for i, a := range addrs {
		if a == addr {
			return i, true
		}
	}
	return 0, false
}

// OpenRing drives the open_ring(addrA, addrB) state machine, the
// inverse of RecoverRing: it splits a closed ring at the boundary
// between addrA and addrB by commanding loopback+forward on each side
// and waiting for the topology-HS echo (spec.md §4.4).
func (in *Instance) OpenRing(addrA, addrB wire.SercosAddress) StepResult {
	switch in.step {
	case orFirstEntry:
		in.beginTransition()
		in.openRingAddrA, in.openRingAddrB = addrA, addrB
		in.openRingHSEchoed = false
		in.step = orValidateAdjacency
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case orValidateAdjacency:
		if !adjacent(in.Slaves.Recognized, addrA, addrB) {
			in.openRingAddrA, in.openRingAddrB = 0, 0
			in.step = orFirstEntry
			return in.fault(OpenRingInvalidAddr)
		}
		in.step = orCommandLoopback
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case orCommandLoopback:
		// Loopback+Forward-of-P is issued to the slave on the port-1
		// side of the break, Loopback+Forward-of-S to the slave on the
		// port-2 side; the cyclic driver loop reads
		// OpenRingCommand(addr) to know which C-DEV topology-command
		// field to write for each side (spec.md §6 C-DEV word).
		in.recoverStartCycle = in.cyclesSincePhaseChange
		in.step = orWaitHSEcho
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case orWaitHSEcho:
		if in.openRingHSEchoed {
			in.step = orFinished
			return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}
		}
		if in.cyclesSincePhaseChange-in.recoverStartCycle > maxOpenRingHSEchoCycles {
			// Reissue FastForward on both sides and abort (spec.md §4.4
			// open_ring: "on failure reissues FastForward and returns
			// OpenRingError").
			in.openRingAddrA, in.openRingAddrB = 0, 0
			in.step = orFirstEntry
			return in.fault(OpenRingError)
		}
		return StepResult{Code: FunctionInProcess, SleepTime: in.Config.StepTimeoutBase}

	case orFinished:
		in.step = 0
		return StepResult{Code: OpenRingOk}
	}

	return in.fault(IllegalCase)
}

// OpenRingCommand returns the C-DEV topology command the driver loop
// should write for addr once OpenRing has started, and after it has
// succeeded: Loopback+Forward-of-P for the addrA side,
// Loopback+Forward-of-S for the addrB side, FastForward otherwise. A
// failed OpenRing clears both addresses, so every slave then gets
// FastForward.
func (in *Instance) OpenRingCommand(addr wire.SercosAddress) wire.TopologyCommand {
	switch addr {
	case in.openRingAddrA:
		return wire.TopoCmdLoopbackFwdP
	case in.openRingAddrB:
		return wire.TopoCmdLoopbackFwdS
	default:
		return wire.TopoCmdFastForward
	}
}

// RecordOpenRingHSEcho is invoked by cyclic processing once both
// commanded slaves' S-DEV.Topology-HS bits have echoed the command
// (spec.md §4.4 open_ring: "verifies that the topology-HS bit echoes
// back").
func (in *Instance) RecordOpenRingHSEcho(echoed bool) { in.openRingHSEchoed = echoed }
