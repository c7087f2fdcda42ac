package phase

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sercos3/csmd/diag"
	"github.com/sercos3/csmd/hal"
	"github.com/sercos3/csmd/ringdelay"
	"github.com/sercos3/csmd/slave"
	"github.com/sercos3/csmd/svc"
	"github.com/sercos3/csmd/telegrambuild"
	"github.com/sercos3/csmd/topology"
	"github.com/sercos3/csmd/wire"
)

// Phase is one of {NRT, CP0, CP1, CP2, CP3, CP4} (spec.md §3).
type Phase int

const (
	NRT Phase = iota
	CP0
	CP1
	CP2
	CP3
	CP4
)

func (p Phase) String() string {
	switch p {
	case NRT:
		return "NRT"
	case CP0:
		return "CP0"
	case CP1:
		return "CP1"
	case CP2:
		return "CP2"
	case CP3:
		return "CP3"
	case CP4:
		return "CP4"
	default:
		return "Unknown"
	}
}

// canAdvanceTo reports whether a transition from p to next is legal
// under spec.md §3's invariant: sequential advance, any-phase-to-NRT-
// or-CP0 abandon, and CP0->CP0 fast restart.
func (p Phase) canAdvanceTo(next Phase) bool {
	if next == NRT || next == CP0 {
		return true
	}
	return int(next) == int(p)+1
}

// Event is the event-callback surface to the UC channel driver
// (spec.md §6).
type Event int

const (
	EventStartCommunication Event = iota
	EventStopCommunication
	EventRingBreak
	EventRingClosed
)

// EventCallback receives Instance lifecycle events. Implementations
// must be non-blocking: topology-edge callbacks fire from inside
// cyclic processing, which may run from an ISR bottom-half (spec.md
// §5).
type EventCallback func(ev Event)

// RAMAllocCallback reports TxRAM/RxRAM usage after a layout pass
// (spec.md §6 on_ram_alloc).
type RAMAllocCallback func(txS3Used, txTotal, rxS3Used, rxTotal int)

// StepResult is what every set_phase_*/recover_ring/open_ring call
// returns: a Code (NoError/FunctionInProcess/a terminal success or
// error code) and the duration the caller must wait before
// re-invoking (spec.md §5).
type StepResult struct {
	Code      Code
	SleepTime time.Duration

	// Err is non-nil on terminal error/guard-rejection returns: a
	// *Fault (spec.md §7) wrapping Code with an optional cause and a
	// Diagnostics snapshot of in.Diag at the point of failure, so
	// callers can use errors.Is/errors.As instead of comparing Code
	// directly (SPEC_FULL.md §10.2).
	Err error
}

// Instance is the singleton bus-master core of spec.md §3: never
// cloned, always passed by exclusive reference to mutating operations.
type Instance struct {
	HAL    hal.HAL
	Config Config
	Log    *logrus.Logger

	phase    Phase
	topology topology.Topology

	Slaves *slave.List
	Diag   *diag.Record

	errMon   *topology.ErrorMonitor
	scan     *topology.AddressScan
	rdEngine *ringdelay.Engine
	svcHelp  *svc.Broadcast
	builder  *telegrambuild.Builder

	// MDTLayout/ATLayout are the current phase's telegram-RAM layout,
	// rebuilt once per phase entry by rebuildTelegramLayout (spec.md
	// §2 component 2: "invoked once per phase entry... records
	// per-slave pointers into the instance state").
	MDTLayout telegrambuild.Layout
	ATLayout  telegrambuild.Layout

	OnEvent    EventCallback
	OnEventISR EventCallback
	OnRAMAlloc RAMAllocCallback

	// SVCPrimitive is the externally-provided per-slave service-channel
	// transaction driver used by set_phase_3/4 and recover_ring to run
	// procedure commands (spec.md §4.5).
	SVCPrimitive svc.Primitive

	cycleCount             uint64
	cyclesSincePhaseChange uint64

	multipleSAddress bool

	// cooperative step bookkeeping, reset on every phase-change attempt
	step int

	hotPlugActivity map[wire.SercosAddress]bool

	// set_phase_0 address-scan bookkeeping
	pendingScanSample *addressScanSample
	lastScanIndices   []wire.TopologyIndexWord
	observedSeqDelta  int

	// set_phase_1/2 bookkeeping
	allSlaveValidObserved      bool
	allSVCValidObserved        bool
	allSVCHandshakeAckObserved bool
	svcMHS                     wire.SVCControlWord

	accP1, accP2    *ringdelay.Accumulator
	perSlaveJitter  []int64
	hotPlugReserve  int64
	RingDelayResult ringdelay.Result

	// set_phase_3/4 and recover_ring/open_ring bookkeeping
	svcStatuses       []svc.SlaveStatus
	softwareSVCCount  int
	procActiveIndices []int
	procState         procState

	// recover_ring bookkeeping (spec.md §4.4 recover_ring)
	recoverStartCycle          uint64
	breakPointLoopbackObserved bool
	topologyHSToggled          bool

	// open_ring bookkeeping (spec.md §4.4 open_ring)
	openRingAddrA, openRingAddrB wire.SercosAddress
	openRingHSEchoed             bool
}

// NewInstance constructs an Instance in phase NRT.
func NewInstance(h hal.HAL, cfg Config, projected []wire.SercosAddress, log *logrus.Logger) *Instance {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Instance{
		HAL:             h,
		Config:          cfg,
		Log:             log,
		phase:           NRT,
		topology:        topology.NoLink,
		Slaves:          slave.NewList(projected),
		Diag:            diag.NewRecord(),
		errMon:          topology.NewErrorMonitor(cfg.MaxConsecutiveTelegramErrors),
		scan:            topology.NewAddressScan(cfg.AddressScanAttemptBudget, cfg.AddressScanStableTarget),
		rdEngine:        ringdelay.NewEngine(cfg.RingDelayStrategy),
		svcHelp:         svc.NewBroadcast(log),
		builder: &telegrambuild.Builder{
			FirstMDTCarriesHotPlug: !cfg.AllMDTsCarryHotPlug,
			AllMDTsCarryHotPlug:    cfg.AllMDTsCarryHotPlug,
		},
		hotPlugActivity: make(map[wire.SercosAddress]bool),
		accP1:           ringdelay.NewAccumulator(),
		accP2:           ringdelay.NewAccumulator(),
	}
}

// Phase returns the current communication phase.
func (in *Instance) Phase() Phase { return in.phase }

// Topology returns the current recognized topology.
func (in *Instance) Topology() topology.Topology { return in.topology }

// CycleCount is the number of cyclic-processing calls observed since
// init, supplementing spec.md with the original's CP-aux cycle counter
// (SPEC_FULL.md §11.1 item 4).
func (in *Instance) CycleCount() uint64 { return in.cycleCount }

// CyclesSincePhaseChange resets to zero at every successful phase
// transition.
func (in *Instance) CyclesSincePhaseChange() uint64 { return in.cyclesSincePhaseChange }

// Tick advances the cycle counters; callers invoke this once per
// cyclic-processing pass (i.e. once per Sercos cycle), independent of
// how often a set_phase_* function itself is called.
func (in *Instance) Tick() {
	in.cycleCount++
	in.cyclesSincePhaseChange++
}

// HotPlugCheck records that a slave's hot-plug line was seen active
// this cycle (SPEC_FULL.md §11.1 item 1, grounded in the original's
// CSMD_PHASEDEV.c activity tracking).
func (in *Instance) HotPlugCheck(addr wire.SercosAddress, active bool) {
	in.hotPlugActivity[addr] = active
}

// HotPlugActive reports the last-recorded hot-plug activity for addr.
func (in *Instance) HotPlugActive(addr wire.SercosAddress) bool {
	return in.hotPlugActivity[addr]
}

// RingDelayAccumulators exposes the live per-port sample accumulators
// (sum/count/min/max, spec.md §3 RingDelay) for diagnostics and metrics
// export; callers must not mutate the returned accumulators.
func (in *Instance) RingDelayAccumulators() (p1, p2 *ringdelay.Accumulator) {
	return in.accP1, in.accP2
}

// MultipleSAddress reports whether the last address scan observed a
// recognized address more than once (spec.md §3 invariant: forbids
// progression past CP2).
func (in *Instance) MultipleSAddress() bool { return in.multipleSAddress }

// emit fires OnEvent if set, logging the event at Info level.
func (in *Instance) emit(ev Event) {
	in.Log.WithFields(logrus.Fields{"phase": in.phase.String(), "event": int(ev)}).Info("phase event")
	if in.OnEvent != nil {
		in.OnEvent(ev)
	}
}

// beginTransition resets the per-transition step counter and clears the
// diagnostic record (spec.md §7: "cleared at the start of every phase
// transition").
func (in *Instance) beginTransition() {
	in.step = 0
	in.Diag.Clear()
}

// abandonTo forces the instance to phase p unconditionally, used by
// set_nrt and by any set_phase_* failure path that must abandon the
// transition in progress (spec.md §3: "any phase may be abandoned to
// NRT or CP0").
func (in *Instance) abandonTo(p Phase) {
	in.phase = p
	in.step = 0
	in.cyclesSincePhaseChange = 0
}

// rebuildTelegramLayout lays out the MDT and AT telegrams for nSlaves
// slaves via telegrambuild.Builder, storing the result (and each
// slave's service-channel/payload pointers) on the instance (spec.md
// §2 component 2). It is invoked once per phase entry: CP0 entry lays
// out against the projected slave count, CP1 entry rebuilds it against
// the now-recognized count.
func (in *Instance) rebuildTelegramLayout(nSlaves int) {
	in.MDTLayout = in.builder.Build(wire.MDT, 0, nSlaves, in.Config.ConnectionPayloadLen)
	in.ATLayout = in.builder.Build(wire.AT, 0, nSlaves, in.Config.ConnectionPayloadLen)
}

// fault builds a terminal-error StepResult for code, attaching a
// Diagnostics snapshot of in.Diag when it holds any recorded slave
// errors (spec.md §7: "the extended-diagnostic list is populated with
// indices and per-slave error codes"). Every set_phase_*/recover_ring/
// open_ring guard rejection and abort path returns through this so
// StepResult.Err is always a *Fault a caller can errors.Is/errors.As
// against.
func (in *Instance) fault(code Code) StepResult {
	f := NewFault(code)
	if in.Diag != nil && !in.Diag.Empty() {
		first, _ := in.Diag.First()
		f = f.WithDiagnostics(Diagnostics{
			FirstSlaveIndex: first.SlaveIndex,
			FirstErrorCode:  first.Code,
			NbrSlaves:       in.Diag.NbrSlaves(),
		})
	}
	return StepResult{Code: code, Err: f}
}

// SlaveSlot returns the current MDT layout's per-slave service-channel
// and payload pointers for the slave at dense index idx, recorded by
// the most recent rebuildTelegramLayout call.
func (in *Instance) SlaveSlot(idx int) (telegrambuild.SlaveSlot, bool) {
	if idx < 0 || idx >= len(in.MDTLayout.Slots) {
		return telegrambuild.SlaveSlot{}, false
	}
	return in.MDTLayout.Slots[idx], true
}
