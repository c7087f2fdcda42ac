// Package phase implements the Communication-Phase state machine of
// spec.md §4.4: the Instance, the set_phase_* cooperative reentrant
// machines, recover_ring, open_ring, and the closed error-code set.
package phase

import "fmt"

// Code is the closed set of return codes from spec.md §6.
type Code int

const (
	NoError Code = iota
	FunctionInProcess
	WrongPhase
	WarningSamePhase
	InvalidSercosCycleTime
	WrongProjectedSlaveList
	IllegalSlaveAddress
	ErrorDoubleAddress
	ErrorDoubleRecognizedAddress
	ProjSlavesNotOneToOne
	ErrorPhaseChangeCheck
	ErrorPhaseChangeStart
	ErrorTimeoutP0
	NoCommunicationP0
	LoopNotClosed
	InconsistentRingAddresses
	NoStableTopologyInCP0
	CP0ComVerCheck
	S01024CmdError
	CP3TransCheckCmdError
	CP4TransCheckCmdError
	NoUniqueRecognizedAddresses
	NoLinkAttached
	NoTelegramsReceived
	MstMiss
	MstWindowError
	TelErrorOverrun
	TopologyChange
	WrongTopology
	RecoverRingError
	RecoverRingOK
	RingRecoveryAborted
	OpenRingOk
	OpenRingError
	OpenRingInvalidAddr
	IllegalCase
	SystemError
	LineBreakError
	NoRamMirrorAllocated
	WarnTooFewTxRamForUCC
	WarnTooFewRxRamForUCC
)

var codeNames = map[Code]string{
	NoError:                      "NoError",
	FunctionInProcess:            "FunctionInProcess",
	WrongPhase:                   "WrongPhase",
	WarningSamePhase:             "WarningSamePhase",
	InvalidSercosCycleTime:       "InvalidSercosCycleTime",
	WrongProjectedSlaveList:      "WrongProjectedSlaveList",
	IllegalSlaveAddress:          "IllegalSlaveAddress",
	ErrorDoubleAddress:           "ErrorDoubleAddress",
	ErrorDoubleRecognizedAddress: "ErrorDoubleRecognizedAddress",
	ProjSlavesNotOneToOne:        "ProjSlavesNotOneToOne",
	ErrorPhaseChangeCheck:        "ErrorPhaseChangeCheck",
	ErrorPhaseChangeStart:        "ErrorPhaseChangeStart",
	ErrorTimeoutP0:               "ErrorTimeoutP0",
	NoCommunicationP0:            "NoCommunicationP0",
	LoopNotClosed:                "LoopNotClosed",
	InconsistentRingAddresses:    "InconsistentRingAddresses",
	NoStableTopologyInCP0:        "NoStableTopologyInCP0",
	CP0ComVerCheck:               "CP0ComVerCheck",
	S01024CmdError:               "S01024CmdError",
	CP3TransCheckCmdError:        "CP3TransCheckCmdError",
	CP4TransCheckCmdError:        "CP4TransCheckCmdError",
	NoUniqueRecognizedAddresses:  "NoUniqueRecognizedAddresses",
	NoLinkAttached:               "NoLinkAttached",
	NoTelegramsReceived:          "NoTelegramsReceived",
	MstMiss:                      "MstMiss",
	MstWindowError:               "MstWindowError",
	TelErrorOverrun:              "TelErrorOverrun",
	TopologyChange:               "TopologyChange",
	WrongTopology:                "WrongTopology",
	RecoverRingError:             "RecoverRingError",
	RecoverRingOK:                "RecoverRingOK",
	RingRecoveryAborted:          "RingRecoveryAborted",
	OpenRingOk:                   "OpenRingOk",
	OpenRingError:                "OpenRingError",
	OpenRingInvalidAddr:          "OpenRingInvalidAddr",
	IllegalCase:                  "IllegalCase",
	SystemError:                  "SystemError",
	LineBreakError:               "LineBreakError",
	NoRamMirrorAllocated:         "NoRamMirrorAllocated",
	WarnTooFewTxRamForUCC:        "WarnTooFewTxRamForUCC",
	WarnTooFewRxRamForUCC:        "WarnTooFewRxRamForUCC",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Diagnostics carries the extended-diagnostic snapshot referenced by a
// Fault (spec.md §7): the first failing slave's index and code, and the
// total number of distinct slaves affected.
type Diagnostics struct {
	FirstSlaveIndex int
	FirstErrorCode  uint32
	NbrSlaves       int
}

// Fault wraps a Code with an optional cause and diagnostics snapshot.
type Fault struct {
	Code        Code
	Diagnostics *Diagnostics
	Cause       error
}

func (f *Fault) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %v", f.Code, f.Cause)
	}
	return f.Code.String()
}

func (f *Fault) Unwrap() error { return f.Cause }

// Is supports errors.Is comparisons against a bare Code value wrapped
// in a Fault with no cause, and against another *Fault with the same
// Code.
func (f *Fault) Is(target error) bool {
	if other, ok := target.(*Fault); ok {
		return other.Code == f.Code
	}
	return false
}

// NewFault constructs a Fault with no cause or diagnostics.
func NewFault(code Code) *Fault {
	return &Fault{Code: code}
}

// Wrap constructs a Fault wrapping cause.
func Wrap(code Code, cause error) *Fault {
	return &Fault{Code: code, Cause: cause}
}

// WithDiagnostics attaches a diagnostics snapshot to a copy of f.
func (f *Fault) WithDiagnostics(d Diagnostics) *Fault {
	nf := *f
	nf.Diagnostics = &d
	return &nf
}

// ErrWrongPhase constructs a Fault for the caller-misuse kind of error
// (spec.md §7 kind 2): a set_phase_* guard rejected the call because
// the instance wasn't in the expected predecessor phase. cause may be
// nil.
func ErrWrongPhase(cause error) *Fault {
	return Wrap(WrongPhase, cause)
}

// ErrTimeout constructs a Fault for the timeout/slave-misbehavior kind
// of error (spec.md §7 kind 3): a phase transition's step budget was
// exhausted before every slave reached the expected state. cause may
// be nil.
func ErrTimeout(cause error) *Fault {
	return Wrap(ErrorTimeoutP0, cause)
}
