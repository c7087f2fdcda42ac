// Package svc implements the service-channel broadcast helper of
// spec.md §4.5: a per-slave parallel driver for the Clear→Set→Verify→
// Clear procedure-command sequence, built on top of the externally
// provided per-slave SVC primitive.
package svc

import (
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
)

// State is a per-slave SVC state, mirroring the bitfield the hardware
// reports for a service-channel container.
type State int

const (
	CmdIdle State = iota
	CmdActive
	CmdStatusValid
	CmdCleared
	RequestError
)

// errCommandAlreadyActive is SVC error 0x7010: "command already active",
// legitimately reported by multi-axis devices sharing one SVC and must
// not be treated as failure (spec.md §4.5).
const errCommandAlreadyActive = 0x7010

// Request is the per-slave request record the helper hands to the SVC
// primitive: an IDN, an element selector, and the write payload (when
// writing).
type Request struct {
	SlaveIndex int
	IDN        uint16
	Element    uint8
	Write      bool
	Data       []byte
}

// Result is what the SVC primitive reports back for one invocation.
type Result struct {
	State   State
	ErrCode uint32
	Data    []byte
}

// Primitive is the externally-provided per-slave SVC transaction driver.
// A real implementation drives the hardware SVC container for
// req.SlaveIndex; Broadcast only sequences calls to it.
type Primitive func(req Request) (Result, error)

// SlaveStatus is the per-slave bookkeeping the broadcast loop tracks
// across calls to Step.
type SlaveStatus struct {
	MBusyMirror bool
	State       State
	ErrCode     uint32
}

// terminal reports whether s is a terminal state for this sub-step:
// CmdCleared, CmdActive, CmdStatusValid, or a genuine (non-ignorable)
// error.
func (s SlaveStatus) terminal() bool {
	switch s.State {
	case CmdCleared, CmdActive, CmdStatusValid:
		return true
	case RequestError:
		return s.ErrCode != errCommandAlreadyActive
	default:
		return false
	}
}

// Broadcast drives one procedure-command step against every active
// slave. It stamps a correlation ID for the step (surfaced in log
// fields so a caller can join the log lines for one step across
// slaves), invokes prim for every slave whose MBUSY mirror is set and
// whose state is not already a skip state, and reports Finished only
// once every active slave has reached a terminal state.
type Broadcast struct {
	Log *logrus.Logger
}

// NewBroadcast returns a Broadcast helper using logger l ( nil selects
// logrus's standard logger).
func NewBroadcast(l *logrus.Logger) *Broadcast {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &Broadcast{Log: l}
}

// Step drives one sub-step iteration across the given slave statuses,
// invoking prim for slaves ready to be (re-)driven. It mutates statuses
// in place and returns whether every slave has reached a terminal state
// (Finished).
func (b *Broadcast) Step(statuses []SlaveStatus, reqFor func(slaveIdx int) Request, prim Primitive) (finished bool, err error) {
	corrID := xid.New()
	finished = true
	for i := range statuses {
		s := &statuses[i]

		if s.State == CmdCleared || s.State == CmdActive || s.State == CmdStatusValid {
			continue
		}
		if s.State == RequestError && s.ErrCode != errCommandAlreadyActive {
			continue
		}
		if !s.MBusyMirror {
			finished = false
			continue
		}

		res, err := prim(reqFor(i))
		if err != nil {
			b.Log.WithFields(logrus.Fields{
				"correlation_id": corrID.String(),
				"slave_idx":      i,
			}).WithError(err).Warn("svc primitive call failed")
			finished = false
			continue
		}

		if res.State == RequestError && res.ErrCode == errCommandAlreadyActive {
			b.Log.WithFields(logrus.Fields{
				"correlation_id": corrID.String(),
				"slave_idx":      i,
			}).Debug("svc command already active, ignoring")
			s.State = CmdActive
			s.ErrCode = 0
			finished = false
			continue
		}

		s.State = res.State
		s.ErrCode = res.ErrCode

		if !SlaveStatus(*s).terminal() {
			finished = false
		}
	}
	return finished, nil
}

// AllTerminal reports whether every slave status has reached a
// terminal state, independent of a Step call.
func AllTerminal(statuses []SlaveStatus) bool {
	for _, s := range statuses {
		if !s.terminal() {
			return false
		}
	}
	return true
}
