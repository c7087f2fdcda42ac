package topology

import "github.com/sercos3/csmd/wire"

// ScanResult is the outcome of one AddressScan.Step call.
type ScanResult int

const (
	ScanInProgress ScanResult = iota
	ScanDone
	ScanTimeout
)

// AddressScan implements the spec.md §4.1 address-scan sub-protocol:
// sequence-counter and topology-index stability tracking with a total
// attempt budget and a stable-consecutive requirement.
type AddressScan struct {
	AttemptBudget    int
	StableTarget     int
	attemptsLeft     int
	stableLeft       int
	prevSeqP1        uint16
	prevSeqP2        uint16
	prevIndices      []uint16
	haveSample       bool
}

// DefaultAttemptBudget and DefaultStableTarget are spec.md §4.1's
// defaults (1000 and 100 respectively).
const (
	DefaultAttemptBudget = 1000
	DefaultStableTarget  = 100
)

// NewAddressScan returns a scan with the given budgets. A zero value
// for either selects the spec.md default.
func NewAddressScan(attemptBudget, stableTarget int) *AddressScan {
	if attemptBudget <= 0 {
		attemptBudget = DefaultAttemptBudget
	}
	if stableTarget <= 0 {
		stableTarget = DefaultStableTarget
	}
	s := &AddressScan{AttemptBudget: attemptBudget, StableTarget: stableTarget}
	s.Reset()
	return s
}

// Reset restarts the attempt and stable counters and forgets the
// previous sample. It does not touch any ring-delay accumulator; those
// live in package ringdelay and are reset by their owner.
func (s *AddressScan) Reset() {
	s.attemptsLeft = s.AttemptBudget
	s.stableLeft = s.StableTarget
	s.haveSample = false
	s.prevIndices = nil
}

// Step samples one cycle's sequence counters and topology-index words
// and advances the scan. topoIndices are the decoded per-slave
// topology-index words from the AT address-field region.
func (s *AddressScan) Step(seqP1, seqP2 uint16, topoIndices []wire.TopologyIndexWord) ScanResult {
	if s.attemptsLeft <= 0 {
		return ScanTimeout
	}
	s.attemptsLeft--

	stable := s.haveSample && seqP1 == s.prevSeqP1 && seqP2 == s.prevSeqP2
	if stable {
		stable = len(topoIndices) == len(s.prevIndices)
		if stable {
			for i, idx := range topoIndices {
				if idx != wire.TopologyIndexWord(s.prevIndices[i]) {
					stable = false
					break
				}
			}
		}
	}

	s.prevSeqP1, s.prevSeqP2 = seqP1, seqP2
	s.prevIndices = make([]uint16, len(topoIndices))
	for i, idx := range topoIndices {
		s.prevIndices[i] = uint16(idx)
	}
	s.haveSample = true

	if !stable {
		s.stableLeft = s.StableTarget
		return ScanInProgress
	}

	s.stableLeft--
	if s.stableLeft <= 0 {
		return ScanDone
	}
	return ScanInProgress
}

// AttemptsLeft and StableLeft expose the remaining counters, primarily
// for metrics/diagnostics.
func (s *AddressScan) AttemptsLeft() int { return s.attemptsLeft }
func (s *AddressScan) StableLeft() int   { return s.stableLeft }
