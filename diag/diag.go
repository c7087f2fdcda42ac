// Package diag implements the per-slave extended-diagnostic record
// (spec.md §7): cleared at the start of every phase transition, populated
// as service-channel or slave-state errors occur, and tagged with an
// xid.ID that is stamped when the record is created and again on Clear.
package diag

import (
	"fmt"

	"github.com/rs/xid"
)

// SlaveError is one entry in the extended-diagnostic list: a slave index,
// an IDN (service-channel parameter identifier) where applicable, and an
// error code as reported by the slave or inferred by the broadcast helper.
type SlaveError struct {
	SlaveIndex int
	IDN        uint16
	Code       uint32
}

func (e SlaveError) String() string {
	return fmt.Sprintf("slave[%d] idn=0x%04x code=0x%08x", e.SlaveIndex, e.IDN, e.Code)
}

// Record is the extended-diagnostic record {nbr_slaves, idn, slave_idx[],
// slave_error[]} of spec.md §7, tagged with a correlation ID of its own.
// The ID is not shared with svc.Broadcast, which stamps a separate one
// per Step call into its log fields.
type Record struct {
	CorrelationID xid.ID
	Errors        []SlaveError
}

// NewRecord starts a fresh diagnostic record for one phase transition or
// broadcast step, stamping a new correlation ID.
func NewRecord() *Record {
	return &Record{CorrelationID: xid.New()}
}

// Clear empties the record in place, preserving identity for callers that
// hold a pointer to it (spec.md §7: "cleared at the start of every phase
// transition").
func (r *Record) Clear() {
	r.CorrelationID = xid.New()
	r.Errors = r.Errors[:0]
}

// Add appends a slave error to the record.
func (r *Record) Add(slaveIdx int, idn uint16, code uint32) {
	r.Errors = append(r.Errors, SlaveError{SlaveIndex: slaveIdx, IDN: idn, Code: code})
}

// Empty reports whether no errors have been recorded.
func (r *Record) Empty() bool { return len(r.Errors) == 0 }

// NbrSlaves is the count of distinct slave indices with at least one
// recorded error.
func (r *Record) NbrSlaves() int {
	seen := make(map[int]struct{}, len(r.Errors))
	for _, e := range r.Errors {
		seen[e.SlaveIndex] = struct{}{}
	}
	return len(seen)
}

// First returns the first recorded error, used by step-level error
// aggregation that "identifies the first failing slave's code" (spec.md
// §4.4, Failure semantics per phase).
func (r *Record) First() (SlaveError, bool) {
	if len(r.Errors) == 0 {
		return SlaveError{}, false
	}
	return r.Errors[0], true
}
