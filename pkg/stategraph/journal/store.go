// Package journal records an audit trail of scheduler steps.
//
// A journal entry describes one superstep: which nodes ran, which nodes were
// scheduled next, how long it took and how it ended. Journals hold no state
// values and cannot be used to resume a run; they exist for debugging and
// operational visibility.
package journal

import (
	"errors"
)

// Store persists step records.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append stores one step record.
	// Returns ErrDuplicateStep if (RunID, Step) is already recorded.
	Append(rec Record) error

	// List returns every record of a run ordered by step.
	// Returns an empty slice (not an error) if the run is unknown.
	List(runID string) ([]Record, error)

	// Runs returns the IDs of all recorded runs in sorted order.
	Runs() ([]string, error)

	// DeleteRun removes all records for a run.
	// Returns nil if the run has no records.
	DeleteRun(runID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for journal operations.
var (
	// ErrDuplicateStep indicates a record for the same run and step exists.
	ErrDuplicateStep = errors.New("step already recorded")

	// ErrInvalidRecord indicates a record without a run ID or step number.
	ErrInvalidRecord = errors.New("invalid journal record")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("journal store closed")
)
