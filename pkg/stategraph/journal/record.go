package journal

import (
	"encoding/json"
	"fmt"
	"time"
)

// Version is the current record format version.
const Version = 1

// Outcome is how a step ended.
type Outcome string

// Step outcomes.
const (
	// OutcomeMerged means the step merged and a non-empty frontier follows.
	OutcomeMerged Outcome = "merged"
	// OutcomeTerminated means the step merged and every path reached END.
	OutcomeTerminated Outcome = "terminated"
	// OutcomeFailed means a node, merge or routing error ended the run.
	OutcomeFailed Outcome = "failed"
	// OutcomeCancelled means the run was cancelled or timed out during the step.
	OutcomeCancelled Outcome = "cancelled"
)

// Record describes one scheduler step.
type Record struct {
	Version   int           `json:"version"`
	RunID     string        `json:"run_id"`
	Step      int           `json:"step"`
	Frontier  []string      `json:"frontier"`
	Next      []string      `json:"next,omitempty"`
	Outcome   Outcome       `json:"outcome"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// New creates a record for a step of a run.
func New(runID string, step int, frontier []string) Record {
	return Record{
		Version:   Version,
		RunID:     runID,
		Step:      step,
		Frontier:  append([]string(nil), frontier...),
		Timestamp: time.Now().UTC(),
	}
}

// Validate reports whether the record can be stored.
func (r Record) Validate() error {
	if r.RunID == "" {
		return fmt.Errorf("%w: empty run ID", ErrInvalidRecord)
	}
	if r.Step < 1 {
		return fmt.Errorf("%w: step %d", ErrInvalidRecord, r.Step)
	}
	return nil
}

// Marshal serializes a record to JSON.
func (r Record) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// Unmarshal deserializes a record from JSON.
func Unmarshal(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, err
	}
	return r, nil
}
