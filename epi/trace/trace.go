package trace

import "github.com/google/uuid"

// ChainTrace collects sweep records for one MCMC chain. Each trace is
// stamped with a run identifier so downstream summaries from different
// runs are never silently mixed.
type ChainTrace struct {
	RunID   string
	ChainID int
	Records []SweepRecord
}

// NewChainTrace creates a ChainTrace ready for recording.
func NewChainTrace(chainID int) *ChainTrace {
	return &ChainTrace{
		RunID:   uuid.NewString(),
		ChainID: chainID,
		Records: make([]SweepRecord, 0),
	}
}

// Record appends a sweep record.
func (t *ChainTrace) Record(r SweepRecord) {
	t.Records = append(t.Records, r)
}

// Len returns the number of recorded sweeps.
func (t *ChainTrace) Len() int { return len(t.Records) }

// At returns the record for sweep index i.
func (t *ChainTrace) At(i int) SweepRecord { return t.Records[i] }
