// Package trace provides per-chain MCMC trace recording and posterior
// summarization: sampled parameters, log-likelihoods, acceptance
// bookkeeping, and thinned snapshots of event histories and transmission
// networks, each addressable by sweep index.
package trace

import "github.com/epinet-sim/epinet-sim/epi"

// SweepRecord captures the state of one chain after one sweep.
type SweepRecord struct {
	Sweep         int
	Params        epi.RiskParameters
	LogLikelihood float64
	LogPrior      float64

	// ParamsAccepted maps risk-slot name to whether that group's
	// random-walk proposal was accepted this sweep. Groups with empty
	// parameter vectors are absent.
	ParamsAccepted map[string]bool

	// EventBatchesAccepted counts accepted latent event-time batches out
	// of EventBatches proposed this sweep.
	EventBatchesAccepted int
	EventBatches         int

	// Events and Network are snapshots kept per the thinning interval;
	// nil on unthinned sweeps.
	Events  *epi.EventHistory
	Network *epi.TransmissionNetwork
}
