package trace

import (
	"fmt"

	"github.com/montanaflynn/stats"

	"github.com/epinet-sim/epinet-sim/epi"
)

// ParamSummary aggregates the posterior draws of one parameter dimension.
type ParamSummary struct {
	Mean   float64
	Median float64
	Lower  float64 // lower credible bound
	Upper  float64 // upper credible bound
}

// Summary aggregates a chain trace into posterior quantities.
type Summary struct {
	RunID   string
	ChainID int
	Sweeps  int

	MeanLogLikelihood float64

	// AcceptanceRates maps risk-slot name to the fraction of accepted
	// parameter proposals.
	AcceptanceRates map[string]float64
	// EventAcceptanceRate is the fraction of accepted latent event-time
	// batches across all sweeps.
	EventAcceptanceRate float64

	// Params maps risk-slot name to per-dimension posterior summaries.
	Params map[string][]ParamSummary

	// MeanExternal[i] is the posterior probability that i's infection was
	// an external spark; MeanInternal[j][i] the posterior probability that
	// j infected i. Computed over network snapshots; nil when the trace
	// holds none.
	MeanExternal []float64
	MeanInternal [][]float64
}

// Summarize computes posterior summaries from a chain trace. credMass is
// the central credible-interval mass, e.g. 0.95 for a 2.5%–97.5% interval.
func Summarize(t *ChainTrace, credMass float64) (*Summary, error) {
	if t == nil || len(t.Records) == 0 {
		return nil, fmt.Errorf("empty chain trace")
	}
	if credMass <= 0 || credMass >= 1 {
		return nil, fmt.Errorf("credible mass %v must lie in (0, 1)", credMass)
	}
	s := &Summary{
		RunID:           t.RunID,
		ChainID:         t.ChainID,
		Sweeps:          len(t.Records),
		AcceptanceRates: make(map[string]float64),
		Params:          make(map[string][]ParamSummary),
	}

	lls := make([]float64, len(t.Records))
	for i, r := range t.Records {
		lls[i] = r.LogLikelihood
	}
	var err error
	if s.MeanLogLikelihood, err = stats.Mean(lls); err != nil {
		return nil, fmt.Errorf("summarizing log-likelihood: %w", err)
	}

	accepted := make(map[string]int)
	proposed := make(map[string]int)
	batchesAccepted, batchesProposed := 0, 0
	for _, r := range t.Records {
		for slot, ok := range r.ParamsAccepted {
			proposed[slot]++
			if ok {
				accepted[slot]++
			}
		}
		batchesAccepted += r.EventBatchesAccepted
		batchesProposed += r.EventBatches
	}
	for slot, p := range proposed {
		s.AcceptanceRates[slot] = float64(accepted[slot]) / float64(p)
	}
	if batchesProposed > 0 {
		s.EventAcceptanceRate = float64(batchesAccepted) / float64(batchesProposed)
	}

	tail := (1 - credMass) / 2 * 100
	for _, slot := range epi.RiskSlots {
		dims := len(t.Records[0].Params.Slot(slot))
		if dims == 0 {
			continue
		}
		summaries := make([]ParamSummary, dims)
		for d := 0; d < dims; d++ {
			draws := make([]float64, len(t.Records))
			for i, r := range t.Records {
				draws[i] = r.Params.Slot(slot)[d]
			}
			var ps ParamSummary
			if ps.Mean, err = stats.Mean(draws); err != nil {
				return nil, fmt.Errorf("summarizing %s[%d]: %w", slot, d, err)
			}
			if ps.Median, err = stats.Median(draws); err != nil {
				return nil, fmt.Errorf("summarizing %s[%d]: %w", slot, d, err)
			}
			if ps.Lower, err = stats.Percentile(draws, tail); err != nil {
				return nil, fmt.Errorf("summarizing %s[%d]: %w", slot, d, err)
			}
			if ps.Upper, err = stats.Percentile(draws, 100-tail); err != nil {
				return nil, fmt.Errorf("summarizing %s[%d]: %w", slot, d, err)
			}
			summaries[d] = ps
		}
		s.Params[slot] = summaries
	}

	s.MeanExternal, s.MeanInternal = meanNetwork(t)
	return s, nil
}

// meanNetwork averages network snapshots into per-cause posterior
// probabilities.
func meanNetwork(t *ChainTrace) ([]float64, [][]float64) {
	count := 0
	var external []float64
	var internal [][]float64
	for _, r := range t.Records {
		if r.Network == nil {
			continue
		}
		n := r.Network.Size()
		if external == nil {
			external = make([]float64, n)
			internal = make([][]float64, n)
			for j := range internal {
				internal[j] = make([]float64, n)
			}
		}
		for i := 0; i < n; i++ {
			if r.Network.External(i) {
				external[i]++
			}
			for j := 0; j < n; j++ {
				if r.Network.Internal(j, i) {
					internal[j][i]++
				}
			}
		}
		count++
	}
	if count == 0 {
		return nil, nil
	}
	for i := range external {
		external[i] /= float64(count)
		for j := range internal {
			internal[j][i] /= float64(count)
		}
	}
	return external, internal
}
