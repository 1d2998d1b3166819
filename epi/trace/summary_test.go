package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epinet-sim/epinet-sim/epi"
)

func manualTrace(t *testing.T) *ChainTrace {
	t.Helper()
	tr := NewChainTrace(0)
	sparks := []float64{1, 2, 3, 4}
	for i, v := range sparks {
		rec := SweepRecord{
			Sweep:          i + 1,
			Params:         epi.RiskParameters{Sparks: []float64{v}},
			LogLikelihood:  -10 - float64(i),
			ParamsAccepted: map[string]bool{"sparks": i%2 == 0},
			EventBatches:   2,
		}
		if i < 2 {
			rec.EventBatchesAccepted = 1
		}
		tr.Record(rec)
	}
	return tr
}

func TestSummarize_ParamsAndAcceptance(t *testing.T) {
	tr := manualTrace(t)
	s, err := Summarize(tr, 0.95)
	require.NoError(t, err)

	assert.Equal(t, tr.RunID, s.RunID)
	assert.Equal(t, 4, s.Sweeps)
	assert.InDelta(t, -11.5, s.MeanLogLikelihood, 1e-12)

	require.Contains(t, s.Params, "sparks")
	require.Len(t, s.Params["sparks"], 1)
	ps := s.Params["sparks"][0]
	assert.InDelta(t, 2.5, ps.Mean, 1e-12)
	assert.InDelta(t, 2.5, ps.Median, 1e-12)
	assert.LessOrEqual(t, ps.Lower, 2.5)
	assert.GreaterOrEqual(t, ps.Upper, 2.5)
	assert.NotContains(t, s.Params, "removal", "unused slots are omitted")

	assert.InDelta(t, 0.5, s.AcceptanceRates["sparks"], 1e-12)
	assert.InDelta(t, 0.25, s.EventAcceptanceRate, 1e-12)
}

func TestSummarize_MeanNetwork(t *testing.T) {
	tr := NewChainTrace(1)

	snapshot := func(external bool) *epi.TransmissionNetwork {
		tn := epi.NewTransmissionNetwork(2)
		if external {
			tn.SetExternal(1)
		} else {
			tn.SetSource(0, 1)
		}
		return tn
	}
	for i := 0; i < 4; i++ {
		tr.Record(SweepRecord{
			Sweep:         i + 1,
			Params:        epi.RiskParameters{Sparks: []float64{1}},
			LogLikelihood: -1,
			Network:       snapshot(i < 1),
		})
	}

	s, err := Summarize(tr, 0.9)
	require.NoError(t, err)
	require.Len(t, s.MeanExternal, 2)
	assert.InDelta(t, 0.25, s.MeanExternal[1], 1e-12)
	assert.InDelta(t, 0.75, s.MeanInternal[0][1], 1e-12)
	assert.Zero(t, s.MeanExternal[0])
}

func TestSummarize_NoSnapshots(t *testing.T) {
	tr := manualTrace(t)
	s, err := Summarize(tr, 0.95)
	require.NoError(t, err)
	assert.Nil(t, s.MeanExternal)
	assert.Nil(t, s.MeanInternal)
}

func TestSummarize_Validation(t *testing.T) {
	_, err := Summarize(NewChainTrace(0), 0.95)
	assert.ErrorContains(t, err, "empty")

	_, err = Summarize(manualTrace(t), 1)
	assert.ErrorContains(t, err, "credible mass")
}

func TestChainTrace_DistinctRunIDs(t *testing.T) {
	assert.NotEqual(t, NewChainTrace(0).RunID, NewChainTrace(0).RunID)
}
