package mcmc

import (
	"math"
	"math/rand"

	"github.com/epinet-sim/epinet-sim/epi"
)

// drawLatentTimes proposes latent transition times for individual i
// consistent with its observations and the event extents, writing them
// into history (whose times for i must be cleared first). Returns false
// when the drawn times cannot form a valid realization (for example a
// removal window entirely before the drawn infection time); callers treat
// that as a failed attempt or a rejected proposal.
//
// Windows:
//   - observed infection at o: latent infection in (max(0, o−Infection), o]
//   - exposure (SEI/SEIR): strictly inside (infection − Exposure, infection)
//   - observed removal at o: latent removal in (max(0, o−Removal), o],
//     which must land strictly after the infection time
//   - removal observed but infection censored: infection drawn in
//     (max(0, o−Sparks), o)
//   - fully unobserved: either remains uninfected (when allowed) or the
//     infection lands strictly inside (horizon − Sparks, horizon)
func drawLatentTimes(history *epi.EventHistory, obs *epi.Observations, extents epi.EventExtents,
	horizon float64, rng *rand.Rand, i int, allowUninfected bool) bool {
	v := history.Variant()

	// windowDraw returns a time in (max(0, anchor−width), anchor]; a zero
	// width collapses to exactly the anchor (no augmentation).
	windowDraw := func(anchor, width float64) float64 {
		lo := math.Max(0, anchor-width)
		return anchor - rng.Float64()*(anchor-lo)
	}

	if history.Start(i) != epi.Susceptible {
		// Initial infectives carry no transmission event; only a removal
		// observation leaves a latent time to draw.
		if history.Start(i) == epi.Infectious && v.HasRemoved() {
			if o := obs.Removal(i); !math.IsNaN(o) {
				r := windowDraw(o, extents.Removal)
				if r <= 0 {
					return false
				}
				if history.SetTime(epi.Removal, i, r) != nil {
					return false
				}
			}
		}
		return true
	}

	obsInf := obs.Infection(i)
	obsRem := obs.Removal(i)

	var inf float64
	switch {
	case !math.IsNaN(obsInf):
		inf = windowDraw(obsInf, extents.Infection)
	case !math.IsNaN(obsRem):
		// Infection censored but removal observed: the infection happened
		// somewhere inside the sparks window before the removal
		// observation.
		inf = obsRem - rng.Float64()*(obsRem-math.Max(0, obsRem-extents.Sparks))
	default:
		if allowUninfected && rng.Float64() < 0.5 {
			return true
		}
		lo := math.Max(0, horizon-extents.Sparks)
		inf = lo + rng.Float64()*(horizon-lo)
		if inf <= lo || inf >= horizon {
			return false
		}
	}
	if inf <= 0 {
		return false
	}
	if history.SetTime(epi.Infection, i, inf) != nil {
		return false
	}

	if v.HasExposed() {
		width := math.Min(extents.Exposure, inf)
		exp := inf - rng.Float64()*width
		if exp <= 0 || exp >= inf {
			return false
		}
		if history.SetTime(epi.Exposure, i, exp) != nil {
			return false
		}
	}

	if v.HasRemoved() && !math.IsNaN(obsRem) {
		r := windowDraw(obsRem, extents.Removal)
		if r <= inf {
			return false
		}
		if history.SetTime(epi.Removal, i, r) != nil {
			return false
		}
	}
	return true
}

// exposureProposalLogDensity returns the log density of individual i's
// exposure draw under the window mechanism: the exposure window is
// (inf − Exposure, inf) truncated at zero, so its width depends on the
// drawn infection time. Every other window is anchored at a fixed
// observation (or the horizon) and its width cancels between the current
// and proposed state in a batch acceptance ratio; this term does not, and
// supplies the Hastings correction.
func exposureProposalLogDensity(history *epi.EventHistory, extents epi.EventExtents, i int) float64 {
	if !history.Variant().HasExposed() || !history.Infected(i) {
		return 0
	}
	inf := history.Time(epi.Infection, i)
	if math.IsNaN(inf) {
		return 0
	}
	return -math.Log(math.Min(extents.Exposure, inf))
}

// clearLatentTimes erases all latent transition times of individual i so a
// fresh proposal can be written.
func clearLatentTimes(history *epi.EventHistory, i int) {
	for _, k := range history.Variant().Kinds() {
		history.ClearTime(k, i)
	}
}

// drawSource resamples the cause of individual i's transmission event from
// its exact full conditional: categorical over the sparks weight and every
// individual infectious strictly before the event, weighted by hazard
// contribution. This is the same weighting the forward engine uses. ok is
// false when every weight is zero, meaning no cause can explain the event
// under the current parameters and times.
func drawSource(bundle *epi.RiskBundle, params epi.RiskParameters, pop *epi.Population,
	history *epi.EventHistory, rng *rand.Rand, i int) (source int, external bool, ok bool) {
	t := history.Time(history.Variant().TransmissionKind(), i)
	n := pop.Size()

	sparks := bundle.SparkHazard(params, pop, i)
	weights := make([]float64, n)
	total := sparks
	for j := 0; j < n; j++ {
		if j == i || !history.EligibleInfector(j, t) {
			continue
		}
		weights[j] = bundle.PairHazard(params, pop, j, i)
		total += weights[j]
	}
	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return 0, false, false
	}

	u := rng.Float64() * total
	if u < sparks {
		return 0, true, true
	}
	acc := sparks
	last := -1
	for j := 0; j < n; j++ {
		if weights[j] == 0 {
			continue
		}
		acc += weights[j]
		last = j
		if u < acc {
			return j, false, true
		}
	}
	if last < 0 {
		return 0, true, true
	}
	return last, false, true
}
