package epi

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Individual carries the static covariates of one population member.
// Identity is the index in the population; attributes are immutable after
// population construction.
type Individual struct {
	Covariates []float64
	X, Y       float64
}

// Population is an ordered collection of individuals together with a
// symmetric non-negative pairwise distance matrix. It is read-only after
// construction and safe to share across concurrently running chains.
type Population struct {
	individuals []Individual
	distances   *mat.SymDense
}

// NewPopulation builds a population from individuals and a precomputed
// distance matrix. The matrix dimension must equal the number of
// individuals, entries must be non-negative and the diagonal zero.
func NewPopulation(individuals []Individual, distances *mat.SymDense) (*Population, error) {
	n := len(individuals)
	if n == 0 {
		return nil, fmt.Errorf("population must contain at least one individual")
	}
	if distances == nil {
		return nil, fmt.Errorf("nil distance matrix")
	}
	if r := distances.SymmetricDim(); r != n {
		return nil, fmt.Errorf("distance matrix dimension %d does not match population size %d", r, n)
	}
	for i := 0; i < n; i++ {
		if d := distances.At(i, i); d != 0 {
			return nil, fmt.Errorf("distance matrix diagonal entry (%d,%d) is %v, want 0", i, i, d)
		}
		for j := i + 1; j < n; j++ {
			d := distances.At(i, j)
			if math.IsNaN(d) || d < 0 {
				return nil, fmt.Errorf("distance matrix entry (%d,%d) is %v, want non-negative", i, j, d)
			}
		}
	}
	return &Population{individuals: individuals, distances: distances}, nil
}

// NewPopulationFromCoords builds a population computing Euclidean pairwise
// distances from each individual's (X, Y) location.
func NewPopulationFromCoords(individuals []Individual) (*Population, error) {
	n := len(individuals)
	if n == 0 {
		return nil, fmt.Errorf("population must contain at least one individual")
	}
	distances := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dx := individuals[i].X - individuals[j].X
			dy := individuals[i].Y - individuals[j].Y
			distances.SetSym(i, j, math.Hypot(dx, dy))
		}
	}
	return &Population{individuals: individuals, distances: distances}, nil
}

// Size returns the number of individuals.
func (p *Population) Size() int { return len(p.individuals) }

// Individual returns the individual at index i.
func (p *Population) Individual(i int) Individual { return p.individuals[i] }

// Distance returns the pairwise distance between individuals i and j.
func (p *Population) Distance(i, j int) float64 { return p.distances.At(i, j) }
