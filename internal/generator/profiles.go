// Package generator synthesizes customer and terminal profiles, simulates
// their transactions and injects the fraud scenarios. Every random draw comes
// from a generator built from an explicit seed, so a run is a pure function
// of its parameters.
package generator

import (
	"math/rand/v2"

	"github.com/boddenberg/txsim-bench-go/internal/domain"

	"gonum.org/v1/gonum/stat/distuv"
)

// Bounds of the simulated area and of the profile distributions.
const (
	areaSize = 100.0

	minMeanAmount = 5.0
	maxMeanAmount = 100.0

	maxMeanTxPerDay = 4.0
)

// Stream selectors keep independent generators apart when they share a seed.
const (
	streamProfiles uint64 = iota + 1
	streamDraws
	streamTerminalChoice
	streamTerminalSample
	streamCustomerSample
	streamTransactionSample
)

func newSource(seed, stream uint64) rand.Source {
	return rand.NewPCG(seed, stream)
}

func newRand(seed, stream uint64) *rand.Rand {
	return rand.New(newSource(seed, stream))
}

// GenerateCustomerProfiles returns n customers with ids 0..n-1. The same
// (n, seed) always yields the same profiles. AvailableTerminals is left
// empty; see AssignTerminals.
func GenerateCustomerProfiles(n int, seed uint64) ([]domain.CustomerProfile, error) {
	if n < 0 {
		return nil, &domain.ErrValidation{Field: "customers", Message: "must not be negative"}
	}

	src := newSource(seed, streamProfiles)
	position := distuv.Uniform{Min: 0, Max: areaSize, Src: src}
	meanAmount := distuv.Uniform{Min: minMeanAmount, Max: maxMeanAmount, Src: src}
	txPerDay := distuv.Uniform{Min: 0, Max: maxMeanTxPerDay, Src: src}

	customers := make([]domain.CustomerProfile, n)
	for id := range customers {
		x := position.Rand()
		y := position.Rand()
		mean := meanAmount.Rand()

		customers[id] = domain.CustomerProfile{
			ID:                 id,
			X:                  x,
			Y:                  y,
			MeanAmount:         mean,
			StdAmount:          mean / 2,
			MeanTxPerDay:       txPerDay.Rand(),
			AvailableTerminals: []int{},
		}
	}
	return customers, nil
}

// GenerateTerminalProfiles returns m terminals with ids 0..m-1 placed
// uniformly in the simulated area.
func GenerateTerminalProfiles(m int, seed uint64) ([]domain.TerminalProfile, error) {
	if m < 0 {
		return nil, &domain.ErrValidation{Field: "terminals", Message: "must not be negative"}
	}

	position := distuv.Uniform{Min: 0, Max: areaSize, Src: newSource(seed, streamProfiles)}

	terminals := make([]domain.TerminalProfile, m)
	for id := range terminals {
		x := position.Rand()
		y := position.Rand()
		terminals[id] = domain.TerminalProfile{ID: id, X: x, Y: y}
	}
	return terminals, nil
}
