package exploration

import (
	"golang.org/x/exp/rand"

	"github.com/samuelfneumann/autoracer/utils/floatutils"
)

// SelectAction returns an epsilon-greedy action for the action values
// q. With probability epsilon the action is drawn uniformly from
// [0, len(q)), otherwise the greedy action is returned, with ties
// broken towards the lowest index.
//
// One random number is always drawn to decide whether to explore, so
// the random stream advances identically whatever the outcome.
func SelectAction(q []float64, epsilon float64, rng *rand.Rand) int {
	if len(q) == 0 {
		panic("selectaction: no action values")
	}
	if rng.Float64() < epsilon {
		return rng.Intn(len(q))
	}
	return floatutils.Argmax(q)
}

// Greedy returns the greedy action for the action values q
func Greedy(q []float64) int {
	return floatutils.Argmax(q)
}
