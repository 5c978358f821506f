// ABOUTME: Offset and jitter estimation from a sample batch
// ABOUTME: Keeps the lowest-delay samples and averages their offsets
package follower

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// RetainPercent is the share of lowest-delay samples kept by the estimator
const RetainPercent = 69

// Estimate is the result of one batch
type Estimate struct {
	Offset float64 // positive means local ahead of remote
	Jitter float64 // mean absolute deviation of the retained offsets
}

// Retained returns how many samples a batch of n keeps, floor(0.69 n).
// Integer math: 0.69 has no exact float64 form and n*0.69 can land below the floor.
func Retained(n int) int {
	return n * RetainPercent / 100
}

// lowestDelay returns the retained samples ordered by ascending delay.
// The input slice is not modified.
func lowestDelay(samples []RoundTripSample) []RoundTripSample {
	sorted := slices.Clone(samples)
	slices.SortStableFunc(sorted, func(a, b RoundTripSample) int {
		return cmp.Compare(a.Delay(), b.Delay())
	})
	return sorted[:Retained(len(sorted))]
}

// EstimateOffset reduces a batch to an offset and jitter estimate
func EstimateOffset(samples []RoundTripSample) (Estimate, error) {
	if len(samples) == 0 {
		return Estimate{}, ErrNoSamples
	}

	kept := lowestDelay(samples)
	if len(kept) == 0 {
		return Estimate{}, fmt.Errorf("%w: batch of %d keeps none", ErrNoSamples, len(samples))
	}

	offsets := make([]float64, len(kept))
	var sum float64
	for i, s := range kept {
		offsets[i] = s.Offset()
		sum += offsets[i]
	}
	mean := sum / float64(len(offsets))

	var dev float64
	for _, o := range offsets {
		dev += math.Abs(mean - o)
	}

	return Estimate{
		Offset: mean,
		Jitter: dev / float64(len(offsets)),
	}, nil
}
