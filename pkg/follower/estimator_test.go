// ABOUTME: Tests for offset and jitter estimation
// ABOUTME: Covers delay filtering, sign convention and jitter math
package follower

import (
	"errors"
	"math"
	"math/rand/v2"
	"slices"
	"testing"
)

func TestRetainedCount(t *testing.T) {
	tests := []struct {
		n        int
		expected int
	}{
		{60, 41},
		{10, 6},
		{300, 207},
		{600, 414},
		{700, 483},
		{2, 1},
		{1, 0},
		{0, 0},
	}

	for _, tt := range tests {
		if got := Retained(tt.n); got != tt.expected {
			t.Errorf("Retained(%d) = %d, expected %d", tt.n, got, tt.expected)
		}
	}
}

func TestLowestDelayKeepsSmallestDelays(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))

	for _, n := range []int{2, 7, 60, 100, 257} {
		samples := make([]RoundTripSample, n)
		for i := range samples {
			t0 := float64(i)
			samples[i] = RoundTripSample{T0: t0, T1: t0, T2: t0 + r.Float64()*0.05}
		}
		original := slices.Clone(samples)

		kept := lowestDelay(samples)
		if len(kept) != Retained(n) {
			t.Fatalf("n=%d: expected %d retained, got %d", n, Retained(n), len(kept))
		}

		if !slices.Equal(samples, original) {
			t.Errorf("n=%d: input batch was reordered", n)
		}

		delays := make([]float64, n)
		for i, s := range samples {
			delays[i] = s.Delay()
		}
		slices.Sort(delays)
		cutoff := delays[len(kept)-1]

		for _, s := range kept {
			if s.Delay() > cutoff {
				t.Errorf("n=%d: kept delay %v above cutoff %v", n, s.Delay(), cutoff)
			}
		}
	}
}

func TestEstimateZeroDelayConstantOffset(t *testing.T) {
	for _, k := range []float64{0.25, -0.125, 0, 3} {
		samples := make([]RoundTripSample, 60)
		for i := range samples {
			t0 := float64(1000 + i)
			samples[i] = RoundTripSample{T0: t0, T1: t0 - k, T2: t0}
		}

		est, err := EstimateOffset(samples)
		if err != nil {
			t.Fatalf("k=%v: unexpected error: %v", k, err)
		}
		if est.Offset != k {
			t.Errorf("k=%v: expected offset %v, got %v", k, k, est.Offset)
		}
		if est.Jitter != 0 {
			t.Errorf("k=%v: expected zero jitter, got %v", k, est.Jitter)
		}
	}
}

func TestEstimateSignConvention(t *testing.T) {
	// offset = t0 - (t1 + d/2); remote stamps 1.5ms behind t0 with a 1ms round trip
	samples := []RoundTripSample{
		{T0: 10.000, T1: 9.9985, T2: 10.001},
		{T0: 11.000, T1: 10.9985, T2: 11.001},
	}

	est, err := EstimateOffset(samples)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(est.Offset-0.001) > 1e-9 {
		t.Errorf("expected offset ~0.001, got %v", est.Offset)
	}

	// remote behind means local ahead: positive; remote ahead: negative
	ahead := []RoundTripSample{{T0: 10.000, T1: 10.0025, T2: 10.001}}
	ahead = append(ahead, RoundTripSample{T0: 11.000, T1: 11.0025, T2: 11.001})
	est, err = EstimateOffset(ahead)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(est.Offset+0.003) > 1e-9 {
		t.Errorf("expected offset ~-0.003, got %v", est.Offset)
	}
}

func TestEstimateDiscardsHighDelayOutliers(t *testing.T) {
	var samples []RoundTripSample
	// 7 clean samples with a true offset of 1ms
	for i := 0; i < 7; i++ {
		t0 := float64(i)
		samples = append(samples, RoundTripSample{T0: t0, T1: t0 - 0.001, T2: t0})
	}
	// 3 slow asymmetric samples that would skew the mean
	for i := 0; i < 3; i++ {
		t0 := float64(10 + i)
		samples = append(samples, RoundTripSample{T0: t0, T1: t0 + 0.2, T2: t0 + 0.5})
	}

	est, err := EstimateOffset(samples)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(est.Offset-0.001) > 1e-9 {
		t.Errorf("expected outliers dropped and offset ~0.001, got %v", est.Offset)
	}
	if est.Jitter > 1e-9 {
		t.Errorf("expected ~zero jitter, got %v", est.Jitter)
	}
}

func TestEstimateJitterIsMeanAbsoluteDeviation(t *testing.T) {
	// zero-delay samples with offsets 1, 3, 1, 3 (+ two slow ones dropped)
	samples := []RoundTripSample{
		{T0: 10, T1: 9, T2: 10},
		{T0: 20, T1: 17, T2: 20},
		{T0: 30, T1: 29, T2: 30},
		{T0: 40, T1: 37, T2: 40},
		{T0: 50, T1: 50, T2: 60},
		{T0: 70, T1: 70, T2: 80},
	}

	est, err := EstimateOffset(samples)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if est.Offset != 2 {
		t.Errorf("expected offset 2, got %v", est.Offset)
	}
	if est.Jitter != 1 {
		t.Errorf("expected jitter 1, got %v", est.Jitter)
	}
}

func TestEstimateEmptyBatch(t *testing.T) {
	if _, err := EstimateOffset(nil); !errors.Is(err, ErrNoSamples) {
		t.Errorf("expected ErrNoSamples, got %v", err)
	}

	single := []RoundTripSample{{T0: 1, T1: 1, T2: 1}}
	if _, err := EstimateOffset(single); !errors.Is(err, ErrNoSamples) {
		t.Errorf("expected ErrNoSamples for single sample, got %v", err)
	}
}
