package core

import (
	"errors"
	"testing"
)

// TestOptimizeCapacity_ShavesSingleSpike: a lone 30 Gbps spike over
// near-idle traffic, with a buffer deep enough to hold the spike,
// should settle far below the peak with zero achieved loss.
func TestOptimizeCapacity_ShavesSingleSpike(t *testing.T) {
	traffic := AggregatedLinkTraffic{LinkID: 1, ThroughputGbps: flatWithSpike(100, 0.1, 30, 50)}
	cfg := DefaultConfig()

	// Deliberately oversized buffer so the entire spike fits at any
	// candidate capacity near the mean.
	profile := ShapingProfile{Class: BufferAggressive, BufferMicros: 50000}

	res, err := OptimizeCapacity(traffic, profile, cfg)
	if err != nil {
		t.Fatalf("OptimizeCapacity: %v", err)
	}

	if res.AchievedLossRatio != 0 {
		t.Errorf("achieved loss = %v, want 0 with a spike-absorbing buffer", res.AchievedLossRatio)
	}
	if res.OptimalCapacityGbps >= 1.0 {
		t.Errorf("optimal capacity = %v Gbps, want well below the 30 Gbps peak (near the ~0.4 mean)", res.OptimalCapacityGbps)
	}
	if res.PeakCapacityGbps != 30 {
		t.Errorf("peak capacity = %v, want 30", res.PeakCapacityGbps)
	}
	if res.CapacityReductionPct < 90 {
		t.Errorf("capacity reduction = %v%%, want > 90%%", res.CapacityReductionPct)
	}
}

// TestOptimizeCapacity_FeasibilityGuarantee: whatever the trace, a
// returned result respects the loss limit.
func TestOptimizeCapacity_FeasibilityGuarantee(t *testing.T) {
	cfg := DefaultConfig()

	traces := [][]float64{
		flat(120, 4.2),
		flatWithSpike(300, 0.8, 22, 144),
		{0.5, 9, 0.5, 9, 0.5, 9, 0.5, 9, 0.5, 9, 0.5, 9},
	}

	for i, trace := range traces {
		traffic := AggregatedLinkTraffic{LinkID: i + 1, ThroughputGbps: trace}
		profile, err := CharacterizeBurst(traffic, cfg)
		if err != nil {
			t.Fatalf("trace %d: CharacterizeBurst: %v", i, err)
		}

		res, err := OptimizeCapacity(traffic, profile, cfg)
		if err != nil {
			t.Fatalf("trace %d: OptimizeCapacity: %v", i, err)
		}
		if res.AchievedLossRatio > cfg.LossLimit {
			t.Errorf("trace %d: achieved loss %v exceeds limit %v", i, res.AchievedLossRatio, cfg.LossLimit)
		}
		if res.OptimalCapacityGbps > res.PeakCapacityGbps {
			t.Errorf("trace %d: optimal %v above peak %v", i, res.OptimalCapacityGbps, res.PeakCapacityGbps)
		}
		if res.SearchIterations > cfg.MaxIterations {
			t.Errorf("trace %d: %d iterations exceed budget %d", i, res.SearchIterations, cfg.MaxIterations)
		}
	}
}

// TestOptimizeCapacity_FlatTrafficConvergesNearPeak: flat traffic has
// mean == peak, so the interval is already below precision and the
// answer is the peak with zero iterations.
func TestOptimizeCapacity_FlatTrafficConvergesNearPeak(t *testing.T) {
	traffic := AggregatedLinkTraffic{LinkID: 2, ThroughputGbps: flat(60, 5.0)}
	cfg := DefaultConfig()
	profile := ShapingProfile{Class: BufferMinimal, BufferMicros: cfg.BufferMinimalMicros}

	res, err := OptimizeCapacity(traffic, profile, cfg)
	if err != nil {
		t.Fatalf("OptimizeCapacity: %v", err)
	}
	if res.OptimalCapacityGbps != 5.0 {
		t.Errorf("optimal capacity = %v, want 5.0 for flat traffic", res.OptimalCapacityGbps)
	}
	if res.SearchIterations != 0 {
		t.Errorf("iterations = %d, want 0 (interval starts below precision)", res.SearchIterations)
	}
	if res.AchievedLossRatio != 0 {
		t.Errorf("achieved loss = %v, want 0", res.AchievedLossRatio)
	}
}

// TestOptimizeCapacity_IterationBudget caps the search even with an
// absurdly fine precision.
func TestOptimizeCapacity_IterationBudget(t *testing.T) {
	traffic := AggregatedLinkTraffic{LinkID: 3, ThroughputGbps: flatWithSpike(200, 0.2, 18, 90)}
	cfg := DefaultConfig()
	cfg.PrecisionGbps = 1e-12
	cfg.MaxIterations = 7

	profile := ShapingProfile{Class: BufferModerate, BufferMicros: cfg.BufferModerateMicros}
	res, err := OptimizeCapacity(traffic, profile, cfg)
	if err != nil {
		t.Fatalf("OptimizeCapacity: %v", err)
	}
	if res.SearchIterations != 7 {
		t.Errorf("iterations = %d, want exactly the budget of 7", res.SearchIterations)
	}
	if res.AchievedLossRatio > cfg.LossLimit {
		t.Errorf("achieved loss %v exceeds limit %v after budget exhaustion", res.AchievedLossRatio, cfg.LossLimit)
	}
}

// TestOptimizeCapacity_DegenerateTraffic rejects zero-traffic links.
func TestOptimizeCapacity_DegenerateTraffic(t *testing.T) {
	traffic := AggregatedLinkTraffic{LinkID: 4, ThroughputGbps: flat(10, 0)}
	profile := ShapingProfile{Class: BufferMinimal, BufferMicros: 70}

	_, err := OptimizeCapacity(traffic, profile, DefaultConfig())
	var degen *DegenerateTrafficError
	if !errors.As(err, &degen) {
		t.Fatalf("got %v, want *DegenerateTrafficError", err)
	}
}

// TestOptimizeCapacity_DeterministicAcrossRuns: both the search and
// the simulator are pure, so two runs must agree exactly.
func TestOptimizeCapacity_DeterministicAcrossRuns(t *testing.T) {
	traffic := AggregatedLinkTraffic{LinkID: 5, ThroughputGbps: flatWithSpike(150, 0.7, 21, 60)}
	cfg := DefaultConfig()
	profile := ShapingProfile{Class: BufferModerate, BufferMicros: cfg.BufferModerateMicros}

	first, err := OptimizeCapacity(traffic, profile, cfg)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := OptimizeCapacity(traffic, profile, cfg)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first.OptimalCapacityGbps != second.OptimalCapacityGbps ||
		first.AchievedLossRatio != second.AchievedLossRatio ||
		first.SearchIterations != second.SearchIterations {
		t.Errorf("runs disagree:\n  first:  %+v\n  second: %+v", first, second)
	}
}
