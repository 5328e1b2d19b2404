// core/optimizer.go
package core

// OptimizationResult is the per-link deliverable of the capacity
// search, consumed by the operator decision layer.
type OptimizationResult struct {
	LinkID int

	// PeakCapacityGbps is what provisioning without shaping would
	// require; OptimalCapacityGbps is the minimum found that keeps the
	// loss ratio within the limit at the chosen buffer depth.
	PeakCapacityGbps    float64
	OptimalCapacityGbps float64

	// CapacityReductionPct is how much below peak the optimum sits.
	CapacityReductionPct float64

	Class        BufferClass
	BufferMicros float64

	// AchievedLossRatio is the simulated loss at the returned
	// capacity; guaranteed <= the configured loss limit.
	AchievedLossRatio float64

	// SearchIterations is how many bisection steps were actually run.
	SearchIterations int

	// Final is the accepted simulation at the optimal capacity.
	Final SimulationResult
}

// OptimizeCapacity binary-searches for the minimum link capacity whose
// simulated loss ratio stays within cfg.LossLimit, at the buffer depth
// chosen by the shaping profile.
//
// The search interval starts at [mean, peak]: the mean is a boundary
// lower bound and the peak normally yields zero loss. Feasible
// midpoints shrink the interval downward; infeasible ones raise the
// floor. The search stops when the interval narrows below
// cfg.PrecisionGbps or the iteration budget runs out, and always
// returns the best feasible capacity seen, never an infeasible one.
//
// If even the peak misses the loss target (possible only when the
// monotonicity of loss in capacity is violated by pathological input)
// the search reports a NoFeasibleCapacityError instead of returning a
// silently-unsafe number.
func OptimizeCapacity(traffic AggregatedLinkTraffic, profile ShapingProfile, cfg Config) (OptimizationResult, error) {
	if err := cfg.Validate(); err != nil {
		return OptimizationResult{}, err
	}

	mean := traffic.Mean()
	if mean == 0 {
		return OptimizationResult{}, &DegenerateTrafficError{LinkID: traffic.LinkID}
	}
	peak := traffic.Peak()

	// The peak anchors the feasible end of the interval. Guard it
	// explicitly rather than trusting the monotonicity invariant.
	bestSim := SimulateLeakyBucket(traffic.ThroughputGbps, peak, profile.BufferMicros, cfg)
	if bestSim.LossRatio > cfg.LossLimit {
		return OptimizationResult{}, &NoFeasibleCapacityError{
			LinkID:    traffic.LinkID,
			PeakGbps:  peak,
			LossRatio: bestSim.LossRatio,
			LossLimit: cfg.LossLimit,
		}
	}

	low, high := mean, peak
	best := peak
	iterations := 0

	for iterations < cfg.MaxIterations && high-low > cfg.PrecisionGbps {
		mid := (low + high) / 2
		sim := SimulateLeakyBucket(traffic.ThroughputGbps, mid, profile.BufferMicros, cfg)
		iterations++

		if sim.LossRatio <= cfg.LossLimit {
			best = mid
			bestSim = sim
			high = mid
		} else {
			low = mid
		}
	}

	reduction := 0.0
	if peak > 0 {
		reduction = (1 - best/peak) * 100
	}

	return OptimizationResult{
		LinkID:               traffic.LinkID,
		PeakCapacityGbps:     peak,
		OptimalCapacityGbps:  best,
		CapacityReductionPct: reduction,
		Class:                profile.Class,
		BufferMicros:         profile.BufferMicros,
		AchievedLossRatio:    bestSim.LossRatio,
		SearchIterations:     iterations,
		Final:                bestSim,
	}, nil
}
