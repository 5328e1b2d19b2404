// core/burst.go
package core

// BufferClass is a coarse shaping aggressiveness class derived from a
// link's burst intensity.
type BufferClass string

const (
	BufferMinimal    BufferClass = "MINIMAL"
	BufferModerate   BufferClass = "MODERATE"
	BufferAggressive BufferClass = "AGGRESSIVE"
)

// ShapingProfile is the buffering configuration chosen for a link. It
// is a pure function of the link's PAPR.
type ShapingProfile struct {
	Class        BufferClass
	BufferMicros float64

	// SmoothingFactor is a descriptive multiplier carried through to
	// the operator report; it does not feed the simulator.
	SmoothingFactor float64

	// PAPR is the observed peak-to-average ratio the class was chosen
	// from.
	PAPR float64
}

// CharacterizeBurst computes a link's PAPR over the observation window
// and maps it to a shaping profile:
//
//	PAPR < PAPRLow            -> MINIMAL    (shallow buffer)
//	PAPRLow <= PAPR < PAPRMedium -> MODERATE
//	PAPR >= PAPRMedium        -> AGGRESSIVE (deepest buffer)
//
// Boundary values belong to the lower class. A link with zero mean
// traffic has an undefined PAPR and is reported as a
// DegenerateTrafficError rather than silently defaulted.
func CharacterizeBurst(traffic AggregatedLinkTraffic, cfg Config) (ShapingProfile, error) {
	if err := cfg.Validate(); err != nil {
		return ShapingProfile{}, err
	}

	mean := traffic.Mean()
	if mean == 0 {
		return ShapingProfile{}, &DegenerateTrafficError{LinkID: traffic.LinkID}
	}

	papr := traffic.Peak() / mean
	switch {
	case papr < cfg.PAPRLow:
		return ShapingProfile{Class: BufferMinimal, BufferMicros: cfg.BufferMinimalMicros, SmoothingFactor: 1.1, PAPR: papr}, nil
	case papr < cfg.PAPRMedium:
		return ShapingProfile{Class: BufferModerate, BufferMicros: cfg.BufferModerateMicros, SmoothingFactor: 1.5, PAPR: papr}, nil
	default:
		return ShapingProfile{Class: BufferAggressive, BufferMicros: cfg.BufferAggressiveMicros, SmoothingFactor: 2.0, PAPR: papr}, nil
	}
}

// DetectBursts flags micro-burst slots in a single throughput series.
// A slot is a burst when its rate exceeds factor times the trailing
// moving average over the previous window slots (including the slot
// itself; partial windows at the start of the series use however many
// slots exist). The returned slot indices are ascending.
//
// Burst detection corroborates the PAPR classification; topology
// inference does not depend on it.
func DetectBursts(throughput []float64, window int, factor float64) []int {
	if window < 1 {
		window = 1
	}
	if factor <= 0 {
		factor = DefaultBurstFactor
	}

	var bursts []int
	sum := 0.0
	for t, v := range throughput {
		sum += v
		if t >= window {
			sum -= throughput[t-window]
		}
		n := window
		if t+1 < window {
			n = t + 1
		}
		avg := sum / float64(n)
		if avg > 0 && v > factor*avg {
			bursts = append(bursts, t)
		}
	}
	return bursts
}
