// core/leakybucket.go
package core

// OverflowEvent records one slot where the buffer overflowed and the
// excess bits were dropped.
type OverflowEvent struct {
	Slot     int
	LostBits float64
}

// SimulationResult is the outcome of one leaky-bucket run. It is never
// mutated after creation.
type SimulationResult struct {
	// LossRatio is total lost bits over total incoming bits, in [0, 1].
	// Zero incoming bits yields 0, never a division by zero.
	LossRatio float64

	// PeakOccupancy is the maximum buffer fill observed as a fraction
	// of the buffer size. 0 when the buffer size is zero.
	PeakOccupancy float64

	// TotalIncomingBits and TotalLostBits are the raw accumulators
	// behind LossRatio, useful for aggregate reporting.
	TotalIncomingBits float64
	TotalLostBits     float64

	// OverflowEvents lists every overflowing slot in order.
	OverflowEvents []OverflowEvent
}

// SimulateLeakyBucket models a buffered link drained at a fixed
// candidate capacity. Arriving slot traffic fills a bounded reservoir
// of capacity*bufferMicros bits; whatever exceeds the reservoir is
// lost and recorded as an overflow event. The bucket never goes
// negative: spare drain capacity is idle, not a credit.
//
// The function is pure and deterministic. All accumulation is in
// float64; identical inputs produce bit-identical results, and
// concurrent calls on different inputs are safe.
func SimulateLeakyBucket(throughputGbps []float64, capacityGbps, bufferMicros float64, cfg Config) SimulationResult {
	slotSec := cfg.SlotDurationSec()
	leakBits := capacityGbps * 1e9 * slotSec
	maxBufferBits := capacityGbps * 1e9 * bufferMicros * 1e-6

	var (
		occupancy    float64
		peak         float64
		totalIn      float64
		totalLost    float64
		overflows    []OverflowEvent
	)

	for t, gbps := range throughputGbps {
		incoming := gbps * 1e9 * slotSec
		totalIn += incoming

		occupancy += incoming - leakBits
		if occupancy < 0 {
			occupancy = 0
		} else if occupancy > maxBufferBits {
			lost := occupancy - maxBufferBits
			totalLost += lost
			occupancy = maxBufferBits
			overflows = append(overflows, OverflowEvent{Slot: t, LostBits: lost})
		}

		if occupancy > peak {
			peak = occupancy
		}
	}

	result := SimulationResult{
		TotalIncomingBits: totalIn,
		TotalLostBits:     totalLost,
		OverflowEvents:    overflows,
	}
	if totalIn > 0 {
		result.LossRatio = totalLost / totalIn
	}
	if maxBufferBits > 0 {
		result.PeakOccupancy = peak / maxBufferBits
	}
	return result
}
