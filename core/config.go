// core/config.go
package core

import "fmt"

// Default analysis constants. These mirror the 5G NR numerology the
// telemetry was captured under and the operational loss budget agreed
// with the transport team; callers can override any of them via Config.
const (
	DefaultSymbolDurationSec   = 35.7e-6 // one OFDM symbol
	DefaultSymbolsPerSlot      = 14
	DefaultCorrelationThresh   = 0.70
	DefaultLossLimit           = 0.01 // 1% packet loss budget
	DefaultPrecisionGbps       = 0.1
	DefaultMaxIterations       = 20
	DefaultBurstWindowSlots    = 4
	DefaultBurstFactor         = 2.0
	DefaultPAPRLow             = 10.0
	DefaultPAPRMedium          = 100.0
	DefaultBufferMinimalMicros = 70.0
	DefaultBufferModerateMicros = 143.0
	DefaultBufferAggressiveMicros = 200.0
)

// Config carries every tunable the analysis engines need. The engines
// never read process-wide state: a Config value is passed in explicitly
// so tests and what-if callers can vary parameters independently.
type Config struct {
	// SymbolDurationSec is the duration of one telemetry symbol.
	SymbolDurationSec float64

	// SymbolsPerSlot is the number of symbols aggregated into one slot.
	SymbolsPerSlot int

	// CorrelationThreshold is the minimum pairwise loss correlation for
	// two cells to be considered sharing a physical link.
	CorrelationThreshold float64

	// BurstWindowSlots is the trailing moving-average window used by the
	// micro-burst detector.
	BurstWindowSlots int

	// BurstFactor is the multiple of the local moving average above which
	// a slot is flagged as a micro-burst.
	BurstFactor float64

	// PAPRLow / PAPRMedium split the peak-to-average ratio into the
	// MINIMAL / MODERATE / AGGRESSIVE shaping classes. Boundary values
	// belong to the lower class.
	PAPRLow    float64
	PAPRMedium float64

	// Buffer depths (microseconds) per shaping class.
	BufferMinimalMicros    float64
	BufferModerateMicros   float64
	BufferAggressiveMicros float64

	// LossLimit is the maximum tolerated loss ratio for the optimizer.
	LossLimit float64

	// PrecisionGbps is the binary-search convergence width.
	PrecisionGbps float64

	// MaxIterations bounds the binary search.
	MaxIterations int
}

// DefaultConfig returns the standard analysis configuration.
func DefaultConfig() Config {
	return Config{
		SymbolDurationSec:      DefaultSymbolDurationSec,
		SymbolsPerSlot:         DefaultSymbolsPerSlot,
		CorrelationThreshold:   DefaultCorrelationThresh,
		BurstWindowSlots:       DefaultBurstWindowSlots,
		BurstFactor:            DefaultBurstFactor,
		PAPRLow:                DefaultPAPRLow,
		PAPRMedium:             DefaultPAPRMedium,
		BufferMinimalMicros:    DefaultBufferMinimalMicros,
		BufferModerateMicros:   DefaultBufferModerateMicros,
		BufferAggressiveMicros: DefaultBufferAggressiveMicros,
		LossLimit:              DefaultLossLimit,
		PrecisionGbps:          DefaultPrecisionGbps,
		MaxIterations:          DefaultMaxIterations,
	}
}

// SlotDurationSec returns the duration of one aggregated slot.
func (c Config) SlotDurationSec() float64 {
	return c.SymbolDurationSec * float64(c.SymbolsPerSlot)
}

// Validate rejects configurations the engines cannot operate under.
func (c Config) Validate() error {
	if c.SymbolDurationSec <= 0 {
		return fmt.Errorf("config: symbol duration must be positive, got %v", c.SymbolDurationSec)
	}
	if c.SymbolsPerSlot <= 0 {
		return fmt.Errorf("config: symbols per slot must be positive, got %d", c.SymbolsPerSlot)
	}
	if c.CorrelationThreshold < -1 || c.CorrelationThreshold > 1 {
		return fmt.Errorf("config: correlation threshold %v outside [-1, 1]", c.CorrelationThreshold)
	}
	if c.BurstWindowSlots <= 0 {
		return fmt.Errorf("config: burst window must be positive, got %d", c.BurstWindowSlots)
	}
	if c.PAPRLow <= 0 || c.PAPRMedium <= c.PAPRLow {
		return fmt.Errorf("config: PAPR class bounds must satisfy 0 < low < medium, got low=%v medium=%v", c.PAPRLow, c.PAPRMedium)
	}
	if c.LossLimit < 0 || c.LossLimit > 1 {
		return fmt.Errorf("config: loss limit %v outside [0, 1]", c.LossLimit)
	}
	if c.PrecisionGbps <= 0 {
		return fmt.Errorf("config: search precision must be positive, got %v", c.PrecisionGbps)
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("config: iteration budget must be positive, got %d", c.MaxIterations)
	}
	return nil
}
