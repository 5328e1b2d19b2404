// Package resilience flags failure modes under which traffic shaping
// is a poor substitute for a capacity upgrade: synchronized cell
// bursts that can overwhelm a shared buffer, shaping latency that
// violates an URLLC budget, and buffer depths outside the supported
// range or badly matched to observed occupancy.
package resilience

import (
	"fmt"

	"github.com/signalsfoundry/fronthaul-optimizer/core"
	"gonum.org/v1/gonum/stat"
)

// Risk is a coarse severity level. Higher values dominate when
// aggregating.
type Risk string

const (
	RiskNone     Risk = "NONE"
	RiskLow      Risk = "LOW"
	RiskMedium   Risk = "MEDIUM"
	RiskHigh     Risk = "HIGH"
	RiskCritical Risk = "CRITICAL"
)

var riskOrder = map[Risk]int{
	RiskNone:     0,
	RiskLow:      1,
	RiskMedium:   2,
	RiskHigh:     3,
	RiskCritical: 4,
}

// maxRisk returns the more severe of two risks.
func maxRisk(a, b Risk) Risk {
	if riskOrder[b] > riskOrder[a] {
		return b
	}
	return a
}

// FailureMode is one detected risk with its operator-facing
// explanation and mitigations.
type FailureMode struct {
	Type        string   `json:"type"`
	Risk        Risk     `json:"risk"`
	Explanation string   `json:"explanation"`
	Mitigations []string `json:"mitigations,omitempty"`
}

// Analysis is the per-link failure-mode summary.
type Analysis struct {
	LinkID      int           `json:"link_id"`
	OverallRisk Risk          `json:"overall_risk"`
	Modes       []FailureMode `json:"modes,omitempty"`
}

// Config tunes the detectors.
type Config struct {
	// SyncThreshold is the burst-signal correlation above which two
	// cells count as bursting in lockstep.
	SyncThreshold float64

	// BurstFactor is the multiple of a cell's mean rate above which a
	// slot counts as a burst.
	BurstFactor float64

	// LatencyBudgetMicros is the URLLC buffering budget.
	LatencyBudgetMicros float64

	// MinBufferMicros / MaxBufferMicros bound the supported buffer
	// range of the shaping hardware.
	MinBufferMicros float64
	MaxBufferMicros float64
}

// DefaultConfig matches the planning defaults for 5G NR fronthaul.
func DefaultConfig() Config {
	return Config{
		SyncThreshold:       0.7,
		BurstFactor:         2.0,
		LatencyBudgetMicros: 200,
		MinBufferMicros:     core.DefaultBufferMinimalMicros,
		MaxBufferMicros:     core.DefaultBufferAggressiveMicros,
	}
}

// Analyzer runs the failure-mode detectors for one link at a time.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer constructs an Analyzer, falling back to defaults for a
// zero config.
func NewAnalyzer(cfg Config) *Analyzer {
	def := DefaultConfig()
	if cfg.SyncThreshold == 0 {
		cfg.SyncThreshold = def.SyncThreshold
	}
	if cfg.BurstFactor == 0 {
		cfg.BurstFactor = def.BurstFactor
	}
	if cfg.LatencyBudgetMicros == 0 {
		cfg.LatencyBudgetMicros = def.LatencyBudgetMicros
	}
	if cfg.MinBufferMicros == 0 {
		cfg.MinBufferMicros = def.MinBufferMicros
	}
	if cfg.MaxBufferMicros == 0 {
		cfg.MaxBufferMicros = def.MaxBufferMicros
	}
	return &Analyzer{cfg: cfg}
}

// Analyze runs every detector against one optimized link. The cell
// series map may contain cells outside the group; only group members
// are considered.
func (a *Analyzer) Analyze(group core.LinkGroup, series map[int]*core.CellSeries, opt core.OptimizationResult) Analysis {
	out := Analysis{LinkID: group.LinkID, OverallRisk: RiskNone}

	if mode, ok := a.detectSynchronizedBursts(group, series); ok {
		out.Modes = append(out.Modes, mode)
	}
	if mode, ok := a.detectURLLCViolation(opt.BufferMicros); ok {
		out.Modes = append(out.Modes, mode)
	}
	out.Modes = append(out.Modes, a.detectBufferMisconfiguration(opt)...)

	for _, m := range out.Modes {
		out.OverallRisk = maxRisk(out.OverallRisk, m.Risk)
	}
	return out
}

// detectSynchronizedBursts looks for pairs of member cells whose burst
// indicators correlate above the sync threshold. Simultaneous bursts
// stack in the shared buffer, so shaping sized for one cell's bursts
// can still overflow.
func (a *Analyzer) detectSynchronizedBursts(group core.LinkGroup, series map[int]*core.CellSeries) (FailureMode, bool) {
	signals := make(map[int][]float64, len(group.Cells))
	for _, id := range group.Cells {
		s, ok := series[id]
		if !ok {
			continue
		}
		signals[id] = burstSignal(s.ThroughputGbps, a.cfg.BurstFactor)
	}
	if len(signals) < 2 {
		return FailureMode{}, false
	}

	pairs := 0
	for i, idA := range group.Cells {
		sa, ok := signals[idA]
		if !ok || constantSignal(sa) {
			continue
		}
		for _, idB := range group.Cells[i+1:] {
			sb, ok := signals[idB]
			if !ok || constantSignal(sb) {
				continue
			}
			if stat.Correlation(sa, sb, nil) >= a.cfg.SyncThreshold {
				pairs++
			}
		}
	}
	if pairs == 0 {
		return FailureMode{}, false
	}

	return FailureMode{
		Type: "SYNCHRONIZED_BURSTS",
		Risk: RiskHigh,
		Explanation: fmt.Sprintf(
			"%d cell pair(s) burst in lockstep; simultaneous bursts can exceed the shared buffer even with shaping", pairs),
		Mitigations: []string{
			fmt.Sprintf("increase buffer toward the %.0f µs maximum", a.cfg.MaxBufferMicros),
			"balance the synchronized cells across physical links",
			"upgrade link capacity if synchronization persists",
		},
	}, true
}

// detectURLLCViolation flags buffering delay above the URLLC budget.
func (a *Analyzer) detectURLLCViolation(bufferMicros float64) (FailureMode, bool) {
	if bufferMicros <= a.cfg.LatencyBudgetMicros {
		return FailureMode{}, false
	}
	return FailureMode{
		Type: "URLLC_LATENCY",
		Risk: RiskCritical,
		Explanation: fmt.Sprintf(
			"buffer delay %.0f µs exceeds the %.0f µs URLLC latency budget", bufferMicros, a.cfg.LatencyBudgetMicros),
		Mitigations: []string{
			"bypass shaping for URLLC traffic (requires QoS tagging)",
			"upgrade link capacity to avoid buffering",
			"add priority queuing with a separate low-latency path",
		},
	}, true
}

// detectBufferMisconfiguration checks the chosen buffer against the
// supported range and the occupancy the accepted simulation actually
// reached.
func (a *Analyzer) detectBufferMisconfiguration(opt core.OptimizationResult) []FailureMode {
	var modes []FailureMode
	occupancyPct := opt.Final.PeakOccupancy * 100

	if occupancyPct > 95 {
		modes = append(modes, FailureMode{
			Type: "BUFFER_TOO_SMALL",
			Risk: RiskHigh,
			Explanation: fmt.Sprintf(
				"peak buffer occupancy %.1f%% leaves no headroom; loss may exceed the target under slightly heavier traffic", occupancyPct),
			Mitigations: []string{
				"increase the buffer depth and re-run the optimization",
			},
		})
	}

	if occupancyPct < 30 && opt.BufferMicros > a.cfg.MinBufferMicros {
		modes = append(modes, FailureMode{
			Type: "BUFFER_OVERSIZED",
			Risk: RiskLow,
			Explanation: fmt.Sprintf(
				"peak buffer occupancy is only %.1f%%; the %.0f µs buffer adds latency without being used", occupancyPct, opt.BufferMicros),
			Mitigations: []string{
				fmt.Sprintf("reduce the buffer toward %.0f µs", a.cfg.MinBufferMicros),
			},
		})
	}

	if opt.BufferMicros < a.cfg.MinBufferMicros || opt.BufferMicros > a.cfg.MaxBufferMicros {
		modes = append(modes, FailureMode{
			Type: "BUFFER_OUT_OF_RANGE",
			Risk: RiskMedium,
			Explanation: fmt.Sprintf(
				"buffer %.0f µs is outside the supported [%.0f, %.0f] µs range", opt.BufferMicros, a.cfg.MinBufferMicros, a.cfg.MaxBufferMicros),
			Mitigations: []string{
				fmt.Sprintf("adjust the buffer into [%.0f, %.0f] µs", a.cfg.MinBufferMicros, a.cfg.MaxBufferMicros),
			},
		})
	}

	return modes
}

// burstSignal binarizes a traffic series at factor times its mean.
func burstSignal(throughput []float64, factor float64) []float64 {
	if len(throughput) == 0 {
		return nil
	}
	mean := stat.Mean(throughput, nil)
	out := make([]float64, len(throughput))
	for i, v := range throughput {
		if v > factor*mean {
			out[i] = 1
		}
	}
	return out
}

// constantSignal reports a signal with zero variance, for which
// correlation is undefined.
func constantSignal(signal []float64) bool {
	if len(signal) == 0 {
		return true
	}
	first := signal[0]
	for _, v := range signal[1:] {
		if v != first {
			return false
		}
	}
	return true
}
