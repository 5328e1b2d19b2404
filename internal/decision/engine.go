// Package decision turns a link's optimization and resilience results
// into an operator-facing recommendation: shape, upgrade, or shape
// with caution, plus the hardware cost and energy impact of avoiding
// an upgrade.
package decision

import (
	"fmt"
	"sort"
	"strings"

	"github.com/signalsfoundry/fronthaul-optimizer/core"
	"github.com/signalsfoundry/fronthaul-optimizer/internal/resilience"
)

// Action is the operator guidance for one link.
type Action string

const (
	// ActionUpgradeRequired: a CRITICAL failure mode rules shaping out.
	ActionUpgradeRequired Action = "UPGRADE_REQUIRED"
	// ActionConditionalShaping: shaping works but HIGH-risk factors
	// demand monitoring and an upgrade fallback plan.
	ActionConditionalShaping Action = "CONDITIONAL_SHAPING"
	// ActionEnableShaping: shaping yields a large capacity reduction
	// with no significant risk.
	ActionEnableShaping Action = "ENABLE_SHAPING"
	// ActionUpgradeRecommended: shaping is safe but barely helps.
	ActionUpgradeRecommended Action = "UPGRADE_RECOMMENDED"
)

// OpticClass is one pluggable-optic rate class with its procurement
// cost and power draw.
type OpticClass struct {
	Name       string  `json:"name"`
	RateGbps   float64 `json:"rate_gbps"`
	CostUSD    float64 `json:"cost_usd"`
	PowerWatts float64 `json:"power_watts"`
}

// Sustainability quantifies what running on a smaller optic is worth.
type Sustainability struct {
	OpticWithoutShaping string  `json:"optic_without_shaping"`
	OpticWithShaping    string  `json:"optic_with_shaping"`
	CostWithoutUSD      float64 `json:"cost_without_usd"`
	CostWithUSD         float64 `json:"cost_with_usd"`
	SavingsUSD          float64 `json:"savings_usd"`
	PowerSavingsWatts   float64 `json:"power_savings_watts"`
	AnnualEnergyKWh     float64 `json:"annual_energy_kwh"`
	AnnualCO2Kg         float64 `json:"annual_co2_kg"`
	UpgradeAvoided      bool    `json:"upgrade_avoided"`
}

// Recommendation is the final per-link deliverable handed to
// operations.
type Recommendation struct {
	LinkID          int            `json:"link_id"`
	Action          Action         `json:"action"`
	CurrentLinkRate string         `json:"current_link_rate"`
	Summary         string         `json:"summary"`
	NextSteps       []string       `json:"next_steps"`
	Sustainability  Sustainability `json:"sustainability"`
}

// Engine applies the decision policy. It is stateless apart from its
// optic table.
type Engine struct {
	optics      []OpticClass
	headroom    float64
	kgCO2PerKWh float64
}

// Option tweaks engine construction.
type Option func(*Engine)

// WithOptics replaces the default optic table.
func WithOptics(optics []OpticClass) Option {
	return func(e *Engine) {
		if len(optics) > 0 {
			e.optics = optics
		}
	}
}

// WithCarbonIntensity overrides the grid carbon factor (kg CO2e/kWh).
func WithCarbonIntensity(kgPerKWh float64) Option {
	return func(e *Engine) {
		if kgPerKWh > 0 {
			e.kgCO2PerKWh = kgPerKWh
		}
	}
}

const hoursPerYear = 8760

// NewEngine constructs an Engine with the standard optic catalogue.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		optics: []OpticClass{
			{Name: "10G", RateGbps: 10, CostUSD: 500, PowerWatts: 2.5},
			{Name: "25G", RateGbps: 25, CostUSD: 1500, PowerWatts: 3.5},
			{Name: "40G", RateGbps: 40, CostUSD: 5000, PowerWatts: 5.0},
			{Name: "100G", RateGbps: 100, CostUSD: 15000, PowerWatts: 8.0},
		},
		headroom:    1.1, // 10% above observed need
		kgCO2PerKWh: 0.5, // global grid average
	}
	for _, opt := range opts {
		opt(e)
	}
	sort.Slice(e.optics, func(i, j int) bool { return e.optics[i].RateGbps < e.optics[j].RateGbps })
	return e
}

// RequiredOptic returns the smallest optic class that covers the
// capacity plus headroom; the largest class when nothing does.
func (e *Engine) RequiredOptic(capacityGbps float64) OpticClass {
	need := capacityGbps * e.headroom
	for _, oc := range e.optics {
		if oc.RateGbps >= need {
			return oc
		}
	}
	return e.optics[len(e.optics)-1]
}

// Sustainability compares peak-provisioned and optimized capacities in
// optics, dollars, watts, and annual CO2.
func (e *Engine) Sustainability(peakGbps, optimalGbps float64) Sustainability {
	without := e.RequiredOptic(peakGbps)
	with := e.RequiredOptic(optimalGbps)

	powerSavings := without.PowerWatts - with.PowerWatts
	annualKWh := powerSavings / 1000 * hoursPerYear

	return Sustainability{
		OpticWithoutShaping: without.Name,
		OpticWithShaping:    with.Name,
		CostWithoutUSD:      without.CostUSD,
		CostWithUSD:         with.CostUSD,
		SavingsUSD:          without.CostUSD - with.CostUSD,
		PowerSavingsWatts:   powerSavings,
		AnnualEnergyKWh:     annualKWh,
		AnnualCO2Kg:         annualKWh * e.kgCO2PerKWh,
		UpgradeAvoided:      without.Name != with.Name,
	}
}

// Recommend applies the decision policy for one link:
//
//	CRITICAL risk            -> upgrade required, shaping unsafe
//	HIGH risk                -> shape, but conditionally
//	reduction above 50%      -> shape
//	otherwise                -> the saving is marginal, upgrade instead
func (e *Engine) Recommend(opt core.OptimizationResult, res resilience.Analysis) Recommendation {
	rec := Recommendation{
		LinkID:          opt.LinkID,
		CurrentLinkRate: e.RequiredOptic(opt.PeakCapacityGbps).Name,
		Sustainability:  e.Sustainability(opt.PeakCapacityGbps, opt.OptimalCapacityGbps),
	}

	switch {
	case res.OverallRisk == resilience.RiskCritical:
		rec.Action = ActionUpgradeRequired
		rec.Summary = fmt.Sprintf(
			"upgrade required: %s risk rules out shaping on link %d", res.OverallRisk, opt.LinkID)
		rec.NextSteps = []string{
			"review the failure-mode analysis",
			"plan a link capacity upgrade",
			"consider segregating latency-critical traffic",
		}

	case res.OverallRisk == resilience.RiskHigh:
		rec.Action = ActionConditionalShaping
		rec.Summary = fmt.Sprintf(
			"enable shaping with a %.0f µs buffer, but monitor closely: HIGH-risk factors present", opt.BufferMicros)
		rec.NextSteps = []string{
			"deploy shaping in monitoring mode first",
			"address the detected failure modes",
			"keep an upgrade plan as fallback",
		}

	case opt.CapacityReductionPct > 50:
		rec.Action = ActionEnableShaping
		rec.Summary = fmt.Sprintf(
			"do not upgrade: shaping with a %.0f µs buffer cuts required capacity by %.1f%% (%.2f -> %.2f Gbps)",
			opt.BufferMicros, opt.CapacityReductionPct, opt.PeakCapacityGbps, opt.OptimalCapacityGbps)
		rec.NextSteps = []string{
			fmt.Sprintf("configure %s shaping with a %.0f µs buffer", opt.Class, opt.BufferMicros),
			fmt.Sprintf("monitor packet loss against the %.2f%% target", opt.AchievedLossRatio*100),
			"validate QoS metrics after deployment",
		}

	default:
		rec.Action = ActionUpgradeRecommended
		rec.Summary = fmt.Sprintf(
			"shaping only reduces capacity by %.1f%%; upgrading the link is the simpler option", opt.CapacityReductionPct)
		rec.NextSteps = []string{
			"compare upgrade cost against shaping complexity",
			"deploy shaping as an interim measure if cost-sensitive",
		}
	}

	return rec
}

// FormatReport renders a plain-text operator report for one link.
func FormatReport(rec Recommendation, opt core.OptimizationResult, res resilience.Analysis) string {
	var b strings.Builder
	rule := strings.Repeat("=", 70)

	fmt.Fprintf(&b, "%s\nLINK %d ANALYSIS & RECOMMENDATION\n%s\n\n", rule, rec.LinkID, rule)

	fmt.Fprintf(&b, "Traffic:\n")
	fmt.Fprintf(&b, "  peak load          %8.2f Gbps\n", opt.PeakCapacityGbps)
	fmt.Fprintf(&b, "  optimal capacity   %8.2f Gbps\n", opt.OptimalCapacityGbps)
	fmt.Fprintf(&b, "  capacity reduction %8.1f %%\n", opt.CapacityReductionPct)
	fmt.Fprintf(&b, "  buffer             %8.0f µs (%s)\n", opt.BufferMicros, opt.Class)
	fmt.Fprintf(&b, "  achieved loss      %8.4f %%\n", opt.AchievedLossRatio*100)
	fmt.Fprintf(&b, "  search iterations  %8d\n", opt.SearchIterations)
	fmt.Fprintf(&b, "  risk level         %8s\n\n", res.OverallRisk)

	fmt.Fprintf(&b, "Recommendation (%s):\n  %s\n\n", rec.Action, rec.Summary)

	if len(res.Modes) > 0 {
		fmt.Fprintf(&b, "Failure modes:\n")
		for _, m := range res.Modes {
			fmt.Fprintf(&b, "  [%s] %s: %s\n", m.Risk, m.Type, m.Explanation)
		}
		b.WriteString("\n")
	}

	s := rec.Sustainability
	fmt.Fprintf(&b, "Sustainability:\n")
	fmt.Fprintf(&b, "  optics             %s -> %s\n", s.OpticWithoutShaping, s.OpticWithShaping)
	fmt.Fprintf(&b, "  hardware savings   %.0f USD\n", s.SavingsUSD)
	fmt.Fprintf(&b, "  annual energy      %.1f kWh (%.1f kg CO2e)\n\n", s.AnnualEnergyKWh, s.AnnualCO2Kg)

	fmt.Fprintf(&b, "Next steps:\n")
	for i, step := range rec.NextSteps {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, step)
	}
	fmt.Fprintf(&b, "%s\n", rule)

	return b.String()
}
