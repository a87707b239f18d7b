package events

import (
	"alcyxob/climb-sim/internal/domain"
	"alcyxob/climb-sim/internal/params"
)

// Fixed hazard modifiers. Only the base rate and the clamp come from the parameter set.
const (
	fatigueHigh      = 0.75
	fatigueMult      = 1.35
	sleepLow         = 0.35
	sleepMult        = 1.25
	injuryRiskHigh   = 0.70
	injuryRiskMult   = 1.50
	stableStreakMult = 0.85
)

// Params configures the event system.
type Params struct {
	BaseHazard        float64
	MaxHazard         float64
	StableStreakMin   int
	AllowOverlap      bool
	FamilyCooldown    int
	PostEventCooldown int
	GlobalCooldown    int
	SeverityWeights   []float64 // low, medium, high
	Durations         map[domain.Severity][2]int
	TotalBudget       int
	FamilyBudgets     map[domain.EventFamily]int
}

// DefaultParams returns the built-in event model.
func DefaultParams() Params {
	return Params{
		BaseHazard:        0.08,
		MaxHazard:         0.18,
		StableStreakMin:   3,
		AllowOverlap:      false,
		FamilyCooldown:    3,
		PostEventCooldown: 2,
		GlobalCooldown:    1,
		SeverityWeights:   []float64{0.75, 0.22, 0.03},
		Durations: map[domain.Severity][2]int{
			domain.SeverityLow:    {1, 2},
			domain.SeverityMedium: {2, 4},
			domain.SeverityHigh:   {4, 7},
		},
		TotalBudget: 4,
		FamilyBudgets: map[domain.EventFamily]int{
			domain.FamilyScheduleShock:   2,
			domain.FamilyAccessShock:     1,
			domain.FamilyRecoveryShock:   2,
			domain.FamilyMicroInjuryFlag: 1,
			domain.FamilyOpportunity:     1,
		},
	}
}

// ParamsFrom overlays a parameter set on the defaults. Keys live under "events.".
func ParamsFrom(set *params.Set) Params {
	p := DefaultParams()
	p.BaseHazard = set.Float("events.base_hazard", p.BaseHazard)
	p.MaxHazard = set.Float("events.max_hazard", p.MaxHazard)
	p.StableStreakMin = set.Int("events.stable_streak_min", p.StableStreakMin)
	p.AllowOverlap = set.Bool("events.allow_overlap", p.AllowOverlap)
	p.FamilyCooldown = set.Int("events.family_cooldown", p.FamilyCooldown)
	p.PostEventCooldown = set.Int("events.post_event_cooldown", p.PostEventCooldown)
	p.GlobalCooldown = set.Int("events.global_cooldown", p.GlobalCooldown)
	for sev, def := range p.Durations {
		p.Durations[sev] = set.IntRange("events.duration."+string(sev), def)
	}
	p.TotalBudget = set.Int("events.budget.total", p.TotalBudget)
	for fam, def := range p.FamilyBudgets {
		p.FamilyBudgets[fam] = set.Int("events.budget."+string(fam), def)
	}
	return p
}

// InitialBudgets builds the episode's starting budget bookkeeping.
func (p Params) InitialBudgets() domain.EventBudgets {
	b := domain.EventBudgets{
		Total:    domain.Budget{Initial: p.TotalBudget, Remaining: p.TotalBudget},
		Families: make(map[domain.EventFamily]domain.Budget, len(domain.EventFamilies)),
	}
	for _, f := range domain.EventFamilies {
		n := p.FamilyBudgets[f]
		b.Families[f] = domain.Budget{Initial: n, Remaining: n}
	}
	return b
}

// InitialCooldowns returns all-zero family cooldowns.
func InitialCooldowns() map[domain.EventFamily]int {
	c := make(map[domain.EventFamily]int, len(domain.EventFamilies))
	for _, f := range domain.EventFamilies {
		c[f] = 0
	}
	return c
}
