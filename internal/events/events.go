// Package events generates budget- and cooldown-constrained life events.
//
// Step runs one tick of the event state machine. Every random draw comes from the
// supplied generator in a fixed order, so an identical generator and input always
// produce an identical outcome.
package events

import (
	"fmt"

	"alcyxob/climb-sim/internal/domain"
	"alcyxob/climb-sim/internal/sim"

	"github.com/google/uuid"
)

// idNamespace scopes deterministic event ids.
var idNamespace = uuid.MustParse("6f1d3c52-8a0b-4e58-9d51-3f3a8c0e7b21")

var severities = []domain.Severity{domain.SeverityLow, domain.SeverityMedium, domain.SeverityHigh}

// Input is the bookkeeping the event system needs for the step being entered.
type Input struct {
	EpisodeID           string
	Step                int
	Fatigue             float64
	SleepQuality        float64
	InjuryRisk          float64
	ScheduleConsistency float64
	StableStreak        int
	Active              *domain.Event
	Cooldowns           map[domain.EventFamily]int
	GlobalCooldown      int
	Budgets             domain.EventBudgets
}

// Outcome is the bookkeeping after the step. Active is the event occupying the slot
// (possibly one carried over). Started and Ended report transitions.
type Outcome struct {
	Active         *domain.Event
	Started        *domain.Event
	Ended          *domain.Event
	Cooldowns      map[domain.EventFamily]int
	GlobalCooldown int
	Budgets        domain.EventBudgets
	Hazard         float64
	Gated          string
}

// Gate reasons.
const (
	GateActiveEvent    = "active_event"
	GateGlobalCooldown = "global_cooldown"
	GateBudget         = "budget_exhausted"
	GateNoFamily       = "no_eligible_family"
)

// Hazard is the per-step probability that a new event begins.
func Hazard(in Input, p Params) float64 {
	h := p.BaseHazard
	if in.Fatigue > fatigueHigh {
		h *= fatigueMult
	}
	if in.SleepQuality < sleepLow {
		h *= sleepMult
	}
	if in.InjuryRisk > injuryRiskHigh {
		h *= injuryRiskMult
	}
	if p.StableStreakMin > 0 && in.StableStreak >= p.StableStreakMin {
		h *= stableStreakMult
	}
	return sim.Clamp(h, 0, p.MaxHazard)
}

// FamilyWeights returns the sampling weight of every family in domain.EventFamilies
// order. Families with no remaining budget or a running cooldown get zero.
func FamilyWeights(in Input, cooldowns map[domain.EventFamily]int, budgets domain.EventBudgets) []float64 {
	weights := make([]float64, len(domain.EventFamilies))
	for i, f := range domain.EventFamilies {
		if budgets.Families[f].Remaining <= 0 || cooldowns[f] > 0 {
			continue
		}
		w := 1.0
		switch f {
		case domain.FamilyMicroInjuryFlag:
			if in.InjuryRisk < 0.3 {
				w *= 0.3
			} else if in.InjuryRisk > 0.7 {
				w *= 1.5
			}
		case domain.FamilyRecoveryShock:
			if in.SleepQuality < 0.4 {
				w *= 1.8
			}
		case domain.FamilyScheduleShock:
			if in.ScheduleConsistency < 0.5 {
				w *= 1.6
			}
		case domain.FamilyOpportunity:
			if in.Fatigue > 0.75 {
				w *= 0.7
			}
		}
		weights[i] = w
	}
	return weights
}

// Step advances the event bookkeeping into in.Step. The input is not mutated.
func Step(in Input, p Params, r *sim.Rand) Outcome {
	out := Outcome{
		Active:         in.Active,
		Cooldowns:      make(map[domain.EventFamily]int, len(domain.EventFamilies)),
		GlobalCooldown: max(0, in.GlobalCooldown-1),
		Budgets:        in.Budgets.Clone(),
	}
	for _, f := range domain.EventFamilies {
		out.Cooldowns[f] = max(0, in.Cooldowns[f]-1)
	}

	if out.Active != nil && out.Active.EndStep < in.Step {
		out.Ended = out.Active
		out.Active = nil
		out.Cooldowns[out.Ended.Family] = p.PostEventCooldown
		out.GlobalCooldown = p.GlobalCooldown
	}

	switch {
	case out.Active != nil && !p.AllowOverlap:
		out.Gated = GateActiveEvent
		return out
	case out.GlobalCooldown > 0:
		out.Gated = GateGlobalCooldown
		return out
	case out.Budgets.Total.Remaining <= 0:
		out.Gated = GateBudget
		return out
	}

	out.Hazard = Hazard(in, p)
	if r.Float64() >= out.Hazard {
		return out
	}

	// With overlap allowed the new event displaces the active one, whose family
	// enters its post-event cooldown and cannot be drawn again this step.
	replaced := out.Active
	cooldowns := out.Cooldowns
	if replaced != nil {
		cooldowns = make(map[domain.EventFamily]int, len(out.Cooldowns))
		for f, n := range out.Cooldowns {
			cooldowns[f] = n
		}
		cooldowns[replaced.Family] = p.PostEventCooldown
	}

	idx := r.Pick(FamilyWeights(in, cooldowns, out.Budgets))
	if idx < 0 {
		out.Gated = GateNoFamily
		return out
	}
	family := domain.EventFamilies[idx]
	if replaced != nil {
		out.Ended = replaced
		out.Cooldowns = cooldowns
	}

	sev := severities[max(0, r.Pick(p.SeverityWeights))]
	span := p.Durations[sev]
	duration := r.IntRange(span[0], span[1])

	ev := &domain.Event{
		ID:        EventID(in.EpisodeID, in.Step, family),
		EpisodeID: in.EpisodeID,
		Family:    family,
		Severity:  sev,
		StartStep: in.Step,
		EndStep:   in.Step + max(1, duration) - 1,
		Deltas:    Deltas(family, sev),
	}

	fb := out.Budgets.Families[family]
	fb.Remaining--
	out.Budgets.Families[family] = fb
	out.Budgets.Total.Remaining--
	out.Cooldowns[family] = p.FamilyCooldown
	out.Active = ev
	out.Started = ev
	return out
}

// EventID derives the id of the event of family starting at step.
func EventID(episodeID string, step int, family domain.EventFamily) string {
	return uuid.NewSHA1(idNamespace, []byte(fmt.Sprintf("%s/%d/%s", episodeID, step, family))).String()
}
