// Package planner is a scripted coach used to drive batch runs. It produces a valid
// planned workout from the visible state; it does not try to recommend well.
package planner

import (
	"math"
	"slices"

	"alcyxob/climb-sim/internal/domain"
	"alcyxob/climb-sim/internal/sim"
)

const (
	minCapMin       = 20.0
	maxCapMin       = 600.0
	recoveryFatigue = 0.7
	flaggedCeiling  = 0.6
)

// Stream is the generator stream reserved for planning.
const Stream uint64 = 1

// ForStep plans the state's step with the planner stream of seed.
func ForStep(state *domain.ScenarioState, seed int64) *domain.PlannedWorkout {
	return Plan(state, sim.NewStream(uint64(seed), Stream, state.Step))
}

// Plan builds the workout for state. All randomness comes from r, which should be a
// stream separate from the episode generator so planning never shifts simulation draws.
func Plan(state *domain.ScenarioState, r *sim.Rand) *domain.PlannedWorkout {
	readiness, constraints := state.Effective()
	flagged := len(constraints.InjuryFlags) > 0

	session := pickSession(state.Phase, readiness.Fatigue, r)
	budget := constraints.TimeBudgetMin
	capMin := sim.Clamp(math.Round(budget*r.Uniform(0.8, 1.3)), minCapMin, maxCapMin)

	wp := &domain.PlannedWorkout{
		Version:     domain.DocumentVersion,
		SessionType: session,
		TimeCapMin:  domain.FloatPtr(capMin),
		CoachNotes:  "generated for phase " + string(state.Phase),
	}

	add := func(t domain.BlockType, pool []exercise, n int) {
		items := pickItems(pool, constraints.Equipment, n, flagged, r)
		if len(items) > 0 {
			wp.Blocks = append(wp.Blocks, domain.Block{Type: t, Items: items})
		}
	}

	add(domain.BlockWarmup, warmups, 1)
	if flagged {
		add(domain.BlockRehab, rehab, 1+r.IntN(2))
	}
	add(domain.BlockMain, mainPool(session), 1+r.IntN(3))
	if session != domain.SessionRecovery && r.Float64() < 0.5 {
		add(domain.BlockSupplemental, supplemental, 1)
	}
	add(domain.BlockCooldown, cooldowns, 1)
	return wp
}

func pickSession(phase domain.TrainingPhase, fatigue float64, r *sim.Rand) domain.SessionType {
	options, ok := sessionsByPhase[phase]
	if !ok {
		options = sessionsByPhase[domain.PhaseBase]
	}
	choice := options[r.IntN(len(options))]
	if fatigue > recoveryFatigue {
		return domain.SessionRecovery
	}
	return choice
}

func mainPool(session domain.SessionType) []exercise {
	if session == domain.SessionMixed {
		var pool []exercise
		pool = append(pool, mains[domain.SessionStrength]...)
		pool = append(pool, mains[domain.SessionEndurance]...)
		return pool
	}
	return mains[session]
}

// pickItems draws up to n distinct exercises whose equipment is available.
func pickItems(pool []exercise, equipment []string, n int, flagged bool, r *sim.Rand) []domain.Item {
	var avail []exercise
	for _, ex := range pool {
		if ex.equipment == "" || slices.Contains(equipment, ex.equipment) {
			avail = append(avail, ex)
		}
	}
	items := make([]domain.Item, 0, n)
	for len(items) < n && len(avail) > 0 {
		i := r.IntN(len(avail))
		items = append(items, build(avail[i], flagged, r))
		avail = slices.Delete(avail, i, i+1)
	}
	return items
}

func build(ex exercise, flagged bool, r *sim.Rand) domain.Item {
	it := domain.Item{Exercise: ex.name}
	it.Dose.Sets = intIn(ex.sets, r)
	it.Dose.Reps = intIn(ex.reps, r)
	it.Dose.Attempts = intIn(ex.attempts, r)
	it.Dose.RestSec = intIn(ex.restSec, r)
	if m := intIn(ex.minutes, r); m != nil {
		it.Dose.Minutes = domain.FloatPtr(float64(*m))
	}
	if ex.intensity[1] > 0 {
		v := math.Round(r.Uniform(ex.intensity[0], ex.intensity[1])*100) / 100
		if flagged {
			v = math.Min(v, flaggedCeiling)
		}
		it.Intensity = &domain.Intensity{Intensity: domain.FloatPtr(v), GradeBand: ex.gradeBand}
	}
	return it
}

func intIn(span [2]int, r *sim.Rand) *int {
	if span[1] == 0 {
		return nil
	}
	return domain.IntPtr(r.IntRange(span[0], span[1]))
}
