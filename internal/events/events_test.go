package events

import (
	"testing"

	"alcyxob/climb-sim/internal/domain"
	"alcyxob/climb-sim/internal/params"
	"alcyxob/climb-sim/internal/sim"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freshInput(p Params) Input {
	return Input{
		EpisodeID:           "ep-1",
		Step:                2,
		Fatigue:             0.4,
		SleepQuality:        0.7,
		InjuryRisk:          0.2,
		ScheduleConsistency: 0.8,
		Cooldowns:           InitialCooldowns(),
		Budgets:             p.InitialBudgets(),
	}
}

func TestHazard_Modifiers(t *testing.T) {
	p := DefaultParams()
	in := freshInput(p)
	assert.InDelta(t, 0.08, Hazard(in, p), 1e-12)

	in.Fatigue = 0.8
	assert.InDelta(t, 0.08*1.35, Hazard(in, p), 1e-12)

	in.InjuryRisk = 0.8
	assert.InDelta(t, 0.08*1.35*1.5, Hazard(in, p), 1e-12)

	in.SleepQuality = 0.3
	assert.InDelta(t, 0.18, Hazard(in, p), 1e-12, "clamped at the maximum")

	calm := freshInput(p)
	calm.StableStreak = 3
	assert.InDelta(t, 0.08*0.85, Hazard(calm, p), 1e-12)
}

func TestStep_Deterministic(t *testing.T) {
	p := DefaultParams()
	for seed := uint64(0); seed < 200; seed++ {
		in := freshInput(p)
		in.Fatigue = 0.9
		a := Step(in, p, sim.NewRand(seed))
		b := Step(in, p, sim.NewRand(seed))
		require.Equal(t, a, b, "seed %d", seed)
	}
}

func TestStep_SeedFortyTwoScenario(t *testing.T) {
	p := DefaultParams()
	in := freshInput(p)
	in.Fatigue = 0.8
	in.SleepQuality = 0.3
	in.InjuryRisk = 0.8
	in.ScheduleConsistency = 0.4

	first := Step(in, p, sim.NewRand(42))
	second := Step(in, p, sim.NewRand(42))

	assert.GreaterOrEqual(t, first.Hazard, 0.08*1.35*1.5)
	assert.Equal(t, first.Started, second.Started)
	if first.Started != nil {
		assert.Equal(t, first.Started.Family, second.Started.Family)
		assert.Equal(t, first.Started.Severity, second.Started.Severity)
		assert.Equal(t, first.Started.EndStep, second.Started.EndStep)
	}
}

func TestStep_StartsEventWhenDrawBelowHazard(t *testing.T) {
	p := DefaultParams()
	p.BaseHazard = 1
	p.MaxHazard = 1
	in := freshInput(p)

	out := Step(in, p, sim.NewRand(7))
	require.NotNil(t, out.Started)
	ev := out.Started
	assert.Equal(t, in.Step, ev.StartStep)
	span := p.Durations[ev.Severity]
	assert.GreaterOrEqual(t, ev.EndStep-ev.StartStep+1, span[0])
	assert.LessOrEqual(t, ev.EndStep-ev.StartStep+1, span[1])
	assert.Equal(t, p.FamilyCooldown, out.Cooldowns[ev.Family])
	assert.Equal(t, p.TotalBudget-1, out.Budgets.Total.Remaining)
	assert.Equal(t, 1, out.Budgets.Families[ev.Family].Consumed())
	assert.Equal(t, EventID("ep-1", 2, ev.Family), ev.ID)

	// The caller's bookkeeping is untouched.
	assert.Equal(t, p.TotalBudget, in.Budgets.Total.Remaining)
	assert.Equal(t, 0, in.Cooldowns[ev.Family])
}

func TestStep_EndCheckAndGates(t *testing.T) {
	p := DefaultParams()
	p.BaseHazard = 1
	p.MaxHazard = 1
	active := &domain.Event{Family: domain.FamilyRecoveryShock, StartStep: 2, EndStep: 3}

	t.Run("active event blocks a new one", func(t *testing.T) {
		in := freshInput(p)
		in.Step = 3
		in.Active = active
		out := Step(in, p, sim.NewRand(1))
		assert.Same(t, active, out.Active)
		assert.Nil(t, out.Started)
		assert.Equal(t, GateActiveEvent, out.Gated)
	})

	t.Run("ended event sets cooldowns", func(t *testing.T) {
		in := freshInput(p)
		in.Step = 4
		in.Active = active
		out := Step(in, p, sim.NewRand(1))
		assert.Nil(t, out.Active)
		assert.Same(t, active, out.Ended)
		assert.Equal(t, p.PostEventCooldown, out.Cooldowns[domain.FamilyRecoveryShock])
		assert.Equal(t, GateGlobalCooldown, out.Gated)
	})

	t.Run("overlap replaces the active event", func(t *testing.T) {
		p := p
		p.AllowOverlap = true
		in := freshInput(p)
		in.Step = 3
		in.Active = active
		out := Step(in, p, sim.NewRand(1))
		require.NotNil(t, out.Started)
		assert.Same(t, out.Started, out.Active)
		assert.Same(t, active, out.Ended)
		assert.NotEqual(t, domain.FamilyRecoveryShock, out.Started.Family)
		assert.Equal(t, p.PostEventCooldown, out.Cooldowns[domain.FamilyRecoveryShock])
		assert.Equal(t, p.FamilyCooldown, out.Cooldowns[out.Started.Family])
	})

	t.Run("overlap without an eligible family keeps the active event", func(t *testing.T) {
		p := p
		p.AllowOverlap = true
		in := freshInput(p)
		in.Step = 3
		in.Active = active
		for _, f := range domain.EventFamilies {
			if f != domain.FamilyRecoveryShock {
				in.Cooldowns[f] = 5
			}
		}
		out := Step(in, p, sim.NewRand(1))
		assert.Nil(t, out.Started)
		assert.Nil(t, out.Ended)
		assert.Same(t, active, out.Active)
		assert.Equal(t, GateNoFamily, out.Gated)
		assert.Zero(t, out.Cooldowns[domain.FamilyRecoveryShock])
	})

	t.Run("exhausted total budget", func(t *testing.T) {
		in := freshInput(p)
		in.Budgets.Total.Remaining = 0
		out := Step(in, p, sim.NewRand(1))
		assert.Nil(t, out.Started)
		assert.Equal(t, GateBudget, out.Gated)
	})

	t.Run("every family cooling down", func(t *testing.T) {
		in := freshInput(p)
		for _, f := range domain.EventFamilies {
			in.Cooldowns[f] = 5
		}
		out := Step(in, p, sim.NewRand(1))
		assert.Nil(t, out.Started)
		assert.Equal(t, GateNoFamily, out.Gated)
	})
}

func TestStep_BudgetConservationAndCooldowns(t *testing.T) {
	p := DefaultParams()
	p.BaseHazard = 0.5
	p.MaxHazard = 0.5

	for seed := uint64(1); seed <= 50; seed++ {
		r := sim.NewRand(seed)
		noise := sim.NewStream(seed, 9, 0)
		in := freshInput(p)
		started := map[domain.EventFamily]int{}
		total := 0

		for step := 2; step < 400; step++ {
			in.Step = step
			in.Fatigue = noise.Float64()
			in.SleepQuality = noise.Float64()
			in.InjuryRisk = noise.Float64()
			in.ScheduleConsistency = noise.Float64()

			out := Step(in, p, r)
			if out.Started != nil {
				f := out.Started.Family
				require.LessOrEqual(t, in.Cooldowns[f], 1, "family %s started while cooling down", f)
				require.Nil(t, out.Ended)
				started[f]++
				total++
			}
			for _, f := range domain.EventFamilies {
				b := out.Budgets.Families[f]
				require.Equal(t, p.FamilyBudgets[f], b.Consumed()+b.Remaining)
				require.Equal(t, started[f], b.Consumed())
				require.GreaterOrEqual(t, b.Remaining, 0)
			}
			require.Equal(t, p.TotalBudget, out.Budgets.Total.Consumed()+out.Budgets.Total.Remaining)
			require.Equal(t, total, out.Budgets.Total.Consumed())
			require.GreaterOrEqual(t, out.Budgets.Total.Remaining, 0)

			in.Active = out.Active
			in.Cooldowns = out.Cooldowns
			in.GlobalCooldown = out.GlobalCooldown
			in.Budgets = out.Budgets
		}
	}
}

func TestDeltas(t *testing.T) {
	d := Deltas(domain.FamilyScheduleShock, domain.SeverityMedium)
	assert.Equal(t, -25.0, d.TimeBudgetMin)

	d = Deltas(domain.FamilyMicroInjuryFlag, domain.SeverityHigh)
	require.NotNil(t, d.IntensityCeiling)
	assert.Equal(t, 0.55, *d.IntensityCeiling)
	assert.NotEmpty(t, d.InjuryFlag)

	d = Deltas(domain.FamilyAccessShock, domain.SeverityHigh)
	require.NotNil(t, d.GymAccess)
	assert.False(t, *d.GymAccess)

	d = Deltas(domain.FamilyOpportunity, domain.SeverityLow)
	assert.Equal(t, 15.0, d.TimeBudgetMin)
}

func TestParamsFrom(t *testing.T) {
	set := &params.Set{Values: map[string]any{
		"events": map[string]any{
			"base_hazard":   0.1,
			"allow_overlap": true,
			"budget":        map[string]any{"total": 6, "opportunity": 3},
			"duration":      map[string]any{"high": []any{5, 8}},
		},
	}}
	p := ParamsFrom(set)
	assert.Equal(t, 0.1, p.BaseHazard)
	assert.True(t, p.AllowOverlap)
	assert.Equal(t, 6, p.TotalBudget)
	assert.Equal(t, 3, p.FamilyBudgets[domain.FamilyOpportunity])
	assert.Equal(t, 2, p.FamilyBudgets[domain.FamilyScheduleShock])
	assert.Equal(t, [2]int{5, 8}, p.Durations[domain.SeverityHigh])
	assert.Equal(t, [2]int{1, 2}, p.Durations[domain.SeverityLow])
}
