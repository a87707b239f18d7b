package traits

import (
	"testing"

	"alcyxob/climb-sim/internal/domain"
	"alcyxob/climb-sim/internal/params"
	"alcyxob/climb-sim/internal/sim"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startingLatent() (domain.Traits, domain.Traits) {
	latent := domain.Traits{domain.DimInjuryRisk: 0.3}
	ceilings := domain.Traits{}
	for i, dim := range domain.TrainableDimensions {
		latent[dim] = 0.2 + 0.05*float64(i)
		ceilings[dim] = 0.7 + 0.04*float64(i)
	}
	return latent, ceilings
}

var session = domain.DoseFeatures{
	Sets: 10, Attempts: 20, TUTMinutes: 30, HiAttempts: 12,
	AvgIntensity: 0.85, IntensityItems: 3, VolumeScore: 14, FatigueCost: 0.81,
}

func TestUpdate_ConvergesToCeilingWithoutNoise(t *testing.T) {
	p := DefaultParams()
	p.NoiseSD = 0
	p.InjuryWalkStep = 0
	latent, ceilings := startingLatent()
	r := sim.NewRand(1)

	for step := 0; step < 300; step++ {
		res := Update(latent, ceilings, 0.3, session, p, r)
		for _, dim := range domain.TrainableDimensions {
			prev, next, ceil := latent[dim], res.Latent[dim], ceilings[dim]
			require.Greater(t, next, prev, "%s at step %d", dim, step)
			require.LessOrEqual(t, next, ceil, "%s at step %d", dim, step)
			require.Less(t, ceil-next, ceil-prev)
		}
		latent = res.Latent
	}
}

func TestUpdate_NeverExceedsCeilingWithLargeRates(t *testing.T) {
	p := DefaultParams()
	for dim, s := range p.Dimensions {
		s.BaseRate = 5
		p.Dimensions[dim] = s
	}
	latent, ceilings := startingLatent()
	r := sim.NewRand(2)
	for step := 0; step < 20; step++ {
		latent = Update(latent, ceilings, 0.5, session, p, r).Latent
		for _, dim := range domain.TrainableDimensions {
			require.GreaterOrEqual(t, latent[dim], 0.0)
			require.LessOrEqual(t, latent[dim], ceilings[dim])
		}
	}
}

func TestUpdate_Fatigue(t *testing.T) {
	p := DefaultParams()
	latent, ceilings := startingLatent()

	rest := Update(latent, ceilings, 0.8, domain.DoseFeatures{}, p, sim.NewRand(3))
	assert.InDelta(t, 0.8*0.7071067811865476, rest.Fatigue, 1e-9)

	hard := Update(latent, ceilings, 0.2, session, p, sim.NewRand(3))
	want := 0.2*0.7071067811865476 + 0.01*12 + 0.002*30
	assert.InDelta(t, want, hard.Fatigue, 1e-9)

	saturated := Update(latent, ceilings, 1, domain.DoseFeatures{HiAttempts: 500}, p, sim.NewRand(3))
	assert.Equal(t, 1.0, saturated.Fatigue)
}

func TestUpdate_InjuryRiskBounded(t *testing.T) {
	p := DefaultParams()
	p.InjuryWalkStep = 0.3
	latent, ceilings := startingLatent()
	r := sim.NewRand(4)
	for step := 0; step < 500; step++ {
		res := Update(latent, ceilings, 0.5, session, p, r)
		risk := res.Latent[domain.DimInjuryRisk]
		require.GreaterOrEqual(t, risk, 0.0)
		require.LessOrEqual(t, risk, 1.0)
		latent = res.Latent
	}
}

func TestUpdate_DoesNotMutateInput(t *testing.T) {
	latent, ceilings := startingLatent()
	before := latent.Clone()
	Update(latent, ceilings, 0.5, session, DefaultParams(), sim.NewRand(5))
	assert.Equal(t, before, latent)
}

func TestUpdate_Deterministic(t *testing.T) {
	latent, ceilings := startingLatent()
	a := Update(latent, ceilings, 0.5, session, DefaultParams(), sim.NewRand(6))
	b := Update(latent, ceilings, 0.5, session, DefaultParams(), sim.NewRand(6))
	assert.Equal(t, a, b)
}

func TestEvolveReadiness(t *testing.T) {
	p := DefaultParams()
	r := sim.NewRand(7)
	cur := domain.Readiness{Fatigue: 0.4, SleepQuality: 0.5, Motivation: 0.5}
	for step := 0; step < 500; step++ {
		next := EvolveReadiness(cur, 0.2+0.8*float64(step%5)/4, p, r)
		require.Equal(t, cur.Fatigue, next.Fatigue)
		require.GreaterOrEqual(t, next.SleepQuality, 0.0)
		require.LessOrEqual(t, next.SleepQuality, 1.0)
		require.GreaterOrEqual(t, next.Motivation, 0.0)
		require.LessOrEqual(t, next.Motivation, 1.0)
		cur = next
	}

	p.SleepWalkStep = 0
	p.MotivationWalkStep = 0
	low := EvolveReadiness(domain.Readiness{Motivation: 0.6}, 0.2, p, r)
	high := EvolveReadiness(domain.Readiness{Motivation: 0.6}, 1.0, p, r)
	assert.Greater(t, high.Motivation, low.Motivation)
}

func TestObserve(t *testing.T) {
	p := DefaultParams()
	got := Observe(domain.Traits{domain.DimStrength: 0.2, domain.DimPower: 0.01}, p)
	assert.InDelta(t, 0.194, got[domain.DimStrength], 1e-9)
	assert.Equal(t, 0.01, got[domain.DimPower])
}

func TestParamsFrom(t *testing.T) {
	set := &params.Set{Values: map[string]any{
		"adapt.diminishing_returns_k": 2.0,
		"adapt": map[string]any{
			"strength": map[string]any{"base_rate": 0.05},
		},
		"fatigue": map[string]any{"half_life_steps": 4},
	}}
	p := ParamsFrom(set)
	assert.Equal(t, 2.0, p.K)
	assert.Equal(t, 0.05, p.Dimensions[domain.DimStrength].BaseRate)
	assert.Equal(t, 1.0, p.Dimensions[domain.DimStrength].Intensity)
	assert.Equal(t, 4.0, p.FatigueHalfLife)
}

func TestParamsFrom_MeansAndFloor(t *testing.T) {
	set := &params.Set{Values: map[string]any{
		"adapt":     map[string]any{"uncertainty_floor": 0.05},
		"readiness": map[string]any{"sleep_mean": 0.5, "motivation_mean": 0.8},
	}}
	p := ParamsFrom(set)
	assert.Equal(t, 0.05, p.UncertaintyFloor)
	assert.Equal(t, 0.5, p.SleepMean)
	assert.Equal(t, 0.8, p.MotivationMean)
	assert.Equal(t, DefaultParams().SleepReversion, p.SleepReversion)
}
