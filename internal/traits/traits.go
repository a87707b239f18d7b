// Package traits evolves a persona's latent abilities and readiness from training dose.
package traits

import (
	"math"

	"alcyxob/climb-sim/internal/domain"
	"alcyxob/climb-sim/internal/params"
	"alcyxob/climb-sim/internal/sim"
)

// Sensitivity is the adaptation profile of one trainable dimension.
type Sensitivity struct {
	BaseRate  float64
	Intensity float64
	Volume    float64
}

// Params holds every rate the dynamics use.
type Params struct {
	K                   float64
	NoiseSD             float64
	Dimensions          map[domain.Dimension]Sensitivity
	FatigueHalfLife     float64
	FatiguePerHiAttempt float64
	FatiguePerTUTMin    float64
	InjuryWalkStep      float64
	InjuryFatigueCouple float64
	UncertaintyDecay    float64
	UncertaintyFloor    float64
	SleepMean           float64
	SleepReversion      float64
	SleepWalkStep       float64
	MotivationMean      float64
	MotivationReversion float64
	MotivationWalkStep  float64
	MotivationFromDone  float64
}

// DefaultParams returns the built-in dynamics.
func DefaultParams() Params {
	return Params{
		K:       3.0,
		NoiseSD: 0.002,
		Dimensions: map[domain.Dimension]Sensitivity{
			domain.DimStrength:          {BaseRate: 0.020, Intensity: 1.0, Volume: 0.2},
			domain.DimPower:             {BaseRate: 0.020, Intensity: 1.2, Volume: 0.1},
			domain.DimAerobicCapacity:   {BaseRate: 0.015, Intensity: 0.2, Volume: 1.0},
			domain.DimAnaerobicCapacity: {BaseRate: 0.015, Intensity: 0.6, Volume: 0.6},
			domain.DimTechnique:         {BaseRate: 0.010, Intensity: 0.3, Volume: 0.8},
			domain.DimMovementSkill:     {BaseRate: 0.010, Intensity: 0.3, Volume: 0.6},
		},
		FatigueHalfLife:     2,
		FatiguePerHiAttempt: 0.01,
		FatiguePerTUTMin:    0.002,
		InjuryWalkStep:      0.02,
		InjuryFatigueCouple: 0.01,
		UncertaintyDecay:    0.97,
		UncertaintyFloor:    0.01,
		SleepMean:           0.65,
		SleepReversion:      0.2,
		SleepWalkStep:       0.08,
		MotivationMean:      0.6,
		MotivationReversion: 0.15,
		MotivationWalkStep:  0.05,
		MotivationFromDone:  0.1,
	}
}

// ParamsFrom overlays "adapt.*", "fatigue.*", "injury.*" and "readiness.*" keys.
func ParamsFrom(set *params.Set) Params {
	p := DefaultParams()
	p.K = set.Float("adapt.diminishing_returns_k", p.K)
	p.NoiseSD = set.Float("adapt.noise_sd", p.NoiseSD)
	for dim, s := range p.Dimensions {
		prefix := "adapt." + string(dim) + "."
		p.Dimensions[dim] = Sensitivity{
			BaseRate:  set.Float(prefix+"base_rate", s.BaseRate),
			Intensity: set.Float(prefix+"intensity_sensitivity", s.Intensity),
			Volume:    set.Float(prefix+"volume_sensitivity", s.Volume),
		}
	}
	p.FatigueHalfLife = set.Float("fatigue.half_life_steps", p.FatigueHalfLife)
	p.FatiguePerHiAttempt = set.Float("fatigue.add_per_hi_attempt", p.FatiguePerHiAttempt)
	p.FatiguePerTUTMin = set.Float("fatigue.add_per_tut_min", p.FatiguePerTUTMin)
	p.InjuryWalkStep = set.Float("injury.walk_step", p.InjuryWalkStep)
	p.InjuryFatigueCouple = set.Float("injury.fatigue_coupling", p.InjuryFatigueCouple)
	p.UncertaintyDecay = set.Float("adapt.uncertainty_decay", p.UncertaintyDecay)
	p.UncertaintyFloor = set.Float("adapt.uncertainty_floor", p.UncertaintyFloor)
	p.SleepMean = set.Float("readiness.sleep_mean", p.SleepMean)
	p.SleepReversion = set.Float("readiness.sleep_reversion", p.SleepReversion)
	p.SleepWalkStep = set.Float("readiness.sleep_walk_step", p.SleepWalkStep)
	p.MotivationMean = set.Float("readiness.motivation_mean", p.MotivationMean)
	p.MotivationReversion = set.Float("readiness.motivation_reversion", p.MotivationReversion)
	p.MotivationWalkStep = set.Float("readiness.motivation_walk_step", p.MotivationWalkStep)
	p.MotivationFromDone = set.Float("readiness.motivation_from_completion", p.MotivationFromDone)
	return p
}

// Result is the evolved latent vector. Gains holds the applied change per trainable dimension.
type Result struct {
	Latent  domain.Traits
	Gains   domain.Traits
	Fatigue float64
}

// Update applies one step of adaptation. Draw order: one normal per trainable
// dimension (skipped when NoiseSD is 0), then the injury-risk walk.
func Update(latent, ceilings domain.Traits, fatigue float64, f domain.DoseFeatures, p Params, r *sim.Rand) Result {
	next := latent.Clone()
	gains := make(domain.Traits, len(domain.TrainableDimensions))

	for _, dim := range domain.TrainableDimensions {
		s := p.Dimensions[dim]
		cur := latent[dim]
		ceil := ceilings[dim]
		drive := s.Intensity*f.AvgIntensity + s.Volume*f.VolumeScore/10
		remaining := 0.0
		if ceil > 0 {
			remaining = math.Max(0, 1-cur/ceil)
		}
		gain := s.BaseRate*drive*math.Pow(remaining, p.K) + r.Normal(p.NoiseSD)
		next[dim] = sim.Clamp(cur+gain, 0, ceil)
		gains[dim] = next[dim] - cur
	}

	decay := 0.0
	if p.FatigueHalfLife > 0 {
		decay = math.Pow(0.5, 1/p.FatigueHalfLife)
	}
	nextFatigue := sim.Clamp(
		fatigue*decay+p.FatiguePerHiAttempt*float64(f.HiAttempts)+p.FatiguePerTUTMin*f.TUTMinutes,
		0, 1)

	risk := latent[domain.DimInjuryRisk] + r.Symmetric(p.InjuryWalkStep) + p.InjuryFatigueCouple*(nextFatigue-0.5)
	next[domain.DimInjuryRisk] = sim.Clamp(risk, 0, 1)

	return Result{Latent: next, Gains: gains, Fatigue: nextFatigue}
}

// EvolveReadiness drifts sleep and motivation as bounded mean-reverting walks.
// Motivation is nudged up by a well-completed session and down by a poor one.
// Fatigue is carried over untouched; Update owns it.
func EvolveReadiness(cur domain.Readiness, completion float64, p Params, r *sim.Rand) domain.Readiness {
	next := cur
	next.SleepQuality = sim.Clamp(
		cur.SleepQuality+p.SleepReversion*(p.SleepMean-cur.SleepQuality)+r.Symmetric(p.SleepWalkStep),
		0, 1)
	next.Motivation = sim.Clamp(
		cur.Motivation+p.MotivationReversion*(p.MotivationMean-cur.Motivation)+
			p.MotivationFromDone*(completion-0.7)+r.Symmetric(p.MotivationWalkStep),
		0, 1)
	return next
}

// Observe narrows the uncertainty of every dimension after a step of evidence.
func Observe(uncertainty domain.Traits, p Params) domain.Traits {
	out := make(domain.Traits, len(uncertainty))
	for dim, u := range uncertainty {
		out[dim] = math.Max(p.UncertaintyFloor, u*p.UncertaintyDecay)
	}
	return out
}
