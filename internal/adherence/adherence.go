// Package adherence turns a planned workout into the workout the athlete actually did.
package adherence

import (
	"fmt"
	"math"

	"alcyxob/climb-sim/internal/domain"
	"alcyxob/climb-sim/internal/params"
	"alcyxob/climb-sim/internal/schema"
	"alcyxob/climb-sim/internal/sim"
)

// Completion bounds.
const (
	MinCompletion = 0.2
	MaxCompletion = 1.0
)

// skipSupplementalBelow is the completion under which supplemental blocks are dropped.
const skipSupplementalBelow = 0.4

// Params are the logistic model weights.
type Params struct {
	Bias              float64
	TimeOverrunWeight float64
	FatigueWeight     float64
	MotivationWeight  float64
	ComplexityWeight  float64
	ComplexityNorm    float64
	NoAccessPenalty   float64
	Noise             float64
}

// DefaultParams returns the built-in weights.
func DefaultParams() Params {
	return Params{
		Bias:              2.0,
		TimeOverrunWeight: 3.0,
		FatigueWeight:     2.0,
		MotivationWeight:  1.5,
		ComplexityWeight:  1.0,
		ComplexityNorm:    12,
		NoAccessPenalty:   1.0,
		Noise:             0.05,
	}
}

// ParamsFrom overlays "adherence.*" keys on the defaults.
func ParamsFrom(set *params.Set) Params {
	p := DefaultParams()
	p.Bias = set.Float("adherence.bias", p.Bias)
	p.TimeOverrunWeight = set.Float("adherence.time_overrun_weight", p.TimeOverrunWeight)
	p.FatigueWeight = set.Float("adherence.fatigue_weight", p.FatigueWeight)
	p.MotivationWeight = set.Float("adherence.motivation_weight", p.MotivationWeight)
	p.ComplexityWeight = set.Float("adherence.complexity_weight", p.ComplexityWeight)
	p.ComplexityNorm = set.Float("adherence.complexity_norm", p.ComplexityNorm)
	p.NoAccessPenalty = set.Float("adherence.no_access_penalty", p.NoAccessPenalty)
	p.Noise = set.Float("adherence.noise", p.Noise)
	return p
}

// View is the slice of state adherence depends on: effective readiness and
// constraints (event overlay applied) plus any intensity cap.
type View struct {
	Readiness        domain.Readiness
	Constraints      domain.Constraints
	IntensityCeiling *float64
}

// ViewOf builds the view of a state.
func ViewOf(s *domain.ScenarioState) View {
	r, c := s.Effective()
	return View{Readiness: r, Constraints: c, IntensityCeiling: s.IntensityCeiling()}
}

// Result is one simulated execution.
type Result struct {
	Probability float64
	Completion  float64
	Executed    *domain.ExecutedWorkout
}

// Probability is the noiseless completion probability.
func Probability(planned *domain.PlannedWorkout, v View, p Params) float64 {
	score := p.Bias
	budget := v.Constraints.TimeBudgetMin
	minutes := planned.PlannedMinutes()
	switch {
	case budget > 0:
		score -= p.TimeOverrunWeight * math.Max(0, (minutes-budget)/budget)
	case minutes > 0:
		// No time at all: treat as the largest overrun the model distinguishes.
		score -= p.TimeOverrunWeight * minutes
	}
	score -= p.FatigueWeight * v.Readiness.Fatigue
	score += p.MotivationWeight * (v.Readiness.Motivation - 0.5)
	if p.ComplexityNorm > 0 {
		score -= p.ComplexityWeight * float64(planned.ItemCount()) / p.ComplexityNorm
	}
	if !v.Constraints.GymAccess {
		score -= p.NoAccessPenalty
	}
	return 1 / (1 + math.Exp(-score))
}

// Run simulates the execution of planned. One generator draw is consumed for the
// noise term. The executed document is schema-validated before it is returned.
func Run(planned *domain.PlannedWorkout, actionID string, v View, p Params, r *sim.Rand) (Result, error) {
	if planned == nil {
		return Result{}, fmt.Errorf("adherence: planned workout is nil")
	}
	prob := Probability(planned, v, p)
	completion := sim.Clamp(prob+r.Symmetric(p.Noise), MinCompletion, MaxCompletion)

	exec := &domain.ExecutedWorkout{
		Version:         domain.DocumentVersion,
		PlannedActionID: actionID,
		Completion:      completion,
		Deviations:      []domain.Deviation{},
	}

	skipSupplemental := completion < skipSupplementalBelow && hasNonSupplemental(planned.Blocks)
	for bi, b := range planned.Blocks {
		if skipSupplemental && b.Type == domain.BlockSupplemental {
			exec.Deviations = append(exec.Deviations, domain.Deviation{
				Kind:   domain.DeviationSkippedBlock,
				Path:   fmt.Sprintf("blocks[%d]", bi),
				Detail: "skipped under time pressure",
			})
			continue
		}
		out := domain.Block{Type: b.Type, Items: make([]domain.Item, 0, len(b.Items))}
		for ii, it := range b.Items {
			item, capped := scaleItem(it, completion, v.IntensityCeiling)
			if capped {
				exec.Deviations = append(exec.Deviations, domain.Deviation{
					Kind:   domain.DeviationIntensityCapped,
					Path:   fmt.Sprintf("blocks[%d].items[%d].intensity.intensity", bi, ii),
					Detail: fmt.Sprintf("capped at %.2f", *v.IntensityCeiling),
				})
			}
			out.Items = append(out.Items, item)
		}
		exec.Blocks = append(exec.Blocks, out)
	}

	if completion < MaxCompletion {
		exec.Deviations = append(exec.Deviations, domain.Deviation{
			Kind:   domain.DeviationReducedVolume,
			Path:   "blocks",
			Detail: fmt.Sprintf("completed %.0f%% of prescribed volume", completion*100),
		})
	}
	if !v.Constraints.GymAccess {
		exec.Deviations = append(exec.Deviations, domain.Deviation{
			Kind:   domain.DeviationAccessLimited,
			Path:   "blocks",
			Detail: "no gym access",
		})
	}

	if err := schema.ValidateExecuted(exec); err != nil {
		return Result{}, fmt.Errorf("adherence: executed workout: %w", err)
	}
	return Result{Probability: prob, Completion: completion, Executed: exec}, nil
}

func scaleItem(it domain.Item, f float64, ceiling *float64) (domain.Item, bool) {
	out := domain.Item{Exercise: it.Exercise}
	out.Dose = domain.Dose{
		Sets:     scaleInt(it.Dose.Sets, f),
		Reps:     scaleInt(it.Dose.Reps, f),
		Attempts: scaleInt(it.Dose.Attempts, f),
		RestSec:  copyInt(it.Dose.RestSec),
	}
	if it.Dose.Minutes != nil {
		out.Dose.Minutes = domain.FloatPtr(*it.Dose.Minutes * f)
	}

	if it.Intensity == nil {
		return out, false
	}
	in := *it.Intensity
	capped := false
	if in.Intensity != nil {
		v := *in.Intensity
		if ceiling != nil && v > *ceiling {
			v = *ceiling
			capped = true
		}
		in.Intensity = &v
	}
	out.Intensity = &in
	return out, capped
}

func scaleInt(v *int, f float64) *int {
	if v == nil {
		return nil
	}
	return domain.IntPtr(int(math.Round(float64(*v) * f)))
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	return domain.IntPtr(*v)
}

func hasNonSupplemental(blocks []domain.Block) bool {
	for _, b := range blocks {
		if b.Type != domain.BlockSupplemental {
			return true
		}
	}
	return false
}
