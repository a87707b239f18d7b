// internal/domain/state.go
package domain

import "time"

// TrainingPhase labels the macrocycle position of a step.
type TrainingPhase string

const (
	PhaseBase   TrainingPhase = "base"
	PhaseBuild  TrainingPhase = "build"
	PhasePeak   TrainingPhase = "peak"
	PhaseDeload TrainingPhase = "deload"
)

// Dimension names a latent trait.
type Dimension string

const (
	DimStrength          Dimension = "strength"
	DimPower             Dimension = "power"
	DimAerobicCapacity   Dimension = "aerobic_capacity"
	DimAnaerobicCapacity Dimension = "anaerobic_capacity"
	DimTechnique         Dimension = "technique"
	DimMovementSkill     Dimension = "movement_skill"
	DimInjuryRisk        Dimension = "injury_risk"
)

// TrainableDimensions are the traits that respond to training dose, in update order.
var TrainableDimensions = []Dimension{
	DimStrength,
	DimPower,
	DimAerobicCapacity,
	DimAnaerobicCapacity,
	DimTechnique,
	DimMovementSkill,
}

// Traits is a value per dimension. Trainable dimensions are capped by their ceiling;
// injury risk lives in [0,1].
type Traits map[Dimension]float64

// Clone copies the map.
func (t Traits) Clone() Traits {
	out := make(Traits, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Baseline holds static persona facts drawn at episode start.
type Baseline struct {
	Age           int    `bson:"age" json:"age"`
	YearsClimbing int    `bson:"yearsClimbing" json:"yearsClimbing"`
	Goal          string `bson:"goal" json:"goal"`
	MaxGrade      string `bson:"maxGrade" json:"maxGrade"`
}

// Readiness is the day-to-day state of the athlete.
type Readiness struct {
	Fatigue      float64 `bson:"fatigue" json:"fatigue"`
	SleepQuality float64 `bson:"sleepQuality" json:"sleepQuality"`
	Motivation   float64 `bson:"motivation" json:"motivation"`
}

// Constraints bound what the athlete can do this step.
type Constraints struct {
	TimeBudgetMin       float64  `bson:"timeBudgetMin" json:"timeBudgetMin"`
	Equipment           []string `bson:"equipment" json:"equipment"`
	GymAccess           bool     `bson:"gymAccess" json:"gymAccess"`
	InjuryFlags         []string `bson:"injuryFlags" json:"injuryFlags"`
	ScheduleConsistency float64  `bson:"scheduleConsistency" json:"scheduleConsistency"`
}

// Clone copies the slices.
func (c Constraints) Clone() Constraints {
	out := c
	out.Equipment = append([]string(nil), c.Equipment...)
	out.InjuryFlags = append([]string(nil), c.InjuryFlags...)
	return out
}

// ScenarioState is the write-once snapshot of one episode at one step.
type ScenarioState struct {
	ID             string              `bson:"_id" json:"id"`
	EpisodeID      string              `bson:"episodeId" json:"episodeId"`
	Step           int                 `bson:"step" json:"step"`
	PersonaID      string              `bson:"personaId" json:"personaId"`
	Baseline       Baseline            `bson:"baseline" json:"baseline"`
	Ceilings       Traits              `bson:"ceilings" json:"ceilings"`
	Latent         Traits              `bson:"latent" json:"latent"`
	Uncertainty    Traits              `bson:"uncertainty" json:"uncertainty"`
	Readiness      Readiness           `bson:"readiness" json:"readiness"`
	Constraints    Constraints         `bson:"constraints" json:"constraints"`
	Phase          TrainingPhase       `bson:"phase" json:"phase"`
	ActiveEvent    *Event              `bson:"activeEvent,omitempty" json:"activeEvent,omitempty"`
	Cooldowns      map[EventFamily]int `bson:"cooldowns" json:"cooldowns"`
	GlobalCooldown int                 `bson:"globalCooldown" json:"globalCooldown"`
	Budgets        EventBudgets        `bson:"budgets" json:"budgets"`
	StableStreak   int                 `bson:"stableStreak" json:"stableStreak"`
	LastCompletion *float64            `bson:"lastCompletion,omitempty" json:"lastCompletion,omitempty"`
	RNGState       []byte              `bson:"rngState" json:"-"`
	PreviousID     string              `bson:"previousId,omitempty" json:"previousId,omitempty"`
	CreatedAt      time.Time           `bson:"createdAt" json:"createdAt"`
}

// Effective overlays the active event's deltas on the base readiness and constraints.
// The stored state keeps the base values; the overlay is recomputed per read.
func (s *ScenarioState) Effective() (Readiness, Constraints) {
	r := s.Readiness
	c := s.Constraints.Clone()
	ev := s.ActiveEvent
	if ev == nil || !ev.ActiveAt(s.Step) {
		return r, c
	}
	d := ev.Deltas
	c.TimeBudgetMin = max(0, c.TimeBudgetMin+d.TimeBudgetMin)
	c.ScheduleConsistency = clamp01(c.ScheduleConsistency + d.ScheduleConsistency)
	r.SleepQuality = clamp01(r.SleepQuality + d.Sleep)
	r.Fatigue = clamp01(r.Fatigue + d.Fatigue)
	r.Motivation = clamp01(r.Motivation + d.Motivation)
	if d.GymAccess != nil {
		c.GymAccess = *d.GymAccess
	}
	if d.InjuryFlag != "" {
		c.InjuryFlags = append(c.InjuryFlags, d.InjuryFlag)
	}
	if len(d.UnavailableEquip) > 0 {
		kept := c.Equipment[:0]
		for _, e := range c.Equipment {
			if !contains(d.UnavailableEquip, e) {
				kept = append(kept, e)
			}
		}
		c.Equipment = kept
	}
	return r, c
}

// IntensityCeiling returns the cap imposed by the active event, if any.
func (s *ScenarioState) IntensityCeiling() *float64 {
	if s.ActiveEvent == nil || !s.ActiveEvent.ActiveAt(s.Step) {
		return nil
	}
	return s.ActiveEvent.Deltas.IntensityCeiling
}

func clamp01(v float64) float64 {
	return min(1, max(0, v))
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

var phaseCycle = []TrainingPhase{PhaseBase, PhaseBuild, PhasePeak, PhaseDeload}

// PhaseAt rotates base, build, peak and deload every length steps, starting at step 1.
func PhaseAt(step, length int) TrainingPhase {
	if length <= 0 || step < 1 {
		return PhaseBase
	}
	return phaseCycle[((step-1)/length)%len(phaseCycle)]
}
