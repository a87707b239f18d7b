package service

import (
	"encoding/binary"
	"slices"

	"alcyxob/climb-sim/internal/domain"
	"alcyxob/climb-sim/internal/events"
	"alcyxob/climb-sim/internal/sim"

	"github.com/google/uuid"
)

var personaNamespace = uuid.MustParse("0b6e8f4e-3f0c-4d8a-a1d2-5c7e9b2f4a10")

var goals = []string{"first V8", "onsight 7b", "redpoint project", "alpine season", "competition prep", "stay healthy"}

var grades = []string{"V3", "V4", "V5", "V6", "V7", "V8", "V9", "V10"}

var homeEquipment = []string{"hangboard", "rings", "weights"}

// personaID is stable per seed, so replaying a seed replays the same athlete.
func personaID(seed int64) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(seed))
	return uuid.NewSHA1(personaNamespace, b[:]).String()
}

// newPersona draws the step-1 state. Draw order is fixed: baseline, ceilings and
// latent per trainable dimension, injury risk, readiness, constraints.
func newPersona(r *sim.Rand) (domain.Baseline, domain.Traits, domain.Traits, domain.Readiness, domain.Constraints) {
	years := r.IntRange(1, 15)
	gradeIdx := min(len(grades)-1, years/2+r.IntRange(0, 2))
	baseline := domain.Baseline{
		Age:           r.IntRange(18, 45),
		YearsClimbing: years,
		Goal:          goals[r.IntN(len(goals))],
		MaxGrade:      grades[gradeIdx],
	}

	ceilings := domain.Traits{}
	latent := domain.Traits{}
	for _, dim := range domain.TrainableDimensions {
		ceil := r.Uniform(0.6, 0.95)
		ceilings[dim] = ceil
		latent[dim] = ceil * r.Uniform(0.2, 0.5)
	}
	latent[domain.DimInjuryRisk] = r.Uniform(0.05, 0.35)

	readiness := domain.Readiness{
		Fatigue:      r.Uniform(0.1, 0.4),
		SleepQuality: r.Uniform(0.5, 0.9),
		Motivation:   r.Uniform(0.5, 0.9),
	}

	gym := r.Float64() < 0.85
	var equipment []string
	for _, e := range append(slices.Clone(homeEquipment), events.GymEquipment...) {
		owned := r.Float64() < 0.6
		if slices.Contains(equipment, e) {
			continue
		}
		if slices.Contains(homeEquipment, e) && owned || gym && !slices.Contains(homeEquipment, e) {
			equipment = append(equipment, e)
		}
	}
	constraints := domain.Constraints{
		TimeBudgetMin:       float64(r.IntRange(9, 30) * 5),
		Equipment:           equipment,
		GymAccess:           gym,
		InjuryFlags:         []string{},
		ScheduleConsistency: r.Uniform(0.5, 0.95),
	}
	return baseline, ceilings, latent, readiness, constraints
}

func initialUncertainty() domain.Traits {
	u := domain.Traits{domain.DimInjuryRisk: 0.2}
	for _, dim := range domain.TrainableDimensions {
		u[dim] = 0.2
	}
	return u
}
