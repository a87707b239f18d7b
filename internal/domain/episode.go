// internal/domain/episode.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EngineVersion tags every episode with the simulator revision that produced it.
const EngineVersion = "sim-1.0"

// EpisodeStatus is the lifecycle of an episode.
type EpisodeStatus string

const (
	EpisodeActive    EpisodeStatus = "active"
	EpisodeCompleted EpisodeStatus = "completed"
)

// Episode is one simulated coaching engagement owned by a coach.
type Episode struct {
	ID              primitive.ObjectID `bson:"_id" json:"id"`
	CoachID         primitive.ObjectID `bson:"coachId" json:"coachId"`
	PersonaID       string             `bson:"personaId" json:"personaId"`
	Seed            int64              `bson:"seed" json:"seed"`
	EngineVersion   string             `bson:"engineVersion" json:"engineVersion"`
	ParameterSetRef string             `bson:"parameterSetRef" json:"parameterSetRef"`
	MaxStep         int                `bson:"maxStep" json:"maxStep"`
	CurrentStep     int                `bson:"currentStep" json:"currentStep"`
	Status          EpisodeStatus      `bson:"status" json:"status"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// IsCompleted reports whether the episode can no longer advance.
func (e *Episode) IsCompleted() bool {
	return e.Status == EpisodeCompleted || e.CurrentStep >= e.MaxStep
}

// PlannedWorkoutRecord is a validated planned workout bound to an episode step.
// ActionID is the canonical hash of Document.
type PlannedWorkoutRecord struct {
	ID        string         `bson:"_id" json:"id"`
	EpisodeID string         `bson:"episodeId" json:"episodeId"`
	Step      int            `bson:"step" json:"step"`
	ActionID  string         `bson:"actionId" json:"actionId"`
	Document  PlannedWorkout `bson:"document" json:"document"`
	Features  DoseFeatures   `bson:"features" json:"features"`
	CreatedAt time.Time      `bson:"createdAt" json:"createdAt"`
}

// ExecutedWorkoutRecord is the simulated execution of a planned workout.
type ExecutedWorkoutRecord struct {
	ID        string          `bson:"_id" json:"id"`
	EpisodeID string          `bson:"episodeId" json:"episodeId"`
	Step      int             `bson:"step" json:"step"`
	ActionID  string          `bson:"actionId" json:"actionId"`
	Document  ExecutedWorkout `bson:"document" json:"document"`
	Features  DoseFeatures    `bson:"features" json:"features"`
	CreatedAt time.Time       `bson:"createdAt" json:"createdAt"`
}

// DoseFeatures is the cached summary of a workout's training load.
// It is always recomputable from the document it sits beside.
type DoseFeatures struct {
	Sets           int     `bson:"sets" json:"sets"`
	Reps           int     `bson:"reps" json:"reps"`
	Attempts       int     `bson:"attempts" json:"attempts"`
	TUTMinutes     float64 `bson:"tutMin" json:"tut_min"`
	HiAttempts     int     `bson:"hiAttempts" json:"hi_attempts"`
	AvgIntensity   float64 `bson:"avgIntensity" json:"avg_intensity"`
	IntensityItems int     `bson:"intensityItems" json:"intensity_items"`
	AvgRestSec     float64 `bson:"avgRestSec" json:"avg_rest_sec"`
	VolumeScore    float64 `bson:"volumeScore" json:"volume_score"`
	FatigueCost    float64 `bson:"fatigueCost" json:"fatigue_cost"`
}
