// internal/domain/workout.go
package domain

// DocumentVersion is the only wire version accepted for planned and executed workouts.
const DocumentVersion = "1.0"

// BlockType orders a workout into phases.
type BlockType string

const (
	BlockWarmup       BlockType = "warmup"
	BlockMain         BlockType = "main"
	BlockSupplemental BlockType = "supplemental"
	BlockCooldown     BlockType = "cooldown"
	BlockRehab        BlockType = "rehab"
)

// SessionType is the coach's label for the overall session focus.
type SessionType string

const (
	SessionStrength  SessionType = "strength"
	SessionPower     SessionType = "power"
	SessionEndurance SessionType = "endurance"
	SessionTechnique SessionType = "technique"
	SessionMixed     SessionType = "mixed"
	SessionRecovery  SessionType = "recovery"
)

// DeviationKind classifies how an executed workout departed from its plan.
type DeviationKind string

const (
	DeviationReducedVolume   DeviationKind = "reduced_volume"
	DeviationIntensityCapped DeviationKind = "intensity_capped"
	DeviationSkippedBlock    DeviationKind = "skipped_block"
	DeviationAccessLimited   DeviationKind = "access_limited"
)

// Dose is the prescribed (or performed) amount of work for one item.
// Absent fields stay nil so that "not prescribed" and "zero" hash differently.
type Dose struct {
	Sets     *int     `json:"sets,omitempty" bson:"sets,omitempty" validate:"omitempty,min=0,max=50"`
	Reps     *int     `json:"reps,omitempty" bson:"reps,omitempty" validate:"omitempty,min=0,max=100"`
	Minutes  *float64 `json:"minutes,omitempty" bson:"minutes,omitempty" validate:"omitempty,min=0,max=300"`
	Attempts *int     `json:"attempts,omitempty" bson:"attempts,omitempty" validate:"omitempty,min=0,max=200"`
	RestSec  *int     `json:"rest_sec,omitempty" bson:"rest_sec,omitempty" validate:"omitempty,min=0,max=1800"`
}

// Intensity describes how hard an item is meant to be.
type Intensity struct {
	Intensity *float64 `json:"intensity,omitempty" bson:"intensity,omitempty" validate:"omitempty,min=0,max=1"`
	RPETarget *float64 `json:"rpe_target,omitempty" bson:"rpe_target,omitempty" validate:"omitempty,min=1,max=10"`
	GradeBand string   `json:"grade_band,omitempty" bson:"grade_band,omitempty" validate:"omitempty,max=16"`
	PctMax    *float64 `json:"pct_max,omitempty" bson:"pct_max,omitempty" validate:"omitempty,min=0,max=150"`
}

// Item is one prescription line inside a block.
type Item struct {
	Exercise  string     `json:"exercise" bson:"exercise" validate:"required,min=1,max=80"`
	Dose      Dose       `json:"dose" bson:"dose"`
	Intensity *Intensity `json:"intensity,omitempty" bson:"intensity,omitempty" validate:"omitempty"`
	Notes     string     `json:"notes,omitempty" bson:"notes,omitempty"`
}

// Block groups items of one phase of the session.
type Block struct {
	Type  BlockType `json:"type" bson:"type" validate:"required,oneof=warmup main supplemental cooldown rehab"`
	Items []Item    `json:"items" bson:"items" validate:"required,min=1,max=40,dive"`
	Notes string    `json:"notes,omitempty" bson:"notes,omitempty"`
}

// PlannedWorkout is the coach-authored prescription for one step.
type PlannedWorkout struct {
	Version     string            `json:"version" bson:"version" validate:"required,eq=1.0"`
	SessionType SessionType       `json:"session_type" bson:"session_type" validate:"required,oneof=strength power endurance technique mixed recovery"`
	TimeCapMin  *float64          `json:"time_cap_min,omitempty" bson:"time_cap_min,omitempty" validate:"omitempty,min=0,max=600"`
	Blocks      []Block           `json:"blocks" bson:"blocks" validate:"required,min=1,max=8,dive"`
	Notes       string            `json:"notes,omitempty" bson:"notes,omitempty"`
	CoachNotes  string            `json:"coach_notes,omitempty" bson:"coach_notes,omitempty"`
	UI          map[string]string `json:"ui,omitempty" bson:"ui,omitempty"`
}

// Deviation records one departure of the executed workout from the plan.
type Deviation struct {
	Kind   DeviationKind `json:"kind" bson:"kind" validate:"required,oneof=reduced_volume intensity_capped skipped_block access_limited"`
	Path   string        `json:"path" bson:"path" validate:"required"`
	Detail string        `json:"detail,omitempty" bson:"detail,omitempty"`
}

// ExecutedWorkout mirrors PlannedWorkout with what was actually done.
type ExecutedWorkout struct {
	Version         string      `json:"version" bson:"version" validate:"required,eq=1.0"`
	PlannedActionID string      `json:"planned_action_id" bson:"planned_action_id" validate:"required,len=64,hexadecimal"`
	Completion      float64     `json:"completion" bson:"completion" validate:"min=0,max=1"`
	Blocks          []Block     `json:"blocks" bson:"blocks" validate:"required,min=1,max=8,dive"`
	Deviations      []Deviation `json:"deviations" bson:"deviations" validate:"dive"`
	Notes           string      `json:"notes,omitempty" bson:"notes,omitempty"`
}

// ItemCount returns the number of prescription items across all blocks.
func (p *PlannedWorkout) ItemCount() int {
	n := 0
	for _, b := range p.Blocks {
		n += len(b.Items)
	}
	return n
}

// PlannedMinutes is the time the plan asks for: the explicit cap when set,
// otherwise an estimate from item minutes, set rests and attempt rests.
func (p *PlannedWorkout) PlannedMinutes() float64 {
	if p.TimeCapMin != nil && *p.TimeCapMin > 0 {
		return *p.TimeCapMin
	}
	total := 0.0
	for _, b := range p.Blocks {
		for _, it := range b.Items {
			total += it.Dose.EstimatedMinutes()
		}
	}
	return total
}

// EstimatedMinutes approximates wall time for one item: explicit minutes,
// plus rest between sets, plus rest between attempts.
func (d Dose) EstimatedMinutes() float64 {
	mins := 0.0
	if d.Minutes != nil {
		mins += *d.Minutes
	}
	rest := 0.0
	if d.RestSec != nil {
		rest = float64(*d.RestSec) / 60
	}
	if d.Sets != nil && *d.Sets > 0 {
		mins += float64(*d.Sets) * (0.5 + rest)
	}
	if d.Attempts != nil && *d.Attempts > 0 {
		mins += float64(*d.Attempts) * (0.75 + rest)
	}
	return mins
}

// IntPtr and FloatPtr build optional dose and intensity fields.
func IntPtr(v int) *int { return &v }

func FloatPtr(v float64) *float64 { return &v }
