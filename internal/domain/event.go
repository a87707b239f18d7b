// internal/domain/event.go
package domain

// EventFamily is one of the five disruption/opportunity categories.
type EventFamily string

const (
	FamilyScheduleShock   EventFamily = "schedule_shock"
	FamilyAccessShock     EventFamily = "access_shock"
	FamilyRecoveryShock   EventFamily = "recovery_shock"
	FamilyMicroInjuryFlag EventFamily = "micro_injury_flag"
	FamilyOpportunity     EventFamily = "opportunity"
)

// EventFamilies lists every family in the fixed order used for sampling.
// Changing this order changes which family a given random draw selects.
var EventFamilies = []EventFamily{
	FamilyScheduleShock,
	FamilyAccessShock,
	FamilyRecoveryShock,
	FamilyMicroInjuryFlag,
	FamilyOpportunity,
}

// Severity of an event.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// EventDeltas are applied on top of the base constraints/readiness while the event is active.
type EventDeltas struct {
	TimeBudgetMin       float64  `bson:"timeBudgetMin,omitempty" json:"timeBudgetMin,omitempty"`
	ScheduleConsistency float64  `bson:"scheduleConsistency,omitempty" json:"scheduleConsistency,omitempty"`
	Sleep               float64  `bson:"sleep,omitempty" json:"sleep,omitempty"`
	Fatigue             float64  `bson:"fatigue,omitempty" json:"fatigue,omitempty"`
	Motivation          float64  `bson:"motivation,omitempty" json:"motivation,omitempty"`
	IntensityCeiling    *float64 `bson:"intensityCeiling,omitempty" json:"intensityCeiling,omitempty"`
	InjuryFlag          string   `bson:"injuryFlag,omitempty" json:"injuryFlag,omitempty"`
	GymAccess           *bool    `bson:"gymAccess,omitempty" json:"gymAccess,omitempty"`
	UnavailableEquip    []string `bson:"unavailableEquipment,omitempty" json:"unavailableEquipment,omitempty"`
}

// Event is a transient disruption or opportunity. EndStep is inclusive.
type Event struct {
	ID        string      `bson:"_id" json:"id"`
	EpisodeID string      `bson:"episodeId" json:"episodeId"`
	Family    EventFamily `bson:"family" json:"family"`
	Severity  Severity    `bson:"severity" json:"severity"`
	StartStep int         `bson:"startStep" json:"startStep"`
	EndStep   int         `bson:"endStep" json:"endStep"`
	Deltas    EventDeltas `bson:"deltas" json:"deltas"`
}

// ActiveAt reports whether the event covers the given step.
func (e *Event) ActiveAt(step int) bool {
	return e != nil && step >= e.StartStep && step <= e.EndStep
}

// Budget tracks initial and remaining event allowance.
type Budget struct {
	Initial   int `bson:"initial" json:"initial"`
	Remaining int `bson:"remaining" json:"remaining"`
}

// Consumed is how much of the budget has been spent.
func (b Budget) Consumed() int { return b.Initial - b.Remaining }

// EventBudgets holds the per-family and total budgets of one episode.
type EventBudgets struct {
	Total    Budget                 `bson:"total" json:"total"`
	Families map[EventFamily]Budget `bson:"families" json:"families"`
}

// Clone returns a deep copy so a successor state never aliases its predecessor.
func (b EventBudgets) Clone() EventBudgets {
	out := EventBudgets{Total: b.Total, Families: make(map[EventFamily]Budget, len(b.Families))}
	for k, v := range b.Families {
		out.Families[k] = v
	}
	return out
}
