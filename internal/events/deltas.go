package events

import "alcyxob/climb-sim/internal/domain"

var severityIndex = map[domain.Severity]int{
	domain.SeverityLow:    0,
	domain.SeverityMedium: 1,
	domain.SeverityHigh:   2,
}

var (
	scheduleTimeLoss     = [3]float64{-15, -25, -35}
	scheduleConsistency  = [3]float64{-0.10, -0.20, -0.30}
	recoverySleepLoss    = [3]float64{-0.15, -0.25, -0.35}
	recoveryFatigueGain  = [3]float64{0.05, 0.10, 0.15}
	injuryCeiling        = [3]float64{0.80, 0.65, 0.55}
	injuryFlags          = [3]string{"finger_soreness", "finger_strain", "pulley_strain"}
	opportunityTimeGain  = [3]float64{15, 30, 45}
	opportunityMotivGain = [3]float64{0.10, 0.15, 0.20}
)

// GymEquipment is what a closed gym takes away.
var GymEquipment = []string{"system_board", "campus_board", "weights", "bouldering_wall"}

// Deltas builds the fixed overlay for a family at a severity.
func Deltas(family domain.EventFamily, sev domain.Severity) domain.EventDeltas {
	i := severityIndex[sev]
	var d domain.EventDeltas
	switch family {
	case domain.FamilyScheduleShock:
		d.TimeBudgetMin = scheduleTimeLoss[i]
		d.ScheduleConsistency = scheduleConsistency[i]
	case domain.FamilyAccessShock:
		switch sev {
		case domain.SeverityLow:
			d.UnavailableEquip = []string{"system_board"}
		case domain.SeverityMedium:
			d.UnavailableEquip = []string{"system_board", "campus_board"}
		default:
			closed := false
			d.GymAccess = &closed
			d.UnavailableEquip = append([]string(nil), GymEquipment...)
		}
	case domain.FamilyRecoveryShock:
		d.Sleep = recoverySleepLoss[i]
		d.Fatigue = recoveryFatigueGain[i]
	case domain.FamilyMicroInjuryFlag:
		ceiling := injuryCeiling[i]
		d.IntensityCeiling = &ceiling
		d.InjuryFlag = injuryFlags[i]
	case domain.FamilyOpportunity:
		d.TimeBudgetMin = opportunityTimeGain[i]
		d.Motivation = opportunityMotivGain[i]
	}
	return d
}
