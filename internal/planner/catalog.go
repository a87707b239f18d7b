package planner

import "alcyxob/climb-sim/internal/domain"

// exercise is a catalog entry. Ranges are inclusive; a zero range leaves the field out.
type exercise struct {
	name      string
	equipment string
	sets      [2]int
	reps      [2]int
	attempts  [2]int
	minutes   [2]int
	restSec   [2]int
	intensity [2]float64
	gradeBand string
}

var warmups = []exercise{
	{name: "easy traverse", minutes: [2]int{8, 15}, intensity: [2]float64{0.25, 0.35}},
	{name: "band shoulder activation", sets: [2]int{2, 3}, reps: [2]int{12, 15}, restSec: [2]int{30, 45}},
	{name: "progressive hangs", equipment: "hangboard", sets: [2]int{3, 4}, reps: [2]int{1, 1}, restSec: [2]int{60, 90}, intensity: [2]float64{0.5, 0.65}},
}

var cooldowns = []exercise{
	{name: "forearm stretching", minutes: [2]int{5, 10}},
	{name: "mobility flow", minutes: [2]int{8, 15}},
}

var rehab = []exercise{
	{name: "finger extensor isometrics", sets: [2]int{3, 4}, reps: [2]int{6, 10}, restSec: [2]int{45, 60}, intensity: [2]float64{0.25, 0.35}},
	{name: "rice bucket", minutes: [2]int{5, 10}},
}

var supplemental = []exercise{
	{name: "weighted pull-ups", equipment: "weights", sets: [2]int{3, 5}, reps: [2]int{3, 6}, restSec: [2]int{120, 180}, intensity: [2]float64{0.75, 0.85}},
	{name: "antagonist push-ups", sets: [2]int{3, 4}, reps: [2]int{10, 20}, restSec: [2]int{60, 90}},
	{name: "core front levers", equipment: "rings", sets: [2]int{3, 4}, reps: [2]int{3, 6}, restSec: [2]int{90, 120}, intensity: [2]float64{0.7, 0.8}},
}

var mains = map[domain.SessionType][]exercise{
	domain.SessionStrength: {
		{name: "max hangs", equipment: "hangboard", sets: [2]int{4, 8}, reps: [2]int{1, 1}, restSec: [2]int{120, 180}, intensity: [2]float64{0.85, 0.95}},
		{name: "weighted pull-ups", equipment: "weights", sets: [2]int{3, 5}, reps: [2]int{3, 5}, restSec: [2]int{150, 180}, intensity: [2]float64{0.8, 0.9}},
		{name: "one-arm lock-offs", sets: [2]int{3, 5}, reps: [2]int{2, 4}, restSec: [2]int{120, 150}, intensity: [2]float64{0.8, 0.9}},
	},
	domain.SessionPower: {
		{name: "campus ladders", equipment: "campus_board", sets: [2]int{4, 6}, reps: [2]int{3, 3}, restSec: [2]int{150, 180}, intensity: [2]float64{0.88, 0.95}},
		{name: "limit boulders", equipment: "bouldering_wall", attempts: [2]int{12, 24}, restSec: [2]int{120, 180}, intensity: [2]float64{0.9, 0.97}, gradeBand: "V6-V8"},
		{name: "system board moves", equipment: "system_board", attempts: [2]int{10, 20}, restSec: [2]int{120, 150}, intensity: [2]float64{0.85, 0.95}},
		{name: "explosive pull-ups", sets: [2]int{4, 6}, reps: [2]int{3, 5}, restSec: [2]int{120, 150}, intensity: [2]float64{0.8, 0.9}},
	},
	domain.SessionEndurance: {
		{name: "4x4 boulders", equipment: "bouldering_wall", sets: [2]int{4, 4}, reps: [2]int{4, 4}, restSec: [2]int{180, 240}, intensity: [2]float64{0.65, 0.75}, gradeBand: "V3-V4"},
		{name: "ARC traverse", minutes: [2]int{20, 40}, intensity: [2]float64{0.35, 0.45}},
		{name: "repeaters", equipment: "hangboard", sets: [2]int{5, 6}, reps: [2]int{6, 7}, restSec: [2]int{120, 180}, intensity: [2]float64{0.6, 0.7}},
	},
	domain.SessionTechnique: {
		{name: "silent feet drills", minutes: [2]int{10, 20}, intensity: [2]float64{0.35, 0.45}},
		{name: "flagging practice", equipment: "bouldering_wall", attempts: [2]int{10, 20}, restSec: [2]int{60, 90}, intensity: [2]float64{0.45, 0.55}},
		{name: "downclimbing", minutes: [2]int{10, 15}, intensity: [2]float64{0.4, 0.5}},
	},
	domain.SessionRecovery: {
		{name: "easy traverse", minutes: [2]int{15, 25}, intensity: [2]float64{0.25, 0.35}},
		{name: "mobility flow", minutes: [2]int{15, 25}},
	},
}

// sessionsByPhase lists the candidate focus for each training phase.
var sessionsByPhase = map[domain.TrainingPhase][]domain.SessionType{
	domain.PhaseBase:   {domain.SessionEndurance, domain.SessionTechnique},
	domain.PhaseBuild:  {domain.SessionStrength, domain.SessionMixed},
	domain.PhasePeak:   {domain.SessionPower, domain.SessionStrength},
	domain.PhaseDeload: {domain.SessionTechnique, domain.SessionRecovery},
}
