// Package dose summarises the training load of a workout document.
package dose

import "alcyxob/climb-sim/internal/domain"

// DefaultHiThreshold is the normalized intensity at or above which attempts count as high intensity.
const DefaultHiThreshold = 0.85

// Model constants; these are part of the load model, not configuration.
const (
	volumeTUTDivisor      = 10.0
	volumeAttemptsDivisor = 20.0
	fatiguePerHiAttempt   = 0.03
	fatiguePerTUTMinute   = 0.015
)

// FromPlanned extracts features from a planned workout.
func FromPlanned(p *domain.PlannedWorkout, threshold float64) domain.DoseFeatures {
	if p == nil {
		return domain.DoseFeatures{}
	}
	return Extract(p.Blocks, threshold)
}

// FromExecuted extracts features from an executed workout.
func FromExecuted(e *domain.ExecutedWorkout, threshold float64) domain.DoseFeatures {
	if e == nil {
		return domain.DoseFeatures{}
	}
	return Extract(e.Blocks, threshold)
}

// Extract aggregates dose totals and summary scalars over blocks.
// Items without an intensity still contribute their totals but are left out of the average.
// Reps is the total performed, sets×reps per item; an item without sets counts as one set.
func Extract(blocks []domain.Block, threshold float64) domain.DoseFeatures {
	var f domain.DoseFeatures
	var intensitySum, restSum float64
	restItems := 0

	for _, b := range blocks {
		for _, it := range b.Items {
			d := it.Dose
			sets, reps, attempts := deref(d.Sets), deref(d.Reps), deref(d.Attempts)
			f.Sets += sets
			if d.Sets != nil {
				f.Reps += sets * reps
			} else {
				f.Reps += reps
			}
			f.Attempts += attempts
			if d.Minutes != nil {
				f.TUTMinutes += *d.Minutes
			}
			if d.RestSec != nil {
				restSum += float64(*d.RestSec)
				restItems++
			}
			if it.Intensity != nil && it.Intensity.Intensity != nil {
				v := *it.Intensity.Intensity
				intensitySum += v
				f.IntensityItems++
				if v >= threshold {
					f.HiAttempts += attempts
				}
			}
		}
	}

	if f.IntensityItems > 0 {
		f.AvgIntensity = intensitySum / float64(f.IntensityItems)
	}
	if restItems > 0 {
		f.AvgRestSec = restSum / float64(restItems)
	}
	f.VolumeScore = float64(f.Sets) + f.TUTMinutes/volumeTUTDivisor + float64(f.Attempts)/volumeAttemptsDivisor
	f.FatigueCost = float64(f.HiAttempts)*fatiguePerHiAttempt + f.TUTMinutes*fatiguePerTUTMinute
	return f
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
