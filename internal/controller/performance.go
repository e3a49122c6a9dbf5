package controller

import (
	"time"

	"github.com/hydrohome/sumpctl/internal/models"
)

// Power monitoring thresholds (watts) and the working-time band the
// policy steers toward.
const (
	WorkingPowerThreshold = 200.0 // above this the pump is moving water
	IdlePowerThreshold    = 100.0 // below this the pump is idling
	MinWorkingTime        = 3.0   // seconds before a cycle counts as "worked"
)

// Summarize reduces one ON phase's samples to a PerformanceSummary.
//
// Each sample above WorkingPowerThreshold credits one full sampling
// interval of working time. Average, max and min cover all samples so a
// mostly-idle cycle drags the average down. Zero samples (every poll
// failed) produces an all-zero summary, which the policy treats as
// insufficient work rather than an error.
func Summarize(samples []models.PowerSample, total, interval time.Duration) models.PerformanceSummary {
	summary := models.PerformanceSummary{TotalTimeS: total.Seconds()}
	if len(samples) == 0 {
		return summary
	}

	var sum float64
	summary.MaxPowerW = samples[0].PowerW
	summary.MinPowerW = samples[0].PowerW

	for _, s := range samples {
		sum += s.PowerW
		if s.PowerW > summary.MaxPowerW {
			summary.MaxPowerW = s.PowerW
		}
		if s.PowerW < summary.MinPowerW {
			summary.MinPowerW = s.PowerW
		}
		if s.PowerW > WorkingPowerThreshold {
			summary.WorkingTimeS += interval.Seconds()
		}
	}
	summary.AvgPowerW = sum / float64(len(samples))

	return summary
}
