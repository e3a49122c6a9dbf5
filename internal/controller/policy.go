package controller

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hydrohome/sumpctl/internal/models"
)

// Working-time band (seconds) and weather factors for the off-time
// policy. The sweet spot is 8-15 seconds of working time per cycle.
const (
	ShortRunThreshold   = 8.0  // below: pump had too little water, wait longer
	OptimalRunThreshold = 15.0 // 8-15s: hold the current interval
	HeavyLoadThreshold  = 30.0 // above: reset to the protective baseline

	LightRainFactor    = 0.7
	HeavyRainFactor    = 0.5
	HeavyRainThreshold = 2.5 // mm/hr

	// Heavy inflow resets the wait to this floor instead of adjusting
	// proportionally. Rain shaves it only gently (0.8/0.9) since the
	// baseline is already the minimum protective interval.
	heavyLoadBaseline = 300
)

// Policy computes the next off-time from a cycle's performance summary.
// It is a pure decision function: every input combination, including
// absent weather and an all-zero summary, has a defined output and no
// branch can fail.
type Policy struct {
	MinOffTime int
	MaxOffTime int
	logger     *logrus.Logger
}

func NewPolicy(minOffTime, maxOffTime int, logger *logrus.Logger) *Policy {
	return &Policy{MinOffTime: minOffTime, MaxOffTime: maxOffTime, logger: logger}
}

// NextOffTime returns the next wait in whole seconds.
//
// Decision order: a manual override wins verbatim; otherwise the working
// time selects an adjustment regime, rain shortens the result, and the
// global bounds clamp it.
func (p *Policy) NextOffTime(summary models.PerformanceSummary, currentOffTime, manualOverride int, weather *models.WeatherSnapshot) int {
	if manualOverride > 0 {
		p.logger.WithField("off_time", manualOverride).Info("Off time: manual override")
		return manualOverride
	}

	working := summary.WorkingTimeS

	if working > HeavyLoadThreshold {
		return p.heavyLoad(working, weather)
	}

	var factor float64
	var regime string
	switch {
	case working < ShortRunThreshold:
		factor = 2.0
		regime = "insufficient working time"
	case working <= OptimalRunThreshold:
		factor = 1.0
		regime = "optimal working time"
	default:
		factor = 0.7
		regime = "excessive working time"
	}

	next := float64(currentOffTime) * factor

	rainNote := ""
	if raining(weather) {
		if weather.Rain1h > HeavyRainThreshold {
			next *= HeavyRainFactor
			rainNote = "heavy rain"
		} else {
			next *= LightRainFactor
			rainNote = "light rain"
		}
	}

	clamped := p.clamp(next)
	p.logger.WithFields(logrus.Fields{
		"regime":       regime,
		"working_time": working,
		"rain":         rainNote,
		"off_time":     clamped,
	}).Infof("Off time: %s (%.1fs) -> %.1fs", regime, working, next)

	return clamped
}

// heavyLoad ignores the current off-time entirely: sustained heavy
// inflow needs a floor reset, not a proportional step.
func (p *Policy) heavyLoad(working float64, weather *models.WeatherSnapshot) int {
	next := float64(heavyLoadBaseline)
	rainNote := ""
	if raining(weather) {
		if weather.Rain1h > HeavyRainThreshold {
			next *= 0.8
			rainNote = "heavy rain"
		} else {
			next *= 0.9
			rainNote = "light rain"
		}
	}

	clamped := p.clamp(next)
	p.logger.WithFields(logrus.Fields{
		"regime":       "heavy load",
		"working_time": working,
		"rain":         rainNote,
		"off_time":     clamped,
	}).Infof("Off time: HEAVY LOAD (%.1fs) - returning to baseline -> %.1fs", working, next)

	return clamped
}

func raining(weather *models.WeatherSnapshot) bool {
	if weather == nil {
		return false
	}
	return strings.Contains(weather.Condition, "rain") || weather.Rain1h > 0
}

func (p *Policy) clamp(seconds float64) int {
	if seconds < float64(p.MinOffTime) {
		return p.MinOffTime
	}
	if seconds > float64(p.MaxOffTime) {
		return p.MaxOffTime
	}
	return int(seconds)
}
