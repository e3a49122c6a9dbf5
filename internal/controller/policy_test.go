package controller

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/hydrohome/sumpctl/internal/models"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func testPolicy() *Policy {
	return NewPolicy(300, 86400, quietLogger())
}

func summaryWithWorking(seconds float64) models.PerformanceSummary {
	return models.PerformanceSummary{WorkingTimeS: seconds, TotalTimeS: 45}
}

func TestNextOffTimeRegimes(t *testing.T) {
	heavyRain := &models.WeatherSnapshot{Condition: "rain", Rain1h: 5, Description: "heavy rain"}
	lightRain := &models.WeatherSnapshot{Condition: "rain", Rain1h: 1, Description: "light rain"}

	tests := []struct {
		name       string
		working    float64
		currentOff int
		override   int
		weather    *models.WeatherSnapshot
		want       int
	}{
		// Scenario A: insufficient work doubles the wait.
		{name: "insufficient work doubles", working: 5, currentOff: 420, want: 840},
		// Scenario B: sweet spot holds, heavy rain halves, min clamp applies.
		{name: "sweet spot heavy rain clamped to min", working: 12, currentOff: 420, weather: heavyRain, want: 300},
		// Scenario C: heavy load resets to baseline, gentle rain correction, min clamp.
		{name: "heavy load light rain clamped to min", working: 45, currentOff: 420, weather: lightRain, want: 300},
		// Scenario D: override wins verbatim.
		{name: "manual override verbatim", working: 2, currentOff: 420, override: 600, want: 600},
		// Scenario E: zero samples behave exactly like insufficient work.
		{name: "zero working time doubles", working: 0, currentOff: 420, want: 840},

		{name: "sweet spot holds steady", working: 12, currentOff: 420, want: 420},
		{name: "excessive work shortens", working: 20, currentOff: 600, want: 420},
		{name: "heavy load no rain", working: 31, currentOff: 9999, want: 300},

		// Band boundaries: 8.0 and 15.0 are inside the sweet spot,
		// 30.0 is still the excessive regime.
		{name: "boundary 8.0 is sweet spot", working: 8.0, currentOff: 420, want: 420},
		{name: "boundary 7.9 is insufficient", working: 7.9, currentOff: 420, want: 840},
		{name: "boundary 15.0 is sweet spot", working: 15.0, currentOff: 420, want: 420},
		{name: "boundary 15.1 is excessive", working: 15.1, currentOff: 600, want: 420},
		{name: "boundary 30.0 is excessive", working: 30.0, currentOff: 600, want: 420},
		{name: "boundary 30.1 is heavy load", working: 30.1, currentOff: 600, want: 300},

		// Rain factors for the multiplicative regimes.
		{name: "light rain factor", working: 12, currentOff: 600, weather: lightRain, want: 420},
		{name: "rain condition without rate counts as light", working: 12, currentOff: 600,
			weather: &models.WeatherSnapshot{Condition: "light rain"}, want: 420},
		{name: "no rain condition no rate means dry", working: 12, currentOff: 600,
			weather: &models.WeatherSnapshot{Condition: "clouds"}, want: 600},

		// Bounds law.
		{name: "max clamp", working: 5, currentOff: 86400, want: 86400},
		{name: "min clamp after excessive", working: 20, currentOff: 300, want: 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := testPolicy().NextOffTime(summaryWithWorking(tt.working), tt.currentOff, tt.override, tt.weather)
			assert.Equal(t, tt.want, got)
			if tt.override == 0 {
				assert.GreaterOrEqual(t, got, 300)
				assert.LessOrEqual(t, got, 86400)
			}
		})
	}
}

func TestOverridePrecedence(t *testing.T) {
	p := testPolicy()
	rain := &models.WeatherSnapshot{Condition: "rain", Rain1h: 10}

	// Override is returned unmodified regardless of performance or weather.
	for _, working := range []float64{0, 5, 12, 20, 45} {
		assert.Equal(t, 600, p.NextOffTime(summaryWithWorking(working), 420, 600, rain))
		assert.Equal(t, 600, p.NextOffTime(summaryWithWorking(working), 86400, 600, nil))
	}
}

func TestHeavyLoadIgnoresCurrentOffTime(t *testing.T) {
	p := testPolicy()
	rain := &models.WeatherSnapshot{Condition: "rain", Rain1h: 5}

	for _, weather := range []*models.WeatherSnapshot{nil, rain} {
		a := p.NextOffTime(summaryWithWorking(40), 300, 0, weather)
		b := p.NextOffTime(summaryWithWorking(40), 86400, 0, weather)
		assert.Equal(t, a, b)
	}
}

func TestNextOffTimeNeverPanics(t *testing.T) {
	p := testPolicy()

	// Absent weather, absent samples, and zero power are all valid.
	assert.NotPanics(t, func() {
		p.NextOffTime(models.PerformanceSummary{}, 420, 0, nil)
		p.NextOffTime(models.PerformanceSummary{}, 0, 0, &models.WeatherSnapshot{})
	})
}
