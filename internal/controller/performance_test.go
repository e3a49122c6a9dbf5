package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hydrohome/sumpctl/internal/models"
)

func sample(power float64) models.PowerSample {
	return models.PowerSample{PowerW: power, Timestamp: time.Now()}
}

func TestSummarize(t *testing.T) {
	samples := []models.PowerSample{
		sample(50),  // idle
		sample(450), // working
		sample(500), // working
		sample(80),  // idle
	}

	s := Summarize(samples, 45*time.Second, 500*time.Millisecond)

	assert.Equal(t, 1.0, s.WorkingTimeS) // 2 working samples x 0.5s
	assert.Equal(t, 45.0, s.TotalTimeS)
	assert.Equal(t, 270.0, s.AvgPowerW) // idle samples pull the average down
	assert.Equal(t, 500.0, s.MaxPowerW)
	assert.Equal(t, 50.0, s.MinPowerW)
}

func TestSummarizeThresholdIsExclusive(t *testing.T) {
	// Exactly 200W does not count as working.
	s := Summarize([]models.PowerSample{sample(200), sample(200.1)}, 45*time.Second, 500*time.Millisecond)
	assert.Equal(t, 0.5, s.WorkingTimeS)
}

func TestSummarizeZeroSamples(t *testing.T) {
	s := Summarize(nil, 45*time.Second, 500*time.Millisecond)

	assert.Equal(t, 0.0, s.WorkingTimeS)
	assert.Equal(t, 45.0, s.TotalTimeS)
	assert.Equal(t, 0.0, s.AvgPowerW)
	assert.Equal(t, 0.0, s.MaxPowerW)
	assert.Equal(t, 0.0, s.MinPowerW)
}

func TestSummarizeAllIdle(t *testing.T) {
	s := Summarize([]models.PowerSample{sample(60), sample(70)}, 45*time.Second, 500*time.Millisecond)

	assert.Equal(t, 0.0, s.WorkingTimeS)
	assert.Equal(t, 65.0, s.AvgPowerW)
}
