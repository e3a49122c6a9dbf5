package controller

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hydrohome/sumpctl/internal/models"
)

// PowerReader is the telemetry collaborator the sampler polls.
type PowerReader interface {
	ReadPower(ctx context.Context) (models.PowerSample, error)
}

// Sampler polls instantaneous power draw at a fixed cadence for the
// length of an ON phase. A failed poll yields no sample for that tick;
// the window always runs its full wall-clock duration, the sequence just
// comes back sparser.
type Sampler struct {
	reader   PowerReader
	interval time.Duration
	logger   *logrus.Logger
}

func NewSampler(reader PowerReader, interval time.Duration, logger *logrus.Logger) *Sampler {
	return &Sampler{reader: reader, interval: interval, logger: logger}
}

// Run polls until duration has elapsed or ctx is canceled, returning
// whatever samples were collected.
func (s *Sampler) Run(ctx context.Context, duration time.Duration) []models.PowerSample {
	s.logger.WithField("duration", duration).Info("Monitoring pump performance")

	deadline := time.Now().Add(duration)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var samples []models.PowerSample
	for time.Now().Before(deadline) {
		sample, err := s.reader.ReadPower(ctx)
		if err != nil {
			s.logger.WithError(err).Debug("Power poll failed, skipping sample")
		} else {
			samples = append(samples, sample)
			s.logger.WithField("power_w", sample.PowerW).Debug("Power sample")
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return samples
		}
	}
	return samples
}
