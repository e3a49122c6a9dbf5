package controller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hydrohome/sumpctl/internal/models"
)

// flakyReader fails every other poll.
type flakyReader struct {
	calls atomic.Int32
}

func (r *flakyReader) ReadPower(ctx context.Context) (models.PowerSample, error) {
	n := r.calls.Add(1)
	if n%2 == 0 {
		return models.PowerSample{}, errors.New("poll failed")
	}
	return models.PowerSample{PowerW: 400, Timestamp: time.Now()}, nil
}

func TestSamplerRunsFullWindow(t *testing.T) {
	reader := &flakyReader{}
	s := NewSampler(reader, 2*time.Millisecond, quietLogger())

	start := time.Now()
	samples := s.Run(context.Background(), 30*time.Millisecond)
	elapsed := time.Since(start)

	// Failures make the sequence sparser, never shorter in wall-clock terms.
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	assert.NotEmpty(t, samples)
	assert.Less(t, len(samples), int(reader.calls.Load())+1)
	for _, sample := range samples {
		assert.Equal(t, 400.0, sample.PowerW)
	}
}

func TestSamplerCanceledContext(t *testing.T) {
	reader := &flakyReader{}
	s := NewSampler(reader, time.Millisecond, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	s.Run(ctx, time.Minute)
	assert.Less(t, time.Since(start), time.Second)
}
