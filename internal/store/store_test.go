package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydrohome/sumpctl/internal/models"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewStateStore(path, quietLogger())

	in := models.ControllerState{
		CycleCount:     42,
		CurrentOffTime: 840,
		ManualOverride: 600,
		PumpStatus:     models.PumpOff,
	}
	require.NoError(t, s.Save(in))

	out := s.Load(420)
	assert.Equal(t, 840, out.CurrentOffTime)
	assert.Equal(t, 600, out.ManualOverride)
	assert.Equal(t, 42, out.CycleCount)
}

func TestStateLoadMissingFile(t *testing.T) {
	s := NewStateStore(filepath.Join(t.TempDir(), "nope.json"), quietLogger())

	state := s.Load(420)
	assert.Equal(t, 420, state.CurrentOffTime)
	assert.Equal(t, 0, state.ManualOverride)
	assert.Equal(t, 0, state.CycleCount)
	assert.Equal(t, models.PumpUnknown, state.PumpStatus)
}

func TestStateLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	s := NewStateStore(path, quietLogger())
	state := s.Load(420)
	assert.Equal(t, 420, state.CurrentOffTime)
	assert.Equal(t, 0, state.CycleCount)
}

func TestStateNoOverridePersistsAsNull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewStateStore(path, quietLogger())

	require.NoError(t, s.Save(models.ControllerState{CurrentOffTime: 420}))
	out := s.Load(300)
	assert.Equal(t, 0, out.ManualOverride)
}

func TestOverrideSlotDepositTake(t *testing.T) {
	path := filepath.Join(t.TempDir(), "override.txt")
	slot := NewOverrideSlot(path, quietLogger())

	require.NoError(t, slot.Deposit("wait 30"))

	cmd := slot.Take()
	require.NotNil(t, cmd)
	assert.Equal(t, models.OverrideWait, cmd.Kind)
	assert.Equal(t, 30, cmd.WaitMinutes)

	// Consumed at most once.
	assert.Nil(t, slot.Take())
}

func TestOverrideSlotLatestWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "override.txt")
	slot := NewOverrideSlot(path, quietLogger())

	require.NoError(t, slot.Deposit("wait 30"))
	require.NoError(t, slot.Deposit("pump_now"))

	cmd := slot.Take()
	require.NotNil(t, cmd)
	assert.Equal(t, models.OverridePumpNow, cmd.Kind)
}

func TestOverrideSlotGarbageCleared(t *testing.T) {
	path := filepath.Join(t.TempDir(), "override.txt")
	require.NoError(t, os.WriteFile(path, []byte("frobnicate"), 0644))

	slot := NewOverrideSlot(path, quietLogger())
	assert.Nil(t, slot.Take())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    models.OverrideKind
		minutes int
		wantErr bool
	}{
		{name: "stop", raw: "stop", want: models.OverrideStop},
		{name: "normal", raw: "normal", want: models.OverrideNormal},
		{name: "pump now", raw: "pump_now", want: models.OverridePumpNow},
		{name: "wait", raw: "wait 15", want: models.OverrideWait, minutes: 15},
		{name: "mixed case with whitespace", raw: "  STOP\n", want: models.OverrideStop},
		{name: "wait without minutes", raw: "wait", wantErr: true},
		{name: "wait with junk", raw: "wait soon", wantErr: true},
		{name: "wait zero", raw: "wait 0", wantErr: true},
		{name: "unknown", raw: "go faster", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := ParseCommand(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadCommand)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd.Kind)
			assert.Equal(t, tt.minutes, cmd.WaitMinutes)
		})
	}
}
