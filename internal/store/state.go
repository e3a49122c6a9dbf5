// Package store holds the two durable touchpoints of the controller: the
// JSON state file it resumes from after a restart, and the single-slot
// override file the CLI deposits operator commands into.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hydrohome/sumpctl/internal/models"
)

// persistedState is the on-disk mirror of ControllerState plus the
// operator-supplied connection parameters the original deployments kept
// alongside it.
type persistedState struct {
	CurrentOffTime int       `json:"current_off_time"`
	ManualOverride *int      `json:"manual_override"`
	CycleCount     int       `json:"cycle_count"`
	HealthcheckURL string    `json:"healthcheck_url,omitempty"`
	WeatherAPIKey  string    `json:"weather_api_key,omitempty"`
	Location       string    `json:"location,omitempty"`
	LastUpdated    time.Time `json:"last_updated"`
}

// StateStore reads and writes the controller state file. A missing file
// means defaults; a malformed file is logged and treated as missing,
// never as a startup failure.
type StateStore struct {
	path   string
	logger *logrus.Logger
}

func NewStateStore(path string, logger *logrus.Logger) *StateStore {
	return &StateStore{path: path, logger: logger}
}

// Load returns the persisted state, or a defaulted one built from
// baseOffTime when the file is absent or unreadable.
func (s *StateStore) Load(baseOffTime int) models.ControllerState {
	state := models.ControllerState{
		CurrentOffTime: baseOffTime,
		PumpStatus:     models.PumpUnknown,
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.WithError(err).Error("Failed to read state file, using defaults")
		}
		return state
	}

	var p persistedState
	if err := json.Unmarshal(data, &p); err != nil {
		s.logger.WithError(err).Error("Malformed state file, using defaults")
		return state
	}

	if p.CurrentOffTime > 0 {
		state.CurrentOffTime = p.CurrentOffTime
	}
	if p.ManualOverride != nil {
		state.ManualOverride = *p.ManualOverride
	}
	state.CycleCount = p.CycleCount

	s.logger.WithFields(logrus.Fields{
		"off_time":    state.CurrentOffTime,
		"cycle_count": state.CycleCount,
	}).Info("State loaded")

	return state
}

// Save writes the state atomically: temp file in the same directory,
// then rename over the old file.
func (s *StateStore) Save(state models.ControllerState) error {
	p := persistedState{
		CurrentOffTime: state.CurrentOffTime,
		CycleCount:     state.CycleCount,
		LastUpdated:    time.Now(),
	}
	if state.ManualOverride > 0 {
		override := state.ManualOverride
		p.ManualOverride = &override
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
