package models

import "time"

// PumpStatus is the last commanded relay state as the controller knows it.
type PumpStatus string

const (
	PumpUnknown PumpStatus = "unknown"
	PumpOn      PumpStatus = "on"
	PumpOff     PumpStatus = "off"
)

// PowerSample is a single instantaneous power reading from the plug's
// power meter. Samples live only for the duration of one cycle's
// aggregation and are never persisted individually.
type PowerSample struct {
	PowerW    float64   `json:"power_w"`
	CurrentA  float64   `json:"current_a"`
	VoltageV  float64   `json:"voltage_v"`
	Timestamp time.Time `json:"timestamp"`
}

// PerformanceSummary reduces one ON phase's samples to the metrics the
// off-time policy works from. Average, max and min are computed over all
// samples, idle ones included; a cycle that never engaged the pump shows
// up as a low average, which is intentional.
type PerformanceSummary struct {
	WorkingTimeS float64
	TotalTimeS   float64
	AvgPowerW    float64
	MaxPowerW    float64
	MinPowerW    float64
}

// WeatherSnapshot is the current conditions at the configured location.
// A nil snapshot (weather unconfigured or unreachable) is a valid input
// everywhere it is consumed.
type WeatherSnapshot struct {
	Condition   string
	Rain1h      float64 // mm over the last hour
	Description string
}

// ControllerState is the durable controller state, owned exclusively by
// the cycle state machine and written back after every mutation so a
// restart resumes with the last computed off-time.
type ControllerState struct {
	CycleCount     int
	CurrentOffTime int // seconds, within [MinOffTime, MaxOffTime]
	ManualOverride int // seconds; 0 means no override
	PumpStatus     PumpStatus
	NextCycleTime  time.Time // zero until the first cycle completes
}

// CycleRecord is the per-cycle row appended to the cycle log and, when
// configured, exported to the history database and publishers.
type CycleRecord struct {
	ID           string
	Time         time.Time
	WorkingTimeS float64
	TotalTimeS   float64
	AvgPowerW    float64
	MaxPowerW    float64
	MinPowerW    float64
	NextOffTimeS int
	Weather      string
	CycleCount   int
	DailyCycles  int
	DailyRunS    float64
}

// OverrideCommand is an operator command read from the override slot.
type OverrideCommand struct {
	Kind        OverrideKind
	WaitMinutes int // set only for OverrideWait
}

type OverrideKind string

const (
	OverrideStop    OverrideKind = "stop"
	OverrideNormal  OverrideKind = "normal"
	OverrideWait    OverrideKind = "wait"
	OverridePumpNow OverrideKind = "pump_now"
)
