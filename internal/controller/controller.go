// Package controller implements the adaptive duty-cycle controller: a
// single task that drives the pump relay through fixed-ON,
// variable-OFF cycles, measuring how hard the pump worked during each
// ON phase and stretching or shrinking the wait accordingly.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hydrohome/sumpctl/internal/history"
	"github.com/hydrohome/sumpctl/internal/metrics"
	"github.com/hydrohome/sumpctl/internal/models"
)

// errCycleAborted marks a cycle the relay refused to start; the outer
// loop retries the whole cycle after a cool-down.
var errCycleAborted = errors.New("cycle aborted")

// Collaborator contracts. The controller owns all I/O ordering; each of
// these is an I/O shim with no decision logic of its own.
type (
	RelayController interface {
		SetRelay(ctx context.Context, on bool) error
	}
	WeatherSource interface {
		Current(ctx context.Context) (*models.WeatherSnapshot, error)
	}
	Notifier interface {
		Notify(ctx context.Context, message string)
	}
	CycleLogWriter interface {
		Append(rec models.CycleRecord, worked bool) error
	}
	StateStore interface {
		Load(baseOffTime int) models.ControllerState
		Save(state models.ControllerState) error
	}
	OverrideSource interface {
		Take() *models.OverrideCommand
	}
	Exporter interface {
		ExportCycle(ctx context.Context, rec models.CycleRecord) error
	}
)

// Timing carries every duration knob of the state machine. Production
// values come from config defaults; tests shrink them to milliseconds.
type Timing struct {
	OnTime         time.Duration // fixed ON phase
	SampleInterval time.Duration // telemetry poll cadence during ON
	StartupDelay   time.Duration // one-time grace period before the first cycle
	OverridePoll   time.Duration // override slot poll cadence during OFF wait
	CycleCooldown  time.Duration // pause after a cycle-fatal failure
	FaultPause     time.Duration // pause after an unexpected fault

	BaseOffTime int // seconds, the defaulted wait for fresh state
	MinOffTime  int // seconds
	MaxOffTime  int // seconds
}

func DefaultTiming() Timing {
	return Timing{
		OnTime:         45 * time.Second,
		SampleInterval: 500 * time.Millisecond,
		StartupDelay:   60 * time.Second,
		OverridePoll:   30 * time.Second,
		CycleCooldown:  5 * time.Minute,
		FaultPause:     time.Minute,
		BaseOffTime:    420,
		MinOffTime:     300,
		MaxOffTime:     86400,
	}
}

// Deps bundles the controller's collaborators. History and Exporters
// are optional; everything else is required.
type Deps struct {
	Relay     RelayController
	Power     PowerReader
	Weather   WeatherSource
	Notifier  Notifier
	CycleLog  CycleLogWriter
	States    StateStore
	Overrides OverrideSource
	History   history.CycleRepository
	Exporters []Exporter
	Metrics   *metrics.Metrics
	Logger    *logrus.Logger
}

// Controller is the cycle state machine. It runs as one logical task;
// the override slot and state file are only ever touched from here, so
// exclusivity is structural rather than mutex-enforced. The one
// exception is the daily counters, which the rollover cron also reads.
type Controller struct {
	timing  Timing
	relay   RelayController
	sampler *Sampler
	policy  *Policy

	weatherSrc WeatherSource
	notifier   Notifier
	cycleLog   CycleLogWriter
	states     StateStore
	overrides  OverrideSource
	history    history.CycleRepository
	exporters  []Exporter
	metrics    *metrics.Metrics
	logger     *logrus.Logger

	state   models.ControllerState
	weather *models.WeatherSnapshot

	mu          sync.Mutex
	dailyCycles int
	dailyRunS   float64
}

func New(timing Timing, deps Deps) *Controller {
	c := &Controller{
		timing:     timing,
		relay:      deps.Relay,
		sampler:    NewSampler(deps.Power, timing.SampleInterval, deps.Logger),
		policy:     NewPolicy(timing.MinOffTime, timing.MaxOffTime, deps.Logger),
		weatherSrc: deps.Weather,
		notifier:   deps.Notifier,
		cycleLog:   deps.CycleLog,
		states:     deps.States,
		overrides:  deps.Overrides,
		history:    deps.History,
		exporters:  deps.Exporters,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}

	c.state = c.states.Load(timing.BaseOffTime)
	// A hand-edited state file must not smuggle an out-of-bounds wait in.
	if c.state.CurrentOffTime < timing.MinOffTime {
		c.state.CurrentOffTime = timing.MinOffTime
	}
	if c.state.CurrentOffTime > timing.MaxOffTime {
		c.state.CurrentOffTime = timing.MaxOffTime
	}
	c.metrics.CurrentOffTime.Set(float64(c.state.CurrentOffTime))
	return c
}

// Run executes the controller loop until ctx is canceled or a stop
// override arrives, then turns the pump off best-effort.
func (c *Controller) Run(ctx context.Context) error {
	c.logger.WithFields(logrus.Fields{
		"on_time":   c.timing.OnTime,
		"off_time":  c.state.CurrentOffTime,
		"sweet_lo":  ShortRunThreshold,
		"sweet_hi":  OptimalRunThreshold,
		"working_w": WorkingPowerThreshold,
		"idle_w":    IdlePowerThreshold,
	}).Info("Starting adaptive pump controller")

	c.logger.WithField("delay", c.timing.StartupDelay).Info("Waiting for system startup")
	select {
	case <-time.After(c.timing.StartupDelay):
	case <-ctx.Done():
		c.shutdown()
		return nil
	}

	for {
		if ctx.Err() != nil {
			break
		}
		c.metrics.MarkProgress()

		nextOff, err := c.doCycle(ctx)
		if err != nil {
			if errors.Is(err, errCycleAborted) {
				c.logger.WithError(err).Error("Cycle failed, retrying after cool-down")
				if !c.sleep(ctx, c.timing.CycleCooldown) {
					break
				}
				continue
			}
			// Unexpected fault: stay alive in degraded mode.
			c.logger.WithError(err).Error("Cycle error")
			c.notifier.Notify(ctx, fmt.Sprintf("ERROR: %v", err))
			if !c.sleep(ctx, c.timing.FaultPause) {
				break
			}
			continue
		}

		stop := c.waitOffPhase(ctx, nextOff)
		if stop {
			break
		}
	}

	c.shutdown()
	return nil
}

// RunOnce executes a single cycle synchronously, without the startup
// delay or the trailing wait phase. Used by the CLI test mode.
func (c *Controller) RunOnce(ctx context.Context) error {
	_, err := c.doCycle(ctx)
	return err
}

// doCycle runs one ON -> measure -> OFF -> compute iteration and
// returns the computed next off-time in seconds.
func (c *Controller) doCycle(ctx context.Context) (int, error) {
	c.state.CycleCount++
	cycle := c.state.CycleCount
	c.logger.WithField("cycle", cycle).Info("--- Starting cycle ---")

	// Best-effort weather refresh; a failure leaves the prior snapshot
	// in place, stale or nil.
	if snap, err := c.weatherSrc.Current(ctx); err == nil {
		c.weather = snap
	} else {
		c.logger.WithError(err).Debug("Weather unavailable")
	}

	if err := c.relay.SetRelay(ctx, true); err != nil {
		c.state.PumpStatus = models.PumpUnknown
		c.metrics.CycleFailures.Inc()
		c.notifier.Notify(ctx, fmt.Sprintf("ERROR Cycle %d: Failed ON", cycle))
		return 0, fmt.Errorf("%w: %v", errCycleAborted, err)
	}
	c.state.PumpStatus = models.PumpOn
	c.metrics.PumpOn.Set(1)
	c.notifier.Notify(ctx, fmt.Sprintf("Cycle %d: Pump ON - monitoring performance", cycle))

	samples := c.sampler.Run(ctx, c.timing.OnTime)
	summary := Summarize(samples, c.timing.OnTime, c.timing.SampleInterval)
	c.metrics.LastWorkingTime.Set(summary.WorkingTimeS)
	c.logger.WithFields(logrus.Fields{
		"working_time": summary.WorkingTimeS,
		"avg_power":    summary.AvgPowerW,
		"max_power":    summary.MaxPowerW,
		"samples":      len(samples),
	}).Info("Performance measured")

	// A stuck-on pump must not also corrupt the adaptive schedule: the
	// OFF failure is reported but the cycle still computes and persists
	// its result.
	if err := c.relay.SetRelay(ctx, false); err != nil {
		c.state.PumpStatus = models.PumpUnknown
		c.logger.WithError(err).Error("Failed to turn pump OFF")
		c.notifier.Notify(ctx, fmt.Sprintf("ERROR Cycle %d: Failed OFF", cycle))
	} else {
		c.state.PumpStatus = models.PumpOff
		c.metrics.PumpOn.Set(0)
	}

	nextOff := c.policy.NextOffTime(summary, c.state.CurrentOffTime, c.state.ManualOverride, c.weather)
	c.state.CurrentOffTime = nextOff
	c.state.NextCycleTime = time.Now().Add(time.Duration(nextOff) * time.Second)
	c.persist()
	c.metrics.CurrentOffTime.Set(float64(nextOff))
	c.metrics.CyclesTotal.Inc()

	c.mu.Lock()
	c.dailyCycles++
	c.dailyRunS += summary.WorkingTimeS
	dailyCycles, dailyRun := c.dailyCycles, c.dailyRunS
	c.mu.Unlock()

	weatherDesc := "unknown"
	if c.weather != nil {
		weatherDesc = c.weather.Description
	}
	rec := models.CycleRecord{
		ID:           uuid.NewString(),
		Time:         time.Now(),
		WorkingTimeS: summary.WorkingTimeS,
		TotalTimeS:   summary.TotalTimeS,
		AvgPowerW:    summary.AvgPowerW,
		MaxPowerW:    summary.MaxPowerW,
		MinPowerW:    summary.MinPowerW,
		NextOffTimeS: nextOff,
		Weather:      weatherDesc,
		CycleCount:   cycle,
		DailyCycles:  dailyCycles,
		DailyRunS:    dailyRun,
	}
	if err := c.cycleLog.Append(rec, summary.WorkingTimeS > MinWorkingTime); err != nil {
		c.logger.WithError(err).Error("Failed to append cycle log")
	}
	c.export(ctx, rec)

	c.notifier.Notify(ctx, fmt.Sprintf("Cycle %d: Working %.1fs, Next: %.1fmin",
		cycle, summary.WorkingTimeS, float64(nextOff)/60))
	c.logger.WithFields(logrus.Fields{
		"next_off":   describeWait(nextOff),
		"next_cycle": c.state.NextCycleTime.Format("15:04:05 on 2006-01-02"),
	}).Info("Pump OFF, waiting")

	return nextOff, nil
}

// waitOffPhase sleeps out the computed off-time, polling the override
// slot at a fixed cadence. Returns true when the controller should stop.
func (c *Controller) waitOffPhase(ctx context.Context, offTime int) (stop bool) {
	remaining := time.Duration(offTime) * time.Second
	for remaining > 0 {
		step := c.timing.OverridePoll
		if remaining < step {
			step = remaining
		}
		select {
		case <-time.After(step):
		case <-ctx.Done():
			return true
		}
		remaining -= step
		c.metrics.MarkProgress()

		stop, pumpNow := c.applyOverride()
		if stop {
			return true
		}
		if pumpNow {
			c.logger.Info("Override: immediate pump cycle requested")
			return false
		}
	}
	return false
}

// applyOverride consumes at most one pending command from the slot.
func (c *Controller) applyOverride() (stop, pumpNow bool) {
	cmd := c.overrides.Take()
	if cmd == nil {
		return false, false
	}
	c.metrics.OverridesTotal.Inc()

	switch cmd.Kind {
	case models.OverrideStop:
		c.logger.Info("Override: system stop requested")
		return true, false
	case models.OverrideNormal:
		c.state.ManualOverride = 0
		c.persist()
		c.logger.Info("Override: returned to normal operation")
	case models.OverrideWait:
		c.state.ManualOverride = cmd.WaitMinutes * 60
		c.persist()
		c.logger.WithField("minutes", cmd.WaitMinutes).Info("Override: wait time set")
	case models.OverridePumpNow:
		return false, true
	}
	return false, false
}

func (c *Controller) export(ctx context.Context, rec models.CycleRecord) {
	if c.history != nil {
		hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := c.history.InsertCycle(hctx, rec); err != nil {
			c.logger.WithError(err).Warn("Failed to store cycle history")
		}
		cancel()
	}
	for _, e := range c.exporters {
		if err := e.ExportCycle(ctx, rec); err != nil {
			c.logger.WithError(err).Warn("Cycle export failed")
		}
	}
}

func (c *Controller) persist() {
	if err := c.states.Save(c.state); err != nil {
		c.logger.WithError(err).Error("Failed to save state")
	}
}

// shutdown is the STOPPING path: one best-effort pump OFF with errors
// swallowed, since the process is already exiting. Uses a fresh context
// because the run context is usually canceled by now.
func (c *Controller) shutdown() {
	c.logger.Info("Turning pump OFF before shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.relay.SetRelay(ctx, false); err != nil {
		c.logger.WithError(err).Warn("Best-effort pump OFF failed during shutdown")
	}
	c.state.PumpStatus = models.PumpOff
	c.metrics.PumpOn.Set(0)
}

// sleep waits interruptibly; false means ctx was canceled.
func (c *Controller) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

func describeWait(seconds int) string {
	if seconds >= 3600 {
		return fmt.Sprintf("%.1f hours", float64(seconds)/3600)
	}
	return fmt.Sprintf("%.1f minutes", float64(seconds)/60)
}
