package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hydrohome/sumpctl/internal/config"
	"github.com/hydrohome/sumpctl/internal/controller"
	"github.com/hydrohome/sumpctl/internal/cyclelog"
	"github.com/hydrohome/sumpctl/internal/device"
	"github.com/hydrohome/sumpctl/internal/export"
	"github.com/hydrohome/sumpctl/internal/history"
	"github.com/hydrohome/sumpctl/internal/metrics"
	"github.com/hydrohome/sumpctl/internal/models"
	"github.com/hydrohome/sumpctl/internal/notify"
	"github.com/hydrohome/sumpctl/internal/store"
	"github.com/hydrohome/sumpctl/internal/weather"
)

// Command sumpctl runs the adaptive sump pump controller.
//
// Usage:
//
//	sumpctl [flags]            run the controller loop
//	sumpctl [flags] test       run exactly one cycle and exit
//	sumpctl [flags] stop       ask a running controller to stop
//	sumpctl [flags] normal     clear a manual wait override
//	sumpctl [flags] pump_now   cut the current wait short
//	sumpctl [flags] wait <m>   override the wait to <m> minutes
//
// The flags are:
//
//	-config string
//	      path to config file (default "config.yaml")
func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)

	// Operator commands only touch the override slot and exit.
	args := flag.Args()
	if len(args) > 0 && args[0] != "test" {
		if err := depositCommand(cfg, args); err != nil {
			logger.WithError(err).Error("Override rejected")
			os.Exit(1)
		}
		logger.WithField("command", strings.Join(args, " ")).Info("Override deposited")
		return
	}

	ctrl, cleanup, err := buildController(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to start: %v", err)
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel, logger)

	if len(args) > 0 && args[0] == "test" {
		logger.Info("Test mode: running a single cycle")
		if err := ctrl.RunOnce(ctx); err != nil {
			logger.WithError(err).Error("Test cycle failed")
		}
		return
	}

	if err := ctrl.Run(ctx); err != nil {
		logger.Fatalf("Controller error: %v", err)
	}
	logger.Info("Shutdown complete")
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(level)
	}
	return logger
}

func depositCommand(cfg *config.Config, args []string) error {
	slot := store.NewOverrideSlot(cfg.Storage.OverrideFile, logrus.New())
	return slot.Deposit(strings.Join(args, " "))
}

func buildController(cfg *config.Config, logger *logrus.Logger) (*controller.Controller, func(), error) {
	if cfg.Device.Address == "" {
		return nil, nil, fmt.Errorf("device.address is required")
	}

	rowi := device.NewClient(cfg.Device.Address, logger)
	weatherClient := weather.NewClient(cfg.Weather.APIKey, cfg.Weather.Location, logger)
	notifier := notify.NewNotifier(cfg.Notify.HealthcheckURL, logger)
	states := store.NewStateStore(cfg.Storage.StateFile, logger)
	overrides := store.NewOverrideSlot(cfg.Storage.OverrideFile, logger)
	cycleLog := cyclelog.NewWriter(cfg.Storage.CSVFile, logger)

	var closers []func()
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	var repo history.CycleRepository
	if cfg.History.Enabled {
		connStr := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.History.Host, cfg.History.Port, cfg.History.User,
			cfg.History.Password, cfg.History.Name, cfg.History.SSLMode,
		)
		pg, err := history.NewPostgresRepo(connStr)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to open history database: %w", err)
		}
		closers = append(closers, func() { pg.Close() })
		repo = pg
	}

	var exporters []controller.Exporter
	if cfg.Export.MQTT.Enabled {
		pub, err := export.NewMQTTPublisher(cfg.Export.MQTT.Broker, cfg.Export.MQTT.ClientID, cfg.Export.MQTT.Topic, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to connect MQTT exporter: %w", err)
		}
		closers = append(closers, pub.Close)
		exporters = append(exporters, mqttExporter{pub})
	}
	if cfg.Export.Influx.Enabled {
		iw := export.NewInfluxWriter(cfg.Export.Influx.URL, cfg.Export.Influx.Token, cfg.Export.Influx.Org, cfg.Export.Influx.Bucket)
		closers = append(closers, iw.Close)
		exporters = append(exporters, influxExporter{iw})
	}

	m := metrics.New()
	if repo != nil {
		m.Attach("/cycles", recentCyclesHandler(repo, logger))
	}
	go func() {
		if err := m.Serve(cfg.Metrics.ListenAddr); err != nil {
			logger.WithError(err).Error("Metrics server failed")
		}
	}()

	ctrl := controller.New(timingFromConfig(cfg.Controller), controller.Deps{
		Relay:     rowi,
		Power:     rowi,
		Weather:   weatherClient,
		Notifier:  notifier,
		CycleLog:  cycleLog,
		States:    states,
		Overrides: overrides,
		History:   repo,
		Exporters: exporters,
		Metrics:   m,
		Logger:    logger,
	})

	cr, err := ctrl.StartRollover()
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to schedule daily rollover: %w", err)
	}
	closers = append(closers, func() { cr.Stop() })

	return ctrl, cleanup, nil
}

func timingFromConfig(cfg config.ControllerConfig) controller.Timing {
	t := controller.DefaultTiming()
	t.OnTime = seconds(cfg.OnTimeS)
	t.SampleInterval = milliseconds(cfg.SampleEveryMS)
	t.StartupDelay = seconds(cfg.StartupDelayS)
	t.OverridePoll = seconds(cfg.OverridePollS)
	t.CycleCooldown = seconds(cfg.CycleCooldownS)
	t.BaseOffTime = cfg.BaseOffTimeS
	t.MinOffTime = cfg.MinOffTimeS
	t.MaxOffTime = cfg.MaxOffTimeS
	return t
}

// recentCyclesHandler serves the last day of cycle history as JSON on
// the operational listener, next to /metrics and /health.
func recentCyclesHandler(repo history.CycleRepository, logger *logrus.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		recs, err := repo.RecentCycles(ctx, time.Now().Add(-24*time.Hour), 200)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(recs); err != nil {
			logger.WithError(err).Error("Failed to encode cycle history")
		}
	})
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func milliseconds(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func handleSignals(cancel context.CancelFunc, logger *logrus.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.WithField("signal", sig.String()).Info("Received signal, shutting down")
	cancel()
}

// Thin adapters between the exporter implementations and the
// controller's Exporter contract.
type mqttExporter struct {
	pub *export.MQTTPublisher
}

func (m mqttExporter) ExportCycle(ctx context.Context, rec models.CycleRecord) error {
	return m.pub.PublishCycle(rec)
}

type influxExporter struct {
	w *export.InfluxWriter
}

func (i influxExporter) ExportCycle(ctx context.Context, rec models.CycleRecord) error {
	return i.w.WriteCycle(ctx, rec)
}
