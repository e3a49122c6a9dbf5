// Package config loads the controller configuration from a YAML file,
// expanding environment variable references so secrets like the weather
// API key can live outside the file.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the controller process.
type Config struct {
	Device     DeviceConfig     `mapstructure:"device"`
	Controller ControllerConfig `mapstructure:"controller"`
	Weather    WeatherConfig    `mapstructure:"weather"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Storage    StorageConfig    `mapstructure:"storage"`
	History    HistoryConfig    `mapstructure:"history"`
	Export     ExportConfig     `mapstructure:"export"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type DeviceConfig struct {
	Address string `mapstructure:"address"`
}

// ControllerConfig carries the cycle timing knobs. The defaults match the
// deployed pump; tests and bench rigs shrink them.
type ControllerConfig struct {
	OnTimeS        int `mapstructure:"on_time"`
	BaseOffTimeS   int `mapstructure:"base_off_time"`
	MinOffTimeS    int `mapstructure:"min_off_time"`
	MaxOffTimeS    int `mapstructure:"max_off_time"`
	StartupDelayS  int `mapstructure:"startup_delay"`
	SampleEveryMS  int `mapstructure:"sample_interval_ms"`
	OverridePollS  int `mapstructure:"override_poll"`
	CycleCooldownS int `mapstructure:"cycle_cooldown"`
}

type WeatherConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Location string `mapstructure:"location"`
}

type NotifyConfig struct {
	HealthcheckURL string `mapstructure:"healthcheck_url"`
}

type StorageConfig struct {
	StateFile    string `mapstructure:"state_file"`
	OverrideFile string `mapstructure:"override_file"`
	CSVFile      string `mapstructure:"csv_file"`
}

type HistoryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type ExportConfig struct {
	MQTT   MQTTConfig   `mapstructure:"mqtt"`
	Influx InfluxConfig `mapstructure:"influx"`
}

type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Topic    string `mapstructure:"topic"`
}

type InfluxConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Token   string `mapstructure:"token"`
	Org     string `mapstructure:"org"`
	Bucket  string `mapstructure:"bucket"`
}

type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file, expands environment variables, and
// applies defaults for everything the file leaves unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Round-trip through yaml first so scalar types normalize before
	// env expansion touches the document.
	var rawConfig map[string]interface{}
	if err := yaml.Unmarshal(data, &rawConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal raw config: %w", err)
	}
	data, err = yaml.Marshal(rawConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal raw config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	if err := v.MergeConfig(bytes.NewReader([]byte(expanded))); err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("controller.on_time", 45)
	v.SetDefault("controller.base_off_time", 420)
	v.SetDefault("controller.min_off_time", 300)
	v.SetDefault("controller.max_off_time", 86400)
	v.SetDefault("controller.startup_delay", 60)
	v.SetDefault("controller.sample_interval_ms", 500)
	v.SetDefault("controller.override_poll", 30)
	v.SetDefault("controller.cycle_cooldown", 300)

	v.SetDefault("storage.state_file", "sump_state.json")
	v.SetDefault("storage.override_file", "pump_override.txt")
	v.SetDefault("storage.csv_file", "sump_cycles.csv")

	v.SetDefault("history.port", 5432)
	v.SetDefault("history.ssl_mode", "disable")

	v.SetDefault("export.mqtt.client_id", "sumpctl")
	v.SetDefault("export.mqtt.topic", "sump/cycle")
	v.SetDefault("export.influx.bucket", "sump")

	v.SetDefault("metrics.listen_addr", ":7001")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}
