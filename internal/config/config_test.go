package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
device:
  address: "192.168.1.40"

weather:
  api_key: "abc123"
  location: "Portland,US"

notify:
  healthcheck_url: "https://hc.example.com/ping/xyz"

storage:
  state_file: "/var/lib/sumpctl/state.json"

logging:
  level: "debug"
  format: "json"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	assert.NoError(t, err)

	config, err := Load(configPath)
	assert.NoError(t, err)
	assert.NotNil(t, config)

	assert.Equal(t, "192.168.1.40", config.Device.Address)
	assert.Equal(t, "abc123", config.Weather.APIKey)
	assert.Equal(t, "Portland,US", config.Weather.Location)
	assert.Equal(t, "https://hc.example.com/ping/xyz", config.Notify.HealthcheckURL)
	assert.Equal(t, "/var/lib/sumpctl/state.json", config.Storage.StateFile)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, "json", config.Logging.Format)
}

func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
device:
  address: "192.168.1.40"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	assert.NoError(t, err)

	config, err := Load(configPath)
	assert.NoError(t, err)

	assert.Equal(t, 45, config.Controller.OnTimeS)
	assert.Equal(t, 420, config.Controller.BaseOffTimeS)
	assert.Equal(t, 300, config.Controller.MinOffTimeS)
	assert.Equal(t, 86400, config.Controller.MaxOffTimeS)
	assert.Equal(t, 500, config.Controller.SampleEveryMS)
	assert.Equal(t, 30, config.Controller.OverridePollS)
	assert.Equal(t, "pump_override.txt", config.Storage.OverrideFile)
	assert.Equal(t, ":7001", config.Metrics.ListenAddr)
	assert.Equal(t, "info", config.Logging.Level)
}

func TestLoadWithEnvOverride(t *testing.T) {
	t.Setenv("SUMP_WEATHER_KEY", "envkey")
	t.Setenv("SUMP_DEVICE_ADDR", "10.0.0.5")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
device:
  address: $SUMP_DEVICE_ADDR

weather:
  api_key: $SUMP_WEATHER_KEY
  location: "Portland,US"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	assert.NoError(t, err)

	config, err := Load(configPath)
	assert.NoError(t, err)

	assert.Equal(t, "10.0.0.5", config.Device.Address)
	assert.Equal(t, "envkey", config.Weather.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
