package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/vehiclemon/pkg/channel"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, "/dev/ttyAMA0", cfg.Display.Port)
	assert.Equal(t, 115200, cfg.Display.BaudRate)
	assert.Equal(t, []uint16{0x68, 0x69}, cfg.ADC.Addresses)
	assert.Equal(t, 250*time.Millisecond, cfg.Sampling.Interval)
	assert.Equal(t, 5, cfg.Sampling.StaleAfter)
	assert.Equal(t, channel.DefaultInputRange, cfg.Calibration.Input)
	assert.Equal(t, "calibration.txt", cfg.Calibration.File)
	assert.False(t, cfg.Alarm.RestoreOnAnyClear)
	assert.Zero(t, cfg.Alarm.BuzzerPin)
	assert.Len(t, cfg.Mock.Levels, channel.Count)
	assert.Equal(t, -1, cfg.Mock.FaultChannel)
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "/dev/ttyAMA0", cfg.Display.Port)
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
display:
  port: "/dev/ttyUSB0"
  baud_rate: 9600

adc:
  bus: "0"
  addresses: [0x6a, 0x6b]
  input_scale: 2.0

sampling:
  interval: 100ms
  stale_after: 3
  average: 4

calibration:
  file: /var/lib/vehiclemon/cal.txt
  input:
    min: -5
    max: 5

alarm:
  restore_on_any_clear: true
  buzzer_pin: 18
  journal: ""
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "/dev/ttyUSB0", cfg.Display.Port)
	assert.Equal(t, 9600, cfg.Display.BaudRate)
	assert.Equal(t, "0", cfg.ADC.Bus)
	assert.Equal(t, []uint16{0x6a, 0x6b}, cfg.ADC.Addresses)
	assert.Equal(t, 2.0, cfg.ADC.InputScale)
	assert.Equal(t, 100*time.Millisecond, cfg.Sampling.Interval)
	assert.Equal(t, 3, cfg.Sampling.StaleAfter)
	assert.Equal(t, 4, cfg.Sampling.Average)
	assert.Equal(t, "/var/lib/vehiclemon/cal.txt", cfg.Calibration.File)
	assert.Equal(t, channel.InputRange{Min: -5, Max: 5}, cfg.Calibration.Input)
	assert.True(t, cfg.Alarm.RestoreOnAnyClear)
	assert.Equal(t, 18, cfg.Alarm.BuzzerPin)
	assert.Empty(t, cfg.Alarm.Journal)
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("invalid: yaml: content: [")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_PartialYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
display:
  port: "/dev/ttyS0"
adc:
  addresses: [0x68]
calibration:
  input:
    min: 1
    max: 1
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// Should use defaults for missing or unusable fields
	assert.Equal(t, "/dev/ttyS0", cfg.Display.Port)
	assert.Equal(t, 115200, cfg.Display.BaudRate)                     // default
	assert.Equal(t, []uint16{0x68, 0x69}, cfg.ADC.Addresses)          // needs two chips
	assert.Equal(t, channel.DefaultInputRange, cfg.Calibration.Input) // empty span
	assert.Equal(t, 250*time.Millisecond, cfg.Sampling.Interval)      // default
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Display.Port = "/dev/ttyUSB1"
	cfg.Alarm.RestoreOnAnyClear = true
	cfg.Mock.FaultChannel = 2

	tmpfile, err := os.CreateTemp("", "test_save_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	err = cfg.Save(tmpfile.Name())
	require.NoError(t, err)

	// Load it back and verify
	loaded, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB1", loaded.Display.Port)
	assert.True(t, loaded.Alarm.RestoreOnAnyClear)
	assert.Equal(t, 2, loaded.Mock.FaultChannel)
	assert.Equal(t, cfg.Mock.Levels, loaded.Mock.Levels)
}
