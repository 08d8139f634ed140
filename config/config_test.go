package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-looper/looper"
	"go-looper/measure"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "state.json", cfg.StateFile)
	assert.Equal(t, measure.Default(), cfg.Measure())
	assert.Equal(t, looper.DefaultControls(), cfg.Controls())
	assert.Equal(t, looper.DefaultMetronome(), cfg.MetronomeSettings())
	assert.Equal(t, 3*time.Millisecond, cfg.LoopSleep())
	assert.Equal(t, 2*time.Second, cfg.AutosaveDelay())
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "go-looper", "config.json")

	cfg := DefaultConfig()
	cfg.RememberPorts("Keystep", "")
	cfg.RememberPorts("", "IAC Driver Bus 1")
	cfg.Tempo = 95
	cfg.Control.Disabled = true
	require.NoError(t, cfg.SaveTo(path))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
	assert.Equal(t, "Keystep", loaded.InputPort)
	assert.Equal(t, "IAC Driver Bus 1", loaded.OutputPort)
	assert.False(t, loaded.Controls().Enabled)
}

func TestLoadKeepsDefaultsForMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tempo": 140}`), 0644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(140), cfg.Tempo)
	assert.Equal(t, uint32(4), cfg.MeasureSize)
	assert.Equal(t, uint8(51), cfg.Control.RecordKey)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"zero tempo":    `{"tempo": 0}`,
		"zero measure":  `{"measureSize": 0}`,
		"bad channel":   `{"control": {"channel": 16}}`,
		"negative":      `{"historyLimit": -1}`,
		"no state file": `{"stateFile": ""}`,
		"not json":      `{`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			require.NoError(t, os.WriteFile(path, []byte(doc), 0644))
			_, err := LoadFrom(path)
			assert.Error(t, err)
		})
	}
}

func TestValidateWrapsMeasureError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tempo = 0
	err := cfg.Validate()
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, measure.ErrInvalidMeasure)
}
