package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unixpickle/dist-gd/pgd"
	"github.com/unixpickle/dist-gd/simulator"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 1e-6, cfg.Convergence)
	assert.Equal(t, "binary", cfg.InputFormat)
	assert.Equal(t, NetworkOrdered, cfg.Network.Kind)

	// Only the input is missing.
	errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, "input", errs[0].Field)
}

func TestLoad(t *testing.T) {
	resetViper(t)
	viper.Set("input", "points.bin")
	viper.Set("workers", 8)
	viper.Set("timeout", "90s")
	viper.Set("network.kind", NetworkRandom)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "points.bin", cfg.Input)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.Equal(t, 1e-6, cfg.Convergence)
	assert.Equal(t, simulator.RandomNetwork{}, cfg.Network.BuildNetwork())
}

func TestLoadFile(t *testing.T) {
	resetViper(t)
	path := filepath.Join(t.TempDir(), "pgd.yaml")
	contents := "input: data.txt\ninput_format: text\nworkers: 3\nconvergence: 0.001\n" +
		"network:\n  rate: 500\n  latency: 0.25\nlogging:\n  level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.InputFormat)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 0.001, cfg.Convergence)
	assert.Equal(t, "debug", cfg.Logging.Level)

	network, ok := cfg.Network.BuildNetwork().(*simulator.OrderedNetwork)
	require.True(t, ok)
	assert.Equal(t, 500.0, network.Rate)
	assert.Equal(t, 0.25, network.MaxRandomLatency)

	fitCfg := cfg.FitConfig(nil)
	assert.Equal(t, 3, fitCfg.Workers)
	assert.Equal(t, 0.001, fitCfg.Epsilon)
}

func TestLoadInvalid(t *testing.T) {
	resetViper(t)
	viper.Set("workers", 0)
	viper.Set("convergence", -1)
	viper.Set("input_format", "csv")
	viper.Set("network.kind", "carrier-pigeon")
	viper.Set("logging.level", "loud")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, pgd.ErrConfiguration)

	var errs ValidationErrors
	require.True(t, errors.As(err, &errs))
	fields := make([]string, len(errs))
	for i, e := range errs {
		fields[i] = e.Field
	}
	assert.ElementsMatch(t, []string{"input", "input_format", "workers", "convergence",
		"network.kind", "logging.level"}, fields)
	assert.Contains(t, err.Error(), "6 validation errors")
}

func TestValidationErrorsSingle(t *testing.T) {
	errs := ValidationErrors{{Field: "workers", Value: -2, Message: "must be positive"}}
	assert.Equal(t, "workers: must be positive (got: -2)", errs.Error())
}
