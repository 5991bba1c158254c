// Package config loads the settings of an optimization run
// from viper.
package config

import (
	"time"

	"github.com/spf13/viper"
	"github.com/unixpickle/dist-gd/logging"
	"github.com/unixpickle/dist-gd/pgd"
	"github.com/unixpickle/dist-gd/points"
	"github.com/unixpickle/dist-gd/simulator"
)

// Network kinds.
const (
	NetworkOrdered = "ordered"
	NetworkRandom  = "random"
)

// Config is the complete configuration of a run.
type Config struct {
	// Input is the path of the dataset. It is required.
	Input string `mapstructure:"input"`
	// InputFormat is "text" or "binary".
	InputFormat string `mapstructure:"input_format"`
	// Output is the path the final weights are written to.
	// Empty means stdout.
	Output string `mapstructure:"output"`

	Workers     int     `mapstructure:"workers"`
	Convergence float64 `mapstructure:"convergence"`

	// Timeout bounds the wall-clock time of a run (0
	// disables it).
	Timeout time.Duration `mapstructure:"timeout"`
	// FlopTime is the virtual time per floating-point
	// operation on a worker.
	FlopTime float64 `mapstructure:"flop_time"`

	// History is the path of a SQLite database to record
	// every round in. Empty disables recording.
	History string `mapstructure:"history"`

	Network NetworkConfig `mapstructure:"network"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// NetworkConfig describes the simulated network.
type NetworkConfig struct {
	// Kind is "ordered" or "random".
	Kind string `mapstructure:"kind"`
	// Rate is the bytes per unit of virtual time of an
	// ordered network.
	Rate float64 `mapstructure:"rate"`
	// Latency is the maximum random latency of an ordered
	// network.
	Latency float64 `mapstructure:"latency"`
}

// LoggingConfig controls the JSON logger.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	// File is the log file path. Empty means stderr.
	File string `mapstructure:"file"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		InputFormat: points.FormatBinary,
		Workers:     4,
		Convergence: 1e-6,
		Timeout:     0,
		FlopTime:    pgd.DefaultFlopTime,
		Network: NetworkConfig{
			Kind: NetworkOrdered,
			Rate: pgd.DefaultRate,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// SetDefaults registers default values with viper.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("input", defaults.Input)
	viper.SetDefault("input_format", defaults.InputFormat)
	viper.SetDefault("output", defaults.Output)
	viper.SetDefault("workers", defaults.Workers)
	viper.SetDefault("convergence", defaults.Convergence)
	viper.SetDefault("timeout", defaults.Timeout)
	viper.SetDefault("flop_time", defaults.FlopTime)
	viper.SetDefault("history", defaults.History)

	viper.SetDefault("network.kind", defaults.Network.Kind)
	viper.SetDefault("network.rate", defaults.Network.Rate)
	viper.SetDefault("network.latency", defaults.Network.Latency)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.file", defaults.Logging.File)
}

// Load reads the configuration from viper and validates it.
//
// Validation failures are returned as ValidationErrors.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// BuildNetwork creates the simulated network described by
// the configuration.
func (n *NetworkConfig) BuildNetwork() simulator.Network {
	if n.Kind == NetworkRandom {
		return simulator.RandomNetwork{}
	}
	return simulator.NewOrderedNetwork(n.Rate, n.Latency)
}

// NewLogger opens the configured logger.
func (l *LoggingConfig) NewLogger() (*logging.Logger, error) {
	return logging.NewLogger(l.File, l.Level)
}

// FitConfig converts the run settings into a pgd.Config.
func (c *Config) FitConfig(logger *logging.Logger) pgd.Config {
	return pgd.Config{
		Workers:  c.Workers,
		Epsilon:  c.Convergence,
		Network:  c.Network.BuildNetwork(),
		FlopTime: c.FlopTime,
		Logger:   logger,
	}
}
