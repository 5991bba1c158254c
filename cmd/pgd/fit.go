package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/unixpickle/dist-gd/config"
	"github.com/unixpickle/dist-gd/history"
	"github.com/unixpickle/dist-gd/logging"
	"github.com/unixpickle/dist-gd/pgd"
	"github.com/unixpickle/dist-gd/points"
)

var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Fit a linear regression to a dataset",
	Long: `Fit a linear regression to a dataset by distributed gradient descent.

Every flag can also be set in the config file or through a PGD_ environment
variable (for example PGD_WORKERS=8 or PGD_NETWORK_KIND=random).

Examples:
  # Fit a generated dataset with 8 workers
  pgd fit -i points.bin -w 8

  # Fit a text dataset and store the weights
  pgd fit -i points.txt --format text -o weights.txt

  # Record every round in a SQLite database
  pgd fit -i points.bin --history runs.db`,
	RunE: runFit,
}

var fitSequential bool

func init() {
	rootCmd.AddCommand(fitCmd)

	flags := fitCmd.Flags()
	flags.StringP("input", "i", "", "dataset path")
	flags.String("format", "binary", "dataset format (text/binary)")
	flags.StringP("output", "o", "", "weights output path (default is stdout)")
	flags.IntP("workers", "w", 4, "number of workers")
	flags.Float64P("convergence", "e", 1e-6, "convergence threshold on the cost")
	flags.Duration("timeout", 0, "abort the run after this long (0 for no limit)")
	flags.Float64("flop-time", pgd.DefaultFlopTime, "virtual time per worker flop")
	flags.String("history", "", "SQLite database to record rounds in")
	flags.String("network", config.NetworkOrdered, "network kind (ordered/random)")
	flags.Float64("rate", pgd.DefaultRate, "ordered network rate in bytes per unit time")
	flags.Float64("latency", 0, "maximum random latency of the ordered network")
	flags.BoolVar(&fitSequential, "sequential", false, "run without workers or network")

	for key, flag := range map[string]string{
		"input":           "input",
		"input_format":    "format",
		"output":          "output",
		"workers":         "workers",
		"convergence":     "convergence",
		"timeout":         "timeout",
		"flop_time":       "flop-time",
		"history":         "history",
		"network.kind":    "network",
		"network.rate":    "rate",
		"network.latency": "latency",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
}

func runFit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("%w: %w", pgd.ErrConfiguration, err)
	}
	logger, err := cfg.Logging.NewLogger()
	if err != nil {
		return err
	}
	defer logger.Close()

	ds, err := points.Load(cfg.Input, cfg.InputFormat)
	if err != nil {
		return &pgd.StageError{Stage: pgd.StageLoad, Err: err}
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()
	if cfg.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, cfg.Timeout)
		defer cancelTimeout()
	}

	res, err := fitDataset(ctx, cfg, ds, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := res.WriteSummary(out); err != nil {
		return err
	}
	return publish(res, cfg.Output, out, logger)
}

func fitDataset(ctx context.Context, cfg *config.Config, ds *points.Dataset,
	logger *logging.Logger) (*pgd.Result, error) {
	fitCfg := cfg.FitConfig(logger)
	fitCfg.RunID = uuid.New().String()
	if cfg.History != "" {
		rec, err := history.Open(cfg.History, fitCfg.RunID)
		if err != nil {
			return nil, err
		}
		defer rec.Close()
		fitCfg.Observer = rec
	}
	if fitSequential {
		return pgd.FitSequential(ctx, ds, fitCfg)
	}
	return pgd.Fit(ctx, ds, fitCfg)
}

func publish(res *pgd.Result, output string, stdout io.Writer, logger *logging.Logger) error {
	if output == "" {
		return res.Publish(nil, stdout, logger)
	}
	sink := &outputSink{FileSink: points.FileSink{Path: output}}
	if err := res.Publish(sink, stdout, logger); err != nil {
		return err
	}
	if sink.written {
		fmt.Fprintf(stdout, "Results are written into file %q\n", output)
	}
	return nil
}

// outputSink remembers whether the weights made it to the
// file.
type outputSink struct {
	points.FileSink
	written bool
}

func (o *outputSink) WriteWeights(weights []float64) error {
	if err := o.FileSink.WriteWeights(weights); err != nil {
		return err
	}
	o.written = true
	return nil
}
