package main

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/unixpickle/dist-gd/points"
	"github.com/unixpickle/essentials"
)

var generateCmd = &cobra.Command{
	Use:   "generate <dataset>",
	Short: "Generate a random linear dataset",
	Long: `Generate a dataset whose targets are an exact linear function of random
coordinates. The weights of the function are drawn at random and can be saved
so that a fit can be checked against them.

Examples:
  # One million 10-dimensional points in the binary format
  pgd generate points.bin

  # A small text dataset, keeping the true weights
  pgd generate points.txt -n 1000 -d 3 --format text --weights true.txt

  # A random dimensionality between 1 and 9
  pgd generate points.bin -d -1`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

// randomDim asks for a random dimensionality.
const randomDim = -1

var (
	generateSize      int
	generateDim       int
	generateMaxWeight float64
	generateMaxCoord  float64
	generateFormat    string
	generateWeights   string
	generateSeed      int64
)

func init() {
	rootCmd.AddCommand(generateCmd)

	flags := generateCmd.Flags()
	flags.IntVarP(&generateSize, "size", "n", 1000000, "number of points")
	flags.IntVarP(&generateDim, "dim", "d", 10, "number of coordinates per point (-1 for random)")
	flags.Float64Var(&generateMaxWeight, "max-weight", 100, "upper bound of the true weights")
	flags.Float64Var(&generateMaxCoord, "max-coord", 100, "bound of the absolute coordinates")
	flags.StringVar(&generateFormat, "format", points.FormatBinary, "dataset format (text/binary)")
	flags.StringVar(&generateWeights, "weights", "", "file to write the true weights to")
	flags.Int64Var(&generateSeed, "seed", 0, "random seed (default is the current time)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if generateSize < 1 {
		return fmt.Errorf("size must be positive")
	}
	if generateDim < 1 && generateDim != randomDim {
		return fmt.Errorf("dimensionality must be positive or %d", randomDim)
	}
	seed := generateSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	start := time.Now()
	dim := generateDim
	if dim == randomDim {
		dim = points.RandomDim(rng)
	}
	weights := points.RandomWeights(rng, dim, generateMaxWeight)
	ds := points.Generate(rng, generateSize, weights, generateMaxCoord)
	if err := writeDataset(args[0], generateFormat, ds); err != nil {
		return err
	}
	if generateWeights != "" {
		sink := &points.FileSink{Path: generateWeights}
		if err := sink.WriteWeights(weights); err != nil {
			return essentials.AddCtx("write weights", err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Input generating finished: %d points of dimensionality %d (%v)\n",
		ds.Len(), ds.Dim, time.Since(start))
	return nil
}

func writeDataset(path, format string, ds *points.Dataset) (err error) {
	var write func(io.Writer, *points.Dataset) error
	switch format {
	case points.FormatText:
		write = points.WriteText
	case points.FormatBinary:
		write = points.WriteBinary
	default:
		return fmt.Errorf("%w: %q", points.ErrUnknownFormat, format)
	}

	f, err := os.Create(path)
	if err != nil {
		return essentials.AddCtx("write dataset", err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil && closeErr != nil {
			err = essentials.AddCtx("write dataset", closeErr)
		}
	}()
	if err := write(f, ds); err != nil {
		return essentials.AddCtx("write dataset", err)
	}
	return nil
}
