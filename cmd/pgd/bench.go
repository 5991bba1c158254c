package main

import (
	"fmt"
	"io"
	"math/rand"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/unixpickle/dist-gd/pgd"
	"github.com/unixpickle/dist-gd/points"
	"github.com/unixpickle/dist-gd/simulator"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Print a markdown table of simulated run times",
	Long: `Run the optimization on random datasets over a range of worker counts and
network settings, and print the virtual time and number of rounds of every
run as a markdown table.`,
	RunE: runBench,
}

var (
	benchSizes []int
	benchDim   int
	benchEps   float64
	benchSeed  int64
)

func init() {
	rootCmd.AddCommand(benchCmd)

	flags := benchCmd.Flags()
	flags.IntSliceVar(&benchSizes, "sizes", []int{1000, 100000}, "dataset sizes")
	flags.IntVarP(&benchDim, "dim", "d", 10, "number of coordinates per point")
	flags.Float64VarP(&benchEps, "convergence", "e", 1e-6, "convergence threshold")
	flags.Int64Var(&benchSeed, "seed", 1337, "random seed")
}

// RunInfo describes a specific network configuration.
type RunInfo struct {
	Workers int
	Latency float64
	Rate    float64
}

// Network creates the network for a run.
func (r *RunInfo) Network() simulator.Network {
	return simulator.NewOrderedNetwork(r.Rate, r.Latency)
}

var benchRuns = []RunInfo{
	{Workers: 1, Latency: 0.1, Rate: 1e6},
	{Workers: 4, Latency: 1e-3, Rate: 1e6},
	{Workers: 16, Latency: 1e-3, Rate: 1e6},
	{Workers: 16, Latency: 0.1, Rate: 1e9},
	{Workers: 32, Latency: 1e-4, Rate: 1e9},
}

func runBench(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	rng := rand.New(rand.NewSource(benchSeed))
	datasets := make([]*points.Dataset, len(benchSizes))
	for i, size := range benchSizes {
		weights := points.RandomWeights(rng, benchDim, 10)
		datasets[i] = points.Generate(rng, size, weights, 10)
	}

	writeBenchHeader(out)
	for _, runInfo := range benchRuns {
		for _, ds := range datasets {
			// Small datasets cannot be split across every
			// worker count.
			if _, err := pgd.Partition(ds.Len(), runInfo.Workers); err != nil {
				writeBenchRow(out, &runInfo, ds.Len(), "n/a", "n/a")
				continue
			}
			res, err := pgd.Fit(cmd.Context(), ds, pgd.Config{
				Workers:  runInfo.Workers,
				Epsilon:  benchEps,
				Network:  runInfo.Network(),
				FlopTime: pgd.DefaultFlopTime,
			})
			if err != nil {
				return err
			}
			writeBenchRow(out, &runInfo, ds.Len(), strconv.FormatFloat(res.VirtualTime, 'f', 6, 64),
				strconv.Itoa(res.Iterations))
		}
	}
	return nil
}

func writeBenchRow(w io.Writer, r *RunInfo, size int, virtualTime, rounds string) {
	fmt.Fprintf(
		w,
		"| %d | %s | %s | %d | %s | %s |\n",
		r.Workers,
		strconv.FormatFloat(r.Latency, 'f', -1, 64),
		strconv.FormatFloat(r.Rate, 'E', -1, 64),
		size,
		virtualTime,
		rounds,
	)
}

func writeBenchHeader(w io.Writer) {
	columns := []string{"Workers", "Latency", "NIC rate", "Points", "Virtual time", "Rounds"}
	for _, c := range columns {
		fmt.Fprintf(w, "| %s ", c)
	}
	fmt.Fprintln(w, "|")
	for range columns {
		fmt.Fprint(w, "|:--")
	}
	fmt.Fprintln(w, "|")
}
