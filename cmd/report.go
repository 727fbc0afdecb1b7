package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/pdsearch/sim/report"
)

var (
	reportStrict bool   // Drop the rest of a block at its first malformed row
	reportMarker string // Block marker token
	reportTop    int    // Configurations listed by per-GPU rate
)

// reportCmd summarizes a result file written by one or more search runs
var reportCmd = &cobra.Command{
	Use:   "report <results-file>",
	Short: "Summarize the configurations recorded in a result file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		opts := report.ParseOptions{Marker: reportMarker, Policy: report.Lenient}
		if reportStrict {
			opts.Policy = report.Strict
		}
		if err := runReport(args[0], opts, reportTop, os.Stdout); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

func runReport(path string, opts report.ParseOptions, top int, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening result file: %w", err)
	}
	defer f.Close()

	rows, stats, err := report.Parse(f, opts)
	if err != nil {
		return err
	}
	logrus.Infof("Read %d rows from %d blocks in %s", stats.Rows, stats.Blocks, path)
	if stats.Aborted > 0 {
		fmt.Fprintf(out, "Blocks cut short by malformed lines: %d\n", stats.Aborted)
	}

	s := report.Summarize(rows)
	fmt.Fprintf(out, "Found %d configurations\n", s.Rows)
	if s.Valid == 0 {
		fmt.Fprintln(out, "No valid configurations found!")
		return nil
	}
	fmt.Fprintf(out, "Valid configurations: %d\n", s.Valid)
	fmt.Fprintf(out, "Best per-GPU rate: %.2f req/s/GPU\n", s.BestRate)
	fmt.Fprintf(out, "Config: %s\n", s.BestLabel)
	fmt.Fprintf(out, "Worst per-GPU rate: %.2f req/s/GPU\n", s.WorstRate)
	fmt.Fprintf(out, "Mean per-GPU rate: %.2f req/s/GPU\n", s.MeanRate)

	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "rank\tbackend\tconfig\tper_gpu_rate\ttotal_throughput")
	for i, r := range report.TopByRate(s.Ranked, top) {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\t%.2f\n", i+1, r.Backend, r.Label(), r.PerGPURate, r.TotalThroughput())
	}
	return tw.Flush()
}

func init() {
	reportCmd.Flags().BoolVar(&reportStrict, "strict", false, "Drop the rest of a block at its first malformed row instead of skipping only that row")
	reportCmd.Flags().StringVar(&reportMarker, "marker", report.DefaultMarker, "Token that introduces each run's block")
	reportCmd.Flags().IntVar(&reportTop, "top", 10, "Number of configurations to list (0 = all)")
}
