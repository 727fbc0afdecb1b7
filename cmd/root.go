package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/pdsearch/sim"
	"github.com/inference-sim/pdsearch/sim/report"
	"github.com/inference-sim/pdsearch/sim/search"
	"github.com/inference-sim/pdsearch/sim/workload"
)

var (
	// Cluster shape
	numNode        int  // Number of nodes
	gpusPerNode    int  // GPUs per node
	isHighAffinity bool // Keep every stage replica inside one node

	// Search inputs
	backendName       string        // distserve or vllm
	workloadName      string        // Dataset file under $DATASET
	modelType         string        // Model registry name
	prefillTarget     float64       // TTFT SLO (ms)
	decodeTarget      float64       // TPOT SLO (ms)
	prefillPercentage float64       // Percent of requests that must meet the TTFT SLO
	decodePercentage  float64       // Percent of requests that must meet the TPOT SLO
	maxPerGPURate     float64       // Upper bound of the per-GPU rate bisection
	epsilon           float64       // Bisection tolerance
	numSamples        int           // Requests simulated per probe
	seed              int64         // Seed for workload sampling
	workers           int           // Concurrent bisections
	deadline          time.Duration // Wall-clock budget of the whole run
	verifyLow         bool          // Re-probe each converged low bound

	// Files and logging
	configPath  string // YAML run file
	modelsPath  string // YAML model registry override
	outputPath  string // Result file the report block is appended to
	metricsPath string // Prometheus textfile written after the run
	logLevel    string // Log verbosity level
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "pdsearch",
	Short: "Search prefill/decode GPU partitions for the best per-GPU goodput",
}

// searchCmd runs the configuration search using parameters from CLI flags and an optional run file
var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Bisect every configuration of a cluster for its maximum SLO-meeting rate",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		rc := DefaultRunConfig()
		if configPath != "" {
			var err error
			if rc, err = LoadRunConfig(configPath); err != nil {
				logrus.Fatalf("%v", err)
			}
		}
		applySearchFlags(cmd, &rc)

		// The dataset location is a precondition of the whole run.
		datasetDir, err := workload.DatasetDir()
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := runSearch(ctx, rc, datasetDir, os.Stdout); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// applySearchFlags copies flag values into rc. Without a run file every flag
// applies; with one, only flags set on the command line override it.
func applySearchFlags(cmd *cobra.Command, rc *RunConfig) {
	set := func(name string) bool {
		return configPath == "" || cmd.Flags().Changed(name)
	}
	if set("num-node") {
		rc.Nodes = numNode
	}
	if set("ngpu-per-node") {
		rc.GPUsPerNode = gpusPerNode
	}
	if set("is-high-affinity") {
		rc.HighAffinity = isHighAffinity
	}
	if set("backend") {
		rc.Backend = backendName
	}
	if set("workload") {
		rc.Workload = workloadName
	}
	if set("model-type") {
		rc.Model = modelType
	}
	if set("prefill-target") {
		rc.Attainment.PrefillLatencyMs = prefillTarget
	}
	if set("decode-target") {
		rc.Attainment.DecodeLatencyMs = decodeTarget
	}
	if set("prefill-percentage") {
		rc.Attainment.PrefillPercentile = prefillPercentage
	}
	if set("decode-percentage") {
		rc.Attainment.DecodePercentile = decodePercentage
	}
	if set("max-per-gpu-rate") {
		rc.MaxRate = maxPerGPURate
	}
	if set("esp") {
		rc.Epsilon = epsilon
	}
	if set("N") {
		rc.Samples = numSamples
	}
	if set("seed") {
		rc.Seed = seed
	}
	if set("workers") {
		rc.Workers = workers
	}
	if set("deadline") {
		rc.Deadline = deadline
	}
	if set("verify-low") {
		rc.VerifyLow = verifyLow
	}
}

// runSearch loads the model and dataset, runs the search and writes the
// report block to out (and to the result file, when set).
func runSearch(ctx context.Context, rc RunConfig, datasetDir string, out io.Writer) error {
	models := sim.DefaultModels()
	if modelsPath != "" {
		var err error
		if models, err = sim.LoadModels(modelsPath); err != nil {
			return err
		}
	}
	params, err := rc.Params(models)
	if err != nil {
		return err
	}
	dataset, err := workload.LoadDataset(datasetDir, rc.Workload)
	if err != nil {
		return err
	}
	oracle, err := sim.NewOracle(dataset, rc.Hardware, rc.Arrival, rc.Seed)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics, err := search.NewMetrics(reg)
	if err != nil {
		return err
	}

	startTime := time.Now()
	res, err := search.NewCoordinator(oracle, metrics).Run(ctx, params)
	if err != nil {
		return err
	}
	logrus.Infof("Search finished in %s", time.Since(startTime).Round(time.Millisecond))
	if res.Interrupted {
		logrus.Warnf("Run %s was interrupted; unfinished configurations report their last known rate", res.RunID)
	}
	if top, ok := res.BestThroughput(); ok {
		logrus.Infof("Highest total throughput: %s at %.2f req/s", top.Config, top.TotalThroughput())
	}

	meta := report.Meta{
		RunID:        res.RunID,
		Backend:      params.Backend,
		Nodes:        rc.Nodes,
		GPUsPerNode:  rc.GPUsPerNode,
		HighAffinity: rc.HighAffinity,
		Workload:     rc.Workload,
		Model:        rc.Model,
		Target:       rc.Attainment,
		MaxRate:      rc.MaxRate,
		Epsilon:      rc.Epsilon,
		Samples:      rc.Samples,
		Seed:         rc.Seed,
	}
	if err := report.Write(out, meta, res); err != nil {
		return err
	}
	if outputPath != "" {
		if err := appendReport(outputPath, meta, res); err != nil {
			return err
		}
	}
	if metricsPath != "" {
		if err := prometheus.WriteToTextfile(metricsPath, reg); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}
	return nil
}

// appendReport adds the run's block to a result file that may hold earlier runs.
func appendReport(path string, meta report.Meta, res *search.Result) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening result file: %w", err)
	}
	if err := report.Write(f, meta, res); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	// Cluster shape
	searchCmd.Flags().IntVar(&numNode, "num-node", 1, "Number of nodes")
	searchCmd.Flags().IntVar(&gpusPerNode, "ngpu-per-node", 4, "Number of GPUs per node")
	searchCmd.Flags().BoolVar(&isHighAffinity, "is-high-affinity", false, "Keep each stage replica within one node")

	// Search inputs
	searchCmd.Flags().StringVar(&backendName, "backend", string(sim.BackendDisaggregated), "Serving backend (distserve, vllm)")
	searchCmd.Flags().StringVar(&workloadName, "workload", "sharegpt", "Workload dataset (sharegpt, humaneval, longbench)")
	searchCmd.Flags().StringVar(&modelType, "model-type", "opt_13b", "Model to simulate (opt_13b, opt_66b, opt_175b)")
	searchCmd.Flags().Float64Var(&prefillTarget, "prefill-target", 200, "Prefill (TTFT) latency target in ms")
	searchCmd.Flags().Float64Var(&decodeTarget, "decode-target", 100, "Decode (TPOT) latency target in ms")
	searchCmd.Flags().Float64Var(&prefillPercentage, "prefill-percentage", 90, "Percent of requests that must meet the prefill target")
	searchCmd.Flags().Float64Var(&decodePercentage, "decode-percentage", 90, "Percent of requests that must meet the decode target")
	searchCmd.Flags().Float64Var(&maxPerGPURate, "max-per-gpu-rate", 5, "Upper bound of the per-GPU rate search (req/s/GPU)")
	searchCmd.Flags().Float64Var(&epsilon, "esp", 0.25, "Bisection tolerance (req/s/GPU)")
	searchCmd.Flags().IntVar(&numSamples, "N", 300, "Requests simulated per probe")
	searchCmd.Flags().Int64Var(&seed, "seed", 0, "Seed for workload sampling")
	searchCmd.Flags().IntVar(&workers, "workers", 0, "Concurrent bisections (0 = GOMAXPROCS)")
	searchCmd.Flags().DurationVar(&deadline, "deadline", 0, "Wall-clock budget of the run (0 = none)")
	searchCmd.Flags().BoolVar(&verifyLow, "verify-low", false, "Re-probe each converged rate and warn if the oracle disagrees")

	// Files
	searchCmd.Flags().StringVar(&configPath, "config", "", "YAML run file; flags set explicitly override it")
	searchCmd.Flags().StringVar(&modelsPath, "models", "", "YAML file of extra or replacement model definitions")
	searchCmd.Flags().StringVar(&outputPath, "output", "", "Append the report block to this result file")
	searchCmd.Flags().StringVar(&metricsPath, "metrics-out", "", "Write Prometheus metrics to this textfile after the run")

	// Attach subcommands to `root`
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(modelsCmd)
}
