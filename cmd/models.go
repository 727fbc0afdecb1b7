package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/pdsearch/sim"
)

// modelsCmd lists the model registry
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models available to --model-type",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		models := sim.DefaultModels()
		if modelsPath != "" {
			var err error
			if models, err = sim.LoadModels(modelsPath); err != nil {
				logrus.Fatalf("%v", err)
			}
		}
		if err := listModels(models, sim.DefaultHardware(), os.Stdout); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

// listModels prints each model with the fewest GPUs that can hold its weights.
func listModels(models sim.ModelRegistry, hw sim.Hardware, out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "name\tparams_b\tlayers\thidden\tweights_gb\tmin_gpus")
	for _, name := range models.Names() {
		m := models[name]
		fmt.Fprintf(tw, "%s\t%g\t%d\t%d\t%.1f\t%d\n",
			name, m.NumParamsB, m.NumLayers, m.HiddenSize, m.WeightBytes()/1e9, minGPUs(m, hw))
	}
	return tw.Flush()
}

// minGPUs is the smallest GPU count with KV room left after the weights, or 0
// if none up to 64 fits.
func minGPUs(m sim.Model, hw sim.Hardware) int {
	for n := 1; n <= 64; n++ {
		if sim.KVCapacityTokens(m, hw, n) > 0 {
			return n
		}
	}
	return 0
}

func init() {
	modelsCmd.Flags().StringVar(&modelsPath, "models", "", "YAML file of extra or replacement model definitions")
}
