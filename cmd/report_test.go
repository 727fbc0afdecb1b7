package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/pdsearch/sim"
	"github.com/inference-sim/pdsearch/sim/report"
)

const resultFile = "Namespace(backend='distserve', num_node=1)\n" +
	report.DisaggregatedHeader + "\n" +
	"1\t1\t1\t1\t1\t2\t2.00\t4.00\n" +
	"error: CUDA OOM\n" +
	"1\t1\t1\t2\t1\t3\t3.00\t9.00\n" +
	"1\t1\t1\t1\t2\t3\t0.00\t0.00\n"

func TestRunReport_PrintsSummaryAndTop(t *testing.T) {
	path := writeFile(t, "results.txt", resultFile)
	var out bytes.Buffer

	require.NoError(t, runReport(path, report.ParseOptions{}, 1, &out))

	got := out.String()
	assert.Contains(t, got, "Found 3 configurations")
	assert.Contains(t, got, "Valid configurations: 2")
	assert.Contains(t, got, "Best per-GPU rate: 3.00 req/s/GPU")
	assert.Contains(t, got, "Config: (1,1,1,2,1,3)")
	assert.Contains(t, got, "Mean per-GPU rate: 2.50 req/s/GPU")
	assert.Contains(t, got, "(1,1,1,2,1,3)  3.00")
	assert.NotContains(t, got, "(1,1,1,1,1,2)  2.00")
}

func TestRunReport_StrictDropsRestOfBlock(t *testing.T) {
	// GIVEN the result file followed by a second, clean run
	second := "Namespace(backend='vllm', num_node=1)\n" + report.MonolithicHeader + "\n2\t1\t2\t1.00\t2.00\n"
	path := writeFile(t, "results.txt", resultFile+"\n"+second)
	var out bytes.Buffer

	// WHEN summarized strictly
	require.NoError(t, runReport(path, report.ParseOptions{Policy: report.Strict}, 0, &out))

	// THEN the first block stops at the error line and the second is still read
	got := out.String()
	assert.Contains(t, got, "Blocks cut short by malformed lines: 1")
	assert.Contains(t, got, "Found 2 configurations")
	assert.Contains(t, got, "Best per-GPU rate: 2.00 req/s/GPU")
	assert.Contains(t, got, "(2,1,2)")
}

func TestRunReport_NoValidRows(t *testing.T) {
	path := writeFile(t, "results.txt", "Namespace()\n"+report.MonolithicHeader+"\n1\t1\t1\t0.00\t0.00\n")
	var out bytes.Buffer
	require.NoError(t, runReport(path, report.ParseOptions{}, 0, &out))
	assert.Contains(t, out.String(), "No valid configurations found!")
}

func TestRunReport_MissingFile(t *testing.T) {
	assert.Error(t, runReport("/nonexistent/results.txt", report.ParseOptions{}, 0, &bytes.Buffer{}))
}

func TestListModels(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, listModels(sim.DefaultModels(), sim.DefaultHardware(), &out))

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 4)
	assert.Contains(t, string(lines[1]), "opt_13b")
	assert.Equal(t, 1, minGPUs(sim.DefaultModels()["opt_13b"], sim.DefaultHardware()))
	assert.Equal(t, 2, minGPUs(sim.DefaultModels()["opt_66b"], sim.DefaultHardware()))
	assert.Equal(t, 5, minGPUs(sim.DefaultModels()["opt_175b"], sim.DefaultHardware()))
}
