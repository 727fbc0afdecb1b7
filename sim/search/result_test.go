package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/pdsearch/sim"
)

func entry(i int, cfg sim.Configuration, status Status, rate float64) Entry {
	return Entry{Index: i, Config: cfg, Status: status, Rate: rate}
}

func TestResult_Best_TieBreaksOnGPUsThenOrder(t *testing.T) {
	// GIVEN three configurations with the same rate
	res := NewResult("run", sim.BackendMonolithic, []Entry{
		entry(0, sim.Monolithic{TP: 1, PP: 2}, StatusFeasible, 1.5),
		entry(1, sim.Monolithic{TP: 1, PP: 1}, StatusFeasible, 1.5),
		entry(2, sim.Monolithic{TP: 2, PP: 1}, StatusFeasible, 1.5),
		entry(3, sim.Monolithic{TP: 4, PP: 1}, StatusInfeasible, 0),
	})

	// THEN the single-GPU configuration wins, then the earlier of the 2-GPU pair
	best, ok := res.Best()
	require.True(t, ok)
	assert.Equal(t, sim.Monolithic{TP: 1, PP: 1}, best.Config)
	ranked := res.RankByRate()
	assert.Equal(t, []int{1, 0, 2, 3}, []int{ranked[0].Index, ranked[1].Index, ranked[2].Index, ranked[3].Index})
}

func TestResult_BestThroughput_PrefersTotalRate(t *testing.T) {
	res := NewResult("run", sim.BackendMonolithic, []Entry{
		entry(0, sim.Monolithic{TP: 1, PP: 1}, StatusFeasible, 2.0),
		entry(1, sim.Monolithic{TP: 4, PP: 1}, StatusFeasible, 1.0),
	})

	best, _ := res.Best()
	assert.Equal(t, 0, best.Index)
	top, ok := res.BestThroughput()
	require.True(t, ok)
	assert.Equal(t, 1, top.Index)
	assert.Equal(t, 4.0, top.TotalThroughput())
}

func TestResult_CountsAndValid(t *testing.T) {
	res := NewResult("run", sim.BackendMonolithic, []Entry{
		entry(0, sim.Monolithic{TP: 1, PP: 1}, StatusFeasible, 2.0),
		entry(1, sim.Monolithic{TP: 1, PP: 2}, StatusInfeasible, 0),
		entry(2, sim.Monolithic{TP: 2, PP: 1}, StatusFailed, 0),
		entry(3, sim.Monolithic{TP: 2, PP: 2}, StatusInterrupted, 0.5),
		entry(4, sim.Monolithic{TP: 4, PP: 1}, StatusSkipped, 0),
	})

	assert.Equal(t, Counts{Feasible: 1, Infeasible: 1, Failed: 1, Interrupted: 1, Skipped: 1}, res.Counts())
	valid := res.Valid()
	require.Len(t, valid, 2)
	assert.Equal(t, 0, valid[0].Index)
	assert.Equal(t, 3, valid[1].Index)
	_, ok := res.Lookup(sim.Monolithic{TP: 3, PP: 1})
	assert.False(t, ok)
}

func TestResult_EntriesIsACopy(t *testing.T) {
	res := NewResult("run", sim.BackendMonolithic, []Entry{entry(0, sim.Monolithic{TP: 1, PP: 1}, StatusFeasible, 2.0)})
	got := res.Entries()
	got[0].Rate = 99
	e, _ := res.Lookup(sim.Monolithic{TP: 1, PP: 1})
	assert.Equal(t, 2.0, e.Rate)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "interrupted", StatusInterrupted.String())
	assert.Equal(t, "unknown", Status(42).String())
}
