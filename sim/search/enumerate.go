package search

import "github.com/inference-sim/pdsearch/sim"

// Enumerate lists every configuration of backend that fits topo, in a fixed
// lexicographic order over the parallelism degrees. Under high affinity no
// stage replica may span more than one node. An invalid topology, or one
// where nothing fits, yields an empty slice.
func Enumerate(topo sim.Topology, backend sim.Backend) []sim.Configuration {
	if topo.Validate() != nil {
		return nil
	}
	switch backend {
	case sim.BackendMonolithic:
		return enumerateMonolithic(topo)
	case sim.BackendDisaggregated:
		return enumerateDisaggregated(topo)
	default:
		return nil
	}
}

func enumerateMonolithic(topo sim.Topology) []sim.Configuration {
	budget := topo.Budget()
	var out []sim.Configuration
	for tp := 1; tp <= budget; tp++ {
		if topo.HighAffinity && tp > topo.GPUsPerNode {
			break
		}
		for pp := 1; tp*pp <= budget; pp++ {
			out = append(out, sim.Monolithic{TP: tp, PP: pp})
		}
	}
	return out
}

func enumerateDisaggregated(topo sim.Topology) []sim.Configuration {
	budget := topo.Budget()
	fits := func(footprint int) bool {
		return !topo.HighAffinity || footprint <= topo.GPUsPerNode
	}
	var out []sim.Configuration
	// Each replica needs at least one prefill and one decode GPU.
	for ppCross := 1; 2*ppCross <= budget; ppCross++ {
		perReplica := budget / ppCross
		for tpP := 1; tpP < perReplica; tpP++ {
			for ppP := 1; tpP*ppP < perReplica && fits(tpP*ppP); ppP++ {
				room := perReplica - tpP*ppP
				for tpD := 1; tpD <= room; tpD++ {
					for ppD := 1; tpD*ppD <= room && fits(tpD*ppD); ppD++ {
						out = append(out, sim.Disaggregated{
							PPCross: ppCross, TPPrefill: tpP, PPPrefill: ppP, TPDecode: tpD, PPDecode: ppD,
						})
					}
				}
			}
		}
	}
	return out
}
