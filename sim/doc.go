// Package sim provides the domain types and the default feasibility oracle
// for the prefill/decode configuration search.
//
// # Reading Guide
//
//   - config.go: Topology, AttainmentTarget and the two Configuration shapes
//     (Disaggregated for DistServe, Monolithic for vLLM)
//   - model_config.go: model descriptors, hardware constants, the model registry
//   - latency_model.go: stage step times, KV capacity and KV transfer time
//   - simulator.go: the discrete-event model of one configuration
//   - event.go, event_heap.go: simulator events and their deterministic ordering
//   - metrics.go: latency distributions and SLO attainment
//   - oracle.go: Oracle, which samples a workload, runs a Simulator and scores
//     the SLO attainment of one probe
//
// # Architecture
//
// Sub-packages build on these types:
//   - sim/workload/: dataset loading and arrival processes
//   - sim/search/: enumeration, rate bisection and the concurrent coordinator
//   - sim/report/: the tabular result format, its re-ingestion parser and summaries
package sim
