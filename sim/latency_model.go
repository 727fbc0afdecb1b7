package sim

import "math"

// StageLatency estimates execution times for one stage instance of TP x PP GPUs.
// All returned times are in microseconds (ticks).
type StageLatency struct {
	coeffs StageCoeffs
	tp     int
	pp     int
	hw     Hardware
}

// NewStageLatency builds the latency model for a stage with the given degrees.
func NewStageLatency(coeffs StageCoeffs, tp, pp int, hw Hardware) StageLatency {
	return StageLatency{coeffs: coeffs, tp: tp, pp: pp, hw: hw}
}

// tpScale divides single-GPU time across TP ranks and charges the
// all-reduce overhead for every extra rank.
func (s StageLatency) tpScale(ms float64) float64 {
	return ms / float64(s.tp) * (1 + s.hw.TPOverhead*float64(s.tp-1))
}

func (s StageLatency) hops() float64 {
	return s.hw.PPHopMs * float64(s.pp-1)
}

// Prefill returns the latency of a prefill batch (first token available) and
// how long the first pipeline stage stays busy before it can take the next batch.
func (s StageLatency) Prefill(promptLens []int) (latency, busy int64) {
	var sum, sumSq float64
	for _, l := range promptLens {
		sum += float64(l)
		sumSq += float64(l) * float64(l)
	}
	compute := s.tpScale(s.coeffs.Alpha + s.coeffs.Beta*sum + s.coeffs.Gamma*sumSq)
	latency = msToTicks(compute + s.hops())
	busy = msToTicks(compute / float64(s.pp))
	if s.pp > 1 {
		busy += msToTicks(s.hw.PPHopMs)
	}
	return latency, busy
}

// DecodeStep returns the time for every running request to produce one token.
// The batch is split into PP micro-batches that stream through the pipeline.
func (s StageLatency) DecodeStep(batchSize int, contextTokens int64) int64 {
	if batchSize == 0 {
		return 0
	}
	micro := math.Ceil(float64(batchSize) / float64(s.pp))
	ctx := float64(contextTokens) / float64(s.pp)
	compute := s.tpScale(s.coeffs.Alpha + s.coeffs.Beta*micro + s.coeffs.Gamma*ctx)
	return msToTicks(compute + s.hops())
}

// KVCapacityTokens is how many KV tokens fit next to this stage's weight shard.
// Returns 0 when the weights alone do not fit.
func KVCapacityTokens(m Model, hw Hardware, gpus int) int64 {
	memory := hw.GPUMemoryGB * 1e9 * hw.MemoryUtilization * float64(gpus)
	free := memory - m.WeightBytes()
	if free <= 0 {
		return 0
	}
	return int64(free / m.KVBytesPerToken())
}

// KVTransferTime is the prefill-to-decode migration time for a prompt.
func KVTransferTime(m Model, hw Hardware, promptLen int) int64 {
	if hw.KVTransferGBps <= 0 {
		return 0
	}
	seconds := m.KVBytesPerToken() * float64(promptLen) / (hw.KVTransferGBps * 1e9)
	return int64(math.Ceil(seconds * 1e6))
}

func msToTicks(ms float64) int64 {
	t := int64(math.Ceil(ms * 1000))
	if t < 1 {
		return 1
	}
	return t
}
