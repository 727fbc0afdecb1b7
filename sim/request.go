package sim

import "fmt"

// RequestState represents the lifecycle state of a simulated request.
type RequestState string

const (
	StateQueued    RequestState = "queued"
	StateRunning   RequestState = "running"
	StateCompleted RequestState = "completed"
	// StateDropped marks a request whose KV footprint can never fit its instance.
	StateDropped RequestState = "dropped"
)

// Request is one simulated inference request. Times are in ticks (µs).
type Request struct {
	ID        int
	PromptLen int
	OutputLen int

	State          RequestState
	ArrivalTime    int64
	FirstTokenTime int64 // -1 until the prefill completes
	CompletionTime int64 // -1 until the last token is produced
	Generated      int   // output tokens produced so far
}

// NewRequest creates a queued request.
func NewRequest(id int, arrival int64, promptLen, outputLen int) *Request {
	return &Request{
		ID:             id,
		PromptLen:      promptLen,
		OutputLen:      outputLen,
		State:          StateQueued,
		ArrivalTime:    arrival,
		FirstTokenTime: -1,
		CompletionTime: -1,
	}
}

// KVTokens is the KV cache reservation needed to finish the request.
func (r *Request) KVTokens() int64 {
	return int64(r.PromptLen + r.OutputLen)
}

// ContextLen is the number of tokens currently held in KV cache.
func (r *Request) ContextLen() int64 {
	return int64(r.PromptLen + r.Generated)
}

// TTFT returns time to first token in ticks, and false if no token was produced.
func (r *Request) TTFT() (int64, bool) {
	if r.FirstTokenTime < 0 {
		return 0, false
	}
	return r.FirstTokenTime - r.ArrivalTime, true
}

// TPOT returns the mean time per output token after the first, in ticks.
// Single-token requests have a TPOT of 0.
func (r *Request) TPOT() (float64, bool) {
	if r.State != StateCompleted {
		return 0, false
	}
	if r.OutputLen <= 1 {
		return 0, true
	}
	return float64(r.CompletionTime-r.FirstTokenTime) / float64(r.OutputLen-1), true
}

func (r *Request) String() string {
	return fmt.Sprintf("Request: (ID: %d, State: %s, Prompt: %d, Output: %d, Arrival: %d)", r.ID, r.State, r.PromptLen, r.OutputLen, r.ArrivalTime)
}
