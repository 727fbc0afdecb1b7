package sim

// EventType orders simultaneous events: lower values run first.
type EventType int

const (
	// Completions free capacity before new work is admitted at the same tick.
	EventDecodeStepDone EventType = iota
	EventPrefillDone
	EventPrefillFree
	EventDecodeArrival
	EventRequestArrival
)

// Event is one scheduled state change of a Simulator.
type Event interface {
	Timestamp() int64
	EventID() uint64
	Type() EventType
	Execute(s *Simulator)
}

type baseEvent struct {
	timestamp int64
	eventID   uint64
	eventType EventType
}

func (e *baseEvent) Timestamp() int64 { return e.timestamp }
func (e *baseEvent) EventID() uint64  { return e.eventID }
func (e *baseEvent) Type() EventType  { return e.eventType }

// arrivalEvent delivers a request to the cluster.
type arrivalEvent struct {
	baseEvent
	req *Request
}

func (e *arrivalEvent) Execute(s *Simulator) { s.handleArrival(e.timestamp, e.req) }

// prefillFreeEvent releases a prefill instance's first pipeline stage.
type prefillFreeEvent struct {
	baseEvent
	instance int
}

func (e *prefillFreeEvent) Execute(s *Simulator) { s.handlePrefillFree(e.timestamp, e.instance) }

// prefillDoneEvent marks a prefill batch's first tokens as produced.
type prefillDoneEvent struct {
	baseEvent
	instance int
	batch    []*Request
}

func (e *prefillDoneEvent) Execute(s *Simulator) { s.handlePrefillDone(e.timestamp, e.instance, e.batch) }

// decodeArrivalEvent hands a prefilled request to a decode instance after KV transfer.
type decodeArrivalEvent struct {
	baseEvent
	instance int
	req      *Request
}

func (e *decodeArrivalEvent) Execute(s *Simulator) { s.handleDecodeArrival(e.timestamp, e.instance, e.req) }

// decodeStepDoneEvent ends one decode (or colocated) iteration.
type decodeStepDoneEvent struct {
	baseEvent
	instance int
	prefill  []*Request // non-empty when a colocated instance ran a prefill batch
}

func (e *decodeStepDoneEvent) Execute(s *Simulator) {
	s.handleStepDone(e.timestamp, e.instance, e.prefill)
}
