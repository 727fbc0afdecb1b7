package sim

import "container/heap"

// EventHeap is the simulator's pending-event queue.
//
// Events pop by timestamp, then EventType, then scheduling order (EventID).
// At a shared tick the EventType order runs decode step completions first, so
// finished requests release KV cache before anything else is admitted; then
// prefill batch results and prefill instances going idle; then KV hand-offs
// reaching a decode instance; and new request arrivals last. Two probes with
// the same seed therefore replay the same event sequence.
type EventHeap struct {
	q eventQueue
}

// NewEventHeap returns an empty queue.
func NewEventHeap() *EventHeap {
	return &EventHeap{}
}

// Len is the number of pending events.
func (h *EventHeap) Len() int { return len(h.q) }

// Schedule adds e to the queue.
func (h *EventHeap) Schedule(e Event) {
	heap.Push(&h.q, e)
}

// PopNext removes and returns the earliest event, or nil when empty.
func (h *EventHeap) PopNext() Event {
	if len(h.q) == 0 {
		return nil
	}
	return heap.Pop(&h.q).(Event)
}

// eventQueue implements heap.Interface.
type eventQueue []Event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	a, b := q[i], q[j]
	switch {
	case a.Timestamp() != b.Timestamp():
		return a.Timestamp() < b.Timestamp()
	case a.Type() != b.Type():
		return a.Type() < b.Type()
	default:
		return a.EventID() < b.EventID()
	}
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) { *q = append(*q, x.(Event)) }

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}
