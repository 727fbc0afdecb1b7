package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventHeap_OrdersByTimestampThenTypeThenID(t *testing.T) {
	h := NewEventHeap()
	h.Schedule(&arrivalEvent{baseEvent: baseEvent{timestamp: 10, eventID: 1, eventType: EventRequestArrival}})
	h.Schedule(&decodeStepDoneEvent{baseEvent: baseEvent{timestamp: 10, eventID: 2, eventType: EventDecodeStepDone}})
	h.Schedule(&arrivalEvent{baseEvent: baseEvent{timestamp: 5, eventID: 3, eventType: EventRequestArrival}})
	h.Schedule(&decodeStepDoneEvent{baseEvent: baseEvent{timestamp: 10, eventID: 0, eventType: EventDecodeStepDone}})

	var got []uint64
	for h.Len() > 0 {
		got = append(got, h.PopNext().EventID())
	}
	// 5 first, then at t=10 step completions (IDs 0, 2) before the arrival
	assert.Equal(t, []uint64{3, 0, 2, 1}, got)
}

func TestEventHeap_PopNextEmpty(t *testing.T) {
	h := NewEventHeap()
	require.Equal(t, 0, h.Len())
	assert.Nil(t, h.PopNext())
}

func TestEventHeap_SameTick_FollowsRequestLifecycle(t *testing.T) {
	// GIVEN one event of every type at the same tick, scheduled in reverse order
	h := NewEventHeap()
	h.Schedule(&arrivalEvent{baseEvent: baseEvent{timestamp: 7, eventID: 1, eventType: EventRequestArrival}})
	h.Schedule(&decodeArrivalEvent{baseEvent: baseEvent{timestamp: 7, eventID: 2, eventType: EventDecodeArrival}})
	h.Schedule(&prefillFreeEvent{baseEvent: baseEvent{timestamp: 7, eventID: 3, eventType: EventPrefillFree}})
	h.Schedule(&prefillDoneEvent{baseEvent: baseEvent{timestamp: 7, eventID: 4, eventType: EventPrefillDone}})
	h.Schedule(&decodeStepDoneEvent{baseEvent: baseEvent{timestamp: 7, eventID: 5, eventType: EventDecodeStepDone}})

	// THEN step completions free capacity first and new arrivals come last
	var got []EventType
	for h.Len() > 0 {
		got = append(got, h.PopNext().Type())
	}
	assert.Equal(t, []EventType{
		EventDecodeStepDone, EventPrefillDone, EventPrefillFree, EventDecodeArrival, EventRequestArrival,
	}, got)
}
