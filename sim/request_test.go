package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequest_LatenciesUnsetUntilServed(t *testing.T) {
	r := NewRequest(0, 1000, 128, 8)
	assert.Equal(t, StateQueued, r.State)
	_, ok := r.TTFT()
	assert.False(t, ok)
	_, ok = r.TPOT()
	assert.False(t, ok)
	assert.Equal(t, int64(136), r.KVTokens())
}

func TestRequest_TTFTAndTPOT(t *testing.T) {
	r := NewRequest(0, 1000, 128, 5)
	r.FirstTokenTime = 21000
	r.CompletionTime = 61000
	r.State = StateCompleted

	ttft, ok := r.TTFT()
	assert.True(t, ok)
	assert.Equal(t, int64(20000), ttft)
	tpot, ok := r.TPOT()
	assert.True(t, ok)
	// 40000us over the 4 tokens after the first
	assert.Equal(t, 10000.0, tpot)
}

func TestRequest_SingleTokenTPOTIsZero(t *testing.T) {
	r := NewRequest(0, 0, 64, 1)
	r.FirstTokenTime, r.CompletionTime, r.State = 500, 500, StateCompleted
	tpot, ok := r.TPOT()
	assert.True(t, ok)
	assert.Equal(t, 0.0, tpot)
}
