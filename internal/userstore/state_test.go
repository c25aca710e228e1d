package userstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateCell_CompareAndSwap(t *testing.T) {
	c := newStateCell()
	assert.Equal(t, StateInitialized, c.Load())

	assert.True(t, c.CompareAndSwap(StateInitialized, StateStarting))
	assert.Equal(t, StateStarting, c.Load())

	assert.False(t, c.CompareAndSwap(StateInitialized, StateStarted))
	assert.Equal(t, StateStarting, c.Load())
}

func TestState_String(t *testing.T) {
	cases := map[State]string{
		StateInitialized: "INITIALIZED",
		StateStarting:    "STARTING",
		StateStarted:     "STARTED",
		StateStopping:    "STOPPING",
		StateStopped:     "STOPPED",
		StateFailed:      "FAILED",
		State(99):        "UNKNOWN",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}
