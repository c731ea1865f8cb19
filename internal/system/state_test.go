package system

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemState_String(t *testing.T) {
	assert.Equal(t, "INITIALIZING", StateInitializing.String())
	assert.Equal(t, "RUNNING", StateRunning.String())
	assert.Equal(t, "STOPPED", StateStopped.String())
	assert.Equal(t, "UNKNOWN", SystemState(42).String())
}

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		name string
		from SystemState
		to   SystemState
		ok   bool
	}{
		{"initializing to running", StateInitializing, StateRunning, true},
		{"initializing to error", StateInitializing, StateError, true},
		{"running to stopping", StateRunning, StateStopping, true},
		{"stopping to stopped", StateStopping, StateStopped, true},
		{"stopped back to initializing", StateStopped, StateInitializing, true},
		{"error to stopped", StateError, StateStopped, true},
		{"self transition", StateRunning, StateRunning, true},
		{"stopped straight to running", StateStopped, StateRunning, false},
		{"running back to initializing", StateRunning, StateInitializing, false},
		{"stopping back to running", StateStopping, StateRunning, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to)
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}
