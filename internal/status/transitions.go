package status

import "fmt"

// ValidateTransition checks a processing-state change against the allowed
// transition table. Operations use it to catch sequencing bugs before
// they reach the registers; recovery paths bypass it with force.
func ValidateTransition(from, to ProcessingState) error {
	validTransitions := map[ProcessingState][]ProcessingState{
		StateIdle:             {StateDownloading, StateSendingToPrinter},
		StateDownloading:      {StateProcessingData, StateError},
		StateProcessingData:   {StateReadyToSend, StateError},
		StateReadyToSend:      {StateSendingToPrinter, StateComplete},
		StateSendingToPrinter: {StateComplete, StateError},
		StateComplete:         {StateIdle},
		StateError:            {StateIdle},
	}

	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("invalid current state: %s", from)
	}

	for _, validTo := range allowed {
		if validTo == to {
			return nil
		}
	}

	return fmt.Errorf("invalid state transition: %s -> %s", from, to)
}
