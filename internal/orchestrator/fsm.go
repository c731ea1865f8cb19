package orchestrator

import (
	"context"

	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

// Coordinator lifecycle states. The machine is internal bookkeeping for
// logging and the status report; the PLC-visible semantics live in the
// control words owned by the status tracker.
const (
	stateIdle            = "idle"
	stateAwaitingTrigger = "awaiting_trigger"
	stateRunningDownload = "running_download"
	stateRunningLoad     = "running_load"
	stateRecovering      = "recovering"
)

const (
	eventStart           = "start"
	eventTriggerDownload = "trigger_download"
	eventTriggerLoad     = "trigger_load"
	eventOperationDone   = "operation_done"
	eventOperationFailed = "operation_failed"
	eventRecovered       = "recovered"
)

func newLifecycleFSM(logger *zap.Logger) *fsm.FSM {
	return fsm.NewFSM(
		stateIdle,
		fsm.Events{
			{Name: eventStart, Src: []string{stateIdle}, Dst: stateAwaitingTrigger},
			{Name: eventTriggerDownload, Src: []string{stateAwaitingTrigger}, Dst: stateRunningDownload},
			{Name: eventTriggerLoad, Src: []string{stateAwaitingTrigger}, Dst: stateRunningLoad},
			{Name: eventOperationDone, Src: []string{stateRunningDownload, stateRunningLoad}, Dst: stateAwaitingTrigger},
			{Name: eventOperationFailed, Src: []string{stateRunningDownload, stateRunningLoad}, Dst: stateRecovering},
			{Name: eventRecovered, Src: []string{stateRecovering}, Dst: stateAwaitingTrigger},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				logger.Debug("Coordinator lifecycle transition",
					zap.String("from", e.Src),
					zap.String("to", e.Dst),
					zap.String("event", e.Event))
			},
		},
	)
}
