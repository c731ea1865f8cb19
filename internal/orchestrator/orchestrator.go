package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/KevinKickass/OpenBatchCore/internal/api/websocket"
	"github.com/KevinKickass/OpenBatchCore/internal/batch"
	"github.com/KevinKickass/OpenBatchCore/internal/metrics"
	"github.com/KevinKickass/OpenBatchCore/internal/registers"
	"github.com/KevinKickass/OpenBatchCore/internal/status"
	"github.com/KevinKickass/OpenBatchCore/internal/types"
	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

// ErrOperationInProgress is returned when a maintenance request arrives
// while a trigger operation holds the guard.
var ErrOperationInProgress = errors.New("an operation is in progress")

// Fetcher pulls raw batch entries from the production data source.
type Fetcher interface {
	FetchRawBatches(ctx context.Context) ([]map[string]any, error)
}

// Printer delivers one prepared command set to every printhead.
type Printer interface {
	SendToAll(ctx context.Context, commands []string) error
}

// RegisterClient is the PLC word bus plus connection management.
type RegisterClient interface {
	status.RegisterBus
	EnsureConnected() error
}

// BatchSlot pairs a decoded batch with its 1-based slot position.
type BatchSlot struct {
	Slot    int               `json:"slot"`
	Present bool              `json:"present"`
	Record  types.BatchRecord `json:"record"`
}

// Status is the orchestrator part of the system report.
type Status struct {
	State          string    `json:"state"`
	Running        bool      `json:"running"`
	StartedAt      time.Time `json:"startedAt"`
	LastTrigger    uint16    `json:"lastTrigger"`
	OperationCount int       `json:"operationCount"`
	ErrorCount     int       `json:"errorCount"`
}

// Orchestrator drives the trigger state machine: it polls the trigger
// word, runs at most one operation at a time and is the only writer of
// PLC registers in the process.
type Orchestrator struct {
	logger     *zap.Logger
	bus        RegisterClient
	tracker    *status.Tracker
	fetcher    Fetcher
	printheads Printer
	wsHub      *websocket.Hub

	codec  *registers.Codec
	parser *batch.Parser

	pollInterval time.Duration
	machine      *fsm.FSM
	history      *historyRing

	// busy guards operation execution against concurrent maintenance
	// resets; the poll loop itself is single-threaded.
	busy sync.Mutex

	mu          sync.RWMutex
	running     bool
	startedAt   time.Time
	lastTrigger status.Trigger
	opCount     int
	errCount    int
	lastGood    []BatchSlot
}

func New(
	logger *zap.Logger,
	bus RegisterClient,
	tracker *status.Tracker,
	fetcher Fetcher,
	printheads Printer,
	wsHub *websocket.Hub,
	pollInterval time.Duration,
) *Orchestrator {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	return &Orchestrator{
		logger:       logger,
		bus:          bus,
		tracker:      tracker,
		fetcher:      fetcher,
		printheads:   printheads,
		wsHub:        wsHub,
		codec:        registers.NewCodec(logger),
		parser:       batch.NewParser(logger),
		pollInterval: pollInterval,
		machine:      newLifecycleFSM(logger),
		history:      &historyRing{},
	}
}

// Run blocks until ctx is cancelled, polling the trigger word and
// dispatching operations on value edges. After a failed operation the
// loop backs off before polling again so a broken collaborator does not
// busy-loop.
func (o *Orchestrator) Run(ctx context.Context) {
	o.mu.Lock()
	o.running = true
	o.startedAt = time.Now()
	o.mu.Unlock()

	o.fireEvent(ctx, eventStart)
	o.logger.Info("Operation loop started",
		zap.Duration("poll_interval", o.pollInterval))

	for {
		select {
		case <-ctx.Done():
			o.stop()
			return
		default:
		}

		delay := o.tick(ctx)

		select {
		case <-ctx.Done():
			o.stop()
			return
		case <-time.After(delay):
		}
	}
}

func (o *Orchestrator) stop() {
	o.mu.Lock()
	o.running = false
	o.mu.Unlock()
	o.logger.Info("Operation loop stopped")
}

// tick reads the trigger word once and dispatches when its value differs
// from the last observed one. The returned duration is the sleep before
// the next tick.
func (o *Orchestrator) tick(ctx context.Context) time.Duration {
	trigger, err := o.tracker.ReadTrigger()
	if err != nil {
		o.logger.Warn("Trigger poll failed", zap.Error(err))
		return o.pollInterval * 2
	}

	o.mu.Lock()
	last := o.lastTrigger
	o.lastTrigger = trigger
	o.mu.Unlock()

	if trigger == last {
		return o.pollInterval
	}

	switch trigger {
	case status.TriggerDownloadBatch:
		return o.dispatch(ctx, eventTriggerDownload, OpDownloadBatch, o.runDownload)
	case status.TriggerLoadToPrinter:
		return o.dispatch(ctx, eventTriggerLoad, OpLoadToPrinter, o.runLoadToPrinter)
	case status.TriggerIdle:
		return o.pollInterval
	default:
		o.logger.Warn("Ignoring unknown trigger value",
			zap.Uint16("trigger", uint16(trigger)))
		return o.pollInterval
	}
}

// dispatch runs one operation under the guard and settles its outcome:
// log lines, metrics, history entry, websocket events and the backoff
// for the next tick.
func (o *Orchestrator) dispatch(
	ctx context.Context,
	event string,
	opType string,
	run func(ctx context.Context, rec *OperationRecord) error,
) time.Duration {
	if !o.busy.TryLock() {
		// A maintenance reset holds the guard; the trigger edge is
		// re-evaluated on the next tick.
		o.mu.Lock()
		o.lastTrigger = status.TriggerIdle
		o.mu.Unlock()
		return o.pollInterval
	}
	defer o.busy.Unlock()

	o.fireEvent(ctx, event)

	rec := OperationRecord{
		ID:        uuid.New(),
		Type:      opType,
		StartedAt: time.Now(),
	}
	o.logger.Info("Operation started",
		zap.String("operation", opType),
		zap.String("operation_id", rec.ID.String()))
	o.publish(websocket.NewOperationMessage(
		websocket.MessageTypeOperationStarted, rec.ID.String(), opType, "running", "", 0))

	err := run(ctx, &rec)

	elapsed := time.Since(rec.StartedAt)
	rec.DurationMs = elapsed.Milliseconds()
	metrics.OperationDuration.WithLabelValues(opType).Observe(elapsed.Seconds())

	if err != nil {
		rec.Outcome = outcomeFailure
		rec.Error = err.Error()
		o.settle(rec, true)
		metrics.OperationsTotal.WithLabelValues(opType, outcomeFailure).Inc()

		o.logger.Error("Operation failed",
			zap.String("operation", opType),
			zap.String("operation_id", rec.ID.String()),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		o.publish(websocket.NewOperationMessage(
			websocket.MessageTypeOperationFailed, rec.ID.String(), opType, "failed", err.Error(), rec.BatchIndex))

		o.fireEvent(ctx, eventOperationFailed)
		o.fireEvent(ctx, eventRecovered)

		if _, typed := types.FailureKindOf(err); typed {
			return o.pollInterval * 3
		}
		return o.pollInterval * 2
	}

	rec.Outcome = outcomeSuccess
	o.settle(rec, false)
	metrics.OperationsTotal.WithLabelValues(opType, outcomeSuccess).Inc()

	o.logger.Info("Operation completed",
		zap.String("operation", opType),
		zap.String("operation_id", rec.ID.String()),
		zap.Duration("elapsed", elapsed))
	o.publish(websocket.NewOperationMessage(
		websocket.MessageTypeOperationCompleted, rec.ID.String(), opType, "completed", "", rec.BatchIndex))

	o.fireEvent(ctx, eventOperationDone)
	return o.pollInterval
}

func (o *Orchestrator) settle(rec OperationRecord, failed bool) {
	o.history.Add(rec)

	o.mu.Lock()
	o.opCount++
	if failed {
		o.errCount++
	}
	o.mu.Unlock()
}

// fireEvent advances the lifecycle machine. A rejected event is a
// bookkeeping gap, not an operational fault.
func (o *Orchestrator) fireEvent(ctx context.Context, event string) {
	if err := o.machine.Event(ctx, event); err != nil {
		o.logger.Debug("Lifecycle event rejected",
			zap.String("event", event),
			zap.Error(err))
	}
}

func (o *Orchestrator) publish(msg websocket.Message) {
	if o.wsHub != nil {
		o.wsHub.Broadcast(msg)
	}
}

// recordOperationFailure writes the error surface exactly once: the
// mapped error code, then processing state Error. Both writes are best
// effort, the PLC may be the thing that failed.
func (o *Orchestrator) recordOperationFailure(code status.ErrorCode) {
	if err := o.tracker.SetErrorCode(code); err != nil {
		o.logger.Warn("Error code write failed",
			zap.String("code", code.String()),
			zap.Error(err))
	}
	if err := o.tracker.Transition(status.StateError, true); err != nil {
		o.logger.Warn("Error state write failed", zap.Error(err))
	}
}

// ResetSystemState performs the maintenance reset: all coordinator-owned
// control words back to idle. Rejected while an operation is running.
func (o *Orchestrator) ResetSystemState() error {
	if !o.busy.TryLock() {
		return ErrOperationInProgress
	}
	defer o.busy.Unlock()

	if err := o.bus.EnsureConnected(); err != nil {
		return err
	}
	if err := o.tracker.ResetSystemState(); err != nil {
		return err
	}

	o.mu.Lock()
	o.lastTrigger = status.TriggerIdle
	o.mu.Unlock()

	o.logger.Info("System state reset")
	o.publish(websocket.NewSystemResetMessage("maintenance"))
	return nil
}

// Status reports the orchestrator side of the system report.
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return Status{
		State:          o.machine.Current(),
		Running:        o.running,
		StartedAt:      o.startedAt,
		LastTrigger:    uint16(o.lastTrigger),
		OperationCount: o.opCount,
		ErrorCount:     o.errCount,
	}
}

// History returns the retained operation records, newest first.
func (o *Orchestrator) History() []OperationRecord {
	return o.history.List()
}

// LastKnownBatches returns the batch set written by the most recent
// successful download.
func (o *Orchestrator) LastKnownBatches() []BatchSlot {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]BatchSlot, len(o.lastGood))
	copy(out, o.lastGood)
	return out
}

// LiveBatches reads and decodes the full register image. Reads are safe
// next to a running operation, the bus serializes access.
func (o *Orchestrator) LiveBatches() ([]BatchSlot, error) {
	words, err := o.bus.ReadWords(registers.AddrTrigger, registers.ImageWords)
	if err != nil {
		return nil, err
	}

	slots, err := o.codec.DecodeImage(words)
	if err != nil {
		return nil, err
	}
	return toBatchSlots(slots), nil
}

func toBatchSlots(slots []registers.Slot) []BatchSlot {
	out := make([]BatchSlot, len(slots))
	for i, s := range slots {
		out[i] = BatchSlot{Slot: i + 1, Present: s.Present, Record: s.Record}
	}
	return out
}

func (o *Orchestrator) rememberBatches(records []types.BatchRecord) {
	slots := make([]BatchSlot, len(records))
	for i, rec := range records {
		slots[i] = BatchSlot{Slot: i + 1, Present: !rec.IsEmpty(), Record: rec}
	}

	o.mu.Lock()
	o.lastGood = slots
	o.mu.Unlock()
}

func checkCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
