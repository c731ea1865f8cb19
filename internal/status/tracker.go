package status

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/KevinKickass/OpenBatchCore/internal/registers"
)

// RegisterBus is the synchronous word-level access the tracker needs.
// Addressing is 1-based over the 120-word image. Implementations must be
// safe for use from the operation loop and the monitor concurrently.
type RegisterBus interface {
	ReadWords(start, count int) ([]uint16, error)
	WriteWords(start int, words []uint16) error
}

// Snapshot is one consistent view of the control words.
type Snapshot struct {
	Trigger         Trigger         `json:"trigger"`
	ProcessingState ProcessingState `json:"processingState"`
	ControllerState ControllerState `json:"controllerState"`
	PrinterState    PrinterState    `json:"printerState"`
	ErrorCode       ErrorCode       `json:"errorCode"`
	SelectedBatch   uint16          `json:"selectedBatch"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// ChangeEvent reports one control word changing value.
type ChangeEvent struct {
	Field     string    `json:"field"`
	Previous  uint16    `json:"previous"`
	Current   uint16    `json:"current"`
	Readable  string    `json:"readable"`
	Timestamp time.Time `json:"timestamp"`
}

// Tracker owns the control words (1-9) of the register image. All state
// writes go through it so the in-memory mirror, the subscribers and the
// PLC never disagree for longer than one failed write.
type Tracker struct {
	bus    RegisterBus
	logger *zap.Logger

	stateMu sync.RWMutex
	mirror  Snapshot
	primed  bool

	listenersMu sync.RWMutex
	listeners   []chan ChangeEvent
}

func NewTracker(bus RegisterBus, logger *zap.Logger) *Tracker {
	return &Tracker{
		bus:       bus,
		logger:    logger,
		listeners: make([]chan ChangeEvent, 0),
	}
}

// Read pulls all control words in one bus call, refreshes the mirror and
// emits a change event per word that differs from the previous mirror.
// The first read after startup primes the mirror silently.
func (t *Tracker) Read() (Snapshot, error) {
	count := registers.AddrSelectedBatch - registers.AddrTrigger + 1
	words, err := t.bus.ReadWords(registers.AddrTrigger, count)
	if err != nil {
		return Snapshot{}, err
	}

	now := time.Now()
	snap := Snapshot{
		Trigger:         Trigger(words[registers.AddrTrigger-1]),
		ProcessingState: ProcessingState(words[registers.AddrProcessingState-1]),
		ControllerState: ControllerState(words[registers.AddrControllerState-1]),
		PrinterState:    PrinterState(words[registers.AddrPrinterState-1]),
		ErrorCode:       ErrorCode(words[registers.AddrErrorCode-1]),
		SelectedBatch:   words[registers.AddrSelectedBatch-1],
		UpdatedAt:       now,
	}

	t.stateMu.Lock()
	prev := t.mirror
	primed := t.primed
	t.mirror = snap
	t.primed = true
	t.stateMu.Unlock()

	if primed {
		t.diff(prev, snap, now)
	}
	return snap, nil
}

func (t *Tracker) diff(prev, cur Snapshot, now time.Time) {
	if prev.Trigger != cur.Trigger {
		t.emit("trigger", uint16(prev.Trigger), uint16(cur.Trigger), cur.Trigger.String(), now)
	}
	if prev.ProcessingState != cur.ProcessingState {
		t.emit("processingState", uint16(prev.ProcessingState), uint16(cur.ProcessingState), cur.ProcessingState.String(), now)
	}
	if prev.ControllerState != cur.ControllerState {
		t.emit("controllerState", uint16(prev.ControllerState), uint16(cur.ControllerState), cur.ControllerState.String(), now)
	}
	if prev.PrinterState != cur.PrinterState {
		t.emit("printerState", uint16(prev.PrinterState), uint16(cur.PrinterState), cur.PrinterState.String(), now)
	}
	if prev.ErrorCode != cur.ErrorCode {
		t.emit("errorCode", uint16(prev.ErrorCode), uint16(cur.ErrorCode), cur.ErrorCode.String(), now)
	}
	if prev.SelectedBatch != cur.SelectedBatch {
		t.emit("selectedBatch", prev.SelectedBatch, cur.SelectedBatch, "", now)
	}
}

func (t *Tracker) emit(field string, prev, cur uint16, readable string, now time.Time) {
	t.broadcast(ChangeEvent{
		Field:     field,
		Previous:  prev,
		Current:   cur,
		Readable:  readable,
		Timestamp: now,
	})
}

// Snapshot returns the mirror as of the last successful read or write.
func (t *Tracker) Snapshot() Snapshot {
	t.stateMu.RLock()
	defer t.stateMu.RUnlock()
	return t.mirror
}

// ReadTrigger reads only the trigger word.
func (t *Tracker) ReadTrigger() (Trigger, error) {
	words, err := t.bus.ReadWords(registers.AddrTrigger, 1)
	if err != nil {
		return TriggerIdle, err
	}
	trig := Trigger(words[0])

	t.stateMu.Lock()
	prev := t.mirror.Trigger
	t.mirror.Trigger = trig
	t.stateMu.Unlock()

	if prev != trig {
		t.emit("trigger", uint16(prev), uint16(trig), trig.String(), time.Now())
	}
	return trig, nil
}

// ReadSelectedBatch reads the operator's slot selection. Range checking
// is the caller's job; the raw word is returned as-is.
func (t *Tracker) ReadSelectedBatch() (int, error) {
	words, err := t.bus.ReadWords(registers.AddrSelectedBatch, 1)
	if err != nil {
		return 0, err
	}

	t.stateMu.Lock()
	prev := t.mirror.SelectedBatch
	t.mirror.SelectedBatch = words[0]
	t.stateMu.Unlock()

	if prev != words[0] {
		t.emit("selectedBatch", prev, words[0], "", time.Now())
	}
	return int(words[0]), nil
}

// SetProcessingState writes the processing-state word. Write failures
// propagate unchanged and leave the mirror untouched.
func (t *Tracker) SetProcessingState(s ProcessingState) error {
	if err := t.writeWord(registers.AddrProcessingState, uint16(s)); err != nil {
		return err
	}

	t.stateMu.Lock()
	prev := t.mirror.ProcessingState
	t.mirror.ProcessingState = s
	t.mirror.UpdatedAt = time.Now()
	t.stateMu.Unlock()

	if prev != s {
		t.emit("processingState", uint16(prev), uint16(s), s.String(), time.Now())
	}
	return nil
}

// Transition is SetProcessingState guarded by the transition table.
// Force bypasses the table for recovery paths.
func (t *Tracker) Transition(to ProcessingState, force bool) error {
	if !force {
		t.stateMu.RLock()
		from := t.mirror.ProcessingState
		t.stateMu.RUnlock()

		if err := ValidateTransition(from, to); err != nil {
			return err
		}
	}
	return t.SetProcessingState(to)
}

// SetControllerState writes the controller-state word.
func (t *Tracker) SetControllerState(s ControllerState) error {
	if err := t.writeWord(registers.AddrControllerState, uint16(s)); err != nil {
		return err
	}

	t.stateMu.Lock()
	prev := t.mirror.ControllerState
	t.mirror.ControllerState = s
	t.mirror.UpdatedAt = time.Now()
	t.stateMu.Unlock()

	if prev != s {
		t.emit("controllerState", uint16(prev), uint16(s), s.String(), time.Now())
	}
	return nil
}

// SetPrinterState writes the printer-state word.
func (t *Tracker) SetPrinterState(s PrinterState) error {
	if err := t.writeWord(registers.AddrPrinterState, uint16(s)); err != nil {
		return err
	}

	t.stateMu.Lock()
	prev := t.mirror.PrinterState
	t.mirror.PrinterState = s
	t.mirror.UpdatedAt = time.Now()
	t.stateMu.Unlock()

	if prev != s {
		t.emit("printerState", uint16(prev), uint16(s), s.String(), time.Now())
	}
	return nil
}

// SetErrorCode writes the error-code word.
func (t *Tracker) SetErrorCode(code ErrorCode) error {
	if err := t.writeWord(registers.AddrErrorCode, uint16(code)); err != nil {
		return err
	}

	t.stateMu.Lock()
	prev := t.mirror.ErrorCode
	t.mirror.ErrorCode = code
	t.mirror.UpdatedAt = time.Now()
	t.stateMu.Unlock()

	if prev != code {
		t.emit("errorCode", uint16(prev), uint16(code), code.String(), time.Now())
	}
	return nil
}

// ClearError resets the error-code word to NO_ERROR.
func (t *Tracker) ClearError() error {
	return t.SetErrorCode(ErrorNone)
}

// ResetTrigger acknowledges a trigger by writing it back to idle.
func (t *Tracker) ResetTrigger() error {
	if err := t.writeWord(registers.AddrTrigger, uint16(TriggerIdle)); err != nil {
		return err
	}

	t.stateMu.Lock()
	prev := t.mirror.Trigger
	t.mirror.Trigger = TriggerIdle
	t.mirror.UpdatedAt = time.Now()
	t.stateMu.Unlock()

	if prev != TriggerIdle {
		t.emit("trigger", uint16(prev), uint16(TriggerIdle), TriggerIdle.String(), time.Now())
	}
	return nil
}

// IsReady reports whether the system is idle with no standing error, as
// of the last read.
func (t *Tracker) IsReady() bool {
	t.stateMu.RLock()
	defer t.stateMu.RUnlock()
	return t.mirror.Trigger == TriggerIdle &&
		t.mirror.ProcessingState == StateIdle &&
		t.mirror.ErrorCode == ErrorNone
}

// ResetSystemState returns every coordinator-owned control word to its
// idle value: trigger, processing state, controller state, printer state
// and error code, in that order. Stops at the first failed write.
func (t *Tracker) ResetSystemState() error {
	t.logger.Info("Resetting system state words")

	if err := t.ResetTrigger(); err != nil {
		return err
	}
	if err := t.SetProcessingState(StateIdle); err != nil {
		return err
	}
	if err := t.SetControllerState(ControllerIdle); err != nil {
		return err
	}
	if err := t.SetPrinterState(PrinterDisconnected); err != nil {
		return err
	}
	return t.SetErrorCode(ErrorNone)
}

func (t *Tracker) writeWord(addr int, value uint16) error {
	return t.bus.WriteWords(addr, []uint16{value})
}

// Subscribe returns a channel receiving control-word change events.
// Slow receivers miss events rather than blocking writes.
func (t *Tracker) Subscribe() chan ChangeEvent {
	ch := make(chan ChangeEvent, 16)

	t.listenersMu.Lock()
	t.listeners = append(t.listeners, ch)
	t.listenersMu.Unlock()

	return ch
}

// Unsubscribe removes and closes a subscription channel.
func (t *Tracker) Unsubscribe(ch chan ChangeEvent) {
	t.listenersMu.Lock()
	defer t.listenersMu.Unlock()

	for i, listener := range t.listeners {
		if listener == ch {
			t.listeners = append(t.listeners[:i], t.listeners[i+1:]...)
			close(ch)
			break
		}
	}
}

func (t *Tracker) broadcast(ev ChangeEvent) {
	t.logger.Debug("Control word changed",
		zap.String("field", ev.Field),
		zap.Uint16("previous", ev.Previous),
		zap.Uint16("current", ev.Current),
		zap.String("readable", ev.Readable))

	t.listenersMu.RLock()
	defer t.listenersMu.RUnlock()

	for _, listener := range t.listeners {
		select {
		case listener <- ev:
		default:
			// Channel full, skip
		}
	}
}
