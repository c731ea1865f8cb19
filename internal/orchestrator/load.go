package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/KevinKickass/OpenBatchCore/internal/batch"
	"github.com/KevinKickass/OpenBatchCore/internal/printer"
	"github.com/KevinKickass/OpenBatchCore/internal/registers"
	"github.com/KevinKickass/OpenBatchCore/internal/status"
	"github.com/KevinKickass/OpenBatchCore/internal/types"
	"go.uber.org/zap"
)

// runLoadToPrinter executes the load operation and, on failure, settles
// the PLC error surface. The printer-state word only reports Failed when
// the transport was actually contacted.
func (o *Orchestrator) runLoadToPrinter(ctx context.Context, rec *OperationRecord) error {
	printerContacted := false
	err := o.load(ctx, rec, &printerContacted)
	if err == nil || isCancellation(err) {
		return err
	}

	if printerContacted {
		o.setPrinterState(status.PrinterFailed)
	}
	o.recordOperationFailure(loadErrorCode(err))
	return err
}

// load reads the operator-selected slot, validates it and pushes the
// four field commands to both printheads.
func (o *Orchestrator) load(ctx context.Context, rec *OperationRecord, printerContacted *bool) error {
	if err := o.bus.EnsureConnected(); err != nil {
		return err
	}
	if err := o.clearStandingError(); err != nil {
		return err
	}

	selected, err := o.tracker.ReadSelectedBatch()
	if err != nil {
		return err
	}
	if selected < 1 || selected > registers.SlotCount {
		return types.NewDataValidationFailure("registers", "select batch",
			fmt.Errorf("selected batch %d outside 1..%d", selected, registers.SlotCount))
	}

	words, err := o.bus.ReadWords(registers.SlotAddress(selected), registers.SlotWords)
	if err != nil {
		return err
	}
	record, present, err := o.codec.DecodeBatchSlot(words)
	if err != nil {
		return err
	}
	if !present {
		return types.NewDataValidationFailure("registers", "load batch",
			fmt.Errorf("slot %d holds no batch", selected))
	}

	if problems := batch.ValidateForPrint(record); len(problems) > 0 {
		return types.NewDataValidationFailure("batch", "validate for print",
			fmt.Errorf("batch %d is not printable: %s",
				record.Index, strings.Join(problems, "; ")))
	}

	rec.BatchIndex = record.Index
	o.logger.Info("Sending batch to printheads",
		zap.Int("slot", selected),
		zap.String("batch", record.Summary()))

	if err := o.tracker.SetProcessingState(status.StateSendingToPrinter); err != nil {
		return err
	}
	o.setPrinterState(status.PrinterSending)

	if err := checkCancelled(ctx); err != nil {
		return err
	}

	commands := printer.BuildCommands(record)
	*printerContacted = true
	if err := o.printheads.SendToAll(ctx, commands); err != nil {
		return err
	}

	o.setPrinterState(status.PrinterSuccess)
	if err := o.tracker.SetProcessingState(status.StateComplete); err != nil {
		return err
	}
	return o.tracker.ResetTrigger()
}

// setPrinterState updates the printer lifecycle word. The word is an
// operator display, a failed write must not fail the operation.
func (o *Orchestrator) setPrinterState(s status.PrinterState) {
	if err := o.tracker.SetPrinterState(s); err != nil {
		o.logger.Warn("Printer state write failed",
			zap.String("state", s.String()),
			zap.Error(err))
	}
}

// loadErrorCode maps a failed load: data problems report as DataFormat,
// everything else as the printer path.
func loadErrorCode(err error) status.ErrorCode {
	if types.IsFailureKind(err, types.FailureValidation) {
		return status.ErrorDataFormat
	}
	return status.ErrorPrinterCommFailed
}
