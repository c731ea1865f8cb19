package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/KevinKickass/OpenBatchCore/internal/batch"
	"github.com/KevinKickass/OpenBatchCore/internal/registers"
	"github.com/KevinKickass/OpenBatchCore/internal/status"
	"github.com/KevinKickass/OpenBatchCore/internal/types"
	"go.uber.org/zap"
)

// runDownload executes the download operation and, on failure, settles
// the PLC error surface. The trigger word is deliberately left standing
// so the controller side can see what it asked for.
func (o *Orchestrator) runDownload(ctx context.Context, rec *OperationRecord) error {
	err := o.download(ctx, rec)
	if err == nil || isCancellation(err) {
		return err
	}

	o.recordOperationFailure(downloadErrorCode(err))
	return err
}

// download runs the read-fetch-merge-write sequence. Steps are strictly
// sequential; the image write is one bus call so the controller never
// observes a half-written batch region.
func (o *Orchestrator) download(ctx context.Context, rec *OperationRecord) error {
	if err := o.bus.EnsureConnected(); err != nil {
		return err
	}
	if err := o.clearStandingError(); err != nil {
		return err
	}

	if err := o.tracker.SetProcessingState(status.StateDownloading); err != nil {
		return err
	}
	if err := o.tracker.SetControllerState(status.ControllerTriggeringDownload); err != nil {
		return err
	}

	words, err := o.bus.ReadWords(registers.AddrTrigger, registers.ImageWords)
	if err != nil {
		return err
	}
	slots, err := o.codec.DecodeImage(words)
	if err != nil {
		return err
	}

	resident := make([]types.BatchRecord, 0, len(slots))
	for _, s := range slots {
		if s.Present {
			resident = append(resident, s.Record)
		}
	}

	if err := checkCancelled(ctx); err != nil {
		return err
	}

	raw, err := o.fetcher.FetchRawBatches(ctx)
	if err != nil {
		return err
	}

	if err := o.tracker.SetProcessingState(status.StateProcessingData); err != nil {
		return err
	}

	fetched := o.parser.ParseRecords(raw)
	if len(fetched) == 0 && len(raw) > 0 {
		return types.NewDataValidationFailure("cloud", "parse feed",
			fmt.Errorf("no usable record among %d feed entries", len(raw)))
	}

	merged := batch.Reconcile(fetched, resident)
	o.logger.Info("Batch sets reconciled",
		zap.Int("fetched", len(fetched)),
		zap.Int("resident", len(resident)),
		zap.Int("slots", len(merged)))

	image, err := o.codec.EncodeImage(merged)
	if err != nil {
		return err
	}
	o.preserveControlWords(image)

	if err := checkCancelled(ctx); err != nil {
		return err
	}

	if err := o.bus.WriteWords(registers.AddrTrigger, image); err != nil {
		return err
	}

	if err := o.tracker.SetControllerState(status.ControllerDataReceived); err != nil {
		return err
	}
	if err := o.tracker.SetProcessingState(status.StateReadyToSend); err != nil {
		return err
	}
	if err := o.tracker.ResetTrigger(); err != nil {
		return err
	}
	if err := o.tracker.SetControllerState(status.ControllerDisplaying); err != nil {
		return err
	}

	o.rememberBatches(merged)
	return nil
}

// clearStandingError drops a leftover error code from a previous failed
// operation before a new attempt starts.
func (o *Orchestrator) clearStandingError() error {
	if o.tracker.Snapshot().ErrorCode == status.ErrorNone {
		return nil
	}
	return o.tracker.ClearError()
}

// preserveControlWords copies the tracker mirror into words 1-9 so the
// full-image write does not regress control state mid-operation.
func (o *Orchestrator) preserveControlWords(image []uint16) {
	snap := o.tracker.Snapshot()
	image[registers.AddrTrigger-1] = uint16(snap.Trigger)
	image[registers.AddrProcessingState-1] = uint16(snap.ProcessingState)
	image[registers.AddrControllerState-1] = uint16(snap.ControllerState)
	image[registers.AddrPrinterState-1] = uint16(snap.PrinterState)
	image[registers.AddrErrorCode-1] = uint16(snap.ErrorCode)
	image[registers.AddrSelectedBatch-1] = snap.SelectedBatch
}

// downloadErrorCode maps a failed download to the PLC error surface: an
// unreachable feed is SourceFetchFailed, everything else that can go
// wrong here is unusable or unwritable data.
func downloadErrorCode(err error) status.ErrorCode {
	var failure *types.Failure
	if errors.As(err, &failure) &&
		failure.Kind == types.FailureConnection &&
		failure.Component == "cloud" {
		return status.ErrorSourceFetchFailed
	}
	return status.ErrorDataFormat
}
