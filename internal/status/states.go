package status

// Typed views of the control words. The numeric values are part of the
// PLC protocol and must never change; the controller program matches on
// them directly.

// Trigger is the one-shot command word the controller raises (word 1).
type Trigger uint16

const (
	TriggerIdle          Trigger = 0
	TriggerDownloadBatch Trigger = 1
	TriggerLoadToPrinter Trigger = 2
)

func (t Trigger) String() string {
	switch t {
	case TriggerIdle:
		return "IDLE"
	case TriggerDownloadBatch:
		return "DOWNLOAD_BATCH"
	case TriggerLoadToPrinter:
		return "LOAD_TO_PRINTER"
	default:
		return "UNKNOWN"
	}
}

// ProcessingState reports this side's operation progress (word 2).
type ProcessingState uint16

const (
	StateIdle             ProcessingState = 0
	StateDownloading      ProcessingState = 1
	StateProcessingData   ProcessingState = 2
	StateReadyToSend      ProcessingState = 3
	StateSendingToPrinter ProcessingState = 4
	StateComplete         ProcessingState = 5
	StateError            ProcessingState = 9
)

func (s ProcessingState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateDownloading:
		return "DOWNLOADING"
	case StateProcessingData:
		return "PROCESSING_DATA"
	case StateReadyToSend:
		return "READY_TO_SEND"
	case StateSendingToPrinter:
		return "SENDING_TO_PRINTER"
	case StateComplete:
		return "COMPLETE"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ControllerState mirrors what the controller-side program reports about
// its own screen flow (word 3). This side writes it during operations so
// the HMI can follow along.
type ControllerState uint16

const (
	ControllerIdle               ControllerState = 0
	ControllerTriggeringDownload ControllerState = 1
	ControllerWaitingForData     ControllerState = 2
	ControllerDataReceived       ControllerState = 3
	ControllerDisplaying         ControllerState = 4
	ControllerReadyToLoad        ControllerState = 5
)

func (c ControllerState) String() string {
	switch c {
	case ControllerIdle:
		return "IDLE"
	case ControllerTriggeringDownload:
		return "TRIGGERING_DOWNLOAD"
	case ControllerWaitingForData:
		return "WAITING_FOR_DATA"
	case ControllerDataReceived:
		return "DATA_RECEIVED"
	case ControllerDisplaying:
		return "DISPLAYING"
	case ControllerReadyToLoad:
		return "READY_TO_LOAD"
	default:
		return "UNKNOWN"
	}
}

// PrinterState reflects the printhead link (word 4), best effort.
type PrinterState uint16

const (
	PrinterDisconnected PrinterState = 0
	PrinterConnected    PrinterState = 1
	PrinterSending      PrinterState = 2
	PrinterSuccess      PrinterState = 3
	PrinterFailed       PrinterState = 4
)

func (p PrinterState) String() string {
	switch p {
	case PrinterDisconnected:
		return "DISCONNECTED"
	case PrinterConnected:
		return "CONNECTED"
	case PrinterSending:
		return "SENDING"
	case PrinterSuccess:
		return "SUCCESS"
	case PrinterFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// ErrorCode is the only error surface the controller reads (word 5).
type ErrorCode uint16

const (
	ErrorNone              ErrorCode = 0
	ErrorSourceFetchFailed ErrorCode = 1
	ErrorPrinterCommFailed ErrorCode = 2
	ErrorDataFormat        ErrorCode = 3
)

func (e ErrorCode) String() string {
	switch e {
	case ErrorNone:
		return "NO_ERROR"
	case ErrorSourceFetchFailed:
		return "SOURCE_FETCH_FAILED"
	case ErrorPrinterCommFailed:
		return "PRINTER_COMM_FAILED"
	case ErrorDataFormat:
		return "DATA_FORMAT_ERROR"
	default:
		return "UNKNOWN"
	}
}
