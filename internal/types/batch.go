package types

import "fmt"

// BatchStatus is the lifecycle ordinal of a batch inside the PLC slot array.
// The ordinals are part of the register protocol and must not be reordered.
type BatchStatus uint16

const (
	StatusQueued          BatchStatus = 0
	StatusNextInQueue     BatchStatus = 1
	StatusCurrentPrinting BatchStatus = 2
	StatusLastPrinted     BatchStatus = 3
	StatusPrinted         BatchStatus = 4
)

func (s BatchStatus) String() string {
	switch s {
	case StatusQueued:
		return "QUEUED"
	case StatusNextInQueue:
		return "NEXT_IN_QUEUE"
	case StatusCurrentPrinting:
		return "CURRENT_PRINTING"
	case StatusLastPrinted:
		return "LAST_PRINTED"
	case StatusPrinted:
		return "PRINTED"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether the ordinal is inside the protocol range.
func (s BatchStatus) Valid() bool {
	return s <= StatusPrinted
}

// Modifiable reports whether a slot in this state may be overwritten by a
// fresh download. CurrentPrinting, LastPrinted and Printed slots belong to
// the operator side and only their print progress is authoritative here.
func (s BatchStatus) Modifiable() bool {
	return s == StatusQueued || s == StatusNextInQueue
}

// BatchRecord is one dairy production batch as held in a PLC slot.
// Index 0 is the empty-slot sentinel: such a record carries no batch and
// every consumer must treat it as "no data".
type BatchRecord struct {
	Index          uint32      `json:"batchIndex"`
	Status         BatchStatus `json:"status"`
	PrintCount     uint16      `json:"printCount"`
	BatchCode      string      `json:"batchCode"`
	DryerCode      string      `json:"dryerCode"`
	ProductionDate string      `json:"productionDate"`
	ExpiryDate     string      `json:"expiryDate"`
}

// IsEmpty reports whether the record denotes an empty slot.
func (r BatchRecord) IsEmpty() bool {
	return r.Index == 0
}

// Summary returns a compact single-line description for logging.
func (r BatchRecord) Summary() string {
	if r.IsEmpty() {
		return "empty batch"
	}
	return fmt.Sprintf("batch %d: code=%s, status=%s, count=%d",
		r.Index, r.BatchCode, r.Status, r.PrintCount)
}
