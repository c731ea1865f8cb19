package orchestrator

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// historySize bounds the in-memory operation history. The ring exists
// for the diagnostics API; the register image stays the system of record.
const historySize = 32

// Operation type labels, shared by logs, metrics and the history ring.
const (
	OpDownloadBatch = "download_batch"
	OpLoadToPrinter = "load_to_printer"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// OperationRecord is one finished trigger operation.
type OperationRecord struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	StartedAt  time.Time `json:"startedAt"`
	DurationMs int64     `json:"durationMs"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	BatchIndex uint32    `json:"batchIndex,omitempty"`
}

type historyRing struct {
	mu      sync.RWMutex
	entries []OperationRecord
}

func (r *historyRing) Add(rec OperationRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, rec)
	if len(r.entries) > historySize {
		r.entries = r.entries[len(r.entries)-historySize:]
	}
}

// List returns the retained records, newest first.
func (r *historyRing) List() []OperationRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]OperationRecord, len(r.entries))
	for i, rec := range r.entries {
		out[len(r.entries)-1-i] = rec
	}
	return out
}
