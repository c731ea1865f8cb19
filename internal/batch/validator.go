package batch

import (
	"fmt"

	"github.com/KevinKickass/OpenBatchCore/internal/registers"
	"github.com/KevinKickass/OpenBatchCore/internal/types"
)

// Meaningful batch index range. Zero is the empty-slot sentinel and 16-bit
// register width caps the upper end well below the feed's numbering scheme.
const (
	MinBatchIndex = 1001
	MaxBatchIndex = 99999
)

// Validate checks one record against the field rules and returns every
// violation found instead of stopping at the first. A nil result means the
// record is acceptable. Empty-slot records (index zero) are always
// acceptable and skip all checks.
func Validate(rec types.BatchRecord) []string {
	if rec.IsEmpty() {
		return nil
	}

	var problems []string
	if rec.Index < MinBatchIndex || rec.Index > MaxBatchIndex {
		problems = append(problems, fmt.Sprintf("batchIndex %d outside [%d,%d]", rec.Index, MinBatchIndex, MaxBatchIndex))
	}
	if !rec.Status.Valid() {
		problems = append(problems, fmt.Sprintf("status %d outside [0,%d]", rec.Status, uint16(types.StatusPrinted)))
	}
	problems = appendLengthProblem(problems, "batchCode", rec.BatchCode, registers.MaxCodeChars)
	problems = appendLengthProblem(problems, "dryerCode", rec.DryerCode, registers.MaxCodeChars)
	problems = appendLengthProblem(problems, "productionDate", rec.ProductionDate, registers.MaxDateChars)
	problems = appendLengthProblem(problems, "expiryDate", rec.ExpiryDate, registers.MaxDateChars)

	// A batch that is printing or just printed came from the controller
	// side; losing its text fields would blank a live print job.
	if rec.Status == types.StatusCurrentPrinting || rec.Status == types.StatusLastPrinted {
		problems = appendEmptyProblem(problems, "batchCode", rec.BatchCode)
		problems = appendEmptyProblem(problems, "dryerCode", rec.DryerCode)
		problems = appendEmptyProblem(problems, "productionDate", rec.ProductionDate)
		problems = appendEmptyProblem(problems, "expiryDate", rec.ExpiryDate)
	}
	return problems
}

// ValidateForPrint applies the stricter rules for sending a record to the
// printheads. Every string field must carry text; an empty slot can never
// be printed.
func ValidateForPrint(rec types.BatchRecord) []string {
	if rec.IsEmpty() {
		return []string{"empty slot (batchIndex 0) cannot be printed"}
	}

	problems := Validate(rec)
	if rec.Status != types.StatusCurrentPrinting && rec.Status != types.StatusLastPrinted {
		// Validate only enforces non-empty fields for those two states.
		problems = appendEmptyProblem(problems, "batchCode", rec.BatchCode)
		problems = appendEmptyProblem(problems, "dryerCode", rec.DryerCode)
		problems = appendEmptyProblem(problems, "productionDate", rec.ProductionDate)
		problems = appendEmptyProblem(problems, "expiryDate", rec.ExpiryDate)
	}
	return problems
}

func appendLengthProblem(problems []string, field, value string, maxChars int) []string {
	if len(value) > maxChars {
		problems = append(problems, fmt.Sprintf("%s %q exceeds %d characters", field, value, maxChars))
	}
	return problems
}

func appendEmptyProblem(problems []string, field, value string) []string {
	if value == "" {
		problems = append(problems, fmt.Sprintf("%s must not be empty", field))
	}
	return problems
}
