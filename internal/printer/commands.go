package printer

import (
	"fmt"
	"strings"

	"github.com/KevinKickass/OpenBatchCore/internal/types"
)

// External-field indices on the printhead. The label template references
// them by number; the mapping below is fixed by the installed template.
const (
	fieldBatchCode      = 0
	fieldDryerCode      = 1
	fieldProductionDate = 2
	fieldExpiryDate     = 3
)

var sanitizer = strings.NewReplacer(
	`"`, "'",
	"\r", " ",
	"\n", " ",
	"\t", " ",
)

// Sanitize rewrites characters the printer command syntax cannot carry.
// Double quotes would end the quoted value early and CR/LF/TAB would
// break line framing, so they degrade to close equivalents instead of
// failing the batch.
func Sanitize(value string) string {
	return strings.TrimSpace(sanitizer.Replace(value))
}

// BuildCommands renders the four external-field commands for one batch,
// in field-index order. Values are sanitized on the way in.
func BuildCommands(rec types.BatchRecord) []string {
	return []string{
		fieldCommand(fieldBatchCode, rec.BatchCode),
		fieldCommand(fieldDryerCode, rec.DryerCode),
		fieldCommand(fieldProductionDate, rec.ProductionDate),
		fieldCommand(fieldExpiryDate, rec.ExpiryDate),
	}
}

func fieldCommand(index int, value string) string {
	return fmt.Sprintf(`external_field string %d "%s"`, index, Sanitize(value))
}

// checkCommand rejects commands that would corrupt the line protocol.
// Sanitized output never trips this; it guards hand-built commands.
func checkCommand(cmd string) error {
	if strings.ContainsAny(cmd, "\x00\r") {
		return fmt.Errorf("command contains forbidden control characters: %q", cmd)
	}
	return nil
}
