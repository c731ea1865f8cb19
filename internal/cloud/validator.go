package cloud

import (
	"fmt"
	"strings"

	_ "embed"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/batch-record-v1.json
var batchRecordSchemaJSON string

// Validator screens decoded feed entries against the batch-record schema
// before they reach the parser. It filters out shapes the parser should
// never have to reason about, like structured field values.
type Validator struct {
	schema *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()

	if err := compiler.AddResource("batch-record-v1.json",
		strings.NewReader(batchRecordSchemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	schema, err := compiler.Compile("batch-record-v1.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// ValidateEntry checks one decoded feed entry.
func (v *Validator) ValidateEntry(entry map[string]any) error {
	if err := v.schema.Validate(entry); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
