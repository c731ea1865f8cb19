package types

import (
	"errors"
	"fmt"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// NewErrorResponse builds a consistent API error payload.
// details can be string, map, struct, etc.
func NewErrorResponse(code, message string, details any) ErrorResponse {
	return ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// FailureKind tags an error with the kind of boundary it crossed.
type FailureKind string

const (
	FailureConnection FailureKind = "connection"
	FailureValidation FailureKind = "validation"
	FailureProtocol   FailureKind = "protocol"
	FailureStructural FailureKind = "structural"
)

// Failure is the tagged error type used at component boundaries.
// Component identifies the subsystem ("plc", "cloud", "printer", "registers"),
// Op the operation that failed.
type Failure struct {
	Kind      FailureKind
	Component string
	Op        string
	Details   map[string]any
	Err       error
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("%s failure in %s", f.Kind, f.Component)
	if f.Op != "" {
		msg += " during " + f.Op
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// WithDetail attaches structured context to the failure.
func (f *Failure) WithDetail(key string, value any) *Failure {
	if f.Details == nil {
		f.Details = make(map[string]any)
	}
	f.Details[key] = value
	return f
}

func newFailure(kind FailureKind, component, op string, err error) *Failure {
	return &Failure{Kind: kind, Component: component, Op: op, Err: err}
}

func NewConnectionFailure(component, op string, err error) *Failure {
	return newFailure(FailureConnection, component, op, err)
}

func NewDataValidationFailure(component, op string, err error) *Failure {
	return newFailure(FailureValidation, component, op, err)
}

func NewProtocolFailure(component, op string, err error) *Failure {
	return newFailure(FailureProtocol, component, op, err)
}

func NewStructuralFailure(component, op string, err error) *Failure {
	return newFailure(FailureStructural, component, op, err)
}

// FailureKindOf extracts the failure kind from an error chain.
func FailureKindOf(err error) (FailureKind, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return "", false
}

// IsFailureKind reports whether err carries the given failure kind.
func IsFailureKind(err error, kind FailureKind) bool {
	got, ok := FailureKindOf(err)
	return ok && got == kind
}
