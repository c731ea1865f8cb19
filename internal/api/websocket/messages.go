package websocket

import "time"

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Register status messages
	MessageTypeStatusChange MessageType = "status_change"

	// Operation lifecycle messages
	MessageTypeOperationStarted   MessageType = "operation_started"
	MessageTypeOperationCompleted MessageType = "operation_completed"
	MessageTypeOperationFailed    MessageType = "operation_failed"

	// System messages
	MessageTypeSystemReset  MessageType = "system_reset"
	MessageTypeSystemStatus MessageType = "system_status"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// StatusChangeData represents one control word changing value
type StatusChangeData struct {
	Field    string `json:"field"`
	Previous uint16 `json:"previous"`
	Current  uint16 `json:"current"`
	Readable string `json:"readable,omitempty"`
}

// OperationEventData represents a trigger-operation lifecycle event
type OperationEventData struct {
	OperationID string `json:"operationId"`
	Operation   string `json:"operation"`
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
	BatchIndex  uint32 `json:"batchIndex,omitempty"`
}

// SystemResetData represents a maintenance reset of the control words
type SystemResetData struct {
	Source string `json:"source"`
}

// NewMessage creates a new message with current timestamp
func NewMessage(msgType MessageType, data interface{}) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// Helper functions for creating specific message types

func NewStatusChangeMessage(field string, previous, current uint16, readable string) Message {
	return NewMessage(MessageTypeStatusChange, StatusChangeData{
		Field:    field,
		Previous: previous,
		Current:  current,
		Readable: readable,
	})
}

func NewOperationMessage(msgType MessageType, operationID, operation, status, message string, batchIndex uint32) Message {
	return NewMessage(msgType, OperationEventData{
		OperationID: operationID,
		Operation:   operation,
		Status:      status,
		Message:     message,
		BatchIndex:  batchIndex,
	})
}

func NewSystemResetMessage(source string) Message {
	return NewMessage(MessageTypeSystemReset, SystemResetData{Source: source})
}

func NewSystemStatusMessage(data interface{}) Message {
	return NewMessage(MessageTypeSystemStatus, data)
}
