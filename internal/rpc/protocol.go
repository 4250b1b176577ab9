// Package rpc serves the analysis engine as JSON-RPC 2.0 over
// newline-delimited stdio, one message per line.
package rpc

import (
	"encoding/json"
	stderrors "errors"

	"codescope/internal/errors"
)

// Message is a JSON-RPC 2.0 request, notification or response.
type Message struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error represents a JSON-RPC 2.0 error
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Message
}

// Standard JSON-RPC error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// Application error codes, one per failure mode.
const (
	DetectionFailure = -32001
	ParseFailure     = -32002
	StageTimeout     = -32003
	StageFailure     = -32004
	CacheCorruption  = -32005
	StorageError     = -32006
)

// ErrorData is attached to errors raised by the engine.
type ErrorData struct {
	Code           errors.ErrorCode   `json:"code"`
	Details        interface{}        `json:"details,omitempty"`
	SuggestedFixes []errors.FixAction `json:"suggestedFixes,omitempty"`
}

// MapErrorCode maps error codes to JSON-RPC error codes.
func MapErrorCode(code errors.ErrorCode) int {
	switch code {
	case errors.InvalidOptions:
		return InvalidParams
	case errors.DetectionFailure:
		return DetectionFailure
	case errors.ParseFailure:
		return ParseFailure
	case errors.StageTimeout:
		return StageTimeout
	case errors.StageFailure:
		return StageFailure
	case errors.CacheCorruption:
		return CacheCorruption
	case errors.StorageError:
		return StorageError
	default:
		return InternalError
	}
}

// NewErrorMessage creates a new error response message
func NewErrorMessage(id interface{}, code int, message string, data interface{}) *Message {
	return &Message{
		Jsonrpc: "2.0",
		ID:      id,
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// NewResultMessage creates a new result response message
func NewResultMessage(id interface{}, result interface{}) *Message {
	return &Message{
		Jsonrpc: "2.0",
		ID:      id,
		Result:  result,
	}
}

// errorMessage converts an engine error into a response.
func errorMessage(id interface{}, err error) *Message {
	data := ErrorData{Code: errors.InternalError}
	var scopeErr *errors.ScopeError
	if stderrors.As(err, &scopeErr) {
		data.Code = scopeErr.Code
		data.Details = scopeErr.Details
		data.SuggestedFixes = scopeErr.SuggestedFixes
	}
	return NewErrorMessage(id, MapErrorCode(data.Code), err.Error(), data)
}

// IsRequest checks if the message is a request
func (m *Message) IsRequest() bool {
	return m.Method != "" && m.ID != nil
}

// IsNotification checks if the message is a notification
func (m *Message) IsNotification() bool {
	return m.Method != "" && m.ID == nil
}
