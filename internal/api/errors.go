package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"codescope/internal/errors"
)

// ErrorResponse represents an HTTP error response
type ErrorResponse struct {
	Error          string             `json:"error"`
	Code           string             `json:"code"`
	Details        interface{}        `json:"details,omitempty"`
	SuggestedFixes []errors.FixAction `json:"suggestedFixes,omitempty"`
}

// WriteError writes an error response to the HTTP response writer
func WriteError(w http.ResponseWriter, err error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := ErrorResponse{
		Error: err.Error(),
		Code:  string(errors.InternalError),
	}

	var scopeErr *errors.ScopeError
	if stderrors.As(err, &scopeErr) {
		resp.Code = string(scopeErr.Code)
		resp.Details = scopeErr.Details
		resp.SuggestedFixes = scopeErr.SuggestedFixes
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// WriteScopeError writes err with the status its code maps to.
func WriteScopeError(w http.ResponseWriter, err error) {
	WriteError(w, err, MapErrorToStatus(errors.CodeOf(err)))
}

// MapErrorToStatus maps error codes to HTTP status codes
func MapErrorToStatus(code errors.ErrorCode) int {
	switch code {
	case errors.InvalidOptions:
		return http.StatusBadRequest // 400
	case errors.DetectionFailure:
		return http.StatusUnprocessableEntity // 422
	case errors.ParseFailure:
		return http.StatusUnprocessableEntity // 422
	case errors.StageTimeout:
		return http.StatusGatewayTimeout // 504
	case errors.StorageError:
		return http.StatusServiceUnavailable // 503
	case errors.StageFailure, errors.CacheCorruption, errors.InternalError:
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// BadRequest writes a 400 Bad Request error
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, errors.New(errors.InvalidOptions, message, nil), http.StatusBadRequest)
}

// MethodNotAllowed writes a 405 with the allowed method.
func MethodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	WriteError(w, errors.Newf(errors.InvalidOptions, "method not allowed, use %s", allow), http.StatusMethodNotAllowed)
}

// InternalError writes a 500 Internal Server Error
func InternalError(w http.ResponseWriter, message string, err error) {
	WriteError(w, errors.New(errors.InternalError, message, err), http.StatusInternalServerError)
}
