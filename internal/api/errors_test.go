package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"codescope/internal/errors"
)

func TestMapErrorToStatus(t *testing.T) {
	tests := []struct {
		code errors.ErrorCode
		want int
	}{
		{errors.InvalidOptions, http.StatusBadRequest},
		{errors.DetectionFailure, http.StatusUnprocessableEntity},
		{errors.ParseFailure, http.StatusUnprocessableEntity},
		{errors.StageTimeout, http.StatusGatewayTimeout},
		{errors.StorageError, http.StatusServiceUnavailable},
		{errors.StageFailure, http.StatusInternalServerError},
		{errors.CacheCorruption, http.StatusInternalServerError},
		{errors.InternalError, http.StatusInternalServerError},
		{"UNKNOWN_CODE", http.StatusInternalServerError}, // default case
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			got := MapErrorToStatus(tt.code)
			if got != tt.want {
				t.Errorf("MapErrorToStatus(%q) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	t.Run("writes basic error", func(t *testing.T) {
		w := httptest.NewRecorder()

		WriteError(w, fmt.Errorf("something went wrong"), http.StatusInternalServerError)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
		}
		if ct := w.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}

		var resp ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.Error != "something went wrong" {
			t.Errorf("resp.Error = %q, want 'something went wrong'", resp.Error)
		}
		if resp.Code != "INTERNAL_ERROR" {
			t.Errorf("resp.Code = %q, want INTERNAL_ERROR", resp.Code)
		}
	})

	t.Run("writes wrapped ScopeError with details and fixes", func(t *testing.T) {
		w := httptest.NewRecorder()
		scopeErr := errors.Newf(errors.StageTimeout, "stage churn exceeded 30s").
			WithDetails(map[string]string{"stage": "churn"})

		WriteError(w, fmt.Errorf("analyze: %w", scopeErr), http.StatusGatewayTimeout)

		var resp ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.Code != "STAGE_TIMEOUT" {
			t.Errorf("resp.Code = %q, want STAGE_TIMEOUT", resp.Code)
		}
		if resp.Details == nil {
			t.Error("resp.Details should not be nil")
		}
		if len(resp.SuggestedFixes) == 0 {
			t.Error("resp.SuggestedFixes should carry the default fixes")
		}
	})
}

func TestWriteScopeError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteScopeError(w, errors.Newf(errors.DetectionFailure, "no supported language"))

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Code != "DETECTION_FAILURE" {
		t.Errorf("resp.Code = %q, want DETECTION_FAILURE", resp.Code)
	}
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()

	WriteJSON(w, map[string]string{"message": "success"}, http.StatusOK)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp["message"] != "success" {
		t.Errorf("resp[message] = %q, want success", resp["message"])
	}
}

func TestBadRequest(t *testing.T) {
	w := httptest.NewRecorder()

	BadRequest(w, "invalid query parameter")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Code != "INVALID_OPTIONS" {
		t.Errorf("resp.Code = %q, want INVALID_OPTIONS", resp.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	w := httptest.NewRecorder()

	MethodNotAllowed(w, http.MethodPost)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
	if allow := w.Header().Get("Allow"); allow != http.MethodPost {
		t.Errorf("Allow = %q, want POST", allow)
	}
}

func TestInternalError(t *testing.T) {
	w := httptest.NewRecorder()

	InternalError(w, "database error", fmt.Errorf("connection failed"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Code != "INTERNAL_ERROR" {
		t.Errorf("resp.Code = %q, want INTERNAL_ERROR", resp.Code)
	}
}
