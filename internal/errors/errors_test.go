package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("deadline exceeded")
	err := New(StageTimeout, "stage churn exceeded 30s", cause)

	if err.Code != StageTimeout {
		t.Errorf("Code = %v, want %v", err.Code, StageTimeout)
	}
	if err.Message != "stage churn exceeded 30s" {
		t.Errorf("Message = %q", err.Message)
	}
	if len(err.SuggestedFixes) != 2 {
		t.Errorf("len(SuggestedFixes) = %d, want 2", len(err.SuggestedFixes))
	}
}

func TestScopeError_Error(t *testing.T) {
	tests := []struct {
		name      string
		code      ErrorCode
		message   string
		cause     error
		wantParts []string
	}{
		{
			name:      "with cause",
			code:      ParseFailure,
			message:   "parse main.go",
			cause:     errors.New("unexpected EOF"),
			wantParts: []string{"PARSE_FAILURE", "parse main.go", "unexpected EOF"},
		},
		{
			name:      "without cause",
			code:      InvalidOptions,
			message:   "unknown stage \"foo\"",
			wantParts: []string{"INVALID_OPTIONS", "unknown stage"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.code, tt.message, tt.cause).Error()
			for _, part := range tt.wantParts {
				if !strings.Contains(got, part) {
					t.Errorf("Error() = %q, want to contain %q", got, part)
				}
			}
		})
	}
}

func TestScopeError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := New(InternalError, "something went wrong", cause)

	if err.Unwrap() != cause {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), cause)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
	if New(StageFailure, "x", nil).Unwrap() != nil {
		t.Error("Unwrap() on error without cause should return nil")
	}
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("run: %w", New(StageFailure, "complexity failed", nil))
	if got := CodeOf(wrapped); got != StageFailure {
		t.Errorf("CodeOf(wrapped) = %v, want %v", got, StageFailure)
	}
	if got := CodeOf(errors.New("plain")); got != InternalError {
		t.Errorf("CodeOf(plain) = %v, want %v", got, InternalError)
	}
}

func TestIs(t *testing.T) {
	inner := New(StageTimeout, "graph timed out", nil)
	outer := New(StageFailure, "required stage failed", inner)

	if !Is(outer, StageFailure) {
		t.Error("Is(outer, StageFailure) = false")
	}
	if !Is(outer, StageTimeout) {
		t.Error("Is(outer, StageTimeout) = false, want the nested code to match")
	}
	if Is(outer, CacheCorruption) {
		t.Error("Is(outer, CacheCorruption) = true")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(StageFailure, "failed", nil).WithDetails(map[string]string{"stage": "graph"})
	details, ok := err.Details.(map[string]string)
	if !ok || details["stage"] != "graph" {
		t.Errorf("Details = %v", err.Details)
	}
}

func TestGetSuggestedFixes(t *testing.T) {
	if fixes := GetSuggestedFixes(CacheCorruption); len(fixes) == 0 {
		t.Error("expected fixes for CACHE_CORRUPTION")
	}
	if fixes := GetSuggestedFixes(DetectionFailure); fixes != nil {
		t.Errorf("expected no fixes for DETECTION_FAILURE, got %v", fixes)
	}
}
