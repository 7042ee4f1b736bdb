package domain

import (
	"errors"
	"fmt"
	"time"
)

// TriageError is a classified failure inside the engine or one of its
// surfaces. The engine never returns it from Analyze; it is logged and
// surfaced by the API and tool layers.
type TriageError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	cause     error
}

// Error implements the error interface
func (e *TriageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *TriageError) Unwrap() error {
	return e.cause
}

// Error codes for the failure taxonomy
const (
	ErrCodeInputValidation     = "INPUT_VALIDATION"
	ErrCodeKnowledgeBaseLoad   = "KNOWLEDGE_BASE_LOAD_FAILURE"
	ErrCodeInternalComputation = "INTERNAL_COMPUTATION_ERROR"
	ErrCodeModelUnavailable    = "MODEL_UNAVAILABLE"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeRateLimit           = "RATE_LIMIT_EXCEEDED"
	ErrCodeStorage             = "STORAGE_ERROR"
)

var (
	ErrModelUnavailable   = errors.New("inference model unavailable")
	ErrEmptyKnowledgeBase = errors.New("knowledge base has no condition patterns")
	ErrNoSymptoms         = errors.New("no symptoms reported")
	ErrRecordNotFound     = errors.New("health record not found")
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewTriageError creates a new TriageError with timestamp
func NewTriageError(code, message, details string) *TriageError {
	return &TriageError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// WrapTriageError classifies cause under code, keeping it for errors.Is/As.
func WrapTriageError(code, message string, cause error) *TriageError {
	te := NewTriageError(code, message, "")
	if cause != nil {
		te.Details = cause.Error()
		te.cause = cause
	}
	return te
}

// WithRequestID attaches the correlation ID of the request that failed.
func (e *TriageError) WithRequestID(requestID string) *TriageError {
	e.RequestID = requestID
	return e
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// ErrorCode extracts the taxonomy code from err, defaulting to
// INTERNAL_COMPUTATION_ERROR for unclassified errors.
func ErrorCode(err error) string {
	var te *TriageError
	if errors.As(err, &te) {
		return te.Code
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ErrCodeInputValidation
	}
	switch {
	case errors.Is(err, ErrModelUnavailable):
		return ErrCodeModelUnavailable
	case errors.Is(err, ErrEmptyKnowledgeBase):
		return ErrCodeKnowledgeBaseLoad
	case errors.Is(err, ErrNoSymptoms):
		return ErrCodeInputValidation
	case errors.Is(err, ErrRecordNotFound):
		return ErrCodeNotFound
	}
	return ErrCodeInternalComputation
}
