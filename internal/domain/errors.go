package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeProvider      = "PROVIDER_ERROR"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrEmptyQuery     = NewDomainError(ErrCodeValidation, "query cannot be empty")
	ErrInvalidScope   = NewDomainError(ErrCodeValidation, "invalid scope")
	ErrInvalidKind    = NewDomainError(ErrCodeValidation, "invalid document kind")
	ErrEmptyContent   = NewDomainError(ErrCodeValidation, "content cannot be empty")
	ErrInternalUpsert = NewDomainError(ErrCodeValidation, "internal kinds are managed by the synchronizer")
)

// Not found errors
var (
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "knowledge document not found")
)

// Provider errors: the external embedding, web search, or language model
// call failed after retries.
var (
	ErrEmbeddingFailed  = NewDomainError(ErrCodeProvider, "embedding provider call failed")
	ErrWebSearchFailed  = NewDomainError(ErrCodeProvider, "web search provider call failed")
	ErrCompletionFailed = NewDomainError(ErrCodeProvider, "language model call failed")
)
