package errors

import "fmt"

// ErrorType classifies an AppError for the problem mapping in ErrorHandler
type ErrorType string

const (
	ErrTypeParsing          ErrorType = "PARSING"
	ErrTypeSchema           ErrorType = "SCHEMA"
	ErrTypeStorage          ErrorType = "STORAGE"
	ErrTypeValidation       ErrorType = "VALIDATION"
	ErrTypeNotFound         ErrorType = "NOT_FOUND"
	ErrTypeConflict         ErrorType = "CONFLICT"
	ErrTypeInsufficientData ErrorType = "INSUFFICIENT_DATA"
)

// AppError is an internal failure tagged with a type and optional
// key/value context for logs.
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("[%s] %s", e.Type, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithContext attaches a key/value pair and returns e
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = map[string]interface{}{}
	}
	e.Context[key] = value
	return e
}

// NewAppError creates an AppError of errType wrapping cause, which may be nil
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{Type: errType, Message: message, Cause: cause}
}

func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, resource+" not found", nil)
}

func NewConflictError(message string) *AppError {
	return NewAppError(ErrTypeConflict, message, nil)
}
