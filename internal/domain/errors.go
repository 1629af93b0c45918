package domain

import (
	"errors"
	"fmt"
)

// AppError is the base domain error type.
type AppError struct {
	Code              string            `json:"code"`
	Message           string            `json:"message"`
	Status            int               `json:"-"`
	Cause             error             `json:"-"`
	Fields            map[string]string `json:"fields,omitempty"`
	RemainingAttempts *int              `json:"remainingAttempts,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Error codes, surfaced to clients as errorKind.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeAlreadyExists      = "ALREADY_EXISTS"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodePINLocked          = "PIN_LOCKED"
	CodeStorage            = "STORAGE_ERROR"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInvalidState       = "INVALID_STATE"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternal           = "INTERNAL_ERROR"
)

// Standard domain error constructors.

func ErrValidation(msg string) *AppError {
	return &AppError{Code: CodeValidation, Message: msg, Status: 400}
}

// ErrValidationFields builds a field-addressable validation error.
func ErrValidationFields(fields map[string]string) *AppError {
	return &AppError{Code: CodeValidation, Message: "please correct the highlighted fields", Status: 400, Fields: fields}
}

func ErrAlreadyExists(msg string) *AppError {
	return &AppError{Code: CodeAlreadyExists, Message: msg, Status: 409}
}

func ErrNotFound(entity, id string) *AppError {
	if id == "" {
		return &AppError{Code: CodeNotFound, Message: fmt.Sprintf("%s not found", entity), Status: 404}
	}
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", entity, id), Status: 404}
}

func ErrInvalidCredentials(msg string) *AppError {
	return &AppError{Code: CodeInvalidCredentials, Message: msg, Status: 401}
}

// ErrWrongPIN is an invalid-credentials error carrying the attempts left in the challenge.
func ErrWrongPIN(remaining int) *AppError {
	return &AppError{
		Code:              CodeInvalidCredentials,
		Message:           fmt.Sprintf("incorrect PIN, %d attempt(s) remaining", remaining),
		Status:            401,
		RemainingAttempts: &remaining,
	}
}

func ErrPINLocked() *AppError {
	zero := 0
	return &AppError{
		Code:              CodePINLocked,
		Message:           "too many incorrect PIN attempts; use the recovery code to continue",
		Status:            423,
		RemainingAttempts: &zero,
	}
}

func ErrStorage(msg string, cause error) *AppError {
	return &AppError{Code: CodeStorage, Message: msg, Status: 500, Cause: cause}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: CodeUnauthorized, Message: msg, Status: 401}
}

func ErrInvalidState(msg string) *AppError {
	return &AppError{Code: CodeInvalidState, Message: msg, Status: 409}
}

func ErrRateLimited(msg string) *AppError {
	return &AppError{Code: CodeRateLimited, Message: msg, Status: 429}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: CodeInternal, Message: msg, Status: 500, Cause: cause}
}

// CodeOf returns the AppError code of err, or CodeInternal.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}
