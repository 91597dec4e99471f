package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Kind classifies a service failure; the api layer maps it to a status code
type Kind string

const (
	KindValidationFailed Kind = "ValidationFailed"
	KindNotFound         Kind = "NotFound"
	KindConflict         Kind = "Conflict"
	KindUnauthorized     Kind = "Unauthorized"
	KindForbidden        Kind = "Forbidden"
	KindReportLocked     Kind = "ReportLocked"
	KindIncompleteReport Kind = "IncompleteReport"
	KindInternal         Kind = "Internal"
)

// Specific reasons carried in Error.Code
const (
	CodeDuplicateName       = "DuplicateName"
	CodeDuplicateFiscalCode = "DuplicateFiscalCode"
	CodeDuplicateEmail      = "DuplicateEmail"
	CodePeriodOverlap       = "PeriodOverlap"
	CodeBeneficiaryNotFound = "BeneficiaryNotFound"
	CodeInvalidCredentials  = "InvalidCredentials"
	CodeInactiveAccount     = "InactiveAccount"
	CodeInvalidResetToken   = "InvalidResetToken"
	CodeMissingSignature    = "MissingSignature"
)

// FieldError one offending input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the single error type returned by services
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Fields  []FieldError
	Missing []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind and, when set on target, the same code
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == "" || t.Code == e.Code)
}

// KindOf returns the kind of err, KindInternal for foreign errors
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a service error of kind k
func IsKind(err error, k Kind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == k
}

// ErrValidation builds a ValidationFailed error with field detail
func ErrValidation(fields ...FieldError) *Error {
	return &Error{Kind: KindValidationFailed, Message: "Dati non validi", Fields: fields}
}

// ErrNotFound absent or not owned by the caller
func ErrNotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// ErrConflict uniqueness or overlap violation
func ErrConflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

// ErrUnauthorized bad credentials
func ErrUnauthorized(code, message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: code, Message: message}
}

// ErrForbidden caller authenticated but not allowed
func ErrForbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// ErrReportLocked mutation of a submitted report
func ErrReportLocked() *Error {
	return &Error{Kind: KindReportLocked, Message: "Il rendiconto è già stato inviato e non può essere modificato"}
}

// ErrIncomplete state transition blocked by missing fields
func ErrIncomplete(missing []string) *Error {
	return &Error{Kind: KindIncompleteReport, Message: "Il rendiconto non è completo", Missing: missing}
}

// ErrInternal unexpected failure
func ErrInternal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// storeError translates gorm failures. notFound is used for gorm.ErrRecordNotFound,
// duplicate-key violations become Conflict with the given code.
func storeError(err error, notFound string, conflictCode, conflictMsg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound(notFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &Error{Kind: KindConflict, Code: conflictCode, Message: conflictMsg, Err: err}
	default:
		return ErrInternal("Errore del database", err)
	}
}
