package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrValidation         = errors.New("invalid request input")
	ErrApplicantNotFound  = errors.New("applicant not found")
	ErrRequestNotFound    = errors.New("financing request not found")
	ErrScoringUnavailable = errors.New("scoring source unavailable")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrExcessiveRepayment = errors.New("repayment exceeds outstanding amount")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeApplicantNotFound  = "APPLICANT_NOT_FOUND"
	ErrCodeRequestNotFound    = "REQUEST_NOT_FOUND"
	ErrCodeScoringUnavailable = "SCORING_UNAVAILABLE"
	ErrCodeInvalidTransition  = "INVALID_TRANSITION"
	ErrCodeInsufficientFunds  = "INSUFFICIENT_FUNDS"
	ErrCodeExcessiveRepayment = "EXCESSIVE_REPAYMENT"
	ErrCodeDatabaseError      = "DATABASE_ERROR"
	ErrCodeLedgerError        = "LEDGER_ERROR"
)

// Wrap common errors with business context

func WrapValidation(detail string) *BusinessError {
	return NewBusinessError(
		ErrCodeValidation,
		detail,
		ErrValidation,
	)
}

func WrapApplicantNotFound(applicantID string) *BusinessError {
	return NewBusinessError(
		ErrCodeApplicantNotFound,
		fmt.Sprintf("applicant %s does not resolve to an account", applicantID),
		ErrApplicantNotFound,
	)
}

func WrapRequestNotFound(requestID string) *BusinessError {
	return NewBusinessError(
		ErrCodeRequestNotFound,
		fmt.Sprintf("financing request %s not found", requestID),
		ErrRequestNotFound,
	)
}

func WrapScoringUnavailable(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeScoringUnavailable,
		"scoring source failed or timed out; request kept in submitted state",
		errors.Join(ErrScoringUnavailable, err),
	)
}

func WrapInvalidTransition(requestID, from, to string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidTransition,
		fmt.Sprintf("request %s cannot move from %s to %s", requestID, from, to),
		ErrInvalidTransition,
	)
}

func WrapInsufficientFunds(accountID string) *BusinessError {
	return NewBusinessError(
		ErrCodeInsufficientFunds,
		fmt.Sprintf("account %s balance is lower than the repayment amount", accountID),
		ErrInsufficientFunds,
	)
}

func WrapExcessiveRepayment(requestID string) *BusinessError {
	return NewBusinessError(
		ErrCodeExcessiveRepayment,
		fmt.Sprintf("repayment would push repaid amount of request %s above the requested amount", requestID),
		ErrExcessiveRepayment,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapLedgerError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeLedgerError,
		"ledger mutation failed",
		err,
	)
}

// CodeOf extracts the business error code, defaulting to DATABASE_ERROR for
// errors that did not originate in this package.
func CodeOf(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ErrCodeDatabaseError
}
