package serverrors

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error returned by the services wraps exactly one of them.
var (
	ErrValidation              = errors.New("validation error")
	ErrNotFound                = errors.New("not found")
	ErrBusinessRule            = errors.New("business rule violation")
	ErrForbidden               = errors.New("forbidden")
	ErrCollaboratorUnavailable = errors.New("transfer collaborator unavailable")
	ErrCollaboratorFailure     = errors.New("transfer collaborator failure")
)

// Worker side.
var (
	ErrUnmarshalMessage = errors.New("failed to unmarshal Kafka message")
	ErrInvalidPurchase  = errors.New("invalid purchase event")
)

// Codes surfaced to API clients.
const (
	CodeMissingFields           = "missing_fields"
	CodeInvalidRequest          = "invalid_request"
	CodeInvalidAmount           = "invalid_amount"
	CodeSongNotFound            = "song_not_found"
	CodeArtistNotFound          = "artist_not_found"
	CodeTransferNotFound        = "transfer_not_found"
	CodeInsufficientBalance     = "insufficient_balance"
	CodeAlreadyPurchased        = "already_purchased"
	CodeBelowThreshold          = "below_threshold"
	CodeInvalidProof            = "invalid_proof"
	CodeCollaboratorUnavailable = "collaborator_unavailable"
	CodeSubmissionFailed        = "submission_failed"
)

// Error is a classified service error with client facing detail.
type Error struct {
	Kind    error
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func New(kind error, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

func MissingFields(fields ...string) *Error {
	return New(ErrValidation, CodeMissingFields, fmt.Sprintf("Missing required fields: %s", strings.Join(fields, ", "))).
		WithDetail("fields", fields)
}

func InsufficientBalance(required, available int64) *Error {
	return New(ErrBusinessRule, CodeInsufficientBalance,
		fmt.Sprintf("Insufficient balance: requires %d tNIGHT, available %d tNIGHT", required, available)).
		WithDetail("required", required).
		WithDetail("available", available)
}

// As extracts the classified error, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
