package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a business failure so the HTTP layer can pick a status
// code without inspecting error strings.
type Kind int

const (
	KindValidation Kind = iota
	KindAuthorization
	KindNotFound
	KindStateConflict
	KindInsufficientFunds
	KindInvalidEscrowState
	KindGateway
	KindInternal
)

// Error is the structured failure returned by every service function.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string) *Error    { return &Error{Kind: KindValidation, Message: msg} }
func Authorization(msg string) *Error { return &Error{Kind: KindAuthorization, Message: msg} }
func NotFound(msg string) *Error      { return &Error{Kind: KindNotFound, Message: msg} }
func StateConflict(msg string) *Error { return &Error{Kind: KindStateConflict, Message: msg} }

func InsufficientFunds(msg string) *Error {
	return &Error{Kind: KindInsufficientFunds, Message: msg}
}

// InvalidEscrowState marks a double-release attempt. Callers must surface
// this loudly; it is never safe to swallow.
func InvalidEscrowState(msg string) *Error {
	return &Error{Kind: KindInvalidEscrowState, Message: msg}
}

func Gateway(msg string, err error) *Error {
	return &Error{Kind: KindGateway, Message: msg, Err: err}
}

func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf extracts the Kind from any error chain, defaulting to KindInternal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
