package util

import (
	"errors"
	"fmt"
)

type ErrorCode int32

const (
	EC_BadRequest     ErrorCode = 100
	EC_NotSpecified   ErrorCode = 101
	EC_Parse          ErrorCode = 102
	EC_Range          ErrorCode = 103
	EC_InvalidData    ErrorCode = 104
	EC_NotImplemented ErrorCode = 108
	EC_Validation     ErrorCode = 110
	EC_InvalidState   ErrorCode = 111
	EC_NotFound       ErrorCode = 112
	EC_Internal       ErrorCode = 200
	EC_SinkFailure    ErrorCode = 201
	EC_Timeout        ErrorCode = 300
)

var codeReasons = map[ErrorCode]string{
	EC_BadRequest:     "bad_request",
	EC_NotSpecified:   "not_specified",
	EC_Parse:          "parse",
	EC_Range:          "range",
	EC_InvalidData:    "invalid_data",
	EC_NotImplemented: "not_implemented",
	EC_Validation:     "validation",
	EC_InvalidState:   "invalid_state",
	EC_NotFound:       "not_found",
	EC_Internal:       "internal",
	EC_SinkFailure:    "sink_failure",
	EC_Timeout:        "timeout",
}

// Reason is the machine readable name of the code, ie. "invalid_state"
func (c ErrorCode) Reason() string {
	if r, ok := codeReasons[c]; ok {
		return r
	}
	return "unknown"
}

type Error struct {
	Code    ErrorCode
	Message string
	Name    string
	Cause   error
}

func NewError(code ErrorCode, message string) *Error {
	return &Error{code, message, "", nil}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same Code, so errors.Is(err, &Error{Code: EC_NotFound}) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var _ error = &Error{}

func NewNotSpecifiedError(name string) error {
	return &Error{EC_NotSpecified, fmt.Sprintf("%s not specified", name), name, nil}
}

func NewParseError(parseType string, cause error) error {
	return &Error{EC_Parse,
		fmt.Sprintf("could not parse %s", parseType), parseType, cause}
}

func NewInternalError(cause error) *Error {
	return &Error{EC_Internal, "internal error", "", cause}
}

// NewValidationError is returned for bad command parameters. name is the parameter that was rejected
func NewValidationError(name string, format string, args ...interface{}) error {
	return &Error{EC_Validation, fmt.Sprintf(format, args...), name, nil}
}

// NewInvalidStateError is returned when a command is not legal in the current phase
func NewInvalidStateError(command string, phase fmt.Stringer) error {
	return &Error{EC_InvalidState,
		fmt.Sprintf("cannot %s while %v", command, phase), command, nil}
}

func NewNotFoundError(what string, id string) error {
	return &Error{EC_NotFound, fmt.Sprintf("unknown %s '%s'", what, id), what, nil}
}

// NewSinkFailure wraps an error returned by an output while switching it
func NewSinkFailure(output string, cause error) error {
	return &Error{EC_SinkFailure,
		fmt.Sprintf("output '%s' failed", output), output, cause}
}

// CodeOf gets the ErrorCode of err, or EC_Internal if err is not an *Error
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EC_Internal
}

// IsCode checks whether err (or anything it wraps) is an *Error with code
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
