package errors

import (
	"errors"
	"fmt"
)

// ErrorType is the transport-level category of an error.
type ErrorType string

const (
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeValidation        ErrorType = "validation"
	ErrorTypeConflict          ErrorType = "conflict"
	ErrorTypeInsufficientFunds ErrorType = "insufficient_funds"
	ErrorTypeInternal          ErrorType = "internal"
)

// Code names the engine failure precisely.
type Code string

const (
	CodeAirportNotFound    Code = "airport_not_found"
	CodeAircraftNotFound   Code = "aircraft_not_found"
	CodeRangeExceeded      Code = "range_exceeded"
	CodeRunwayTooShort     Code = "runway_too_short"
	CodeNoActiveAircraft   Code = "no_active_aircraft"
	CodeFleetHoursExceeded Code = "fleet_hours_exceeded"
	CodeSlotLimitExceeded  Code = "slot_limit_exceeded"
	CodeCurfewExceeded     Code = "curfew_exceeded"
	CodeMarketExists       Code = "market_exists"
	CodeUnknownAircraft    Code = "unknown_aircraft"
	CodeStillDelivering    Code = "still_delivering"
	CodeInsufficientCash   Code = "insufficient_cash"
	CodeInvalidRequest     Code = "invalid_request"
	CodeInternal           Code = "internal"
)

var codeTypes = map[Code]ErrorType{
	CodeAirportNotFound:    ErrorTypeNotFound,
	CodeAircraftNotFound:   ErrorTypeNotFound,
	CodeUnknownAircraft:    ErrorTypeNotFound,
	CodeRangeExceeded:      ErrorTypeValidation,
	CodeRunwayTooShort:     ErrorTypeValidation,
	CodeInvalidRequest:     ErrorTypeValidation,
	CodeNoActiveAircraft:   ErrorTypeConflict,
	CodeFleetHoursExceeded: ErrorTypeConflict,
	CodeSlotLimitExceeded:  ErrorTypeConflict,
	CodeCurfewExceeded:     ErrorTypeConflict,
	CodeMarketExists:       ErrorTypeConflict,
	CodeStillDelivering:    ErrorTypeConflict,
	CodeInsufficientCash:   ErrorTypeInsufficientFunds,
	CodeInternal:           ErrorTypeInternal,
}

// AppError is the base error type for engine errors.
type AppError struct {
	Type    ErrorType
	Code    Code
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on Code so the sentinels below work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrAirportNotFound    = &AppError{Type: ErrorTypeNotFound, Code: CodeAirportNotFound, Message: "airport not found"}
	ErrAircraftNotFound   = &AppError{Type: ErrorTypeNotFound, Code: CodeAircraftNotFound, Message: "aircraft type not found"}
	ErrRangeExceeded      = &AppError{Type: ErrorTypeValidation, Code: CodeRangeExceeded, Message: "route distance exceeds aircraft range"}
	ErrRunwayTooShort     = &AppError{Type: ErrorTypeValidation, Code: CodeRunwayTooShort, Message: "runway too short"}
	ErrNoActiveAircraft   = &AppError{Type: ErrorTypeConflict, Code: CodeNoActiveAircraft, Message: "no active aircraft of that type"}
	ErrFleetHoursExceeded = &AppError{Type: ErrorTypeConflict, Code: CodeFleetHoursExceeded, Message: "insufficient aircraft time"}
	ErrSlotLimitExceeded  = &AppError{Type: ErrorTypeConflict, Code: CodeSlotLimitExceeded, Message: "slot limit exceeded"}
	ErrCurfewExceeded     = &AppError{Type: ErrorTypeConflict, Code: CodeCurfewExceeded, Message: "curfew hours limit"}
	ErrMarketExists       = &AppError{Type: ErrorTypeConflict, Code: CodeMarketExists, Message: "market already served in either direction"}
	ErrUnknownAircraft    = &AppError{Type: ErrorTypeNotFound, Code: CodeUnknownAircraft, Message: "unknown aircraft"}
	ErrStillDelivering    = &AppError{Type: ErrorTypeConflict, Code: CodeStillDelivering, Message: "aircraft still delivering"}
	ErrInsufficientCash   = &AppError{Type: ErrorTypeInsufficientFunds, Code: CodeInsufficientCash, Message: "insufficient cash"}
)

// New creates an error for code with a specific message.
func New(code Code, message string) error {
	return &AppError{Type: typeOf(code), Code: code, Message: message}
}

// Newf creates an error for code with formatting.
func Newf(code Code, format string, args ...interface{}) error {
	return New(code, fmt.Sprintf(format, args...))
}

// WrapInternal wraps an error as an internal error.
func WrapInternal(message string, err error) error {
	return &AppError{Type: ErrorTypeInternal, Code: CodeInternal, Message: message, Err: err}
}

// GetType returns the error type of an error.
func GetType(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// GetCode returns the code of an error, CodeInternal for foreign errors.
func GetCode(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

func typeOf(code Code) ErrorType {
	if t, ok := codeTypes[code]; ok {
		return t
	}
	return ErrorTypeInternal
}
